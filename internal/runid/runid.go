// Package runid generates hashing run identifiers and carries them,
// together with a run-scoped logger, through context.Context.
package runid

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"go.uber.org/zap"
)

type contextKey int

const (
	runIDKey contextKey = iota
	loggerKey
)

// Length is the number of hex characters in a run ID.
const Length = 20

// Generate creates a new time-sortable run ID: 6 bytes of millisecond
// timestamp followed by 4 random bytes, hex encoded.
func Generate() string {
	ts := time.Now().UnixMilli()

	id := make([]byte, 10)
	id[0] = byte(ts >> 40)
	id[1] = byte(ts >> 32)
	id[2] = byte(ts >> 24)
	id[3] = byte(ts >> 16)
	id[4] = byte(ts >> 8)
	id[5] = byte(ts)
	_, _ = rand.Read(id[6:])

	return hex.EncodeToString(id)
}

// Short returns the random suffix of id, which is enough to tell
// concurrent runs apart in terminal output.
func Short(id string) string {
	if len(id) > 8 {
		return id[len(id)-8:]
	}
	return id
}

// WithRunID adds a run ID to the context.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// FromContext retrieves the run ID from context, or "" if absent.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// WithLogger adds a run-scoped logger to the context.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext retrieves the run-scoped logger from context.
// Returns the fallback logger if none is present.
func LoggerFromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return fallback
}

// NewContext generates a run ID and stores it in ctx together with a
// logger that carries the ID as the "runID" field.
func NewContext(ctx context.Context, baseLogger *zap.Logger) (context.Context, string) {
	id := Generate()
	ctx = WithRunID(ctx, id)
	ctx = WithLogger(ctx, baseLogger.With(zap.String("runID", id)))
	return ctx, id
}
