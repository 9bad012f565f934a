// Package eventlog provides structured JSON events describing hashing runs
package eventlog

import (
	"time"
)

// EventType represents the type of run event
type EventType string

const (
	// EventRunStarted is logged when a run opens its file
	EventRunStarted EventType = "run_started"
	// EventRunSucceeded is logged when a run produces a digest
	EventRunSucceeded EventType = "run_succeeded"
	// EventRunCancelled is logged when a run is cancelled before completion
	EventRunCancelled EventType = "run_cancelled"
	// EventRunFailed is logged when a run fails with an error
	EventRunFailed EventType = "run_failed"
)

// Event represents a single run event
type Event struct {
	// Timestamp when the event occurred (RFC3339 format in JSON)
	Timestamp time.Time `json:"timestamp"`

	// EventType identifies what happened
	EventType EventType `json:"event_type"`

	// RunID identifies the run
	RunID string `json:"run_id"`

	// Path is the file being hashed, as given by the caller
	Path string `json:"path"`

	// Size is the file size when known up front
	Size *int64 `json:"size,omitempty"`

	// Digest is the full lowercase hex SHA256 digest (success only)
	Digest string `json:"digest,omitempty"`

	// BytesHashed is the number of bytes absorbed before the run ended
	BytesHashed uint64 `json:"bytes_hashed,omitempty"`

	// DurationMs is the run duration in milliseconds
	DurationMs int64 `json:"duration_ms,omitempty"`

	// Error contains error details for failed runs
	Error string `json:"error,omitempty"`
}

// NewRunStartedEvent creates an event for a run that opened its file.
// size is nil when the total is unknown.
func NewRunStartedEvent(runID, path string, size *int64) Event {
	return Event{
		Timestamp: time.Now(),
		EventType: EventRunStarted,
		RunID:     runID,
		Path:      path,
		Size:      size,
	}
}

// NewRunSucceededEvent creates an event for a run that produced a digest
func NewRunSucceededEvent(runID, path, digest string, bytes uint64, duration time.Duration) Event {
	return Event{
		Timestamp:   time.Now(),
		EventType:   EventRunSucceeded,
		RunID:       runID,
		Path:        path,
		Digest:      digest,
		BytesHashed: bytes,
		DurationMs:  duration.Milliseconds(),
	}
}

// NewRunCancelledEvent creates an event for a cancelled run
func NewRunCancelledEvent(runID, path string, bytes uint64, duration time.Duration) Event {
	return Event{
		Timestamp:   time.Now(),
		EventType:   EventRunCancelled,
		RunID:       runID,
		Path:        path,
		BytesHashed: bytes,
		DurationMs:  duration.Milliseconds(),
	}
}

// NewRunFailedEvent creates an event for a failed run
func NewRunFailedEvent(runID, path string, err error, bytes uint64, duration time.Duration) Event {
	e := Event{
		Timestamp:   time.Now(),
		EventType:   EventRunFailed,
		RunID:       runID,
		Path:        path,
		BytesHashed: bytes,
		DurationMs:  duration.Milliseconds(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}
