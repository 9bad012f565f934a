// Package ratelimit provides rate-limited readers for throttling file hashing I/O.
package ratelimit

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

const (
	minBurst = 64 * 1024
	maxBurst = 4 * 1024 * 1024
)

// Limiter throttles the bytes read through the readers it wraps.
// A zero or nil Limiter is unlimited.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a new rate limiter.
// bytesPerSecond of 0 or negative means unlimited.
func New(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return &Limiter{}
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), burstFor(bytesPerSecond)),
	}
}

// burstFor returns one second worth of bytes, clamped to [64KB, 4MB].
func burstFor(bytesPerSecond int64) int {
	burst := bytesPerSecond
	if burst < minBurst {
		burst = minBurst
	}
	if burst > maxBurst {
		burst = maxBurst
	}
	return int(burst)
}

// Enabled returns whether rate limiting is active
func (l *Limiter) Enabled() bool {
	return l != nil && l.limiter != nil
}

// Burst returns the maximum number of bytes admitted at once, or 0 when unlimited.
func (l *Limiter) Burst() int {
	if !l.Enabled() {
		return 0
	}
	return l.limiter.Burst()
}

// Reader returns r unchanged when unlimited, otherwise a reader whose
// throughput is capped. Waits are abandoned when ctx is cancelled.
func (l *Limiter) Reader(ctx context.Context, r io.Reader) io.Reader {
	if !l.Enabled() {
		return r
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &LimitedReader{
		r:       r,
		limiter: l.limiter,
		ctx:     ctx,
	}
}

// LimitedReader wraps io.Reader with rate limiting
type LimitedReader struct {
	r       io.Reader
	limiter *rate.Limiter
	ctx     context.Context
}

// Read implements io.Reader with rate limiting.
// Waits are split into burst-sized pieces since WaitN fails when n > burst.
func (lr *LimitedReader) Read(p []byte) (n int, err error) {
	n, err = lr.r.Read(p)
	if n > 0 {
		burst := lr.limiter.Burst()
		remaining := n
		for remaining > 0 {
			wait := remaining
			if wait > burst {
				wait = burst
			}
			if waitErr := lr.limiter.WaitN(lr.ctx, wait); waitErr != nil {
				return n, waitErr
			}
			remaining -= wait
		}
	}
	return n, err
}
