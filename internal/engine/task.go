package engine

import (
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/hashsafe/hashsafe/internal/chunkreader"
	"github.com/hashsafe/hashsafe/internal/eventlog"
	"github.com/hashsafe/hashsafe/internal/hashutil"
	"github.com/hashsafe/hashsafe/internal/progress"
	"github.com/hashsafe/hashsafe/internal/ratelimit"
	"github.com/hashsafe/hashsafe/internal/sanitize"
)

// hash reads r's file block by block into a fresh accumulator. The reader
// is closed before hash returns, whatever the outcome.
func (e *Engine) hash(r *Run, logger *zap.Logger) Outcome {
	limiter := ratelimit.New(e.maxReadRate)
	rd, err := e.open(r.path,
		chunkreader.WithBlockSize(e.blockSize),
		chunkreader.WithContext(r.ctx),
		chunkreader.WithLimiter(limiter))
	if err != nil {
		if r.cancelled() {
			return Outcome{State: StateCancelled}
		}
		return Outcome{
			State: StateFailed,
			Err:   &RunError{Kind: KindIO, Op: "open", Path: r.path, Err: err},
		}
	}
	defer func() {
		if err := rd.Close(); err != nil {
			logger.Debug("Failed to close input", zap.Error(err))
		}
	}()

	size, known := rd.Size()
	tracker := progress.NewTracker(size, known)

	var sizePtr *int64
	if known {
		sizePtr = &size
	}
	e.events.Log(eventlog.NewRunStartedEvent(r.id, r.path, sizePtr))
	logger.Debug("Run started",
		zap.String("path", sanitize.Path(r.path)),
		zap.Int64("size", size),
		zap.Bool("sizeKnown", known),
		zap.Int("blockSize", e.blockSize),
		zap.Bool("throttled", limiter.Enabled()))

	r.publish(tracker.Snapshot())

	acc := hashutil.NewAccumulator()
	for {
		if r.cancelled() {
			return Outcome{State: StateCancelled, Bytes: tracker.Snapshot().BytesProcessed}
		}

		blk, err := rd.Next()
		if errors.Is(err, io.EOF) {
			if s, changed := tracker.Finish(); changed {
				r.publish(s)
			}
			break
		}
		if err != nil {
			if r.cancelled() {
				return Outcome{State: StateCancelled, Bytes: tracker.Snapshot().BytesProcessed}
			}
			return Outcome{
				State: StateFailed,
				Bytes: tracker.Snapshot().BytesProcessed,
				Err:   &RunError{Kind: KindIO, Op: "read", Path: r.path, Err: err},
			}
		}

		if err := acc.Absorb(blk.Data); err != nil {
			return Outcome{State: StateFailed, Bytes: tracker.Snapshot().BytesProcessed, Err: err}
		}
		e.metrics.BlocksHashed.Inc()
		e.metrics.BytesHashed.Add(int64(blk.Len()))
		r.publish(tracker.Update(blk.Len()))
	}

	digest, err := acc.Finalize()
	if err != nil {
		return Outcome{State: StateFailed, Bytes: tracker.Snapshot().BytesProcessed, Err: err}
	}
	return Outcome{
		State:  StateSucceeded,
		Digest: digest,
		Bytes:  tracker.Snapshot().BytesProcessed,
	}
}
