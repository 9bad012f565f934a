// Package engine runs cancellable SHA256 hashing jobs in the background and
// reports their progress.
package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/hashsafe/hashsafe/internal/chunkreader"
	"github.com/hashsafe/hashsafe/internal/eventlog"
	"github.com/hashsafe/hashsafe/internal/lifecycle"
	"github.com/hashsafe/hashsafe/internal/metrics"
	"github.com/hashsafe/hashsafe/internal/runid"
	"github.com/hashsafe/hashsafe/internal/sanitize"
)

// Configuration defaults
const (
	DefaultMaxConcurrent = 4

	// How long Close waits for workers after cancelling them
	CloseTimeout = 5 * time.Second
)

// Config holds engine configuration
type Config struct {
	BlockSize     int   // bytes per read; <= 0 uses chunkreader.DefaultBlockSize
	MaxConcurrent int   // runs hashing at once; <= 0 uses DefaultMaxConcurrent
	MaxReadRate   int64 // bytes per second per run; 0 is unlimited
	Metrics       *metrics.Metrics
	Events        eventlog.Logger
}

// DefaultConfig returns the default engine configuration
func DefaultConfig() *Config {
	return &Config{
		BlockSize:     chunkreader.DefaultBlockSize,
		MaxConcurrent: DefaultMaxConcurrent,
	}
}

type openFunc func(path string, opts ...chunkreader.Option) (*chunkreader.Reader, error)

// Engine accepts hashing runs and executes them on background workers.
type Engine struct {
	blockSize   int
	maxReadRate int64
	metrics     *metrics.Metrics
	events      eventlog.Logger
	logger      *zap.Logger

	sem *semaphore.Weighted
	lm  *lifecycle.Manager

	// replaced in tests to observe the reader
	open openFunc

	mu     sync.Mutex
	closed bool
}

// New creates an Engine. A nil cfg uses DefaultConfig and a nil logger
// discards log output.
func New(cfg *Config, logger *zap.Logger) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	blockSize := cfg.BlockSize
	if blockSize <= 0 {
		blockSize = chunkreader.DefaultBlockSize
	}
	maxConc := cfg.MaxConcurrent
	if maxConc <= 0 {
		maxConc = DefaultMaxConcurrent
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.New()
	}
	events := cfg.Events
	if events == nil {
		events = &eventlog.NoopLogger{}
	}

	return &Engine{
		blockSize:   blockSize,
		maxReadRate: cfg.MaxReadRate,
		metrics:     m,
		events:      events,
		logger:      logger,
		sem:         semaphore.NewWeighted(int64(maxConc)),
		lm:          lifecycle.New(context.Background()),
		open:        chunkreader.Open,
	}
}

// Metrics returns the metrics the engine records into.
func (e *Engine) Metrics() *metrics.Metrics {
	return e.metrics
}

// Active returns the number of runs that have not yet finished.
func (e *Engine) Active() int {
	return e.lm.Active()
}

// Submit starts hashing path and returns its handle without waiting for
// any I/O. Cancelling ctx has the same effect as cancelling the run.
func (e *Engine) Submit(ctx context.Context, path string) *Run {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, id := runid.NewContext(ctx, e.logger)
	runCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(e.lm.Context(), cancel)
	r := newRun(runCtx, func() {
		stop()
		cancel()
	}, id, path)

	e.metrics.RunsSubmitted.Inc()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		e.metrics.RunsTotal.WithLabel(metrics.OutcomeFailed).Inc()
		r.finish(Outcome{State: StateFailed, Err: ErrClosed})
		return r
	}

	e.metrics.QueuedRuns.Inc()
	e.lm.Go(func(context.Context) {
		e.execute(r)
	})
	return r
}

// Cancel requests cancellation of run. See Run.Cancel.
func (e *Engine) Cancel(run *Run) {
	run.Cancel()
}

// Poll returns the status of run. See Run.Poll.
func (e *Engine) Poll(run *Run) Status {
	return run.Poll()
}

// Close cancels every in-flight run and waits for the workers to exit.
// Runs submitted afterwards fail with ErrClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	return e.lm.StopWithTimeout(CloseTimeout)
}

// execute waits for a worker slot, hashes the file and records the outcome.
func (e *Engine) execute(r *Run) {
	logger := runid.LoggerFromContext(r.ctx, e.logger)
	timer := metrics.NewTimer(e.metrics.RunDuration)

	if err := e.sem.Acquire(r.ctx, 1); err != nil {
		e.metrics.QueuedRuns.Dec()
		logger.Debug("Run cancelled before start", zap.String("path", sanitize.Path(r.path)))
		e.complete(r, logger, timer, Outcome{State: StateCancelled})
		return
	}
	defer e.sem.Release(1)
	e.metrics.QueuedRuns.Dec()

	if r.cancelled() {
		e.complete(r, logger, timer, Outcome{State: StateCancelled})
		return
	}

	e.metrics.ActiveRuns.Inc()
	r.setState(StateRunning)
	o := e.hash(r, logger)
	e.metrics.ActiveRuns.Dec()

	e.complete(r, logger, timer, o)
}

// complete stops timer, records metrics and events for o and then
// delivers it.
func (e *Engine) complete(r *Run, logger *zap.Logger, timer *metrics.Timer, o Outcome) {
	o.Duration = timer.ObserveDuration()

	switch o.State {
	case StateSucceeded:
		e.metrics.RunsTotal.WithLabel(metrics.OutcomeSucceeded).Inc()
		e.metrics.FileSize.Observe(float64(o.Bytes))
		if secs := o.Duration.Seconds(); secs > 0 {
			e.metrics.Throughput.Observe(float64(o.Bytes) / secs)
		}
		e.events.Log(eventlog.NewRunSucceededEvent(r.id, r.path, o.Digest, o.Bytes, o.Duration))
		logger.Debug("Run succeeded",
			zap.String("path", sanitize.Path(r.path)),
			zap.Uint64("bytes", o.Bytes),
			zap.Duration("duration", o.Duration))
	case StateCancelled:
		e.metrics.RunsTotal.WithLabel(metrics.OutcomeCancelled).Inc()
		e.events.Log(eventlog.NewRunCancelledEvent(r.id, r.path, o.Bytes, o.Duration))
		logger.Debug("Run cancelled",
			zap.String("path", sanitize.Path(r.path)),
			zap.Uint64("bytes", o.Bytes))
	case StateFailed:
		e.metrics.RunsTotal.WithLabel(metrics.OutcomeFailed).Inc()
		e.events.Log(eventlog.NewRunFailedEvent(r.id, r.path, o.Err, o.Bytes, o.Duration))
		logger.Warn("Run failed",
			zap.String("path", sanitize.Path(r.path)),
			zap.String("error", sanitize.Error(o.Err)))
	}

	r.finish(o)
}
