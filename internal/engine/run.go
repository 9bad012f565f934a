package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashsafe/hashsafe/internal/progress"
)

// State is the lifecycle state of a run.
type State int32

const (
	StatePending State = iota
	StateRunning
	StateSucceeded
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateCancelled || s == StateFailed
}

// Outcome is the terminal result of a run.
type Outcome struct {
	State    State
	Digest   string // lowercase hex, set only when State is StateSucceeded
	Err      error  // set only when State is StateFailed
	Bytes    uint64
	Duration time.Duration
}

// Status is a point-in-time view of a run.
type Status struct {
	State    State
	Progress progress.Snapshot
	Outcome  *Outcome // nil until the run is terminal
}

// Run is the handle for one submitted hashing job. All methods are safe
// for concurrent use.
type Run struct {
	id   string
	path string

	ctx    context.Context
	cancel context.CancelFunc

	cancelRequested atomic.Bool
	state           atomic.Int32

	mu       sync.Mutex
	last     progress.Snapshot
	outcome  Outcome
	finished bool

	progress   chan progress.Snapshot
	done       chan struct{}
	finishOnce sync.Once
}

func newRun(ctx context.Context, cancel context.CancelFunc, id, path string) *Run {
	return &Run{
		id:       id,
		path:     path,
		ctx:      ctx,
		cancel:   cancel,
		progress: make(chan progress.Snapshot, 1),
		done:     make(chan struct{}),
	}
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.id }

// Path returns the path the run was submitted with.
func (r *Run) Path() string { return r.path }

// State returns the current state.
func (r *Run) State() State {
	return State(r.state.Load())
}

// Cancel requests cancellation. It returns immediately; the run reaches
// StateCancelled once the worker observes the request. Cancelling a
// terminal run has no effect.
func (r *Run) Cancel() {
	if r.State().Terminal() {
		return
	}
	r.cancelRequested.Store(true)
	r.cancel()
}

// Poll returns the current state, the latest progress snapshot and, once
// terminal, the outcome.
func (r *Run) Poll() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Status{
		State:    r.State(),
		Progress: r.last,
	}
	if r.finished {
		o := r.outcome
		st.State = o.State
		st.Outcome = &o
	}
	return st
}

// Progress returns the snapshot channel. It holds at most one pending
// snapshot, always the newest, and is closed when the run becomes terminal.
func (r *Run) Progress() <-chan progress.Snapshot {
	return r.progress
}

// Done is closed after the outcome is available.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Outcome returns the terminal outcome, or false while the run is in flight.
func (r *Run) Outcome() (Outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcome, r.finished
}

// Wait blocks until the run is terminal or ctx is done.
func (r *Run) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-r.done:
		o, _ := r.Outcome()
		return o, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (r *Run) cancelled() bool {
	return r.cancelRequested.Load() || r.ctx.Err() != nil
}

func (r *Run) setState(s State) {
	r.state.Store(int32(s))
}

// publish replaces any undelivered snapshot with s. Only the worker
// goroutine calls it, so the send after draining never blocks.
func (r *Run) publish(s progress.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return
	}
	r.last = s

	select {
	case <-r.progress:
	default:
	}
	select {
	case r.progress <- s:
	default:
	}
}

// finish records o and closes the channels. Only the first call has any effect.
func (r *Run) finish(o Outcome) {
	r.finishOnce.Do(func() {
		r.mu.Lock()
		r.outcome = o
		r.finished = true
		r.state.Store(int32(o.State))
		close(r.progress)
		r.mu.Unlock()

		close(r.done)
		r.cancel()
	})
}
