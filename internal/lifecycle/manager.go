// Package lifecycle tracks background worker goroutines so they can be
// cancelled and drained together.
package lifecycle

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Manager hands out a shared cancellable context and tracks the
// goroutines started through it.
type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	active atomic.Int64
}

// New creates a Manager whose context derives from parent.
func New(parent context.Context) *Manager {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Manager{
		ctx:    ctx,
		cancel: cancel,
	}
}

// Context returns the manager's context, which is cancelled when Stop is called.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Go starts fn on a tracked goroutine. fn should return once ctx is done.
func (m *Manager) Go(fn func(ctx context.Context)) {
	m.wg.Add(1)
	m.active.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.active.Add(-1)
		fn(m.ctx)
	}()
}

// Active returns the number of tracked goroutines still running.
func (m *Manager) Active() int {
	return int(m.active.Load())
}

// Stop cancels the context and waits for all tracked goroutines to finish.
func (m *Manager) Stop() {
	m.cancel()
	m.wg.Wait()
}

// StopWithTimeout cancels the context and waits for goroutines to finish
// up to timeout. Returns context.DeadlineExceeded if the timeout is reached.
func (m *Manager) StopWithTimeout(timeout time.Duration) error {
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}
