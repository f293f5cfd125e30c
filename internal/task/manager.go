// Package task provides supervised goroutine lifecycle management: named
// single tasks and fixed-size worker pools that stop cleanly on context
// cancellation and recover from panics instead of taking the process down.
package task

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/linux-surface/go-ssam/logger"
)

// Func represents a unit of work run in a goroutine managed by a Manager.
// It should return true to keep running (the caller loops it), or false to
// stop.
type Func func() bool

// Manager supervises goroutines started via Start and StartPool, cancelling
// them together and waiting for their exit.
//
// Generalized from a single-goroutine-per-role task runner into an explicit
// pool abstraction: a component that needs many identical workers (an event
// handler pool) calls StartPool once instead of calling Start N times with
// N distinct names.
type Manager struct {
	pctx   context.Context
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32

	mu     sync.RWMutex // protects ctx/cancel across Wait() resets
	taskMu sync.RWMutex // blocks new task creation while Wait() is resetting
}

// NewManager creates a Manager whose goroutines are children of ctx.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	mgr := &Manager{logger: l, pctx: ctx}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

func (mgr *Manager) getContext() context.Context {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	return mgr.ctx
}

// Start runs fn in a loop on its own goroutine named name until fn returns
// false or the manager is stopped. It blocks until the goroutine has
// actually started (or fails to).
func (mgr *Manager) Start(name string, fn Func) error {
	return mgr.startOne(name, fn)
}

// StartPool runs n copies of fn concurrently, each looping until fn returns
// false or the manager is stopped. Used for worker pools where every worker
// pulls from the same input (e.g. a shared channel closed over by fn).
func (mgr *Manager) StartPool(name string, n int, fn Func) error {
	for i := 0; i < n; i++ {
		if err := mgr.startOne(fmt.Sprintf("%s-%d", name, i), fn); err != nil {
			return err
		}
	}

	return nil
}

func (mgr *Manager) startOne(name string, fn Func) error {
	ctx := mgr.getContext()
	select {
	case <-ctx.Done():
		return fmt.Errorf("task: manager already stopped")
	default:
	}

	mgr.taskMu.RLock()
	defer mgr.taskMu.RUnlock()

	mgr.wg.Add(1)
	started := make(chan struct{})

	go func() {
		defer mgr.wg.Done()

		mgr.count.Add(1)
		defer func() {
			mgr.count.Add(-1)
			mgr.logger.Debug(name+" task terminated", "task_count", mgr.TaskCount())
		}()

		close(started)
		mgr.runLoop(fn)
	}()

	<-started

	return nil
}

// runLoop calls fn repeatedly, catching panics so one bad handler cannot
// take down the whole pool, until fn returns false or the context ends.
func (mgr *Manager) runLoop(fn Func) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task loop", "panic", r)
		}
	}()

	for {
		ctx := mgr.getContext()
		select {
		case <-ctx.Done():
			return
		default:
			if !mgr.callWithRecover(fn) {
				return
			}
		}
	}
}

func (mgr *Manager) callWithRecover(fn Func) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task", "panic", r)
			ok = false
		}
	}()

	return fn()
}

// Stop signals every running goroutine to exit; it does not wait for them.
func (mgr *Manager) Stop() {
	mgr.mu.Lock()
	if mgr.cancel != nil {
		mgr.cancel()
	}
	mgr.mu.Unlock()
}

// Wait blocks until every goroutine started by this manager has exited,
// then resets the manager so it can be reused.
func (mgr *Manager) Wait() {
	mgr.taskMu.Lock()
	defer mgr.taskMu.Unlock()

	mgr.wg.Wait()

	mgr.mu.Lock()
	mgr.ctx, mgr.cancel = context.WithCancel(mgr.pctx)
	mgr.mu.Unlock()
}

// WaitTimeout is like Wait but gives up after d, returning false if
// goroutines are still running.
func (mgr *Manager) WaitTimeout(d time.Duration) bool {
	done := make(chan struct{})

	go func() {
		mgr.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}

// TaskCount returns the number of currently running goroutines.
func (mgr *Manager) TaskCount() int {
	return int(mgr.count.Load())
}
