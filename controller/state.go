package controller

import (
	"context"
	"sync"
	"sync/atomic"
)

// State represents the controller lifecycle state of spec §4.6.
type State uint32

const (
	Uninitialized State = iota
	Initialized
	Suspended
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Suspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// stateMgr is an atomic state word with a sync.Cond for blocking waits,
// grounded on the teacher's ConnStateMgr: state changes are visible via
// atomic load, and WaitState blocks on a condition variable broadcast on
// every transition.
type stateMgr struct {
	mu    sync.Mutex
	cond  *sync.Cond
	state atomic.Uint32
}

func newStateMgr() *stateMgr {
	sm := &stateMgr{}
	sm.cond = sync.NewCond(&sm.mu)

	return sm
}

func (sm *stateMgr) State() State {
	return State(sm.state.Load())
}

// set transitions to s and wakes any WaitState callers. Go's memory
// model gives release-acquire ordering between this store and any load
// performed after acquiring sm.mu in WaitState, which is the barrier
// spec §4.5/§5 asks for between state mutation and resource
// publication/retirement — no separate memory-barrier primitive is
// needed.
func (sm *stateMgr) set(s State) {
	sm.mu.Lock()
	sm.state.Store(uint32(s))
	sm.cond.Broadcast()
	sm.mu.Unlock()
}

// WaitState blocks until the state reaches s or ctx is done.
func (sm *stateMgr) WaitState(ctx context.Context, s State) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.State() == s {
		return nil
	}

	stop := context.AfterFunc(ctx, sm.cond.Broadcast)
	defer stop()

	for sm.State() != s {
		if err := ctx.Err(); err != nil {
			return err
		}
		sm.cond.Wait()
	}

	return nil
}
