package event

import (
	"sync/atomic"
	"time"
)

// Immediate is the delay-function sentinel requesting inline, high
// priority handler invocation on the dispatching goroutine instead of
// the handler worker pool.
const Immediate time.Duration = -1

// Handler receives a dispatched event's request-id, payload, and the
// opaque user data supplied at registration. A non-zero return is
// logged but never surfaced to the peer.
type Handler func(rqid uint16, payload []byte, userData any) int

// DelayFunc computes how long to defer handler invocation for a given
// event, or returns Immediate for inline dispatch.
type DelayFunc func(rqid uint16, userData any) time.Duration

// subState is the per-request-id registration record held in the
// subscription registry. Dispatch looks it up with a lock-free read of
// the registry map and invokes the handler outside any lock; only
// register/unregister take the registry mutex. inflight is shared and
// mutated without the lock via atomics so RemoveEventHandler can wait
// for in-flight handler invocations to drain.
type subState struct {
	handler  Handler
	delayFn  DelayFunc
	userData any

	inflight atomic.Int32
}
