package event

import (
	"sync"
	"sync/atomic"

	"github.com/linux-surface/go-ssam/frame"
)

// eventWork is a reference-counted work item shared between the
// ACK-work and handler-work paths for one delivered event. The last
// path to finish returns it to the pool. Grounded on the teacher's
// sync.Pool-of-structs idiom for its message objects.
type eventWork struct {
	seq      uint8
	cmd      frame.CommandFrame
	refcount atomic.Int32
}

var workPool = sync.Pool{
	New: func() any { return new(eventWork) },
}

// usePool toggles pool recycling, mainly so benchmarks can measure the
// allocation cost it saves.
var usePool = true

// IsUsePool reports whether event work items are recycled via sync.Pool.
func IsUsePool() bool {
	return usePool
}

// UsePool enables or disables event work item pooling.
func UsePool(val bool) {
	usePool = val
}

func getEventWork(seq uint8, cmd frame.CommandFrame) *eventWork {
	w := workPool.Get().(*eventWork)
	w.seq = seq
	w.cmd = cmd
	w.refcount.Store(2) // ACK-work + handler-work

	return w
}

// release drops one reference; the last releaser returns w to the pool.
func (w *eventWork) release() {
	if w.refcount.Add(-1) == 0 && usePool {
		w.cmd.Payload = nil
		workPool.Put(w)
	}
}
