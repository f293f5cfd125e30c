// Package event implements the SSH asynchronous event dispatch pipeline:
// a single-threaded ACK-emission queue ordered ahead of a multi-threaded
// handler worker pool, with per-subscriber delay hints and ref-counted
// work items shared between the two paths.
package event

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/linux-surface/go-ssam/frame"
	"github.com/linux-surface/go-ssam/internal/task"
	"github.com/linux-surface/go-ssam/logger"
)

// Link is the minimal seam the dispatcher needs to emit ACK frames.
type Link interface {
	Write(ctx context.Context, p []byte) error
}

// ackJob and handlerJob are the queue payloads for the two worker pools.
type ackJob struct {
	work *eventWork
}

type handlerJob struct {
	work *eventWork
	sub  *subState
}

// Dispatcher routes incoming event command frames to subscriber
// handlers via two work queues, per spec §4.4.
type Dispatcher struct {
	ctx    context.Context
	cancel context.CancelFunc

	link          Link
	log           logger.Logger
	isInitialized func() bool
	onAck         func()

	subs *xsync.MapOf[uint16, *subState]
	// subMu serializes register/unregister compound operations
	// (check-then-set); reads of subs itself remain lock-free.
	subMu sync.Mutex

	drainMu sync.Mutex
	drainCV *sync.Cond

	ackCh     chan ackJob
	handlerCh chan handlerJob

	mgr *task.Manager

	ackWriteTimeout time.Duration
}

// Config bundles the dispatcher's construction-time parameters.
type Config struct {
	// HandlerWorkers is the size of the multi-threaded handler pool.
	// Defaults to runtime.GOMAXPROCS(0).
	HandlerWorkers int
	// AckQueueSize and HandlerQueueSize bound the two work queues.
	AckQueueSize     int
	HandlerQueueSize int
	AckWriteTimeout  time.Duration
	Logger           logger.Logger
	// IsInitialized is consulted before every ACK emission so a
	// teardown racing with an in-flight event does not write to a
	// closed link.
	IsInitialized func() bool
	// OnAck, if set, is called once per successfully written event ACK.
	OnAck func()
}

// New creates a Dispatcher and starts its worker pools. ctx bounds the
// lifetime of the pools; cancel it (or call Close) to stop them.
func New(ctx context.Context, link Link, cfg Config) *Dispatcher {
	if cfg.HandlerWorkers <= 0 {
		cfg.HandlerWorkers = runtime.GOMAXPROCS(0)
	}
	if cfg.AckQueueSize <= 0 {
		cfg.AckQueueSize = 64
	}
	if cfg.HandlerQueueSize <= 0 {
		cfg.HandlerQueueSize = 256
	}
	if cfg.AckWriteTimeout <= 0 {
		cfg.AckWriteTimeout = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.IsInitialized == nil {
		cfg.IsInitialized = func() bool { return true }
	}

	dctx, cancel := context.WithCancel(ctx)

	d := &Dispatcher{
		ctx:             dctx,
		cancel:          cancel,
		link:            link,
		log:             cfg.Logger,
		isInitialized:   cfg.IsInitialized,
		onAck:           cfg.OnAck,
		subs:            xsync.NewMapOf[uint16, *subState](),
		ackCh:           make(chan ackJob, cfg.AckQueueSize),
		handlerCh:       make(chan handlerJob, cfg.HandlerQueueSize),
		mgr:             task.NewManager(dctx, cfg.Logger),
		ackWriteTimeout: cfg.AckWriteTimeout,
	}
	d.drainCV = sync.NewCond(&d.drainMu)

	_ = d.mgr.Start("event-ack", d.runAckWorker)
	_ = d.mgr.StartPool("event-handler", cfg.HandlerWorkers, d.runHandlerWorker)

	return d
}

// Close stops the worker pools and waits for them to exit.
func (d *Dispatcher) Close() {
	d.cancel()
	d.mgr.Stop()
	d.mgr.Wait()
}

// Dispatch is the receiver reassembler's entry point for a validated
// command frame classified as an event. It must not block for long:
// ACK scheduling and handler scheduling are both queue sends, with
// IMMEDIATE handlers invoked inline as the one intentional exception.
func (d *Dispatcher) Dispatch(seq uint8, cmd frame.CommandFrame) {
	w := getEventWork(seq, cmd)

	d.ackCh <- ackJob{work: w} // step 2: ACK-work scheduled first, per ordering guarantee

	sub, ok := d.subs.Load(cmd.RequestID)
	if !ok {
		d.log.Warn("event: no subscriber for request-id, ACKing without dispatch", "rqid", cmd.RequestID)
		w.release()

		return
	}

	delay := time.Duration(0)
	if sub.delayFn != nil {
		delay = sub.delayFn(cmd.RequestID, sub.userData)
	}

	sub.inflight.Add(1)

	// RemoveEventHandler may have deleted sub between the Load above and
	// the increment; re-check so a removed handler is never invoked after
	// RemoveEventHandler has returned.
	if cur, ok := d.subs.Load(cmd.RequestID); !ok || cur != sub {
		d.finishHandler(sub)
		w.release()

		return
	}

	if delay == Immediate {
		d.invokeHandler(sub, w)

		return
	}

	if delay <= 0 {
		d.handlerCh <- handlerJob{work: w, sub: sub}

		return
	}

	time.AfterFunc(delay, func() {
		d.handlerCh <- handlerJob{work: w, sub: sub}
	})
}

func (d *Dispatcher) runAckWorker() bool {
	select {
	case job, ok := <-d.ackCh:
		if !ok {
			return false
		}
		d.emitAck(job.work)

		return true
	case <-d.ctx.Done():
		return false
	}
}

func (d *Dispatcher) emitAck(w *eventWork) {
	defer w.release()

	if !d.isInitialized() {
		return
	}

	buf := make([]byte, frame.LenSyn+frame.LenCtrlFramed+frame.LenSyn)
	n := frame.EncodeAckMessage(buf, w.seq)

	ctx, cancel := context.WithTimeout(context.Background(), d.ackWriteTimeout)
	defer cancel()

	if err := d.link.Write(ctx, buf[:n]); err != nil {
		d.log.Warn("event: failed to emit event ACK", "seq", w.seq, "error", err)

		return
	}

	if d.onAck != nil {
		d.onAck()
	}
}

func (d *Dispatcher) runHandlerWorker() bool {
	select {
	case job, ok := <-d.handlerCh:
		if !ok {
			return false
		}
		d.invokeHandler(job.sub, job.work)

		return true
	case <-d.ctx.Done():
		return false
	}
}

func (d *Dispatcher) invokeHandler(sub *subState, w *eventWork) {
	defer w.release()
	defer d.finishHandler(sub)

	status := sub.handler(w.cmd.RequestID, w.cmd.Payload, sub.userData)
	if status != 0 {
		d.log.Warn("event: handler returned non-zero status", "rqid", w.cmd.RequestID, "status", status)
	}
}

func (d *Dispatcher) finishHandler(sub *subState) {
	d.drainMu.Lock()
	sub.inflight.Add(-1)
	d.drainCV.Broadcast()
	d.drainMu.Unlock()
}
