// Package controller implements the Surface Serial Hub facade: lifecycle
// (uninitialized/initialized/suspended), the subscription registry, the
// single-writer mutex over the link, and the client-facing request and
// event-subscription API. Per spec §9's redesign note, a Controller is
// an explicitly-owned instance — never a process-wide singleton.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/linux-surface/go-ssam/event"
	"github.com/linux-surface/go-ssam/frame"
	"github.com/linux-surface/go-ssam/link"
	"github.com/linux-surface/go-ssam/logger"
	"github.com/linux-surface/go-ssam/reassemble"
	"github.com/linux-surface/go-ssam/request"
)

// Controller owns a link, the controller mutex, the request engine, the
// event dispatcher, and the receiver reassembler, and drives the
// Uninitialized -> Initialized <-> Suspended lifecycle of spec §4.6.
type Controller struct {
	link link.Link
	cfg  config
	log  logger.Logger

	state *stateMgr

	// reqMu is the controller mutex of spec §5: held for the duration
	// of an entire request, guaranteeing at most one outstanding
	// request and exclusive use of the engine's counters and write
	// buffer.
	reqMu sync.Mutex

	reasm      *reassemble.Reassembler
	engine     *request.Engine
	dispatcher *event.Dispatcher

	metrics metrics

	dispatchCtx    context.Context
	dispatchCancel context.CancelFunc
}

// New creates a Controller over link in the Uninitialized state. The
// link is not touched until Probe.
func New(l link.Link, opts ...ConfigOption) (*Controller, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	return &Controller{
		link:  l,
		cfg:   cfg,
		log:   cfg.logger,
		state: newStateMgr(),
	}, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return c.state.State()
}

// Probe initializes the controller: it wires the reassembler, request
// engine, and event dispatcher to the link, then issues an EC-resume
// request, per spec §4.5.
func (c *Controller) Probe(ctx context.Context) error {
	if c.State() != Uninitialized {
		return fmt.Errorf("%w: probe from state %s", ErrInvalidState, c.State())
	}

	c.dispatchCtx, c.dispatchCancel = context.WithCancel(context.Background())

	c.dispatcher = event.New(c.dispatchCtx, c.link, event.Config{
		HandlerWorkers: c.cfg.handlerWorkers,
		Logger:         c.log,
		IsInitialized:  func() bool { return c.State() == Initialized },
		OnAck:          func() { c.metrics.acksEmitted.Add(1) },
	})

	maxMessage := frame.LenSyn + frame.LenCtrlFramed + frame.LenCmdFramed + c.cfg.maxPayload
	c.reasm = reassemble.New(reassemble.Config{
		MaxMessage: maxMessage,
		FIFOSize:   c.cfg.fifoSize,
		EventBits:  c.cfg.eventBits,
		OnEvent: func(seq uint8, cmd frame.CommandFrame) {
			c.metrics.eventsDispatched.Add(1)
			c.dispatcher.Dispatch(seq, cmd)
		},
		Logger: c.log,
	})
	c.link.SetReceiveCallback(c.reasm.Feed)

	engine, err := request.New(c.link, c.reasm.Completions(),
		append([]request.Option{
			request.WithEventBits(c.cfg.eventBits),
			request.WithMaxPayload(c.cfg.maxPayload),
			request.WithNumRetry(c.cfg.numRetry),
			request.WithLogger(c.log),
			request.WithOnRetry(func() { c.metrics.retries.Add(1) }),
		}, c.cfg.requestOpts...)...,
	)
	if err != nil {
		return err
	}
	c.engine = engine

	c.state.set(Initialized)

	if err := c.sendLifecycleCommand(ctx, cidResume); err != nil {
		c.log.Warn("controller: EC-resume request failed", "error", err)
	}

	return nil
}

// Remove tears the controller down: issues an EC-suspend request
// (best-effort), marks the controller Uninitialized, and stops the event
// dispatcher's workers. Registered event handlers are not removed, and
// the link is not closed. Per spec §4.5, state mutation happens before
// resource retirement.
func (c *Controller) Remove(ctx context.Context) error {
	if c.State() == Uninitialized {
		return nil
	}

	if err := c.sendLifecycleCommand(ctx, cidSuspend); err != nil {
		c.log.Warn("controller: EC-suspend request failed during remove", "error", err)
	}

	c.state.set(Uninitialized)

	if c.dispatcher != nil {
		c.dispatcher.Close()
	}
	if c.dispatchCancel != nil {
		c.dispatchCancel()
	}

	return nil
}

// Suspend transitions Initialized -> Suspended, issuing an EC-suspend
// request.
func (c *Controller) Suspend(ctx context.Context) error {
	if c.State() != Initialized {
		return fmt.Errorf("%w: suspend from state %s", ErrInvalidState, c.State())
	}

	if err := c.sendLifecycleCommand(ctx, cidSuspend); err != nil {
		return err
	}

	c.state.set(Suspended)

	return nil
}

// Resume transitions Suspended -> Initialized, issuing an EC-resume
// request.
func (c *Controller) Resume(ctx context.Context) error {
	if c.State() != Suspended {
		return fmt.Errorf("%w: resume from state %s", ErrInvalidState, c.State())
	}

	if err := c.sendLifecycleCommand(ctx, cidResume); err != nil {
		return err
	}

	c.state.set(Initialized)

	return nil
}

func (c *Controller) sendLifecycleCommand(ctx context.Context, cid byte) error {
	req := request.Request{TargetCategory: tcEC, CommandID: cid, SNC: true}
	resp := &request.ResponseBuffer{Data: make([]byte, 1)}

	return c.doRequest(ctx, req, resp)
}

// doRequest runs req through the engine under the controller mutex,
// bypassing the state check used by the public Request method (the
// lifecycle commands themselves run during the state transition).
func (c *Controller) doRequest(ctx context.Context, req request.Request, resp *request.ResponseBuffer) error {
	c.metrics.requestsSent.Add(1)

	err := c.engine.Request(ctx, &c.reqMu, req, resp)
	if errors.Is(err, request.ErrTimeout) || errors.Is(err, request.ErrRetriesExhausted) {
		c.metrics.timeouts.Add(1)
	}

	return err
}

// WaitState blocks until the controller reaches s or ctx ends.
func (c *Controller) WaitState(ctx context.Context, s State) error {
	return c.state.WaitState(ctx, s)
}

// Metrics returns a snapshot of the controller's diagnostic counters.
func (c *Controller) Metrics() Metrics {
	return c.metrics.Snapshot()
}
