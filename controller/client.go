package controller

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/linux-surface/go-ssam/event"
	"github.com/linux-surface/go-ssam/request"
)

// Request issues a logical request to the EC. It fails fast outside the
// Initialized state, per spec §4.6.
func (c *Controller) Request(ctx context.Context, req request.Request, resp *request.ResponseBuffer) error {
	switch c.State() {
	case Uninitialized:
		return ErrNotInitialized
	case Suspended:
		return ErrSuspended
	}

	if c.cfg.legacyBaseStatus && isLegacyBaseStatusQuery(req) {
		return c.legacyBaseStatusResponse(resp)
	}

	return c.doRequest(ctx, req, resp)
}

// isLegacyBaseStatusQuery matches the base-status request signature
// the legacy quirk short-circuits: tc=0x11, iid=0x00, cid=0x0D, snc=1.
func isLegacyBaseStatusQuery(req request.Request) bool {
	return req.TargetCategory == tcBaseStatusLegacy && req.InstanceID == 0 && req.CommandID == cidBaseStatusQuery && req.SNC
}

// legacyBaseStatusResponse returns a literal "base attached" (0x01)
// byte without touching the link, per spec §6/§9: a workaround of
// uncertain scope, gated behind WithLegacyBaseStatusQuirk rather than
// baked into the default path.
func (c *Controller) legacyBaseStatusResponse(resp *request.ResponseBuffer) error {
	if resp == nil || len(resp.Data) < 1 {
		return request.ErrResponseBufTooSmall
	}
	resp.Data[0] = 0x01
	resp.Filled = 1

	return nil
}

// EnableEventSource subscribes the EC's event source tc/rqid to this
// controller's event stream. unknown is passed through unchanged; its
// semantics are EC-defined, per spec §9's open question.
func (c *Controller) EnableEventSource(ctx context.Context, tc, unknown byte, rqid uint16) error {
	return c.eventSourceRequest(ctx, cidEnableEvent, tc, unknown, rqid)
}

// DisableEventSource unsubscribes tc/rqid from this controller's event
// stream.
func (c *Controller) DisableEventSource(ctx context.Context, tc, unknown byte, rqid uint16) error {
	return c.eventSourceRequest(ctx, cidDisableEvent, tc, unknown, rqid)
}

func (c *Controller) eventSourceRequest(ctx context.Context, cid, tc, unknown byte, rqid uint16) error {
	payload := make([]byte, 4)
	payload[0] = tc
	payload[1] = unknown
	binary.LittleEndian.PutUint16(payload[2:4], rqid)

	resp := &request.ResponseBuffer{Data: make([]byte, 1)}
	if err := c.Request(ctx, request.Request{TargetCategory: tcEC, CommandID: cid, SNC: true, Payload: payload}, resp); err != nil {
		return err
	}

	if resp.Filled >= 1 && resp.Data[0] != 0x00 {
		c.log.Warn("controller: event source request returned non-zero status", "cid", cid, "rqid", rqid, "status", resp.Data[0])
	}

	return nil
}

// SetEventHandler registers handler for rqid with no delay hint.
func (c *Controller) SetEventHandler(rqid uint16, handler event.Handler, userData any) error {
	if c.dispatcher == nil {
		return fmt.Errorf("%w: cannot set event handler", ErrNotInitialized)
	}

	return c.dispatcher.SetEventHandler(rqid, handler, userData)
}

// SetDelayedEventHandler registers handler for rqid with a delay
// function consulted on every dispatch.
func (c *Controller) SetDelayedEventHandler(rqid uint16, handler event.Handler, delayFn event.DelayFunc, userData any) error {
	if c.dispatcher == nil {
		return fmt.Errorf("%w: cannot set event handler", ErrNotInitialized)
	}

	return c.dispatcher.SetDelayedEventHandler(rqid, handler, delayFn, userData)
}

// RemoveEventHandler unregisters the handler for rqid, blocking until no
// invocation of it is in flight.
func (c *Controller) RemoveEventHandler(rqid uint16) {
	if c.dispatcher == nil {
		return
	}
	c.dispatcher.RemoveEventHandler(rqid)
}

// ConsumerAdd and ConsumerRemove are device-link registration hooks
// preserved from the original OS-level driver model. Go has no
// devm/consumer-link concept to map them onto, so they are intentionally
// inert here; client drivers that need startup ordering should sequence
// Probe calls themselves.
func (c *Controller) ConsumerAdd(consumer any) {}

// ConsumerRemove is the counterpart of ConsumerAdd; see its doc comment.
func (c *Controller) ConsumerRemove(consumer any) {}
