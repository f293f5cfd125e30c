// Package request implements the SSH request/response protocol: encoding
// a logical request once, driving the retry/ACK/timeout loop, and, for
// requests that expect a payload response, waiting for and ACKing it.
package request

import (
	"context"
	"fmt"
	"sync"

	"github.com/linux-surface/go-ssam/frame"
	"github.com/linux-surface/go-ssam/internal/pool"
	"github.com/linux-surface/go-ssam/reassemble"
)

// Link is the minimal seam the engine needs onto the byte-duplex
// transport: a context-bounded, completion-reporting write.
type Link interface {
	Write(ctx context.Context, p []byte) error
}

// Request is a logical outbound request.
type Request struct {
	TargetCategory byte
	InstanceID     byte
	CommandID      byte
	SNC            bool // "send-needs-response"
	Payload        []byte
}

// ResponseBuffer is the caller-owned destination for a response payload.
type ResponseBuffer struct {
	Data   []byte
	Filled int
}

// Engine drives the request/response state machine of spec §4.3. It owns
// the seq/rqid counters and the reused write buffer. Request acquires the
// controller mutex (passed as mu) itself and holds it for the whole
// exchange, so that at most one request is ever in flight.
type Engine struct {
	cfg         Config
	link        Link
	completions <-chan reassemble.Packet

	writeBuf []byte
	ackBuf   []byte

	seq     uint8
	rqidRaw uint16
}

// New creates an Engine bound to link for writes and completions for the
// validated control/response packets the reassembler hands it.
func New(link Link, completions <-chan reassemble.Packet, opts ...Option) (*Engine, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:         cfg,
		link:        link,
		completions: completions,
		ackBuf:      make([]byte, frame.LenSyn+frame.LenCtrlFramed+frame.LenSyn),
	}, nil
}

// Request implements spec §4.3 steps 1-7. After validating its arguments
// it locks mu (the "controller mutex") and holds it until it returns; the
// caller must not already hold mu.
func (e *Engine) Request(ctx context.Context, mu sync.Locker, req Request, resp *ResponseBuffer) error {
	if len(req.Payload) > e.cfg.maxPayload {
		return fmt.Errorf("%w: payload of %d bytes exceeds max %d", ErrInvalidArgument, len(req.Payload), e.cfg.maxPayload)
	}
	if req.SNC && resp == nil {
		return fmt.Errorf("%w: snc request requires a response buffer", ErrInvalidArgument)
	}

	mu.Lock()
	defer mu.Unlock()

	seq, rqid, rawCounter := e.reserveIDs()

	msg := e.encode(seq, rqid, req)

	acked, err := e.ackLoop(ctx, msg, seq)
	if err != nil {
		return err
	}
	if !acked {
		return ErrRetriesExhausted
	}

	e.seq++
	e.rqidRaw = rawCounter

	if !req.SNC {
		return nil
	}

	return e.awaitResponse(ctx, rqid, resp)
}

// reserveIDs computes the seq/rqid this request will use without
// mutating engine state; the caller commits them only on success, per
// spec §4.3 step 5.
func (e *Engine) reserveIDs() (seq uint8, rqid uint16, rawCounter uint16) {
	rawCounter = e.rqidRaw
	rqid = frame.NextRequestID(&rawCounter, uint(e.cfg.eventBits))

	return e.seq, rqid, rawCounter
}

// encode composes the wire message once into the engine's reused write
// buffer. The same bytes are retransmitted verbatim on every retry.
func (e *Engine) encode(seq uint8, rqid uint16, req Request) []byte {
	cmd := frame.CommandFrame{
		TargetCategory: req.TargetCategory,
		InstanceID:     req.InstanceID,
		RequestID:      rqid,
		CommandID:      req.CommandID,
		Payload:        req.Payload,
	}
	ctrl := frame.ControlFrame{Type: frame.TypeCmd, Length: uint8(frame.LenCmdBase + len(req.Payload)), Seq: seq}

	need := frame.LenSyn + frame.LenCtrlFramed + frame.LenCmdFramed + len(req.Payload)
	if cap(e.writeBuf) < need {
		e.writeBuf = make([]byte, need)
	}
	e.writeBuf = e.writeBuf[:need]

	n := frame.EncodeRequestMessage(e.writeBuf, ctrl, cmd, true)

	return e.writeBuf[:n]
}

// ackLoop implements spec §4.3 steps 3-4: flush, then wait for the ACK
// completion, retransmitting identical bytes up to NUM_RETRY times on
// timeout or RETRY.
func (e *Engine) ackLoop(ctx context.Context, msg []byte, seq uint8) (acked bool, err error) {
	for try := 0; try <= e.cfg.numRetry; try++ {
		if try > 0 && e.cfg.onRetry != nil {
			e.cfg.onRetry()
		}

		writeCtx, cancel := context.WithTimeout(ctx, e.cfg.writeTimeout)
		werr := e.link.Write(writeCtx, msg)
		cancel()
		if werr != nil {
			return false, fmt.Errorf("%w: %v", ErrLinkWriteFailed, werr)
		}

		acked, err := e.awaitAck(ctx, seq)
		if err != nil {
			return false, err
		}
		if acked {
			return true, nil
		}
		// timeout with no matching ACK this window: next try.
	}

	return false, nil
}

// awaitAck waits out a single read-timeout window for the ACK of seq.
// A RETRY ends the window early so the caller retransmits. Per spec §3's
// expectation invariant, any other completion that isn't that ACK (a
// mismatched ACK, or a stray/stale completion belonging to an
// already-abandoned prior request) is discarded and the wait continues
// within the same window, rather than being treated as a timeout or
// consuming a retry.
func (e *Engine) awaitAck(ctx context.Context, seq uint8) (acked bool, err error) {
	timer := pool.GetTimer(e.cfg.readTimeout)
	defer pool.PutTimer(timer)

	for {
		select {
		case pkt := <-e.completions:
			if pkt.Type == frame.TypeAck && pkt.Seq == seq {
				return true, nil
			}
			if pkt.Type == frame.TypeRetry {
				return false, nil
			}
			// A mismatched ACK or a stale completion: discard and keep
			// waiting out this window.
		case <-timer.C:
			return false, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

// awaitResponse implements spec §4.3 step 6: wait once more for the
// response body, copy it into resp, and emit the trailing ACK. Per
// spec §3's expectation invariant, a completion that doesn't match rqid
// (a stray/stale completion for an already-abandoned prior request) is
// discarded and the wait continues within the same timeout window.
func (e *Engine) awaitResponse(ctx context.Context, rqid uint16, resp *ResponseBuffer) error {
	timer := pool.GetTimer(e.cfg.readTimeout)
	defer pool.PutTimer(timer)

	for {
		select {
		case pkt := <-e.completions:
			if pkt.Type != frame.TypeCmd || pkt.RequestID != rqid {
				continue
			}
			if len(resp.Data) < len(pkt.Payload) {
				return ErrResponseBufTooSmall
			}
			resp.Filled = copy(resp.Data, pkt.Payload)

			ackN := frame.EncodeAckMessage(e.ackBuf, pkt.Seq)
			ackCtx, cancel := context.WithTimeout(ctx, e.cfg.writeTimeout)
			if err := e.link.Write(ackCtx, e.ackBuf[:ackN]); err != nil {
				e.cfg.logger.Warn("request: failed to emit response ACK", "error", err)
			}
			cancel()

			return nil
		case <-timer.C:
			return ErrTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
