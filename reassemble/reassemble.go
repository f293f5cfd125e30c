// Package reassemble turns a best-effort, arbitrarily-chunked inbound byte
// stream into a sequence of validated SSH messages, discarding corrupted
// or unrecognized bytes according to the wire protocol's resync policy.
package reassemble

import (
	"sync"

	"github.com/linux-surface/go-ssam/frame"
	"github.com/linux-surface/go-ssam/internal/util"
	"github.com/linux-surface/go-ssam/logger"
)

// Packet is a fully validated control or command message handed to the
// request engine. For CMD messages it carries a copy of the payload;
// Payload is nil for ACK/RETRY.
type Packet struct {
	Type      byte
	Seq       uint8
	RequestID uint16
	Payload   []byte
}

// EventFunc receives a validated command frame classified as an event
// (its request-id falls in the event subspace). seq is the frame's
// control sequence, needed by the caller to emit the ACK.
type EventFunc func(seq uint8, cmd frame.CommandFrame)

// Reassembler owns the sliding evaluation buffer and the bounded
// completion queue that feeds the request engine. It is safe for
// concurrent use: Feed is typically called from the link's read-pump
// goroutine while the request engine receives from Completions on its
// own goroutine.
type Reassembler struct {
	eventBits uint

	mu      sync.Mutex
	buf     []byte
	fill    int
	onEvent EventFunc
	log     logger.Logger

	completions chan Packet
}

// Config bundles the construction-time parameters for a Reassembler.
type Config struct {
	// MaxMessage bounds the evaluation buffer; it must be at least large
	// enough to hold the largest possible command frame (header +
	// MAX_PAYLOAD + CRC).
	MaxMessage int
	// FIFOSize bounds the request-engine completion queue.
	FIFOSize int
	// EventBits is the EC-defined event-id mask width N.
	EventBits int
	OnEvent   EventFunc
	Logger    logger.Logger
}

// New creates a Reassembler per cfg.
func New(cfg Config) *Reassembler {
	return &Reassembler{
		eventBits:   uint(cfg.EventBits),
		buf:         make([]byte, 0, cfg.MaxMessage),
		onEvent:     cfg.OnEvent,
		log:         cfg.Logger,
		completions: make(chan Packet, cfg.FIFOSize),
	}
}

// Completions returns the channel on which validated control/response
// packets are delivered. A receive on this channel is the "completion
// signal" the request engine waits on.
func (r *Reassembler) Completions() <-chan Packet {
	return r.completions
}

// Feed appends chunk to the evaluation buffer (truncating whatever does
// not fit) and repeatedly evaluates it, dispatching any complete
// messages found. Completion delivery is non-blocking (drop-on-full);
// event frames are handed to OnEvent synchronously, while the
// reassembler's lock is held, so Feed returns only after OnEvent does.
func (r *Reassembler) Feed(chunk []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room := cap(r.buf) - r.fill
	n := len(chunk)
	if n > room {
		n = room
	}
	r.buf = r.buf[:r.fill+n]
	copy(r.buf[r.fill:], chunk[:n])
	r.fill += n

	consumedTotal := 0
	for {
		consumed := r.evalOnce(r.buf[:r.fill])
		if consumed == 0 {
			break
		}
		consumedTotal += consumed
		copy(r.buf, r.buf[consumed:r.fill])
		r.fill -= consumed
		r.buf = r.buf[:r.fill]
	}
}

// evalOnce implements the reassembly policy over buf, returning the
// number of leading bytes consumed (0 means "need more bytes").
func (r *Reassembler) evalOnce(buf []byte) int {
	if len(buf) < frame.LenSyn+frame.LenCtrl {
		return 0
	}

	if !frame.HasSyn(buf) {
		r.log.Warn("reassemble: invalid SYN, discarding buffered bytes", "size", len(buf))
		return len(buf)
	}

	rest := buf[frame.LenSyn:]
	ctrl, err := frame.DecodeControl(rest)
	if err != nil {
		return 0
	}

	switch ctrl.Type {
	case frame.TypeAck, frame.TypeRetry:
		return r.evalControlOnly(buf, rest, ctrl)
	case frame.TypeCmd:
		return r.evalCommand(buf, rest, ctrl)
	default:
		r.log.Warn("reassemble: unknown control type, discarding", "type", ctrl.Type)
		return len(buf)
	}
}

func (r *Reassembler) evalControlOnly(buf, rest []byte, ctrl frame.ControlFrame) int {
	total := frame.LenCtrlFramed + frame.LenSyn // ctrl+crc+TERM
	if len(rest) < total {
		return 0
	}

	if !frame.HasTerm(rest[frame.LenCtrlFramed:]) {
		r.log.Warn("reassemble: missing TERM on control message, discarding all")
		return len(buf)
	}

	if !frame.CtrlCRCOK(rest) {
		r.log.Warn("reassemble: control CRC mismatch, discarding message", "seq", ctrl.Seq)
		return frame.LenSyn + total
	}

	select {
	case r.completions <- Packet{Type: ctrl.Type, Seq: ctrl.Seq}:
	default:
		r.log.Warn("reassemble: completion queue full, dropping control packet", "seq", ctrl.Seq)
	}

	return frame.LenSyn + total
}

func (r *Reassembler) evalCommand(buf, rest []byte, ctrl frame.ControlFrame) int {
	if len(rest) < frame.LenCtrlFramed {
		return 0
	}

	if !frame.CtrlCRCOK(rest) {
		r.log.Warn("reassemble: control CRC mismatch on CMD, discarding all")
		return len(buf)
	}

	cmdBodyLen := int(ctrl.Length) // len counts command-frame + payload bytes
	cmdRegion := rest[frame.LenCtrlFramed:]
	total := cmdBodyLen + frame.LenCRC
	if len(cmdRegion) < total {
		return 0
	}

	consumed := frame.LenSyn + frame.LenCtrlFramed + total

	if !frame.CmdCRCOK(cmdRegion, cmdBodyLen) {
		r.log.Warn("reassemble: command CRC mismatch, discarding message", "seq", ctrl.Seq)
		return consumed
	}

	cmd, err := frame.DecodeCommand(cmdRegion[:cmdBodyLen])
	if err != nil {
		r.log.Warn("reassemble: malformed command frame, discarding message")
		return consumed
	}
	// Payload aliases the eval buffer; clone it out since the buffer is
	// compacted and reused immediately after this call returns.
	payload := util.CloneSlice(cmd.Payload, 0)
	cmd.Payload = payload

	if frame.IsEventID(cmd.RequestID, r.eventBits) {
		if r.onEvent != nil {
			r.onEvent(ctrl.Seq, cmd)
		}

		return consumed
	}

	select {
	case r.completions <- Packet{Type: frame.TypeCmd, Seq: ctrl.Seq, RequestID: cmd.RequestID, Payload: payload}:
	default:
		r.log.Warn("reassemble: completion queue full, dropping response packet", "seq", ctrl.Seq, "rqid", cmd.RequestID)
	}

	return consumed
}
