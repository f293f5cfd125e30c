// Package frame implements the Surface Serial Hub wire codec: CRC
// validation, SYN/TERM framing, and encoding/decoding of control and
// command frames. Every function here is pure and allocation-free; it
// writes into caller-provided buffers and never touches a link.
package frame

import "encoding/binary"

// Frame type bytes carried in the control header.
const (
	TypeCmd   byte = 0x80
	TypeAck   byte = 0x40
	TypeRetry byte = 0x04
)

// SYN and TERM mark message start and short-message end respectively.
var (
	Syn  = [2]byte{0xAA, 0x55}
	Term = [2]byte{0xFF, 0xFF}
)

// Byte lengths of the fixed-size regions on the wire.
const (
	LenSyn        = 2
	LenCtrl       = 4 // type, len, pad, seq
	LenCRC        = 2
	LenCtrlFramed = LenCtrl + LenCRC
	LenCmdBase    = 8 // type, tc, f1, f2, iid, rqid_lo, rqid_hi, cid
	LenCmdFramed  = LenCmdBase + LenCRC
)

// Request/response flag byte values.
const (
	FlagsRequest1  byte = 0x01
	FlagsRequest2  byte = 0x00
	FlagsResponse1 byte = 0x00
	FlagsResponse2 byte = 0x01
)

// ControlFrame is the 4-byte control header that precedes every message.
type ControlFrame struct {
	Type   byte
	Length uint8 // command-frame + payload bytes, excluding the command CRC
	Seq    uint8
}

// Encode writes the 4-byte control header (without its CRC) into buf,
// which must have length >= LenCtrl. It returns the number of bytes
// written.
func (c ControlFrame) Encode(buf []byte) int {
	buf[0] = c.Type
	buf[1] = c.Length
	buf[2] = 0
	buf[3] = c.Seq

	return LenCtrl
}

// DecodeControl parses a 4-byte control header from buf. It does not
// validate CRC; callers check CtrlCRCOK separately against the CRC that
// follows the header in the wire stream.
func DecodeControl(buf []byte) (ControlFrame, error) {
	if len(buf) < LenCtrl {
		return ControlFrame{}, ErrShortBuffer
	}

	return ControlFrame{
		Type:   buf[0],
		Length: buf[1],
		Seq:    buf[3],
	}, nil
}

// CommandFrame is the 8-byte command header plus payload.
type CommandFrame struct {
	TargetCategory byte
	Flags1         byte
	Flags2         byte
	InstanceID     byte
	RequestID      uint16
	CommandID      byte
	Payload        []byte
}

// Encode writes the command header and payload (without the trailing
// CRC) into buf, which must be at least LenCmdBase+len(Payload) bytes.
// isRequest selects the request or response flag pair.
func (c CommandFrame) Encode(buf []byte, isRequest bool) int {
	buf[0] = TypeCmd
	buf[1] = c.TargetCategory
	if isRequest {
		buf[2] = FlagsRequest1
		buf[3] = FlagsRequest2
	} else {
		buf[2] = FlagsResponse1
		buf[3] = FlagsResponse2
	}
	buf[4] = c.InstanceID
	binary.LittleEndian.PutUint16(buf[5:7], c.RequestID)
	buf[7] = c.CommandID
	n := copy(buf[LenCmdBase:], c.Payload)

	return LenCmdBase + n
}

// DecodeCommand parses a command header and its trailing payload from
// buf, which must contain exactly the header plus payload bytes (no
// trailing CRC). The returned Payload aliases buf.
func DecodeCommand(buf []byte) (CommandFrame, error) {
	if len(buf) < LenCmdBase {
		return CommandFrame{}, ErrShortBuffer
	}

	return CommandFrame{
		TargetCategory: buf[1],
		Flags1:         buf[2],
		Flags2:         buf[3],
		InstanceID:     buf[4],
		RequestID:      binary.LittleEndian.Uint16(buf[5:7]),
		CommandID:      buf[7],
		Payload:        buf[LenCmdBase:],
	}, nil
}

// IsRequest reports whether the command frame carries request flags.
func (c CommandFrame) IsRequest() bool {
	return c.Flags1 == FlagsRequest1 && c.Flags2 == FlagsRequest2
}
