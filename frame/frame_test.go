package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRC16_KnownVectors(t *testing.T) {
	// CRC-CCITT-FALSE of an empty message is the init value.
	assert.Equal(t, uint16(0xFFFF), CRC16(nil))
}

func TestControlFrame_RoundTrip(t *testing.T) {
	ctrl := ControlFrame{Type: TypeCmd, Length: 9, Seq: 7}
	buf := make([]byte, LenCtrl)
	n := ctrl.Encode(buf)
	require.Equal(t, LenCtrl, n)

	got, err := DecodeControl(buf)
	require.NoError(t, err)
	assert.Equal(t, ctrl, got)
}

func TestDecodeControl_ShortBuffer(t *testing.T) {
	_, err := DecodeControl([]byte{0x80, 0x01})
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestCommandFrame_RoundTrip(t *testing.T) {
	cmd := CommandFrame{
		TargetCategory: 0x01,
		InstanceID:     0x00,
		RequestID:      2,
		CommandID:      0x16,
		Payload:        []byte{0xAB, 0xCD},
	}
	buf := make([]byte, LenCmdBase+len(cmd.Payload))
	n := cmd.Encode(buf, true)
	require.Equal(t, len(buf), n)
	assert.Equal(t, FlagsRequest1, buf[2])
	assert.Equal(t, FlagsRequest2, buf[3])

	got, err := DecodeCommand(buf)
	require.NoError(t, err)
	assert.Equal(t, cmd.TargetCategory, got.TargetCategory)
	assert.Equal(t, cmd.InstanceID, got.InstanceID)
	assert.Equal(t, cmd.RequestID, got.RequestID)
	assert.Equal(t, cmd.CommandID, got.CommandID)
	assert.Equal(t, cmd.Payload, got.Payload)
	assert.True(t, got.IsRequest())
}

// TestEncodeRequestMessage_S1 reproduces scenario S1's literal request
// bytes: tc=0x01, iid=0, cid=0x16, snc=1, empty payload, seq=0, rqid=2.
func TestEncodeRequestMessage_S1(t *testing.T) {
	cmd := CommandFrame{
		TargetCategory: 0x01,
		InstanceID:     0x00,
		RequestID:      2,
		CommandID:      0x16,
	}
	ctrl := ControlFrame{Type: TypeCmd, Length: LenCmdBase, Seq: 0}

	buf := make([]byte, LenSyn+LenCtrlFramed+LenCmdFramed)
	n := EncodeRequestMessage(buf, ctrl, cmd, true)
	buf = buf[:n]

	want := []byte{0xAA, 0x55, 0x80, 0x08, 0x00, 0x00}
	assert.Equal(t, want, buf[:6])

	cmdBytes := []byte{0x80, 0x01, 0x01, 0x00, 0x00, 0x02, 0x00, 0x16}
	assert.Equal(t, cmdBytes, buf[8:16])

	assert.True(t, HasSyn(buf))
	assert.True(t, CtrlCRCOK(buf[LenSyn:]))
	assert.True(t, CmdCRCOK(buf[LenSyn+LenCtrlFramed:], LenCmdBase))
}

func TestEncodeRequestMessage_Idempotent(t *testing.T) {
	cmd := CommandFrame{TargetCategory: 0x11, InstanceID: 1, RequestID: 4, CommandID: 0x0D}
	ctrl := ControlFrame{Type: TypeCmd, Length: LenCmdBase, Seq: 3}

	buf1 := make([]byte, LenSyn+LenCtrlFramed+LenCmdFramed)
	buf2 := make([]byte, LenSyn+LenCtrlFramed+LenCmdFramed)
	n1 := EncodeRequestMessage(buf1, ctrl, cmd, true)
	n2 := EncodeRequestMessage(buf2, ctrl, cmd, true)

	assert.Equal(t, n1, n2)
	assert.Equal(t, buf1, buf2, "re-encoding the same logical request must be byte-identical")
}

func TestEncodeAckMessage(t *testing.T) {
	buf := make([]byte, LenSyn+LenCtrlFramed+LenSyn)
	n := EncodeAckMessage(buf, 5)
	buf = buf[:n]

	assert.True(t, HasSyn(buf))
	assert.True(t, CtrlCRCOK(buf[LenSyn:]))
	assert.True(t, HasTerm(buf[LenSyn+LenCtrlFramed:]))

	ctrl, err := DecodeControl(buf[LenSyn:])
	require.NoError(t, err)
	assert.Equal(t, TypeAck, ctrl.Type)
	assert.Equal(t, uint8(5), ctrl.Seq)
}

func TestEncodeRetryMessage(t *testing.T) {
	buf := make([]byte, LenSyn+LenCtrlFramed+LenSyn)
	n := EncodeRetryMessage(buf, 1)
	buf = buf[:n]

	ctrl, err := DecodeControl(buf[LenSyn:])
	require.NoError(t, err)
	assert.Equal(t, TypeRetry, ctrl.Type)
}

func TestTypeKnown(t *testing.T) {
	assert.True(t, TypeKnown(TypeCmd))
	assert.True(t, TypeKnown(TypeAck))
	assert.True(t, TypeKnown(TypeRetry))
	assert.False(t, TypeKnown(0x01))
}

func TestIsEventID(t *testing.T) {
	const n = 5 // example event-bit width
	mask := EventMask(n)
	require.Equal(t, uint16(0x1F), mask)

	assert.True(t, IsEventID(mask, n))
	assert.True(t, IsEventID(1, n))
	assert.True(t, IsEventID(5, n))
	assert.False(t, IsEventID(0, n))
	assert.False(t, IsEventID(uint16(1)<<n, n))
}

func TestNextRequestID_SkipsZero(t *testing.T) {
	const n = 5

	var c uint16
	id := NextRequestID(&c, n)
	assert.NotZero(t, id)
	assert.Equal(t, uint16(1)<<n, id)

	id2 := NextRequestID(&c, n)
	assert.Equal(t, uint16(2)<<n, id2)

	// 0x800<<5 overflows to 0, so the counter steps past it to 0x801.
	c = 0x7FF
	assert.Equal(t, uint16(1)<<n, NextRequestID(&c, n))
}
