package frame

import "encoding/binary"

// HasSyn reports whether buf begins with the SYN marker.
func HasSyn(buf []byte) bool {
	return len(buf) >= LenSyn && buf[0] == Syn[0] && buf[1] == Syn[1]
}

// HasTerm reports whether buf begins with the TERM marker.
func HasTerm(buf []byte) bool {
	return len(buf) >= LenSyn && buf[0] == Term[0] && buf[1] == Term[1]
}

// TypeKnown reports whether t is one of the recognized control types.
func TypeKnown(t byte) bool {
	return t == TypeCmd || t == TypeAck || t == TypeRetry
}

// CtrlCRCOK validates the CRC16 that follows a LenCtrl-byte control
// header. ctrl must have length >= LenCtrlFramed.
func CtrlCRCOK(ctrl []byte) bool {
	if len(ctrl) < LenCtrlFramed {
		return false
	}

	want := binary.LittleEndian.Uint16(ctrl[LenCtrl : LenCtrl+LenCRC])

	return CRC16(ctrl[:LenCtrl]) == want
}

// CmdCRCOK validates the CRC16 that follows a command frame (header +
// payload). cmd must have length >= body+LenCRC, where body is the
// header+payload length being validated.
func CmdCRCOK(cmd []byte, bodyLen int) bool {
	if len(cmd) < bodyLen+LenCRC {
		return false
	}

	want := binary.LittleEndian.Uint16(cmd[bodyLen : bodyLen+LenCRC])

	return CRC16(cmd[:bodyLen]) == want
}
