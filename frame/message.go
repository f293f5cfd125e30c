package frame

// EncodeRequestMessage composes a full request/response-shaped message
// (`SYN ctrl crc(ctrl) cmdframe crc(cmdframe)`) into buf and returns the
// written length. cmd.Payload is included in the command frame; isRequest
// selects the request or response flag pair. buf must be large enough to
// hold LenSyn+LenCtrlFramed+LenCmdFramed+len(cmd.Payload) bytes.
func EncodeRequestMessage(buf []byte, ctrl ControlFrame, cmd CommandFrame, isRequest bool) int {
	n := copy(buf, Syn[:])

	ctrlStart := n
	n += ctrl.Encode(buf[n:])
	n += putCRC(buf[n:], buf[ctrlStart:n])

	cmdStart := n
	n += cmd.Encode(buf[n:], isRequest)
	n += putCRC(buf[n:], buf[cmdStart:n])

	return n
}

// EncodeAckMessage composes an ACK message (`SYN ctrl crc(ctrl) TERM`)
// echoing seq, into buf. buf must be at least LenSyn+LenCtrlFramed+LenSyn
// bytes.
func EncodeAckMessage(buf []byte, seq uint8) int {
	return encodeControlOnlyMessage(buf, TypeAck, seq)
}

// EncodeRetryMessage composes a RETRY message (`SYN ctrl crc(ctrl) TERM`)
// into buf.
func EncodeRetryMessage(buf []byte, seq uint8) int {
	return encodeControlOnlyMessage(buf, TypeRetry, seq)
}

func encodeControlOnlyMessage(buf []byte, typ byte, seq uint8) int {
	n := copy(buf, Syn[:])

	ctrlStart := n
	ctrl := ControlFrame{Type: typ, Length: 0, Seq: seq}
	n += ctrl.Encode(buf[n:])
	n += putCRC(buf[n:], buf[ctrlStart:n])

	n += copy(buf[n:], Term[:])

	return n
}
