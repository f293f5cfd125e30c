package frame

import "errors"

// Sentinel errors returned by the codec and validation predicates.
var (
	ErrShortBuffer = errors.New("frame: buffer too short")
	ErrNoSyn       = errors.New("frame: missing SYN marker")
	ErrCtrlCRC     = errors.New("frame: control CRC mismatch")
	ErrCmdCRC      = errors.New("frame: command CRC mismatch")
	ErrNoTerm      = errors.New("frame: missing TERM marker")
	ErrUnknownType = errors.New("frame: unknown control type")
)
