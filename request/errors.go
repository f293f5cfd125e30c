package request

import "errors"

// Sentinel errors surfaced by Engine.Request, matching the taxonomy of
// spec §7.
var (
	ErrInvalidArgument     = errors.New("request: invalid argument")
	ErrLinkWriteFailed     = errors.New("request: link write failed")
	ErrTimeout             = errors.New("request: timed out waiting for response")
	ErrRetriesExhausted    = errors.New("request: retries exhausted")
	ErrResponseBufTooSmall = errors.New("request: response buffer too small")
)
