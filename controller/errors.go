package controller

import "errors"

// Error taxonomy surfaced to clients, per spec §7.
var (
	ErrNotInitialized = errors.New("controller: not initialized")
	ErrSuspended      = errors.New("controller: suspended")
	ErrInvalidState   = errors.New("controller: invalid lifecycle transition")
)
