package event

import "errors"

var (
	// ErrAlreadySubscribed is returned by SetEventHandler/SetDelayedEventHandler
	// when rqid already has a registered handler.
	ErrAlreadySubscribed = errors.New("event: request-id already has a handler")
)
