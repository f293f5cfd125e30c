// Package link defines the seam the transport core uses onto an already
// configured byte-duplex UART, plus a go.bug.st/serial-backed adapter.
// Per spec §1, UART discovery and configuration (baud, parity, flow
// control) is an external collaborator's job; this package never
// chooses those parameters itself.
package link

import "context"

// Link is a non-blocking-write, callback-driven byte duplex. Write
// blocks only up to ctx's deadline for the underlying flush to
// complete; inbound bytes are pushed to whatever callback
// SetReceiveCallback last registered.
type Link interface {
	// Write flushes p to the underlying transport, blocking until
	// completion, error, or ctx's deadline.
	Write(ctx context.Context, p []byte) error
	// SetReceiveCallback registers fn to be called with each chunk of
	// inbound bytes as they arrive. fn must not block.
	SetReceiveCallback(fn func([]byte))
	// Close releases the underlying transport.
	Close() error
}
