package link

import (
	"context"
	"fmt"
	"sync"

	"go.bug.st/serial"

	"github.com/linux-surface/go-ssam/internal/task"
	"github.com/linux-surface/go-ssam/logger"
)

// SerialLink is a Link backed by a go.bug.st/serial.Port. The caller
// supplies an already-built serial.Mode (baud, parity, stop bits); per
// spec §6 UART configuration is an external collaborator's
// responsibility, not this adapter's.
type SerialLink struct {
	port serial.Port
	mgr  *task.Manager
	log  logger.Logger

	cbMu sync.Mutex
	cb   func([]byte)

	closeOnce sync.Once
}

// NewSerialLink opens portName with mode and starts a read-pump
// goroutine that calls the receive callback with whatever bytes the
// port yields.
func NewSerialLink(portName string, mode *serial.Mode, l logger.Logger) (*SerialLink, error) {
	if l == nil {
		l = logger.GetLogger()
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("link: open serial port %s: %w", portName, err)
	}

	sl := &SerialLink{port: port, log: l}
	sl.mgr = task.NewManager(context.Background(), l)
	if err := sl.mgr.Start("link-read-pump", sl.readPump); err != nil {
		_ = port.Close()

		return nil, err
	}

	return sl, nil
}

// SetReceiveCallback registers fn to receive inbound byte chunks.
func (sl *SerialLink) SetReceiveCallback(fn func([]byte)) {
	sl.cbMu.Lock()
	sl.cb = fn
	sl.cbMu.Unlock()
}

// Write flushes p to the port. go.bug.st/serial has no write-deadline
// API, so only ctx's already-expired state is checked up front; the
// underlying Write call itself runs to completion.
func (sl *SerialLink) Write(ctx context.Context, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := sl.port.Write(p)
	if err != nil {
		return fmt.Errorf("link: serial write: %w", err)
	}

	return nil
}

// Close stops the read pump and closes the underlying port.
func (sl *SerialLink) Close() error {
	var closeErr error
	sl.closeOnce.Do(func() {
		sl.mgr.Stop()
		closeErr = sl.port.Close()
		sl.mgr.Wait()
	})

	return closeErr
}

func (sl *SerialLink) readPump() bool {
	buf := make([]byte, 512)

	n, err := sl.port.Read(buf)
	if err != nil {
		sl.log.Warn("link: serial read error, stopping read pump", "error", err)

		return false
	}
	if n == 0 {
		return true
	}

	sl.cbMu.Lock()
	cb := sl.cb
	sl.cbMu.Unlock()

	if cb != nil {
		cb(append([]byte(nil), buf[:n]...))
	}

	return true
}
