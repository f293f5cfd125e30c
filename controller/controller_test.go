package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linux-surface/go-ssam/frame"
	"github.com/linux-surface/go-ssam/request"
)

// fakeLink is a hand-rolled link.Link fake: writes are recorded and the
// test drives inbound bytes directly into the registered receive
// callback, simulating an EC peer without a real UART.
type fakeLink struct {
	mu     sync.Mutex
	cb     func([]byte)
	writes [][]byte
}

func (f *fakeLink) Write(ctx context.Context, p []byte) error {
	f.mu.Lock()
	f.writes = append(f.writes, append([]byte(nil), p...))
	f.mu.Unlock()

	return nil
}

func (f *fakeLink) SetReceiveCallback(fn func([]byte)) {
	f.mu.Lock()
	f.cb = fn
	f.mu.Unlock()
}

func (f *fakeLink) Close() error { return nil }

func (f *fakeLink) deliver(b []byte) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb != nil {
		cb(b)
	}
}

func (f *fakeLink) lastWrite() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.writes) == 0 {
		return nil
	}

	return f.writes[len(f.writes)-1]
}

func (f *fakeLink) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.writes)
}

// ackFor builds the ACK message a peer would send for the control
// sequence of the most recent write.
func ackFor(seq uint8) []byte {
	buf := make([]byte, frame.LenSyn+frame.LenCtrlFramed+frame.LenSyn)
	n := frame.EncodeAckMessage(buf, seq)

	return buf[:n]
}

func responseFor(seq uint8, rqid uint16, status byte) []byte {
	cmd := frame.CommandFrame{RequestID: rqid, Payload: []byte{status}}
	ctrl := frame.ControlFrame{Type: frame.TypeCmd, Length: uint8(frame.LenCmdBase + 1), Seq: seq}
	buf := make([]byte, frame.LenSyn+frame.LenCtrlFramed+frame.LenCmdFramed+1)
	n := frame.EncodeRequestMessage(buf, ctrl, cmd, false)

	return buf[:n]
}

func newTestController(t *testing.T, l *fakeLink, opts ...ConfigOption) *Controller {
	t.Helper()

	defaults := []ConfigOption{
		WithReadTimeout(30 * time.Millisecond),
		WithWriteTimeout(30 * time.Millisecond),
		WithEventBits(5),
	}
	c, err := New(l, append(defaults, opts...)...)
	require.NoError(t, err)

	return c
}

// respondToNextWrite watches link.writes and, once a new write lands,
// delivers an ACK and a status-OK response for it. It must be started
// before the call that triggers the write.
func respondToNextWrite(t *testing.T, l *fakeLink, rqidGuess uint16) {
	t.Helper()

	go func() {
		deadline := time.Now().Add(time.Second)
		startCount := l.writeCount()
		for time.Now().Before(deadline) {
			if l.writeCount() > startCount {
				break
			}
			time.Sleep(time.Millisecond)
		}

		msg := l.lastWrite()
		if len(msg) < frame.LenSyn+frame.LenCtrl {
			return
		}
		ctrl, err := frame.DecodeControl(msg[frame.LenSyn:])
		if err != nil {
			return
		}

		l.deliver(ackFor(ctrl.Seq))
		l.deliver(responseFor(ctrl.Seq, rqidGuess, 0x00))
	}()
}

func TestController_ProbeAndRemove(t *testing.T) {
	l := &fakeLink{}
	c := newTestController(t, l)

	respondToNextWrite(t, l, 1<<5) // resume request uses rqid 1 (raw counter 1) shifted by eventBits=5

	require.NoError(t, c.Probe(context.Background()))
	assert.Eventually(t, func() bool { return c.State() == Initialized }, time.Second, time.Millisecond)

	respondToNextWrite(t, l, 2<<5)
	require.NoError(t, c.Remove(context.Background()))
	assert.Equal(t, Uninitialized, c.State())
}

func TestController_RequestRejectedWhenUninitialized(t *testing.T) {
	l := &fakeLink{}
	c := newTestController(t, l)

	err := c.Request(context.Background(), request.Request{}, nil)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestController_SuspendResume(t *testing.T) {
	l := &fakeLink{}
	c := newTestController(t, l)

	respondToNextWrite(t, l, 1<<5)
	require.NoError(t, c.Probe(context.Background()))
	assert.Eventually(t, func() bool { return c.State() == Initialized }, time.Second, time.Millisecond)

	respondToNextWrite(t, l, 2<<5)
	require.NoError(t, c.Suspend(context.Background()))
	assert.Equal(t, Suspended, c.State())

	err := c.Request(context.Background(), request.Request{SNC: true}, &request.ResponseBuffer{Data: make([]byte, 1)})
	assert.ErrorIs(t, err, ErrSuspended)

	respondToNextWrite(t, l, 3<<5)
	require.NoError(t, c.Resume(context.Background()))
	assert.Equal(t, Initialized, c.State())
}

func TestController_LegacyBaseStatusQuirk(t *testing.T) {
	l := &fakeLink{}
	c := newTestController(t, l, WithLegacyBaseStatusQuirk(true))

	respondToNextWrite(t, l, 1<<5)
	require.NoError(t, c.Probe(context.Background()))
	assert.Eventually(t, func() bool { return c.State() == Initialized }, time.Second, time.Millisecond)

	before := l.writeCount()

	resp := &request.ResponseBuffer{Data: make([]byte, 1)}
	req := request.Request{TargetCategory: 0x11, InstanceID: 0, CommandID: 0x0D, SNC: true}
	require.NoError(t, c.Request(context.Background(), req, resp))

	assert.Equal(t, byte(0x01), resp.Data[0])
	assert.Equal(t, before, l.writeCount(), "legacy quirk must short-circuit without touching the link")
}

func TestController_EventDispatch(t *testing.T) {
	l := &fakeLink{}
	c := newTestController(t, l)

	respondToNextWrite(t, l, 1<<5)
	require.NoError(t, c.Probe(context.Background()))
	assert.Eventually(t, func() bool { return c.State() == Initialized }, time.Second, time.Millisecond)

	invoked := make(chan []byte, 1)
	eventRqid := uint16(0x1F) // no bits above the low 5: event subspace with eventBits=5
	require.NoError(t, c.SetEventHandler(eventRqid, func(rqid uint16, payload []byte, userData any) int {
		invoked <- payload
		return 0
	}, nil))

	cmd := frame.CommandFrame{RequestID: eventRqid, Payload: []byte{0x2A}}
	ctrl := frame.ControlFrame{Type: frame.TypeCmd, Length: uint8(frame.LenCmdBase + 1), Seq: 9}
	buf := make([]byte, frame.LenSyn+frame.LenCtrlFramed+frame.LenCmdFramed+1)
	n := frame.EncodeRequestMessage(buf, ctrl, cmd, false)
	l.deliver(buf[:n])

	select {
	case payload := <-invoked:
		assert.Equal(t, []byte{0x2A}, payload)
	case <-time.After(time.Second):
		t.Fatal("event handler was not invoked")
	}

	assert.Eventually(t, func() bool { return c.Metrics().AcksEmitted >= 1 }, time.Second, time.Millisecond)
	assert.Equal(t, uint64(1), c.Metrics().EventsDispatched)
}

func TestController_MetricsCountRetries(t *testing.T) {
	l := &fakeLink{}
	c := newTestController(t, l)

	respondToNextWrite(t, l, 1<<5)
	require.NoError(t, c.Probe(context.Background()))
	assert.Eventually(t, func() bool { return c.State() == Initialized }, time.Second, time.Millisecond)

	before := c.Metrics().Retries
	startCount := l.writeCount()

	// Stay silent on the first attempt so the engine retransmits, then
	// answer the retransmission.
	go func() {
		deadline := time.Now().Add(time.Second)
		for time.Now().Before(deadline) && l.writeCount() < startCount+2 {
			time.Sleep(time.Millisecond)
		}
		msg := l.lastWrite()
		ctrl, err := frame.DecodeControl(msg[frame.LenSyn:])
		require.NoError(t, err)
		l.deliver(ackFor(ctrl.Seq))
		l.deliver(responseFor(ctrl.Seq, 2<<5, 0x00))
	}()

	req := request.Request{TargetCategory: 0x01, InstanceID: 0, CommandID: 0x10, SNC: true}
	resp := &request.ResponseBuffer{Data: make([]byte, 1)}
	require.NoError(t, c.Request(context.Background(), req, resp))

	assert.Greater(t, c.Metrics().Retries, before)
}
