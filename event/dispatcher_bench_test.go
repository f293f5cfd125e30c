package event

import (
	"context"
	"testing"

	"github.com/linux-surface/go-ssam/frame"
)

func BenchmarkDispatch_UsePool(b *testing.B) {
	UsePool(true)
	benchmarkDispatch(b)
}

func BenchmarkDispatch_NoPool(b *testing.B) {
	UsePool(false)
	benchmarkDispatch(b)
}

func benchmarkDispatch(b *testing.B) {
	link := &fakeAckLink{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := New(ctx, link, Config{HandlerWorkers: 4, AckQueueSize: 1024, HandlerQueueSize: 1024})
	defer d.Close()

	if err := d.SetEventHandler(1, func(rqid uint16, payload []byte, userData any) int {
		return 0
	}, nil); err != nil {
		b.Fatal(err)
	}

	payload := []byte{0x01, 0x02, 0x03, 0x04}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d.Dispatch(uint8(i), frame.CommandFrame{RequestID: 1, Payload: payload})
	}
	b.StopTimer()
}
