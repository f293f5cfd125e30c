package controller

import "sync/atomic"

// Metrics is a point-in-time snapshot of the controller's diagnostic
// counters, grounded on the teacher's atomic counter struct.
type Metrics struct {
	RequestsSent     uint64
	Retries          uint64
	Timeouts         uint64
	EventsDispatched uint64
	AcksEmitted      uint64
}

// metrics holds the live atomic counters; Snapshot copies them into a
// plain Metrics value.
type metrics struct {
	requestsSent     atomic.Uint64
	retries          atomic.Uint64
	timeouts         atomic.Uint64
	eventsDispatched atomic.Uint64
	acksEmitted      atomic.Uint64
}

func (m *metrics) Snapshot() Metrics {
	return Metrics{
		RequestsSent:     m.requestsSent.Load(),
		Retries:          m.retries.Load(),
		Timeouts:         m.timeouts.Load(),
		EventsDispatched: m.eventsDispatched.Load(),
		AcksEmitted:      m.acksEmitted.Load(),
	}
}
