package event

// SetEventHandler registers handler for rqid with no delay hint (dispatch
// always goes through the handler worker pool).
func (d *Dispatcher) SetEventHandler(rqid uint16, handler Handler, userData any) error {
	return d.SetDelayedEventHandler(rqid, handler, nil, userData)
}

// SetDelayedEventHandler registers handler for rqid with an optional
// delay function consulted on every dispatch. rqid may be
// frame.ReservedEventID (1): that id is reserved for a specific event
// source (the Surface keyboard), not forbidden from subscription.
func (d *Dispatcher) SetDelayedEventHandler(rqid uint16, handler Handler, delayFn DelayFunc, userData any) error {
	d.subMu.Lock()
	defer d.subMu.Unlock()

	if _, exists := d.subs.Load(rqid); exists {
		return ErrAlreadySubscribed
	}

	d.subs.Store(rqid, &subState{handler: handler, delayFn: delayFn, userData: userData})

	return nil
}

// RemoveEventHandler unregisters the handler for rqid and blocks until
// no invocation of it is still in flight, satisfying spec §8 property 7.
// It is a no-op if rqid has no registered handler.
func (d *Dispatcher) RemoveEventHandler(rqid uint16) {
	d.subMu.Lock()
	sub, ok := d.subs.LoadAndDelete(rqid)
	d.subMu.Unlock()

	if !ok {
		return
	}

	d.drainMu.Lock()
	for sub.inflight.Load() > 0 {
		d.drainCV.Wait()
	}
	d.drainMu.Unlock()
}
