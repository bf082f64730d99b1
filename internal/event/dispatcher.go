// Package event implements an ordered callback registry with one-shot and
// persistent listeners, adapting a raw event source into something consumers
// can subscribe to repeatedly.
package event

import "sync"

// Handler receives the payload the event was dispatched with.
type Handler func(data any)

type registration struct {
	fn      Handler
	once    bool
	removed bool
}

// Dispatcher maintains one ordered listener sequence per event identifier.
//
// Dispatch invokes listeners in registration order over a stable snapshot:
// removing a listener mid-dispatch (including the automatic removal of
// one-shot entries, which happens before their callback runs) neither skips
// nor duplicates subsequent entries. Panics in callbacks are not recovered;
// they propagate to the dispatching caller.
type Dispatcher struct {
	mu sync.Mutex
	// bind, when set, is invoked once per event identifier the first time a
	// listener registers for it. It is how the dispatcher attaches its single
	// underlying listener to the raw source.
	bind     func(eventID string)
	handlers map[string][]*registration
}

// New returns a Dispatcher. bind may be nil when the owner dispatches
// directly instead of adapting a raw source.
func New(bind func(eventID string)) *Dispatcher {
	return &Dispatcher{
		bind:     bind,
		handlers: make(map[string][]*registration),
	}
}

// Register appends a listener for eventID and returns a function that
// removes it. once listeners are removed immediately before they fire.
func (d *Dispatcher) Register(eventID string, fn Handler, once bool) (remove func()) {
	reg := &registration{fn: fn, once: once}

	d.mu.Lock()
	seq, known := d.handlers[eventID]
	d.handlers[eventID] = append(seq, reg)
	bind := d.bind
	d.mu.Unlock()

	if !known && bind != nil {
		bind(eventID)
	}

	return func() { d.remove(eventID, reg) }
}

func (d *Dispatcher) remove(eventID string, reg *registration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	reg.removed = true
	seq := d.handlers[eventID]
	for i, r := range seq {
		if r == reg {
			d.handlers[eventID] = append(seq[:i:i], seq[i+1:]...)
			break
		}
	}
}

// Dispatch fires every live listener registered for eventID, in order.
func (d *Dispatcher) Dispatch(eventID string, data any) {
	d.mu.Lock()
	snapshot := make([]*registration, len(d.handlers[eventID]))
	copy(snapshot, d.handlers[eventID])
	d.mu.Unlock()

	for _, reg := range snapshot {
		d.mu.Lock()
		if reg.removed {
			d.mu.Unlock()
			continue
		}
		if reg.once {
			reg.removed = true
			seq := d.handlers[eventID]
			for i, r := range seq {
				if r == reg {
					d.handlers[eventID] = append(seq[:i:i], seq[i+1:]...)
					break
				}
			}
		}
		d.mu.Unlock()

		reg.fn(data)
	}
}

// RemoveAll detaches every listener, for teardown.
func (d *Dispatcher) RemoveAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, seq := range d.handlers {
		for _, r := range seq {
			r.removed = true
		}
		delete(d.handlers, id)
	}
}

// ListenerCount reports how many live listeners eventID has.
func (d *Dispatcher) ListenerCount(eventID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handlers[eventID])
}
