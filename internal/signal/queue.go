package signal

import (
	"sync"
	"sync/atomic"
)

// Outbox is a bounded FIFO of outbound envelopes.
//
// Sends are never performed on the goroutine that queued them: a drain loop
// dequeues and writes to the channel one scheduling tick later, so listener
// setup that happens synchronously in the same turn always wins the race.
type Outbox struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	closed   bool

	maxQueued int
	envelopes []Envelope

	drops atomic.Uint64
}

func NewOutbox(maxQueued int) *Outbox {
	q := &Outbox{maxQueued: maxQueued}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

func (q *Outbox) DropCount() uint64 {
	return q.drops.Load()
}

// Enqueue appends env if the queue has room. It never blocks.
func (q *Outbox) Enqueue(env Envelope) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.drops.Add(1)
		return false
	}
	if q.maxQueued > 0 && len(q.envelopes) >= q.maxQueued {
		q.drops.Add(1)
		return false
	}

	q.envelopes = append(q.envelopes, env)
	q.notEmpty.Signal()
	return true
}

// Dequeue blocks until an envelope is available or the queue is closed and
// empty.
func (q *Outbox) Dequeue() (Envelope, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.envelopes) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if len(q.envelopes) == 0 {
		return Envelope{}, false
	}
	env := q.envelopes[0]
	copy(q.envelopes, q.envelopes[1:])
	q.envelopes[len(q.envelopes)-1] = Envelope{}
	q.envelopes = q.envelopes[:len(q.envelopes)-1]
	return env, true
}

func (q *Outbox) Close() {
	q.mu.Lock()
	q.closed = true
	q.envelopes = nil
	q.mu.Unlock()
	q.notEmpty.Broadcast()
}
