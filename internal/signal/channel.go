package signal

// Channel is the already-connected bidirectional signaling transport.
//
// The library only orchestrates control messages; how they travel is the
// channel's business. Events delivers inbound envelopes until the channel
// closes, after which the returned channel is closed.
type Channel interface {
	Events() <-chan Envelope
	Send(Envelope) error
	Close() error
}
