package peer

import "fmt"

// NegotiationError reports a failed offer/answer step that is not the benign
// duplicate-attempt race. It is surfaced to consumers through the local
// "error" notification and never retried automatically.
type NegotiationError struct {
	PeerID string
	Op     string
	Err    error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("negotiation with %s: %s: %v", e.PeerID, e.Op, e.Err)
}

func (e *NegotiationError) Unwrap() error { return e.Err }
