package metrics

import "sync"

// Counter names for notable conference events.
const (
	EventProtocolAnomaly    = "protocol_anomaly"
	EventDuplicateAttempt   = "duplicate_attempt"
	EventNegotiationFailure = "negotiation_failure"
	EventNegotiationTimeout = "negotiation_timeout"
	EventOutboundDropped    = "outbound_dropped"
	EventCaptureFailure     = "capture_failure"
	EventPeerConnected      = "peer_connected"
	EventPeerRemoved        = "peer_removed"
)

// Metrics is a minimal, concurrency-safe counter registry.
//
// The client is expected to plug into a real metrics backend eventually; this
// type exists to keep signaling and negotiation logic observable and testable.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{
		m: make(map[string]uint64),
	}
}

func (m *Metrics) Inc(name string) {
	m.mu.Lock()
	m.m[name]++
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

func (m *Metrics) Snapshot() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
