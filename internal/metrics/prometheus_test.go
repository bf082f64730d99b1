package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPrometheusHandler_ExposesSnapshot(t *testing.T) {
	m := New()
	m.Inc(EventProtocolAnomaly)
	m.Inc(EventOutboundDropped)
	m.Inc(EventOutboundDropped)
	m.Inc(`quote"back\slash`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()

	PrometheusHandler(m).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d, want %d", rr.Code, http.StatusOK)
	}

	body := rr.Body.String()
	if !strings.Contains(body, "# TYPE conference_events_total counter") {
		t.Fatalf("missing TYPE header: %s", body)
	}
	if !strings.Contains(body, `conference_events_total{event="outbound_dropped"} 2`) {
		t.Fatalf("missing outbound_dropped counter: %s", body)
	}
	if !strings.Contains(body, `conference_events_total{event="protocol_anomaly"} 1`) {
		t.Fatalf("missing protocol_anomaly counter: %s", body)
	}
	// Ensure label escaping matches Prometheus text format rules.
	if !strings.Contains(body, `conference_events_total{event="quote\"back\\slash"} 1`) {
		t.Fatalf("missing escaped counter: %s", body)
	}
}

func TestMetricsGetAndSnapshot(t *testing.T) {
	m := New()
	if got := m.Get(EventPeerConnected); got != 0 {
		t.Fatalf("Get=%d, want 0", got)
	}
	m.Inc(EventPeerConnected)
	if got := m.Get(EventPeerConnected); got != 1 {
		t.Fatalf("Get=%d, want 1", got)
	}

	snap := m.Snapshot()
	snap[EventPeerConnected] = 99
	if got := m.Get(EventPeerConnected); got != 1 {
		t.Fatalf("snapshot mutation leaked into registry: %d", got)
	}
}
