package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.SessionTransition("started", 1)
	m.CredentialIssued("viewer")
	m.EventDelivered("chat_message")
	m.EventDropped("reaction")
	m.SubscriberAdded()
	m.SubscriberRemoved()
	m.RoomTornDown()
	m.ArchiveJob("ok")
}

func TestMetricsCountAndExpose(t *testing.T) {
	m := NewMetrics("live_test")
	m.SessionTransition("replaced", 2)
	m.SessionTransition("started", 0)
	m.EventDropped("reaction")
	m.SubscriberAdded()

	if got := testutil.ToFloat64(m.SessionTransitions.WithLabelValues("replaced")); got != 2 {
		t.Fatalf("replaced transitions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Subscribers); got != 1 {
		t.Fatalf("subscribers = %v, want 1", got)
	}

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `live_test_channel_events_total{outcome="dropped",type="reaction"} 1`) {
		t.Fatalf("metrics output missing dropped reaction counter:\n%s", body)
	}
}
