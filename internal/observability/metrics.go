package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the live engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	SessionTransitions *prometheus.CounterVec
	CredentialsIssued  *prometheus.CounterVec
	ChannelEvents      *prometheus.CounterVec
	Subscribers        prometheus.Gauge
	RoomsTornDown      prometheus.Counter
	ArchiveJobs        *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		SessionTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Live session state transitions by kind.",
		}, []string{"kind"}),
		CredentialsIssued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credentials_issued_total",
			Help:      "Join credentials issued by role.",
		}, []string{"role"}),
		ChannelEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_events_total",
			Help:      "Engagement events by outcome and type.",
		}, []string{"outcome", "type"}),
		Subscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_subscribers",
			Help:      "Connected engagement channel subscriptions on this instance.",
		}),
		RoomsTornDown: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_rooms_torn_down_total",
			Help:      "Rooms torn down by the liveness reaper.",
		}),
		ArchiveJobs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_jobs_total",
			Help:      "Session archive jobs by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) SessionTransition(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SessionTransitions.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) CredentialIssued(role string) {
	if m == nil {
		return
	}
	m.CredentialsIssued.WithLabelValues(role).Inc()
}

func (m *Metrics) EventDelivered(eventType string) {
	if m == nil {
		return
	}
	m.ChannelEvents.WithLabelValues("delivered", eventType).Inc()
}

// EventDropped counts a delivery skipped because the subscriber buffer was full.
func (m *Metrics) EventDropped(eventType string) {
	if m == nil {
		return
	}
	m.ChannelEvents.WithLabelValues("dropped", eventType).Inc()
}

func (m *Metrics) SubscriberAdded() {
	if m == nil {
		return
	}
	m.Subscribers.Inc()
}

func (m *Metrics) SubscriberRemoved() {
	if m == nil {
		return
	}
	m.Subscribers.Dec()
}

func (m *Metrics) RoomTornDown() {
	if m == nil {
		return
	}
	m.RoomsTornDown.Inc()
}

func (m *Metrics) ArchiveJob(outcome string) {
	if m == nil {
		return
	}
	m.ArchiveJobs.WithLabelValues(outcome).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
