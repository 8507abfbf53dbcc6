package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mattjoyce/contentful-listener/internal/events"
)

// Request outcomes recorded in RequestsTotal.
const (
	OutcomeAccepted      = "accepted"
	OutcomeNotAcceptable = "not_acceptable"
	OutcomeUnauthorized  = "unauthorized"
	OutcomeBadTopic      = "bad_topic"
	OutcomeTooLarge      = "too_large"
	OutcomeReadError     = "read_error"
	OutcomeBadPayload    = "bad_payload"
	OutcomeHalted        = "halted"
)

// OtherEvent labels events whose name is not a known Contentful action.
// Names come from a request header, so they are never used as labels directly.
const OtherEvent = "other"

// Metrics holds the listener's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RequestsTotal *prometheus.CounterVec
	EventsTotal   *prometheus.CounterVec
	BodyBytes     prometheus.Histogram
	HaltsTotal    prometheus.Counter
}

// New creates and registers all listener metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contentful_listener_requests_total",
			Help: "Webhook deliveries received, by outcome.",
		}, []string{"outcome"}),

		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contentful_listener_events_total",
			Help: "Events dispatched to subscribers, by event name.",
		}, []string{"event"}),

		BodyBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "contentful_listener_body_bytes",
			Help:    "Size of accepted webhook bodies.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		}),

		HaltsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "contentful_listener_halts_total",
			Help: "Listener halts caused by malformed payloads under the fail_fast policy.",
		}),
	}
}

// Request counts one delivery under outcome.
func (m *Metrics) Request(outcome string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(outcome).Inc()
}

// Event counts one dispatched event and observes its body size.
func (m *Metrics) Event(name string, bodySize int) {
	if m == nil {
		return
	}
	if !events.Known(name) {
		name = OtherEvent
	}
	m.EventsTotal.WithLabelValues(name).Inc()
	m.BodyBytes.Observe(float64(bodySize))
}

// Halt counts one fail-fast halt.
func (m *Metrics) Halt() {
	if m == nil {
		return
	}
	m.HaltsTotal.Inc()
}

// Handler exposes the collectors registered on g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
