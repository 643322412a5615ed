// Package metrics holds the prometheus collectors exported by the daemon.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	uploadAttempts *prometheus.CounterVec
	uploads        *prometheus.CounterVec
	messagesSent   prometheus.Counter
	pinsCreated    prometheus.Counter
	pinsDeleted    prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		uploadAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hanger",
			Name:      "upload_attempts_total",
			Help:      "Upload requests sent to the asset host, by transport phase and outcome.",
		}, []string{"phase", "outcome"}),
		uploads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hanger",
			Name:      "uploads_total",
			Help:      "Completed uploads, by final phase.",
		}, []string{"phase"}),
		messagesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: "hanger",
			Name:      "chat_messages_sent_total",
			Help:      "Chat messages appended.",
		}),
		pinsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: "hanger",
			Name:      "pins_created_total",
			Help:      "Map pins created.",
		}),
		pinsDeleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "hanger",
			Name:      "pins_deleted_total",
			Help:      "Map pins deleted by their owner.",
		}),
	}
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) UploadAttempt(phase, outcome string) {
	if m == nil {
		return
	}
	m.uploadAttempts.WithLabelValues(phase, outcome).Inc()
}

func (m *Metrics) UploadFinished(phase string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(phase).Inc()
}

func (m *Metrics) MessageSent() {
	if m == nil {
		return
	}
	m.messagesSent.Inc()
}

func (m *Metrics) PinCreated() {
	if m == nil {
		return
	}
	m.pinsCreated.Inc()
}

func (m *Metrics) PinDeleted() {
	if m == nil {
		return
	}
	m.pinsDeleted.Inc()
}
