// Package metrics provides Prometheus metrics for job orchestration.
package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	globalMetrics     *Metrics
	globalMetricsOnce sync.Once
)

// Metrics holds all Prometheus metrics for the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RetryAttempts  *prometheus.CounterVec
	PollRequests   *prometheus.CounterVec
	JobOutcomes    *prometheus.CounterVec
	PushEvents     *prometheus.CounterVec
	ActiveTrackers *prometheus.GaugeVec
	Generations    *prometheus.CounterVec
}

// New creates and registers all metrics once per process.
func New() *Metrics {
	globalMetricsOnce.Do(func() {
		globalMetrics = newMetrics(prometheus.DefaultRegisterer)
	})
	return globalMetrics
}

// NewWithRegistry registers a fresh set of metrics on reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	return newMetrics(reg)
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RetryAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "clipdeck",
				Subsystem: "retry",
				Name:      "attempts_total",
				Help:      "Retried upstream calls by operation",
			},
			[]string{"operation"},
		),
		PollRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "clipdeck",
				Subsystem: "tracker",
				Name:      "poll_requests_total",
				Help:      "Status endpoint requests by reported status",
			},
			[]string{"status"},
		),
		JobOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "clipdeck",
				Subsystem: "jobs",
				Name:      "terminal_total",
				Help:      "Jobs reaching a terminal status",
			},
			[]string{"status"},
		),
		PushEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "clipdeck",
				Subsystem: "channel",
				Name:      "events_total",
				Help:      "Push events received by type",
			},
			[]string{"type"},
		),
		ActiveTrackers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "clipdeck",
				Subsystem: "jobs",
				Name:      "active_observers",
				Help:      "Jobs currently being observed by mode",
			},
			[]string{"mode"},
		),
		Generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "clipdeck",
				Subsystem: "generation",
				Name:      "submissions_total",
				Help:      "Generation submissions by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
	}

	reg.MustRegister(
		m.RetryAttempts,
		m.PollRequests,
		m.JobOutcomes,
		m.PushEvents,
		m.ActiveTrackers,
		m.Generations,
	)
	return m
}

// Handler serves the default registry on a Fiber route.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// RecordRetry counts one retried call
func (m *Metrics) RecordRetry(operation string) {
	if m == nil {
		return
	}
	m.RetryAttempts.WithLabelValues(operation).Inc()
}

// RecordPoll counts one status request by the status it reported
func (m *Metrics) RecordPoll(status string) {
	if m == nil {
		return
	}
	m.PollRequests.WithLabelValues(status).Inc()
}

// RecordOutcome counts a job reaching a terminal status
func (m *Metrics) RecordOutcome(status string) {
	if m == nil {
		return
	}
	m.JobOutcomes.WithLabelValues(status).Inc()
}

// RecordPushEvent counts one push event
func (m *Metrics) RecordPushEvent(eventType string) {
	if m == nil {
		return
	}
	m.PushEvents.WithLabelValues(eventType).Inc()
}

// ObserverStarted increments the active observer gauge
func (m *Metrics) ObserverStarted(mode string) {
	if m == nil {
		return
	}
	m.ActiveTrackers.WithLabelValues(mode).Inc()
}

// ObserverStopped decrements the active observer gauge
func (m *Metrics) ObserverStopped(mode string) {
	if m == nil {
		return
	}
	m.ActiveTrackers.WithLabelValues(mode).Dec()
}

// RecordGeneration counts one generation submission
func (m *Metrics) RecordGeneration(kind, outcome string) {
	if m == nil {
		return
	}
	m.Generations.WithLabelValues(kind, outcome).Inc()
}
