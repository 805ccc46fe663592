// Package metrics exposes Prometheus instruments for the angeler backend.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "angeler"

// Metrics holds every collector the service records into.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	submissionsTotal      *prometheus.CounterVec
	webhookDeliveries     *prometheus.CounterVec
	announcementsTotal    *prometheus.CounterVec
	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	eventSubscribersGauge prometheus.Gauge
}

// New builds the collectors and registers them on a fresh registry.
func New() (*Metrics, error) {
	return NewWithRegistry(prometheus.NewRegistry(), false)
}

// NewWithRegistry registers the collectors on registry. Process and Go
// runtime collectors are added when withRuntime is set.
func NewWithRegistry(registry *prometheus.Registry, withRuntime bool) (*Metrics, error) {
	m := &Metrics{
		registry: registry,
		submissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "score_submissions_total",
				Help:      "Score submissions by kind and outcome",
			},
			[]string{"kind", "outcome"}, // kind: biggest_catch, session_catches, legendary_catches, tournament
		),
		webhookDeliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_deliveries_total",
				Help:      "Discord webhook deliveries by channel and status",
			},
			[]string{"channel", "status"}, // channel: fish, tournament; status: sent, failed, skipped
		),
		announcementsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tournament_announcements_total",
				Help:      "Tournament announcements by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route and status code",
			},
			[]string{"method", "route", "status_code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		eventSubscribersGauge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "event_stream_subscribers",
				Help:      "Open tournament event streams",
			},
		),
	}

	collectorsToRegister := []prometheus.Collector{
		m.submissionsTotal,
		m.webhookDeliveries,
		m.announcementsTotal,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.eventSubscribersGauge,
	}
	if withRuntime {
		collectorsToRegister = append(collectorsToRegister,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	for _, collector := range collectorsToRegister {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Registry returns the backing registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RecordSubmission(kind string, outcome string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) RecordDelivery(channel string, status string) {
	if m == nil {
		return
	}
	m.webhookDeliveries.WithLabelValues(channel, status).Inc()
}

func (m *Metrics) RecordAnnouncement(kind string, outcome string) {
	if m == nil {
		return
	}
	m.announcementsTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveRequest records a completed HTTP request. Route should be the
// matched pattern, not the raw path.
func (m *Metrics) ObserveRequest(method string, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) StreamOpened() {
	if m == nil {
		return
	}
	m.eventSubscribersGauge.Inc()
}

func (m *Metrics) StreamClosed() {
	if m == nil {
		return
	}
	m.eventSubscribersGauge.Dec()
}
