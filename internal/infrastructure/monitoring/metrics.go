package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Lifecycle metrics
	WorkspacesOpen   prometheus.Gauge
	WorkspacesTotal  prometheus.Counter
	LifecycleEvents  *prometheus.CounterVec
	ObserverFailures *prometheus.CounterVec
	ObserverDuration *prometheus.HistogramVec

	// Service registry metrics
	ServiceConstructions *prometheus.CounterVec
	ServiceDuration      *prometheus.HistogramVec
	ServiceEntries       prometheus.Gauge
	ServiceEvictions     prometheus.Counter

	// Save pass metrics
	SaveActions *prometheus.CounterVec

	// Snapshot for JSON API - track current values
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current metric values for the JSON API
type Snapshot struct {
	WorkspacesOpen       int64 `json:"workspaces_open"`
	LifecycleEvents      int64 `json:"lifecycle_events"`
	ObserverFailures     int64 `json:"observer_failures"`
	ServiceConstructions int64 `json:"service_constructions"`
	ServiceFailures      int64 `json:"service_failures"`
	ServiceEvictions     int64 `json:"service_evictions"`
	DocumentsFixed       int64 `json:"documents_fixed"`
}

// NewMetrics creates a metrics collector backed by its own registry, so
// several collectors can coexist in one process (tests, embedded hubs).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wshub_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wshub_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method", "path"},
		),

		// Lifecycle metrics
		WorkspacesOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "wshub_workspaces_open",
				Help: "Number of currently open workspaces",
			},
		),
		WorkspacesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "wshub_workspaces_opened_total",
				Help: "Total number of workspaces opened",
			},
		),
		LifecycleEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wshub_lifecycle_events_total",
				Help: "Total number of lifecycle events dispatched",
			},
			[]string{"event"},
		),
		ObserverFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wshub_observer_failures_total",
				Help: "Total number of observer failures during dispatch",
			},
			[]string{"observer", "event"},
		),
		ObserverDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wshub_observer_duration_seconds",
				Help:    "Observer callback duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"observer", "event"},
		),

		// Service registry metrics
		ServiceConstructions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wshub_service_constructions_total",
				Help: "Total number of service factory invocations",
			},
			[]string{"service", "status"},
		),
		ServiceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wshub_service_construction_seconds",
				Help:    "Service construction duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"service"},
		),
		ServiceEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "wshub_service_entries",
				Help: "Number of cached per-workspace service instances",
			},
		),
		ServiceEvictions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "wshub_service_evictions_total",
				Help: "Total number of service instances evicted",
			},
		),

		// Save pass metrics
		SaveActions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wshub_save_actions_total",
				Help: "Total number of per-workspace save actions by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// Registry returns the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler exposing the metrics in Prometheus format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordWorkspaceOpened records a workspace entering the open set
func (m *Metrics) RecordWorkspaceOpened() {
	m.WorkspacesOpen.Inc()
	m.WorkspacesTotal.Inc()

	m.mu.Lock()
	m.snapshot.WorkspacesOpen++
	m.mu.Unlock()
}

// RecordWorkspaceClosed records a workspace leaving the open set
func (m *Metrics) RecordWorkspaceClosed() {
	m.WorkspacesOpen.Dec()

	m.mu.Lock()
	m.snapshot.WorkspacesOpen--
	m.mu.Unlock()
}

// RecordLifecycleEvent records one dispatched lifecycle event
func (m *Metrics) RecordLifecycleEvent(event string) {
	m.LifecycleEvents.WithLabelValues(event).Inc()

	m.mu.Lock()
	m.snapshot.LifecycleEvents++
	m.mu.Unlock()
}

// RecordObserverCall records one observer callback and whether it failed
func (m *Metrics) RecordObserverCall(observer, event string, duration time.Duration, failed bool) {
	m.ObserverDuration.WithLabelValues(observer, event).Observe(duration.Seconds())
	if !failed {
		return
	}
	m.ObserverFailures.WithLabelValues(observer, event).Inc()

	m.mu.Lock()
	m.snapshot.ObserverFailures++
	m.mu.Unlock()
}

// RecordServiceConstruction records one factory invocation
func (m *Metrics) RecordServiceConstruction(service string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ServiceConstructions.WithLabelValues(service, status).Inc()
	m.ServiceDuration.WithLabelValues(service).Observe(duration.Seconds())

	m.mu.Lock()
	if err != nil {
		m.snapshot.ServiceFailures++
	} else {
		m.snapshot.ServiceConstructions++
	}
	m.mu.Unlock()
}

// RecordServiceEvictions records evicted instances
func (m *Metrics) RecordServiceEvictions(count int) {
	m.ServiceEvictions.Add(float64(count))

	m.mu.Lock()
	m.snapshot.ServiceEvictions += int64(count)
	m.mu.Unlock()
}

// SetServiceEntries sets the number of cached service instances
func (m *Metrics) SetServiceEntries(count int) {
	m.ServiceEntries.Set(float64(count))
}

// RecordSaveAction records one workspace visited by a save pass and the
// number of documents it rewrote
func (m *Metrics) RecordSaveAction(outcome string, fixed int) {
	m.SaveActions.WithLabelValues(outcome).Inc()
	if fixed == 0 {
		return
	}

	m.mu.Lock()
	m.snapshot.DocumentsFixed += int64(fixed)
	m.mu.Unlock()
}

// Snapshot returns a copy of the current counters
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
