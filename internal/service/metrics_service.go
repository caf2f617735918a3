package service

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns every Prometheus collector the service exports. All
// methods are safe on a nil receiver so callers may run without metrics.
type MetricsService struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	cacheLatency       prometheus.Histogram
	cacheWrite         prometheus.Histogram
	cacheHitRatio      prometheus.Gauge
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	transitions        *prometheus.CounterVec
	created            prometheus.Counter
	duplicates         prometheus.Counter
	capacityExhausted  prometheus.Counter
	activityFailures   prometheus.Counter
	notifyFailures     *prometheus.CounterVec
	notifyDropped      prometheus.Counter
	placementReversals prometheus.Counter

	cacheHitCount  uint64
	cacheMissCount uint64
}

const metricsNamespace = "recruit"

func counter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{Namespace: metricsNamespace, Name: name, Help: help})
}

func histogram(name, help string) prometheus.Histogram {
	return prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      name,
		Help:      help,
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5},
	})
}

// NewMetricsService builds a private registry holding the HTTP, cache and
// submission collectors plus the Go runtime and process collectors.
func NewMetricsService() *MetricsService {
	httpLabels := []string{"method", "path", "status"}
	m := &MetricsService{
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, httpLabels),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, httpLabels),
		cacheLatency: histogram("report_cache_read_seconds", "Latency of report cache reads"),
		cacheWrite:   histogram("report_cache_write_seconds", "Latency of report cache writes"),
		cacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "report_cache_hit_ratio",
			Help:      "Share of report cache lookups served from cache since start",
		}),
		cacheHits:   counter("report_cache_hits_total", "Report cache hits"),
		cacheMisses: counter("report_cache_misses_total", "Report cache misses"),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "submission_transitions_total",
			Help:      "Committed submission state transitions",
		}, []string{"from", "to"}),
		created:           counter("submissions_created_total", "Submissions created"),
		duplicates:        counter("submission_duplicates_total", "Create attempts refused because the pair already has an active submission"),
		capacityExhausted: counter("submission_capacity_exhausted_total", "Placements recorded against jobs with no remaining openings"),
		activityFailures:  counter("activity_record_failures_total", "Activity records that could not be written"),
		notifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "notification_failures_total",
			Help:      "Notification sink deliveries that failed",
		}, []string{"sink"}),
		notifyDropped:      counter("notification_dropped_total", "Notifications dropped because the queue was full or stopped"),
		placementReversals: counter("submission_placement_reversals_total", "Placements reversed by a correction action"),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestDuration, m.requestTotal,
		m.cacheLatency, m.cacheWrite, m.cacheHitRatio, m.cacheHits, m.cacheMisses,
		m.transitions, m.created, m.duplicates, m.capacityExhausted, m.activityFailures,
		m.notifyFailures, m.notifyDropped, m.placementReversals,
	)
	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records one report cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	m.cacheHitRatio.Set(float64(hits) / float64(hits+atomic.LoadUint64(&m.cacheMissCount)))
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordTransition counts a committed state change.
func (m *MetricsService) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// RecordCreated counts a committed submission creation.
func (m *MetricsService) RecordCreated() {
	if m == nil {
		return
	}
	m.created.Inc()
}

// RecordDuplicate counts a refused duplicate creation.
func (m *MetricsService) RecordDuplicate() {
	if m == nil {
		return
	}
	m.duplicates.Inc()
}

// RecordCapacityExhausted counts an over-committed placement.
func (m *MetricsService) RecordCapacityExhausted() {
	if m == nil {
		return
	}
	m.capacityExhausted.Inc()
}

// RecordActivityFailure counts an activity record that was rolled back.
func (m *MetricsService) RecordActivityFailure() {
	if m == nil {
		return
	}
	m.activityFailures.Inc()
}

// RecordNotificationFailure counts a failed sink delivery.
func (m *MetricsService) RecordNotificationFailure(sink string) {
	if m == nil {
		return
	}
	m.notifyFailures.WithLabelValues(sink).Inc()
}

// RecordNotificationDropped counts an event that never reached the queue.
func (m *MetricsService) RecordNotificationDropped() {
	if m == nil {
		return
	}
	m.notifyDropped.Inc()
}

// RecordPlacementReversal counts a committed placement reversal.
func (m *MetricsService) RecordPlacementReversal() {
	if m == nil {
		return
	}
	m.placementReversals.Inc()
}
