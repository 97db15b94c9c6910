// Package metrics provides Prometheus metrics for the overlay projector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the projector.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Feed metrics - the upstream scoreboard connection
	feedConnected  prometheus.Gauge
	feedReconnects prometheus.Counter
	feedMessages   prometheus.Counter

	// Delta metrics - the projection write path
	deltasApplied *prometheus.CounterVec
	deltasIgnored prometheus.Counter
	deltasNoop    prometheus.Counter
	rawStateSize  prometheus.Gauge
	deltaQueueLen prometheus.Gauge

	// Derived cache metrics
	cacheInvalidations *prometheus.CounterVec
	cacheRebuilds      *prometheus.CounterVec

	// Render metrics - the projection read path
	renderPasses       prometheus.Counter
	renderBatchSize    prometheus.Histogram
	renderErrors       prometheus.Counter
	renderCoalesced    prometheus.Counter
	debounceSuppressed *prometheus.CounterVec

	// HTTP and stream metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	streamClients       prometheus.Gauge

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "crg",
		subsystem:        "overlay",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.feedConnected = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "feed_connected",
		Help:      "1 when the scoreboard feed connection is up, 0 otherwise",
	})

	m.feedReconnects = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "feed_reconnects_total",
		Help:      "Total number of feed reconnect attempts",
	})

	m.feedMessages = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "feed_messages_total",
		Help:      "Total number of state messages received from the feed",
	})

	m.deltasApplied = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "deltas_applied_total",
			Help:      "Total number of feed deltas applied, by key kind",
		},
		[]string{"kind"},
	)

	m.deltasIgnored = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "deltas_ignored_total",
		Help:      "Total number of unrecognized feed keys skipped",
	})

	m.deltasNoop = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "deltas_noop_total",
		Help:      "Total number of deltas that changed nothing (idempotent re-applies)",
	})

	m.rawStateSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "raw_state_keys",
		Help:      "Current number of keys held in the raw snapshot",
	})

	m.deltaQueueLen = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "delta_queue_length",
		Help:      "Current length of the delta apply queue (backlog indicator)",
	})

	m.cacheInvalidations = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "derived_cache_invalidations_total",
			Help:      "Total explicit derived-cache invalidations, by cache",
		},
		[]string{"cache"},
	)

	m.cacheRebuilds = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "derived_cache_rebuilds_total",
			Help:      "Total derived-cache recomputes (full snapshot scans)",
		},
		[]string{"cache"},
	)

	m.renderPasses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "render_passes_total",
		Help:      "Total number of frame batches executed",
	})

	m.renderBatchSize = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "render_batch_size",
		Help:      "Number of coalesced jobs per frame batch",
		Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
	})

	m.renderErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "render_errors_total",
		Help:      "Total number of recovered panics in render batches",
	})

	m.renderCoalesced = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "render_coalesced_total",
		Help:      "Total number of batch submissions merged into a pending one",
	})

	m.debounceSuppressed = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "debounce_suppressed_total",
			Help:      "Total number of debounce timers superseded, by channel",
		},
		[]string{"channel"},
	)

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.streamClients = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stream_clients",
		Help:      "Current number of connected overlay stream clients",
	})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "Current allocated heap memory in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Current number of goroutines",
	})
}

// GetRegistry returns the custom registry used by the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Package-level helpers delegating to the global manager.

// UpdateFeedConnected records the feed connection state.
func UpdateFeedConnected(up bool) {
	if up {
		globalManager.feedConnected.Set(1)
		return
	}
	globalManager.feedConnected.Set(0)
}

// RecordFeedReconnect counts a reconnect attempt.
func RecordFeedReconnect() { globalManager.feedReconnects.Inc() }

// RecordFeedMessage counts one state message from the feed.
func RecordFeedMessage() { globalManager.feedMessages.Inc() }

// RecordDeltaApplied counts an applied delta by key kind.
func RecordDeltaApplied(kind string) { globalManager.deltasApplied.WithLabelValues(kind).Inc() }

// RecordDeltaIgnored counts an unrecognized key.
func RecordDeltaIgnored() { globalManager.deltasIgnored.Inc() }

// RecordDeltaNoop counts a delta that changed nothing.
func RecordDeltaNoop() { globalManager.deltasNoop.Inc() }

// UpdateRawStateSize records the raw snapshot size.
func UpdateRawStateSize(n int) { globalManager.rawStateSize.Set(float64(n)) }

// UpdateDeltaQueueLength records the apply-queue backlog.
func UpdateDeltaQueueLength(n int) { globalManager.deltaQueueLen.Set(float64(n)) }

// RecordCacheInvalidation counts an explicit cache invalidation.
func RecordCacheInvalidation(cache string) {
	globalManager.cacheInvalidations.WithLabelValues(cache).Inc()
}

// RecordCacheRebuild counts a derived-cache recompute.
func RecordCacheRebuild(cache string) {
	globalManager.cacheRebuilds.WithLabelValues(cache).Inc()
}

// RecordRenderPass counts one executed frame batch of the given size.
func RecordRenderPass(batchSize int) {
	globalManager.renderPasses.Inc()
	globalManager.renderBatchSize.Observe(float64(batchSize))
}

// RecordRenderError counts a recovered panic in a render batch.
func RecordRenderError() { globalManager.renderErrors.Inc() }

// RecordRenderCoalesced counts a merged batch submission.
func RecordRenderCoalesced() { globalManager.renderCoalesced.Inc() }

// RecordDebounceSuppressed counts a superseded debounce timer.
func RecordDebounceSuppressed(channel string) {
	globalManager.debounceSuppressed.WithLabelValues(channel).Inc()
}

// RecordHTTPRequest counts one HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records one HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// UpdateStreamClients records the connected stream client count.
func UpdateStreamClients(n int) { globalManager.streamClients.Set(float64(n)) }

// UpdateSystemMemoryUsage records allocated heap memory.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount records the goroutine count.
func UpdateSystemGoroutineCount(n int) { globalManager.systemGoroutineCount.Set(float64(n)) }
