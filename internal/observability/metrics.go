package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	HTTPRequests      *prometheus.CounterVec
	DocumentOps       *prometheus.CounterVec
	CleanupRequests   *prometheus.CounterVec
	CleanupLatency    prometheus.Histogram
	ActiveDictations  prometheus.Gauge
	RecognizerRestart *prometheus.CounterVec
	WSMessages        *prometheus.CounterVec

	latency *latencyWindow
}

// NewMetrics registers the instruments on the default registry. It must be
// called at most once per namespace.
func NewMetrics(namespace string) *Metrics {
	return newMetrics(namespace, promauto.With(prometheus.DefaultRegisterer))
}

// NewMetricsWithRegistry registers on reg, which lets tests build independent
// instances.
func NewMetricsWithRegistry(namespace string, reg prometheus.Registerer) *Metrics {
	return newMetrics(namespace, promauto.With(reg))
}

func newMetrics(namespace string, f promauto.Factory) *Metrics {
	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status class.",
		}, []string{"route", "status"}),
		DocumentOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_operations_total",
			Help:      "Document store operations by kind and outcome.",
		}, []string{"op", "outcome"}),
		CleanupRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_cleanup_requests_total",
			Help:      "AI cleanup calls by outcome.",
		}, []string{"outcome"}),
		CleanupLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_cleanup_latency_ms",
			Help:      "Latency of the AI cleanup call in milliseconds.",
			Buckets:   []float64{250, 500, 1000, 2000, 4000, 8000, 16000},
		}),
		ActiveDictations: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_dictations",
			Help:      "Number of connected dictation sessions.",
		}),
		RecognizerRestart: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognizer_restarts_total",
			Help:      "Recognizer lifecycle transitions by reason.",
		}, []string{"reason"}),
		WSMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		latency: newLatencyWindow(256),
	}
}

// ObserveCleanup records the outcome and duration of one AI cleanup call. A
// zero duration counts a call that never reached the model.
func (m *Metrics) ObserveCleanup(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.CleanupRequests.WithLabelValues(outcome).Inc()
	if d <= 0 {
		return
	}
	ms := float64(d.Milliseconds())
	m.CleanupLatency.Observe(ms)
	m.latency.Observe(opAICleanup, ms)
}

// ObserveDocumentOp records a store call.
func (m *Metrics) ObserveDocumentOp(op string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.DocumentOps.WithLabelValues(op, outcome).Inc()
	m.latency.Observe(opDocumentPrefix+op, float64(d.Milliseconds()))
}

// ObserveIndicator counts a named occurrence in the rolling snapshot.
func (m *Metrics) ObserveIndicator(name string) {
	if m == nil {
		return
	}
	m.latency.ObserveIndicator(name)
}

// SnapshotLatency returns rolling percentiles per operation.
func (m *Metrics) SnapshotLatency() LatencySnapshot {
	if m == nil {
		return LatencySnapshot{GeneratedAt: time.Now().UTC(), Operations: []OperationStats{}}
	}
	return m.latency.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
