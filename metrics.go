package bgclient

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Event is an observability event emitted by the executor: one AttemptEvent
// per network attempt and one CallEvent per call resolution.
type Event interface {
	isEvent()
}

// AttemptEvent describes one network attempt.
type AttemptEvent struct {
	Service         ServiceName
	Endpoint        string
	ChainPosition   int // 1-based position in the fallback chain
	EndpointAttempt int // 1-based attempt number on this endpoint
	WalkAttempt     int // 1-based attempt number across the whole walk
	Classification  Classification
	StatusCode      int
	Elapsed         time.Duration
	CorrelationID   string
}

func (AttemptEvent) isEvent() {}

// CallEvent describes the resolution of one logical call.
type CallEvent struct {
	Service       ServiceName
	Outcome       OutcomeStatus
	TotalAttempts int
	Elapsed       time.Duration
	CorrelationID string
}

func (CallEvent) isEvent() {}

// Recorder receives observability events. Implementations must be safe for
// concurrent use; the executor calls Record from every in-flight call.
type Recorder interface {
	Record(event Event)
}

// NopRecorder discards all events.
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(Event) {}

// LogRecorder emits events as structured log lines.
type LogRecorder struct {
	Logger *slog.Logger
}

// Record implements Recorder.
func (r LogRecorder) Record(event Event) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch e := event.(type) {
	case AttemptEvent:
		logger.Debug("attempt",
			"service", string(e.Service),
			"endpoint", e.Endpoint,
			"chain_position", e.ChainPosition,
			"endpoint_attempt", e.EndpointAttempt,
			"walk_attempt", e.WalkAttempt,
			"classification", e.Classification.String(),
			"status", e.StatusCode,
			"elapsed", e.Elapsed,
			"correlation_id", e.CorrelationID)
	case CallEvent:
		logger.Info("call resolved",
			"service", string(e.Service),
			"outcome", e.Outcome.String(),
			"attempts", e.TotalAttempts,
			"elapsed", e.Elapsed,
			"correlation_id", e.CorrelationID)
	}
}

// MetricsRecorder exports attempt and call metrics to Prometheus.
type MetricsRecorder struct {
	attempts        *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	calls           *prometheus.CounterVec
	callDuration    *prometheus.HistogramVec
}

// NewMetricsRecorder creates a MetricsRecorder and registers its collectors
// with reg. Pass prometheus.DefaultRegisterer for the process-wide registry.
func NewMetricsRecorder(reg prometheus.Registerer) *MetricsRecorder {
	r := &MetricsRecorder{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bgclient",
			Name:      "attempts_total",
			Help:      "Network attempts by service and classification.",
		}, []string{"service", "classification"}),
		attemptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bgclient",
			Name:      "attempt_duration_seconds",
			Help:      "Latency of individual network attempts.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service"}),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bgclient",
			Name:      "calls_total",
			Help:      "Logical calls by service and terminal outcome.",
		}, []string{"service", "outcome"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bgclient",
			Name:      "call_duration_seconds",
			Help:      "End-to-end latency of logical calls, retries included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "outcome"}),
	}
	reg.MustRegister(r.attempts, r.attemptDuration, r.calls, r.callDuration)
	return r
}

// Record implements Recorder.
func (r *MetricsRecorder) Record(event Event) {
	switch e := event.(type) {
	case AttemptEvent:
		r.attempts.WithLabelValues(string(e.Service), e.Classification.String()).Inc()
		r.attemptDuration.WithLabelValues(string(e.Service)).Observe(e.Elapsed.Seconds())
	case CallEvent:
		r.calls.WithLabelValues(string(e.Service), e.Outcome.String()).Inc()
		r.callDuration.WithLabelValues(string(e.Service), e.Outcome.String()).Observe(e.Elapsed.Seconds())
	}
}
