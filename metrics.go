package console

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRecorder receives measurements from the invoker and the stream
// connector. Implementations must be safe for concurrent use.
type MetricsRecorder interface {
	// IncInvocations counts one invocation attempt (by action kind).
	IncInvocations(action string)
	// IncInvocationErrors counts one failed invocation (by action kind and
	// failure reason).
	IncInvocationErrors(action, reason string)
	// ObserveInvocationLatency records one invocation duration in
	// milliseconds (by action kind).
	ObserveInvocationLatency(action string, durationMs float64, success bool)

	// IncStreamEvents counts one normalized event (by wire name).
	IncStreamEvents(kind string)
	// IncStreamErrors counts one per-record or transport error on the stream.
	IncStreamErrors()
	// IncStateTransitions counts one connection state transition.
	IncStateTransitions(state ConnectionState)
}

// nopMetrics is the recorder used when none is configured.
type nopMetrics struct{}

func (nopMetrics) IncInvocations(string)                          {}
func (nopMetrics) IncInvocationErrors(string, string)             {}
func (nopMetrics) ObserveInvocationLatency(string, float64, bool) {}
func (nopMetrics) IncStreamEvents(string)                         {}
func (nopMetrics) IncStreamErrors()                               {}
func (nopMetrics) IncStateTransitions(ConnectionState)            {}

// InMemoryMetricsRecorder is a dependency-free recorder, convenient for
// test assertions.
type InMemoryMetricsRecorder struct {
	mu               sync.Mutex
	Invocations      map[string]int
	InvocationErrors map[string]map[string]int
	LatencyMs        map[string][]float64
	LatencySuccess   map[string][]bool
	StreamEvents     map[string]int
	StreamErrors     int
	StateTransitions map[ConnectionState]int
}

// NewInMemoryMetricsRecorder creates an empty in-memory recorder.
func NewInMemoryMetricsRecorder() *InMemoryMetricsRecorder {
	return &InMemoryMetricsRecorder{
		Invocations:      map[string]int{},
		InvocationErrors: map[string]map[string]int{},
		LatencyMs:        map[string][]float64{},
		LatencySuccess:   map[string][]bool{},
		StreamEvents:     map[string]int{},
		StateTransitions: map[ConnectionState]int{},
	}
}

func (m *InMemoryMetricsRecorder) IncInvocations(action string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Invocations[action]++
}

func (m *InMemoryMetricsRecorder) IncInvocationErrors(action, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.InvocationErrors[action]; !ok {
		m.InvocationErrors[action] = map[string]int{}
	}
	m.InvocationErrors[action][reason]++
}

func (m *InMemoryMetricsRecorder) ObserveInvocationLatency(action string, durationMs float64, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LatencyMs[action] = append(m.LatencyMs[action], durationMs)
	m.LatencySuccess[action] = append(m.LatencySuccess[action], success)
}

func (m *InMemoryMetricsRecorder) IncStreamEvents(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StreamEvents[kind]++
}

func (m *InMemoryMetricsRecorder) IncStreamErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StreamErrors++
}

func (m *InMemoryMetricsRecorder) IncStateTransitions(state ConnectionState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StateTransitions[state]++
}

// PromRecorderConfig configures the prometheus-backed recorder.
type PromRecorderConfig struct {
	Namespace string
	Subsystem string
	// Buckets are latency buckets in milliseconds; empty means defaults.
	Buckets []float64
}

// DefaultPromRecorderConfig returns the default prometheus recorder config.
func DefaultPromRecorderConfig() *PromRecorderConfig {
	return &PromRecorderConfig{
		Namespace: "console",
		Subsystem: "gateway",
		Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000},
	}
}

// PromRecorderOption mutates a PromRecorderConfig.
type PromRecorderOption func(*PromRecorderConfig)

// WithNamespace sets the metric namespace.
func WithNamespace(ns string) PromRecorderOption {
	return func(cfg *PromRecorderConfig) {
		cfg.Namespace = ns
	}
}

// WithSubsystem sets the metric subsystem.
func WithSubsystem(subsystem string) PromRecorderOption {
	return func(cfg *PromRecorderConfig) {
		cfg.Subsystem = subsystem
	}
}

// WithBuckets sets the latency histogram buckets (milliseconds).
func WithBuckets(buckets []float64) PromRecorderOption {
	return func(cfg *PromRecorderConfig) {
		cfg.Buckets = buckets
	}
}

// PrometheusMetricsRecorder exports the recorder measurements as prometheus
// metrics.
type PrometheusMetricsRecorder struct {
	invocations      *prometheus.CounterVec
	invocationErrors *prometheus.CounterVec
	latency          *prometheus.HistogramVec
	streamEvents     *prometheus.CounterVec
	streamErrors     prometheus.Counter
	stateTransitions *prometheus.CounterVec
}

var _ MetricsRecorder = (*PrometheusMetricsRecorder)(nil)

// NewPrometheusMetricsRecorder builds a recorder and registers its
// collectors with the given registerer.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer, opts ...PromRecorderOption) *PrometheusMetricsRecorder {
	cfg := DefaultPromRecorderConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	r := &PrometheusMetricsRecorder{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "invocations_total",
			Help:      "Invocation attempts by action kind.",
		}, []string{"action"}),
		invocationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "invocation_errors_total",
			Help:      "Failed invocations by action kind and reason.",
		}, []string{"action", "reason"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "invocation_latency_ms",
			Help:      "Invocation latency in milliseconds by action kind.",
			Buckets:   cfg.Buckets,
		}, []string{"action", "success"}),
		streamEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "stream_events_total",
			Help:      "Normalized stream events by kind.",
		}, []string{"kind"}),
		streamErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "stream_errors_total",
			Help:      "Stream transport and mapping errors.",
		}),
		stateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "stream_state_transitions_total",
			Help:      "Connection state transitions by resulting state.",
		}, []string{"state"}),
	}

	reg.MustRegister(
		r.invocations,
		r.invocationErrors,
		r.latency,
		r.streamEvents,
		r.streamErrors,
		r.stateTransitions,
	)
	return r
}

func (r *PrometheusMetricsRecorder) IncInvocations(action string) {
	r.invocations.WithLabelValues(action).Inc()
}

func (r *PrometheusMetricsRecorder) IncInvocationErrors(action, reason string) {
	r.invocationErrors.WithLabelValues(action, reason).Inc()
}

func (r *PrometheusMetricsRecorder) ObserveInvocationLatency(action string, durationMs float64, success bool) {
	label := "false"
	if success {
		label = "true"
	}
	r.latency.WithLabelValues(action, label).Observe(durationMs)
}

func (r *PrometheusMetricsRecorder) IncStreamEvents(kind string) {
	r.streamEvents.WithLabelValues(kind).Inc()
}

func (r *PrometheusMetricsRecorder) IncStreamErrors() {
	r.streamErrors.Inc()
}

func (r *PrometheusMetricsRecorder) IncStateTransitions(state ConnectionState) {
	r.stateTransitions.WithLabelValues(state.String()).Inc()
}
