// Package metrics provides Prometheus metrics export for the
// consultation pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter exports pipeline metrics in Prometheus format.
type PrometheusExporter struct {
	registry *prometheus.Registry

	// Request metrics
	requestLatency *prometheus.HistogramVec
	requests       *prometheus.CounterVec
	activeSessions prometheus.Gauge

	// Classification metrics
	classifications *prometheus.CounterVec

	// Tool call metrics
	toolCalls   *prometheus.CounterVec
	toolLatency *prometheus.HistogramVec
	toolErrors  *prometheus.CounterVec

	// Execution metrics
	executorSteps  *prometheus.HistogramVec
	forcedAnswers  *prometheus.CounterVec
	criticVerdicts *prometheus.CounterVec
	refinements    prometheus.Counter

	// LLM token metrics
	llmTokensUsed *prometheus.CounterVec
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.requestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lexisense",
			Subsystem: "orchestrator",
			Name:      "request_latency_seconds",
			Help:      "End-to-end consultation latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"domain", "intent"},
	)

	e.requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexisense",
			Subsystem: "orchestrator",
			Name:      "requests_total",
			Help:      "Total number of consultation requests",
		},
		[]string{"domain", "intent", "status"},
	)

	e.activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lexisense",
			Subsystem: "orchestrator",
			Name:      "active_sessions",
			Help:      "Number of live sessions",
		},
	)

	e.classifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexisense",
			Subsystem: "routing",
			Name:      "classifications_total",
			Help:      "Total number of intent classifications",
		},
		[]string{"domain", "intent", "method"},
	)

	e.toolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexisense",
			Subsystem: "tools",
			Name:      "calls_total",
			Help:      "Total number of tool calls",
		},
		[]string{"tool_name", "status"},
	)

	e.toolLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lexisense",
			Subsystem: "tools",
			Name:      "latency_seconds",
			Help:      "Tool call latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"tool_name"},
	)

	e.toolErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexisense",
			Subsystem: "tools",
			Name:      "errors_total",
			Help:      "Total number of tool errors",
		},
		[]string{"tool_name", "error_type"},
	)

	e.executorSteps = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lexisense",
			Subsystem: "executor",
			Name:      "steps",
			Help:      "Reasoning steps used per execution",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10},
		},
		[]string{"intent"},
	)

	e.forcedAnswers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexisense",
			Subsystem: "executor",
			Name:      "forced_answers_total",
			Help:      "Executions that hit the step budget and forced synthesis",
		},
		[]string{"intent"},
	)

	e.criticVerdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexisense",
			Subsystem: "critic",
			Name:      "verdicts_total",
			Help:      "Critic verdicts by outcome",
		},
		[]string{"acceptable"},
	)

	e.refinements = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lexisense",
			Subsystem: "critic",
			Name:      "refinements_total",
			Help:      "Total refinement rounds executed",
		},
	)

	e.llmTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexisense",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Total LLM tokens consumed",
		},
		[]string{"token_type"},
	)

	registry.MustRegister(
		e.requestLatency,
		e.requests,
		e.activeSessions,
		e.classifications,
		e.toolCalls,
		e.toolLatency,
		e.toolErrors,
		e.executorSteps,
		e.forcedAnswers,
		e.criticVerdicts,
		e.refinements,
		e.llmTokensUsed,
	)

	return e
}

// RecordRequest records one finished consultation.
func (e *PrometheusExporter) RecordRequest(domain, intent string, latency time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	e.requests.WithLabelValues(domain, intent, status).Inc()
	e.requestLatency.WithLabelValues(domain, intent).Observe(latency.Seconds())
}

// RecordClassification records a classification and which tier
// produced it (model, rules, default).
func (e *PrometheusExporter) RecordClassification(domain, intent, method string) {
	e.classifications.WithLabelValues(domain, intent, method).Inc()
}

// RecordToolCall records a tool call metric.
func (e *PrometheusExporter) RecordToolCall(toolName string, latency time.Duration, success bool, errorType string) {
	status := "success"
	if !success {
		status = "error"
		if errorType != "" {
			e.toolErrors.WithLabelValues(toolName, errorType).Inc()
		}
	}
	e.toolCalls.WithLabelValues(toolName, status).Inc()
	e.toolLatency.WithLabelValues(toolName).Observe(latency.Seconds())
}

// RecordExecution records steps used and whether synthesis was forced.
func (e *PrometheusExporter) RecordExecution(intent string, stepsUsed int, forced bool) {
	e.executorSteps.WithLabelValues(intent).Observe(float64(stepsUsed))
	if forced {
		e.forcedAnswers.WithLabelValues(intent).Inc()
	}
}

// RecordVerdict records one critic verdict.
func (e *PrometheusExporter) RecordVerdict(acceptable bool) {
	label := "false"
	if acceptable {
		label = "true"
	}
	e.criticVerdicts.WithLabelValues(label).Inc()
}

// RecordRefinement counts one refinement round.
func (e *PrometheusExporter) RecordRefinement() {
	e.refinements.Inc()
}

// RecordLLMTokens records LLM token usage.
func (e *PrometheusExporter) RecordLLMTokens(tokenType string, count int) {
	e.llmTokensUsed.WithLabelValues(tokenType).Add(float64(count))
}

// SetActiveSessions sets the live session gauge.
func (e *PrometheusExporter) SetActiveSessions(count int) {
	e.activeSessions.Set(float64(count))
}

// Handler returns the HTTP handler for the metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
