// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// LLMCompletionDuration tracks provider call duration, failures included.
	LLMCompletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_completion_duration_seconds",
			Help:    "LLM completion duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 45, 60},
		},
		[]string{"provider", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"provider", "direction"},
	)

	// ChatConnectionsActive tracks open chat sockets.
	ChatConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_connections_active",
			Help: "Number of active chat websocket connections",
		},
	)

	// ChatCyclesTotal tracks completed chat cycles by outcome.
	ChatCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_cycles_total",
			Help: "Total chat cycles by outcome",
		},
		[]string{"outcome"},
	)

	// ChatProtocolErrorsTotal tracks frames answered with a protocol error.
	ChatProtocolErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_protocol_errors_total",
			Help: "Total chat frames rejected or failed",
		},
		[]string{"reason"},
	)

	// RecommendationsTotal tracks recommendation requests by outcome.
	RecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendations_total",
			Help: "Total recommendation requests by outcome",
		},
		[]string{"outcome"},
	)

	// NATSPublishTotal tracks cycle events published to JetStream.
	NATSPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_publish_total",
			Help: "Cycle events published to JetStream",
		},
		[]string{"status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordCompletion records a provider call.
func RecordCompletion(provider, status string, duration float64) {
	LLMCompletionDuration.WithLabelValues(provider, status).Observe(duration)
}

// RecordTokens records token usage for a successful call.
func RecordTokens(provider string, tokensIn, tokensOut int) {
	LLMTokensTotal.WithLabelValues(provider, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(provider, "out").Add(float64(tokensOut))
}

// IncrementChatConnections increments the active chat connection count.
func IncrementChatConnections() {
	ChatConnectionsActive.Inc()
}

// DecrementChatConnections decrements the active chat connection count.
func DecrementChatConnections() {
	ChatConnectionsActive.Dec()
}
