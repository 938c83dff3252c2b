package generation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "course_builder_ai_requests_total",
			Help: "Total number of requests to the AI API.",
		},
		[]string{"model", "operation", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "course_builder_ai_request_duration_seconds",
			Help:    "Histogram of AI API request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model", "operation"},
	)
	aiPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "course_builder_ai_prompt_tokens",
			Help:    "Histogram of prompt token counts.",
			Buckets: prometheus.LinearBuckets(250, 250, 20),
		},
		[]string{"model", "operation"},
	)
	aiCompletionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "course_builder_ai_completion_tokens",
			Help:    "Histogram of completion token counts.",
			Buckets: prometheus.LinearBuckets(100, 100, 20),
		},
		[]string{"model", "operation"},
	)
	aiFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "course_builder_ai_fallbacks_total",
			Help: "Total number of generation calls degraded to mock payloads.",
		},
		[]string{"operation"},
	)
)

func recordAIRequest(model string, op Operation, status string, duration time.Duration) {
	aiRequestsTotal.With(prometheus.Labels{"model": model, "operation": string(op), "status": status}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": model, "operation": string(op)}).Observe(duration.Seconds())
}

func recordAITokens(model string, op Operation, usage UsageInfo) {
	if usage.TotalTokens == 0 {
		return
	}
	aiPromptTokens.With(prometheus.Labels{"model": model, "operation": string(op)}).Observe(float64(usage.PromptTokens))
	aiCompletionTokens.With(prometheus.Labels{"model": model, "operation": string(op)}).Observe(float64(usage.CompletionTokens))
}

func recordFallback(op Operation) {
	aiFallbacksTotal.With(prometheus.Labels{"operation": string(op)}).Inc()
}
