package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		llmCallsLatencyMs,
		llmCompletionTokens,
	)
}

var (
	llmCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_calls_latency_ms",
			Help:    "LLM call latency distribution in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 10000, 30000},
		},
		[]string{"provider", "op", "success"},
	)

	llmCompletionTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_completion_tokens_total",
			Help: "Sum of completion tokens billed per provider.",
		},
		[]string{"provider"},
	)
)

func ObserveLLMCall(provider, op string, success bool, d time.Duration) {
	llmCallsLatencyMs.WithLabelValues(norm(provider), norm(op), strconv.FormatBool(success)).
		Observe(float64(d.Milliseconds()))
}

func AddCompletionTokens(provider string, n int64) {
	if n <= 0 {
		return
	}
	llmCompletionTokens.WithLabelValues(norm(provider)).Add(float64(n))
}
