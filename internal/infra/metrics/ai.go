package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(aiTokensIn, aiTokensOut, aiCallsLatencyMs, aiBudgetBlocks)
}

var (
	aiTokensIn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_in",
			Help: "Sum of prompt (input) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiTokensOut = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_out",
			Help: "Sum of completion (output) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_calls_latency_ms",
			Help:    "AI call latency distribution in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		},
		[]string{"provider", "model", "success"},
	)

	aiBudgetBlocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_prompt_budget_blocks",
			Help: "Calls refused because the prompt exceeded the token budget.",
		},
		[]string{"provider", "model"},
	)
)

func BudgetBlocked(provider, model string) {
	aiBudgetBlocks.WithLabelValues(norm(provider), norm(model)).Inc()
}

func ObserveChat(provider, model string, tokensIn, tokensOut int, elapsed time.Duration, success bool) {
	lbl := []string{norm(provider), norm(model)}
	aiTokensIn.WithLabelValues(lbl...).Add(float64(tokensIn))
	aiTokensOut.WithLabelValues(lbl...).Add(float64(tokensOut))
	aiCallsLatencyMs.WithLabelValues(norm(provider), norm(model), strconv.FormatBool(success)).
		Observe(float64(elapsed.Milliseconds()))
}
