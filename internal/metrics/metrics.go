package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LLM call metrics, labelled by pipeline step (generate, reflect, respond)
	LLMRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reflexion_llm_requests_total",
			Help: "Total number of language-model requests",
		},
		[]string{"step", "status"}, // status: success, error
	)

	LLMLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reflexion_llm_latency_seconds",
			Help:    "Language-model request latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"step"},
	)

	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reflexion_llm_tokens_total",
			Help: "Total tokens reported by the language-model service",
		},
		[]string{"step", "type"}, // type: prompt, completion
	)

	// Run metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reflexion_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"pipeline", "status"},
	)

	HistoryLength = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reflexion_history_length",
			Help:    "History length at the end of a refinement run",
			Buckets: prometheus.LinearBuckets(1, 2, 10),
		},
	)

	SchemaRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reflexion_schema_rejections_total",
			Help: "Structured responses rejected for not matching the answer schema",
		},
	)
)

// RecordRun counts a finished run.
func RecordRun(pipeline string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	RunsTotal.WithLabelValues(pipeline, status).Inc()
}
