// Package metrics provides Prometheus instrumentation for mathpipe runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/krello/mathpipe/internal/llm"
)

var (
	// RecordsTotal counts processed records by stage and status.
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mathpipe_records_total",
			Help: "Total number of records processed by stage and status.",
		},
		[]string{"stage", "status"}, // status: "ok" or "failed"
	)

	// RecordLatency tracks per-record processing latency in seconds.
	RecordLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mathpipe_record_latency_seconds",
			Help:    "Per-record processing latency in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	// TokenUsageTotal counts tokens consumed against the LLM endpoint.
	TokenUsageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mathpipe_token_usage_total",
			Help: "Total number of tokens consumed.",
		},
		[]string{"model", "direction"}, // direction: "input" or "output"
	)

	// RetriesTotal counts backoff retries taken by the LLM pool.
	RetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mathpipe_llm_retries_total",
			Help: "Total number of LLM request retries.",
		},
	)

	// InflightRequests tracks the number of in-flight LLM requests.
	InflightRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mathpipe_llm_inflight_requests",
			Help: "Number of currently in-flight LLM requests.",
		},
	)

	// DomainDecisionsTotal counts resolved domains by decision reason.
	DomainDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mathpipe_domain_decisions_total",
			Help: "Total number of domain decisions by domain and reason.",
		},
		[]string{"domain", "reason"},
	)
)

// AddUsage records the delta between two pool stat snapshots.
func AddUsage(model string, prev, cur llm.Stats) {
	TokenUsageTotal.WithLabelValues(model, "input").Add(float64(cur.PromptTokens - prev.PromptTokens))
	TokenUsageTotal.WithLabelValues(model, "output").Add(float64(cur.CompletionTokens - prev.CompletionTokens))
	RetriesTotal.Add(float64(cur.Retries - prev.Retries))
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
