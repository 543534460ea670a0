package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	turnsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askdb_turns_total",
			Help: "Total number of conversation turns processed.",
		},
	)
	turnFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_turn_failures_total",
			Help: "Total number of failed turns by stage.",
		},
		[]string{"stage"},
	)
	generationFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askdb_generation_fallbacks_total",
			Help: "Total number of turns where SQL extraction fell back to the default statement.",
		},
	)
	auditFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askdb_audit_failures_total",
			Help: "Total number of swallowed audit log failures.",
		},
	)
	retrievalDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_retrieval_duration_seconds",
			Help:    "Exemplar retrieval latency, embedding call included.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)
	queryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_query_duration_seconds",
			Help:    "Generated statement execution latency.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
	)
)

func init() {
	prometheus.MustRegister(
		turnsTotal,
		turnFailuresTotal,
		generationFallbacksTotal,
		auditFailuresTotal,
		retrievalDurationSeconds,
		queryDurationSeconds,
	)
}

func RecordTurn() {
	turnsTotal.Inc()
}

func RecordTurnFailure(stage string) {
	turnFailuresTotal.WithLabelValues(stage).Inc()
}

func RecordGenerationFallback() {
	generationFallbacksTotal.Inc()
}

func RecordAuditFailure() {
	auditFailuresTotal.Inc()
}

func ObserveRetrievalDuration(d time.Duration) {
	retrievalDurationSeconds.Observe(d.Seconds())
}

func ObserveQueryDuration(d time.Duration) {
	queryDurationSeconds.Observe(d.Seconds())
}
