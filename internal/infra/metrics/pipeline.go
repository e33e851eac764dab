package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	paidCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_paid_calls_total",
			Help: "Paid external units consumed per worker",
		},
		[]string{"worker"},
	)

	claims = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_claims_total",
			Help: "Prospects claimed per worker",
		},
		[]string{"worker"},
	)

	transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_transitions_total",
			Help: "Prospect stage transitions",
		},
		[]string{"from", "to"},
	)

	prospectsInserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_prospects_inserted_total",
			Help: "New prospects inserted by the hunter",
		},
	)

	integrationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "integration_errors_total",
			Help: "Total number of integration errors",
		},
		[]string{"service"},
	)

	chatTurns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_chat_turns_total",
			Help: "Live chat turns by outcome",
		},
		[]string{"outcome"},
	)

	cycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_cycle_duration_seconds",
			Help:    "Duration of an orchestrator cycle",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)
)

func RecordPaidCalls(worker string, n int) {
	if n > 0 {
		paidCalls.WithLabelValues(worker).Add(float64(n))
	}
}

func RecordClaims(worker string, n int) {
	if n > 0 {
		claims.WithLabelValues(worker).Add(float64(n))
	}
}

func RecordTransition(from, to string) {
	transitions.WithLabelValues(from, to).Inc()
}

func RecordInserted(n int) {
	if n > 0 {
		prospectsInserted.Add(float64(n))
	}
}

func RecordIntegrationError(service string) {
	integrationErrors.WithLabelValues(service).Inc()
}

func RecordChatTurn(outcome string) {
	chatTurns.WithLabelValues(outcome).Inc()
}

func ObserveCycle(d time.Duration) {
	cycleDuration.Observe(d.Seconds())
}
