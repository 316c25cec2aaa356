package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	signalsScored *prometheus.CounterVec
	proposals     *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		signalsScored: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "papertune_signals_scored_total",
				Help: "Total number of trim signals scored",
			},
			[]string{"ticker", "recommendation"},
		),
		proposals: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "papertune_adjustments_proposed_total",
				Help: "Total number of parameter adjustments proposed",
			},
			[]string{"strategy", "trigger"},
		),
		transitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "papertune_adjustment_transitions_total",
				Help: "Total number of adjustment lifecycle transitions",
			},
			[]string{"action", "outcome"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "papertune_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "papertune_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordSignalScored records one scored trim signal.
func (r *Recorder) RecordSignalScored(ticker, recommendation string) {
	r.signalsScored.WithLabelValues(ticker, recommendation).Inc()
}

// RecordProposal records a tuner proposal.
func (r *Recorder) RecordProposal(strategy, trigger string) {
	r.proposals.WithLabelValues(strategy, trigger).Inc()
}

// RecordTransition records a lifecycle transition attempt.
func (r *Recorder) RecordTransition(action, outcome string) {
	r.transitions.WithLabelValues(action, outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
