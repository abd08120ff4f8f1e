package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Message outcomes
const (
	OutcomeCreated   = "created"
	OutcomeDuplicate = "duplicate"
	OutcomeSkipped   = "skipped"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// Metrics holds all prometheus metrics
type Metrics struct {
	MessagesProcessed   *prometheus.CounterVec
	ReservationsCreated *prometheus.CounterVec
	IntegrationCalls    *prometheus.CounterVec
	RunDuration         prometheus.Histogram
	Runs                *prometheus.CounterVec
}

// NewMetrics registers the ingestion metrics on reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		MessagesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_processed_total",
			Help:      "Mailbox messages handled, by outcome",
		}, []string{"outcome"}),
		ReservationsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_created_total",
			Help:      "Reservations created from channel notifications",
		}, []string{"channel"}),
		IntegrationCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "integration_calls_total",
			Help:      "Downstream integration calls, by channel and result",
		}, []string{"channel", "result"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Time taken by one organization ingestion run",
			Buckets:   prometheus.DefBuckets,
		}),
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Ingestion runs, by result",
		}, []string{"result"}),
	}
}

// Message counts one handled message. Safe on a nil receiver.
func (m *Metrics) Message(outcome string) {
	if m == nil {
		return
	}
	m.MessagesProcessed.WithLabelValues(outcome).Inc()
}

// Created counts one created reservation. Safe on a nil receiver.
func (m *Metrics) Created(channel string) {
	if m == nil {
		return
	}
	m.ReservationsCreated.WithLabelValues(channel).Inc()
}

// Integration counts one adapter call. Safe on a nil receiver.
func (m *Metrics) Integration(channel string, success bool) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.IntegrationCalls.WithLabelValues(channel, result).Inc()
}

// Run records a finished run. Safe on a nil receiver.
func (m *Metrics) Run(seconds float64, result string) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(seconds)
	m.Runs.WithLabelValues(result).Inc()
}
