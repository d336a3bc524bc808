package vat

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for verifications. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	// Provider attempts by provider and outcome
	Attempts *prometheus.CounterVec

	// Per-attempt latency by provider
	AttemptDuration *prometheus.HistogramVec

	// Final decisions by source
	Verifications *prometheus.CounterVec

	// End-to-end verification latency
	VerificationDuration prometheus.Histogram
}

// NewMetrics creates the verification metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Attempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vatgw_provider_attempts_total",
			Help: "Total provider attempts by provider and outcome",
		}, []string{"provider", "outcome"}),

		AttemptDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vatgw_provider_attempt_duration_seconds",
			Help:    "Duration of single provider attempts",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 6, 8, 10},
		}, []string{"provider"}),

		Verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vatgw_verifications_total",
			Help: "Total verification decisions by source",
		}, []string{"source"}),

		VerificationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vatgw_verification_duration_seconds",
			Help:    "Duration of full verifications including retries and fallback",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15, 20, 25},
		}),
	}
}

// ObserveAttempt records one provider attempt.
func (m *Metrics) ObserveAttempt(a Attempt) {
	if m != nil {
		m.Attempts.WithLabelValues(a.Provider, string(a.Outcome)).Inc()
		m.AttemptDuration.WithLabelValues(a.Provider).Observe(a.Elapsed.Seconds())
	}
}

// ObserveVerification records a final decision and its total duration.
// source is "unverifiable" when a fail-closed policy refused to decide.
func (m *Metrics) ObserveVerification(source string, d time.Duration) {
	if m != nil {
		m.Verifications.WithLabelValues(source).Inc()
		m.VerificationDuration.Observe(d.Seconds())
	}
}
