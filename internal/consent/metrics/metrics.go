package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the consent module.
// Tracks grant/withdrawal counts, hook vetoes, and critical path durations.
type Metrics struct {
	ConsentsGranted    prometheus.Counter
	ConsentsWithdrawn  prometheus.Counter
	HookVetoes         prometheus.Counter
	SetConsentDuration prometheus.Histogram
	WithdrawDuration   prometheus.Histogram
	ReceiptDuration    prometheus.Histogram
}

// New creates a new Metrics instance with all consent module metrics registered.
func New() *Metrics {
	return &Metrics{
		ConsentsGranted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "koroflow_consents_granted_total",
			Help: "Total number of consents granted or replaced",
		}),
		ConsentsWithdrawn: promauto.NewCounter(prometheus.CounterOpts{
			Name: "koroflow_consents_withdrawn_total",
			Help: "Total number of consents withdrawn",
		}),
		HookVetoes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "koroflow_hook_vetoes_total",
			Help: "Total number of mutations rejected by before-hooks",
		}),
		SetConsentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "koroflow_set_consent_duration_seconds",
			Help:    "Duration of SetConsent operations (grant critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		WithdrawDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "koroflow_withdraw_consent_duration_seconds",
			Help:    "Duration of WithdrawConsent operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		ReceiptDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "koroflow_consent_receipt_duration_seconds",
			Help:    "Duration of GetConsentReceipt operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementGranted records a successful consent grant.
func (m *Metrics) IncrementGranted() {
	m.ConsentsGranted.Inc()
}

// IncrementWithdrawn records a successful consent withdrawal.
func (m *Metrics) IncrementWithdrawn() {
	m.ConsentsWithdrawn.Inc()
}

// IncrementHookVeto records a mutation rejected by a before-hook.
func (m *Metrics) IncrementHookVeto() {
	m.HookVetoes.Inc()
}

// ObserveSetConsent records the duration of a SetConsent operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveSetConsent(start time.Time) {
	m.SetConsentDuration.Observe(time.Since(start).Seconds())
}

// ObserveWithdraw records the duration of a WithdrawConsent operation.
func (m *Metrics) ObserveWithdraw(start time.Time) {
	m.WithdrawDuration.Observe(time.Since(start).Seconds())
}

// ObserveReceipt records the duration of a GetConsentReceipt operation.
func (m *Metrics) ObserveReceipt(start time.Time) {
	m.ReceiptDuration.Observe(time.Since(start).Seconds())
}
