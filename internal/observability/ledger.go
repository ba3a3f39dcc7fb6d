package observability

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/odyssey-erp/runway/internal/shared"
)

// Hasil posting yang dipakai sebagai label.
const (
	OutcomeOK         = "ok"
	OutcomeDuplicate  = "duplicate"
	OutcomeRejected   = "rejected"
	OutcomeUnbalanced = "unbalanced"
	OutcomeNotFound   = "not_found"
	OutcomeError      = "error"
)

// LedgerMetrics mencatat hasil posting, fallback kategori dan pemeriksaan integritas.
type LedgerMetrics struct {
	postings          *prometheus.CounterVec
	postingDuration   *prometheus.HistogramVec
	degraded          *prometheus.CounterVec
	integrityChecks   *prometheus.CounterVec
	integrityFindings *prometheus.GaugeVec
}

// NewLedgerMetrics mendaftarkan metrik ledger pada registerer.
func NewLedgerMetrics(registerer prometheus.Registerer) *LedgerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	m := &LedgerMetrics{
		postings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runway_ledger_postings_total",
			Help: "Jumlah posting ledger berdasarkan jenis dan hasil.",
		}, []string{"kind", "outcome"}),
		postingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "runway_ledger_posting_duration_seconds",
			Help:    "Durasi posting ledger termasuk retry transaksi.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		degraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runway_ledger_degraded_postings_total",
			Help: "Posting yang jatuh ke akun fallback karena kategori tidak terpetakan.",
		}, []string{"category", "fallback_code"}),
		integrityChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runway_ledger_integrity_checks_total",
			Help: "Jumlah pemeriksaan integritas berdasarkan hasil.",
		}, []string{"result"}),
		integrityFindings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "runway_ledger_integrity_findings",
			Help: "Jumlah temuan pada pemeriksaan integritas terakhir per perusahaan.",
		}, []string{"company"}),
	}
	registerer.MustRegister(m.postings, m.postingDuration, m.degraded, m.integrityChecks, m.integrityFindings)
	return m
}

// Outcome mengklasifikasikan error posting menjadi label hasil.
func Outcome(err error) string {
	var unbalanced *shared.UnbalancedPostingError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, shared.ErrAlreadyPosted):
		return OutcomeDuplicate
	case errors.As(err, &unbalanced), errors.Is(err, shared.ErrUnbalanced):
		return OutcomeUnbalanced
	case errors.Is(err, shared.ErrValidation):
		return OutcomeRejected
	case errors.Is(err, shared.ErrNotFound):
		return OutcomeNotFound
	default:
		return OutcomeError
	}
}

// ObservePosting mencatat satu posting atau reversal.
func (m *LedgerMetrics) ObservePosting(kind string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.postings.WithLabelValues(kind, Outcome(err)).Inc()
	m.postingDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ObserveDegraded mencatat posting yang memakai akun fallback.
func (m *LedgerMetrics) ObserveDegraded(category, fallbackCode string) {
	if m == nil {
		return
	}
	if category == "" {
		category = "uncategorized"
	}
	m.degraded.WithLabelValues(category, fallbackCode).Inc()
}

// ObserveIntegrity mencatat hasil pemeriksaan integritas satu perusahaan.
func (m *LedgerMetrics) ObserveIntegrity(companyID string, findings int) {
	if m == nil {
		return
	}
	result := "healthy"
	if findings > 0 {
		result = "unhealthy"
	}
	m.integrityChecks.WithLabelValues(result).Inc()
	m.integrityFindings.WithLabelValues(companyID).Set(float64(findings))
}
