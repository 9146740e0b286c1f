package observability

import "github.com/prometheus/client_golang/prometheus"

// LedgerMetrics counts journal lifecycle outcomes.
type LedgerMetrics struct {
	posted   prometheus.Counter
	voided   prometheus.Counter
	rejected *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger counters on registerer, or on the
// default registerer when nil. Used by processes that do not build Metrics.
func NewLedgerMetrics(registerer prometheus.Registerer) *LedgerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return newLedgerMetrics(registerer)
}

func newLedgerMetrics(registerer prometheus.Registerer) *LedgerMetrics {
	posted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "odyssey_ledger_entries_posted_total",
		Help: "Journal entries moved to POSTED.",
	})
	voided := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "odyssey_ledger_entries_voided_total",
		Help: "Journal entries voided with a reversal.",
	})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_ledger_post_rejected_total",
		Help: "Posting attempts rejected by validation, by reason.",
	}, []string{"reason"})
	registerer.MustRegister(posted, voided, rejected)
	return &LedgerMetrics{posted: posted, voided: voided, rejected: rejected}
}

func (l *LedgerMetrics) EntryPosted() {
	if l != nil {
		l.posted.Inc()
	}
}

func (l *LedgerMetrics) EntryVoided() {
	if l != nil {
		l.voided.Inc()
	}
}

func (l *LedgerMetrics) EntryRejected(reason string) {
	if l != nil {
		l.rejected.WithLabelValues(reason).Inc()
	}
}
