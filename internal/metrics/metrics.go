package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the dispatch core's instruments. Registered against a
// caller-supplied registry so tests and multi-instance setups never
// share process-global state.
type Metrics struct {
	Turns            *prometheus.CounterVec
	Dispatches       *prometheus.CounterVec
	RecallResults    prometheus.Histogram
	SnapshotFailures prometheus.Counter
}

// New creates and registers the core's collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memodash",
			Subsystem: "assistant",
			Name:      "turns_total",
			Help:      "Completed assistant turns by classified intent.",
		}, []string{"intent"}),
		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memodash",
			Subsystem: "assistant",
			Name:      "dispatches_total",
			Help:      "Tool dispatch attempts by outcome.",
		}, []string{"outcome"}),
		RecallResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "memodash",
			Subsystem: "assistant",
			Name:      "recall_results",
			Help:      "Number of context records returned per recall.",
			Buckets:   []float64{0, 1, 2, 3, 5, 10},
		}),
		SnapshotFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "memodash",
			Subsystem: "assistant",
			Name:      "snapshot_failures_total",
			Help:      "Conversation snapshot writes that failed and were dropped.",
		}),
	}
	reg.MustRegister(m.Turns, m.Dispatches, m.RecallResults, m.SnapshotFailures)
	return m
}

// Dispatch outcome label values.
const (
	OutcomeOK           = "ok"
	OutcomeNotFound     = "tool_not_found"
	OutcomeDenied       = "permission_denied"
	OutcomeNoCredential = "credential_required"
	OutcomeRemoteFailed = "remote_failed"
	OutcomeUnsupported  = "unsupported"
	OutcomeBadRef       = "invalid_ref"
	OutcomeHandlerError = "handler_error"
)
