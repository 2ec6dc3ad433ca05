// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the registry's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	LedgerEntries      *prometheus.CounterVec
	Registrations      prometheus.Counter
	Confirmations      prometheus.Counter
	Disputes           prometheus.Counter
	AnchorOutcomes     *prometheus.CounterVec
	BondEvents         *prometheus.CounterVec
	PeerVerifications  prometheus.Counter
	AnchorQueueClaimed prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LedgerEntries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idsee_ledger_entries_total",
			Help: "Credit ledger entries appended, by kind",
		}, []string{"kind"}),
		Registrations: factory.NewCounter(prometheus.CounterOpts{
			Name: "idsee_registrations_total",
			Help: "Animal registrations submitted",
		}),
		Confirmations: factory.NewCounter(prometheus.CounterOpts{
			Name: "idsee_confirmations_total",
			Help: "Registrations confirmed by the linked breeder",
		}),
		Disputes: factory.NewCounter(prometheus.CounterOpts{
			Name: "idsee_disputes_total",
			Help: "Registrations disputed by the linked breeder",
		}),
		AnchorOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idsee_anchor_attempts_total",
			Help: "Anchoring attempts, by path and outcome",
		}, []string{"path", "outcome"}),
		BondEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idsee_bond_events_total",
			Help: "Verification bond transitions, by event",
		}, []string{"event"}),
		PeerVerifications: factory.NewCounter(prometheus.CounterOpts{
			Name: "idsee_peer_verifications_total",
			Help: "Professionals verified through a peer bond",
		}),
		AnchorQueueClaimed: factory.NewCounter(prometheus.CounterOpts{
			Name: "idsee_anchor_tasks_claimed_total",
			Help: "Anchoring tasks claimed by the worker",
		}),
	}
}

func (m *Metrics) LedgerEntry(kind string) {
	if m != nil {
		m.LedgerEntries.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) RegistrationSubmitted() {
	if m != nil {
		m.Registrations.Inc()
	}
}

func (m *Metrics) RegistrationConfirmed() {
	if m != nil {
		m.Confirmations.Inc()
	}
}

func (m *Metrics) RegistrationDisputed() {
	if m != nil {
		m.Disputes.Inc()
	}
}

// AnchorOutcome records one anchoring attempt. path is "confirm" or "queue".
func (m *Metrics) AnchorOutcome(path, outcome string) {
	if m != nil {
		m.AnchorOutcomes.WithLabelValues(path, outcome).Inc()
	}
}

func (m *Metrics) BondEvent(event string) {
	if m != nil {
		m.BondEvents.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) PeerVerified() {
	if m != nil {
		m.PeerVerifications.Inc()
	}
}

func (m *Metrics) TasksClaimed(n int) {
	if m != nil {
		m.AnchorQueueClaimed.Add(float64(n))
	}
}
