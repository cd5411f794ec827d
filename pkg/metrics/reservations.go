package metrics

import "github.com/prometheus/client_golang/prometheus"

// Hold outcomes recorded by ReservationMetrics.
const (
	HoldOutcomeHeld      = "held"
	HoldOutcomeRefreshed = "refreshed"
	HoldOutcomeFull      = "full"
	HoldOutcomeClosed    = "closed"
	HoldOutcomeError     = "error"
)

// ReservationMetrics tracks slot holds, expiry sweeps and reconciliation
// corrections.
type ReservationMetrics struct {
	holds       *prometheus.CounterVec
	releases    prometheus.Counter
	expired     prometheus.Counter
	corrections prometheus.Counter
}

// NewReservationMetrics registers the reservation metrics on reg. A nil
// registerer yields a no-op recorder.
func NewReservationMetrics(reg prometheus.Registerer) *ReservationMetrics {
	if reg == nil {
		return &ReservationMetrics{}
	}
	holds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "slotbook_slot_holds_total",
		Help: "Slot hold attempts by outcome.",
	}, []string{"outcome"})
	releases := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "slotbook_slot_releases_total",
		Help: "Slot holds released by shoppers or cancellation.",
	})
	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "slotbook_slot_holds_expired_total",
		Help: "Held reservations reclaimed by the expiry sweep.",
	})
	corrections := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "slotbook_slot_reconcile_corrections_total",
		Help: "Slot counters overwritten by reconciliation.",
	})
	reg.MustRegister(holds, releases, expired, corrections)
	return &ReservationMetrics{
		holds:       holds,
		releases:    releases,
		expired:     expired,
		corrections: corrections,
	}
}

func (m *ReservationMetrics) IncHold(outcome string) {
	if m == nil || m.holds == nil {
		return
	}
	m.holds.WithLabelValues(outcome).Inc()
}

func (m *ReservationMetrics) IncRelease() {
	if m == nil || m.releases == nil {
		return
	}
	m.releases.Inc()
}

func (m *ReservationMetrics) AddExpired(n int) {
	if m == nil || m.expired == nil || n <= 0 {
		return
	}
	m.expired.Add(float64(n))
}

func (m *ReservationMetrics) AddCorrections(n int) {
	if m == nil || m.corrections == nil || n <= 0 {
		return
	}
	m.corrections.Add(float64(n))
}
