// Package metrics exposes admission, lookup and ledger counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	admissions *prometheus.CounterVec
	lookups    *prometheus.CounterVec
	ledger     *prometheus.CounterVec
	points     *prometheus.CounterVec
	invites    *prometheus.CounterVec
	resets     prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lookupbot",
			Subsystem: "gate",
			Name:      "admissions_total",
			Help:      "Lookup requests seen by the rate limiter, by result.",
		}, []string{"result"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lookupbot",
			Subsystem: "gate",
			Name:      "lookups_total",
			Help:      "Lookup requests by terminal status.",
		}, []string{"status"}),
		ledger: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lookupbot",
			Subsystem: "ledger",
			Name:      "adjustments_total",
			Help:      "Applied points adjustments by direction.",
		}, []string{"direction"}),
		points: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lookupbot",
			Subsystem: "ledger",
			Name:      "points_total",
			Help:      "Absolute points moved by direction.",
		}, []string{"direction"}),
		invites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lookupbot",
			Subsystem: "invite",
			Name:      "decisions_total",
			Help:      "Invite decisions by outcome.",
		}, []string{"decision"}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lookupbot",
			Subsystem: "checkin",
			Name:      "resets_total",
			Help:      "Completed daily check-in resets.",
		}),
	}
	reg.MustRegister(m.admissions, m.lookups, m.ledger, m.points, m.invites, m.resets)
	return m
}

func (m *Metrics) ObserveAdmission(admitted bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if admitted {
		result = "admitted"
	}
	m.admissions.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveLookup(status string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveAdjustment(_, applied int64) {
	if m == nil || applied == 0 {
		return
	}
	direction := "credit"
	if applied < 0 {
		direction = "debit"
		applied = -applied
	}
	m.ledger.WithLabelValues(direction).Inc()
	m.points.WithLabelValues(direction).Add(float64(applied))
}

func (m *Metrics) ObserveInvite(suspended bool) {
	if m == nil {
		return
	}
	decision := "granted"
	if suspended {
		decision = "suspended"
	}
	m.invites.WithLabelValues(decision).Inc()
}

func (m *Metrics) ObserveReset() {
	if m == nil {
		return
	}
	m.resets.Inc()
}
