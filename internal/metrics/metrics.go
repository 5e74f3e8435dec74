package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"resultportal/internal/results"
)

// Metrics holds the portal's Prometheus counters. It satisfies the observer
// interfaces of the auth, results and ingest packages.
type Metrics struct {
	logins     *prometheus.CounterVec
	challenges *prometheus.CounterVec
	rows       *prometheus.CounterVec
	saves      *prometheus.CounterVec
	lookups    *prometheus.CounterVec
}

// New registers the counters on reg. A nil reg uses the default registerer
// served by promhttp.Handler.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resultportal_logins_total",
			Help: "Admin login attempts by outcome.",
		}, []string{"outcome"}),
		challenges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resultportal_otp_challenges_total",
			Help: "OTP challenge resolutions by outcome.",
		}, []string{"outcome"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resultportal_ingest_rows_total",
			Help: "Spreadsheet rows processed by result.",
		}, []string{"result"}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resultportal_record_saves_total",
			Help: "Manual record saves by outcome.",
		}, []string{"outcome"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resultportal_lookups_total",
			Help: "Student result lookups.",
		}, []string{"found"}),
	}
	reg.MustRegister(m.logins, m.challenges, m.rows, m.saves, m.lookups)
	return m
}

func (m *Metrics) LoginOutcome(outcome string) { m.logins.WithLabelValues(outcome).Inc() }

func (m *Metrics) ChallengeOutcome(outcome string) { m.challenges.WithLabelValues(outcome).Inc() }

func (m *Metrics) RowIngested(result string) { m.rows.WithLabelValues(result).Inc() }

func (m *Metrics) RecordSaved(outcome results.SaveOutcome) {
	label := "updated"
	if outcome == results.Saved {
		label = "created"
	}
	m.saves.WithLabelValues(label).Inc()
}

func (m *Metrics) Lookup(found bool) { m.lookups.WithLabelValues(strconv.FormatBool(found)).Inc() }
