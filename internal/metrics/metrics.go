package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lthummus/loginguard/internal/attempts"
)

type Metrics struct {
	FailuresRecorded   prometheus.Counter
	LockoutsStarted    prometheus.Counter
	SweepRuns          prometheus.Counter
	RecordsSwept       prometheus.Counter
	SweepDuration      prometheus.Histogram
	TrackedIdentifiers prometheus.GaugeFunc
	Outcomes           *prometheus.CounterVec
}

var _ attempts.Observer = (*Metrics)(nil)

// New registers every collector with reg. trackedIdentifiers is sampled on each scrape.
func New(reg prometheus.Registerer, trackedIdentifiers func() int) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		FailuresRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "loginguard_auth_failures_recorded_total",
			Help: "Total number of authentication failures recorded by the attempt tracker",
		}),
		LockoutsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "loginguard_auth_lockouts_total",
			Help: "Total number of identifiers that reached the failure threshold",
		}),
		SweepRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "loginguard_auth_sweep_runs_total",
			Help: "Total number of stale record sweeps",
		}),
		RecordsSwept: factory.NewCounter(prometheus.CounterOpts{
			Name: "loginguard_auth_records_swept_total",
			Help: "Total number of expired attempt records removed by sweeps",
		}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "loginguard_auth_sweep_duration_seconds",
			Help:    "Duration of stale record sweeps in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
		TrackedIdentifiers: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "loginguard_auth_tracked_identifiers",
			Help: "Current number of identifiers with recorded failures",
		}, func() float64 {
			return float64(trackedIdentifiers())
		}),
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loginguard_auth_outcomes_total",
			Help: "Authentication operations by operation and outcome",
		}, []string{"operation", "outcome"}),
	}
}

func (m *Metrics) FailureRecorded() {
	m.FailuresRecorded.Inc()
}

func (m *Metrics) LockoutStarted() {
	m.LockoutsStarted.Inc()
}

func (m *Metrics) Swept(removed int, took time.Duration) {
	m.SweepRuns.Inc()
	m.RecordsSwept.Add(float64(removed))
	m.SweepDuration.Observe(took.Seconds())
}

func (m *Metrics) RecordOutcome(operation string, outcome string) {
	m.Outcomes.WithLabelValues(operation, outcome).Inc()
}
