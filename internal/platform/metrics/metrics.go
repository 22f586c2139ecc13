package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tle_zone"

// Metrics groups the counters the contest services report.
type Metrics struct {
	registry *prometheus.Registry

	Registrations    *prometheus.CounterVec // outcome: created|existing|rejected
	RatingsRecorded  *prometheus.CounterVec // outcome: created|existing|failed
	RatingChange     prometheus.Histogram
	FinalizationJobs *prometheus.CounterVec // outcome: enqueued|completed|failed|requeued
	ResultsIngested  prometheus.Counter
	ReportsServed    prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contest_registrations_total",
			Help:      "Contest registration attempts by outcome.",
		}, []string{"outcome"}),
		RatingsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratings_recorded_total",
			Help:      "Rating finalization attempts by outcome.",
		}, []string{"outcome"}),
		RatingChange: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rating_change",
			Help:      "Distribution of recorded rating changes.",
			Buckets:   prometheus.LinearBuckets(-400, 50, 17),
		}),
		FinalizationJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "finalization_jobs_total",
			Help:      "Contest finalization jobs by outcome.",
		}, []string{"outcome"}),
		ResultsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "problem_results_ingested_total",
			Help:      "Per-problem judge results accepted from the webhook.",
		}),
		ReportsServed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contest_reports_served_total",
			Help:      "Contest reports built.",
		}),
	}
	reg.MustRegister(
		m.Registrations,
		m.RatingsRecorded,
		m.RatingChange,
		m.FinalizationJobs,
		m.ResultsIngested,
		m.ReportsServed,
		collectors.NewGoCollector(),
	)
	return m
}

// NewNoop returns metrics backed by a private registry nobody scrapes.
func NewNoop() *Metrics {
	return New()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
