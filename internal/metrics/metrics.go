// Package metrics holds the Prometheus collectors for analysis runs and link
// resolution.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sandeepkv93/taskpilot/internal/analyzer"
	"github.com/sandeepkv93/taskpilot/internal/links"
)

// Metrics registers on its own registry so tests and multiple instances never
// collide on the default one.
//
//   - taskpilot_analyses_total{outcome}
//   - taskpilot_analysis_batch_duration_seconds
//   - taskpilot_link_resolutions_total{source}
//   - taskpilot_tasks_completed_total{upstream}
type Metrics struct {
	registry *prometheus.Registry

	AnalysesTotal  *prometheus.CounterVec
	BatchDuration  prometheus.Histogram
	LinksTotal     *prometheus.CounterVec
	CompletedTotal *prometheus.CounterVec
}

var _ analyzer.Recorder = (*Metrics)(nil)

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		AnalysesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskpilot_analyses_total",
				Help: "Task analyses by outcome",
			},
			[]string{"outcome"},
		),
		BatchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "taskpilot_analysis_batch_duration_seconds",
				Help:    "Wall time of bulk analysis runs",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4m
			},
		),
		LinksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskpilot_link_resolutions_total",
				Help: "Task link resolutions by project id source",
			},
			[]string{"source"},
		),
		CompletedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskpilot_tasks_completed_total",
				Help: "Tasks marked complete",
			},
			[]string{"upstream"},
		),
	}
}

func (m *Metrics) AnalysisDone(o analyzer.Outcome) {
	m.AnalysesTotal.WithLabelValues(string(o)).Inc()
}

func (m *Metrics) BatchDone(d time.Duration) {
	m.BatchDuration.Observe(d.Seconds())
}

func (m *Metrics) LinkResolved(src links.Source) {
	m.LinksTotal.WithLabelValues(string(src)).Inc()
}

func (m *Metrics) TaskCompleted(upstream bool) {
	label := "false"
	if upstream {
		label = "true"
	}
	m.CompletedTotal.WithLabelValues(label).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
