// Package metrics records how a collection run went, as Prometheus metrics
// written next to the collected artifacts.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dm/search-insights/internal/model"
)

// FileName is the text-format metrics file written into the output directory.
const FileName = "collector-metrics.prom"

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Run holds the metrics of a single run. Each Run owns its registry, so runs
// never share series.
type Run struct {
	registry *prometheus.Registry

	fetchTotal    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	nodes         prometheus.Gauge
	zkPaths       prometheus.Gauge
	runDuration   prometheus.Gauge
}

// NewRun creates a Run with a fresh registry.
func NewRun() *Run {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Run{
		registry: reg,
		fetchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_fetch_total",
				Help: "Artifacts collected, by category and outcome",
			},
			[]string{"category", "outcome"},
		),
		fetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "insights_fetch_duration_seconds",
				Help:    "Time taken to fetch one artifact",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 120},
			},
			[]string{"category"},
		),
		nodes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "insights_nodes",
			Help: "Number of search nodes the run collected from",
		}),
		zkPaths: factory.NewGauge(prometheus.GaugeOpts{
			Name: "insights_zk_paths",
			Help: "Number of coordination paths in the tree dump",
		}),
		runDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "insights_run_duration_seconds",
			Help: "Wall time of the whole run",
		}),
	}
}

// ObserveFetch counts one collected artifact.
func (r *Run) ObserveFetch(cat model.Category, failed bool, elapsed time.Duration) {
	outcome := OutcomeOK
	if failed {
		outcome = OutcomeError
	}
	r.fetchTotal.WithLabelValues(string(cat), outcome).Inc()
	r.fetchDuration.WithLabelValues(string(cat)).Observe(elapsed.Seconds())
}

// SetNodes records the resolved node count.
func (r *Run) SetNodes(n int) { r.nodes.Set(float64(n)) }

// SetZKPaths records the size of the tree dump.
func (r *Run) SetZKPaths(n int) { r.zkPaths.Set(float64(n)) }

// SetRunDuration records the wall time of the run.
func (r *Run) SetRunDuration(d time.Duration) { r.runDuration.Set(d.Seconds()) }

// Registry exposes the run's registry.
func (r *Run) Registry() *prometheus.Registry { return r.registry }

// WriteFile writes every series in text format to path, atomically.
func (r *Run) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
