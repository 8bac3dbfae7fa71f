// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeNoFace  = "no_face"
)

// Collector owns a private registry so tests can build as many as they need.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry         *prometheus.Registry
	mrzStages        *prometheus.CounterVec
	faceComparisons  *prometheus.CounterVec
	pipelineDuration *prometheus.HistogramVec
	auditWrites      *prometheus.CounterVec
}

// New registers every collector plus the Go runtime and process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		mrzStages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gigwork",
			Subsystem: "mrz",
			Name:      "stage_total",
			Help:      "MRZ pipeline stage outcomes.",
		}, []string{"stage", "outcome"}),
		faceComparisons: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gigwork",
			Subsystem: "face",
			Name:      "comparisons_total",
			Help:      "Face comparison outcomes.",
		}, []string{"outcome", "match_level"}),
		pipelineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gigwork",
			Name:      "pipeline_duration_seconds",
			Help:      "End to end latency of the verification pipelines.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}, []string{"pipeline"}),
		auditWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gigwork",
			Subsystem: "audit",
			Name:      "writes_total",
			Help:      "Verification audit log writes.",
		}, []string{"outcome"}),
	}
	c.registry.MustRegister(
		c.mrzStages,
		c.faceComparisons,
		c.pipelineDuration,
		c.auditWrites,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveStage(stage, outcome string) {
	if c == nil {
		return
	}
	c.mrzStages.WithLabelValues(stage, outcome).Inc()
}

func (c *Collector) ObserveFaceComparison(outcome, matchLevel string) {
	if c == nil {
		return
	}
	c.faceComparisons.WithLabelValues(outcome, matchLevel).Inc()
}

func (c *Collector) ObservePipeline(pipeline string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.pipelineDuration.WithLabelValues(pipeline).Observe(elapsed.Seconds())
}

func (c *Collector) ObserveAuditWrite(outcome string) {
	if c == nil {
		return
	}
	c.auditWrites.WithLabelValues(outcome).Inc()
}
