// Package metrics exports dwell and turn counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the pipeline's Prometheus collectors on a private
// registry so parallel sessions and tests never collide.
type Recorder struct {
	registry *prometheus.Registry

	stageDwell  *prometheus.HistogramVec
	turnsClosed prometheus.Counter
	openBuckets prometheus.Gauge
}

// NewRecorder builds a recorder with its own registry.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Recorder{
		registry: registry,
		stageDwell: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_stage_dwell_ms",
			Help:    "Frame dwell time in a stage's input queue",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000},
		}, []string{"stage"}),
		turnsClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_turns_closed_total",
			Help: "Turns closed with an emitted latency summary",
		}),
		openBuckets: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pipeline_open_turn_buckets",
			Help: "Dwell buckets currently awaiting summarization",
		}),
	}
}

// ObserveDwell records one dwell sample for a stage.
func (r *Recorder) ObserveDwell(stage string, dwellMS float64) {
	r.stageDwell.WithLabelValues(stage).Observe(dwellMS)
}

// TurnClosed increments the closed-turn counter.
func (r *Recorder) TurnClosed() {
	r.turnsClosed.Inc()
}

// SetOpenBuckets tracks the number of un-summarized turn buckets.
func (r *Recorder) SetOpenBuckets(n int) {
	r.openBuckets.Set(float64(n))
}

// Handler serves the recorder's registry in Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the backing registry for test gathering.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
