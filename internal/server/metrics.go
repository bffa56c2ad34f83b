package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/kmeanslab"
	"github.com/hupe1980/kmeanslab/internal/registry"
	"github.com/hupe1980/kmeanslab/resource"
)

// PrometheusCollector implements kmeanslab.MetricsCollector on top of a
// Prometheus registry.
type PrometheusCollector struct {
	opLatency  *prometheus.HistogramVec
	initialize *prometheus.CounterVec
	steps      *prometheus.CounterVec
	reseeded   prometheus.Counter
	runs       *prometheus.CounterVec
	iterations prometheus.Histogram
	predicted  prometheus.Counter
}

var _ kmeanslab.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheusCollector creates the engine metrics and registers them
// with reg.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kmeanslab_operation_latency_seconds",
			Help:    "Latency of engine operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "status"}),
		initialize: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kmeanslab_initialize_total",
			Help: "Initialize operations by method and status",
		}, []string{"method", "status"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kmeanslab_steps_total",
			Help: "Assign/update cycles by outcome",
		}, []string{"outcome"}),
		reseeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kmeanslab_reseeded_clusters_total",
			Help: "Empty clusters reseeded with a random point",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kmeanslab_runs_total",
			Help: "Run operations by outcome",
		}, []string{"outcome"}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kmeanslab_run_iterations",
			Help:    "Cycles performed per run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		predicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kmeanslab_predicted_points_total",
			Help: "Points labelled by predict",
		}),
	}

	reg.MustRegister(c.opLatency, c.initialize, c.steps, c.reseeded, c.runs, c.iterations, c.predicted)

	return c
}

// RecordInitialize implements kmeanslab.MetricsCollector.
func (c *PrometheusCollector) RecordInitialize(method kmeanslab.InitMethod, d time.Duration, err error) {
	c.opLatency.WithLabelValues("initialize", status(err)).Observe(d.Seconds())
	c.initialize.WithLabelValues(method.String(), status(err)).Inc()
}

// RecordStep implements kmeanslab.MetricsCollector.
func (c *PrometheusCollector) RecordStep(d time.Duration, converged bool, reseeded int, err error) {
	c.opLatency.WithLabelValues("step", status(err)).Observe(d.Seconds())

	switch {
	case err != nil:
		c.steps.WithLabelValues("error").Inc()
	case converged:
		c.steps.WithLabelValues("converged").Inc()
	default:
		c.steps.WithLabelValues("moved").Inc()
	}

	c.reseeded.Add(float64(reseeded))
}

// RecordRun implements kmeanslab.MetricsCollector.
func (c *PrometheusCollector) RecordRun(iterations int, capReached bool, d time.Duration, err error) {
	c.opLatency.WithLabelValues("run", status(err)).Observe(d.Seconds())

	switch {
	case err != nil:
		c.runs.WithLabelValues("error").Inc()
		return
	case capReached:
		c.runs.WithLabelValues("cap_reached").Inc()
	default:
		c.runs.WithLabelValues("converged").Inc()
	}

	c.iterations.Observe(float64(iterations))
}

// RecordPredict implements kmeanslab.MetricsCollector.
func (c *PrometheusCollector) RecordPredict(points int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("predict", status(err)).Observe(d.Seconds())
	if err == nil {
		c.predicted.Add(float64(points))
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// registerGauges exposes registry and resource controller state.
func registerGauges(reg prometheus.Registerer, sessions *registry.Registry, rc *resource.Controller) {
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "kmeanslab_sessions",
			Help: "Live sessions",
		}, func() float64 { return float64(sessions.Len()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "kmeanslab_sessions_evicted_total",
			Help: "Sessions evicted for capacity",
		}, func() float64 { return float64(sessions.Stats().Evicted) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "kmeanslab_active_runs",
			Help: "Run operations in progress",
		}, func() float64 { return float64(rc.Stats().ActiveRuns) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "kmeanslab_memory_used_bytes",
			Help: "Memory held by session datasets",
		}, func() float64 { return float64(rc.MemoryUsage()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "kmeanslab_rejected_requests_total",
			Help: "Requests rejected by the rate limiter",
		}, func() float64 { return float64(rc.Stats().RejectedRequests) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "kmeanslab_rejected_runs_total",
			Help: "Run operations rejected for concurrency",
		}, func() float64 { return float64(rc.Stats().RejectedRuns) }),
	)
}
