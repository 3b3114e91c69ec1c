package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Trajectory run outcomes used as the "outcome" label.
const (
	OutcomeCompleted = "completed"
	OutcomeAborted   = "aborted"
	OutcomeReset     = "reset"
)

// ScanCollector exposes simulation metrics. All methods are safe on a nil
// receiver so callers can run without metrics.
type ScanCollector struct {
	gatherer prometheus.Gatherer

	Ticks            prometheus.Counter
	TickDuration     prometheus.Histogram
	AcquiredPoints   prometheus.Gauge
	CloudPoints      prometheus.Gauge
	Coverage         prometheus.Gauge
	TrajectoryRuns   *prometheus.CounterVec
	LookAtDegenerate prometheus.Counter
	AxisClamps       *prometheus.CounterVec
}

// NewScanCollector registers simulation metrics against reg.
func NewScanCollector(reg prometheus.Registerer) (*ScanCollector, error) {
	reg, gatherer := resolveRegistry(reg)

	ticks, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scanhead_ticks_total",
		Help: "Simulation ticks processed.",
	}), "scanhead_ticks_total")
	if err != nil {
		return nil, err
	}
	tickDuration, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scanhead_tick_duration_seconds",
		Help:    "Wall time spent in one simulation tick, visibility included.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.016, 0.033, 0.05, 0.1},
	}), "scanhead_tick_duration_seconds")
	if err != nil {
		return nil, err
	}
	acquired, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scanhead_acquired_points",
		Help: "Number of surface points acquired in the current session.",
	}), "scanhead_acquired_points")
	if err != nil {
		return nil, err
	}
	cloud, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scanhead_cloud_points",
		Help: "Size of the sampled target point cloud.",
	}), "scanhead_cloud_points")
	if err != nil {
		return nil, err
	}
	coverage, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scanhead_coverage_ratio",
		Help: "Fraction of the point cloud acquired, between 0 and 1.",
	}), "scanhead_coverage_ratio")
	if err != nil {
		return nil, err
	}
	runs, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scanhead_trajectory_runs_total",
		Help: "Finished trajectory runs by outcome.",
	}, []string{"outcome"}), "scanhead_trajectory_runs_total")
	if err != nil {
		return nil, err
	}
	degenerate, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scanhead_lookat_degenerate_total",
		Help: "Trajectory steps whose look-at direction could not be solved.",
	}), "scanhead_lookat_degenerate_total")
	if err != nil {
		return nil, err
	}
	clamps, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scanhead_axis_clamps_total",
		Help: "Operator axis values clamped into range, by axis.",
	}, []string{"axis"}), "scanhead_axis_clamps_total")
	if err != nil {
		return nil, err
	}

	return &ScanCollector{
		gatherer:         gatherer,
		Ticks:            ticks,
		TickDuration:     tickDuration,
		AcquiredPoints:   acquired,
		CloudPoints:      cloud,
		Coverage:         coverage,
		TrajectoryRuns:   runs,
		LookAtDegenerate: degenerate,
		AxisClamps:       clamps,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *ScanCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes the collector's registry over HTTP.
func (c *ScanCollector) Handler() http.Handler {
	return handlerFor(c.Gatherer())
}

// ObserveTick records one tick and the scan totals after it.
func (c *ScanCollector) ObserveTick(d time.Duration, acquired, cloudSize int) {
	if c == nil {
		return
	}
	c.Ticks.Inc()
	c.TickDuration.Observe(d.Seconds())
	c.SetScanTotals(acquired, cloudSize)
}

// SetScanTotals updates the acquired, cloud and coverage gauges.
func (c *ScanCollector) SetScanTotals(acquired, cloudSize int) {
	if c == nil {
		return
	}
	c.AcquiredPoints.Set(float64(acquired))
	c.CloudPoints.Set(float64(cloudSize))
	ratio := 0.0
	if cloudSize > 0 {
		ratio = float64(acquired) / float64(cloudSize)
	}
	c.Coverage.Set(ratio)
}

// RunFinished counts a trajectory run with the given outcome.
func (c *ScanCollector) RunFinished(outcome string) {
	if c == nil {
		return
	}
	c.TrajectoryRuns.WithLabelValues(outcome).Inc()
}

// IncDegenerate counts a look-at step that kept the previous orientation.
func (c *ScanCollector) IncDegenerate() {
	if c == nil {
		return
	}
	c.LookAtDegenerate.Inc()
}

// IncAxisClamp counts one clamped operator value.
func (c *ScanCollector) IncAxisClamp(axis string) {
	if c == nil {
		return
	}
	c.AxisClamps.WithLabelValues(axis).Inc()
}
