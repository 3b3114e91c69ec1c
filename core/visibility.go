package core

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/scanhead-simulator/model"
)

// VisibilityConfig parameterises the sensing cone.
type VisibilityConfig struct {
	FOVDeg   float64 `json:"fov_deg"`
	MaxRange float64 `json:"max_range"`
	MinRange float64 `json:"min_range"`
	// Stride > 1 evaluates every Stride-th candidate per tick, rotating
	// the starting offset so all points are reconsidered every Stride
	// ticks.
	Stride int `json:"stride"`
	// Workers > 1 splits each tick across that many goroutines.
	Workers int `json:"workers"`
}

// DefaultVisibilityConfig returns the reference sensor: 75 degree cone,
// 0.1 to 2.3 units of range, serial full scan.
func DefaultVisibilityConfig() VisibilityConfig {
	return VisibilityConfig{FOVDeg: 75, MaxRange: 2.3, MinRange: 0.1, Stride: 1, Workers: 1}
}

// Validate checks the cone and range.
func (c VisibilityConfig) Validate() error {
	var err error
	if c.FOVDeg <= 0 || c.FOVDeg >= 360 {
		err = multierr.Append(err, fmt.Errorf("visibility fov_deg must be in (0, 360), got %g", c.FOVDeg))
	}
	if c.MinRange < 0 || c.MaxRange <= c.MinRange {
		err = multierr.Append(err, fmt.Errorf("visibility range must satisfy 0 <= min < max, got %g/%g", c.MinRange, c.MaxRange))
	}
	if c.Stride < 0 || c.Workers < 0 {
		err = multierr.Append(err, fmt.Errorf("visibility stride and workers must not be negative"))
	}
	return err
}

// VisibilityEngine decides which surface points fall inside the sensing
// cone each tick and records them in a ScanState.
type VisibilityEngine struct {
	cfg     VisibilityConfig
	cosHalf float64
	ticks   int
	hits    []bool
}

// NewVisibilityEngine validates cfg and returns an engine.
func NewVisibilityEngine(cfg VisibilityConfig) (*VisibilityEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Stride == 0 {
		cfg.Stride = 1
	}
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	return &VisibilityEngine{
		cfg:     cfg,
		cosHalf: math.Cos(DegToRad(cfg.FOVDeg) / 2),
	}, nil
}

// Config returns the engine's effective configuration.
func (e *VisibilityEngine) Config() VisibilityConfig {
	return e.cfg
}

// Visible applies the range, cone and backface tests to one point.
// direction must be unit length.
func (e *VisibilityEngine) Visible(position, direction r3.Vector, pt model.SurfacePoint) bool {
	toPoint := pt.Position.Sub(position)
	dist := toPoint.Norm()
	if dist >= e.cfg.MaxRange || dist <= e.cfg.MinRange {
		return false
	}
	// Inside the cone when the angle to the axis is below half the FOV.
	if toPoint.Dot(direction)/dist <= e.cosHalf {
		return false
	}
	// The surface must face the sensor: dot(sensor - point, normal) > 0.
	return toPoint.Dot(pt.Normal) < 0
}

// Tick inserts every newly visible point into scan and reports whether
// anything was added. Already-acquired points are skipped.
func (e *VisibilityEngine) Tick(pose model.SensorPose, cloud *PointCloud, scan *ScanState) bool {
	n := cloud.Len()
	if n == 0 {
		return false
	}
	dir, ok := normalize(pose.Direction)
	if !ok {
		return false
	}

	stride := e.cfg.Stride
	offset := e.ticks % stride
	e.ticks++

	if e.cfg.Workers <= 1 || n < e.cfg.Workers*stride {
		changed := false
		for i := offset; i < n; i += stride {
			if scan.Has(i) {
				continue
			}
			if e.Visible(pose.Position, dir, cloud.Points[i]) {
				scan.Add(i)
				changed = true
			}
		}
		return changed
	}

	if len(e.hits) < n {
		e.hits = make([]bool, n)
	}
	hits := e.hits[:n]

	// Each shard owns a disjoint slice of hits; scan is only read here.
	shard := (n + e.cfg.Workers - 1) / e.cfg.Workers
	var g errgroup.Group
	for w := range e.cfg.Workers {
		lo := w * shard
		hi := min(lo+shard, n)
		if lo >= hi {
			break
		}
		g.Go(func() error {
			first := lo + ((offset-lo)%stride+stride)%stride
			for i := lo; i < hi; i++ {
				hits[i] = false
			}
			for i := first; i < hi; i += stride {
				if !scan.Has(i) && e.Visible(pose.Position, dir, cloud.Points[i]) {
					hits[i] = true
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	changed := false
	for i := offset; i < n; i += stride {
		if hits[i] && scan.Add(i) {
			changed = true
		}
	}
	return changed
}
