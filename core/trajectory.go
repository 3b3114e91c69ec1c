package core

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"go.uber.org/multierr"

	"github.com/signalsfoundry/scanhead-simulator/model"
)

// TrajectoryConfig describes the scripted approach/orbit/return run.
// Times are seconds since the run started; positions are machine units.
type TrajectoryConfig struct {
	Duration    float64 `json:"duration"`
	ApproachEnd float64 `json:"approach_end"`
	OrbitEnd    float64 `json:"orbit_end"`

	CenterX float64 `json:"center_x"`
	CenterY float64 `json:"center_y"`
	// RadiusY is larger than RadiusX so the orbit covers the long axis of
	// the target.
	RadiusX float64 `json:"radius_x"`
	RadiusY float64 `json:"radius_y"`
	ScanZ   float64 `json:"scan_z"`
	SafeZ   float64 `json:"safe_z"`

	Home model.Axes `json:"home"`

	// LookTarget is the world point the sensor is kept aimed at,
	// approximately the target's centroid.
	LookTarget r3.Vector `json:"look_target"`
}

// DefaultTrajectoryConfig returns the reference 25 s scan script.
func DefaultTrajectoryConfig() TrajectoryConfig {
	return TrajectoryConfig{
		Duration:    25,
		ApproachEnd: 2,
		OrbitEnd:    22,
		CenterX:     50,
		CenterY:     50,
		RadiusX:     60,
		RadiusY:     75,
		ScanZ:       50,
		SafeZ:       20,
		Home:        model.HomeAxes(),
		LookTarget:  r3.Vector{X: 0, Y: 1.3, Z: 0},
	}
}

// Validate checks the phase schedule and orbit shape.
func (c TrajectoryConfig) Validate() error {
	var err error
	if !(c.ApproachEnd > 0 && c.ApproachEnd < c.OrbitEnd && c.OrbitEnd < c.Duration) {
		err = multierr.Append(err, fmt.Errorf(
			"trajectory phases must satisfy 0 < approach_end < orbit_end < duration, got %g/%g/%g",
			c.ApproachEnd, c.OrbitEnd, c.Duration))
	}
	if c.RadiusX <= 0 || c.RadiusY <= 0 {
		err = multierr.Append(err, fmt.Errorf("orbit radii must be positive, got %g/%g", c.RadiusX, c.RadiusY))
	}
	if verr := c.Home.Validate(); verr != nil {
		err = multierr.Append(err, fmt.Errorf("trajectory home: %w", verr))
	}
	return err
}

// TrajectoryStep is the generator output for one elapsed time.
type TrajectoryStep struct {
	Axes  model.Axes
	Phase model.TrajectoryPhase
	Done  bool
	// Degenerate is set when the look-at direction could not be solved;
	// Axes then carries A=B=0 and callers should keep their previous
	// orientation.
	Degenerate bool
}

// TrajectoryGenerator produces target axes as a pure function of elapsed
// time, so replaying the same elapsed values yields the same path.
type TrajectoryGenerator struct {
	cfg  TrajectoryConfig
	geom MachineGeometry
}

// NewTrajectoryGenerator validates cfg and geom and returns a generator.
func NewTrajectoryGenerator(cfg TrajectoryConfig, geom MachineGeometry) (*TrajectoryGenerator, error) {
	if err := multierr.Combine(cfg.Validate(), geom.Validate()); err != nil {
		return nil, err
	}
	return &TrajectoryGenerator{cfg: cfg, geom: geom}, nil
}

// Config returns the schedule the generator runs.
func (g *TrajectoryGenerator) Config() TrajectoryConfig {
	return g.cfg
}

// Duration returns the total run length in seconds.
func (g *TrajectoryGenerator) Duration() float64 {
	return g.cfg.Duration
}

// PhaseAt returns the phase active at elapsed seconds.
func (g *TrajectoryGenerator) PhaseAt(elapsed float64) model.TrajectoryPhase {
	switch {
	case elapsed < 0 || elapsed > g.cfg.Duration:
		return model.PhaseIdle
	case elapsed < g.cfg.ApproachEnd:
		return model.PhaseApproach
	case elapsed < g.cfg.OrbitEnd:
		return model.PhaseOrbit
	default:
		return model.PhaseReturn
	}
}

// Step evaluates the script at elapsed seconds since the run started.
func (g *TrajectoryGenerator) Step(elapsed float64) TrajectoryStep {
	c := g.cfg
	home := c.Home

	if elapsed > c.Duration {
		return TrajectoryStep{
			Axes:  model.Axes{X: home.X, Y: home.Y, Z: c.SafeZ},
			Phase: model.PhaseIdle,
			Done:  true,
		}
	}
	if elapsed < 0 || math.IsNaN(elapsed) {
		return TrajectoryStep{Axes: home, Phase: model.PhaseIdle}
	}

	phase := g.PhaseAt(elapsed)
	// The orbit starts and ends at theta = pi.
	orbitX := c.CenterX - c.RadiusX
	orbitY := c.CenterY

	var x, y, z float64
	switch phase {
	case model.PhaseApproach:
		t := elapsed / c.ApproachEnd
		x = lerp(home.X, orbitX, t)
		y = lerp(home.Y, orbitY, t)
		z = lerp(home.Z, c.ScanZ, t)
	case model.PhaseOrbit:
		progress := (elapsed - c.ApproachEnd) / (c.OrbitEnd - c.ApproachEnd)
		theta := math.Pi + progress*2*math.Pi
		x = c.CenterX + c.RadiusX*math.Cos(theta)
		y = c.CenterY + c.RadiusY*math.Sin(theta)
		z = c.ScanZ
	default:
		t := (elapsed - c.OrbitEnd) / (c.Duration - c.OrbitEnd)
		x = lerp(orbitX, home.X, t)
		y = lerp(orbitY, home.Y, t)
		z = lerp(c.ScanZ, home.Z, t)
	}

	axes, _ := model.Axes{X: x, Y: y, Z: z}.Clamp(home)

	orient, err := LookAt(g.ToolPosition(axes.X, axes.Y, axes.Z), c.LookTarget, model.Orientation{})
	axes.A = orient.A
	axes.B = orient.B
	axes, _ = axes.Clamp(home)

	return TrajectoryStep{Axes: axes, Phase: phase, Degenerate: err != nil}
}

// ToolPosition is the approximate world position of the tool used for
// aiming during the scripted run.
func (g *TrajectoryGenerator) ToolPosition(x, y, z float64) r3.Vector {
	off := g.geom.LinearOffset(x, y, 0)
	return r3.Vector{
		X: off.X,
		Y: g.geom.ToolBaseHeight - (z/100)*g.geom.SpanZ,
		Z: off.Z,
	}
}
