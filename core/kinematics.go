package core

import (
	"fmt"

	"github.com/golang/geo/r3"
	"go.uber.org/multierr"

	"github.com/signalsfoundry/scanhead-simulator/model"
)

// MachineGeometry holds the scene-scale calibration constants of the
// gantry. Linear spans are world units covered by a 0-100 axis sweep;
// offsets are expressed in the frame of the link they hang from.
type MachineGeometry struct {
	SpanX float64 `json:"span_x"`
	SpanY float64 `json:"span_y"`
	SpanZ float64 `json:"span_z"`

	// WristOrigin is the B-axis pivot relative to the ram frame.
	WristOrigin r3.Vector `json:"wrist_origin"`
	// ForkOffset is the A-axis hinge relative to the B frame.
	ForkOffset r3.Vector `json:"fork_offset"`
	// SensorOffset is the sensor origin relative to the A frame.
	SensorOffset r3.Vector `json:"sensor_offset"`

	// ToolBaseHeight approximates the tool height at Z=0 for trajectory
	// aiming; it is not used by Solve.
	ToolBaseHeight float64 `json:"tool_base_height"`
}

// DefaultMachineGeometry returns the reference gantry calibration.
func DefaultMachineGeometry() MachineGeometry {
	return MachineGeometry{
		SpanX:          6,
		SpanY:          6,
		SpanZ:          2.5,
		WristOrigin:    r3.Vector{X: 0, Y: 7.5, Z: 1.3},
		ForkOffset:     r3.Vector{X: 0, Y: -0.6, Z: 0},
		SensorOffset:   r3.Vector{X: 0.4, Y: -1.25, Z: 0},
		ToolBaseHeight: 5.8,
	}
}

// Validate checks that every span is positive.
func (g MachineGeometry) Validate() error {
	var err error
	if g.SpanX <= 0 {
		err = multierr.Append(err, fmt.Errorf("machine span_x must be positive, got %g", g.SpanX))
	}
	if g.SpanY <= 0 {
		err = multierr.Append(err, fmt.Errorf("machine span_y must be positive, got %g", g.SpanY))
	}
	if g.SpanZ <= 0 {
		err = multierr.Append(err, fmt.Errorf("machine span_z must be positive, got %g", g.SpanZ))
	}
	return err
}

// LinearOffset maps the three linear axes to the accumulated world
// translation of the bridge, carriage and ram. Machine Y travels along
// world Z; the ram extends downward along world Y.
func (g MachineGeometry) LinearOffset(x, y, z float64) r3.Vector {
	return r3.Vector{
		X: (x - 50) / 100 * g.SpanX,
		Y: -(z / 100) * g.SpanZ,
		Z: (y - 50) / 100 * g.SpanY,
	}
}

// ForwardKinematics converts axis values into the sensor's world pose.
type ForwardKinematics struct {
	geom MachineGeometry
}

// NewForwardKinematics constructs a solver for the given geometry.
func NewForwardKinematics(geom MachineGeometry) (*ForwardKinematics, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	return &ForwardKinematics{geom: geom}, nil
}

// Geometry returns the calibration the solver was built with.
func (fk *ForwardKinematics) Geometry() MachineGeometry {
	return fk.geom
}

// Solve composes the chain bridge -> carriage -> ram -> B -> A -> sensor.
// B turns about world Z and is applied before A, which tilts about the
// B-rotated X axis. The order matters whenever both angles are non-zero.
func (fk *ForwardKinematics) Solve(axes model.Axes) model.SensorPose {
	qb := axisRotation(unitZ, DegToRad(axes.B))
	qa := axisRotation(unitX, DegToRad(axes.A))

	// Offset of the sensor from the wrist pivot, expressed in the B frame.
	local := fk.geom.ForkOffset.Add(rotate(qa, fk.geom.SensorOffset))

	pos := fk.geom.LinearOffset(axes.X, axes.Y, axes.Z).
		Add(fk.geom.WristOrigin).
		Add(rotate(qb, local))

	dir := rotate(qb, rotate(qa, down))
	if unit, ok := normalize(dir); ok {
		dir = unit
	}

	return model.SensorPose{Position: pos, Direction: dir}
}
