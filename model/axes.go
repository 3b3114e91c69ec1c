package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidAxisValue marks an operator-supplied axis value outside its range.
// Callers clamp rather than fail; the error is only used for reporting.
var ErrInvalidAxisValue = errors.New("invalid axis value")

// AxisName identifies one degree of freedom of the platform.
type AxisName string

const (
	AxisX AxisName = "x"
	AxisY AxisName = "y"
	AxisZ AxisName = "z"
	AxisA AxisName = "a" // tilt, degrees
	AxisB AxisName = "b" // rotation, degrees
)

// AllAxes lists the axes in machine stacking order.
var AllAxes = []AxisName{AxisX, AxisY, AxisZ, AxisA, AxisB}

// AxisRange is the closed interval an axis may take.
type AxisRange struct {
	Min float64
	Max float64
}

// Contains reports whether v lies inside the range.
func (r AxisRange) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Clamp limits v to the range.
func (r AxisRange) Clamp(v float64) float64 {
	return math.Max(r.Min, math.Min(r.Max, v))
}

// AxisRanges holds the valid range for every axis.
var AxisRanges = map[AxisName]AxisRange{
	AxisX: {Min: 0, Max: 100},
	AxisY: {Min: 0, Max: 100},
	AxisZ: {Min: 0, Max: 100},
	AxisA: {Min: -90, Max: 90},
	AxisB: {Min: -180, Max: 180},
}

// Axes are the five axis values of the platform. Linear axes are in
// machine-normalised units (0-100), rotary axes in degrees.
type Axes struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// HomeAxes returns the pose the platform starts in and is reset to.
// Z=0 is fully retracted, Z=100 fully extended.
func HomeAxes() Axes {
	return Axes{X: 50, Y: 50, Z: 10, A: 0, B: 0}
}

// Get returns the value of the named axis.
func (a Axes) Get(name AxisName) float64 {
	switch name {
	case AxisX:
		return a.X
	case AxisY:
		return a.Y
	case AxisZ:
		return a.Z
	case AxisA:
		return a.A
	case AxisB:
		return a.B
	default:
		return math.NaN()
	}
}

// With returns a copy of a with the named axis set to v.
func (a Axes) With(name AxisName, v float64) Axes {
	switch name {
	case AxisX:
		a.X = v
	case AxisY:
		a.Y = v
	case AxisZ:
		a.Z = v
	case AxisA:
		a.A = v
	case AxisB:
		a.B = v
	}
	return a
}

// Validate returns an error naming every axis outside its range.
func (a Axes) Validate() error {
	var errs []error
	for _, name := range AllAxes {
		v := a.Get(name)
		r := AxisRanges[name]
		if math.IsNaN(v) || !r.Contains(v) {
			errs = append(errs, fmt.Errorf("%w: %s=%g outside [%g, %g]", ErrInvalidAxisValue, name, v, r.Min, r.Max))
		}
	}
	return errors.Join(errs...)
}

// Clamp limits every axis to its range. NaN values fall back to the
// corresponding axis of fallback. The returned slice names the axes that
// had to be adjusted.
func (a Axes) Clamp(fallback Axes) (Axes, []AxisName) {
	var adjusted []AxisName
	out := a
	for _, name := range AllAxes {
		v := a.Get(name)
		r := AxisRanges[name]
		switch {
		case math.IsNaN(v):
			out = out.With(name, r.Clamp(fallback.Get(name)))
		case !r.Contains(v):
			out = out.With(name, r.Clamp(v))
		default:
			continue
		}
		adjusted = append(adjusted, name)
	}
	return out, adjusted
}
