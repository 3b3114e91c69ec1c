package core

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// PrimitiveKind names the solid a Primitive samples.
type PrimitiveKind string

const (
	PrimitiveBox      PrimitiveKind = "box"
	PrimitiveCylinder PrimitiveKind = "cylinder"
)

// Primitive is one solid of the composite target. For a box, Size holds
// width, height and depth. For a cylinder, Size.X is the radius and Size.Y
// the height along the local Y axis. Rotation is an XYZ Euler triple in
// radians.
type Primitive struct {
	ID       string        `json:"id"`
	Kind     PrimitiveKind `json:"kind"`
	Size     r3.Vector     `json:"size"`
	Position r3.Vector     `json:"position"`
	Rotation r3.Vector     `json:"rotation"`
	// Count overrides the area-derived sample count when positive.
	Count int `json:"count,omitempty"`
}

// Validate checks the primitive's kind and dimensions.
func (p Primitive) Validate() error {
	switch p.Kind {
	case PrimitiveBox:
		if p.Size.X <= 0 || p.Size.Y <= 0 || p.Size.Z <= 0 {
			return fmt.Errorf("primitive %q: box size must be positive, got %v", p.ID, p.Size)
		}
	case PrimitiveCylinder:
		if p.Size.X <= 0 || p.Size.Y <= 0 {
			return fmt.Errorf("primitive %q: cylinder radius and height must be positive, got %v", p.ID, p.Size)
		}
	default:
		return fmt.Errorf("primitive %q: unknown kind %q", p.ID, p.Kind)
	}
	if p.Count < 0 {
		return fmt.Errorf("primitive %q: count must not be negative", p.ID)
	}
	return nil
}

// SurfaceArea is the sampled area: all six faces of a box, or the lateral
// surface of a cylinder.
func (p Primitive) SurfaceArea() float64 {
	switch p.Kind {
	case PrimitiveBox:
		w, h, d := p.Size.X, p.Size.Y, p.Size.Z
		return 2 * (w*h + w*d + h*d)
	case PrimitiveCylinder:
		return 2 * math.Pi * p.Size.X * p.Size.Y
	default:
		return 0
	}
}

// SampleCount returns how many points to draw at the given density
// (points per unit area).
func (p Primitive) SampleCount(density float64) int {
	if p.Count > 0 {
		return p.Count
	}
	return int(math.Ceil(p.SurfaceArea() * density))
}

func (p Primitive) orientation() quat.Number {
	return eulerXYZ(p.Rotation)
}

// encloses reports whether the world point lies inside the primitive's
// transformed extent, allowing tol of slack on every side.
func (p Primitive) encloses(world r3.Vector, tol float64) bool {
	local := rotate(quat.Conj(p.orientation()), world.Sub(p.Position))
	switch p.Kind {
	case PrimitiveBox:
		return math.Abs(local.X) <= p.Size.X/2+tol &&
			math.Abs(local.Y) <= p.Size.Y/2+tol &&
			math.Abs(local.Z) <= p.Size.Z/2+tol
	case PrimitiveCylinder:
		radial := math.Hypot(local.X, local.Z)
		return radial <= p.Size.X+tol && math.Abs(local.Y) <= p.Size.Y/2+tol
	default:
		return false
	}
}

const (
	// DefaultSceneScale enlarges the reference target for visibility.
	DefaultSceneScale = 1.3
	// DefaultPlatformHeight is the table top the target rests on.
	DefaultPlatformHeight = 1.3
	// DefaultDensity is the sampling density in points per unit area.
	DefaultDensity = 20000.0
)

// DefaultPrimitives returns the reference target: a stylised lion built
// from eight boxes and a cylinder tail, scaled by sc.
func DefaultPrimitives(sc float64) []Primitive {
	box := func(id string, w, h, d, x, y, z, rx float64) Primitive {
		return Primitive{
			ID:       id,
			Kind:     PrimitiveBox,
			Size:     r3.Vector{X: w * sc, Y: h * sc, Z: d * sc},
			Position: r3.Vector{X: x * sc, Y: y * sc, Z: z * sc},
			Rotation: r3.Vector{X: rx},
		}
	}
	return []Primitive{
		box("body", 0.8, 0.9, 1.6, 0, 0.8, 0, 0),
		box("head", 0.9, 0.9, 1.0, 0, 1.4, 1.1, 0),
		box("snout", 0.5, 0.4, 0.4, 0, 1.3, 1.7, 0),
		box("mane", 1.1, 1.1, 0.6, 0, 1.4, 0.8, 0.1),
		box("front-leg-left", 0.25, 1.2, 0.3, -0.3, 0.6, 1.1, 0),
		box("front-leg-right", 0.25, 1.2, 0.3, 0.3, 0.6, 1.1, 0),
		box("back-leg-left", 0.3, 1.0, 0.4, -0.35, 0.5, -0.6, -0.2),
		box("back-leg-right", 0.3, 1.0, 0.4, 0.35, 0.5, -0.6, -0.2),
		{
			ID:       "tail",
			Kind:     PrimitiveCylinder,
			Size:     r3.Vector{X: 0.05 * sc, Y: 1.0 * sc},
			Position: r3.Vector{X: 0, Y: 0.8 * sc, Z: -1.0 * sc},
			Rotation: r3.Vector{X: math.Pi / 3},
			Count:    300,
		},
	}
}
