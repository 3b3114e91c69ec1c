package core

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// degenerateEpsilon is the length below which a direction vector is
// considered to have no usable heading.
const degenerateEpsilon = 1e-12

var (
	unitX = r3.Vector{X: 1}
	unitZ = r3.Vector{Z: 1}
	// down is the sensing direction of the head in its own frame.
	down = r3.Vector{Y: -1}
)

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 { return deg * math.Pi / 180.0 }

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 { return rad * 180.0 / math.Pi }

// axisRotation returns the unit quaternion rotating by angle (radians)
// about the given unit axis.
func axisRotation(axis r3.Vector, angle float64) quat.Number {
	s, c := math.Sincos(angle / 2)
	return quat.Number{Real: c, Imag: axis.X * s, Jmag: axis.Y * s, Kmag: axis.Z * s}
}

// eulerXYZ composes intrinsic X, then Y, then Z rotations (radians), the
// convention scene files use for primitive orientation.
func eulerXYZ(rot r3.Vector) quat.Number {
	qx := axisRotation(unitX, rot.X)
	qy := axisRotation(r3.Vector{Y: 1}, rot.Y)
	qz := axisRotation(unitZ, rot.Z)
	return quat.Mul(quat.Mul(qx, qy), qz)
}

// rotate applies the unit quaternion q to v.
func rotate(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// normalize returns v scaled to unit length, or false if v is too short
// to carry a direction.
func normalize(v r3.Vector) (r3.Vector, bool) {
	n := v.Norm()
	if n < degenerateEpsilon || math.IsNaN(n) {
		return r3.Vector{}, false
	}
	return v.Mul(1 / n), true
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
