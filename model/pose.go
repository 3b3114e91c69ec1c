package model

import "github.com/golang/geo/r3"

// SensorPose is the sensor's world position and unit viewing direction.
type SensorPose struct {
	Position  r3.Vector
	Direction r3.Vector
}

// SurfacePoint is a sampled point on the target surface with its outward
// unit normal, both in world space.
type SurfacePoint struct {
	Position r3.Vector
	Normal   r3.Vector
}

// Orientation holds the two rotary axis angles in degrees.
type Orientation struct {
	A float64
	B float64
}
