package core

import (
	"errors"
	"math"

	"github.com/golang/geo/r3"

	"github.com/signalsfoundry/scanhead-simulator/model"
)

// ErrDegenerateDirection is returned when the tool and target coincide and
// no viewing direction can be derived.
var ErrDegenerateDirection = errors.New("degenerate look direction")

// LookAt returns the A/B angles (degrees) that point the sensor from tool
// towards target. It is the inverse of the direction part of
// ForwardKinematics.Solve: A=B=0 looks straight down, A tilts the head
// along world Z and B swings it towards world X.
//
// When tool and target coincide, prev is returned unchanged together with
// ErrDegenerateDirection.
func LookAt(tool, target r3.Vector, prev model.Orientation) (model.Orientation, error) {
	dir, ok := normalize(target.Sub(tool))
	if !ok {
		return prev, ErrDegenerateDirection
	}

	a := -math.Asin(clampUnit(dir.Z))
	b := math.Atan2(dir.X, -dir.Y)

	return model.Orientation{A: RadToDeg(a), B: RadToDeg(b)}, nil
}
