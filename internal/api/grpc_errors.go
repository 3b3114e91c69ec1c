package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/scanhead-simulator/core"
	"github.com/signalsfoundry/scanhead-simulator/internal/sim"
	"github.com/signalsfoundry/scanhead-simulator/model"
)

// ErrInvalidRequest is used for client-side validation failures.
var ErrInvalidRequest = errors.New("invalid request")

// ToStatusError maps simulator errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, model.ErrInvalidAxisValue):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, sim.ErrTrajectoryActive),
		errors.Is(err, sim.ErrNoTrajectory),
		errors.Is(err, sim.ErrAlreadyPaused),
		errors.Is(err, sim.ErrNotPaused),
		errors.Is(err, core.ErrDegenerateDirection):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
