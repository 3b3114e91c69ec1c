// Package api exposes a scan session over gRPC with a JSON codec.
package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/signalsfoundry/scanhead-simulator/internal/advisory"
	"github.com/signalsfoundry/scanhead-simulator/internal/logging"
	"github.com/signalsfoundry/scanhead-simulator/internal/sim"
	"github.com/signalsfoundry/scanhead-simulator/kb"
	"github.com/signalsfoundry/scanhead-simulator/timectrl"
)

// ScanService implements ScanServiceServer on top of a sim.Session. Run
// commands are stamped with the simulation clock so that trajectory timing
// follows simulated rather than wall time.
type ScanService struct {
	session *sim.Session
	clock   timectrl.SimClock
	advisor advisory.Service
	log     logging.Logger
}

var _ ScanServiceServer = (*ScanService)(nil)

// NewScanService constructs the service. advisor may be nil, in which case
// Advise answers with an error string.
func NewScanService(session *sim.Session, clock timectrl.SimClock, advisor advisory.Service, log logging.Logger) *ScanService {
	if log == nil {
		log = logging.Noop()
	}
	return &ScanService{session: session, clock: clock, advisor: advisor, log: log}
}

func (s *ScanService) GetState(ctx context.Context, req *GetStateRequest) (*State, error) {
	return stateFrom(s.session.Status(req.IncludePositions)), nil
}

// WatchState sends the current state, then a fresh state after every kb
// event until the client goes away. Bursts of events are coalesced.
func (s *ScanService) WatchState(req *WatchStateRequest, stream ScanService_WatchStateServer) error {
	ctx := stream.Context()
	log := logging.FromContext(ctx, s.log)

	changed := make(chan struct{}, 1)
	unsubscribe := s.session.Store().Subscribe(func(kb.Event) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	log.Debug(ctx, "watch opened", logging.Bool("include_positions", req.IncludePositions))
	for {
		if err := stream.Send(stateFrom(s.session.Status(req.IncludePositions))); err != nil {
			log.Debug(ctx, "watch send failed", logging.Err(err))
			return err
		}
		select {
		case <-ctx.Done():
			log.Debug(ctx, "watch closed")
			return nil
		case <-changed:
		}
	}
}

func (s *ScanService) StartTrajectory(ctx context.Context, _ *Empty) (*StartTrajectoryResponse, error) {
	id, err := s.session.StartTrajectory(ctx, s.clock.Now())
	if err != nil {
		return nil, ToStatusError(err)
	}
	return &StartTrajectoryResponse{RunID: id}, nil
}

func (s *ScanService) AbortTrajectory(ctx context.Context, _ *Empty) (*Empty, error) {
	if err := s.session.AbortTrajectory(ctx); err != nil {
		return nil, ToStatusError(err)
	}
	return &Empty{}, nil
}

func (s *ScanService) PauseTrajectory(ctx context.Context, _ *Empty) (*Empty, error) {
	if err := s.session.PauseTrajectory(ctx, s.clock.Now()); err != nil {
		return nil, ToStatusError(err)
	}
	return &Empty{}, nil
}

func (s *ScanService) ResumeTrajectory(ctx context.Context, _ *Empty) (*Empty, error) {
	if err := s.session.ResumeTrajectory(ctx, s.clock.Now()); err != nil {
		return nil, ToStatusError(err)
	}
	return &Empty{}, nil
}

func (s *ScanService) Reset(ctx context.Context, _ *Empty) (*Empty, error) {
	s.session.Reset(ctx)
	return &Empty{}, nil
}

func (s *ScanService) SetAxes(ctx context.Context, req *SetAxesRequest) (*SetAxesResponse, error) {
	applied, clamped, err := s.session.SetAxes(ctx, req.Axes)
	if err != nil {
		return nil, ToStatusError(err)
	}
	resp := &SetAxesResponse{Axes: applied}
	for _, name := range clamped {
		resp.Clamped = append(resp.Clamped, string(name))
	}
	return resp, nil
}

func (s *ScanService) SetScanning(ctx context.Context, req *SetScanningRequest) (*Empty, error) {
	s.session.SetScanning(ctx, req.Scanning)
	return &Empty{}, nil
}

// Advise forwards an operator question to the advisory service. Service
// failures come back as response text, never as RPC errors.
func (s *ScanService) Advise(ctx context.Context, req *AdviseRequest) (*AdviseResponse, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, ToStatusError(fmt.Errorf("%w: prompt is empty", ErrInvalidRequest))
	}
	if req.IncludeState {
		prompt = describe(s.session.Status(false)) + "\n\n" + prompt
	}
	text := advisory.Guidance(ctx, s.advisor, prompt)
	if strings.HasPrefix(text, "Error: ") {
		logging.FromContext(ctx, s.log).Warn(ctx, "advisory request failed", logging.String("reply", text))
	}
	return &AdviseResponse{Text: text}, nil
}

func describe(st sim.Status) string {
	a := st.Axes
	return fmt.Sprintf(
		"Current scan: mode %s, phase %s, axes X=%.1f Y=%.1f Z=%.1f A=%.1f B=%.1f, %d of %d points acquired (%.1f%% coverage).",
		st.Mode, st.Phase, a.X, a.Y, a.Z, a.A, a.B, st.Acquired, st.CloudSize, st.Coverage*100)
}
