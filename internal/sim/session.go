// Package sim coordinates a scan session: operator commands, trajectory
// runs and the per-tick pipeline over the shared kb store.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/signalsfoundry/scanhead-simulator/core"
	"github.com/signalsfoundry/scanhead-simulator/internal/logging"
	"github.com/signalsfoundry/scanhead-simulator/kb"
	"github.com/signalsfoundry/scanhead-simulator/model"
)

var (
	// ErrTrajectoryActive is returned when a command needs manual control
	// but a trajectory run is in progress.
	ErrTrajectoryActive = errors.New("trajectory run in progress")
	// ErrNoTrajectory is returned by run commands when nothing is running.
	ErrNoTrajectory = errors.New("no trajectory run in progress")
	// ErrAlreadyPaused is returned when pausing a paused run.
	ErrAlreadyPaused = errors.New("trajectory run already paused")
	// ErrNotPaused is returned when resuming a run that is not paused.
	ErrNotPaused = errors.New("trajectory run not paused")
)

// Run outcomes reported to MetricsRecorder.RunFinished.
const (
	OutcomeCompleted = "completed"
	OutcomeAborted   = "aborted"
	OutcomeReset     = "reset"
)

// MetricsRecorder receives session measurements. *observability.ScanCollector
// satisfies it.
type MetricsRecorder interface {
	ObserveTick(d time.Duration, acquired, cloudSize int)
	SetScanTotals(acquired, cloudSize int)
	RunFinished(outcome string)
	IncDegenerate()
	IncAxisClamp(axis string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveTick(time.Duration, int, int) {}
func (noopMetrics) SetScanTotals(int, int)              {}
func (noopMetrics) RunFinished(string)                  {}
func (noopMetrics) IncDegenerate()                      {}
func (noopMetrics) IncAxisClamp(string)                 {}

// SessionOption customises Session construction.
type SessionOption func(*Session)

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m MetricsRecorder) SessionOption {
	return func(s *Session) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the tracer used for run and tick spans.
func WithTracer(t trace.Tracer) SessionOption {
	return func(s *Session) {
		if t != nil {
			s.tracer = t
		}
	}
}

// run is one trajectory execution. Elapsed time is measured from start
// minus the time spent paused.
type run struct {
	id          string
	start       time.Time
	paused      bool
	pausedAt    time.Time
	pausedTotal time.Duration
	span        trace.Span
}

func (r *run) elapsed(now time.Time) float64 {
	end := now
	if r.paused {
		end = r.pausedAt
	}
	return end.Sub(r.start).Seconds() - r.pausedTotal.Seconds()
}

// Status is a renderer-facing view of the session.
type Status struct {
	Seq       uint64
	Axes      model.Axes
	Pose      model.SensorPose
	Phase     model.TrajectoryPhase
	Mode      model.ControlMode
	Scanning  bool
	Paused    bool
	RunID     string
	Elapsed   float64
	Acquired  int
	CloudSize int
	Coverage  float64
	// Positions holds the acquired points as x,y,z triples when requested.
	Positions []float32
}

// Session serialises every operator command and tick behind one mutex.
// Lock ordering is Session then KB.
type Session struct {
	mu sync.Mutex

	engine *core.SimulationEngine
	store  *kb.KnowledgeBase
	home   model.Axes

	log     logging.Logger
	metrics MetricsRecorder
	tracer  trace.Tracer

	mode     model.ControlMode
	scanning bool
	run      *run
	phase    model.TrajectoryPhase
	elapsed  float64
}

// NewSession builds a session at the trajectory home pose with an empty
// scan set.
func NewSession(engine *core.SimulationEngine, opts ...SessionOption) (*Session, error) {
	if engine == nil {
		return nil, errors.New("sim: engine is nil")
	}
	home := engine.Trajectory.Config().Home
	s := &Session{
		engine:  engine,
		store:   kb.NewKnowledgeBase(home, engine.Cloud.Len()),
		home:    home,
		log:     logging.Noop(),
		metrics: noopMetrics{},
		tracer:  noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics.SetScanTotals(0, engine.Cloud.Len())
	return s, nil
}

// Store exposes the session's kb store, mainly for subscriptions.
func (s *Session) Store() *kb.KnowledgeBase {
	return s.store
}

// Engine returns the tick pipeline the session drives.
func (s *Session) Engine() *core.SimulationEngine {
	return s.engine
}

// StartTrajectory begins a scripted run at now and turns scanning on. It
// returns the run ID.
func (s *Session) StartTrajectory(ctx context.Context, now time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run != nil {
		return "", ErrTrajectoryActive
	}
	id := logging.NewID()
	_, span := s.tracer.Start(ctx, "scan.trajectory",
		trace.WithAttributes(
			attribute.String("scan.run_id", id),
			attribute.Float64("scan.duration_s", s.engine.Trajectory.Duration()),
		))
	s.run = &run{id: id, start: now, span: span}
	s.mode = model.ModeAuto
	s.scanning = true
	s.phase = model.PhaseApproach
	s.elapsed = 0

	s.log.Info(ctx, "trajectory started",
		logging.String("run_id", id),
		logging.Float64("duration_s", s.engine.Trajectory.Duration()),
		logging.Axes("from", s.store.Axes()),
	)
	return id, nil
}

// AbortTrajectory stops the current run. Axes stay where the last tick
// left them and the scan set is untouched.
func (s *Session) AbortTrajectory(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run == nil {
		return ErrNoTrajectory
	}
	s.finishRunLocked(ctx, OutcomeAborted)
	return nil
}

// PauseTrajectory freezes the run clock at now.
func (s *Session) PauseTrajectory(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run == nil {
		return ErrNoTrajectory
	}
	if s.run.paused {
		return ErrAlreadyPaused
	}
	s.run.paused = true
	s.run.pausedAt = now
	s.run.span.AddEvent("paused")
	s.log.Info(ctx, "trajectory paused",
		logging.String("run_id", s.run.id),
		logging.Float64("elapsed_s", s.run.elapsed(now)),
	)
	return nil
}

// ResumeTrajectory continues a paused run. The paused interval does not
// count towards elapsed time.
func (s *Session) ResumeTrajectory(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run == nil {
		return ErrNoTrajectory
	}
	if !s.run.paused {
		return ErrNotPaused
	}
	if now.After(s.run.pausedAt) {
		s.run.pausedTotal += now.Sub(s.run.pausedAt)
	}
	s.run.paused = false
	s.run.span.AddEvent("resumed")
	s.log.Info(ctx, "trajectory resumed", logging.String("run_id", s.run.id))
	return nil
}

// Reset cancels any run, stops scanning, homes the axes and clears the scan
// set. Observers see the new state in a single event.
func (s *Session) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run != nil {
		s.finishRunLocked(ctx, OutcomeReset)
	}
	s.scanning = false
	s.phase = model.PhaseIdle
	s.elapsed = 0
	s.store.Reset(s.home)
	s.metrics.SetScanTotals(0, s.engine.Cloud.Len())
	s.log.Info(ctx, "session reset")
}

// SetAxes moves the platform under manual control. Out-of-range values are
// clamped and NaN values keep the current axis value; the adjusted axes are
// returned alongside the applied position.
func (s *Session) SetAxes(ctx context.Context, axes model.Axes) (model.Axes, []model.AxisName, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run != nil {
		return s.store.Axes(), nil, ErrTrajectoryActive
	}
	clamped, adjusted := axes.Clamp(s.store.Axes())
	for _, name := range adjusted {
		s.metrics.IncAxisClamp(string(name))
		s.log.Debug(ctx, "axis value clamped",
			logging.String("axis", string(name)),
			logging.Float64("requested", axes.Get(name)),
			logging.Float64("applied", clamped.Get(name)),
		)
	}
	s.store.SetAxes(clamped)
	s.log.Debug(ctx, "axes set", logging.Axes("axes", clamped), logging.Int("clamped", len(adjusted)))
	return clamped, adjusted, nil
}

// SetScanning turns point acquisition on or off.
func (s *Session) SetScanning(ctx context.Context, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scanning != on {
		s.log.Info(ctx, "scanning toggled", logging.Bool("scanning", on))
	}
	s.scanning = on
}

// Tick advances the session to now: the trajectory (when running and not
// paused) sets the axes, then visible points are acquired if scanning is on.
func (s *Session) Tick(ctx context.Context, now time.Time) core.TickReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now()
	frame := core.Frame{Scanning: s.scanning}
	runCtx := ctx
	if s.run != nil {
		runCtx = trace.ContextWithSpan(ctx, s.run.span)
		if !s.run.paused {
			frame.Auto = true
			frame.Elapsed = s.run.elapsed(now)
		}
	}
	_, span := s.tracer.Start(runCtx, "scan.tick")
	defer span.End()

	var report core.TickReport
	s.store.Update(func(axes *model.Axes, scan *core.ScanState) bool {
		var st core.State
		st, report = s.engine.Step(frame, core.State{Axes: *axes, Scan: scan})
		*axes = st.Axes
		return report.Added > 0
	})

	if frame.Auto {
		s.phase = report.Phase
		s.elapsed = report.Elapsed
	}
	if report.Degenerate {
		s.metrics.IncDegenerate()
		s.log.Warn(ctx, "look-at direction degenerate; keeping previous orientation",
			logging.Float64("elapsed_s", report.Elapsed),
			logging.Err(core.ErrDegenerateDirection),
		)
	}
	if report.Done {
		s.finishRunLocked(ctx, OutcomeCompleted)
	}

	cloudSize := s.engine.Cloud.Len()
	s.metrics.ObserveTick(time.Since(started), report.Acquired, cloudSize)
	span.SetAttributes(
		attribute.String("scan.phase", report.Phase.String()),
		attribute.Int("scan.added", report.Added),
		attribute.Int("scan.acquired", report.Acquired),
	)
	return report
}

// finishRunLocked ends the current run and hands control back to the
// operator. Callers hold s.mu.
func (s *Session) finishRunLocked(ctx context.Context, outcome string) {
	r := s.run
	s.run = nil
	s.mode = model.ModeManual
	s.scanning = false
	s.phase = model.PhaseIdle

	acquired := s.store.Acquired()
	r.span.SetAttributes(
		attribute.String("scan.outcome", outcome),
		attribute.Int("scan.acquired", acquired),
	)
	r.span.End()
	s.metrics.RunFinished(outcome)
	s.log.Info(ctx, fmt.Sprintf("trajectory %s", outcome),
		logging.String("run_id", r.id),
		logging.Int("acquired", acquired),
		logging.Float64("coverage", float64(acquired)/float64(max(1, s.engine.Cloud.Len()))),
	)
}

// Status returns a consistent view of the session. Positions is filled only
// when includePositions is set.
func (s *Session) Status(includePositions bool) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.store.Snapshot()
	cloudSize := s.engine.Cloud.Len()
	st := Status{
		Seq:       snap.Seq,
		Axes:      snap.Axes,
		Pose:      s.engine.FK.Solve(snap.Axes),
		Phase:     s.phase,
		Mode:      s.mode,
		Scanning:  s.scanning,
		Elapsed:   s.elapsed,
		Acquired:  snap.Scan.Len(),
		CloudSize: cloudSize,
		Coverage:  snap.Scan.Coverage(cloudSize),
	}
	if s.run != nil {
		st.RunID = s.run.id
		st.Paused = s.run.paused
	}
	if includePositions {
		st.Positions = snap.Scan.Positions(s.engine.Cloud)
	}
	return st
}
