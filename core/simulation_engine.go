package core

import (
	"errors"
	"math"

	"github.com/signalsfoundry/scanhead-simulator/model"
)

// Frame is the per-tick input supplied by the caller.
type Frame struct {
	// Elapsed is seconds since the current trajectory run started; it is
	// ignored unless Auto is set.
	Elapsed  float64
	Auto     bool
	Scanning bool
}

// State is the mutable simulation state carried between ticks. Scan is
// updated in place.
type State struct {
	Axes model.Axes
	Scan *ScanState
}

// TickReport summarises one Step.
type TickReport struct {
	Elapsed    float64
	Axes       model.Axes
	Pose       model.SensorPose
	Phase      model.TrajectoryPhase
	Done       bool
	Degenerate bool
	Changed    bool
	Added      int
	Acquired   int
}

// SimulationEngine runs the per-tick pipeline: trajectory, forward
// kinematics, visibility.
type SimulationEngine struct {
	FK         *ForwardKinematics
	Trajectory *TrajectoryGenerator
	Visibility *VisibilityEngine
	Cloud      *PointCloud

	tickListeners []func(TickReport)
}

// NewSimulationEngine builds the solvers for scene around an existing cloud.
func NewSimulationEngine(scene Scene, cloud *PointCloud) (*SimulationEngine, error) {
	if cloud == nil {
		return nil, errors.New("simulation engine: point cloud is nil")
	}
	fk, err := NewForwardKinematics(scene.Machine)
	if err != nil {
		return nil, err
	}
	traj, err := NewTrajectoryGenerator(scene.Trajectory, scene.Machine)
	if err != nil {
		return nil, err
	}
	vis, err := NewVisibilityEngine(scene.Visibility)
	if err != nil {
		return nil, err
	}
	return &SimulationEngine{
		FK:         fk,
		Trajectory: traj,
		Visibility: vis,
		Cloud:      cloud,
	}, nil
}

// RegisterTickListener adds a callback invoked after every Step.
func (se *SimulationEngine) RegisterTickListener(fn func(TickReport)) {
	se.tickListeners = append(se.tickListeners, fn)
}

// Step advances st by one frame and returns the new state.
func (se *SimulationEngine) Step(frame Frame, st State) (State, TickReport) {
	if st.Scan == nil {
		st.Scan = NewScanState(se.Cloud.Len())
	}
	report := TickReport{Elapsed: frame.Elapsed, Phase: model.PhaseIdle}

	if frame.Auto {
		step := se.Trajectory.Step(frame.Elapsed)
		next := step.Axes
		if step.Degenerate {
			next.A, next.B = st.Axes.A, st.Axes.B
		}
		st.Axes = next
		report.Phase = step.Phase
		report.Done = step.Done
		report.Degenerate = step.Degenerate
	}

	report.Axes = st.Axes
	report.Pose = se.FK.Solve(st.Axes)

	if frame.Scanning && !report.Done {
		before := st.Scan.Len()
		report.Changed = se.Visibility.Tick(report.Pose, se.Cloud, st.Scan)
		report.Added = st.Scan.Len() - before
	}
	report.Acquired = st.Scan.Len()

	for _, fn := range se.tickListeners {
		fn(report)
	}
	return st, report
}

// Run replays a full trajectory at a fixed frame interval dt (seconds),
// scanning throughout, and returns the final state. A dt that is not a
// positive finite number returns st unchanged.
func (se *SimulationEngine) Run(st State, dt float64) State {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return st
	}
	for tick := 0; ; tick++ {
		var report TickReport
		st, report = se.Step(Frame{Elapsed: float64(tick) * dt, Auto: true, Scanning: true}, st)
		if report.Done {
			return st
		}
	}
}
