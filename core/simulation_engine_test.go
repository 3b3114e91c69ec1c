package core

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/scanhead-simulator/model"
)

func newTestEngine(t *testing.T, seed uint64) *SimulationEngine {
	t.Helper()
	scene := DefaultScene()
	scene.Sampler = testSamplerConfig()
	s, err := NewSampler(scene.Sampler)
	require.NoError(t, err)
	e, err := NewSimulationEngine(scene, s.Generate(seeded(seed)))
	require.NoError(t, err)
	return e
}

func TestStepManualDoesNotMoveAxes(t *testing.T) {
	e := newTestEngine(t, 1)
	axes := model.Axes{X: 20, Y: 30, Z: 40, A: 5, B: -5}

	st, report := e.Step(Frame{Elapsed: 10, Scanning: false}, State{Axes: axes})
	require.Equal(t, axes, st.Axes)
	require.Equal(t, model.PhaseIdle, report.Phase)
	require.Equal(t, e.FK.Solve(axes), report.Pose)
	require.False(t, report.Changed)
	require.NotNil(t, st.Scan)
}

func TestStepAutoFollowsTrajectory(t *testing.T) {
	e := newTestEngine(t, 1)
	st := State{Axes: model.HomeAxes()}

	st, report := e.Step(Frame{Elapsed: 12, Auto: true}, st)
	require.Equal(t, e.Trajectory.Step(12).Axes, st.Axes)
	require.Equal(t, model.PhaseOrbit, report.Phase)
}

func TestStepDegenerateKeepsOrientation(t *testing.T) {
	scene := DefaultScene()
	scene.Sampler = testSamplerConfig()
	probe, err := NewTrajectoryGenerator(scene.Trajectory, scene.Machine)
	require.NoError(t, err)
	home := scene.Trajectory.Home
	scene.Trajectory.LookTarget = probe.ToolPosition(home.X, home.Y, home.Z)

	s, err := NewSampler(scene.Sampler)
	require.NoError(t, err)
	e, err := NewSimulationEngine(scene, s.Generate(seeded(2)))
	require.NoError(t, err)

	prev := model.Axes{X: 50, Y: 50, Z: 10, A: 17, B: -23}
	st, report := e.Step(Frame{Elapsed: 0, Auto: true}, State{Axes: prev})
	require.True(t, report.Degenerate)
	require.Equal(t, 17.0, st.Axes.A)
	require.Equal(t, -23.0, st.Axes.B)
}

func TestRunCompletesAndScanGrowsMonotonically(t *testing.T) {
	e := newTestEngine(t, 3)

	var reports []TickReport
	e.RegisterTickListener(func(r TickReport) { reports = append(reports, r) })

	final := e.Run(State{Axes: model.HomeAxes()}, 1.0/30)
	require.NotEmpty(t, reports)

	last := reports[len(reports)-1]
	require.True(t, last.Done)
	require.Equal(t, model.Axes{X: 50, Y: 50, Z: 20}, final.Axes)

	prev := 0
	for _, r := range reports {
		require.GreaterOrEqual(t, r.Acquired, prev)
		require.Equal(t, r.Acquired-prev, r.Added)
		prev = r.Acquired
	}
	require.Equal(t, final.Scan.Len(), last.Acquired)
}

func TestRunRejectsUnusableFrameInterval(t *testing.T) {
	e := newTestEngine(t, 3)
	home := model.HomeAxes()

	for _, dt := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		done := make(chan State, 1)
		go func() { done <- e.Run(State{Axes: home}, dt) }()

		select {
		case st := <-done:
			require.Equal(t, home, st.Axes, "dt=%v", dt)
			require.Nil(t, st.Scan, "dt=%v", dt)
		case <-time.After(2 * time.Second):
			t.Fatalf("Run(%v) did not return", dt)
		}
	}
}

func TestRunReplayIsDeterministic(t *testing.T) {
	a := newTestEngine(t, 4)
	b := newTestEngine(t, 4)

	sa := a.Run(State{Axes: model.HomeAxes()}, 0.05)
	sb := b.Run(State{Axes: model.HomeAxes()}, 0.05)
	require.Equal(t, sa.Scan.Indices(), sb.Scan.Indices())
	require.Equal(t, sa.Axes, sb.Axes)
}

func TestNewSimulationEngineRequiresCloud(t *testing.T) {
	_, err := NewSimulationEngine(DefaultScene(), nil)
	require.Error(t, err)
}
