package sim

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/scanhead-simulator/core"
	"github.com/signalsfoundry/scanhead-simulator/internal/logging"
	"github.com/signalsfoundry/scanhead-simulator/kb"
	"github.com/signalsfoundry/scanhead-simulator/model"
)

var t0 = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

type fakeMetrics struct {
	mu         sync.Mutex
	ticks      int
	runs       map[string]int
	degenerate int
	clamps     map[string]int
	acquired   int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{runs: map[string]int{}, clamps: map[string]int{}}
}

func (f *fakeMetrics) ObserveTick(_ time.Duration, acquired, _ int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks++
	f.acquired = acquired
}

func (f *fakeMetrics) SetScanTotals(acquired, _ int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquired = acquired
}

func (f *fakeMetrics) RunFinished(outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[outcome]++
}

func (f *fakeMetrics) IncDegenerate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.degenerate++
}

func (f *fakeMetrics) IncAxisClamp(axis string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clamps[axis]++
}

func testScene() core.Scene {
	scene := core.DefaultScene()
	scene.Sampler.Density = 150
	return scene
}

func newTestSession(t *testing.T, scene core.Scene, opts ...SessionOption) *Session {
	t.Helper()
	sampler, err := core.NewSampler(scene.Sampler)
	require.NoError(t, err)
	cloud := sampler.Generate(rand.New(rand.NewPCG(7, 11)))
	engine, err := core.NewSimulationEngine(scene, cloud)
	require.NoError(t, err)
	s, err := NewSession(engine, opts...)
	require.NoError(t, err)
	return s
}

// tickUntil drives s at 30 Hz from start (exclusive) to end (inclusive).
func tickUntil(s *Session, start, end time.Time) {
	const frame = time.Second / 30
	for now := start.Add(frame); !now.After(end); now = now.Add(frame) {
		s.Tick(context.Background(), now)
	}
}

func TestTrajectoryRunCompletes(t *testing.T) {
	metrics := newFakeMetrics()
	s := newTestSession(t, testScene(), WithMetrics(metrics))
	ctx := context.Background()

	id, err := s.StartTrajectory(ctx, t0)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	st := s.Status(false)
	assert.Equal(t, model.ModeAuto, st.Mode)
	assert.True(t, st.Scanning)
	assert.Equal(t, id, st.RunID)

	tickUntil(s, t0, t0.Add(26*time.Second))

	st = s.Status(true)
	assert.Equal(t, model.ModeManual, st.Mode)
	assert.False(t, st.Scanning)
	assert.Empty(t, st.RunID)
	assert.Equal(t, model.Axes{X: 50, Y: 50, Z: 20}, st.Axes)
	assert.Positive(t, st.Acquired)
	assert.Len(t, st.Positions, 3*st.Acquired)
	assert.InDelta(t, float64(st.Acquired)/float64(st.CloudSize), st.Coverage, 1e-12)
	assert.Equal(t, 1, metrics.runs[OutcomeCompleted])
	assert.Equal(t, st.Acquired, metrics.acquired)
}

func TestStartTrajectoryRejectsSecondRun(t *testing.T) {
	s := newTestSession(t, testScene())
	ctx := context.Background()

	_, err := s.StartTrajectory(ctx, t0)
	require.NoError(t, err)
	_, err = s.StartTrajectory(ctx, t0.Add(time.Second))
	require.ErrorIs(t, err, ErrTrajectoryActive)
}

func TestSetAxesClampsAndCounts(t *testing.T) {
	metrics := newFakeMetrics()
	s := newTestSession(t, testScene(), WithMetrics(metrics))

	applied, adjusted, err := s.SetAxes(context.Background(), model.Axes{X: 150, Y: 20, Z: -5, A: 10, B: 0})
	require.NoError(t, err)
	assert.Equal(t, model.Axes{X: 100, Y: 20, Z: 0, A: 10, B: 0}, applied)
	assert.ElementsMatch(t, []model.AxisName{model.AxisX, model.AxisZ}, adjusted)
	assert.Equal(t, map[string]int{"x": 1, "z": 1}, metrics.clamps)
	assert.Equal(t, applied, s.Status(false).Axes)
}

func TestSetAxesLogsAppliedAxesGroup(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(logging.Config{Level: "debug", Format: "json", Output: &buf})
	s := newTestSession(t, testScene(), WithLogger(log))

	_, _, err := s.SetAxes(context.Background(), model.Axes{X: 150, Y: 20, Z: 30, A: 10, B: 5})
	require.NoError(t, err)

	var entry map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var e map[string]any
		require.NoError(t, json.Unmarshal(line, &e))
		if e["msg"] == "axes set" {
			entry = e
		}
	}
	require.NotNil(t, entry, buf.String())
	assert.Equal(t, map[string]any{"x": 100.0, "y": 20.0, "z": 30.0, "a": 10.0, "b": 5.0}, entry["axes"])
	assert.Equal(t, 1.0, entry["clamped"])
}

func TestSetAxesRejectedDuringRun(t *testing.T) {
	s := newTestSession(t, testScene())
	ctx := context.Background()

	_, err := s.StartTrajectory(ctx, t0)
	require.NoError(t, err)
	before := s.Status(false).Axes

	_, _, err = s.SetAxes(ctx, model.Axes{X: 1, Y: 1, Z: 1})
	require.ErrorIs(t, err, ErrTrajectoryActive)
	assert.Equal(t, before, s.Status(false).Axes)
}

func TestAbortLeavesScanUntouched(t *testing.T) {
	metrics := newFakeMetrics()
	s := newTestSession(t, testScene(), WithMetrics(metrics))
	ctx := context.Background()

	_, err := s.StartTrajectory(ctx, t0)
	require.NoError(t, err)
	tickUntil(s, t0, t0.Add(8*time.Second))

	before := s.Status(false)
	require.Positive(t, before.Acquired)
	require.NoError(t, s.AbortTrajectory(ctx))

	s.Tick(ctx, t0.Add(9*time.Second))
	after := s.Status(false)

	assert.Equal(t, before.Axes, after.Axes)
	assert.Equal(t, before.Acquired, after.Acquired)
	assert.Equal(t, model.ModeManual, after.Mode)
	assert.Equal(t, 1, metrics.runs[OutcomeAborted])
	assert.ErrorIs(t, s.AbortTrajectory(ctx), ErrNoTrajectory)
}

func TestPauseResumeDoesNotDrift(t *testing.T) {
	ctx := context.Background()

	straight := newTestSession(t, testScene())
	_, err := straight.StartTrajectory(ctx, t0)
	require.NoError(t, err)
	straight.Tick(ctx, t0.Add(5*time.Second))

	paused := newTestSession(t, testScene())
	_, err = paused.StartTrajectory(ctx, t0)
	require.NoError(t, err)
	paused.Tick(ctx, t0.Add(2*time.Second))
	require.NoError(t, paused.PauseTrajectory(ctx, t0.Add(2*time.Second)))
	require.ErrorIs(t, paused.PauseTrajectory(ctx, t0.Add(3*time.Second)), ErrAlreadyPaused)

	held := paused.Status(false).Axes
	paused.Tick(ctx, t0.Add(7*time.Second))
	assert.Equal(t, held, paused.Status(false).Axes, "axes moved while paused")
	assert.True(t, paused.Status(false).Paused)

	require.NoError(t, paused.ResumeTrajectory(ctx, t0.Add(12*time.Second)))
	require.ErrorIs(t, paused.ResumeTrajectory(ctx, t0.Add(12*time.Second)), ErrNotPaused)
	paused.Tick(ctx, t0.Add(15*time.Second))

	assert.Equal(t, straight.Status(false).Axes, paused.Status(false).Axes)
	assert.InDelta(t, 5.0, paused.Status(false).Elapsed, 1e-9)
}

func TestResetIsSingleAtomicEvent(t *testing.T) {
	metrics := newFakeMetrics()
	s := newTestSession(t, testScene(), WithMetrics(metrics))
	ctx := context.Background()

	_, err := s.StartTrajectory(ctx, t0)
	require.NoError(t, err)
	tickUntil(s, t0, t0.Add(6*time.Second))
	require.Positive(t, s.Status(false).Acquired)

	var events []kb.Event
	unsub := s.Store().Subscribe(func(e kb.Event) { events = append(events, e) })
	defer unsub()

	s.Reset(ctx)

	require.Len(t, events, 1)
	assert.Equal(t, kb.EventReset, events[0].Type)
	assert.Equal(t, model.HomeAxes(), events[0].Axes)
	assert.Zero(t, events[0].Acquired)

	st := s.Status(false)
	assert.Equal(t, model.ModeManual, st.Mode)
	assert.False(t, st.Scanning)
	assert.Zero(t, st.Acquired)
	assert.Equal(t, 1, metrics.runs[OutcomeReset])
	assert.Zero(t, metrics.acquired)
}

func TestDegenerateLookAtKeepsOrientation(t *testing.T) {
	scene := testScene()
	home := scene.Trajectory.Home
	gen, err := core.NewTrajectoryGenerator(scene.Trajectory, scene.Machine)
	require.NoError(t, err)
	scene.Trajectory.LookTarget = gen.ToolPosition(home.X, home.Y, home.Z)

	metrics := newFakeMetrics()
	s := newTestSession(t, scene, WithMetrics(metrics))
	ctx := context.Background()

	_, _, err = s.SetAxes(ctx, model.Axes{X: 50, Y: 50, Z: 10, A: 12, B: -30})
	require.NoError(t, err)
	_, err = s.StartTrajectory(ctx, t0)
	require.NoError(t, err)

	report := s.Tick(ctx, t0)
	require.True(t, report.Degenerate)
	assert.Equal(t, 12.0, report.Axes.A)
	assert.Equal(t, -30.0, report.Axes.B)
	assert.Equal(t, 1, metrics.degenerate)
}

func TestManualScanningAcquiresAtCurrentPose(t *testing.T) {
	s := newTestSession(t, testScene())
	ctx := context.Background()

	s.Tick(ctx, t0)
	require.Zero(t, s.Status(false).Acquired, "scanning is off by default")

	// Above the head looking straight down.
	_, _, err := s.SetAxes(ctx, model.Axes{X: 50, Y: 50, Z: 50})
	require.NoError(t, err)
	s.SetScanning(ctx, true)
	first := s.Tick(ctx, t0)
	second := s.Tick(ctx, t0)

	assert.Positive(t, first.Added)
	assert.Zero(t, second.Added)
	assert.False(t, second.Changed)
}

func TestNewSessionRequiresEngine(t *testing.T) {
	_, err := NewSession(nil)
	require.Error(t, err)
}
