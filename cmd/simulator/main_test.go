package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/scanhead-simulator/internal/logging"
	"github.com/signalsfoundry/scanhead-simulator/timectrl"
)

func TestRunCompletesScriptedScan(t *testing.T) {
	dir := t.TempDir()
	plot := filepath.Join(dir, "coverage.png")

	summary, err := run(context.Background(), Config{
		Tick:         100 * time.Millisecond,
		Mode:         timectrl.Accelerated,
		Speed:        500,
		Seed:         3,
		Density:      150,
		Workers:      2,
		CoveragePlot: plot,
	}, logging.Noop())
	require.NoError(t, err)

	assert.True(t, summary.Completed)
	assert.Positive(t, summary.Acquired)
	assert.LessOrEqual(t, summary.Acquired, summary.CloudSize)
	assert.InDelta(t, float64(summary.Acquired)/float64(summary.CloudSize), summary.Coverage, 1e-12)
	assert.GreaterOrEqual(t, summary.Ticks, 251)

	require.NotEmpty(t, summary.Primitives)
	perPrimitive := 0
	for _, pc := range summary.Primitives {
		assert.NotEmpty(t, pc.Kind, pc.ID)
		assert.LessOrEqual(t, pc.Acquired, pc.Points, pc.ID)
		perPrimitive += pc.Acquired
	}
	assert.Equal(t, summary.Acquired, perPrimitive)

	info, err := os.Stat(plot)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestRunReadsSceneFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "trajectory": {"duration": 5, "approach_end": 1, "orbit_end": 4},
  "sampler": {"density": 80}
}`), 0o644))

	summary, err := run(context.Background(), Config{
		ScenePath: path,
		Tick:      250 * time.Millisecond,
		Mode:      timectrl.Accelerated,
		Speed:     500,
		Seed:      1,
	}, logging.Noop())
	require.NoError(t, err)
	assert.True(t, summary.Completed)
	assert.Less(t, summary.Ticks, 30)
}

func TestRunRejectsBadConfig(t *testing.T) {
	_, err := run(context.Background(), Config{Tick: 0}, logging.Noop())
	require.Error(t, err)

	_, err = run(context.Background(), Config{Tick: time.Second, ScenePath: "does-not-exist.json"}, logging.Noop())
	require.Error(t, err)
}
