package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/scanhead-simulator/model"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestJSONLoggerHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Format: "json", Output: &buf})

	log.Info(context.Background(), "dropped")
	log.Warn(context.Background(), "kept", Int("count", 3))

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "kept", recs[0]["msg"])
	assert.Equal(t, float64(3), recs[0]["count"])
}

func TestLoggerAddsRequestIDAndGroups(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf}).With(String("component", "sim"))

	ctx, id := EnsureRequestID(context.Background())
	log.Debug(ctx, "axes set", Axes("axes", model.HomeAxes()), Bool("clamped", false))

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, id, rec["request_id"])
	assert.Equal(t, "sim", rec["component"])
	axes, ok := rec["axes"].(map[string]any)
	require.True(t, ok, "axes should be a group: %v", rec["axes"])
	assert.Equal(t, float64(50), axes["x"])
	assert.Equal(t, float64(10), axes["z"])
}

func TestEnsureRequestIDKeepsExisting(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "abc")
	ctx2, id := EnsureRequestID(ctx)
	assert.Equal(t, "abc", id)
	assert.Equal(t, "abc", RequestIDFromContext(ctx2))

	_, fresh := EnsureRequestID(context.Background())
	_, err := uuid.Parse(fresh)
	assert.NoError(t, err)
}

func TestFromContextFallback(t *testing.T) {
	assert.Equal(t, Noop(), FromContext(context.Background(), nil))

	var buf bytes.Buffer
	l := New(Config{Output: &buf})
	ctx := ContextWithLogger(context.Background(), l)
	assert.Same(t, l, FromContext(ctx, Noop()))
}

func TestErrField(t *testing.T) {
	assert.Nil(t, Err(nil).Value)
	f := Err(assert.AnError)
	assert.Equal(t, "error", f.Key)
	assert.Equal(t, assert.AnError.Error(), f.Value)
}
