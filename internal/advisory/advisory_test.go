package advisory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	text string
	err  error
}

func (s stubService) Generate(context.Context, string) (string, error) {
	return s.text, s.err
}

func TestGuidanceFormatsOutcomes(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, "use Tsai-Lenz", Guidance(ctx, stubService{text: "use Tsai-Lenz"}, "how?"))
	assert.True(t, strings.HasPrefix(Guidance(ctx, nil, "how?"), "Error: API key is missing"))
	assert.True(t, strings.HasPrefix(Guidance(ctx, stubService{text: "x"}, "  "), "Error: prompt is empty"))
	assert.True(t, strings.HasPrefix(Guidance(ctx, stubService{err: errors.New("dial tcp: refused")}, "how?"), "Error: dial tcp: refused"))
	assert.True(t, strings.HasPrefix(Guidance(ctx, stubService{text: " "}, "how?"), "Error: no response generated"))
}

func newTestClient(t *testing.T, srv *httptest.Server, key string) *Client {
	t.Helper()
	cfg := ConfigFromEnv()
	cfg.Endpoint = srv.URL
	cfg.APIKey = key
	cfg.MaxTries = 3
	cfg.InitialBackoff = time.Millisecond
	c, err := NewClient(context.Background(), cfg, srv.Client(), nil)
	require.NoError(t, err)
	return c
}

func writeError(w http.ResponseWriter, code int, status, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":%q,"status":%q}}`, code, msg, status)
}

func TestClientSendsRequestAndJoinsParts(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-2.5-flash:generateContent"), r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
		var err error
		body, err = io.ReadAll(r.Body)
		assert.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Calibrate "},{"text":"first."}]}}]}`))
	}))
	defer srv.Close()

	text, err := newTestClient(t, srv, "secret").Generate(context.Background(), "what first?")
	require.NoError(t, err)
	assert.Equal(t, "Calibrate first.", text)

	var req map[string]any
	require.NoError(t, json.Unmarshal(body, &req))
	assert.Contains(t, req, "contents")
	assert.Contains(t, req, "systemInstruction")
	assert.Contains(t, string(body), "what first?")
	assert.Contains(t, string(body), "hand-eye calibration")
	assert.Contains(t, string(body), `"thinkingBudget":1024`)
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "overloaded")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}))
	defer srv.Close()

	text, err := newTestClient(t, srv, "k").Generate(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestClientGivesUpAfterMaxTries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeError(w, http.StatusTooManyRequests, "RESOURCE_EXHAUSTED", "quota exceeded")
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, "k").Generate(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "advisory service returned 429")
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "API key not valid")
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, "bad").Generate(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key not valid")
	assert.Equal(t, int32(1), calls.Load())

	msg := Guidance(context.Background(), newTestClient(t, srv, "bad"), "q")
	assert.True(t, strings.HasPrefix(msg, "Error: advisory service returned 400"), msg)
}

func TestClientEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, "k").Generate(context.Background(), "q")
	require.ErrorIs(t, err, ErrEmptyResponse)
}

func TestClientReportsMalformedBody(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`not json at all`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "k")
	_, err := c.Generate(context.Background(), "q")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptyResponse)
	assert.Contains(t, err.Error(), "decode response")
	assert.Equal(t, int32(1), calls.Load())

	msg := Guidance(context.Background(), c, "q")
	assert.NotContains(t, msg, "no response generated")
}

func TestClientRequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), Config{Endpoint: "http://127.0.0.1:1", Model: "m"}, nil, nil)
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("ADVISORY_API_KEY", "abc")
	t.Setenv("ADVISORY_MODEL", "")
	t.Setenv("ADVISORY_ENDPOINT", "")
	cfg := ConfigFromEnv()
	assert.Equal(t, "abc", cfg.APIKey)
	assert.Equal(t, "gemini-2.5-flash", cfg.Model)
	assert.Empty(t, cfg.Endpoint)
	assert.Equal(t, "v1beta", cfg.APIVersion)
}
