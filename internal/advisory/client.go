package advisory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/genai"

	"github.com/signalsfoundry/scanhead-simulator/internal/logging"
)

// Config describes the hosted model. Endpoint and APIVersion are optional
// and default to the public Gemini API.
type Config struct {
	Endpoint          string
	APIVersion        string
	Model             string
	APIKey            string
	SystemInstruction string
	ThinkingBudget    int32
	Timeout           time.Duration
	MaxTries          uint
	// InitialBackoff overrides the first retry delay when positive.
	InitialBackoff time.Duration
}

// ConfigFromEnv reads ADVISORY_* variables. The key is the only required
// value.
func ConfigFromEnv() Config {
	cfg := Config{
		Endpoint:          os.Getenv("ADVISORY_ENDPOINT"),
		APIVersion:        "v1beta",
		Model:             os.Getenv("ADVISORY_MODEL"),
		APIKey:            os.Getenv("ADVISORY_API_KEY"),
		SystemInstruction: DefaultSystemInstruction,
		ThinkingBudget:    1024,
		Timeout:           60 * time.Second,
		MaxTries:          3,
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	return cfg
}

// Client asks a Gemini model for advice through the genai SDK.
type Client struct {
	cfg    Config
	models *genai.Models
	log    logging.Logger
}

// NewClient builds a Client. httpClient may be nil; requests are traced via
// otelhttp either way.
func NewClient(ctx context.Context, cfg Config, httpClient *http.Client, log logging.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	base := httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	traced := *httpClient
	traced.Transport = otelhttp.NewTransport(base)

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &traced,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    cfg.Endpoint,
			APIVersion: cfg.APIVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("advisory client: %w", err)
	}

	if log == nil {
		log = logging.Noop()
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 1
	}
	return &Client{cfg: cfg, models: gc.Models, log: log}, nil
}

// Generate sends prompt and returns the text of the first candidate.
// Throttling and server errors are retried with exponential backoff.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	policy := backoff.NewExponentialBackOff()
	if c.cfg.InitialBackoff > 0 {
		policy.InitialInterval = c.cfg.InitialBackoff
	}

	attempt := 0
	text, err := backoff.Retry(ctx, func() (string, error) {
		attempt++
		return c.generateOnce(ctx, prompt)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.cfg.MaxTries),
	)
	if err != nil {
		c.log.Warn(ctx, "advisory request failed",
			logging.Int("attempts", attempt),
			logging.Err(err),
		)
		return "", err
	}
	return text, nil
}

func (c *Client) generateConfig() *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if c.cfg.SystemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(c.cfg.SystemInstruction, genai.RoleUser)
	}
	if c.cfg.ThinkingBudget > 0 {
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(c.cfg.ThinkingBudget)}
	}
	return cfg
}

func (c *Client) generateOnce(ctx context.Context, prompt string) (string, error) {
	resp, err := c.models.GenerateContent(ctx, c.cfg.Model, genai.Text(prompt), c.generateConfig())
	if err != nil {
		return "", classify(err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", backoff.Permanent(ErrEmptyResponse)
	}
	return text, nil
}

// classify marks err as retryable or permanent for backoff.Retry.
// Throttling, server errors and transport failures are retried.
func classify(err error) error {
	if code, msg, ok := apiError(err); ok {
		statusErr := fmt.Errorf("advisory service returned %d: %s", code, msg)
		if code == http.StatusTooManyRequests || code >= 500 {
			return statusErr
		}
		return backoff.Permanent(statusErr)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return backoff.Permanent(err)
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr), errors.Is(err, io.ErrUnexpectedEOF):
		return backoff.Permanent(fmt.Errorf("decode response: %w", err))
	default:
		return err
	}
}

func apiError(err error) (int, string, bool) {
	var v genai.APIError
	if errors.As(err, &v) {
		return v.Code, apiMessage(v), true
	}
	var p *genai.APIError
	if errors.As(err, &p) && p != nil {
		return p.Code, apiMessage(*p), true
	}
	return 0, "", false
}

func apiMessage(e genai.APIError) string {
	if e.Message != "" {
		return e.Message
	}
	if e.Status != "" {
		return e.Status
	}
	return http.StatusText(e.Code)
}
