package briefing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	einoollama "github.com/cloudwego/eino-ext/components/model/ollama"
	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/fillteam/filltrack/internal/config"
)

const defaultOllamaBaseURL = "http://localhost:11434"

// NewChatModel creates the configured chat model for briefing generation.
func NewChatModel(ctx context.Context, cfg config.BriefingConfig) (model.ToolCallingChatModel, error) {
	switch strings.ToLower(cfg.Driver) {
	case "ollama":
		return newOllama(ctx, cfg)
	case "openai":
		return newOpenAI(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown briefing driver: %s", cfg.Driver)
	}
}

func newOllama(ctx context.Context, cfg config.BriefingConfig) (model.ToolCallingChatModel, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}

	timeout := cfg.Timeout.Duration()
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	modelConfig := &einoollama.ChatModelConfig{
		BaseURL: baseURL,
		Model:   cfg.Model,
		Timeout: timeout,
	}

	opts := &einoollama.Options{}
	if cfg.MaxTokens > 0 {
		opts.NumPredict = cfg.MaxTokens
	}
	if temp, ok := cfg.Options["temperature"].(float64); ok {
		opts.Temperature = float32(temp)
	} else {
		opts.Temperature = 0.7
	}
	modelConfig.Options = opts

	// Validating transport: a reverse proxy answering plain text (e.g.
	// "no available server") must surface as unavailability, not a JSON
	// parse error.
	modelConfig.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: &validatingTransport{inner: http.DefaultTransport, provider: "ollama"},
	}

	return einoollama.NewChatModel(ctx, modelConfig)
}

func newOpenAI(ctx context.Context, cfg config.BriefingConfig) (model.ToolCallingChatModel, error) {
	modelConfig := &einoopenai.ChatModelConfig{
		APIKey: cfg.APIKey,
		Model:  cfg.Model,
	}

	if cfg.BaseURL != "" {
		modelConfig.BaseURL = cfg.BaseURL
	}
	if cfg.MaxTokens > 0 {
		maxTokens := cfg.MaxTokens
		modelConfig.MaxCompletionTokens = &maxTokens
	}
	if cfg.Timeout.Duration() > 0 {
		modelConfig.Timeout = cfg.Timeout.Duration()
	} else {
		modelConfig.Timeout = 60 * time.Second
	}
	if temp, ok := cfg.Options["temperature"].(float64); ok {
		t := float32(temp)
		modelConfig.Temperature = &t
	}

	return einoopenai.NewChatModel(ctx, modelConfig)
}

// ErrModelUnavailable reports a text-generation backend that cannot be
// reached or answered with a non-JSON error.
type ErrModelUnavailable struct {
	Provider string
	Body     string
	Cause    error
}

func (e *ErrModelUnavailable) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s unavailable: %s", e.Provider, e.Body)
	}
	return fmt.Sprintf("%s unavailable: %v", e.Provider, e.Cause)
}

func (e *ErrModelUnavailable) Unwrap() error { return e.Cause }

type validatingTransport struct {
	inner    http.RoundTripper
	provider string
}

func (t *validatingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.inner.RoundTrip(req)
	if err != nil {
		return nil, &ErrModelUnavailable{Provider: t.provider, Cause: err}
	}

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &ErrModelUnavailable{
			Provider: t.provider,
			Body:     strings.TrimSpace(string(body)),
		}
	}

	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "json") && !strings.Contains(ct, "ndjson") {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &ErrModelUnavailable{
			Provider: t.provider,
			Body:     strings.TrimSpace(string(body)),
		}
	}

	return resp, nil
}
