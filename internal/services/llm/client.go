package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"ytsummarize/internal/logging"
	"ytsummarize/internal/services"
)

const (
	jsonResponseType   = "json_object"
	defaultHTTPTimeout = 120 * time.Second
	maxResponseBytes   = 8 << 20

	// DefaultEndpoint is the OpenAI-compatible chat completions URL used when
	// no base URL is configured.
	DefaultEndpoint = "https://api.openai.com/v1/chat/completions"
)

// Config captures the runtime settings required to talk to the LLM.
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	Temperature       float64
	Referer           string
	Title             string
	TimeoutSeconds    int
	RequestsPerMinute int
}

// Usage totals the tokens reported by the provider across calls.
type Usage struct {
	Requests         int64
	PromptTokens     int64
	CompletionTokens int64
}

// Client wraps an OpenAI-compatible chat completion API. Each call is a
// single attempt; failures are classified so callers can decide to retry.
// A Client is safe for concurrent use by the map phase.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger

	requests         atomic.Int64
	promptTokens     atomic.Int64
	completionTokens atomic.Int64
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger attaches a logger for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "llm")
	}
}

// NewClient constructs an LLM client. RequestsPerMinute > 0 throttles calls
// client-side, shared by every goroutine using the client.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Referer = strings.TrimSpace(cfg.Referer)
	cfg.Title = strings.TrimSpace(cfg.Title)
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultEndpoint
	}
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewNop(),
	}
	if cfg.RequestsPerMinute > 0 {
		client.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Model returns the configured default model.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Usage returns the token totals reported so far.
func (c *Client) Usage() Usage {
	return Usage{
		Requests:         c.requests.Load(),
		PromptTokens:     c.promptTokens.Load(),
		CompletionTokens: c.completionTokens.Load(),
	}
}

// CompleteJSON issues a JSON-only chat completion request with the supplied
// prompts against model, or the configured model when model is empty. It
// returns the raw JSON payload produced by the model.
func (c *Client) CompleteJSON(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if systemPrompt == "" || userPrompt == "" {
		return "", fmt.Errorf("%w: llm complete: system and user prompts required", services.ErrValidation)
	}
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("%w: llm complete: api key required", services.ErrConfiguration)
	}
	if model = strings.TrimSpace(model); model == "" {
		model = c.cfg.Model
	}
	return c.complete(ctx, chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    c.cfg.Temperature,
		ResponseFormat: responseFormat{Type: jsonResponseType},
	})
}

// HealthCheck issues a fast ping to verify the API key and model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	content, err := c.CompleteJSON(ctx, "", "You must respond with JSON only.", `Respond with {"ok":true}`)
	if err != nil {
		return fmt.Errorf("llm health: %w", err)
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		return fmt.Errorf("llm health: parse payload: %w", err)
	}
	if !parsed.OK {
		return fmt.Errorf("%w: llm health: unexpected response", services.ErrExternalTool)
	}
	return nil
}

func (c *Client) complete(ctx context.Context, req chatRequest) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return "", fmt.Errorf("llm complete: rate limit: %w", err)
		}
	}
	logger := logging.WithContext(ctx, c.logger)
	started := time.Now()

	resp, body, err := c.post(ctx, req)
	if err != nil {
		return "", err
	}
	c.record(resp.Usage)

	content, finish := resp.content()
	if content == "" {
		return "", services.Transient(&emptyContentError{
			Choices:      len(resp.Choices),
			FinishReason: finish,
			Refusal:      resp.refusal(),
			Snippet:      payloadSnippet(string(body)),
		})
	}
	logger.Debug("llm completion",
		logging.String("model", req.Model),
		logging.String("finish_reason", finish),
		logging.Int("prompt_tokens", resp.Usage.PromptTokens),
		logging.Int("completion_tokens", resp.Usage.CompletionTokens),
		logging.Duration("elapsed", time.Since(started)))
	if finish == "length" {
		logging.WarnWithContext(logger, "llm output truncated at the token limit", "llm_truncated",
			logging.String("model", req.Model),
			logging.String(logging.FieldErrorHint, "lower summarize.chunk_tokens"),
			logging.String(logging.FieldImpact, "the payload may fail to parse and be retried"))
	}
	return content, nil
}

func (c *Client) record(u usage) {
	c.requests.Add(1)
	c.promptTokens.Add(int64(u.PromptTokens))
	c.completionTokens.Add(int64(u.CompletionTokens))
}

// post sends one request. Network, read and decode failures are transient;
// HTTP status failures are classified by services.CheckStatus.
func (c *Client) post(ctx context.Context, payload chatRequest) (chatResponse, []byte, error) {
	var out chatResponse
	encoded, err := json.Marshal(payload)
	if err != nil {
		return out, nil, fmt.Errorf("llm request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return out, nil, fmt.Errorf("%w: llm request: %w", services.ErrConfiguration, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, nil, ctxErr
		}
		return out, nil, services.Transient(fmt.Errorf("llm request (timeout %s): %w", c.httpClient.Timeout, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return out, nil, services.Transient(fmt.Errorf("llm request: read body: %w", err))
	}
	if err := services.CheckStatus("llm", resp, body); err != nil {
		return out, body, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, body, services.Transient(fmt.Errorf("llm request: decode response: %w (body: %s)", err, payloadSnippet(string(body))))
	}
	if out.Error != nil {
		return out, body, fmt.Errorf("%w: llm request: api error: %s", services.ErrExternalTool, strings.TrimSpace(out.Error.Message))
	}
	return out, body, nil
}
