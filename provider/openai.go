package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultOpenAIModel       = "gpt-4.1"
	defaultOpenAIMaxTokens   = 1024
	defaultOpenAITimeout     = 300 * time.Second
	defaultRetryAfter        = 10 * time.Second
	chatCompletionsPath      = "/v1/chat/completions"
	defaultOpenAITopP        = 0.95
	defaultOpenAITemperature = 0
)

// OpenAIConfig holds configuration for the OpenAI-compatible provider.
type OpenAIConfig struct {
	Pool      *Pool
	Model     string
	MaxTokens int
	// Timeout bounds a single HTTP request. Ignored when HTTPClient is set.
	Timeout time.Duration
	// DefaultRetryAfter is used when a 429 carries no usable Retry-After header.
	DefaultRetryAfter time.Duration
	HTTPClient        *http.Client
}

// OpenAIProvider implements Provider against any Chat Completions compatible
// endpoint, including Azure deployments. Endpoints rotate on HTTP 429.
type OpenAIProvider struct {
	config OpenAIConfig
}

// NewOpenAIProvider creates a new OpenAI provider with the given config.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultOpenAIMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultOpenAITimeout
	}
	if cfg.DefaultRetryAfter <= 0 {
		cfg.DefaultRetryAfter = defaultRetryAfter
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &OpenAIProvider{config: cfg}
}

func (p *OpenAIProvider) Name() string { return "openai" }

// openaiRequest is the request body for the Chat Completions API.
type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
	TopP        float64         `json:"top_p"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// openaiResponse is the response from the Chat Completions API.
type openaiResponse struct {
	ID      string         `json:"id"`
	Choices []openaiChoice `json:"choices"`
	Usage   openaiUsage    `json:"usage"`
	Error   *openaiError   `json:"error,omitempty"`
}

type openaiChoice struct {
	Message      openaiMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type openaiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Chat sends one request to the pool's current endpoint. A 429 advances the
// pool and returns a *RateLimitError; retrying is left to the caller.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message) (*Response, error) {
	if p.config.Pool == nil {
		return nil, fmt.Errorf("openai: no endpoints configured")
	}
	ep, pos := p.config.Pool.Current()

	data, err := json.Marshal(p.buildRequest(messages))
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, completionsURL(ep.URL), bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	setHeaders(req, ep.APIKey)

	resp, err := p.config.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		p.config.Pool.Advance(pos)
		return nil, &RateLimitError{
			Endpoint:   ep.URL,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), p.config.DefaultRetryAfter),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai: API error (status %d): %s", resp.StatusCode, string(body))
	}

	var apiResp openaiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("openai: unmarshal response: %w", err)
	}

	if apiResp.Error != nil {
		return nil, fmt.Errorf("openai: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("openai: response has no choices")
	}

	return &Response{
		Content: strings.TrimSpace(apiResp.Choices[0].Message.Content),
		Usage: Usage{
			InputTokens:  apiResp.Usage.PromptTokens,
			OutputTokens: apiResp.Usage.CompletionTokens,
		},
	}, nil
}

func (p *OpenAIProvider) buildRequest(messages []Message) *openaiRequest {
	req := &openaiRequest{
		Model:       p.config.Model,
		MaxTokens:   p.config.MaxTokens,
		Temperature: defaultOpenAITemperature,
		TopP:        defaultOpenAITopP,
	}
	for _, msg := range messages {
		req.Messages = append(req.Messages, openaiMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return req
}

// setHeaders sends the key both as a bearer token and as Azure's api-key.
func setHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
		req.Header.Set("api-key", apiKey)
	}
}

// completionsURL accepts either a base URL or a full deployment URL.
func completionsURL(u string) string {
	u = strings.TrimRight(u, "/")
	if strings.Contains(u, "/chat/completions") {
		return u
	}
	return u + chatCompletionsPath
}

// parseRetryAfter reads a delay in seconds or an HTTP date.
func parseRetryAfter(h string, fallback time.Duration) time.Duration {
	h = strings.TrimSpace(h)
	if h == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(h); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(h); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
		return 0
	}
	return fallback
}
