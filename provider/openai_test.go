package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestProvider(t *testing.T, endpoints ...Endpoint) (*OpenAIProvider, *Pool) {
	t.Helper()
	pool, err := NewPool(endpoints...)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	return NewOpenAIProvider(OpenAIConfig{Pool: pool}), pool
}

func TestOpenAIChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s, want /v1/chat/completions", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("expected Authorization=Bearer test-key, got %s", r.Header.Get("Authorization"))
		}
		if r.Header.Get("api-key") != "test-key" {
			t.Errorf("expected api-key=test-key, got %s", r.Header.Get("api-key"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected Content-Type=application/json, got %s", r.Header.Get("Content-Type"))
		}

		var req openaiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "gpt-4.1" {
			t.Errorf("expected model gpt-4.1, got %s", req.Model)
		}
		if req.Temperature != 0 || req.TopP != 0.95 {
			t.Errorf("sampling = %v/%v, want 0/0.95", req.Temperature, req.TopP)
		}
		if len(req.Messages) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(req.Messages))
		}
		if req.Messages[0].Role != "system" {
			t.Errorf("expected first message role=system, got %s", req.Messages[0].Role)
		}
		if req.Messages[1].Content != "Classify this" {
			t.Errorf("user content = %q", req.Messages[1].Content)
		}

		resp := openaiResponse{
			ID: "chatcmpl-123",
			Choices: []openaiChoice{{
				Message:      openaiMessage{Role: "assistant", Content: "  **High**\n"},
				FinishReason: "stop",
			}},
			Usage: openaiUsage{PromptTokens: 15, CompletionTokens: 3},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p, _ := newTestProvider(t, Endpoint{URL: server.URL, APIKey: "test-key"})

	resp, err := p.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "You are a classifier."},
		{Role: RoleUser, Content: "Classify this"},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "**High**" {
		t.Errorf("content = %q, want trimmed **High**", resp.Content)
	}
	if resp.Usage.InputTokens != 15 || resp.Usage.OutputTokens != 3 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestOpenAIChat_FullDeploymentURL(t *testing.T) {
	const path = "/openai/deployments/gpt/chat/completions"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			t.Errorf("path = %s, want %s", r.URL.Path, path)
		}
		_ = json.NewEncoder(w).Encode(openaiResponse{
			Choices: []openaiChoice{{Message: openaiMessage{Content: "Low"}}},
		})
	}))
	defer server.Close()

	p, _ := newTestProvider(t, Endpoint{URL: server.URL + path + "?api-version=2024-02-01"})
	if _, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "x"}}); err != nil {
		t.Fatalf("Chat: %v", err)
	}
}

func TestOpenAIChat_RateLimitRotatesEndpoint(t *testing.T) {
	var limitedHits, okHits atomic.Int32
	limited := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limitedHits.Add(1)
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer limited.Close()
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		okHits.Add(1)
		if r.Header.Get("api-key") != "key-b" {
			t.Errorf("api-key = %q, want key-b", r.Header.Get("api-key"))
		}
		_ = json.NewEncoder(w).Encode(openaiResponse{
			Choices: []openaiChoice{{Message: openaiMessage{Content: "Medium"}}},
		})
	}))
	defer ok.Close()

	p, pool := newTestProvider(t,
		Endpoint{URL: limited.URL, APIKey: "key-a"},
		Endpoint{URL: ok.URL, APIKey: "key-b"},
	)

	_, err := p.Chat(context.Background(), nil)
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("error = %v, want *RateLimitError", err)
	}
	if rl.RetryAfter != 2*time.Second {
		t.Errorf("RetryAfter = %v, want 2s", rl.RetryAfter)
	}
	if ep, pos := pool.Current(); pos != 1 || ep.URL != ok.URL {
		t.Errorf("pool at %d (%s), want second endpoint", pos, ep.URL)
	}

	resp, err := p.Chat(context.Background(), nil)
	if err != nil {
		t.Fatalf("second Chat: %v", err)
	}
	if resp.Content != "Medium" {
		t.Errorf("content = %q", resp.Content)
	}
	if limitedHits.Load() != 1 || okHits.Load() != 1 {
		t.Errorf("hits = %d/%d, want 1/1", limitedHits.Load(), okHits.Load())
	}
}

func TestOpenAIChat_RateLimitDefaultRetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	pool, _ := NewPool(Endpoint{URL: server.URL})
	p := NewOpenAIProvider(OpenAIConfig{Pool: pool, DefaultRetryAfter: 3 * time.Second})
	_, err := p.Chat(context.Background(), nil)
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("error = %v, want *RateLimitError", err)
	}
	if rl.RetryAfter != 3*time.Second {
		t.Errorf("RetryAfter = %v, want 3s", rl.RetryAfter)
	}
}

func TestOpenAIChat_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"context too long","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	p, pool := newTestProvider(t, Endpoint{URL: server.URL}, Endpoint{URL: "http://unused"})
	_, err := p.Chat(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "status 400") {
		t.Errorf("error = %v, want status 400", err)
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		t.Error("plain API error reported as rate limit")
	}
	if _, pos := pool.Current(); pos != 0 {
		t.Errorf("pool advanced to %d on a non-429 error", pos)
	}
}

func TestOpenAIChat_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer server.Close()

	p, _ := newTestProvider(t, Endpoint{URL: server.URL})
	if _, err := p.Chat(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestOpenAIChat_NoPool(t *testing.T) {
	p := NewOpenAIProvider(OpenAIConfig{})
	if _, err := p.Chat(context.Background(), nil); err == nil {
		t.Fatal("expected error without endpoints")
	}
}

func TestOpenAIName(t *testing.T) {
	p := NewOpenAIProvider(OpenAIConfig{})
	if p.Name() != "openai" {
		t.Errorf("Name() = %q", p.Name())
	}
}

func TestParseRetryAfter(t *testing.T) {
	fallback := 10 * time.Second
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", fallback},
		{"5", 5 * time.Second},
		{" 0 ", 0},
		{"-1", fallback},
		{"soon", fallback},
		{time.Now().Add(-time.Hour).UTC().Format(http.TimeFormat), 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.in, fallback); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPool(t *testing.T) {
	if _, err := NewPool(); err == nil {
		t.Fatal("expected error for empty pool")
	}

	pool, err := NewPool(Endpoint{URL: "a"}, Endpoint{URL: "b"}, Endpoint{URL: "c"})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	if pool.Len() != 3 {
		t.Errorf("Len = %d", pool.Len())
	}

	_, pos := pool.Current()
	// Two requests saw endpoint 0 rate limited; the cursor moves once.
	pool.Advance(pos)
	pool.Advance(pos)
	if ep, got := pool.Current(); got != 1 || ep.URL != "b" {
		t.Errorf("after double advance: %d (%s), want 1 (b)", got, ep.URL)
	}

	pool.Advance(1)
	pool.Advance(2)
	if ep, got := pool.Current(); got != 0 || ep.URL != "a" {
		t.Errorf("after wraparound: %d (%s), want 0 (a)", got, ep.URL)
	}
}
