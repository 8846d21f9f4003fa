package llm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"conductor/internal/domain"
	"conductor/internal/infra/config"
)

func newTestLogger() *slog.Logger {
	return slog.Default()
}

func TestOpenAIProviderSendMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth: %s", r.Header.Get("Authorization"))
		}

		var req openaiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("expected system+user messages, got %+v", req.Messages)
		}

		resp := openaiResponse{
			ID:    "chatcmpl-123",
			Model: "gpt-4o-mini",
			Choices: []openaiChoice{
				{
					Message:      openaiMessage{Role: "assistant", Content: "Hello! How can I help?"},
					FinishReason: "stop",
				},
			},
			Usage: openaiUsage{PromptTokens: 10, CompletionTokens: 8, TotalTokens: 18},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := NewOpenAIProvider(config.ProviderConfig{
		Type:    "openai",
		BaseURL: server.URL,
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
	}, newTestLogger())

	resp, err := provider.SendMessage(context.Background(), "Hello", "prior context")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if resp.Content != "Hello! How can I help?" {
		t.Errorf("Content = %q, want %q", resp.Content, "Hello! How can I help?")
	}
	if resp.Usage.InputTokens != 10 || resp.Usage.OutputTokens != 8 {
		t.Errorf("Usage = %+v, want 10/8", resp.Usage)
	}
	if resp.Usage.Total() != 18 {
		t.Errorf("Total = %d, want 18", resp.Usage.Total())
	}
}

func TestOpenAIProviderNoContextOmitsSystem(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openaiRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("expected single user message, got %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(openaiResponse{Model: "m"})
	}))
	defer server.Close()

	provider := NewOpenAIProvider(config.ProviderConfig{BaseURL: server.URL, Model: "m"}, newTestLogger())
	if _, err := provider.SendMessage(context.Background(), "hi", ""); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
}

func TestOpenAIProviderRateLimitError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	provider := NewOpenAIProvider(config.ProviderConfig{BaseURL: server.URL, Model: "m"}, newTestLogger())
	_, err := provider.SendMessage(context.Background(), "hi", "")
	if !errors.Is(err, domain.ErrRateLimit) {
		t.Errorf("expected ErrRateLimit, got %v", err)
	}
}

func TestOpenAIProviderAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer server.Close()

	provider := NewOpenAIProvider(config.ProviderConfig{BaseURL: server.URL, Model: "m"}, newTestLogger())
	_, err := provider.SendMessage(context.Background(), "hi", "")
	if !errors.Is(err, domain.ErrAuthInvalid) {
		t.Errorf("expected ErrAuthInvalid, got %v", err)
	}
}

func TestOpenAIProviderCheckAvailability(t *testing.T) {
	provider := NewOpenAIProvider(config.ProviderConfig{Model: "m"}, newTestLogger())
	if av := provider.CheckAvailability(); !av.Available {
		t.Error("raw provider should always be available")
	}
}
