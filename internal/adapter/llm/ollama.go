package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"conductor/internal/domain"
	"conductor/internal/infra/config"
	"conductor/internal/infra/tracer"
)

// OllamaProvider implements domain.Adapter for a local Ollama server.
type OllamaProvider struct {
	model   string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewOllamaProvider creates a provider with configured timeouts.
func NewOllamaProvider(cfg config.ProviderConfig, logger *slog.Logger) *OllamaProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	return &OllamaProvider{
		model:   cfg.Model,
		baseURL: baseURL,
		client:  NewHTTPClient(cfg),
		logger:  logger,
	}
}

// SendMessage implements domain.Adapter.
func (p *OllamaProvider) SendMessage(ctx context.Context, message, contextText string) (*domain.Response, error) {
	ctx, span := tracer.StartSpan(ctx, "llm.send",
		trace.WithAttributes(
			tracer.StringAttr("llm.provider", "ollama"),
			tracer.StringAttr("llm.model", p.model),
		),
	)
	defer span.End()

	msgs := make([]ollamaMessage, 0, 2)
	if contextText != "" {
		msgs = append(msgs, ollamaMessage{Role: "system", Content: contextText})
	}
	msgs = append(msgs, ollamaMessage{Role: "user", Content: message})

	body, err := json.Marshal(ollamaRequest{Model: p.model, Messages: msgs, Stream: false})
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := doJSONRequest(ctx, p.client, p.baseURL+"/api/chat", body, nil)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	var olResp ollamaResponse
	if err := json.Unmarshal(respBody, &olResp); err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	result := &domain.Response{
		Content: olResp.Message.Content,
		Model:   olResp.Model,
		Usage: domain.Usage{
			InputTokens:  olResp.PromptEvalCount,
			OutputTokens: olResp.EvalCount,
		},
	}

	// Older Ollama builds omit eval counts; estimate so accounting
	// never silently records zero usage for a real completion.
	if result.Usage.InputTokens == 0 {
		result.Usage.InputTokens = EstimateTokens(contextText) + EstimateTokens(message)
	}
	if result.Usage.OutputTokens == 0 {
		result.Usage.OutputTokens = EstimateTokens(result.Content)
	}

	setUsageAttrs(span, result.Usage)
	tracer.SetOK(span)
	logSendCompleted(p.logger, "ollama", result)

	return result, nil
}

// CheckAvailability implements domain.Adapter.
func (p *OllamaProvider) CheckAvailability() domain.Availability {
	return domain.Availability{Available: true}
}

// --- Ollama API wire types ---

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}
