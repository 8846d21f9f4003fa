package llm

import (
	"context"
	"fmt"
	"sync/atomic"

	"conductor/internal/domain"
)

// MockAdapter is a scriptable in-process adapter used by tests and the
// "mock" provider type. It replies with a canned response unless a SendFunc
// is supplied.
type MockAdapter struct {
	Model string
	// SendFunc, when set, fully replaces the canned behavior.
	SendFunc func(ctx context.Context, message, contextText string) (*domain.Response, error)
	// Err, when set, is returned by every SendMessage call.
	Err error

	calls atomic.Int64
}

// NewMockAdapter creates a mock that echoes the incoming message.
func NewMockAdapter(model string) *MockAdapter {
	if model == "" {
		model = "mock-model"
	}
	return &MockAdapter{Model: model}
}

// SendMessage implements domain.Adapter.
func (m *MockAdapter) SendMessage(ctx context.Context, message, contextText string) (*domain.Response, error) {
	m.calls.Add(1)

	if m.SendFunc != nil {
		return m.SendFunc(ctx, message, contextText)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content := fmt.Sprintf("mock response to: %s", message)
	return &domain.Response{
		Content: content,
		Model:   m.Model,
		Usage: domain.Usage{
			InputTokens:  EstimateTokens(contextText) + EstimateTokens(message),
			OutputTokens: EstimateTokens(content),
		},
	}, nil
}

// CheckAvailability implements domain.Adapter.
func (m *MockAdapter) CheckAvailability() domain.Availability {
	return domain.Availability{Available: true}
}

// Calls reports how many SendMessage calls the mock has served.
func (m *MockAdapter) Calls() int { return int(m.calls.Load()) }

var _ domain.Adapter = (*MockAdapter)(nil)
