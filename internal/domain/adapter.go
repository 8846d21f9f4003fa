package domain

import (
	"context"
	"time"
)

// Adapter is the capability contract every AI backend connector implements.
// SendMessage performs one chat-completion round trip; CheckAvailability
// reports the connector's advisory rate-limit state.
type Adapter interface {
	// SendMessage sends a user message (with optional conversational context)
	// and returns the provider's reply.
	SendMessage(ctx context.Context, message, contextText string) (*Response, error)
	// CheckAvailability reports whether the adapter may be dispatched to
	// right now, and if not, how long until it becomes available again.
	CheckAvailability() Availability
}

// Response is the normalized result of a provider call.
type Response struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   Usage  `json:"usage"`
}

// Usage tracks token consumption for a single call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns the combined token count.
func (u Usage) Total() int { return u.InputTokens + u.OutputTokens }

// Availability is the advisory rate-limit state of an adapter.
type Availability struct {
	Available  bool          `json:"available"`
	RetryAfter time.Duration `json:"retry_after"`
}

// AdapterStatus values reported in registry snapshots.
const (
	StatusActive      = "active"
	StatusRateLimited = "rate_limited"
	StatusDegraded    = "degraded"
)
