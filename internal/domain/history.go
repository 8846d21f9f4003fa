package domain

import (
	"context"
	"time"
)

// UsageSnapshot captures the accounting attached to one conversation entry.
type UsageSnapshot struct {
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	Cost         float64       `json:"cost"`
	Latency      time.Duration `json:"latency"`
	Model        string        `json:"model"`
}

// ConversationEntry is one append-only record of a role-addressed send.
type ConversationEntry struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Role      string        `json:"role"`
	AdapterID string        `json:"adapter_id"`
	Message   string        `json:"message"`
	Response  string        `json:"response"`
	Usage     UsageSnapshot `json:"usage"`
}

// ConversationStore persists the conversation log. Implementations must be
// safe for concurrent appends; the core never coordinates beyond that.
type ConversationStore interface {
	Append(ctx context.Context, entry ConversationEntry) error
	// Recent returns up to limit entries, oldest first. limit <= 0 means all.
	Recent(ctx context.Context, limit int) ([]ConversationEntry, error)
	// Len reports the number of stored entries.
	Len(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}
