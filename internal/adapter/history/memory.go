package history

import (
	"context"
	"sync"

	"conductor/internal/domain"
)

// defaultMaxEntries bounds the in-memory log when no limit is configured.
const defaultMaxEntries = 1000

// MemoryStore is a bounded in-memory domain.ConversationStore.
// When the bound is reached the oldest entries are evicted.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []domain.ConversationEntry
	max     int
}

// NewMemoryStore creates a store bounded to max entries.
// max <= 0 uses the default (1000).
func NewMemoryStore(max int) *MemoryStore {
	if max <= 0 {
		max = defaultMaxEntries
	}
	return &MemoryStore{max: max}
}

// Append implements domain.ConversationStore.
func (s *MemoryStore) Append(_ context.Context, entry domain.ConversationEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
	if len(s.entries) > s.max {
		overflow := len(s.entries) - s.max
		s.entries = append(s.entries[:0:0], s.entries[overflow:]...)
	}
	return nil
}

// Recent implements domain.ConversationStore. Entries come back oldest first.
func (s *MemoryStore) Recent(_ context.Context, limit int) ([]domain.ConversationEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.ConversationEntry, n)
	copy(out, s.entries[len(s.entries)-n:])
	return out, nil
}

// Len implements domain.ConversationStore.
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Clear implements domain.ConversationStore.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return nil
}

var _ domain.ConversationStore = (*MemoryStore)(nil)
