package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conductor/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func entry(id, role string, ts time.Time) domain.ConversationEntry {
	return domain.ConversationEntry{
		ID:        id,
		Timestamp: ts,
		Role:      role,
		AdapterID: "openai-abc",
		Message:   "question " + id,
		Response:  "answer " + id,
		Usage: domain.UsageSnapshot{
			InputTokens:  10,
			OutputTokens: 5,
			Cost:         0.001,
			Latency:      250 * time.Millisecond,
			Model:        "gpt-4o-mini",
		},
	}
}

func TestSQLiteStoreAppendAndRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Append(ctx, entry(id, "coder", base.Add(time.Duration(i)*time.Second))))
	}

	all, err := store.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].ID, "entries should be oldest first")
	assert.Equal(t, "c", all[2].ID)

	assert.Equal(t, "coder", all[0].Role)
	assert.Equal(t, 10, all[0].Usage.InputTokens)
	assert.Equal(t, "gpt-4o-mini", all[0].Usage.Model)
}

func TestSQLiteStoreRecentLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, store.Append(ctx, entry(id, "r", base.Add(time.Duration(i)*time.Second))))
	}

	last2, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, last2, 2)
	assert.Equal(t, "c", last2[0].ID, "limit keeps the newest entries, oldest first")
	assert.Equal(t, "d", last2[1].ID)
}

func TestSQLiteStoreLenAndClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, store.Append(ctx, entry("x", "r", time.Now())))
	n, err = store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, store.Clear(ctx))
	n, err = store.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, entry("persist", "r", time.Now())))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "persist", entries[0].ID)
}
