package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"conductor/internal/domain"
)

// SQLiteStore implements domain.ConversationStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath
// and runs the schema migration.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS conversation_entries (
			id         TEXT PRIMARY KEY,
			timestamp  TEXT NOT NULL,
			role       TEXT NOT NULL,
			adapter_id TEXT NOT NULL,
			message    TEXT NOT NULL,
			response   TEXT NOT NULL,
			usage      TEXT NOT NULL DEFAULT '{}'
		)
	`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append implements domain.ConversationStore.
func (s *SQLiteStore) Append(ctx context.Context, entry domain.ConversationEntry) error {
	usageJSON, err := json.Marshal(entry.Usage)
	if err != nil {
		return fmt.Errorf("marshal entry usage: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO conversation_entries (id, timestamp, role, adapter_id, message, response, usage) VALUES (?, ?, ?, ?, ?, ?, ?)",
		entry.ID, entry.Timestamp.UTC().Format(time.RFC3339Nano), entry.Role,
		entry.AdapterID, entry.Message, entry.Response, string(usageJSON),
	)
	if err != nil {
		return fmt.Errorf("%w: append: %v", domain.ErrHistoryStore, err)
	}
	return nil
}

// Recent implements domain.ConversationStore. Entries come back oldest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]domain.ConversationEntry, error) {
	query := "SELECT id, timestamp, role, adapter_id, message, response, usage FROM conversation_entries ORDER BY timestamp"
	var rows *sql.Rows
	var err error
	if limit > 0 {
		// Take the newest N, then return them in chronological order.
		query = "SELECT * FROM (SELECT id, timestamp, role, adapter_id, message, response, usage FROM conversation_entries ORDER BY timestamp DESC LIMIT ?) ORDER BY timestamp"
		rows, err = s.db.QueryContext(ctx, query, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", domain.ErrHistoryStore, err)
	}
	defer rows.Close()

	var entries []domain.ConversationEntry
	for rows.Next() {
		var e domain.ConversationEntry
		var tsStr, usageStr string
		if err := rows.Scan(&e.ID, &tsStr, &e.Role, &e.AdapterID, &e.Message, &e.Response, &usageStr); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", domain.ErrHistoryStore, err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, tsStr); err == nil {
			e.Timestamp = ts
		}
		if err := json.Unmarshal([]byte(usageStr), &e.Usage); err != nil {
			return nil, fmt.Errorf("%w: unmarshal usage: %v", domain.ErrHistoryStore, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Len implements domain.ConversationStore.
func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM conversation_entries").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count: %v", domain.ErrHistoryStore, err)
	}
	return n, nil
}

// Clear implements domain.ConversationStore.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM conversation_entries"); err != nil {
		return fmt.Errorf("%w: clear: %v", domain.ErrHistoryStore, err)
	}
	return nil
}

var _ domain.ConversationStore = (*SQLiteStore)(nil)
