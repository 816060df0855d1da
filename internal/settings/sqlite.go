package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultMaxBytes bounds the encoded settings document.
	DefaultMaxBytes = 1 << 20

	settingsRow = "settings"
)

// SQLiteStore keeps the settings document as a JSON row.
type SQLiteStore struct {
	db       *sql.DB
	maxBytes int
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, maxBytes: DefaultMaxBytes}
}

// Load returns stored settings, or defaults if nothing was saved yet.
func (s *SQLiteStore) Load(ctx context.Context) (*Settings, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE name = ?;", settingsRow).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return &Settings{Prefs: map[string]json.RawMessage{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var out Settings
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("stored settings are invalid JSON: %w", err)
	}
	return &out, nil
}

// Save replaces the settings document. The commit is synchronous.
func (s *SQLiteStore) Save(ctx context.Context, st *Settings) error {
	encoded, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if len(encoded) > s.maxBytes {
		return fmt.Errorf("settings exceed max size (%d bytes)", s.maxBytes)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = tx.ExecContext(ctx, `
INSERT INTO settings(name, value, updated_at)
VALUES(?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
  value = excluded.value,
  updated_at = excluded.updated_at;
`, settingsRow, string(encoded), now)
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
