package progress

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// LocalStore keeps snapshots in a single-file SQLite key/value table on the
// user's machine. It is what the terminal wizard writes through.
type LocalStore struct {
	db *sql.DB
}

func OpenLocalStore(path string) (*LocalStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening progress db: %w", err)
	}
	// One writer per process; sqlite serializes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating progress table: %w", err)
	}
	return &LocalStore{db: db}, nil
}

func (s *LocalStore) Close() error {
	return s.db.Close()
}

func (s *LocalStore) Load(ctx context.Context, id SessionID) (*Snapshot, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, keyPrefix+string(id)).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("loading progress: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding progress: %w", err)
	}
	return &snap, nil
}

func (s *LocalStore) Save(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding progress: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		keyPrefix+string(snap.SessionID), data)
	if err != nil {
		return fmt.Errorf("saving progress: %w", err)
	}
	return nil
}

func (s *LocalStore) Delete(ctx context.Context, id SessionID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, keyPrefix+string(id)); err != nil {
		return fmt.Errorf("deleting progress: %w", err)
	}
	return nil
}

// LastSession returns the most recently saved session, if any. The terminal
// wizard uses it to resume without asking for an id.
func (s *LocalStore) LastSession(ctx context.Context) (SessionID, error) {
	var key string
	err := s.db.QueryRowContext(ctx,
		`SELECT key FROM kv WHERE key LIKE 'progress:%' ORDER BY updated_at DESC LIMIT 1`).Scan(&key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNoSnapshot
		}
		return "", fmt.Errorf("finding last session: %w", err)
	}
	return SessionID(key[len(keyPrefix):]), nil
}
