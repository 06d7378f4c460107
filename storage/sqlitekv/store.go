// Package sqlitekv persists the client's key-value state in a single SQLite
// file using zombiezen.com/go/sqlite.
package sqlitekv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/go-task-client/storage"
	"github.com/rs/zerolog/log"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

var _ storage.Repo = (*Store)(nil)

// Store is a storage.Repo backed by one SQLite connection. The connection is
// not safe for concurrent use, so every call holds mu.
type Store struct {
	conn *sqlite.Conn
	path string
	mu   sync.Mutex
}

// Open creates the parent directory and database file if needed. Use
// ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlitekv: path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("sqlitekv: creating directory for %s: %w", path, err)
		}
	}

	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite, sqlite.OpenCreate, sqlite.OpenWAL)
	if err != nil {
		return nil, fmt.Errorf("sqlitekv: opening %s: %w", path, err)
	}

	for _, pragma := range []string{"PRAGMA busy_timeout=5000", "PRAGMA synchronous=NORMAL"} {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlitekv: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlitekv: creating schema: %w", err)
	}

	log.Debug().Str("path", path).Msg("kv store opened")
	return &Store{conn: conn, path: path}, nil
}

func (s *Store) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		value string
		found bool
	)
	err := sqlitex.Execute(s.conn, `SELECT value FROM kv WHERE key = ?`, &sqlitex.ExecOptions{
		Args: []any{key},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			value = stmt.ColumnText(0)
			found = true
			return nil
		},
	})
	if err != nil {
		return "", fmt.Errorf("sqlitekv: get %s: %w", key, err)
	}
	if !found {
		return "", storage.ErrNotFound
	}
	return value, nil
}

func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := sqlitex.Execute(s.conn,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		&sqlitex.ExecOptions{Args: []any{key, value}},
	)
	if err != nil {
		return fmt.Errorf("sqlitekv: set %s: %w", key, err)
	}
	return nil
}

// Delete removes all keys in one transaction so they disappear together.
func (s *Store) Delete(keys ...string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	endFn, err := sqlitex.ImmediateTransaction(s.conn)
	if err != nil {
		return fmt.Errorf("sqlitekv: begin delete: %w", err)
	}
	defer endFn(&err)

	for _, key := range keys {
		if err = sqlitex.Execute(s.conn, `DELETE FROM kv WHERE key = ?`, &sqlitex.ExecOptions{
			Args: []any{key},
		}); err != nil {
			return fmt.Errorf("sqlitekv: delete %s: %w", key, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("sqlitekv: closing %s: %w", s.path, err)
	}
	log.Debug().Str("path", s.path).Msg("kv store closed")
	return nil
}
