// Package cache persists materialized catalogs so that a multi-minute
// rebuild only ever happens on an explicit refresh or a cold cache.
package cache

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// Store is a per-archive on-disk key/value container. Absence of the
// database file, or of a key inside it, equals a cold cache; there is
// no time-to-live.
type Store struct {
	sql  *sql.DB
	lock *flock.Flock
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS cache_entries (
  key      TEXT PRIMARY KEY,
  payload  BLOB NOT NULL,
  built_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
	`); err != nil {
		return nil, err
	}
	return &Store{
		sql:  db,
		lock: flock.New(path + ".lock"),
	}, nil
}

func (s *Store) Close() error {
	if s == nil || s.sql == nil {
		return nil
	}
	return s.sql.Close()
}

// Get returns the payload stored under key. The second result is false
// on a miss.
func (s *Store) Get(key string) ([]byte, bool, error) {
	var payload []byte
	err := s.sql.QueryRow("SELECT payload FROM cache_entries WHERE key = ?", key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

// Put stores payload under key, replacing any previous value. Writes
// are serialized across processes with a lock file next to the
// database.
func (s *Store) Put(key string, payload []byte) error {
	if err := s.lock.Lock(); err != nil {
		return err
	}
	defer s.lock.Unlock()
	_, err := s.sql.Exec(
		`INSERT INTO cache_entries(key, payload, built_at) VALUES(?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, built_at = excluded.built_at`,
		key, payload)
	return err
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	if err := s.lock.Lock(); err != nil {
		return err
	}
	defer s.lock.Unlock()
	_, err := s.sql.Exec("DELETE FROM cache_entries WHERE key = ?", key)
	return err
}
