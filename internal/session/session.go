// Package session holds the process-wide bearer credential. The token is
// persisted in a client-local SQLite key/value table so it survives restarts,
// mirroring the fixed-key storage the backend expects clients to keep.
// If opening the DB fails, the package falls back to in-memory storage.
package session

import (
	"database/sql"
	"sync"

	_ "github.com/glebarez/go-sqlite"

	"github.com/agentchat/agentchat-go/internal/logger"
)

const tokenKey = "access_token"

// Store is the process-wide session state. Set on login, cleared on logout
// or on any observed 401; every outgoing request reads, never mutates.
type Store struct {
	mu        sync.Mutex
	token     string
	db        *sql.DB
	onExpired func()
}

// Open loads the persisted credential from the given SQLite path. A store is
// always returned; persistence is disabled when the DB cannot be opened.
func Open(path string) *Store {
	s := &Store{}

	db, err := sql.Open("sqlite", "file:"+path+"?_busy_timeout=10000")
	if err != nil {
		logger.L.Warn("sqlite open failed; session will not persist", "error", err)
		return s
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT
	);`); err != nil {
		logger.L.Warn("sqlite table creation failed; session will not persist", "error", err)
		db.Close()
		return s
	}
	s.db = db

	var tok string
	err = db.QueryRow(`SELECT value FROM kv WHERE key = ?;`, tokenKey).Scan(&tok)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		logger.L.Warn("failed to read persisted token", "error", err)
	default:
		s.token = tok
	}
	return s
}

// Token returns the held bearer token, or "" when none is held.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// SetToken stores and persists a new bearer token.
func (s *Store) SetToken(tok string) {
	s.mu.Lock()
	s.token = tok
	db := s.db
	s.mu.Unlock()

	if db != nil {
		if _, err := db.Exec(`INSERT INTO kv (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value;`, tokenKey, tok); err != nil {
			logger.L.Error("failed to persist token", "error", err)
		}
	}
}

// Clear removes the credential (logout).
func (s *Store) Clear() {
	s.mu.Lock()
	s.token = ""
	db := s.db
	s.mu.Unlock()

	if db != nil {
		if _, err := db.Exec(`DELETE FROM kv WHERE key = ?;`, tokenKey); err != nil {
			logger.L.Error("failed to clear persisted token", "error", err)
		}
	}
}

// OnAuthExpired registers the hook fired when the backend rejects the
// credential. The transport calls Expire exactly once per 401 response.
func (s *Store) OnAuthExpired(fn func()) {
	s.mu.Lock()
	s.onExpired = fn
	s.mu.Unlock()
}

// Expire clears the credential and fires the auth-expired hook.
func (s *Store) Expire() {
	s.Clear()
	s.mu.Lock()
	fn := s.onExpired
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Close releases the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
