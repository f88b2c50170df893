// Package history keeps a client-local SQLite mirror of conversation
// transcripts so they can be listed without the backend.
// If opening the DB or executing queries fails, the package falls back to
// in-memory storage.
package history

import (
	"database/sql"
	"sync"

	_ "github.com/glebarez/go-sqlite"

	"github.com/agentchat/agentchat-go/internal/api"
	"github.com/agentchat/agentchat-go/internal/logger"
)

// Store mirrors transcripts locally. It is not the source of truth; the
// chat store rewrites a conversation's rows on every wholesale load.
type Store struct {
	mu  sync.Mutex
	mem map[string][]api.Message // in-memory fallback, always kept
	db  *sql.DB
}

// Open creates (or opens) the mirror database at the given path. A store is
// always returned; persistence is disabled when the DB cannot be opened.
func Open(path string) *Store {
	s := &Store{mem: make(map[string][]api.Message)}

	db, err := sql.Open("sqlite", "file:"+path+"?_busy_timeout=10000")
	if err != nil {
		logger.L.Warn("sqlite open failed; using in-memory history", "error", err)
		return s
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS messages (
		id TEXT,
		conversation_id TEXT,
		role TEXT,
		content TEXT,
		agent_mode TEXT,
		created_at DATETIME
	);`); err != nil {
		logger.L.Warn("sqlite table creation failed; using in-memory history", "error", err)
		db.Close()
		return s
	}
	s.db = db
	return s
}

// Save appends one message to a conversation's mirror.
func (s *Store) Save(msg api.Message) {
	s.mu.Lock()
	s.mem[msg.ConversationID] = append(s.mem[msg.ConversationID], msg)
	db := s.db
	s.mu.Unlock()

	if db != nil {
		if _, err := db.Exec(`INSERT INTO messages (id, conversation_id, role, content, agent_mode, created_at)
			VALUES (?,?,?,?,?,?);`,
			msg.ID, msg.ConversationID, string(msg.Role), msg.Content, msg.AgentMode, msg.CreatedAt); err != nil {
			logger.L.Error("failed to store message in sqlite; kept in memory only", "error", err)
		}
	}
}

// Replace rewrites a conversation's mirror wholesale, matching a full server
// fetch.
func (s *Store) Replace(conversationID string, msgs []api.Message) {
	s.mu.Lock()
	s.mem[conversationID] = append([]api.Message(nil), msgs...)
	db := s.db
	s.mu.Unlock()

	if db == nil {
		return
	}
	tx, err := db.Begin()
	if err != nil {
		logger.L.Error("failed to begin history rewrite", "error", err)
		return
	}
	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?;`, conversationID); err != nil {
		logger.L.Error("failed to clear history rows", "error", err)
		tx.Rollback()
		return
	}
	for _, msg := range msgs {
		if _, err := tx.Exec(`INSERT INTO messages (id, conversation_id, role, content, agent_mode, created_at)
			VALUES (?,?,?,?,?,?);`,
			msg.ID, msg.ConversationID, string(msg.Role), msg.Content, msg.AgentMode, msg.CreatedAt); err != nil {
			logger.L.Error("failed to store message in sqlite", "error", err)
			tx.Rollback()
			return
		}
	}
	if err := tx.Commit(); err != nil {
		logger.L.Error("failed to commit history rewrite", "error", err)
	}
}

// List returns a conversation's mirrored messages in insertion order.
func (s *Store) List(conversationID string) []api.Message {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()

	if db != nil {
		rows, err := db.Query(`SELECT id, conversation_id, role, content, agent_mode, created_at
			FROM messages WHERE conversation_id = ? ORDER BY rowid ASC;`, conversationID)
		if err == nil {
			defer rows.Close()
			var out []api.Message
			for rows.Next() {
				var m api.Message
				var role string
				if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &m.AgentMode, &m.CreatedAt); err == nil {
					m.Role = api.Role(role)
					out = append(out, m)
				}
			}
			return out
		}
		logger.L.Warn("history query failed; using in-memory copy", "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.Message(nil), s.mem[conversationID]...)
}

// Delete drops a conversation's mirror entirely.
func (s *Store) Delete(conversationID string) {
	s.mu.Lock()
	delete(s.mem, conversationID)
	db := s.db
	s.mu.Unlock()

	if db != nil {
		if _, err := db.Exec(`DELETE FROM messages WHERE conversation_id = ?;`, conversationID); err != nil {
			logger.L.Error("failed to delete history rows", "error", err)
		}
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
