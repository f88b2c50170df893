// Package chat holds the client-side conversation state: the conversation
// list, per-conversation transcripts, and the send orchestration that fills
// an agent placeholder from a streamed response.
package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentchat/agentchat-go/internal/api"
	"github.com/agentchat/agentchat-go/internal/catalog"
	"github.com/agentchat/agentchat-go/internal/history"
)

// Backend is the subset of the API client the store drives. It mirrors
// api.Client and is narrow enough to fake in tests.
type Backend interface {
	ListConversations(ctx context.Context) ([]api.Conversation, error)
	CreateConversation(ctx context.Context, payload api.ConversationCreate) (api.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	ListMessages(ctx context.Context, conversationID string, limit, offset int) (api.MessagesPage, error)
	SendMessage(ctx context.Context, conversationID string, payload api.MessageCreate) (api.MessageResponse, error)
	OpenMessageStream(ctx context.Context, conversationID string, payload api.MessageCreate) (api.Stream, error)
}

// Store owns the transcript map and the active-conversation pointer. All
// mutation goes through its methods; views return copies. A mutex guards the
// state so UI reads can interleave with an in-flight send between network
// waits.
type Store struct {
	mu      sync.Mutex
	backend Backend
	history *history.Store // optional; nil disables the local mirror

	conversations []api.Conversation
	transcripts   map[string][]api.Message
	activeID      string
	agentMode     string

	loading bool
	lastErr string
	sending bool
}

// New creates a store. hist may be nil.
func New(backend Backend, hist *history.Store, agentMode string) *Store {
	return &Store{
		backend:     backend,
		history:     hist,
		transcripts: make(map[string][]api.Message),
		agentMode:   catalog.NormalizeMode(agentMode),
	}
}

// LoadConversations replaces the conversation list wholesale. On failure the
// previous list is left untouched and only the error message is recorded.
func (s *Store) LoadConversations(ctx context.Context) error {
	s.begin()
	defer s.end()

	list, err := s.backend.ListConversations(ctx)
	if err != nil {
		s.recordErr(err, "failed to load conversations")
		return err
	}

	s.mu.Lock()
	s.conversations = list
	s.mu.Unlock()
	return nil
}

// CreateConversation persists a new conversation, inserts it at the front of
// the list, and switches to it.
func (s *Store) CreateConversation(ctx context.Context, payload api.ConversationCreate) (api.Conversation, error) {
	s.begin()

	conv, err := s.backend.CreateConversation(ctx, payload)
	if err != nil {
		s.recordErr(err, "failed to create conversation")
		s.end()
		return api.Conversation{}, err
	}

	s.mu.Lock()
	s.conversations = append([]api.Conversation{conv}, s.conversations...)
	s.mu.Unlock()
	s.end()

	if err := s.SwitchConversation(ctx, conv.ID); err != nil {
		return conv, err
	}
	return conv, nil
}

// DeleteConversation removes the conversation. Deleting the active one
// clears the active pointer and empties its transcript; other transcripts
// are untouched.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	s.begin()
	defer s.end()

	if err := s.backend.DeleteConversation(ctx, id); err != nil {
		s.recordErr(err, "failed to delete conversation")
		return err
	}

	s.mu.Lock()
	kept := s.conversations[:0]
	for _, c := range s.conversations {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	s.conversations = kept
	if s.activeID == id {
		s.activeID = ""
		s.transcripts[id] = []api.Message{}
	}
	s.mu.Unlock()

	if s.history != nil {
		s.history.Delete(id)
	}
	return nil
}

// LoadMessages replaces a conversation's transcript wholesale from the
// paginated server fetch.
func (s *Store) LoadMessages(ctx context.Context, conversationID string) error {
	s.begin()
	defer s.end()

	page, err := s.backend.ListMessages(ctx, conversationID, 0, 0)
	if err != nil {
		s.recordErr(err, "failed to load messages")
		return err
	}

	s.mu.Lock()
	s.transcripts[conversationID] = page.Items
	s.mu.Unlock()

	if s.history != nil {
		s.history.Replace(conversationID, page.Items)
	}
	return nil
}

// SwitchConversation sets the active pointer. The transcript is fetched only
// when it is absent or empty, so switching to an already-loaded conversation
// does not refetch.
func (s *Store) SwitchConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	s.activeID = id
	needLoad := len(s.transcripts[id]) == 0
	s.mu.Unlock()

	if !needLoad {
		return nil
	}
	return s.LoadMessages(ctx, id)
}

// SendMessageSimple is the legacy non-streamed send: both transcript entries
// are appended after the single JSON response arrives, with server-derived
// identifiers.
func (s *Store) SendMessageSimple(ctx context.Context, content string) (api.MessageResponse, error) {
	s.mu.Lock()
	convID := s.activeID
	mode := s.agentMode
	s.mu.Unlock()
	if convID == "" {
		err := &api.Error{Kind: api.KindPrecondition, Message: "no active conversation"}
		s.recordErr(err, err.Message)
		return api.MessageResponse{}, err
	}

	s.begin()
	defer s.end()

	resp, err := s.backend.SendMessage(ctx, convID, api.MessageCreate{Content: content, AgentMode: mode})
	if err != nil {
		s.recordErr(err, "failed to send message")
		return api.MessageResponse{}, err
	}

	now := time.Now()
	userMsg := api.Message{
		ID:             resp.MessageID,
		ConversationID: resp.ConversationID,
		Role:           api.RoleUser,
		Content:        content,
		AgentMode:      resp.AgentMode,
		CreatedAt:      now,
	}
	agentMsg := api.Message{
		ID:             resp.MessageID + "_response",
		ConversationID: resp.ConversationID,
		Role:           api.RoleAgent,
		Content:        resp.Answer,
		AgentMode:      resp.AgentMode,
		CreatedAt:      now,
	}

	s.mu.Lock()
	s.transcripts[convID] = append(s.transcripts[convID], userMsg, agentMsg)
	s.mu.Unlock()

	if s.history != nil {
		s.history.Save(userMsg)
		s.history.Save(agentMsg)
	}
	return resp, nil
}

// SetAgentMode selects which backend agent answers subsequent sends.
func (s *Store) SetAgentMode(mode string) {
	s.mu.Lock()
	s.agentMode = catalog.NormalizeMode(mode)
	s.mu.Unlock()
}

// AgentMode returns the currently selected agent mode.
func (s *Store) AgentMode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agentMode
}

// Conversations returns a copy of the conversation list, newest first.
func (s *Store) Conversations() []api.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.Conversation(nil), s.conversations...)
}

// ActiveConversation returns the active conversation record, if any.
func (s *Store) ActiveConversation() (api.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conversations {
		if c.ID == s.activeID {
			return c, true
		}
	}
	return api.Conversation{}, false
}

// ActiveID returns the active conversation identifier, or "".
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// ActiveMessages returns a copy of the active conversation's transcript, or
// an empty sequence when no conversation is active.
func (s *Store) ActiveMessages() []api.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeID == "" {
		return []api.Message{}
	}
	return append([]api.Message(nil), s.transcripts[s.activeID]...)
}

// Loading reports whether an operation is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the last recorded error message, or "".
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// begin marks an operation started: loading set, previous error cleared.
func (s *Store) begin() {
	s.mu.Lock()
	s.loading = true
	s.lastErr = ""
	s.mu.Unlock()
}

// end clears the loading flag; it runs on every exit path.
func (s *Store) end() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
}

// recordErr stores the user-facing message for err, preferring the
// backend-supplied detail over the generic fallback.
func (s *Store) recordErr(err error, fallback string) {
	s.mu.Lock()
	s.lastErr = errText(err, fallback)
	s.mu.Unlock()
}

func errText(err error, fallback string) string {
	var ae *api.Error
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return fallback
}

func newLocalID() string {
	return uuid.NewString()
}
