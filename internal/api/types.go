package api

import "time"

// Role identifies the sender of a message. The backend only ever produces
// the two values below.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Conversation is a server-owned conversation record.
type Conversation struct {
	ID        string    `json:"id"`
	Title     *string   `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one transcript entry. IDs are server-issued for persisted
// messages and client-issued (random) for messages in flight; a local ID is
// never sent back to the server as a key.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	AgentMode      string    `json:"agent_mode"`
	CreatedAt      time.Time `json:"created_at"`
}

// MessagesPage is one page of a conversation's message history.
type MessagesPage struct {
	Items []Message `json:"items"`
	Total int       `json:"total"`
}

// AgentInfo describes one backend agent mode.
type AgentInfo struct {
	Mode        string  `json:"mode"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// ToolInfo describes one backend tool.
type ToolInfo struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// LoginRequest is the credential payload for POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token issued on login.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ConversationCreate is the payload for creating a conversation.
type ConversationCreate struct {
	Title *string `json:"title,omitempty"`
}

// MessageCreate is the payload for both send endpoints.
type MessageCreate struct {
	Content   string `json:"content"`
	AgentMode string `json:"agent_mode"`
}

// MessageResponse is the single JSON answer of the non-streamed send path.
type MessageResponse struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	AgentMode      string `json:"agent_mode"`
	Answer         string `json:"answer"`
}
