// Package api is the HTTP client for the agentchat backend: thin CRUD
// wrappers plus the streaming message transport.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/agentchat/agentchat-go/internal/logger"
	"github.com/agentchat/agentchat-go/internal/session"
)

const defaultPageLimit = 50

// Client talks to the agentchat backend. Every request attaches the bearer
// credential held by the session store when one is present; a 401 response
// expires the session before the error is returned. The client never
// retries.
type Client struct {
	baseURL string
	http    *http.Client
	// Streaming requests use a client without timeout; reads are bounded by
	// the request context instead.
	stream  *http.Client
	session *session.Store
}

// New creates a client. Zero values get defaults matching the backend's dev
// setup.
func New(baseURL string, timeout time.Duration, sess *session.Store) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		stream:  &http.Client{},
		session: sess,
	}
}

// Login authenticates and stores the issued token in the session.
func (c *Client) Login(ctx context.Context, creds LoginRequest) (LoginResponse, error) {
	var out LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", creds, &out); err != nil {
		return LoginResponse{}, err
	}
	c.session.SetToken(out.AccessToken)
	return out, nil
}

// ListConversations returns all conversations of the current user.
func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	var out []Conversation
	err := c.do(ctx, http.MethodGet, "/api/conversations", nil, &out)
	return out, err
}

// CreateConversation persists a new conversation.
func (c *Client) CreateConversation(ctx context.Context, payload ConversationCreate) (Conversation, error) {
	var out Conversation
	err := c.do(ctx, http.MethodPost, "/api/conversations", payload, &out)
	return out, err
}

// DeleteConversation deletes a conversation and its messages.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/conversations/"+id, nil, nil)
}

// ListMessages returns one page of a conversation's messages.
func (c *Client) ListMessages(ctx context.Context, conversationID string, limit, offset int) (MessagesPage, error) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	path := "/api/conversations/" + conversationID + "/messages" +
		"?limit=" + strconv.Itoa(limit) + "&offset=" + strconv.Itoa(offset)
	var out MessagesPage
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// SendMessage is the non-streamed send path: the whole answer arrives as one
// JSON response.
func (c *Client) SendMessage(ctx context.Context, conversationID string, payload MessageCreate) (MessageResponse, error) {
	var out MessageResponse
	err := c.do(ctx, http.MethodPost, "/api/conversations/"+conversationID+"/messages", payload, &out)
	return out, err
}

// ListAgents returns the available agent modes.
func (c *Client) ListAgents(ctx context.Context) ([]AgentInfo, error) {
	var out []AgentInfo
	err := c.do(ctx, http.MethodGet, "/api/agents", nil, &out)
	return out, err
}

// ListTools returns the backend's tool catalog.
func (c *Client) ListTools(ctx context.Context) ([]ToolInfo, error) {
	var out []ToolInfo
	err := c.do(ctx, http.MethodGet, "/api/tools", nil, &out)
	return out, err
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Kind: KindUnknown, Message: "encode request body", Cause: err}
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Message: "build request", Cause: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.session.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, Message: method + " " + path + " failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.errorFromResponse(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindTransport, Message: "decode " + path + " response", Cause: err}
	}
	return nil
}

// errorFromResponse reads the full error body and maps the status to the
// error taxonomy. A 401 additionally expires the session, which clears the
// credential and fires the auth-expired hook.
func (c *Client) errorFromResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)
	msg := errorMessage(resp.StatusCode, raw)

	if resp.StatusCode == http.StatusUnauthorized {
		logger.L.Warn("credential rejected by backend", "status", resp.StatusCode)
		c.session.Expire()
		return &Error{Kind: KindAuthExpired, Status: resp.StatusCode, Message: msg}
	}
	return &Error{Kind: KindRequestFailed, Status: resp.StatusCode, Message: msg}
}
