package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentchat/agentchat-go/internal/session"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *session.Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sess := session.Open(filepath.Join(t.TempDir(), "session.db"))
	t.Cleanup(func() { sess.Close() })

	return New(srv.URL, 0, sess), sess
}

func TestBearerHeaderAttachedWhenTokenHeld(t *testing.T) {
	var gotAuth string
	client, sess := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode([]Conversation{})
	}))
	sess.SetToken("tok-123")

	_, err := client.ListConversations(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer tok-123", gotAuth)
}

func TestBearerHeaderOmittedWithoutToken(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode([]Conversation{})
	}))

	_, err := client.ListConversations(context.Background())
	require.NoError(t, err)
	require.Empty(t, gotAuth)
}

func TestLoginStoresToken(t *testing.T) {
	client, sess := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/login", r.URL.Path)
		var creds LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		require.Equal(t, "alice", creds.Username)
		json.NewEncoder(w).Encode(LoginResponse{AccessToken: "tok-issued"})
	}))

	resp, err := client.Login(context.Background(), LoginRequest{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	require.Equal(t, "tok-issued", resp.AccessToken)
	require.Equal(t, "tok-issued", sess.Token())
}

func TestErrorPrefersDetailField(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail": "Conversation not found"}`))
	}))

	_, err := client.ListConversations(context.Background())
	require.Error(t, err)
	require.True(t, IsKind(err, KindRequestFailed))

	var ae *Error
	require.ErrorAs(t, err, &ae)
	require.Equal(t, http.StatusNotFound, ae.Status)
	require.Equal(t, "Conversation not found", ae.Message)
}

func TestErrorFallsBackToRawBody(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("upstream exploded"))
	}))

	_, err := client.ListConversations(context.Background())
	var ae *Error
	require.ErrorAs(t, err, &ae)
	require.Equal(t, "upstream exploded", ae.Message)
}

func TestErrorGenericFallbackForEmptyBody(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.ListConversations(context.Background())
	var ae *Error
	require.ErrorAs(t, err, &ae)
	require.Equal(t, "request failed (502)", ae.Message)
}

func TestUnauthorizedExpiresSessionExactlyOnce(t *testing.T) {
	client, sess := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail": "Token expired"}`))
	}))
	sess.SetToken("stale")

	fired := 0
	sess.OnAuthExpired(func() { fired++ })

	_, err := client.ListConversations(context.Background())
	require.Error(t, err)
	require.True(t, IsKind(err, KindAuthExpired))
	require.Empty(t, sess.Token())
	require.Equal(t, 1, fired)
}

func TestListMessagesQueryParameters(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/conversations/c1/messages", r.URL.Path)
		require.Equal(t, "25", r.URL.Query().Get("limit"))
		require.Equal(t, "50", r.URL.Query().Get("offset"))
		json.NewEncoder(w).Encode(MessagesPage{Items: []Message{}, Total: 0})
	}))

	_, err := client.ListMessages(context.Background(), "c1", 25, 50)
	require.NoError(t, err)
}

func TestListMessagesDefaultLimit(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "50", r.URL.Query().Get("limit"))
		require.Equal(t, "0", r.URL.Query().Get("offset"))
		json.NewEncoder(w).Encode(MessagesPage{})
	}))

	_, err := client.ListMessages(context.Background(), "c1", 0, 0)
	require.NoError(t, err)
}

func TestTransportFailureIsDistinctKind(t *testing.T) {
	sess := session.Open(filepath.Join(t.TempDir(), "session.db"))
	defer sess.Close()
	client := New("http://127.0.0.1:1", 0, sess) // nothing listens here

	_, err := client.ListConversations(context.Background())
	require.Error(t, err)
	require.True(t, IsKind(err, KindTransport))
}

func TestDeleteConversationPath(t *testing.T) {
	var gotMethod, gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]string{"message": "delete ok"})
	}))

	require.NoError(t, client.DeleteConversation(context.Background(), "c9"))
	require.Equal(t, http.MethodDelete, gotMethod)
	require.Equal(t, "/api/conversations/c9", gotPath)
}

func TestListAgentsAndTools(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/agents":
			json.NewEncoder(w).Encode([]AgentInfo{{Mode: "react", Name: "ReAct"}})
		case "/api/tools":
			json.NewEncoder(w).Encode([]ToolInfo{{Name: "web_search"}})
		default:
			http.NotFound(w, r)
		}
	}))

	agents, err := client.ListAgents(context.Background())
	require.NoError(t, err)
	require.Len(t, agents, 1)
	require.Equal(t, "react", agents[0].Mode)

	tools, err := client.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	require.Equal(t, "web_search", tools[0].Name)
}
