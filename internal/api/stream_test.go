package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// recvAll drains a stream and returns the concatenation of its fragments.
func recvAll(t *testing.T, s Stream) string {
	t.Helper()
	var b strings.Builder
	for {
		frag, err := s.Recv()
		if err == io.EOF {
			return b.String()
		}
		require.NoError(t, err)
		require.NotEmpty(t, frag, "empty fragments must be suppressed")
		b.WriteString(frag)
	}
}

func TestOpenMessageStream_ConcatenatesFragments(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		io.WriteString(w, "Hel")
		flusher.Flush()
		io.WriteString(w, "lo")
		flusher.Flush()
	}))

	s, err := client.OpenMessageStream(context.Background(), "c1", MessageCreate{Content: "hi", AgentMode: "react"})
	require.NoError(t, err)
	defer s.Close()

	require.Equal(t, "Hello", recvAll(t, s))

	// The sequence is finite and non-restartable.
	_, err = s.Recv()
	require.Equal(t, io.EOF, err)
}

func TestOpenMessageStream_MultiByteSplitAcrossChunks(t *testing.T) {
	raw := []byte("答案是 42") // multi-byte content
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		// Flush mid-sequence so a code point straddles two network chunks.
		w.Write(raw[:4])
		flusher.Flush()
		w.Write(raw[4:])
		flusher.Flush()
	}))

	s, err := client.OpenMessageStream(context.Background(), "c1", MessageCreate{Content: "hi", AgentMode: "react"})
	require.NoError(t, err)
	defer s.Close()

	got := recvAll(t, s)
	require.Equal(t, string(raw), got)
	require.NotContains(t, got, "�")
}

func TestOpenMessageStream_SendsPayloadAndHeaders(t *testing.T) {
	client, sess := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/conversations/c1/messages/stream", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))

		var payload MessageCreate
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "hi", payload.Content)
		require.Equal(t, "react", payload.AgentMode)

		io.WriteString(w, "ok")
	}))
	sess.SetToken("tok-123")

	s, err := client.OpenMessageStream(context.Background(), "c1", MessageCreate{Content: "hi", AgentMode: "react"})
	require.NoError(t, err)
	defer s.Close()
	require.Equal(t, "ok", recvAll(t, s))
}

func TestOpenMessageStream_HTTPErrorReadsFullBody(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail": "Unsupported agent mode"}`))
	}))

	_, err := client.OpenMessageStream(context.Background(), "c1", MessageCreate{Content: "hi", AgentMode: "nope"})
	require.Error(t, err)
	require.True(t, IsKind(err, KindRequestFailed))

	var ae *Error
	require.ErrorAs(t, err, &ae)
	require.Equal(t, "Unsupported agent mode", ae.Message)
}

func TestOpenMessageStream_UnauthorizedExpiresSession(t *testing.T) {
	client, sess := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	sess.SetToken("stale")

	fired := 0
	sess.OnAuthExpired(func() { fired++ })

	_, err := client.OpenMessageStream(context.Background(), "c1", MessageCreate{Content: "hi", AgentMode: "react"})
	require.Error(t, err)
	require.True(t, IsKind(err, KindAuthExpired))
	require.Empty(t, sess.Token())
	require.Equal(t, 1, fired)
}

func TestOpenMessageStream_EmptyBody(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 200 with no body: a successful stream of zero fragments.
	}))

	s, err := client.OpenMessageStream(context.Background(), "c1", MessageCreate{Content: "hi", AgentMode: "react"})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Recv()
	require.Equal(t, io.EOF, err)
}

func TestOpenMessageStream_ContextCancellationIsTransportFailure(t *testing.T) {
	release := make(chan struct{})
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		io.WriteString(w, "partial")
		flusher.Flush()
		<-release
	}))
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	s, err := client.OpenMessageStream(ctx, "c1", MessageCreate{Content: "hi", AgentMode: "react"})
	require.NoError(t, err)
	defer s.Close()

	frag, err := s.Recv()
	require.NoError(t, err)
	require.Equal(t, "partial", frag)

	cancel()
	_, err = s.Recv()
	require.Error(t, err)
	require.True(t, IsKind(err, KindTransport))
}
