package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	s := Open(path)
	require.Empty(t, s.Token())
	s.SetToken("tok-123")
	require.NoError(t, s.Close())

	s2 := Open(path)
	defer s2.Close()
	require.Equal(t, "tok-123", s2.Token())
}

func TestClearRemovesPersistedToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	s := Open(path)
	s.SetToken("tok-123")
	s.Clear()
	require.Empty(t, s.Token())
	require.NoError(t, s.Close())

	s2 := Open(path)
	defer s2.Close()
	require.Empty(t, s2.Token())
}

func TestExpireClearsTokenAndFiresHookOnce(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "session.db"))
	defer s.Close()

	fired := 0
	s.OnAuthExpired(func() { fired++ })
	s.SetToken("tok-123")

	s.Expire()
	require.Empty(t, s.Token())
	require.Equal(t, 1, fired)
}

func TestOpenBadPathFallsBackToMemory(t *testing.T) {
	// A directory is not a valid database file; the store still works,
	// just without persistence.
	s := Open(t.TempDir())
	defer s.Close()

	s.SetToken("tok-123")
	require.Equal(t, "tok-123", s.Token())
}
