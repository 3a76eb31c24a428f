package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authHandler(t *testing.T, token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Username != "alice" || creds.Password != "password123" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid username or password", "code": "invalid_credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token":        token,
			"refreshToken": "refresh-1",
			"expiresIn":    900,
			"user":         map[string]any{"id": "u-1", "username": "alice", "role": "User", "isActive": true},
		})
	})
	mux.HandleFunc("GET /api/auth/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid token"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": "u-1", "username": "alice", "displayName": "Alice", "role": "User", "isActive": true})
	})
	return mux
}

func TestSession_Login(t *testing.T) {
	token := makeToken(t, map[string]any{"sub": "u-1", "exp": time.Now().Add(time.Hour).Unix()})
	c, _ := newTestClient(t, authHandler(t, token))
	persister := FileStatePersister{Path: filepath.Join(t.TempDir(), "session.json")}

	s := NewSession(c, nil, persister, nil)
	defer s.Close()
	assert.False(t, s.State().IsAuthenticated)

	require.NoError(t, s.Login(context.Background(), Credentials{Username: "alice", Password: "password123"}))
	st := s.State()
	assert.True(t, st.IsAuthenticated)
	assert.False(t, st.IsLoading)
	require.NotNil(t, st.User)
	assert.Equal(t, "alice", st.User.Username)
	assert.Equal(t, token, c.Tokens().Token())
	assert.Equal(t, "refresh-1", c.Tokens().RefreshToken())

	saved, err := persister.Load()
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.True(t, saved.IsAuthenticated)

	// a new session restores the persisted slice
	restored := NewSession(c, nil, persister, nil)
	defer restored.Close()
	assert.True(t, restored.State().IsAuthenticated)

	var reasons []Reason
	unsubscribe := c.Signal().Subscribe(func(r Reason) { reasons = append(reasons, r) })
	defer unsubscribe()

	s.Logout()
	assert.False(t, s.State().IsAuthenticated)
	assert.False(t, restored.State().IsAuthenticated, "other sessions on the signal hear the logout")
	assert.Equal(t, []Reason{ReasonLoggedOut}, reasons)
	assert.Empty(t, c.Tokens().Token())
	assert.Empty(t, c.Tokens().RefreshToken())
	_, err = os.Stat(persister.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestSession_LoginErrors(t *testing.T) {
	c, srv := newTestClient(t, authHandler(t, "t"))
	s := NewSession(c, nil, nil, nil)
	defer s.Close()

	err := s.Login(context.Background(), Credentials{Username: "alice", Password: "wrong"})
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Invalid username or password", authErr.Message)
	assert.Equal(t, "invalid_credentials", authErr.Code)
	assert.False(t, s.State().IsLoading)
	assert.False(t, s.State().IsAuthenticated)

	srv.Close()
	err = s.Login(context.Background(), Credentials{Username: "alice", Password: "password123"})
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Login failed", authErr.Message)
}

func TestSession_ClearedOnRefreshFailure(t *testing.T) {
	token := makeToken(t, map[string]any{"exp": time.Now().Add(time.Hour).Unix()})
	c, _ := newTestClient(t, authHandler(t, token))
	persister := FileStatePersister{Path: filepath.Join(t.TempDir(), "session.json")}
	s := NewSession(c, nil, persister, nil)

	require.NoError(t, s.Login(context.Background(), Credentials{Username: "alice", Password: "password123"}))
	require.True(t, s.State().IsAuthenticated)

	c.Signal().Publish(ReasonRefreshFailed)
	assert.False(t, s.State().IsAuthenticated)
	assert.Nil(t, s.State().User)
	saved, err := persister.Load()
	require.NoError(t, err)
	assert.Nil(t, saved)

	// closed sessions no longer react
	require.NoError(t, s.Login(context.Background(), Credentials{Username: "alice", Password: "password123"}))
	s.Close()
	c.Signal().Publish(ReasonRefreshFailed)
	assert.True(t, s.State().IsAuthenticated)
}

func TestSession_InitializeAuth(t *testing.T) {
	valid := makeToken(t, map[string]any{"exp": time.Now().Add(time.Hour).Unix()})

	t.Run("valid token", func(t *testing.T) {
		c, _ := newTestClient(t, authHandler(t, valid))
		require.NoError(t, c.Tokens().SetToken(valid))
		s := NewSession(c, nil, nil, nil)
		defer s.Close()

		s.InitializeAuth(context.Background())
		st := s.State()
		assert.True(t, st.IsAuthenticated)
		assert.False(t, st.IsLoading)
		assert.Equal(t, "Alice", st.User.DisplayName)
	})

	t.Run("expired token", func(t *testing.T) {
		expired := makeToken(t, map[string]any{"exp": time.Now().Add(-time.Minute).Unix()})
		c, _ := newTestClient(t, authHandler(t, valid))
		require.NoError(t, c.Tokens().SetToken(expired))
		s := NewSession(c, nil, nil, nil)
		defer s.Close()

		s.InitializeAuth(context.Background())
		assert.False(t, s.State().IsAuthenticated)
		assert.Empty(t, c.Tokens().Token())
	})

	t.Run("profile rejected", func(t *testing.T) {
		other := makeToken(t, map[string]any{"sub": "x", "exp": time.Now().Add(time.Hour).Unix()})
		c, _ := newTestClient(t, authHandler(t, valid))
		require.NoError(t, c.Tokens().SetToken(other))
		s := NewSession(c, nil, nil, nil)
		defer s.Close()

		s.InitializeAuth(context.Background())
		assert.False(t, s.State().IsAuthenticated)
		assert.Empty(t, c.Tokens().Token())
	})

	t.Run("no token", func(t *testing.T) {
		c, _ := newTestClient(t, authHandler(t, valid))
		s := NewSession(c, nil, nil, nil)
		defer s.Close()
		s.InitializeAuth(context.Background())
		assert.False(t, s.State().IsAuthenticated)
	})
}

func TestSession_UpdateUser(t *testing.T) {
	c, _ := newTestClient(t, http.NotFoundHandler())
	persister := FileStatePersister{Path: filepath.Join(t.TempDir(), "session.json")}
	s := NewSession(c, nil, persister, nil)
	defer s.Close()

	s.UpdateUser(&User{ID: "u-1", Username: "alice", DisplayName: "Alice L."})
	assert.Equal(t, "Alice L.", s.State().User.DisplayName)

	saved, err := persister.Load()
	require.NoError(t, err)
	assert.Equal(t, "Alice L.", saved.User.DisplayName)
}
