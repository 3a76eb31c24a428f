package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"

	"github.com/amoylab/wshub/internal/common/dto"
)

// User is the signed-in account
type User = dto.UserInfo

// Credentials are the login form
type Credentials = dto.LoginRequest

// SessionState is a snapshot of the session
type SessionState struct {
	User            *User
	IsAuthenticated bool
	IsLoading       bool
}

// PersistedState is the part of the session kept across restarts
type PersistedState struct {
	User            *User `json:"user"`
	IsAuthenticated bool  `json:"isAuthenticated"`
}

// StatePersister stores the persisted slice of the session
type StatePersister interface {
	Load() (*PersistedState, error)
	Save(PersistedState) error
	Clear() error
}

// NopPersister keeps nothing
type NopPersister struct{}

func (NopPersister) Load() (*PersistedState, error) { return nil, nil }
func (NopPersister) Save(PersistedState) error      { return nil }
func (NopPersister) Clear() error                   { return nil }

// FileStatePersister stores the session as JSON in Path
type FileStatePersister struct {
	Path string
}

func (p FileStatePersister) Load() (*PersistedState, error) {
	data, err := os.ReadFile(p.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var st PersistedState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (p FileStatePersister) Save(st PersistedState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(p.Path, data, 0o600)
}

func (p FileStatePersister) Clear() error {
	if err := os.Remove(p.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Session tracks the signed-in user on top of a Client. It resets itself
// when the client reports that the session could not be refreshed.
type Session struct {
	client    *Client
	tokens    TokenStore
	persister StatePersister
	signal    *SessionSignal

	mu    sync.RWMutex
	state SessionState

	unsubscribe func()
}

// NewSession restores the persisted state and subscribes to signal. A nil
// persister keeps nothing; a nil signal uses the client's.
func NewSession(client *Client, tokens TokenStore, persister StatePersister, signal *SessionSignal) *Session {
	if tokens == nil {
		tokens = client.Tokens()
	}
	if persister == nil {
		persister = NopPersister{}
	}
	if signal == nil {
		signal = client.Signal()
	}

	s := &Session{client: client, tokens: tokens, persister: persister, signal: signal}
	if st, err := persister.Load(); err == nil && st != nil {
		s.state.User = st.User
		s.state.IsAuthenticated = st.IsAuthenticated && st.User != nil
	}
	s.unsubscribe = signal.Subscribe(func(Reason) { s.reset() })
	return s
}

// State returns a snapshot
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Login exchanges credentials for a token pair and stores both tokens
func (s *Session) Login(ctx context.Context, creds Credentials) error {
	s.setLoading(true)

	var out dto.LoginResponse
	_, err := s.client.Post(ctx, "/auth/login", creds, &out, SkipAuth())
	if err == nil && out.Token == "" {
		err = errors.New("login response carries no token")
	}
	if err != nil {
		s.setLoading(false)
		return loginError(err)
	}

	if err := s.tokens.SetToken(out.Token); err != nil {
		s.setLoading(false)
		return err
	}
	if err := s.tokens.SetRefreshToken(out.RefreshToken); err != nil {
		s.setLoading(false)
		return err
	}

	s.mu.Lock()
	s.state = SessionState{User: out.User, IsAuthenticated: true}
	s.mu.Unlock()
	s.persist()
	return nil
}

func loginError(err error) error {
	authErr := &AuthError{Message: "Login failed", Cause: err}
	var (
		ae  *AuthError
		ve  *ValidationError
		api *APIError
	)
	switch {
	case errors.As(err, &ae):
		authErr.Code = ae.Code
		if ae.Message != "" {
			authErr.Message = ae.Message
		}
	case errors.As(err, &ve):
		authErr.Code = ve.Code
		if ve.Message != "" {
			authErr.Message = ve.Message
		}
	case errors.As(err, &api):
		authErr.Code = api.Code
		if api.Message != "" {
			authErr.Message = api.Message
		}
	}
	return authErr
}

// Logout drops the tokens and the state without calling the server, then
// publishes ReasonLoggedOut on the session signal
func (s *Session) Logout() {
	_ = s.tokens.RemoveToken()
	_ = s.tokens.RemoveRefreshToken()
	s.reset()
	s.signal.Publish(ReasonLoggedOut)
}

// InitializeAuth validates a stored token by fetching the profile. Any
// failure leaves the session logged out; it never returns an error.
func (s *Session) InitializeAuth(ctx context.Context) {
	token := s.tokens.Token()
	if token == "" {
		s.reset()
		return
	}
	if IsTokenExpired(token) {
		_ = s.tokens.RemoveToken()
		s.reset()
		return
	}

	s.setLoading(true)
	var user User
	if _, err := s.client.Get(ctx, "/auth/profile", &user); err != nil {
		_ = s.tokens.RemoveToken()
		s.reset()
		return
	}
	s.mu.Lock()
	s.state = SessionState{User: &user, IsAuthenticated: true}
	s.mu.Unlock()
	s.persist()
}

// UpdateUser replaces the cached user, for example after a profile edit
func (s *Session) UpdateUser(u *User) {
	s.mu.Lock()
	s.state.User = u
	s.mu.Unlock()
	s.persist()
}

// Close stops listening for session invalidation
func (s *Session) Close() {
	s.unsubscribe()
}

func (s *Session) setLoading(v bool) {
	s.mu.Lock()
	s.state.IsLoading = v
	s.mu.Unlock()
}

func (s *Session) reset() {
	s.mu.Lock()
	s.state = SessionState{}
	s.mu.Unlock()
	_ = s.persister.Clear()
}

func (s *Session) persist() {
	s.mu.RLock()
	st := PersistedState{User: s.state.User, IsAuthenticated: s.state.IsAuthenticated}
	s.mu.RUnlock()
	_ = s.persister.Save(st)
}
