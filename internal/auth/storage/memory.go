package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage implements Store in process memory
type MemoryStorage struct {
	mu       sync.RWMutex
	sessions map[string]*RefreshSession
}

// NewMemoryStorage creates a new memory storage instance
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		sessions: make(map[string]*RefreshSession),
	}
}

// SaveRefreshToken stores a refresh token
func (s *MemoryStorage) SaveRefreshToken(ctx context.Context, session *RefreshSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session.CreatedAt = time.Now().Unix()
	cp := *session
	s.sessions[session.Token] = &cp
	return nil
}

// GetRefreshToken looks up a refresh token, evicting it when expired
func (s *MemoryStorage) GetRefreshToken(ctx context.Context, token string) (*RefreshSession, error) {
	s.mu.RLock()
	session, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidRefreshToken
	}

	if time.Now().Unix() >= session.ExpiresAt {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return nil, ErrRefreshTokenExpired
	}
	cp := *session
	return &cp, nil
}

// ConsumeRefreshToken removes and returns a refresh token
func (s *MemoryStorage) ConsumeRefreshToken(ctx context.Context, token string) (*RefreshSession, error) {
	s.mu.Lock()
	session, ok := s.sessions[token]
	delete(s.sessions, token)
	s.mu.Unlock()

	if !ok {
		return nil, ErrInvalidRefreshToken
	}
	if time.Now().Unix() >= session.ExpiresAt {
		return nil, ErrRefreshTokenExpired
	}
	cp := *session
	return &cp, nil
}

// DeleteRefreshToken revokes a single refresh token
func (s *MemoryStorage) DeleteRefreshToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
	return nil
}

// DeleteUserRefreshTokens revokes every refresh token of a user
func (s *MemoryStorage) DeleteUserRefreshTokens(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, session := range s.sessions {
		if session.UserID == userID {
			delete(s.sessions, token)
		}
	}
	return nil
}
