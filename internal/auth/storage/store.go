package storage

import (
	"context"
	"errors"
)

var (
	// ErrInvalidRefreshToken is returned for unknown or revoked refresh tokens
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrRefreshTokenExpired is returned when a refresh token outlived its TTL
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)

// Store keeps track of issued refresh tokens so they can be rotated and revoked
type Store interface {
	SaveRefreshToken(ctx context.Context, session *RefreshSession) error
	GetRefreshToken(ctx context.Context, token string) (*RefreshSession, error)
	// ConsumeRefreshToken looks up and revokes token in one step. Of several
	// concurrent calls with the same token at most one succeeds.
	ConsumeRefreshToken(ctx context.Context, token string) (*RefreshSession, error)
	DeleteRefreshToken(ctx context.Context, token string) error
	DeleteUserRefreshTokens(ctx context.Context, userID string) error
}

// RefreshSession is a refresh token bound to a user
type RefreshSession struct {
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	ExpiresAt int64  `json:"expires_at"`
	CreatedAt int64  `json:"created_at"`
}
