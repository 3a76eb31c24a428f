package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage implements Store using Redis. Each token is a key with a TTL;
// a per-user set indexes the tokens for bulk revocation.
type RedisStorage struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStorage creates a new Redis storage instance
func NewRedisStorage(addr, username, password string, db int, prefix string) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStorage{
		client: client,
		prefix: prefix,
	}, nil
}

func (s *RedisStorage) tokenKey(token string) string {
	return s.prefix + "token:" + token
}

func (s *RedisStorage) userKey(userID string) string {
	return s.prefix + "user:" + userID
}

// SaveRefreshToken stores a refresh token until it expires
func (s *RedisStorage) SaveRefreshToken(ctx context.Context, session *RefreshSession) error {
	session.CreatedAt = time.Now().Unix()
	ttl := time.Duration(session.ExpiresAt-session.CreatedAt) * time.Second
	if ttl <= 0 {
		return ErrRefreshTokenExpired
	}

	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.tokenKey(session.Token), data, ttl)
	pipe.SAdd(ctx, s.userKey(session.UserID), session.Token)
	pipe.Expire(ctx, s.userKey(session.UserID), ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// GetRefreshToken looks up a refresh token
func (s *RedisStorage) GetRefreshToken(ctx context.Context, token string) (*RefreshSession, error) {
	data, err := s.client.Get(ctx, s.tokenKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	var session RefreshSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	if time.Now().Unix() >= session.ExpiresAt {
		_ = s.DeleteRefreshToken(ctx, token)
		return nil, ErrRefreshTokenExpired
	}
	return &session, nil
}

// ConsumeRefreshToken removes and returns a refresh token with GETDEL
func (s *RedisStorage) ConsumeRefreshToken(ctx context.Context, token string) (*RefreshSession, error) {
	data, err := s.client.GetDel(ctx, s.tokenKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	var session RefreshSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	if err := s.client.SRem(ctx, s.userKey(session.UserID), token).Err(); err != nil {
		return nil, err
	}
	if time.Now().Unix() >= session.ExpiresAt {
		return nil, ErrRefreshTokenExpired
	}
	return &session, nil
}

// DeleteRefreshToken revokes a single refresh token
func (s *RedisStorage) DeleteRefreshToken(ctx context.Context, token string) error {
	session, err := s.peek(ctx, token)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.tokenKey(token))
	if session != nil {
		pipe.SRem(ctx, s.userKey(session.UserID), token)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// DeleteUserRefreshTokens revokes every refresh token of a user
func (s *RedisStorage) DeleteUserRefreshTokens(ctx context.Context, userID string) error {
	tokens, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	keys := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		keys = append(keys, s.tokenKey(token))
	}
	keys = append(keys, s.userKey(userID))
	return s.client.Del(ctx, keys...).Err()
}

// peek reads a session without expiry checks; nil when absent
func (s *RedisStorage) peek(ctx context.Context, token string) (*RefreshSession, error) {
	data, err := s.client.Get(ctx, s.tokenKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var session RefreshSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Close releases the Redis connection
func (s *RedisStorage) Close() error {
	return s.client.Close()
}
