package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises behavior shared by every Store implementation
func runStoreContract(t *testing.T, s Store) {
	ctx := context.Background()
	future := time.Now().Add(time.Hour).Unix()

	t.Run("save and get", func(t *testing.T) {
		require.NoError(t, s.SaveRefreshToken(ctx, &RefreshSession{Token: "t1", UserID: "u1", ExpiresAt: future}))
		got, err := s.GetRefreshToken(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, "u1", got.UserID)
		assert.NotZero(t, got.CreatedAt)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := s.GetRefreshToken(ctx, "missing")
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	})

	t.Run("delete single token", func(t *testing.T) {
		require.NoError(t, s.SaveRefreshToken(ctx, &RefreshSession{Token: "t2", UserID: "u1", ExpiresAt: future}))
		require.NoError(t, s.DeleteRefreshToken(ctx, "t2"))
		_, err := s.GetRefreshToken(ctx, "t2")
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
		// deleting twice is fine
		assert.NoError(t, s.DeleteRefreshToken(ctx, "t2"))
	})

	t.Run("consume", func(t *testing.T) {
		require.NoError(t, s.SaveRefreshToken(ctx, &RefreshSession{Token: "c1", UserID: "u1", ExpiresAt: future}))
		got, err := s.ConsumeRefreshToken(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, "u1", got.UserID)

		_, err = s.ConsumeRefreshToken(ctx, "c1")
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
		_, err = s.GetRefreshToken(ctx, "c1")
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	})

	t.Run("concurrent consume succeeds once", func(t *testing.T) {
		require.NoError(t, s.SaveRefreshToken(ctx, &RefreshSession{Token: "c2", UserID: "u1", ExpiresAt: future}))

		const n = 16
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.ConsumeRefreshToken(ctx, "c2"); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})

	t.Run("delete all tokens of a user", func(t *testing.T) {
		require.NoError(t, s.SaveRefreshToken(ctx, &RefreshSession{Token: "a1", UserID: "alice", ExpiresAt: future}))
		require.NoError(t, s.SaveRefreshToken(ctx, &RefreshSession{Token: "a2", UserID: "alice", ExpiresAt: future}))
		require.NoError(t, s.SaveRefreshToken(ctx, &RefreshSession{Token: "b1", UserID: "bob", ExpiresAt: future}))

		require.NoError(t, s.DeleteUserRefreshTokens(ctx, "alice"))

		_, err := s.GetRefreshToken(ctx, "a1")
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
		_, err = s.GetRefreshToken(ctx, "a2")
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
		got, err := s.GetRefreshToken(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, "bob", got.UserID)
	})
}

func TestMemoryStorage(t *testing.T) {
	runStoreContract(t, NewMemoryStorage())
}

func TestMemoryStorage_ConsumeExpired(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	require.NoError(t, s.SaveRefreshToken(ctx, &RefreshSession{Token: "old", UserID: "u", ExpiresAt: time.Now().Add(-time.Second).Unix()}))

	_, err := s.ConsumeRefreshToken(ctx, "old")
	assert.ErrorIs(t, err, ErrRefreshTokenExpired)
	_, err = s.ConsumeRefreshToken(ctx, "old")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken, "an expired token is dropped on first use")
}

func TestMemoryStorage_Expired(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, s.SaveRefreshToken(ctx, &RefreshSession{Token: "old", UserID: "u", ExpiresAt: time.Now().Add(-time.Minute).Unix()}))
	_, err := s.GetRefreshToken(ctx, "old")
	assert.ErrorIs(t, err, ErrRefreshTokenExpired)

	// evicted after the first lookup
	_, err = s.GetRefreshToken(ctx, "old")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestMemoryStorage_Concurrent(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	future := time.Now().Add(time.Hour).Unix()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token := string(rune('a'+i%26)) + time.Now().String()
			_ = s.SaveRefreshToken(ctx, &RefreshSession{Token: token, UserID: "u", ExpiresAt: future})
			_, _ = s.GetRefreshToken(ctx, token)
		}(i)
	}
	wg.Wait()

	assert.NoError(t, s.DeleteUserRefreshTokens(ctx, "u"))
	s.mu.RLock()
	defer s.mu.RUnlock()
	assert.Empty(t, s.sessions)
}
