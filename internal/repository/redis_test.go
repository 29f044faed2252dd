package repository

import (
	"context"
	"testing"
	"time"

	"arenda/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return s, client
}

func TestRedisSessionRepository_Sessions(t *testing.T) {
	s, client := setupMiniredis(t)
	repo := NewRedisSessionRepository(client, time.Hour)
	ctx := context.Background()

	t.Run("SetAndGetSession", func(t *testing.T) {
		session := &models.Session{
			Token:  "tok-1",
			UserID: 42,
			Name:   "Alice",
			Mobile: "13900000001",
		}
		require.NoError(t, repo.SetSession(ctx, session))

		got, err := repo.GetSession(ctx, "tok-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, int64(42), got.UserID)
		assert.Equal(t, "Alice", got.Name)
	})

	t.Run("GetNonExistentSession", func(t *testing.T) {
		got, err := repo.GetSession(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ClearSession", func(t *testing.T) {
		session := &models.Session{Token: "tok-2", UserID: 7}
		require.NoError(t, repo.SetSession(ctx, session))
		require.NoError(t, repo.ClearSession(ctx, "tok-2"))

		got, err := repo.GetSession(ctx, "tok-2")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("SessionExpires", func(t *testing.T) {
		session := &models.Session{Token: "tok-3", UserID: 8}
		require.NoError(t, repo.SetSession(ctx, session))

		s.FastForward(2 * time.Hour)

		got, err := repo.GetSession(ctx, "tok-3")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestRedisSessionRepository_LoginThrottle(t *testing.T) {
	s, client := setupMiniredis(t)
	repo := NewRedisSessionRepository(client, time.Hour)
	ctx := context.Background()

	const identity = "203.0.113.7"
	window := 10 * time.Minute

	t.Run("BelowThreshold", func(t *testing.T) {
		for i := 0; i < 4; i++ {
			require.NoError(t, repo.RecordFailure(ctx, identity, window))
		}
		locked, err := repo.IsLocked(ctx, identity, 5)
		require.NoError(t, err)
		assert.False(t, locked)
	})

	t.Run("LockedAtThreshold", func(t *testing.T) {
		require.NoError(t, repo.RecordFailure(ctx, identity, window))
		locked, err := repo.IsLocked(ctx, identity, 5)
		require.NoError(t, err)
		assert.True(t, locked)
	})

	t.Run("WindowIsFixed", func(t *testing.T) {
		// Попытки внутри окна не продлевают его: TTL выставляется
		// только первой неудачей.
		s.FastForward(9 * time.Minute)
		require.NoError(t, repo.RecordFailure(ctx, identity, window))

		s.FastForward(2 * time.Minute)
		locked, err := repo.IsLocked(ctx, identity, 5)
		require.NoError(t, err)
		assert.False(t, locked, "window must expire relative to the first failure")
	})

	t.Run("ResetFailures", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			require.NoError(t, repo.RecordFailure(ctx, identity, window))
		}
		locked, err := repo.IsLocked(ctx, identity, 5)
		require.NoError(t, err)
		require.True(t, locked)

		require.NoError(t, repo.ResetFailures(ctx, identity))
		locked, err = repo.IsLocked(ctx, identity, 5)
		require.NoError(t, err)
		assert.False(t, locked)
	})
}

func TestRedisSessionRepository_NilClient(t *testing.T) {
	repo := NewRedisSessionRepository(nil, time.Hour)
	ctx := context.Background()

	_, err := repo.GetSession(ctx, "tok")
	assert.Error(t, err)
	assert.Error(t, repo.SetSession(ctx, &models.Session{Token: "tok"}))
	assert.Error(t, repo.RecordFailure(ctx, "id", time.Minute))
}
