package repository

import (
	"context"
	"testing"
	"time"

	"arenda/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionRepository_Sessions(t *testing.T) {
	repo := NewMemorySessionRepository(time.Hour)
	ctx := context.Background()

	session := &models.Session{Token: "tok-1", UserID: 42, Name: "Alice"}
	require.NoError(t, repo.SetSession(ctx, session))

	got, err := repo.GetSession(ctx, "tok-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(42), got.UserID)

	require.NoError(t, repo.ClearSession(ctx, "tok-1"))
	got, err = repo.GetSession(ctx, "tok-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemorySessionRepository_SessionExpiry(t *testing.T) {
	repo := NewMemorySessionRepository(10 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, repo.SetSession(ctx, &models.Session{Token: "tok", UserID: 1}))
	time.Sleep(20 * time.Millisecond)

	got, err := repo.GetSession(ctx, "tok")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemorySessionRepository_LoginThrottle(t *testing.T) {
	repo := NewMemorySessionRepository(time.Hour)
	ctx := context.Background()
	const identity = "192.0.2.1"

	for i := 0; i < 4; i++ {
		require.NoError(t, repo.RecordFailure(ctx, identity, time.Minute))
	}
	locked, err := repo.IsLocked(ctx, identity, 5)
	require.NoError(t, err)
	assert.False(t, locked)

	require.NoError(t, repo.RecordFailure(ctx, identity, time.Minute))
	locked, err = repo.IsLocked(ctx, identity, 5)
	require.NoError(t, err)
	assert.True(t, locked)

	require.NoError(t, repo.ResetFailures(ctx, identity))
	locked, err = repo.IsLocked(ctx, identity, 5)
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestMemorySessionRepository_ThrottleWindowExpiry(t *testing.T) {
	repo := NewMemorySessionRepository(time.Hour)
	ctx := context.Background()
	const identity = "192.0.2.2"

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.RecordFailure(ctx, identity, 10*time.Millisecond))
	}
	locked, err := repo.IsLocked(ctx, identity, 5)
	require.NoError(t, err)
	require.True(t, locked)

	time.Sleep(20 * time.Millisecond)

	// Окно истекло: блокировка снята, следующая неудача начинает новое окно
	locked, err = repo.IsLocked(ctx, identity, 5)
	require.NoError(t, err)
	assert.False(t, locked)

	require.NoError(t, repo.RecordFailure(ctx, identity, time.Minute))
	locked, err = repo.IsLocked(ctx, identity, 5)
	require.NoError(t, err)
	assert.False(t, locked)
}
