package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"arenda/internal/domain"
	"arenda/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenSessionRepository всегда возвращает ошибку.
type brokenSessionRepository struct{}

var errBroken = errors.New("connection refused")

func (brokenSessionRepository) GetSession(context.Context, string) (*models.Session, error) {
	return nil, errBroken
}
func (brokenSessionRepository) SetSession(context.Context, *models.Session) error { return errBroken }
func (brokenSessionRepository) ClearSession(context.Context, string) error        { return errBroken }
func (brokenSessionRepository) RecordFailure(context.Context, string, time.Duration) error {
	return errBroken
}
func (brokenSessionRepository) IsLocked(context.Context, string, int) (bool, error) {
	return false, errBroken
}
func (brokenSessionRepository) ResetFailures(context.Context, string) error { return errBroken }

var _ domain.SessionRepository = brokenSessionRepository{}

func newFailoverForTest(primary domain.SessionRepository) *FailoverSessionRepository {
	logger := zerolog.Nop()
	return NewFailoverSessionRepository(primary, NewMemorySessionRepository(time.Hour), &logger)
}

func TestFailover_UsesPrimaryWhenHealthy(t *testing.T) {
	primary := NewMemorySessionRepository(time.Hour)
	repo := newFailoverForTest(primary)
	ctx := context.Background()

	require.NoError(t, repo.SetSession(ctx, &models.Session{Token: "tok", UserID: 1}))

	// Сессия легла в основное хранилище
	got, err := primary.GetSession(ctx, "tok")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.UserID)
}

func TestFailover_FallsBackOnPrimaryError(t *testing.T) {
	repo := newFailoverForTest(brokenSessionRepository{})
	ctx := context.Background()

	// Запись уходит в резерв, ошибки наружу нет
	require.NoError(t, repo.SetSession(ctx, &models.Session{Token: "tok", UserID: 2}))

	got, err := repo.GetSession(ctx, "tok")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.UserID)
}

func TestFailover_ThrottleSurvivesPrimaryOutage(t *testing.T) {
	repo := newFailoverForTest(brokenSessionRepository{})
	ctx := context.Background()
	const identity = "198.51.100.3"

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.RecordFailure(ctx, identity, time.Minute))
	}

	locked, err := repo.IsLocked(ctx, identity, 5)
	require.NoError(t, err)
	assert.True(t, locked)

	require.NoError(t, repo.ResetFailures(ctx, identity))
	locked, err = repo.IsLocked(ctx, identity, 5)
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestFailover_DoesNotHammerDownPrimary(t *testing.T) {
	repo := newFailoverForTest(brokenSessionRepository{})
	ctx := context.Background()

	// Первый вызов помечает основное хранилище как упавшее
	_, err := repo.GetSession(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, repo.isDown.Load())

	// Повторные вызовы внутри минуты идут сразу в резерв
	_, err = repo.GetSession(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, repo.isDown.Load())
}
