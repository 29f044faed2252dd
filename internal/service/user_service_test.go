package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"arenda/internal/config"
	"arenda/internal/database"
	"arenda/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupUserService(t *testing.T) (*UserService, *database.DB) {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "users.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sessions := repository.NewMemorySessionRepository(time.Hour)
	throttle := config.ThrottleConfig{MaxFailures: 3, WindowSecs: 600}
	return NewUserService(db, sessions, throttle, time.Hour, &logger), db
}

func TestUserService_RegisterAndLogin(t *testing.T) {
	svc, _ := setupUserService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "13912345678", "secret")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "13912345678", user.Name)
	// Пароль хранится только как хэш
	assert.NotEqual(t, "secret", user.PasswordHash)
	assert.NotEmpty(t, user.PasswordHash)

	session, err := svc.Login(ctx, "13912345678", "secret", "10.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, user.ID, session.UserID)

	// Токен возвращает сессию
	got, err := svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.UserID)
}

func TestUserService_RegisterDuplicate(t *testing.T) {
	svc, _ := setupUserService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "13912345678", "secret")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "13912345678", "other")
	assert.ErrorIs(t, err, ErrMobileTaken)
}

func TestUserService_LoginWrongPassword(t *testing.T) {
	svc, _ := setupUserService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "13912345678", "secret")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "13912345678", "wrong", "10.0.0.1")
	assert.ErrorIs(t, err, ErrBadCredentials)

	// Неизвестный номер неотличим от неверного пароля
	_, err = svc.Login(ctx, "13900000000", "secret", "10.0.0.1")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestUserService_LockoutAfterFailures(t *testing.T) {
	svc, _ := setupUserService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "13912345678", "secret")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = svc.Login(ctx, "13912345678", "wrong", "10.0.0.2")
		assert.ErrorIs(t, err, ErrBadCredentials)
	}

	// Порог достигнут: отказ даже с верным паролем
	_, err = svc.Login(ctx, "13912345678", "secret", "10.0.0.2")
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	// Другая идентичность не затронута
	session, err := svc.Login(ctx, "13912345678", "secret", "10.0.0.3")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
}

func TestUserService_SuccessResetsCounter(t *testing.T) {
	svc, _ := setupUserService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "13912345678", "secret")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = svc.Login(ctx, "13912345678", "wrong", "10.0.0.4")
		assert.ErrorIs(t, err, ErrBadCredentials)
	}

	_, err = svc.Login(ctx, "13912345678", "secret", "10.0.0.4")
	require.NoError(t, err)

	// Счетчик сброшен: две новые неудачи не блокируют
	for i := 0; i < 2; i++ {
		_, err = svc.Login(ctx, "13912345678", "wrong", "10.0.0.4")
		assert.ErrorIs(t, err, ErrBadCredentials)
	}
	_, err = svc.Login(ctx, "13912345678", "secret", "10.0.0.4")
	assert.NoError(t, err)
}

func TestUserService_Logout(t *testing.T) {
	svc, _ := setupUserService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "13912345678", "secret")
	require.NoError(t, err)
	session, err := svc.Login(ctx, "13912345678", "secret", "10.0.0.5")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, session.Token))

	_, err = svc.Authenticate(ctx, session.Token)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestUserService_AuthenticateEmptyToken(t *testing.T) {
	svc, _ := setupUserService(t)
	_, err := svc.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoSession)
}
