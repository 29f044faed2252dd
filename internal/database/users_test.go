package database

import (
	"context"
	"testing"

	"arenda/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser_DuplicateMobile(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	user := &models.User{Name: "13912345678", Mobile: "13912345678", PasswordHash: "hash"}
	require.NoError(t, db.CreateUser(ctx, user))
	assert.NotZero(t, user.ID)

	dup := &models.User{Name: "other", Mobile: "13912345678", PasswordHash: "hash2"}
	assert.ErrorIs(t, db.CreateUser(ctx, dup), ErrMobileExists)
}

func TestGetUserByMobile(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	user := &models.User{Name: "Alice", Mobile: "13900000001", PasswordHash: "hash"}
	require.NoError(t, db.CreateUser(ctx, user))

	got, err := db.GetUserByMobile(ctx, "13900000001")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, "hash", got.PasswordHash)

	_, err = db.GetUserByMobile(ctx, "13999999999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateUserName(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	user := &models.User{Name: "13900000002", Mobile: "13900000002", PasswordHash: "hash"}
	require.NoError(t, db.CreateUser(ctx, user))

	require.NoError(t, db.UpdateUserName(ctx, user.ID, "Bob"))

	got, err := db.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bob", got.Name)
}

func TestUpdateUserAvatar(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	user := &models.User{Name: "13900000003", Mobile: "13900000003", PasswordHash: "hash"}
	require.NoError(t, db.CreateUser(ctx, user))

	require.NoError(t, db.UpdateUserAvatar(ctx, user.ID, "http://img/avatar.jpg"))

	got, err := db.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "http://img/avatar.jpg", got.AvatarURL)
}
