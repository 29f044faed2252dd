package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"arenda/internal/models"
)

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (name, mobile, password_hash, avatar_url, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		user.Name,
		user.Mobile,
		user.PasswordHash,
		user.AvatarURL,
		now,
		now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrMobileExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (db *DB) GetUserByMobile(ctx context.Context, mobile string) (*models.User, error) {
	query := `SELECT id, name, mobile, password_hash, avatar_url, created_at, updated_at
              FROM users WHERE mobile = ?`
	return db.scanUserRow(db.QueryRowContext(ctx, query, mobile))
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT id, name, mobile, password_hash, avatar_url, created_at, updated_at
              FROM users WHERE id = ?`
	return db.scanUserRow(db.QueryRowContext(ctx, query, id))
}

func (db *DB) scanUserRow(row *sql.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.Name, &user.Mobile, &user.PasswordHash,
		&user.AvatarURL, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (db *DB) UpdateUserName(ctx context.Context, id int64, name string) error {
	query := `UPDATE users SET name = ?, updated_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, name, time.Now(), id)
	return err
}

func (db *DB) UpdateUserAvatar(ctx context.Context, id int64, avatarURL string) error {
	query := `UPDATE users SET avatar_url = ?, updated_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, avatarURL, time.Now(), id)
	return err
}
