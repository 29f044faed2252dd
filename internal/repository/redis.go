package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"arenda/internal/config"
	"arenda/internal/models"

	"github.com/redis/go-redis/v9"
)

type RedisSessionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisSessionRepository(client *redis.Client, ttl time.Duration) *RedisSessionRepository {
	return &RedisSessionRepository{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisSessionRepository) GetSession(ctx context.Context, token string) (*models.Session, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	key := "session:" + token
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session from redis: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

func (r *RedisSessionRepository) SetSession(ctx context.Context, session *models.Session) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	key := "session:" + session.Token
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session in redis: %w", err)
	}

	return nil
}

func (r *RedisSessionRepository) ClearSession(ctx context.Context, token string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, "session:"+token).Err(); err != nil {
		return fmt.Errorf("failed to delete session from redis: %w", err)
	}
	return nil
}

// RecordFailure увеличивает счетчик неудачных входов. Окно фиксированное:
// срок жизни ключа выставляется только на первом инкременте, всплеск на
// границе двух окон может превысить номинальный лимит — поведение принятое.
func (r *RedisSessionRepository) RecordFailure(ctx context.Context, identity string, window time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	key := accessKey(identity)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to increment failure counter: %w", err)
	}

	if count == 1 {
		r.client.Expire(ctx, key, window)
	}

	return nil
}

func (r *RedisSessionRepository) IsLocked(ctx context.Context, identity string, maxFailures int) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	count, err := r.client.Get(ctx, accessKey(identity)).Int64()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read failure counter: %w", err)
	}
	return count >= int64(maxFailures), nil
}

func (r *RedisSessionRepository) ResetFailures(ctx context.Context, identity string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, accessKey(identity)).Err(); err != nil {
		return fmt.Errorf("failed to reset failure counter: %w", err)
	}
	return nil
}

func accessKey(identity string) string {
	return "access:" + identity
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
