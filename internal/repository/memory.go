package repository

import (
	"context"
	"sync"
	"time"

	"arenda/internal/models"
)

// MemorySessionRepository используется как резерв при недоступном Redis
// и в тестах. Семантика повторяет Redis-реализацию, включая фиксированное
// окно счетчика неудачных входов.
type MemorySessionRepository struct {
	sessions sync.Map
	failures sync.Map
	ttl      time.Duration
}

func NewMemorySessionRepository(ttl time.Duration) *MemorySessionRepository {
	return &MemorySessionRepository{
		ttl: ttl,
	}
}

type sessionEntry struct {
	session   *models.Session
	expiresAt time.Time
}

func (r *MemorySessionRepository) GetSession(ctx context.Context, token string) (*models.Session, error) {
	val, ok := r.sessions.Load(token)
	if !ok {
		return nil, nil
	}
	entry := val.(*sessionEntry)
	if time.Now().After(entry.expiresAt) {
		r.sessions.Delete(token)
		return nil, nil
	}
	return entry.session, nil
}

func (r *MemorySessionRepository) SetSession(ctx context.Context, session *models.Session) error {
	r.sessions.Store(session.Token, &sessionEntry{
		session:   session,
		expiresAt: time.Now().Add(r.ttl),
	})
	return nil
}

func (r *MemorySessionRepository) ClearSession(ctx context.Context, token string) error {
	r.sessions.Delete(token)
	return nil
}

type failureEntry struct {
	mu        sync.Mutex
	count     int
	expiresAt time.Time
}

func (r *MemorySessionRepository) RecordFailure(ctx context.Context, identity string, window time.Duration) error {
	now := time.Now()
	val, _ := r.failures.LoadOrStore(identity, &failureEntry{})
	entry := val.(*failureEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.count == 0 || now.After(entry.expiresAt) {
		entry.count = 1
		entry.expiresAt = now.Add(window)
	} else {
		entry.count++
	}
	return nil
}

func (r *MemorySessionRepository) IsLocked(ctx context.Context, identity string, maxFailures int) (bool, error) {
	val, ok := r.failures.Load(identity)
	if !ok {
		return false, nil
	}
	entry := val.(*failureEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if time.Now().After(entry.expiresAt) {
		entry.count = 0
		return false, nil
	}
	return entry.count >= maxFailures, nil
}

func (r *MemorySessionRepository) ResetFailures(ctx context.Context, identity string) error {
	r.failures.Delete(identity)
	return nil
}
