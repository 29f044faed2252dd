package repository

import (
	"context"
	"sync/atomic"
	"time"

	"arenda/internal/domain"
	"arenda/internal/models"

	"github.com/rs/zerolog"
)

// FailoverSessionRepository переключается на резервное хранилище при
// отказе основного и пробует вернуться к нему раз в минуту.
type FailoverSessionRepository struct {
	primary   domain.SessionRepository
	fallback  domain.SessionRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverSessionRepository(primary, fallback domain.SessionRepository, logger *zerolog.Logger) *FailoverSessionRepository {
	return &FailoverSessionRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverSessionRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("primary session repository failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverSessionRepository) shouldRetryPrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	last := time.Unix(0, r.lastCheck.Load())
	if time.Since(last) > time.Minute {
		r.lastCheck.Store(time.Now().UnixNano())
		return true
	}
	return false
}

func (r *FailoverSessionRepository) recovered() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("primary session repository recovered")
	}
}

func (r *FailoverSessionRepository) GetSession(ctx context.Context, token string) (*models.Session, error) {
	if r.shouldRetryPrimary() {
		session, err := r.primary.GetSession(ctx, token)
		if err == nil {
			r.recovered()
			return session, nil
		}
		r.markDown(err)
	}
	return r.fallback.GetSession(ctx, token)
}

func (r *FailoverSessionRepository) SetSession(ctx context.Context, session *models.Session) error {
	if r.shouldRetryPrimary() {
		err := r.primary.SetSession(ctx, session)
		if err == nil {
			r.recovered()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SetSession(ctx, session)
}

func (r *FailoverSessionRepository) ClearSession(ctx context.Context, token string) error {
	if r.shouldRetryPrimary() {
		err := r.primary.ClearSession(ctx, token)
		if err == nil {
			r.recovered()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.ClearSession(ctx, token)
}

func (r *FailoverSessionRepository) RecordFailure(ctx context.Context, identity string, window time.Duration) error {
	if r.shouldRetryPrimary() {
		err := r.primary.RecordFailure(ctx, identity, window)
		if err == nil {
			r.recovered()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.RecordFailure(ctx, identity, window)
}

func (r *FailoverSessionRepository) IsLocked(ctx context.Context, identity string, maxFailures int) (bool, error) {
	if r.shouldRetryPrimary() {
		locked, err := r.primary.IsLocked(ctx, identity, maxFailures)
		if err == nil {
			r.recovered()
			return locked, nil
		}
		r.markDown(err)
	}
	return r.fallback.IsLocked(ctx, identity, maxFailures)
}

func (r *FailoverSessionRepository) ResetFailures(ctx context.Context, identity string) error {
	if r.shouldRetryPrimary() {
		err := r.primary.ResetFailures(ctx, identity)
		if err == nil {
			r.recovered()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.ResetFailures(ctx, identity)
}
