package worker

import (
	"time"

	"arenda/internal/config"
)

// RetryPolicy экспоненциальная выдержка между повторами коммита.
// Нулевые поля означают значения по умолчанию.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// PolicyFromConfig переносит секцию worker конфигурации в политику повторов.
func PolicyFromConfig(cfg config.WorkerConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries:    cfg.MaxRetries,
		InitialDelay:  time.Duration(cfg.InitialDelaySecs) * time.Second,
		MaxDelay:      time.Duration(cfg.MaxDelaySecs) * time.Second,
		BackoffFactor: cfg.BackoffFactor,
	}
}

func (r RetryPolicy) normalized() RetryPolicy {
	if r.MaxRetries <= 0 {
		r.MaxRetries = 5
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = time.Second
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = 2
	}
	return r
}

// Exhausted сообщает, что следующая попытка выходит за бюджет повторов.
func (r RetryPolicy) Exhausted(retryCount int) bool {
	return retryCount+1 >= r.normalized().MaxRetries
}

// NextDelay выдержка перед попыткой attempt (счет с единицы). Каждая
// попытка увеличивает выдержку в BackoffFactor раз, MaxDelay ограничивает
// рост сверху.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	p := r.normalized()
	delay := p.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * p.BackoffFactor)
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return delay
}
