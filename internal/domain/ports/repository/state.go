package repository

import (
	"context"
	"time"

	"autoshorts/internal/domain/model"
)

// AutomationRepository stores the automation config and its run markers.
// Load returns domain.ErrNotFound when nothing was saved yet.
type AutomationRepository interface {
	Load(ctx context.Context) (*model.AutomationConfig, error)
	Save(ctx context.Context, cfg *model.AutomationConfig) error
}

// Totals is the running tally of finished videos and rewards.
type Totals struct {
	Videos  int
	Rewards int
}

// CounterRepository keeps the completed-video counter and reward tally.
type CounterRepository interface {
	Totals(ctx context.Context) (Totals, error)
	RecordCompletion(ctx context.Context, reward int) (Totals, error)
}

// Locker is a best-effort mutual exclusion lock with a lease.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// RateLimiter is a fixed-window request counter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
