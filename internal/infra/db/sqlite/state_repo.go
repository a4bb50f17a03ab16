package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"autoshorts/internal/domain"
	"autoshorts/internal/domain/model"
	"autoshorts/internal/domain/ports/repository"
)

var (
	_ repository.AutomationRepository = (*automationRepo)(nil)
	_ repository.CounterRepository    = (*counterRepo)(nil)
	_ repository.Locker               = (*Locker)(nil)
	_ repository.RateLimiter          = (*RateLimiter)(nil)
)

type automationRepo struct {
	db *sql.DB
}

func NewAutomationRepo(s *DB) *automationRepo {
	return &automationRepo{db: s.db}
}

func (r *automationRepo) Load(ctx context.Context) (*model.AutomationConfig, error) {
	var body string
	err := r.db.QueryRowContext(ctx, `SELECT body FROM automation_config WHERE id = 1`).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cfg model.AutomationConfig
	if err := json.Unmarshal([]byte(body), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *automationRepo) Save(ctx context.Context, cfg *model.AutomationConfig) error {
	body, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO automation_config (id, body, updated_at) VALUES (1, ?, ?)
ON CONFLICT (id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		string(body), time.Now().UTC().Format(timeLayout))
	return err
}

type counterRepo struct {
	db *sql.DB
}

func NewCounterRepo(s *DB) *counterRepo {
	return &counterRepo{db: s.db}
}

func (r *counterRepo) Totals(ctx context.Context) (repository.Totals, error) {
	var t repository.Totals
	err := r.db.QueryRowContext(ctx, `SELECT videos, rewards FROM video_counter WHERE id = 1`).Scan(&t.Videos, &t.Rewards)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.Totals{}, nil
	}
	return t, err
}

func (r *counterRepo) RecordCompletion(ctx context.Context, reward int) (repository.Totals, error) {
	var t repository.Totals
	err := r.db.QueryRowContext(ctx, `
INSERT INTO video_counter (id, videos, rewards) VALUES (1, 1, ?)
ON CONFLICT (id) DO UPDATE SET videos = videos + 1, rewards = rewards + excluded.rewards
RETURNING videos, rewards`, reward).Scan(&t.Videos, &t.Rewards)
	return t, err
}

// Locker is a lease table. It only excludes callers sharing the database
// file, which is all a single-process deployment has.
type Locker struct {
	db  *sql.DB
	now func() time.Time
}

func NewLocker(s *DB) *Locker {
	return &Locker{db: s.db, now: time.Now}
}

func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	now := l.now()
	res, err := l.db.ExecContext(ctx, `
INSERT INTO leases (key, token, expires_at) VALUES (?, ?, ?)
ON CONFLICT (key) DO UPDATE SET token = excluded.token, expires_at = excluded.expires_at
WHERE leases.expires_at <= ?`, key, token, now.Add(ttl).UnixMilli(), now.UnixMilli())
	if err != nil {
		return "", err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", domain.ErrLockNotAcquired
	}
	return token, nil
}

func (l *Locker) Unlock(ctx context.Context, key, token string) error {
	_, err := l.db.ExecContext(ctx, `DELETE FROM leases WHERE key = ? AND token = ?`, key, token)
	return err
}

// RateLimiter is a fixed-window counter; a new window resets the hits.
type RateLimiter struct {
	db  *sql.DB
	now func() time.Time
}

func NewRateLimiter(s *DB) *RateLimiter {
	return &RateLimiter{db: s.db, now: time.Now}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	w := window.Milliseconds()
	if w <= 0 {
		w = 1
	}
	now := r.now().UnixMilli()
	start := now - now%w
	var hits int
	err := r.db.QueryRowContext(ctx, `
INSERT INTO rate_windows (key, window_start, hits) VALUES (?, ?, 1)
ON CONFLICT (key) DO UPDATE SET
  hits = CASE WHEN rate_windows.window_start = excluded.window_start THEN rate_windows.hits + 1 ELSE 1 END,
  window_start = excluded.window_start
RETURNING hits`, key, start).Scan(&hits)
	if err != nil {
		return false, err
	}
	return hits <= limit, nil
}
