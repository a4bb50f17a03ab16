package rotation

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	derror "autoshorts/internal/error"
	"autoshorts/internal/infra/logging"
)

// Observer is told about every attempt. err is nil on success.
type Observer interface {
	Attempt(op string, keyIndex int, err error)
	Rotated(op string, fromIndex int)
}

type Executor struct {
	pool     *KeyPool
	backoff  time.Duration
	logger   *zerolog.Logger
	observer Observer
	sleep    func(ctx context.Context, d time.Duration) error
}

type Option func(*Executor)

func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observer = o }
}

// WithSleep replaces the backoff wait (tests).
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) { e.sleep = fn }
}

func NewExecutor(pool *KeyPool, backoff time.Duration, logger *zerolog.Logger, opts ...Option) *Executor {
	l := logger.With().Str("component", "KeyRotation").Logger()
	e := &Executor{
		pool:    pool,
		backoff: backoff,
		logger:  &l,
		sleep:   sleepCtx,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Executor) Pool() *KeyPool { return e.pool }

// Execute runs fn with the current credential. A QuotaExceeded failure moves
// to the next credential after the fixed backoff, up to two passes over the
// pool; any other failure is returned as is. When the budget is spent the
// result is AllKeysExhausted wrapping the last failure.
func Execute[T any](ctx context.Context, e *Executor, op string, fn func(ctx context.Context, key string) (T, error)) (T, error) {
	var zero T
	if e.pool.Empty() {
		return zero, derror.Configuration(op, "no API credentials configured (set API_KEYS or API_KEY)")
	}

	maxAttempts := 2 * e.pool.Size()
	tally := tallyFrom(ctx)
	var last error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		key, idx := e.pool.Current()
		out, err := fn(ctx, key)
		if e.observer != nil {
			e.observer.Attempt(op, idx, err)
		}
		if err == nil {
			return out, nil
		}
		if derror.KindOf(err) != derror.KindQuotaExceeded {
			return zero, err
		}

		last = err
		e.logger.Warn().
			Str("op", op).
			Int("key_index", idx).
			Str("key", logging.Redact(key, false)).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Msg("quota hit, switching key")
		if e.pool.advanceFrom(idx) && e.observer != nil {
			e.observer.Rotated(op, idx)
		}
		if tally != nil {
			tally.rotations.Add(1)
		}
		if attempt < maxAttempts {
			if err := e.sleep(ctx, e.backoff); err != nil {
				return zero, err
			}
		}
	}

	e.logger.Error().Str("op", op).Int("keys", e.pool.Size()).Err(last).Msg("all keys exhausted")
	return zero, derror.Exhausted(op, e.pool.Size(), last)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Tally counts key switches made by every Execute call sharing a context.
type Tally struct {
	rotations atomic.Int64
}

func (t *Tally) Rotations() int64 { return t.rotations.Load() }

type tallyKey struct{}

func WithTally(ctx context.Context) (context.Context, *Tally) {
	t := &Tally{}
	return context.WithValue(ctx, tallyKey{}, t), t
}

func tallyFrom(ctx context.Context) *Tally {
	t, _ := ctx.Value(tallyKey{}).(*Tally)
	return t
}
