package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Func is one periodic run. Its error is logged, never fatal.
type Func func(ctx context.Context) error

// Recurring calls fn once at Start and then every interval.
type Recurring struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	fn       Func
	log      *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRecurring defaults interval to 1 minute. Each run gets at most timeout
// (no bound when timeout <= 0).
func NewRecurring(name string, interval, timeout time.Duration, fn Func, logger *zerolog.Logger) *Recurring {
	if interval <= 0 {
		interval = time.Minute
	}
	l := logger.With().Str("component", "Recurring").Str("task", name).Logger()
	return &Recurring{
		name:     name,
		interval: interval,
		timeout:  timeout,
		fn:       fn,
		log:      &l,
		done:     make(chan struct{}),
	}
}

// Start begins the loop in a background goroutine; a second Start is a no-op.
func (s *Recurring) Start(parentCtx context.Context) {
	if s.ctx != nil {
		return
	}
	ctx, cancel := context.WithCancel(parentCtx)
	s.ctx = ctx
	s.cancel = cancel

	go s.loop()
}

func (s *Recurring) loop() {
	ticker := time.NewTicker(s.interval)
	defer func() {
		ticker.Stop()
		close(s.done)
	}()

	s.log.Info().Dur("interval", s.interval).Msg("started")
	s.runOnce()
	for {
		select {
		case <-s.ctx.Done():
			s.log.Info().Msg("context cancelled; stopping")
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

func (s *Recurring) runOnce() {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, s.timeout)
		defer cancel()
	}
	if err := s.fn(ctx); err != nil {
		s.log.Error().Err(err).Msg("run failed")
	}
}

// Stop cancels the loop and waits for it. It is idempotent.
func (s *Recurring) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.ctx = nil
	s.cancel = nil
	s.done = make(chan struct{})
	s.log.Info().Msg("stopped")
}
