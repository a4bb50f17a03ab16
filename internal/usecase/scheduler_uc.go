package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"autoshorts/internal/domain"
	"autoshorts/internal/domain/model"
	"autoshorts/internal/domain/ports/repository"
)

// Compile-time check
var (
	_ SchedulerUseCase = (*schedulerUC)(nil)
	_ SlotObserver     = (*schedulerUC)(nil)
)

// AutomationPatch updates the switch and slot times. Nil fields are kept.
// Run markers are not editable.
type AutomationPatch struct {
	Active      *bool
	MorningSlot *model.TimeOfDay
	EveningSlot *model.TimeOfDay
}

type SchedulerUseCase interface {
	// Evaluate raises at most one catch-up task and returns it, or nil when
	// nothing new was raised.
	Evaluate(ctx context.Context) (*model.PendingTask, error)
	Complete(ctx context.Context, slot model.Slot) error
	Abandon(ctx context.Context, slot model.Slot, cause error) error
	Pending() *model.PendingTask
	Config(ctx context.Context) (model.AutomationConfig, error)
	UpdateConfig(ctx context.Context, patch AutomationPatch) (model.AutomationConfig, error)
}

// SchedulerObserver is told every time a slot is raised.
type SchedulerObserver interface {
	Raised(slot model.Slot)
}

type SchedulerSettings struct {
	Defaults   model.AutomationConfig
	RetryAfter time.Duration
	Location   *time.Location
}

type schedulerUC struct {
	repo     repository.AutomationRepository
	cfg      SchedulerSettings
	now      func() time.Time
	observer SchedulerObserver
	log      *zerolog.Logger

	mu       sync.Mutex
	pending  *model.PendingTask
	coolDown map[model.Slot]time.Time
	// unsaved holds run markers whose save failed; load merges them so the
	// slot is not raised again before the next successful save.
	unsaved map[model.Slot]model.DayMarker
}

func NewSchedulerUseCase(repo repository.AutomationRepository, cfg SchedulerSettings, now func() time.Time, observer SchedulerObserver, logger *zerolog.Logger) *schedulerUC {
	if now == nil {
		now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	l := logger.With().Str("component", "CatchUp").Logger()
	return &schedulerUC{
		repo:     repo,
		cfg:      cfg,
		now:      now,
		observer: observer,
		log:      &l,
		coolDown: make(map[model.Slot]time.Time),
		unsaved:  make(map[model.Slot]model.DayMarker),
	}
}

func (s *schedulerUC) clock() time.Time {
	return s.now().In(s.cfg.Location)
}

// load returns the stored config, falling back to the defaults when none was saved.
func (s *schedulerUC) load(ctx context.Context) (*model.AutomationConfig, error) {
	cfg, err := s.repo.Load(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		def := s.cfg.Defaults
		cfg, err = &def, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load automation config: %w", err)
	}
	for slot, day := range s.unsaved {
		cfg.MarkRun(slot, day)
	}
	return cfg, nil
}

// save writes cfg and forgets the markers it now carries.
func (s *schedulerUC) save(ctx context.Context, cfg *model.AutomationConfig) error {
	if err := s.repo.Save(ctx, cfg); err != nil {
		return fmt.Errorf("save automation config: %w", err)
	}
	clear(s.unsaved)
	return nil
}

func (s *schedulerUC) Evaluate(ctx context.Context) (*model.PendingTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil {
		return nil, nil
	}
	cfg, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if !cfg.Active {
		return nil, nil
	}

	now := s.clock()
	today := model.DayOf(now)
	for _, slot := range []model.Slot{model.SlotMorning, model.SlotEvening} {
		if now.Before(cfg.SlotTime(slot).On(now)) || cfg.RanOn(slot, today) {
			continue
		}
		// A due slot ends the pass even while cooling down, so morning keeps priority.
		if until, ok := s.coolDown[slot]; ok && now.Before(until) {
			s.log.Debug().Str("slot", string(slot)).Time("retry_at", until).Msg("slot cooling down after a failed run")
			return nil, nil
		}
		s.pending = &model.PendingTask{Slot: slot, RaisedAt: now}
		if s.observer != nil {
			s.observer.Raised(slot)
		}
		s.log.Info().Str("slot", string(slot)).Str("day", string(today)).Msg("catch-up task raised")
		task := *s.pending
		return &task, nil
	}
	return nil, nil
}

// Complete marks the slot as run today and clears the pending task. It is
// the only path that writes run markers. When the marker cannot be stored
// it is kept in memory, so the slot stays done for today and the next
// successful save persists it.
func (s *schedulerUC) Complete(ctx context.Context, slot model.Slot) error {
	if !slot.Valid() {
		return fmt.Errorf("%w: slot %q", domain.ErrInvalidArgument, slot)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	today := model.DayOf(s.clock())
	s.unsaved[slot] = today
	s.pending = nil
	delete(s.coolDown, slot)

	cfg, err := s.load(ctx)
	if err != nil {
		s.log.Error().Err(err).Str("slot", string(slot)).Msg("run marker kept in memory")
		return err
	}
	if err := s.save(ctx, cfg); err != nil {
		s.log.Error().Err(err).Str("slot", string(slot)).Msg("run marker kept in memory")
		return err
	}
	s.log.Info().Str("slot", string(slot)).Str("day", string(today)).Msg("catch-up slot completed")
	return nil
}

// Abandon clears the pending task after a failed run. The marker is left
// untouched; the slot is raised again once RetryAfter has passed.
func (s *schedulerUC) Abandon(ctx context.Context, slot model.Slot, cause error) error {
	if !slot.Valid() {
		return fmt.Errorf("%w: slot %q", domain.ErrInvalidArgument, slot)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = nil
	retryAt := s.clock().Add(s.cfg.RetryAfter)
	s.coolDown[slot] = retryAt
	s.log.Warn().Err(cause).Str("slot", string(slot)).Time("retry_at", retryAt).Msg("catch-up run failed")
	return nil
}

func (s *schedulerUC) Pending() *model.PendingTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil
	}
	task := *s.pending
	return &task
}

func (s *schedulerUC) Config(ctx context.Context) (model.AutomationConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := s.load(ctx)
	if err != nil {
		return model.AutomationConfig{}, err
	}
	return *cfg, nil
}

func (s *schedulerUC) UpdateConfig(ctx context.Context, patch AutomationPatch) (model.AutomationConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.load(ctx)
	if err != nil {
		return model.AutomationConfig{}, err
	}
	if patch.Active != nil {
		cfg.Active = *patch.Active
	}
	if patch.MorningSlot != nil {
		cfg.MorningSlot = *patch.MorningSlot
	}
	if patch.EveningSlot != nil {
		cfg.EveningSlot = *patch.EveningSlot
	}
	if err := s.save(ctx, cfg); err != nil {
		return model.AutomationConfig{}, err
	}
	s.log.Info().Bool("active", cfg.Active).Str("morning", cfg.MorningSlot.String()).Str("evening", cfg.EveningSlot.String()).Msg("automation config updated")
	return *cfg, nil
}

// AutomationDefaults builds the config used until an operator saves one.
// Empty slot strings keep the built-in times.
func AutomationDefaults(active bool, morning, evening string) (model.AutomationConfig, error) {
	cfg := model.DefaultAutomationConfig()
	cfg.Active = active
	if morning != "" {
		t, err := model.ParseTimeOfDay(morning)
		if err != nil {
			return cfg, fmt.Errorf("morning slot: %w", err)
		}
		cfg.MorningSlot = t
	}
	if evening != "" {
		t, err := model.ParseTimeOfDay(evening)
		if err != nil {
			return cfg, fmt.Errorf("evening slot: %w", err)
		}
		cfg.EveningSlot = t
	}
	return cfg, nil
}
