package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"autoshorts/internal/domain"
	"autoshorts/internal/domain/model"
	"autoshorts/internal/domain/ports/repository"
)

// Compile-time check
var _ LedgerUseCase = (*ledgerUC)(nil)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type LedgerStats struct {
	ByStage  map[model.Stage]int `json:"byStage"`
	Videos   int                 `json:"videos"`
	Rewards  int                 `json:"rewards"`
	NextAdIn int                 `json:"nextAdIn"`
}

// JobAppender records a new job; it refuses an id already in the ledger.
type JobAppender interface {
	Append(ctx context.Context, job *model.GenerationJob) error
}

// LedgerUseCase is the append-and-update history of generation jobs. Jobs
// are never deleted.
type LedgerUseCase interface {
	JobAppender
	Get(ctx context.Context, id string) (*model.GenerationJob, error)
	List(ctx context.Context, filter repository.JobFilter) ([]*model.GenerationJob, error)
	MarkPublished(ctx context.Context, id string, platforms []model.Platform) (*model.GenerationJob, error)
	Stats(ctx context.Context) (*LedgerStats, error)
}

type ledgerUC struct {
	jobs        repository.JobRepository
	counters    repository.CounterRepository
	tm          repository.TransactionManager
	adFrequency int
	now         func() time.Time
	log         *zerolog.Logger
}

func NewLedgerUseCase(jobs repository.JobRepository, counters repository.CounterRepository, tm repository.TransactionManager, adFrequency int, logger *zerolog.Logger) *ledgerUC {
	return &ledgerUC{jobs: jobs, counters: counters, tm: tm, adFrequency: adFrequency, now: time.Now, log: logger}
}

func (l *ledgerUC) Append(ctx context.Context, job *model.GenerationJob) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("%w: job without id", domain.ErrInvalidArgument)
	}
	return l.tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		_, err := l.jobs.FindByID(ctx, tx, job.ID)
		switch {
		case err == nil:
			return fmt.Errorf("%w: job %s", domain.ErrAlreadyExists, job.ID)
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}
		return l.jobs.Save(ctx, tx, job)
	})
}

func (l *ledgerUC) Get(ctx context.Context, id string) (*model.GenerationJob, error) {
	return l.jobs.FindByID(ctx, repository.NoTX, id)
}

func (l *ledgerUC) List(ctx context.Context, filter repository.JobFilter) ([]*model.GenerationJob, error) {
	if filter.Stage != "" && !filter.Stage.Valid() {
		return nil, fmt.Errorf("%w: stage %q", domain.ErrInvalidArgument, filter.Stage)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return l.jobs.List(ctx, filter)
}

// MarkPublished moves a READY job to PUBLISHED and records where it went.
func (l *ledgerUC) MarkPublished(ctx context.Context, id string, platforms []model.Platform) (*model.GenerationJob, error) {
	var out *model.GenerationJob
	err := l.tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		job, err := l.jobs.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := job.Advance(model.StagePublished, l.now()); err != nil {
			return err
		}
		if len(platforms) > 0 {
			job.Platforms = append([]model.Platform(nil), platforms...)
		}
		if err := l.jobs.Save(ctx, tx, job); err != nil {
			return err
		}
		out = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.log.Info().Str("job_id", id).Interface("platforms", out.Platforms).Msg("job published")
	return out, nil
}

func (l *ledgerUC) Stats(ctx context.Context) (*LedgerStats, error) {
	byStage, err := l.jobs.CountByStage(ctx)
	if err != nil {
		return nil, err
	}
	totals, err := l.counters.Totals(ctx)
	if err != nil {
		return nil, err
	}
	stats := &LedgerStats{ByStage: byStage, Videos: totals.Videos, Rewards: totals.Rewards}
	if l.adFrequency > 0 {
		stats.NextAdIn = l.adFrequency - totals.Videos%l.adFrequency
	}
	return stats, nil
}
