package sched

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"

	"autoshorts/internal/domain/model"
	"autoshorts/internal/usecase"
)

// Enqueuer starts a generation and reports its end through done.
type Enqueuer interface {
	Enqueue(ctx context.Context, req usecase.GenerateRequest, done func(*model.GenerationJob, error)) (*model.GenerationJob, error)
}

// CatchUpWorker turns a raised catch-up task into exactly one generation.
// While that generation runs every tick is a no-op.
type CatchUpWorker struct {
	scheduler usecase.SchedulerUseCase
	jobs      Enqueuer
	running   atomic.Bool
	log       *zerolog.Logger
}

func NewCatchUpWorker(scheduler usecase.SchedulerUseCase, jobs Enqueuer, logger *zerolog.Logger) *CatchUpWorker {
	compLog := logger.With().Str("component", "CatchUpWorker").Logger()
	return &CatchUpWorker{scheduler: scheduler, jobs: jobs, log: &compLog}
}

// Running reports whether a catch-up generation is in flight.
func (w *CatchUpWorker) Running() bool { return w.running.Load() }

// Tick evaluates the slots once. It is the Recurring callback.
func (w *CatchUpWorker) Tick(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return nil
	}
	task, err := w.scheduler.Evaluate(ctx)
	if err == nil && task == nil {
		// Raised outside this worker (operator evaluate) and not run yet.
		task = w.scheduler.Pending()
	}
	if err != nil || task == nil {
		w.running.Store(false)
		return err
	}

	req := usecase.GenerateRequest{
		Category:  task.Slot.Category(),
		ViralMode: true,
		Platforms: []model.Platform{model.PlatformFallback},
		AutoSlot:  task.Slot,
	}
	job, err := w.jobs.Enqueue(ctx, req, func(job *model.GenerationJob, runErr error) {
		w.running.Store(false)
		w.log.Info().Str("job_id", job.ID).Str("slot", string(task.Slot)).Str("stage", string(job.Stage)).Msg("catch-up run ended")
	})
	if err != nil {
		// The pipeline never ran, so nobody else will release the slot.
		w.running.Store(false)
		if abandonErr := w.scheduler.Abandon(ctx, task.Slot, err); abandonErr != nil {
			w.log.Error().Err(abandonErr).Msg("abandon failed")
		}
		return err
	}
	w.log.Info().Str("job_id", job.ID).Str("slot", string(task.Slot)).Str("category", string(req.Category)).Msg("catch-up generation queued")
	return nil
}
