package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"autoshorts/internal/domain/model"
	"autoshorts/internal/domain/ports/repository"
	"autoshorts/internal/usecase"
)

// GenerationProcessor records a job right away and runs the pipeline for
// it on the pool, so HTTP callers and the catch-up worker get the id back
// without waiting for the render.
type GenerationProcessor struct {
	pipeline usecase.PipelineUseCase
	jobs     repository.JobRepository
	slots    usecase.SlotObserver
	pool     *Pool
	log      *zerolog.Logger
}

// NewGenerationProcessor wires the processor. slots may be nil when no
// catch-up scheduler runs; it is only used to release a slot whose run
// panicked.
func NewGenerationProcessor(pipeline usecase.PipelineUseCase, jobs repository.JobRepository, slots usecase.SlotObserver, pool *Pool, logger *zerolog.Logger) *GenerationProcessor {
	l := logger.With().Str("component", "GenerationProcessor").Logger()
	return &GenerationProcessor{pipeline: pipeline, jobs: jobs, slots: slots, pool: pool, log: &l}
}

// Enqueue starts a job and queues its run. done, when non-nil, is called
// once the run ends, whatever the outcome. It is not called when Enqueue
// returns an error.
func (g *GenerationProcessor) Enqueue(ctx context.Context, req usecase.GenerateRequest, done func(*model.GenerationJob, error)) (*model.GenerationJob, error) {
	job, err := g.pipeline.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	err = g.pool.Submit("generate:"+job.ID, func(ctx context.Context) (runErr error) {
		defer func() {
			if r := recover(); r != nil {
				runErr = fmt.Errorf("generation panicked: %v", r)
				g.log.Error().Str("job_id", job.ID).Interface("panic", r).Msg("generation panicked")
				if g.closeJob(ctx, job, runErr) && job.AutoSlot != "" && g.slots != nil {
					if err := g.slots.Abandon(context.WithoutCancel(ctx), job.AutoSlot, runErr); err != nil {
						g.log.Error().Err(err).Str("slot", string(job.AutoSlot)).Msg("failed to release catch-up slot")
					}
				}
			}
			if done != nil {
				done(job, runErr)
			}
		}()
		return g.pipeline.Run(ctx, job)
	})
	if err != nil {
		// The job row exists; close it so the ledger does not show it in
		// SCRIPT forever.
		cause := fmt.Errorf("queue generation: %w", err)
		g.closeJob(ctx, job, cause)
		g.log.Warn().Err(err).Str("job_id", job.ID).Msg("job dropped before running")
		return job, cause
	}
	g.log.Info().Str("job_id", job.ID).Int("queued", g.pool.Queued()).Msg("generation queued")
	return job, nil
}

// closeJob fails and saves a job the pipeline did not finish. It reports
// whether the job was moved to FAILED here; a job already terminal is left
// alone.
func (g *GenerationProcessor) closeJob(ctx context.Context, job *model.GenerationJob, cause error) bool {
	if err := job.Fail(cause.Error(), "unknown", time.Now()); err != nil {
		return false
	}
	if err := g.jobs.Save(context.WithoutCancel(ctx), repository.NoTX, job); err != nil {
		g.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to close job")
	}
	return true
}
