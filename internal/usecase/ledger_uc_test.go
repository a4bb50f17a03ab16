//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"autoshorts/internal/domain"
	"autoshorts/internal/domain/model"
	"autoshorts/internal/domain/ports/repository"
	"autoshorts/internal/usecase"
)

func readyJob(t *testing.T, id string) *model.GenerationJob {
	t.Helper()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	job, err := model.NewGenerationJob(id, model.CategorySchoolTips, false, false, nil, now)
	if err != nil {
		t.Fatalf("NewGenerationJob: %v", err)
	}
	scenes := make([]model.Scene, model.ScenesDefault)
	for i := range scenes {
		scenes[i] = model.Scene{Narration: "n", VisualPrompt: "v"}
	}
	must := func(err error) {
		if err != nil {
			t.Fatalf("building ready job: %v", err)
		}
	}
	must(job.SetScript("topic", "char", "full", scenes, now))
	must(job.Advance(model.StageAudio, now))
	must(job.Advance(model.StageVideo, now))
	for range scenes {
		must(job.AppendClip("clip", now))
	}
	must(job.Advance(model.StageReady, now))
	return job
}

func TestLedgerUseCase(t *testing.T) {
	ctx := context.Background()

	t.Run("Append should reject a duplicate id", func(t *testing.T) {
		jobs := NewMockJobRepo()
		uc := usecase.NewLedgerUseCase(jobs, &MockCounterRepo{}, &MockTxManager{}, 3, newTestLogger())
		job := readyJob(t, "01J0000000000000000000000A")
		if err := uc.Append(ctx, job); err != nil {
			t.Fatalf("Append: %v", err)
		}
		if err := uc.Append(ctx, job); !errors.Is(err, domain.ErrAlreadyExists) {
			t.Errorf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("MarkPublished should only move READY jobs", func(t *testing.T) {
		jobs := NewMockJobRepo()
		tm := &MockTxManager{}
		uc := usecase.NewLedgerUseCase(jobs, &MockCounterRepo{}, tm, 3, newTestLogger())

		ready := readyJob(t, "01J0000000000000000000000B")
		_ = jobs.Save(ctx, repository.NoTX, ready)
		got, err := uc.MarkPublished(ctx, ready.ID, []model.Platform{model.PlatformYouTube})
		if err != nil {
			t.Fatalf("MarkPublished: %v", err)
		}
		if got.Stage != model.StagePublished || got.PublishedAt == nil || got.Platforms[0] != model.PlatformYouTube {
			t.Errorf("unexpected published job %+v", got)
		}
		if tm.Calls != 1 {
			t.Errorf("expected a transaction, got %d", tm.Calls)
		}

		if _, err := uc.MarkPublished(ctx, ready.ID, nil); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Errorf("publishing twice should be an invalid transition, got %v", err)
		}

		fresh, _ := model.NewGenerationJob("01J0000000000000000000000C", model.CategoryMotivation, false, false, nil, time.Now())
		_ = jobs.Save(ctx, repository.NoTX, fresh)
		if _, err := uc.MarkPublished(ctx, fresh.ID, nil); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Errorf("publishing a SCRIPT job should fail, got %v", err)
		}
		if _, err := uc.MarkPublished(ctx, "missing", nil); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})

	t.Run("List should clamp the page size and validate the stage", func(t *testing.T) {
		jobs := NewMockJobRepo()
		uc := usecase.NewLedgerUseCase(jobs, &MockCounterRepo{}, &MockTxManager{}, 3, newTestLogger())
		for _, id := range []string{"01J0000000000000000000000D", "01J0000000000000000000000E"} {
			_ = jobs.Save(ctx, repository.NoTX, readyJob(t, id))
		}
		list, err := uc.List(ctx, repository.JobFilter{Limit: 10000})
		if err != nil || len(list) != 2 {
			t.Fatalf("List = %d, %v", len(list), err)
		}
		if list[0].ID != "01J0000000000000000000000E" {
			t.Errorf("expected newest first, got %s", list[0].ID)
		}
		if _, err := uc.List(ctx, repository.JobFilter{Stage: "DONE"}); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected invalid argument, got %v", err)
		}
	})

	t.Run("Stats should combine stage counts and counters", func(t *testing.T) {
		jobs := NewMockJobRepo()
		_ = jobs.Save(ctx, repository.NoTX, readyJob(t, "01J0000000000000000000000F"))
		counters := &MockCounterRepo{Current: repository.Totals{Videos: 7, Rewards: 400}}
		uc := usecase.NewLedgerUseCase(jobs, counters, &MockTxManager{}, 3, newTestLogger())

		stats, err := uc.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		if stats.ByStage[model.StageReady] != 1 || stats.Videos != 7 || stats.Rewards != 400 {
			t.Errorf("unexpected stats %+v", stats)
		}
		// 7 done: the 8th is plain, the 9th carries the ad.
		if stats.NextAdIn != 2 {
			t.Errorf("NextAdIn = %d, want 2", stats.NextAdIn)
		}
	})
}
