//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"autoshorts/internal/domain"
	"autoshorts/internal/domain/model"
	"autoshorts/internal/domain/ports/repository"
)

func TestJobRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewJobRepo(testPool)
	tm := NewTxManager(testPool)
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	newJob := func(t *testing.T, at time.Time) *model.GenerationJob {
		t.Helper()
		job, err := model.NewGenerationJob("", model.CategorySchoolTips, false, true, nil, at)
		if err != nil {
			t.Fatal(err)
		}
		return job
	}

	t.Run("should save and update a job", func(t *testing.T) {
		cleanup(t)
		job := newJob(t, base)
		if err := repo.Save(ctx, nil, job); err != nil {
			t.Fatalf("failed to save new job: %v", err)
		}
		_ = job.Fail("quota", "all_keys_exhausted", base.Add(time.Minute))
		if err := repo.Save(ctx, nil, job); err != nil {
			t.Fatalf("failed to update job: %v", err)
		}

		got, err := repo.FindByID(ctx, nil, job.ID)
		if err != nil {
			t.Fatalf("failed to find job: %v", err)
		}
		if got.Stage != model.StageFailed || got.FailureKind != "all_keys_exhausted" || !got.AdInjected {
			t.Errorf("unexpected job: %+v", got)
		}
		if len(got.Platforms) != 1 || got.Platforms[0] != model.PlatformTikTok {
			t.Errorf("platforms = %v", got.Platforms)
		}
		if got.AudioArtifact != nil || got.PublishedAt != nil {
			t.Error("nullable columns should stay nil")
		}
	})

	t.Run("should return ErrNotFound for a missing job", func(t *testing.T) {
		cleanup(t)
		if _, err := repo.FindByID(ctx, nil, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("should list newest first and count by stage", func(t *testing.T) {
		cleanup(t)
		var ids []string
		for i := 0; i < 3; i++ {
			job := newJob(t, base.Add(time.Duration(i)*time.Hour))
			if err := repo.Save(ctx, nil, job); err != nil {
				t.Fatal(err)
			}
			ids = append(ids, job.ID)
		}
		jobs, err := repo.List(ctx, repository.JobFilter{Limit: 2})
		if err != nil {
			t.Fatal(err)
		}
		if len(jobs) != 2 || jobs[0].ID != ids[2] || jobs[1].ID != ids[1] {
			t.Errorf("unexpected order")
		}
		counts, err := repo.CountByStage(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if counts[model.StageScript] != 3 {
			t.Errorf("counts = %v", counts)
		}
	})

	t.Run("should roll back on callback error", func(t *testing.T) {
		cleanup(t)
		job := newJob(t, base)
		boom := errors.New("boom")
		err := tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			if err := repo.Save(ctx, tx, job); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		if _, err := repo.FindByID(ctx, nil, job.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("row survived rollback: %v", err)
		}
	})
}
