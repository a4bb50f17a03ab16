package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"autoshorts/internal/domain/model"
	"autoshorts/internal/infra/adapters/ai"
	"autoshorts/internal/infra/db/sqlite"
	"autoshorts/internal/infra/storage"
	"autoshorts/internal/infra/worker"
	"autoshorts/internal/rotation"
	"autoshorts/internal/usecase"
)

// TestEndToEnd_OfflineStudio runs the real use cases against SQLite, the
// local artifact store and the fake studio.
func TestEndToEnd_OfflineStudio(t *testing.T) {
	logger := newTestLogger()
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store, err := storage.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	studio := ai.NewFakeStudio()
	studio.QuotaKeys = map[string]bool{"spent": true}

	noWait := func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	exec := rotation.NewExecutor(rotation.NewKeyPool([]string{"spent", "fresh"}), time.Millisecond, logger, rotation.WithSleep(noWait))
	jobs := sqlite.NewJobRepo(db)
	counters := sqlite.NewCounterRepo(db)

	ledger := usecase.NewLedgerUseCase(jobs, counters, sqlite.NewTxManager(db), 3, logger)
	scheduler := usecase.NewSchedulerUseCase(sqlite.NewAutomationRepo(db), usecase.SchedulerSettings{Defaults: model.DefaultAutomationConfig()}, nil, nil, logger)
	pipeline := usecase.NewPipelineUseCase(usecase.PipelineDeps{
		ScriptExec: exec,
		Scripts:    studio,
		Voice:      studio,
		Video:      studio,
		Clips:      studio,
		Jobs:       jobs,
		Ledger:     ledger,
		Counters:   counters,
		Artifacts:  store,
		Slots:      scheduler,
		Sleep:      noWait,
	}, usecase.PipelineSettings{PollInterval: time.Millisecond, PollMaxAttempts: 5, AdFrequency: 3, RewardNormal: 50, RewardViral: 75}, logger)
	trigger := usecase.NewTriggerUseCase(usecase.TriggerDeps{
		ScriptExec: exec,
		Scripts:    studio,
		Video:      studio,
		Clips:      studio,
		Jobs:       jobs,
		Ledger:     ledger,
		Artifacts:  store,
		Locker:     sqlite.NewLocker(db),
		Sleep:      noWait,
	}, usecase.TriggerSettings{PollInterval: time.Millisecond, PollMaxAttempts: 5, LockTTL: time.Minute}, logger)

	pool := worker.NewPool(1, 4, logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		pool.Stop()
	})
	pool.Start(ctx)

	srv := NewServer(Deps{
		Ledger:    ledger,
		Scheduler: scheduler,
		Trigger:   trigger,
		Generator: worker.NewGenerationProcessor(pipeline, jobs, scheduler, pool, logger),
		Artifacts: store,
		Limiter:   sqlite.NewRateLimiter(db),
	}, Options{AdminKey: testAdminKey, CronSecret: testCronSecret}, NewAuthManager("e2e-secret", false, "", time.Minute), logger)
	f := &fixture{handler: srv.Routes()}

	// The trigger runs first so it is the call that meets the spent key.
	req := httptest.NewRequest(http.MethodPost, "/api/cron/trigger", nil)
	req.Header.Set("Authorization", "Bearer "+testCronSecret)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("trigger: %d %s", rec.Code, rec.Body.String())
	}
	res := decode[usecase.TriggerResult](t, rec)
	if !res.Success || !res.UsedRotation || !strings.HasPrefix(res.VideoURI, "fake://") {
		t.Fatalf("trigger result = %+v", res)
	}

	token := f.login(t)
	got := decode[jobView](t, f.do(t, http.MethodGet, "/api/v1/jobs/"+res.JobID, token, nil))
	if got.Origin != model.OriginTrigger || got.Stage != model.StageReady || len(got.Scenes) != 1 {
		t.Fatalf("trigger job = %+v", got)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/jobs", token, map[string]any{"category": "SHOWER_THOUGHTS", "viralMode": true})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	created := decode[struct {
		JobID string `json:"jobId"`
	}](t, rec)

	var job jobView
	deadline := time.Now().Add(5 * time.Second)
	for {
		job = decode[jobView](t, f.do(t, http.MethodGet, "/api/v1/jobs/"+created.JobID, token, nil))
		if job.Stage == model.StageReady || job.Stage == model.StageFailed || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if job.Stage != model.StageReady {
		t.Fatalf("job ended in %s: %s", job.Stage, job.FailureReason)
	}
	if len(job.Clips) != len(job.Scenes) || job.AudioArtifact == nil {
		t.Fatalf("artifacts missing: %+v", job)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/artifacts/"+job.Clips[0], token, nil)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "fake mp4 for ") {
		t.Fatalf("artifact: %d %q", rec.Code, rec.Body.String())
	}

	st := decode[usecase.LedgerStats](t, f.do(t, http.MethodGet, "/api/v1/stats", token, nil))
	if st.Videos != 1 || st.Rewards != 75 || st.NextAdIn != 2 {
		t.Fatalf("stats = %+v", st)
	}
}
