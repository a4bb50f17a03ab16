package web

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"autoshorts/internal/domain"
	"autoshorts/internal/domain/model"
	"autoshorts/internal/domain/ports/repository"
	"autoshorts/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

type mockLedger struct {
	mu         sync.Mutex
	jobs       map[string]*model.GenerationJob
	lastFilter repository.JobFilter
	stats      *usecase.LedgerStats
}

func newMockLedger(jobs ...*model.GenerationJob) *mockLedger {
	m := &mockLedger{jobs: make(map[string]*model.GenerationJob)}
	for _, j := range jobs {
		m.jobs[j.ID] = j
	}
	return m
}

func (m *mockLedger) Append(ctx context.Context, job *model.GenerationJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

func (m *mockLedger) Get(ctx context.Context, id string) (*model.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		return j, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockLedger) List(ctx context.Context, filter repository.JobFilter) ([]*model.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = filter
	var out []*model.GenerationJob
	for _, j := range m.jobs {
		if filter.Stage == "" || j.Stage == filter.Stage {
			out = append(out, j)
		}
	}
	return out, nil
}

func (m *mockLedger) MarkPublished(ctx context.Context, id string, platforms []model.Platform) (*model.GenerationJob, error) {
	j, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := j.Advance(model.StagePublished, time.Now()); err != nil {
		return nil, err
	}
	if len(platforms) > 0 {
		j.Platforms = platforms
	}
	return j, nil
}

func (m *mockLedger) Stats(ctx context.Context) (*usecase.LedgerStats, error) {
	if m.stats != nil {
		return m.stats, nil
	}
	return &usecase.LedgerStats{ByStage: map[model.Stage]int{}}, nil
}

type mockScheduler struct {
	cfg     model.AutomationConfig
	pending *model.PendingTask
	patches []usecase.AutomationPatch
}

func (m *mockScheduler) Evaluate(ctx context.Context) (*model.PendingTask, error) {
	if m.pending != nil {
		return nil, nil
	}
	m.pending = &model.PendingTask{Slot: model.SlotMorning, RaisedAt: time.Now()}
	return m.pending, nil
}

func (m *mockScheduler) Complete(ctx context.Context, slot model.Slot) error { return nil }

func (m *mockScheduler) Abandon(ctx context.Context, slot model.Slot, cause error) error { return nil }

func (m *mockScheduler) Pending() *model.PendingTask { return m.pending }

func (m *mockScheduler) Config(ctx context.Context) (model.AutomationConfig, error) {
	return m.cfg, nil
}

func (m *mockScheduler) UpdateConfig(ctx context.Context, patch usecase.AutomationPatch) (model.AutomationConfig, error) {
	m.patches = append(m.patches, patch)
	if patch.Active != nil {
		m.cfg.Active = *patch.Active
	}
	if patch.MorningSlot != nil {
		m.cfg.MorningSlot = *patch.MorningSlot
	}
	if patch.EveningSlot != nil {
		m.cfg.EveningSlot = *patch.EveningSlot
	}
	return m.cfg, nil
}

type mockTrigger struct {
	res   *usecase.TriggerResult
	err   error
	calls int
}

func (m *mockTrigger) Run(ctx context.Context) (*usecase.TriggerResult, error) {
	m.calls++
	return m.res, m.err
}

type mockGenerator struct {
	err  error
	reqs []usecase.GenerateRequest
}

func (m *mockGenerator) Enqueue(ctx context.Context, req usecase.GenerateRequest, done func(*model.GenerationJob, error)) (*model.GenerationJob, error) {
	m.reqs = append(m.reqs, req)
	if m.err != nil {
		return nil, m.err
	}
	return model.NewGenerationJob("job-new", req.Category, req.ViralMode, false, req.Platforms, time.Now())
}

type mockArtifacts struct {
	files map[string]string
}

func (m *mockArtifacts) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	m.files[name] = string(data)
	return name, nil
}

func (m *mockArtifacts) Open(ctx context.Context, ref string) (io.ReadCloser, string, error) {
	body, ok := m.files[ref]
	if !ok {
		return nil, "", domain.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(body)), "video/mp4", nil
}

// mockLimiter allows the first `limit` calls per key.
type mockLimiter struct {
	hits map[string]int
	err  error
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.hits == nil {
		m.hits = make(map[string]int)
	}
	m.hits[key]++
	return m.hits[key] <= limit, nil
}
