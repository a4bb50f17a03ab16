package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"autoshorts/internal/domain"
	"autoshorts/internal/domain/model"
	"autoshorts/internal/domain/ports/repository"
	"autoshorts/internal/usecase"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

type fakePipeline struct {
	startErr error
	runErr   error
	panicVal any
	block    chan struct{}

	mu   sync.Mutex
	runs int
}

func (f *fakePipeline) Start(ctx context.Context, req usecase.GenerateRequest) (*model.GenerationJob, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	job, err := model.NewGenerationJob("job-1", req.Category, req.ViralMode, false, req.Platforms, time.Now())
	if err == nil && req.AutoSlot != "" {
		job.AutoSlot = req.AutoSlot
		job.Origin = model.OriginCatchUp
	}
	return job, err
}

func (f *fakePipeline) Run(ctx context.Context, job *model.GenerationJob) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.runs++
	f.mu.Unlock()
	if f.panicVal != nil {
		panic(f.panicVal)
	}
	return f.runErr
}

func (f *fakePipeline) Generate(ctx context.Context, req usecase.GenerateRequest) (*model.GenerationJob, error) {
	job, err := f.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	return job, f.Run(ctx, job)
}

type memJobs struct {
	mu    sync.Mutex
	saved map[string]*model.GenerationJob
}

func (m *memJobs) Save(ctx context.Context, tx repository.Tx, job *model.GenerationJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = make(map[string]*model.GenerationJob)
	}
	cp := *job
	m.saved[job.ID] = &cp
	return nil
}

func (m *memJobs) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.saved[id]; ok {
		return j, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memJobs) List(ctx context.Context, filter repository.JobFilter) ([]*model.GenerationJob, error) {
	return nil, nil
}

func (m *memJobs) CountByStage(ctx context.Context) (map[model.Stage]int, error) {
	return nil, nil
}

type fakeSlots struct {
	mu        sync.Mutex
	abandoned []model.Slot
}

var _ usecase.SlotObserver = (*fakeSlots)(nil)

func (f *fakeSlots) Complete(ctx context.Context, slot model.Slot) error { return nil }

func (f *fakeSlots) Abandon(ctx context.Context, slot model.Slot, cause error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abandoned = append(f.abandoned, slot)
	return nil
}

func TestPool_RunsAndRecovers(t *testing.T) {
	p := NewPool(2, 4, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	var wg sync.WaitGroup
	wg.Add(2)
	if err := p.Submit("panics", func(ctx context.Context) error {
		defer wg.Done()
		panic("boom")
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := p.Submit("errors", func(ctx context.Context) error {
		defer wg.Done()
		return errors.New("nope")
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	wg.Wait()

	ran := make(chan struct{})
	if err := p.Submit("after-panic", func(ctx context.Context) error {
		close(ran)
		return nil
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("pool stopped working after a panic")
	}

	p.Stop()
	p.Stop()
	if err := p.Submit("late", func(ctx context.Context) error { return nil }); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

func TestPool_QueueFull(t *testing.T) {
	p := NewPool(1, 1, testLogger())
	noop := func(ctx context.Context) error { return nil }
	if err := p.Submit("a", noop); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if err := p.Submit("b", noop); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if p.Queued() != 1 {
		t.Fatalf("queued = %d", p.Queued())
	}
	if err := p.Submit("nil", nil); err == nil {
		t.Fatal("nil task accepted")
	}
}

func TestGenerationProcessor_Enqueue(t *testing.T) {
	req := usecase.GenerateRequest{Category: model.CategoryMotivation, ViralMode: true}

	t.Run("runs the job and reports the outcome", func(t *testing.T) {
		p := NewPool(1, 2, testLogger())
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		p.Start(ctx)
		defer p.Stop()

		pipe := &fakePipeline{runErr: errors.New("render failed")}
		proc := NewGenerationProcessor(pipe, &memJobs{}, nil, p, testLogger())

		finished := make(chan error, 1)
		job, err := proc.Enqueue(ctx, req, func(j *model.GenerationJob, runErr error) { finished <- runErr })
		if err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		if job.ID != "job-1" {
			t.Fatalf("job id = %q", job.ID)
		}
		select {
		case runErr := <-finished:
			if runErr == nil || runErr.Error() != "render failed" {
				t.Fatalf("done got %v", runErr)
			}
		case <-time.After(time.Second):
			t.Fatal("done callback never called")
		}
	})

	t.Run("start failure is returned as is", func(t *testing.T) {
		pipe := &fakePipeline{startErr: domain.ErrInvalidArgument}
		proc := NewGenerationProcessor(pipe, &memJobs{}, nil, NewPool(1, 1, testLogger()), testLogger())
		called := false
		_, err := proc.Enqueue(context.Background(), req, func(*model.GenerationJob, error) { called = true })
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected invalid argument, got %v", err)
		}
		if called {
			t.Fatal("done called on start failure")
		}
	})

	t.Run("dropped job is persisted as failed", func(t *testing.T) {
		p := NewPool(1, 1, testLogger())
		p.Stop()
		jobs := &memJobs{}
		proc := NewGenerationProcessor(&fakePipeline{}, jobs, nil, p, testLogger())

		job, err := proc.Enqueue(context.Background(), req, nil)
		if !errors.Is(err, ErrStopped) {
			t.Fatalf("expected ErrStopped, got %v", err)
		}
		if job == nil || job.Stage != model.StageFailed {
			t.Fatalf("job not failed: %+v", job)
		}
		stored, _ := jobs.FindByID(context.Background(), repository.NoTX, job.ID)
		if stored == nil || stored.Stage != model.StageFailed {
			t.Fatalf("stored job = %+v", stored)
		}
	})

	t.Run("panicking run fails the job and releases the slot", func(t *testing.T) {
		p := NewPool(1, 2, testLogger())
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		p.Start(ctx)
		defer p.Stop()

		jobs := &memJobs{}
		slots := &fakeSlots{}
		proc := NewGenerationProcessor(&fakePipeline{panicVal: "nil map write"}, jobs, slots, p, testLogger())

		finished := make(chan error, 1)
		auto := req
		auto.AutoSlot = model.SlotMorning
		job, err := proc.Enqueue(ctx, auto, func(j *model.GenerationJob, runErr error) { finished <- runErr })
		if err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		select {
		case runErr := <-finished:
			if runErr == nil {
				t.Fatal("done got a nil error for a panicked run")
			}
		case <-time.After(time.Second):
			t.Fatal("done callback never called after a panic")
		}

		stored, _ := jobs.FindByID(context.Background(), repository.NoTX, job.ID)
		if stored == nil || stored.Stage != model.StageFailed {
			t.Fatalf("stored job = %+v", stored)
		}
		slots.mu.Lock()
		abandoned := append([]model.Slot(nil), slots.abandoned...)
		slots.mu.Unlock()
		if len(abandoned) != 1 || abandoned[0] != model.SlotMorning {
			t.Fatalf("abandoned = %v", abandoned)
		}

		// The worker survives and keeps running jobs.
		next := make(chan error, 1)
		ok := NewGenerationProcessor(&fakePipeline{}, jobs, slots, p, testLogger())
		if _, err := ok.Enqueue(ctx, req, func(_ *model.GenerationJob, runErr error) { next <- runErr }); err != nil {
			t.Fatalf("enqueue after panic: %v", err)
		}
		select {
		case runErr := <-next:
			if runErr != nil {
				t.Fatalf("second run: %v", runErr)
			}
		case <-time.After(time.Second):
			t.Fatal("pool stopped running after a panic")
		}
	})
}
