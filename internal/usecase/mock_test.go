//go:build !integration

package usecase_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"autoshorts/internal/domain"
	"autoshorts/internal/domain/model"
	"autoshorts/internal/domain/ports/adapter"
	"autoshorts/internal/domain/ports/repository"
	"autoshorts/internal/rotation"
)

// -----------------------------
// Utilities
// -----------------------------

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func newTestExecutor(keys ...string) *rotation.Executor {
	return rotation.NewExecutor(rotation.NewKeyPool(keys), time.Millisecond, newTestLogger(), rotation.WithSleep(noSleep))
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// =============================
// Adapters
// =============================

type MockScriptGenerator struct {
	mu    sync.Mutex
	Calls []adapter.ScriptRequest
	Keys  []string

	GenerateScriptFunc func(ctx context.Context, apiKey string, req adapter.ScriptRequest) (string, adapter.Usage, error)
}

var _ adapter.ScriptGenerator = (*MockScriptGenerator)(nil)

func (m *MockScriptGenerator) GenerateScript(ctx context.Context, apiKey string, req adapter.ScriptRequest) (string, adapter.Usage, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	m.Keys = append(m.Keys, apiKey)
	m.mu.Unlock()
	if m.GenerateScriptFunc != nil {
		return m.GenerateScriptFunc(ctx, apiKey, req)
	}
	return "", adapter.Usage{}, fmt.Errorf("GenerateScript not configured")
}

type MockVoiceSynthesizer struct {
	Calls          int
	SynthesizeFunc func(ctx context.Context, apiKey, text string) ([]byte, error)
}

var _ adapter.VoiceSynthesizer = (*MockVoiceSynthesizer)(nil)

func (m *MockVoiceSynthesizer) Synthesize(ctx context.Context, apiKey, text string) ([]byte, error) {
	m.Calls++
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, apiKey, text)
	}
	return []byte{1, 0, 2, 0}, nil
}

// MockVideoRenderer completes each operation after PollsUntilDone polls.
type MockVideoRenderer struct {
	mu             sync.Mutex
	Prompts        []string
	Polls          int
	PollsUntilDone int

	SubmitRenderFunc func(ctx context.Context, apiKey string, req adapter.RenderRequest) (adapter.RenderOperation, error)
	PollRenderFunc   func(ctx context.Context, apiKey string, op adapter.RenderOperation) (adapter.RenderOperation, error)
}

var _ adapter.VideoRenderer = (*MockVideoRenderer)(nil)

func (m *MockVideoRenderer) SubmitRender(ctx context.Context, apiKey string, req adapter.RenderRequest) (adapter.RenderOperation, error) {
	m.mu.Lock()
	m.Prompts = append(m.Prompts, req.Prompt)
	n := len(m.Prompts)
	m.mu.Unlock()
	if m.SubmitRenderFunc != nil {
		return m.SubmitRenderFunc(ctx, apiKey, req)
	}
	op := adapter.RenderOperation{Name: fmt.Sprintf("operations/%d", n)}
	if m.PollsUntilDone == 0 {
		op.Done = true
		op.VideoURI = "https://video.test/" + op.Name
	}
	return op, nil
}

func (m *MockVideoRenderer) PollRender(ctx context.Context, apiKey string, op adapter.RenderOperation) (adapter.RenderOperation, error) {
	m.mu.Lock()
	m.Polls++
	polls := m.Polls
	m.mu.Unlock()
	if m.PollRenderFunc != nil {
		return m.PollRenderFunc(ctx, apiKey, op)
	}
	if m.PollsUntilDone > 0 && polls%m.PollsUntilDone == 0 {
		op.Done = true
		op.VideoURI = "https://video.test/" + op.Name
	}
	return op, nil
}

type MockClipFetcher struct {
	mu   sync.Mutex
	URIs []string
	Keys []string

	FetchClipFunc func(ctx context.Context, apiKey, uri string) (*adapter.Clip, error)
}

var _ adapter.ClipFetcher = (*MockClipFetcher)(nil)

func (m *MockClipFetcher) FetchClip(ctx context.Context, apiKey, uri string) (*adapter.Clip, error) {
	m.mu.Lock()
	m.URIs = append(m.URIs, uri)
	m.Keys = append(m.Keys, apiKey)
	m.mu.Unlock()
	if m.FetchClipFunc != nil {
		return m.FetchClipFunc(ctx, apiKey, uri)
	}
	return &adapter.Clip{Data: []byte("mp4:" + uri), ContentType: "video/mp4"}, nil
}

type MockNotifier struct {
	mu       sync.Mutex
	Messages []string
}

var _ adapter.Notifier = (*MockNotifier)(nil)

func (m *MockNotifier) Notify(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, text)
	return nil
}

func (m *MockNotifier) Last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Messages) == 0 {
		return ""
	}
	return m.Messages[len(m.Messages)-1]
}

// =============================
// Repositories
// =============================

// MockJobRepo keeps copies of every saved job and the stage history per id.
type MockJobRepo struct {
	mu      sync.Mutex
	jobs    map[string]model.GenerationJob
	History map[string][]model.Stage

	SaveFunc func(ctx context.Context, tx repository.Tx, job *model.GenerationJob) error
}

var _ repository.JobRepository = (*MockJobRepo)(nil)

func NewMockJobRepo() *MockJobRepo {
	return &MockJobRepo{jobs: map[string]model.GenerationJob{}, History: map[string][]model.Stage{}}
}

func (m *MockJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.GenerationJob) error {
	if m.SaveFunc != nil {
		if err := m.SaveFunc(ctx, tx, job); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	cp.Scenes = append([]model.Scene(nil), job.Scenes...)
	cp.VideoArtifacts = append([]string(nil), job.VideoArtifacts...)
	m.jobs[job.ID] = cp
	h := m.History[job.ID]
	if len(h) == 0 || h[len(h)-1] != job.Stage {
		m.History[job.ID] = append(h, job.Stage)
	}
	return nil
}

func (m *MockJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &j, nil
}

func (m *MockJobRepo) List(ctx context.Context, filter repository.JobFilter) ([]*model.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.GenerationJob
	for _, j := range m.jobs {
		if filter.Stage != "" && j.Stage != filter.Stage {
			continue
		}
		j := j
		out = append(out, &j)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID > out[b].ID })
	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MockJobRepo) CountByStage(ctx context.Context) (map[model.Stage]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[model.Stage]int{}
	for _, j := range m.jobs {
		out[j.Stage]++
	}
	return out, nil
}

func (m *MockJobRepo) Only() *model.GenerationJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		j := j
		return &j
	}
	return nil
}

type MockCounterRepo struct {
	mu      sync.Mutex
	Current repository.Totals
	Err     error
}

var _ repository.CounterRepository = (*MockCounterRepo)(nil)

func (m *MockCounterRepo) Totals(ctx context.Context) (repository.Totals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Current, m.Err
}

func (m *MockCounterRepo) RecordCompletion(ctx context.Context, reward int) (repository.Totals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return repository.Totals{}, m.Err
	}
	m.Current.Videos++
	m.Current.Rewards += reward
	return m.Current, nil
}

type MockArtifactStore struct {
	mu    sync.Mutex
	Items map[string][]byte
	Types map[string]string
}

var _ repository.ArtifactStore = (*MockArtifactStore)(nil)

func NewMockArtifactStore() *MockArtifactStore {
	return &MockArtifactStore{Items: map[string][]byte{}, Types: map[string]string{}}
}

func (m *MockArtifactStore) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Items[name] = append([]byte(nil), data...)
	m.Types[name] = contentType
	return name, nil
}

func (m *MockArtifactStore) Open(ctx context.Context, ref string) (io.ReadCloser, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.Items[ref]
	if !ok {
		return nil, "", domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), m.Types[ref], nil
}

type MockAutomationRepo struct {
	mu      sync.Mutex
	cfg     *model.AutomationConfig
	Saves   int
	SaveErr error
}

var _ repository.AutomationRepository = (*MockAutomationRepo)(nil)

func (m *MockAutomationRepo) Load(ctx context.Context) (*model.AutomationConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg == nil {
		return nil, domain.ErrNotFound
	}
	cp := *m.cfg
	return &cp, nil
}

func (m *MockAutomationRepo) Save(ctx context.Context, cfg *model.AutomationConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	cp := *cfg
	m.cfg = &cp
	m.Saves++
	return nil
}

type MockLocker struct {
	mu       sync.Mutex
	held     map[string]string
	Unlocked int
}

var _ repository.Locker = (*MockLocker)(nil)

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held == nil {
		m.held = map[string]string{}
	}
	if _, ok := m.held[key]; ok {
		return "", domain.ErrLockNotAcquired
	}
	m.held[key] = "token-" + key
	return m.held[key], nil
}

func (m *MockLocker) Unlock(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] == token {
		delete(m.held, key)
		m.Unlocked++
	}
	return nil
}

// MockTxManager runs fn without a transaction handle.
type MockTxManager struct{ Calls int }

var _ repository.TransactionManager = (*MockTxManager)(nil)

func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.Calls++
	return fn(ctx, repository.NoTX)
}

// =============================
// Callbacks
// =============================

type MockSlots struct {
	mu        sync.Mutex
	Completed []model.Slot
	Abandoned []model.Slot
}

func (m *MockSlots) Complete(ctx context.Context, slot model.Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Completed = append(m.Completed, slot)
	return nil
}

func (m *MockSlots) Abandon(ctx context.Context, slot model.Slot, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Abandoned = append(m.Abandoned, slot)
	return nil
}

type MockPipelineObserver struct {
	mu       sync.Mutex
	Stages   []model.Stage
	Finished []model.Stage
}

func (m *MockPipelineObserver) StageDone(stage model.Stage, d time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stages = append(m.Stages, stage)
}

func (m *MockPipelineObserver) JobFinished(job *model.GenerationJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Finished = append(m.Finished, job.Stage)
}

type MockSchedulerObserver struct{ Slots []model.Slot }

func (m *MockSchedulerObserver) Raised(slot model.Slot) { m.Slots = append(m.Slots, slot) }

// MockTranslator echoes the key followed by its arguments.
type MockTranslator struct{}

func (MockTranslator) T(key string, args ...interface{}) string {
	if len(args) == 0 {
		return key
	}
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, key)
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	return strings.Join(parts, " ")
}
