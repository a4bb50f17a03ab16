package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"autoshorts/internal/domain"
	"autoshorts/internal/domain/model"
	"autoshorts/internal/domain/ports/adapter"
	"autoshorts/internal/domain/ports/repository"
	derror "autoshorts/internal/error"
	"autoshorts/internal/rotation"
)

// Compile-time check
var _ TriggerUseCase = (*triggerUC)(nil)

const (
	triggerLockKey = "autoshorts:trigger:lock"
	// TimeoutURI is reported in place of a video URI when the render did not finish.
	TimeoutURI = "Timeout"
)

type TriggerResult struct {
	Success      bool           `json:"success"`
	Category     model.Category `json:"category"`
	Topic        string         `json:"topic"`
	VideoURI     string         `json:"videoUri"`
	UsedRotation bool           `json:"usedRotation"`
	JobID        string         `json:"jobId"`
}

// TriggerUseCase is the scheduled, server-side generation run: one script
// and one clip, guarded against overlapping invocations.
type TriggerUseCase interface {
	Run(ctx context.Context) (*TriggerResult, error)
}

type TriggerSettings struct {
	PollInterval    time.Duration
	PollMaxAttempts int
	LockTTL         time.Duration
	Location        *time.Location
}

type TriggerDeps struct {
	ScriptExec *rotation.Executor
	MediaExec  *rotation.Executor
	Scripts    adapter.ScriptGenerator
	Video      adapter.VideoRenderer
	Clips      adapter.ClipFetcher
	Jobs       repository.JobRepository
	Ledger     JobAppender
	Artifacts  repository.ArtifactStore
	Locker     repository.Locker
	Observer   PipelineObserver
	Now        func() time.Time
	Sleep      func(ctx context.Context, d time.Duration) error
}

type triggerUC struct {
	TriggerDeps
	cfg      TriggerSettings
	renderer *clipRenderer
	log      *zerolog.Logger
}

func NewTriggerUseCase(deps TriggerDeps, cfg TriggerSettings, logger *zerolog.Logger) *triggerUC {
	if deps.MediaExec == nil {
		deps.MediaExec = deps.ScriptExec
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Sleep == nil {
		deps.Sleep = sleepCtx
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.PollMaxAttempts <= 0 {
		cfg.PollMaxAttempts = 15
	}
	l := logger.With().Str("component", "Trigger").Logger()
	return &triggerUC{
		TriggerDeps: deps,
		cfg:         cfg,
		renderer: &clipRenderer{
			video:       deps.Video,
			clips:       deps.Clips,
			sleep:       deps.Sleep,
			interval:    cfg.PollInterval,
			maxPolls:    cfg.PollMaxAttempts,
			aspectRatio: "9:16",
			resolution:  "720p",
		},
		log: &l,
	}
}

// TriggerCategory picks the category from the local hour.
func TriggerCategory(now time.Time) model.Category {
	if now.Hour() < 12 {
		return model.CategorySchoolTips
	}
	return model.CategoryBusinessSuccess
}

type triggerScript struct {
	Topic        string `json:"topic"`
	Script       string `json:"script"`
	VisualPrompt string `json:"visual_prompt"`
}

func parseTriggerScript(raw string) (*triggerScript, error) {
	var out triggerScript
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
		return nil, derror.Malformed("trigger.parse", "script is not valid JSON: %v", err)
	}
	out.Topic = strings.TrimSpace(out.Topic)
	out.VisualPrompt = strings.TrimSpace(out.VisualPrompt)
	if out.Topic == "" || out.VisualPrompt == "" {
		return nil, derror.Malformed("trigger.parse", "script misses topic or visual_prompt")
	}
	if strings.TrimSpace(out.Script) == "" {
		out.Script = out.Topic
	}
	return &out, nil
}

func (t *triggerUC) Run(ctx context.Context) (*TriggerResult, error) {
	token, err := t.Locker.TryLock(ctx, triggerLockKey, t.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := t.Locker.Unlock(context.WithoutCancel(ctx), triggerLockKey, token); err != nil {
			t.log.Warn().Err(err).Msg("failed to release trigger lock")
		}
	}()

	if t.ScriptExec.Pool().Empty() {
		return nil, derror.Configuration("trigger", "no API credentials configured on server (set API_KEYS or API_KEY)")
	}

	ctx, tally := rotation.WithTally(ctx)
	category := TriggerCategory(t.Now().In(t.cfg.Location))
	job, err := model.NewGenerationJob("", category, true, false, nil, t.Now())
	if err != nil {
		return nil, err
	}
	job.Origin = model.OriginTrigger
	if err := t.Ledger.Append(ctx, job); err != nil {
		return nil, fmt.Errorf("record job: %w", err)
	}
	t.log.Info().Str("job_id", job.ID).Str("category", string(category)).Int("keys", t.ScriptExec.Pool().Size()).Msg("trigger run started")

	res, err := t.run(ctx, job)
	if res != nil {
		res.UsedRotation = tally.Rotations() > 0
	}
	if err != nil {
		t.fail(ctx, job, err)
		return nil, err
	}
	return res, nil
}

func (t *triggerUC) run(ctx context.Context, job *model.GenerationJob) (*TriggerResult, error) {
	start := time.Now()
	raw, err := rotation.Execute(ctx, t.ScriptExec, "trigger.script", func(ctx context.Context, key string) (string, error) {
		text, _, err := t.Scripts.GenerateScript(ctx, key, adapter.ScriptRequest{
			Prompt:            CronPrompt(job.Category),
			SystemInstruction: SystemInstructionTrigger,
			Temperature:       TemperatureCron,
		})
		return text, err
	})
	if err == nil {
		var script *triggerScript
		if script, err = parseTriggerScript(raw); err == nil {
			scenes := []model.Scene{{Narration: script.Script, VisualPrompt: script.VisualPrompt}}
			err = job.SetScript(script.Topic, "", script.Script, scenes, t.Now())
		}
	}
	t.stage(model.StageScript, start, err)
	if err != nil {
		return nil, fmt.Errorf("script: %w", err)
	}
	t.log.Info().Str("job_id", job.ID).Str("topic", job.Topic).Msg("trigger script generated")

	// No voice track on the trigger path.
	job.SetAudio(nil, t.Now())
	if err := job.Advance(model.StageAudio, t.Now()); err != nil {
		return nil, err
	}
	if err := job.Advance(model.StageVideo, t.Now()); err != nil {
		return nil, err
	}
	if err := t.Jobs.Save(ctx, repository.NoTX, job); err != nil {
		return nil, fmt.Errorf("record job: %w", err)
	}

	res := &TriggerResult{Success: true, Category: job.Category, Topic: job.Topic, JobID: job.ID}

	start = time.Now()
	out, err := rotation.Execute(ctx, t.MediaExec, "trigger.video", func(ctx context.Context, key string) (*renderedClip, error) {
		return t.renderer.render(ctx, key, job.Scenes[0].VisualPrompt+TriggerPromptSuffix)
	})
	t.stage(model.StageVideo, start, err)
	if derror.Is(err, derror.KindTimeout) {
		// Reported as a successful run with the Timeout marker.
		res.VideoURI = TimeoutURI
		t.fail(ctx, job, err)
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("video: %w", err)
	}

	ref, err := t.Artifacts.Put(ctx, job.ID+"/scene-01.mp4", out.Clip.ContentType, out.Clip.Data)
	if err != nil {
		return res, fmt.Errorf("store clip: %w", err)
	}
	if err := job.AppendClip(ref, t.Now()); err != nil {
		return res, err
	}
	if err := job.Advance(model.StageReady, t.Now()); err != nil {
		return res, err
	}
	if err := t.Jobs.Save(ctx, repository.NoTX, job); err != nil {
		return res, fmt.Errorf("record job: %w", err)
	}
	if t.Observer != nil {
		t.Observer.JobFinished(job)
	}
	res.VideoURI = out.URI
	t.log.Info().Str("job_id", job.ID).Msg("trigger run finished")
	return res, nil
}

func (t *triggerUC) stage(stage model.Stage, start time.Time, err error) {
	if t.Observer != nil {
		t.Observer.StageDone(stage, time.Since(start), err)
	}
}

func (t *triggerUC) fail(ctx context.Context, job *model.GenerationJob, cause error) {
	if job.Stage.Terminal() {
		return
	}
	kind := derror.KindOf(cause)
	if err := job.Fail(cause.Error(), kind.String(), t.Now()); err != nil {
		t.log.Error().Err(err).Msg("cannot mark trigger job failed")
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := t.Jobs.Save(saveCtx, repository.NoTX, job); err != nil {
		t.log.Error().Err(err).Msg("failed to record failed trigger job")
	}
	if t.Observer != nil {
		t.Observer.JobFinished(job)
	}
	t.log.Error().Err(cause).Str("job_id", job.ID).Str("kind", kind.String()).Msg("trigger run failed")
}

// IsLockHeld reports whether err means another trigger run holds the lock.
func IsLockHeld(err error) bool {
	return errors.Is(err, domain.ErrLockNotAcquired)
}
