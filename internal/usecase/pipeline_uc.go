package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"autoshorts/internal/domain/model"
	"autoshorts/internal/domain/ports/adapter"
	"autoshorts/internal/domain/ports/repository"
	derror "autoshorts/internal/error"
	"autoshorts/internal/infra/logging"
	"autoshorts/internal/rotation"
)

// Compile-time check
var _ PipelineUseCase = (*pipelineUC)(nil)

type GenerateRequest struct {
	Category  model.Category
	ViralMode bool
	Platforms []model.Platform
	// AutoSlot is set when the job runs on behalf of a catch-up task.
	AutoSlot model.Slot
}

type PipelineUseCase interface {
	// Start creates and records a job; the ad decision is taken here.
	Start(ctx context.Context, req GenerateRequest) (*model.GenerationJob, error)
	// Run drives a started job through SCRIPT, AUDIO and VIDEO to READY.
	Run(ctx context.Context, job *model.GenerationJob) error
	// Generate is Start followed by Run.
	Generate(ctx context.Context, req GenerateRequest) (*model.GenerationJob, error)
}

// SlotObserver is told how a catch-up job ended.
type SlotObserver interface {
	Complete(ctx context.Context, slot model.Slot) error
	Abandon(ctx context.Context, slot model.Slot, cause error) error
}

// PipelineObserver receives stage timings and job outcomes (metrics).
type PipelineObserver interface {
	StageDone(stage model.Stage, d time.Duration, err error)
	JobFinished(job *model.GenerationJob)
}

// Translator renders operator-facing messages.
type Translator interface {
	T(key string, args ...interface{}) string
}

type PipelineSettings struct {
	PollInterval    time.Duration
	PollMaxAttempts int
	AdFrequency     int
	RewardNormal    int
	RewardViral     int
	AspectRatio     string
	Resolution      string
}

type PipelineDeps struct {
	ScriptExec *rotation.Executor
	MediaExec  *rotation.Executor
	Scripts    adapter.ScriptGenerator
	Voice      adapter.VoiceSynthesizer
	Video      adapter.VideoRenderer
	Clips      adapter.ClipFetcher
	Jobs       repository.JobRepository
	Ledger     JobAppender
	Counters   repository.CounterRepository
	Artifacts  repository.ArtifactStore
	Notifier   adapter.Notifier
	Slots      SlotObserver
	Observer   PipelineObserver
	Prompts    *PromptBuilder
	Messages   Translator
	Now        func() time.Time
	Sleep      func(ctx context.Context, d time.Duration) error
}

type pipelineUC struct {
	PipelineDeps
	cfg      PipelineSettings
	renderer *clipRenderer
	log      *zerolog.Logger
}

func NewPipelineUseCase(deps PipelineDeps, cfg PipelineSettings, logger *zerolog.Logger) *pipelineUC {
	if deps.MediaExec == nil {
		deps.MediaExec = deps.ScriptExec
	}
	if deps.Prompts == nil {
		deps.Prompts = NewPromptBuilder(nil)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Sleep == nil {
		deps.Sleep = sleepCtx
	}
	if cfg.AspectRatio == "" {
		cfg.AspectRatio = "9:16"
	}
	if cfg.Resolution == "" {
		cfg.Resolution = "720p"
	}
	if cfg.PollMaxAttempts <= 0 {
		cfg.PollMaxAttempts = 60
	}
	l := logger.With().Str("component", "Pipeline").Logger()
	return &pipelineUC{
		PipelineDeps: deps,
		cfg:          cfg,
		renderer: &clipRenderer{
			video:       deps.Video,
			clips:       deps.Clips,
			sleep:       deps.Sleep,
			interval:    cfg.PollInterval,
			maxPolls:    cfg.PollMaxAttempts,
			aspectRatio: cfg.AspectRatio,
			resolution:  cfg.Resolution,
		},
		log: &l,
	}
}

func (p *pipelineUC) Generate(ctx context.Context, req GenerateRequest) (*model.GenerationJob, error) {
	job, err := p.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	return job, p.Run(ctx, job)
}

func (p *pipelineUC) Start(ctx context.Context, req GenerateRequest) (*model.GenerationJob, error) {
	totals, err := p.Counters.Totals(ctx)
	if err != nil {
		return nil, fmt.Errorf("read counters: %w", err)
	}
	job, err := model.NewGenerationJob("", req.Category, req.ViralMode, model.AdDue(totals.Videos, p.cfg.AdFrequency), req.Platforms, p.Now())
	if err != nil {
		return nil, err
	}
	if req.AutoSlot != "" {
		job.AutoSlot = req.AutoSlot
		job.Origin = model.OriginCatchUp
	}
	if err := p.Ledger.Append(ctx, job); err != nil {
		return nil, fmt.Errorf("record job: %w", err)
	}
	p.log.Info().
		Str("job_id", job.ID).
		Str("category", string(job.Category)).
		Bool("viral", job.ViralMode).
		Bool("ad", job.AdInjected).
		Str("slot", string(job.AutoSlot)).
		Msg("job created")
	return job, nil
}

func (p *pipelineUC) Run(ctx context.Context, job *model.GenerationJob) error {
	ctx = logging.WithJobID(ctx, job.ID)
	if job.AutoSlot != "" {
		ctx = logging.WithSlot(ctx, string(job.AutoSlot))
	}
	log := logging.With(ctx, p.log)
	defer logging.TraceDuration(log, "PipelineUC.Run")()

	if err := p.run(ctx, job, log); err != nil {
		p.fail(ctx, job, err, log)
		return err
	}
	p.finish(ctx, job, log)
	return nil
}

func (p *pipelineUC) run(ctx context.Context, job *model.GenerationJob, log *zerolog.Logger) error {
	if err := p.timed(model.StageScript, func() error { return p.scriptStage(ctx, job) }); err != nil {
		return err
	}
	log.Info().Str("topic", job.Topic).Int("scenes", len(job.Scenes)).Msg("script ready")

	if err := p.timed(model.StageAudio, func() error { return p.audioStage(ctx, job, log) }); err != nil {
		return err
	}

	return p.timed(model.StageVideo, func() error { return p.videoStage(ctx, job, log) })
}

func (p *pipelineUC) timed(stage model.Stage, fn func() error) error {
	start := time.Now()
	err := fn()
	if p.Observer != nil {
		p.Observer.StageDone(stage, time.Since(start), err)
	}
	return err
}

func (p *pipelineUC) scriptStage(ctx context.Context, job *model.GenerationJob) error {
	prompt := p.Prompts.Build(job.Category, job.ViralMode, job.AdInjected)
	raw, err := rotation.Execute(ctx, p.ScriptExec, "script.generate", func(ctx context.Context, key string) (string, error) {
		text, _, err := p.Scripts.GenerateScript(ctx, key, adapter.ScriptRequest{
			Prompt:            prompt.Prompt,
			SystemInstruction: prompt.System,
			Temperature:       prompt.Temperature,
			Structured:        true,
		})
		return text, err
	})
	if err != nil {
		return fmt.Errorf("script: %w", err)
	}

	// Validation failures are not retried.
	script, err := ParseScript(raw, job.AdInjected)
	if err != nil {
		return fmt.Errorf("script: %w", err)
	}
	if err := job.SetScript(script.Topic, script.CharacterDescription, script.FullScript, script.Scenes, p.Now()); err != nil {
		return err
	}
	if err := job.Advance(model.StageAudio, p.Now()); err != nil {
		return err
	}
	return p.save(ctx, job)
}

func (p *pipelineUC) audioStage(ctx context.Context, job *model.GenerationJob, log *zerolog.Logger) error {
	pcm, err := rotation.Execute(ctx, p.MediaExec, "voice.synthesize", func(ctx context.Context, key string) ([]byte, error) {
		return p.Voice.Synthesize(ctx, key, job.FullScript)
	})
	switch {
	case err == nil && len(pcm) > 0:
		wav := WrapPCM16(pcm, VoiceSampleRate, VoiceChannels)
		ref, err := p.Artifacts.Put(ctx, job.ID+"/voice.wav", "audio/wav", wav)
		if err != nil {
			return fmt.Errorf("store audio: %w", err)
		}
		job.SetAudio(&ref, p.Now())
	case err == nil:
		log.Warn().Msg("voice synthesis returned no audio, continuing without")
		job.SetAudio(nil, p.Now())
	case benignAudioFailure(err):
		log.Warn().Err(err).Msg("voice synthesis failed, continuing without audio")
		job.SetAudio(nil, p.Now())
	default:
		return fmt.Errorf("audio: %w", err)
	}

	if err := job.Advance(model.StageVideo, p.Now()); err != nil {
		return err
	}
	return p.save(ctx, job)
}

// benignAudioFailure reports voice failures that leave the job without audio
// instead of failing it. Quota exhaustion and configuration errors are fatal.
func benignAudioFailure(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch derror.KindOf(err) {
	case derror.KindUpstreamRejected, derror.KindMalformedResponse:
		return true
	}
	return false
}

func (p *pipelineUC) videoStage(ctx context.Context, job *model.GenerationJob, log *zerolog.Logger) error {
	// Strictly sequential: scene i+1 is not submitted before scene i is stored.
	for i, scene := range job.Scenes {
		out, err := rotation.Execute(ctx, p.MediaExec, "video.render", func(ctx context.Context, key string) (*renderedClip, error) {
			return p.renderer.render(ctx, key, scene.VisualPrompt+VideoPromptSuffix)
		})
		if err != nil {
			return fmt.Errorf("video scene %d/%d: %w", i+1, len(job.Scenes), err)
		}

		clip := out.Clip
		ref, err := p.Artifacts.Put(ctx, fmt.Sprintf("%s/scene-%02d.mp4", job.ID, i+1), clip.ContentType, clip.Data)
		if err != nil {
			return fmt.Errorf("store scene %d: %w", i+1, err)
		}
		if err := job.AppendClip(ref, p.Now()); err != nil {
			return err
		}
		if err := p.save(ctx, job); err != nil {
			return err
		}
		log.Info().Int("scene", i+1).Int("of", len(job.Scenes)).Int("bytes", len(clip.Data)).Msg("clip stored")
	}
	job.Progress = model.ProgressVideoDone
	return nil
}

func (p *pipelineUC) finish(ctx context.Context, job *model.GenerationJob, log *zerolog.Logger) {
	reward := p.cfg.RewardNormal
	if job.ViralMode {
		reward = p.cfg.RewardViral
	}
	totals, err := p.Counters.RecordCompletion(ctx, reward)
	if err != nil {
		log.Error().Err(err).Msg("failed to record completion counters")
	}

	if err := job.Advance(model.StageReady, p.Now()); err != nil {
		// Unreachable when the video stage stored every clip.
		log.Error().Err(err).Msg("cannot mark job ready")
		return
	}
	if err := p.save(ctx, job); err != nil {
		log.Error().Err(err).Msg("failed to record ready job")
	}
	if p.Observer != nil {
		p.Observer.JobFinished(job)
	}
	log.Info().Int("videos_total", totals.Videos).Int("reward", reward).Msg("job ready")

	p.notify(ctx, p.msg("job.ready", job.Topic, len(job.Scenes), reward), log)

	if job.AutoSlot != "" && p.Slots != nil {
		if err := p.Slots.Complete(ctx, job.AutoSlot); err != nil {
			log.Error().Err(err).Msg("failed to mark slot completed")
		}
	}
}

func (p *pipelineUC) fail(ctx context.Context, job *model.GenerationJob, cause error, log *zerolog.Logger) {
	kind := derror.KindOf(cause)
	if err := job.Fail(cause.Error(), kind.String(), p.Now()); err != nil {
		log.Error().Err(err).Msg("cannot mark job failed")
	}
	// Persist with a fresh context: the run context may be the reason we failed.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.save(saveCtx, job); err != nil {
		log.Error().Err(err).Msg("failed to record failed job")
	}
	if p.Observer != nil {
		p.Observer.JobFinished(job)
	}
	log.Error().Err(cause).Str("kind", kind.String()).Msg("job failed")

	p.notify(saveCtx, p.msg("job.failed", string(job.Category), p.msg(FailureMessageKey(cause))), log)

	if job.AutoSlot != "" && p.Slots != nil {
		if err := p.Slots.Abandon(saveCtx, job.AutoSlot, cause); err != nil {
			log.Error().Err(err).Msg("failed to release slot")
		}
	}
}

func (p *pipelineUC) save(ctx context.Context, job *model.GenerationJob) error {
	if err := p.Jobs.Save(ctx, repository.NoTX, job); err != nil {
		return fmt.Errorf("record job: %w", err)
	}
	return nil
}

func (p *pipelineUC) notify(ctx context.Context, text string, log *zerolog.Logger) {
	if p.Notifier == nil {
		return
	}
	if err := p.Notifier.Notify(ctx, text); err != nil {
		log.Warn().Err(err).Msg("notification failed")
	}
}

func (p *pipelineUC) msg(key string, args ...interface{}) string {
	if p.Messages == nil {
		return key
	}
	return p.Messages.T(key, args...)
}

// FailureMessageKey maps a failure to the operator message that tells
// credential problems apart from ones that clear by waiting.
func FailureMessageKey(err error) string {
	switch {
	case derror.Is(err, derror.KindConfiguration):
		return "error.configuration"
	case derror.Is(err, derror.KindAllKeysExhausted):
		return "error.exhausted"
	case derror.OperatorAction(err):
		return "error.invalid_key"
	case derror.Is(err, derror.KindQuotaExceeded):
		return "error.quota"
	case derror.Is(err, derror.KindTimeout):
		return "error.timeout"
	case derror.Is(err, derror.KindMalformedResponse):
		return "error.malformed"
	default:
		return "error.technical"
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
