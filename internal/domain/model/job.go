package model

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"autoshorts/internal/domain"
)

// Stage is the lifecycle position of a generation job.
type Stage string

const (
	StageScript    Stage = "SCRIPT"
	StageAudio     Stage = "AUDIO"
	StageVideo     Stage = "VIDEO"
	StageReady     Stage = "READY"
	StagePublished Stage = "PUBLISHED"
	StageFailed    Stage = "FAILED"
)

// Coarse progress milestones reported per stage transition.
const (
	ProgressCreated   = 5
	ProgressScript    = 25
	ProgressAudio     = 40
	ProgressVideoDone = 90
	ProgressReady     = 100
)

const (
	ScenesDefault    = 4
	ScenesWithAd     = 5
	AdScenePosition  = 3 // 1-based
	PlatformFallback = PlatformTikTok
)

// validTransitions maps from-stage to allowed to-stages.
var validTransitions = map[Stage]map[Stage]bool{
	StageScript: {
		StageAudio:  true,
		StageFailed: true,
	},
	StageAudio: {
		StageVideo:  true,
		StageFailed: true,
	},
	StageVideo: {
		StageReady:  true,
		StageFailed: true,
	},
	StageReady: {
		StagePublished: true,
	},
	// Terminal
	StagePublished: {},
	StageFailed:    {},
}

// ValidateTransition checks if a stage transition is allowed.
func ValidateTransition(from, to Stage) error {
	allowed, ok := validTransitions[from]
	if !ok {
		return fmt.Errorf("%w: unknown source stage %s", domain.ErrInvalidTransition, from)
	}
	if !allowed[to] {
		return fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, from, to)
	}
	return nil
}

func (s Stage) Terminal() bool {
	return s == StagePublished || s == StageFailed
}

func (s Stage) Valid() bool {
	_, ok := validTransitions[s]
	return ok
}

// Origin records what started a job.
type Origin string

const (
	OriginStudio  Origin = "STUDIO"
	OriginCatchUp Origin = "CATCH_UP"
	OriginTrigger Origin = "TRIGGER"
)

// TriggerScenes is the scene count of a scheduled trigger run.
const TriggerScenes = 1

type Scene struct {
	Narration    string `json:"narration"`
	VisualPrompt string `json:"visual_prompt"`
}

type GenerationJob struct {
	ID                   string
	Category             Category
	Stage                Stage
	Origin               Origin
	ViralMode            bool
	AdInjected           bool
	AutoSlot             Slot // empty for manual jobs
	Platforms            []Platform
	Topic                string
	CharacterDescription string
	FullScript           string
	Scenes               []Scene
	AudioArtifact        *string
	VideoArtifacts       []string
	Progress             int
	FailureReason        string
	FailureKind          string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	PublishedAt          *time.Time
}

// AdDue reports whether the job created after `completed` finished videos
// carries the advertisement scene.
func AdDue(completed, frequency int) bool {
	if frequency <= 0 {
		return false
	}
	next := completed + 1
	return next%frequency == 0
}

// NewGenerationJob creates a job in the SCRIPT stage. An empty id gets a
// fresh ULID so ledger ids sort by creation time.
func NewGenerationJob(id string, category Category, viral, adInjected bool, platforms []Platform, now time.Time) (*GenerationJob, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: invalid category %q", domain.ErrInvalidArgument, category)
	}
	if id == "" {
		id = ulid.Make().String()
	}
	if len(platforms) == 0 {
		platforms = []Platform{PlatformFallback}
	}
	return &GenerationJob{
		ID:         id,
		Category:   category,
		Stage:      StageScript,
		Origin:     OriginStudio,
		ViralMode:  viral,
		AdInjected: adInjected,
		Platforms:  append([]Platform(nil), platforms...),
		Progress:   ProgressCreated,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// ExpectedScenes is the scene count the script stage must produce.
func (j *GenerationJob) ExpectedScenes() int {
	if j.Origin == OriginTrigger {
		return TriggerScenes
	}
	if j.AdInjected {
		return ScenesWithAd
	}
	return ScenesDefault
}

// SetScript records the validated script. Only allowed while in SCRIPT.
func (j *GenerationJob) SetScript(topic, character, full string, scenes []Scene, now time.Time) error {
	if j.Stage != StageScript {
		return fmt.Errorf("%w: script set in stage %s", domain.ErrInvalidTransition, j.Stage)
	}
	if len(scenes) != j.ExpectedScenes() {
		return fmt.Errorf("%w: %d scenes, want %d", domain.ErrInvalidArgument, len(scenes), j.ExpectedScenes())
	}
	j.Topic = topic
	j.CharacterDescription = character
	j.FullScript = full
	j.Scenes = append([]Scene(nil), scenes...)
	j.UpdatedAt = now
	return nil
}

// SetAudio records the stored audio reference; nil marks skipped audio.
func (j *GenerationJob) SetAudio(ref *string, now time.Time) {
	j.AudioArtifact = ref
	j.UpdatedAt = now
}

// AppendClip appends the next scene's clip reference in scene order.
func (j *GenerationJob) AppendClip(ref string, now time.Time) error {
	if j.Stage != StageVideo {
		return fmt.Errorf("%w: clip appended in stage %s", domain.ErrInvalidTransition, j.Stage)
	}
	if len(j.VideoArtifacts) >= len(j.Scenes) {
		return fmt.Errorf("%w: all %d clips already stored", domain.ErrInvalidArgument, len(j.Scenes))
	}
	j.VideoArtifacts = append(j.VideoArtifacts, ref)
	j.UpdatedAt = now
	return nil
}

// Advance moves the job to the next stage and sets its milestone.
func (j *GenerationJob) Advance(to Stage, now time.Time) error {
	if err := ValidateTransition(j.Stage, to); err != nil {
		return err
	}
	switch to {
	case StageAudio:
		j.Progress = ProgressScript
	case StageVideo:
		j.Progress = ProgressAudio
	case StageReady:
		if len(j.Scenes) == 0 || len(j.VideoArtifacts) != len(j.Scenes) {
			return fmt.Errorf("%w: %d of %d clips stored", domain.ErrInvalidTransition, len(j.VideoArtifacts), len(j.Scenes))
		}
		j.Progress = ProgressReady
	case StagePublished:
		t := now
		j.PublishedAt = &t
	}
	j.Stage = to
	j.UpdatedAt = now
	return nil
}

// Fail marks the job FAILED with a retained cause.
func (j *GenerationJob) Fail(reason, kind string, now time.Time) error {
	if err := ValidateTransition(j.Stage, StageFailed); err != nil {
		return err
	}
	j.Stage = StageFailed
	j.FailureReason = reason
	j.FailureKind = kind
	j.UpdatedAt = now
	return nil
}
