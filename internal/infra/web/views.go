package web

import (
	"time"

	"autoshorts/internal/domain/model"
)

// jobView is the wire shape of a ledger row.
type jobView struct {
	ID            string           `json:"id"`
	Category      model.Category   `json:"category"`
	CategoryName  string           `json:"categoryName"`
	Stage         model.Stage      `json:"stage"`
	Origin        model.Origin     `json:"origin"`
	ViralMode     bool             `json:"viralMode"`
	AdInjected    bool             `json:"adInjected"`
	AutoSlot      model.Slot       `json:"autoSlot,omitempty"`
	Platforms     []model.Platform `json:"platforms"`
	Topic         string           `json:"topic,omitempty"`
	Character     string           `json:"characterDescription,omitempty"`
	FullScript    string           `json:"fullScript,omitempty"`
	Scenes        []model.Scene    `json:"scenes"`
	AudioArtifact *string          `json:"audioArtifact"`
	Clips         []string         `json:"videoArtifacts"`
	Progress      int              `json:"progress"`
	FailureReason string           `json:"failureReason,omitempty"`
	FailureKind   string           `json:"failureKind,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
	PublishedAt   *time.Time       `json:"publishedAt,omitempty"`
}

func viewOf(j *model.GenerationJob) jobView {
	v := jobView{
		ID:            j.ID,
		Category:      j.Category,
		CategoryName:  j.Category.DisplayName(),
		Stage:         j.Stage,
		Origin:        j.Origin,
		ViralMode:     j.ViralMode,
		AdInjected:    j.AdInjected,
		AutoSlot:      j.AutoSlot,
		Platforms:     j.Platforms,
		Topic:         j.Topic,
		Character:     j.CharacterDescription,
		FullScript:    j.FullScript,
		Scenes:        j.Scenes,
		AudioArtifact: j.AudioArtifact,
		Clips:         j.VideoArtifacts,
		Progress:      j.Progress,
		FailureReason: j.FailureReason,
		FailureKind:   j.FailureKind,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
		PublishedAt:   j.PublishedAt,
	}
	if v.Scenes == nil {
		v.Scenes = []model.Scene{}
	}
	if v.Clips == nil {
		v.Clips = []string{}
	}
	return v
}
