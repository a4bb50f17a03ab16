package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"autoshorts/internal/domain/model"
	derror "autoshorts/internal/error"
)

// Script is a validated script payload.
type Script struct {
	Topic                string
	CharacterDescription string
	FullScript           string
	Scenes               []model.Scene
}

type scriptPayload struct {
	TrendingTopic        string `json:"trending_topic"`
	CharacterDescription string `json:"character_description"`
	FullScript           string `json:"full_script"`
	Scenes               []struct {
		VisualPrompt string `json:"visual_prompt"`
		Narration    string `json:"narration"`
	} `json:"scenes"`
}

const opScriptParse = "script.parse"

// ParseScript decodes and validates a generated script. With adInjected the
// payload must hold five scenes and the third is replaced by the fixed ad
// scene; otherwise it must hold exactly four. Every visual prompt is prefixed
// with the character description.
func ParseScript(raw string, adInjected bool) (*Script, error) {
	raw = stripFences(raw)
	if raw == "" {
		return nil, derror.Malformed(opScriptParse, "empty response")
	}

	var p scriptPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, derror.Malformed(opScriptParse, "decode: %v", err)
	}

	switch {
	case strings.TrimSpace(p.TrendingTopic) == "":
		return nil, derror.Malformed(opScriptParse, "missing trending_topic")
	case strings.TrimSpace(p.CharacterDescription) == "":
		return nil, derror.Malformed(opScriptParse, "missing character_description")
	case strings.TrimSpace(p.FullScript) == "":
		return nil, derror.Malformed(opScriptParse, "missing full_script")
	}

	want := model.ScenesDefault
	if adInjected {
		want = model.ScenesWithAd
	}
	if len(p.Scenes) != want {
		return nil, derror.Malformed(opScriptParse, "got %d scenes, want %d", len(p.Scenes), want)
	}

	char := strings.TrimSpace(p.CharacterDescription)
	scenes := make([]model.Scene, len(p.Scenes))
	for i, s := range p.Scenes {
		sc := model.Scene{Narration: strings.TrimSpace(s.Narration), VisualPrompt: strings.TrimSpace(s.VisualPrompt)}
		if adInjected && i == model.AdScenePosition-1 {
			sc = AdScene
		}
		if sc.Narration == "" || sc.VisualPrompt == "" {
			return nil, derror.Malformed(opScriptParse, "scene %d is missing narration or visual_prompt", i+1)
		}
		sc.VisualPrompt = fmt.Sprintf("(%s), %s", char, sc.VisualPrompt)
		scenes[i] = sc
	}

	return &Script{
		Topic:                strings.TrimSpace(p.TrendingTopic),
		CharacterDescription: char,
		FullScript:           strings.TrimSpace(p.FullScript),
		Scenes:               scenes,
	}, nil
}

// stripFences drops a ```json ... ``` wrapper some providers add.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
