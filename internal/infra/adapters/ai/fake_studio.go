package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"autoshorts/internal/domain/ports/adapter"
	derror "autoshorts/internal/error"
)

var (
	_ adapter.ScriptGenerator  = (*FakeStudio)(nil)
	_ adapter.VoiceSynthesizer = (*FakeStudio)(nil)
	_ adapter.VideoRenderer    = (*FakeStudio)(nil)
	_ adapter.ClipFetcher      = (*FakeStudio)(nil)
)

// FakeStudio is an offline stand-in for local runs and the demo. Renders
// finish after RenderPolls polls. Keys listed in QuotaKeys answer every call
// with a quota error, which makes rotation observable without a network.
type FakeStudio struct {
	RenderPolls int
	Latency     time.Duration
	QuotaKeys   map[string]bool

	mu    sync.Mutex
	seq   int
	polls map[string]int
}

func NewFakeStudio() *FakeStudio {
	return &FakeStudio{RenderPolls: 1, polls: make(map[string]int)}
}

var sceneCount = regexp.MustCompile(`(?i)(\d+)\s+sc[eè]nes`)

func (f *FakeStudio) wait(ctx context.Context, op, apiKey string) error {
	if f.QuotaKeys[apiKey] {
		return derror.Quota(op, 429, errors.New(statusResourceExhausted))
	}
	if f.Latency <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(f.Latency):
		return nil
	}
}

// GenerateScript answers with a payload that satisfies both the studio and
// the trigger formats.
func (f *FakeStudio) GenerateScript(ctx context.Context, apiKey string, req adapter.ScriptRequest) (string, adapter.Usage, error) {
	if err := f.wait(ctx, "script.generate", apiKey); err != nil {
		return "", adapter.Usage{}, err
	}
	n := 4
	if m := sceneCount.FindStringSubmatch(req.Prompt); m != nil {
		n, _ = strconv.Atoi(m[1])
	}

	type scene struct {
		VisualPrompt string `json:"visual_prompt"`
		Narration    string `json:"narration"`
	}
	payload := struct {
		TrendingTopic        string  `json:"trending_topic"`
		CharacterDescription string  `json:"character_description"`
		FullScript           string  `json:"full_script"`
		Scenes               []scene `json:"scenes"`
		Topic                string  `json:"topic"`
		Script               string  `json:"script"`
		VisualPrompt         string  `json:"visual_prompt"`
	}{
		TrendingTopic:        "Le réveil à 5h du matin change tout",
		CharacterDescription: "un jeune homme en hoodie gris, lumière dorée",
		FullScript:           "Arrête de scroller. Voici pourquoi te lever tôt va transformer ta journée.",
		Topic:                "Le réveil à 5h du matin change tout",
		Script:               "Voix off : arrête de scroller, lève-toi plus tôt.",
		VisualPrompt:         "un réveil qui sonne dans une chambre baignée de lumière",
	}
	for i := 1; i <= n; i++ {
		payload.Scenes = append(payload.Scenes, scene{
			VisualPrompt: fmt.Sprintf("plan %d, chambre au lever du soleil", i),
			Narration:    fmt.Sprintf("Phrase numéro %d du script.", i),
		})
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", adapter.Usage{}, err
	}
	return string(b), adapter.Usage{PromptTokens: len(req.Prompt) / 4, CompletionTokens: len(b) / 4, TotalTokens: (len(req.Prompt) + len(b)) / 4}, nil
}

// Synthesize returns one second of silence.
func (f *FakeStudio) Synthesize(ctx context.Context, apiKey, text string) ([]byte, error) {
	if err := f.wait(ctx, "voice.synthesize", apiKey); err != nil {
		return nil, err
	}
	return make([]byte, 24000*2), nil
}

func (f *FakeStudio) SubmitRender(ctx context.Context, apiKey string, req adapter.RenderRequest) (adapter.RenderOperation, error) {
	if err := f.wait(ctx, "video.submit", apiKey); err != nil {
		return adapter.RenderOperation{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	name := fmt.Sprintf("operations/fake-%d", f.seq)
	if f.polls == nil {
		f.polls = make(map[string]int)
	}
	f.polls[name] = 0
	return f.operationLocked(name), nil
}

func (f *FakeStudio) PollRender(ctx context.Context, apiKey string, op adapter.RenderOperation) (adapter.RenderOperation, error) {
	if err := f.wait(ctx, "video.poll", apiKey); err != nil {
		return op, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.polls[op.Name]; !ok {
		return op, derror.Rejected("video.poll", 404, fmt.Errorf("unknown operation %s", op.Name))
	}
	f.polls[op.Name]++
	return f.operationLocked(op.Name), nil
}

func (f *FakeStudio) operationLocked(name string) adapter.RenderOperation {
	op := adapter.RenderOperation{Name: name}
	if f.polls[name] >= f.RenderPolls {
		op.Done = true
		op.VideoURI = "fake://" + name
	}
	return op
}

func (f *FakeStudio) FetchClip(ctx context.Context, apiKey, uri string) (*adapter.Clip, error) {
	if err := f.wait(ctx, opDownload, apiKey); err != nil {
		return nil, err
	}
	return &adapter.Clip{Data: []byte("fake mp4 for " + uri), ContentType: "video/mp4"}, nil
}
