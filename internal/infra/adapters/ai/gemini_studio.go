package ai

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"autoshorts/internal/domain/ports/adapter"
	derror "autoshorts/internal/error"
)

var (
	_ adapter.ScriptGenerator  = (*GeminiStudio)(nil)
	_ adapter.VoiceSynthesizer = (*GeminiStudio)(nil)
	_ adapter.VideoRenderer    = (*GeminiStudio)(nil)
)

type GeminiOptions struct {
	BaseURL    string
	TextModel  string
	TTSModel   string
	VideoModel string
	Voice      string
}

// GeminiStudio talks to the Gemini API for script, voice and video. The
// credential is chosen per call; one SDK client is kept per credential.
type GeminiStudio struct {
	opts GeminiOptions
	log  *zerolog.Logger

	mu      sync.Mutex
	clients map[string]*genai.Client
}

func NewGeminiStudio(opts GeminiOptions, logger *zerolog.Logger) *GeminiStudio {
	if opts.TextModel == "" {
		opts.TextModel = "gemini-2.5-flash"
	}
	if opts.TTSModel == "" {
		opts.TTSModel = "gemini-2.5-flash-preview-tts"
	}
	if opts.VideoModel == "" {
		opts.VideoModel = "veo-3.1-fast-generate-preview"
	}
	if opts.Voice == "" {
		opts.Voice = "Kore"
	}
	l := logger.With().Str("component", "GeminiStudio").Logger()
	return &GeminiStudio{opts: opts, log: &l, clients: make(map[string]*genai.Client)}
}

func (g *GeminiStudio) client(ctx context.Context, op, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, derror.Configuration(op, "empty API key")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.clients[apiKey]; ok {
		return c, nil
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: g.opts.BaseURL,
		},
	})
	if err != nil {
		return nil, derror.Configuration(op, "gemini client: "+err.Error())
	}
	g.clients[apiKey] = c
	return c, nil
}

// scriptSchema is the structured output the pipeline validates.
var scriptSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"trending_topic":        {Type: genai.TypeString},
		"character_description": {Type: genai.TypeString},
		"full_script":           {Type: genai.TypeString},
		"scenes": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"visual_prompt": {Type: genai.TypeString},
					"narration":     {Type: genai.TypeString},
				},
				Required: []string{"visual_prompt", "narration"},
			},
		},
	},
	Required: []string{"trending_topic", "character_description", "full_script", "scenes"},
}

func (g *GeminiStudio) GenerateScript(ctx context.Context, apiKey string, req adapter.ScriptRequest) (string, adapter.Usage, error) {
	const op = "script.generate"
	c, err := g.client(ctx, op, apiKey)
	if err != nil {
		return "", adapter.Usage{}, err
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(req.Temperature),
		ResponseMIMEType: "application/json",
	}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemInstruction}}}
	}
	if req.Structured {
		cfg.ResponseSchema = scriptSchema
	}

	resp, err := c.Models.GenerateContent(ctx, g.opts.TextModel, userContent(req.Prompt), cfg)
	if err != nil {
		return "", adapter.Usage{}, classify(op, err)
	}

	text := responseText(resp)
	if text == "" {
		return "", adapter.Usage{}, derror.Malformed(op, "empty response from %s", g.opts.TextModel)
	}
	u := adapter.Usage{}
	if resp.UsageMetadata != nil {
		u.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		u.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		u.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return text, u, nil
}

// Synthesize returns raw 16-bit PCM at 24 kHz mono, or nil when the model
// answered without audio.
func (g *GeminiStudio) Synthesize(ctx context.Context, apiKey, text string) ([]byte, error) {
	const op = "voice.synthesize"
	c, err := g.client(ctx, op, apiKey)
	if err != nil {
		return nil, err
	}

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: g.opts.Voice},
			},
		},
	}
	resp, err := c.Models.GenerateContent(ctx, g.opts.TTSModel, userContent(text), cfg)
	if err != nil {
		return nil, classify(op, err)
	}
	for _, part := range firstParts(resp) {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData.Data, nil
		}
	}
	g.log.Warn().Str("model", g.opts.TTSModel).Msg("voice response carried no audio")
	return nil, nil
}

func (g *GeminiStudio) SubmitRender(ctx context.Context, apiKey string, req adapter.RenderRequest) (adapter.RenderOperation, error) {
	const op = "video.submit"
	c, err := g.client(ctx, op, apiKey)
	if err != nil {
		return adapter.RenderOperation{}, err
	}
	count := int32(req.Count)
	if count <= 0 {
		count = 1
	}
	res, err := c.Models.GenerateVideos(ctx, g.opts.VideoModel, req.Prompt, nil, &genai.GenerateVideosConfig{
		NumberOfVideos: count,
		AspectRatio:    req.AspectRatio,
		Resolution:     req.Resolution,
	})
	if err != nil {
		return adapter.RenderOperation{}, classify(op, err)
	}
	return toRenderOperation(op, res)
}

func (g *GeminiStudio) PollRender(ctx context.Context, apiKey string, current adapter.RenderOperation) (adapter.RenderOperation, error) {
	const op = "video.poll"
	c, err := g.client(ctx, op, apiKey)
	if err != nil {
		return current, err
	}
	res, err := c.Operations.GetVideosOperation(ctx, &genai.GenerateVideosOperation{Name: current.Name}, nil)
	if err != nil {
		return current, classify(op, err)
	}
	return toRenderOperation(op, res)
}

func toRenderOperation(op string, res *genai.GenerateVideosOperation) (adapter.RenderOperation, error) {
	if res == nil {
		return adapter.RenderOperation{}, derror.Malformed(op, "no operation returned")
	}
	out := adapter.RenderOperation{Name: res.Name, Done: res.Done}
	if res.Done && len(res.Error) > 0 {
		return out, classifyOperation(op, res.Error)
	}
	if res.Response != nil {
		for _, v := range res.Response.GeneratedVideos {
			if v != nil && v.Video != nil && v.Video.URI != "" {
				out.VideoURI = v.Video.URI
				break
			}
		}
	}
	return out, nil
}

func userContent(text string) []*genai.Content {
	return []*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{{Text: text}}}}
}

func firstParts(resp *genai.GenerateContentResponse) []*genai.Part {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	return resp.Candidates[0].Content.Parts
}

func responseText(resp *genai.GenerateContentResponse) string {
	var text string
	for _, p := range firstParts(resp) {
		if p != nil && p.Text != "" && !p.Thought {
			text += p.Text
		}
	}
	return text
}
