package adapter

import "context"

// ScriptRequest is one structured script generation call.
type ScriptRequest struct {
	Prompt            string
	SystemInstruction string
	Temperature       float32
	// Structured asks the provider to enforce the script JSON schema.
	Structured bool
}

// Usage for a single script call, when the provider reports it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ScriptGenerator returns the raw JSON text of a generated script.
type ScriptGenerator interface {
	GenerateScript(ctx context.Context, apiKey string, req ScriptRequest) (string, Usage, error)
}

// VoiceSynthesizer converts text to raw PCM16 samples. A nil slice with a nil
// error means the service answered without audio.
type VoiceSynthesizer interface {
	Synthesize(ctx context.Context, apiKey, text string) ([]byte, error)
}

type RenderRequest struct {
	Prompt      string
	AspectRatio string
	Resolution  string
	Count       int
}

// RenderOperation is a handle on a long-running render.
type RenderOperation struct {
	Name     string
	Done     bool
	VideoURI string
}

// VideoRenderer submits renders and polls their operations. Polling must use
// the credential that submitted the render.
type VideoRenderer interface {
	SubmitRender(ctx context.Context, apiKey string, req RenderRequest) (RenderOperation, error)
	PollRender(ctx context.Context, apiKey string, op RenderOperation) (RenderOperation, error)
}

// Clip is a downloaded rendered video.
type Clip struct {
	Data        []byte
	ContentType string
}

// ClipFetcher downloads a finished render with the submitting credential.
type ClipFetcher interface {
	FetchClip(ctx context.Context, apiKey, uri string) (*Clip, error)
}
