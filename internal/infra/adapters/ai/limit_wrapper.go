package ai

import (
	"context"

	"autoshorts/internal/domain/ports/adapter"
)

// Studio is every generative port behind one value.
type Studio interface {
	adapter.ScriptGenerator
	adapter.VoiceSynthesizer
	adapter.VideoRenderer
}

// Compile-time check
var _ Studio = (*limitedStudio)(nil)

// limitedStudio caps in-flight generation calls. Polls are not limited; they
// are cheap and a render cannot finish without them.
type limitedStudio struct {
	inner Studio
	sem   chan struct{}
}

func NewLimitedStudio(inner Studio, maxConcurrent int) Studio {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedStudio{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedStudio) acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *limitedStudio) release() { <-l.sem }

func (l *limitedStudio) GenerateScript(ctx context.Context, apiKey string, req adapter.ScriptRequest) (string, adapter.Usage, error) {
	if err := l.acquire(ctx); err != nil {
		return "", adapter.Usage{}, err
	}
	defer l.release()
	return l.inner.GenerateScript(ctx, apiKey, req)
}

func (l *limitedStudio) Synthesize(ctx context.Context, apiKey, text string) ([]byte, error) {
	if err := l.acquire(ctx); err != nil {
		return nil, err
	}
	defer l.release()
	return l.inner.Synthesize(ctx, apiKey, text)
}

func (l *limitedStudio) SubmitRender(ctx context.Context, apiKey string, req adapter.RenderRequest) (adapter.RenderOperation, error) {
	if err := l.acquire(ctx); err != nil {
		return adapter.RenderOperation{}, err
	}
	defer l.release()
	return l.inner.SubmitRender(ctx, apiKey, req)
}

func (l *limitedStudio) PollRender(ctx context.Context, apiKey string, op adapter.RenderOperation) (adapter.RenderOperation, error) {
	return l.inner.PollRender(ctx, apiKey, op)
}
