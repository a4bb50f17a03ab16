package usecase

import (
	"context"
	"errors"
	"time"

	"autoshorts/internal/domain/ports/adapter"
	derror "autoshorts/internal/error"
)

// clipRenderer runs the submit, poll and download sequence for one clip.
// All three calls use the credential handed to render so a single executor
// attempt covers the whole sequence.
type clipRenderer struct {
	video       adapter.VideoRenderer
	clips       adapter.ClipFetcher
	sleep       func(ctx context.Context, d time.Duration) error
	interval    time.Duration
	maxPolls    int
	aspectRatio string
	resolution  string
}

type renderedClip struct {
	URI  string
	Clip *adapter.Clip
}

func (r *clipRenderer) render(ctx context.Context, key, prompt string) (*renderedClip, error) {
	op, err := r.video.SubmitRender(ctx, key, adapter.RenderRequest{
		Prompt:      prompt,
		AspectRatio: r.aspectRatio,
		Resolution:  r.resolution,
		Count:       1,
	})
	if err != nil {
		return nil, err
	}
	op, err = r.await(ctx, key, op)
	if err != nil {
		return nil, err
	}
	clip, err := r.clips.FetchClip(ctx, key, op.VideoURI)
	if err != nil {
		return nil, err
	}
	return &renderedClip{URI: op.VideoURI, Clip: clip}, nil
}

func (r *clipRenderer) await(ctx context.Context, key string, op adapter.RenderOperation) (adapter.RenderOperation, error) {
	for polls := 0; !op.Done; polls++ {
		if polls >= r.maxPolls {
			return op, derror.Timeout("video.poll", "operation %s not done after %d polls", op.Name, polls)
		}
		if err := r.sleep(ctx, r.interval); err != nil {
			return op, err
		}
		next, err := r.video.PollRender(ctx, key, op)
		if err != nil {
			return op, err
		}
		op = next
	}
	if op.VideoURI == "" {
		return op, derror.Rejected("video.poll", 0, errors.New("no video URI returned"))
	}
	return op, nil
}
