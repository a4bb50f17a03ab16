package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/genai"

	derror "autoshorts/internal/error"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		err    error
		kind   derror.Kind
		status int
	}{
		{"rate limited", genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}, derror.KindQuotaExceeded, 429},
		{"status only", genai.APIError{Code: 400, Status: "resource_exhausted"}, derror.KindQuotaExceeded, 400},
		{"wrapped", fmt.Errorf("call: %w", genai.APIError{Code: 429}), derror.KindQuotaExceeded, 429},
		{"not found", genai.APIError{Code: 404, Status: "NOT_FOUND"}, derror.KindUpstreamRejected, 404},
		{"forbidden", genai.APIError{Code: 403, Status: "PERMISSION_DENIED"}, derror.KindUpstreamRejected, 403},
		{"transport", errors.New("connection reset"), derror.KindUpstreamRejected, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify("script.generate", tc.err)
			if k := derror.KindOf(got); k != tc.kind {
				t.Fatalf("kind = %v, want %v", k, tc.kind)
			}
			if s := derror.StatusOf(got); s != tc.status {
				t.Fatalf("status = %d, want %d", s, tc.status)
			}
		})
	}
}

func TestClassify_ContextPassesThrough(t *testing.T) {
	t.Parallel()
	for _, err := range []error{context.Canceled, fmt.Errorf("poll: %w", context.DeadlineExceeded)} {
		got := classify("video.poll", err)
		if got != err {
			t.Fatalf("context error rewritten: %v", got)
		}
		if derror.KindOf(got) != derror.KindUnknown {
			t.Fatalf("context error tagged as %v", derror.KindOf(got))
		}
	}
	if classify("x", nil) != nil {
		t.Fatal("nil should stay nil")
	}
}

func TestClassifyStatus(t *testing.T) {
	t.Parallel()
	if !derror.Is(classifyStatus(opDownload, 429, errors.New("slow down")), derror.KindQuotaExceeded) {
		t.Fatal("429 should be quota")
	}
	if !derror.OperatorAction(classifyStatus(opDownload, 403, errors.New("denied"))) {
		t.Fatal("403 should need operator action")
	}
}

func TestClassifyOperation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		fields map[string]any
		kind   derror.Kind
		status int
	}{
		{"rpc code", map[string]any{"code": float64(8), "message": "quota"}, derror.KindQuotaExceeded, 429},
		{"status name", map[string]any{"status": "RESOURCE_EXHAUSTED"}, derror.KindQuotaExceeded, 429},
		{"int code", map[string]any{"code": 8}, derror.KindQuotaExceeded, 429},
		{"invalid argument", map[string]any{"code": float64(3), "message": "bad prompt"}, derror.KindUpstreamRejected, 0},
		{"no code", map[string]any{"message": "internal"}, derror.KindUpstreamRejected, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyOperation("video.poll", tc.fields)
			if k := derror.KindOf(got); k != tc.kind {
				t.Fatalf("kind = %v, want %v", k, tc.kind)
			}
			if s := derror.StatusOf(got); s != tc.status {
				t.Fatalf("status = %d, want %d", s, tc.status)
			}
		})
	}
}

func TestToRenderOperation(t *testing.T) {
	t.Parallel()

	_, err := toRenderOperation("video.poll", &genai.GenerateVideosOperation{
		Name:  "operations/1",
		Done:  true,
		Error: map[string]any{"code": float64(8), "status": "RESOURCE_EXHAUSTED"},
	})
	if !derror.Is(err, derror.KindQuotaExceeded) {
		t.Fatalf("exhausted render should rotate, got %v", err)
	}

	out, err := toRenderOperation("video.poll", &genai.GenerateVideosOperation{
		Name: "operations/2",
		Done: true,
		Response: &genai.GenerateVideosResponse{GeneratedVideos: []*genai.GeneratedVideo{
			{Video: &genai.Video{URI: "https://example.test/v.mp4"}},
		}},
	})
	if err != nil || !out.Done || out.VideoURI != "https://example.test/v.mp4" {
		t.Fatalf("out = %+v, err = %v", out, err)
	}
}
