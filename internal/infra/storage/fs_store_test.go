package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"autoshorts/internal/domain"
)

func TestFSStore(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	ref, err := s.Put(ctx, "01JOB/scene-01.mp4", "video/mp4", []byte("clip"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if ref != "01JOB/scene-01.mp4" {
		t.Fatalf("ref = %q", ref)
	}

	rc, ct, err := s.Open(ctx, ref)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	if string(b) != "clip" || ct != "video/mp4" {
		t.Fatalf("got %q %q", b, ct)
	}

	t.Run("overwrite replaces content", func(t *testing.T) {
		if _, err := s.Put(ctx, ref, "video/mp4", []byte("v2")); err != nil {
			t.Fatal(err)
		}
		rc, _, _ := s.Open(ctx, ref)
		defer rc.Close()
		b, _ := io.ReadAll(rc)
		if string(b) != "v2" {
			t.Fatalf("got %q", b)
		}
	})

	t.Run("missing ref", func(t *testing.T) {
		if _, _, err := s.Open(ctx, "01JOB/voice.wav"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("escaping the root is refused", func(t *testing.T) {
		for _, ref := range []string{"../outside.mp4", "a/../../b.wav", ""} {
			if _, _, err := s.Open(ctx, ref); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("%q: expected ErrInvalidArgument, got %v", ref, err)
			}
		}
	})
}
