package repository

import (
	"context"
	"io"
)

// ArtifactStore keeps generated audio and video payloads and hands out opaque
// references to them.
type ArtifactStore interface {
	Put(ctx context.Context, name, contentType string, data []byte) (ref string, err error)
	Open(ctx context.Context, ref string) (io.ReadCloser, string, error)
}
