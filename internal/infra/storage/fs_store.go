// Package storage keeps generated artifacts on the local filesystem.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"autoshorts/internal/domain"
	"autoshorts/internal/domain/ports/repository"
)

var _ repository.ArtifactStore = (*FSStore)(nil)

// FSStore writes each artifact under root. The returned ref is the
// slash-separated relative name, which is also what Open accepts.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact directory: %w", err)
	}
	return &FSStore{root: root}, nil
}

var contentTypes = map[string]string{
	".wav": "audio/wav",
	".mp4": "video/mp4",
	".pcm": "application/octet-stream",
}

func contentTypeOf(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (s *FSStore) resolve(ref string) (string, error) {
	clean := path.Clean("/" + ref)[1:]
	if clean == "" || clean == "." || strings.Contains(ref, "..") {
		return "", fmt.Errorf("%w: artifact ref %q", domain.ErrInvalidArgument, ref)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// Put writes through a temp file and rename so readers never see a partial
// artifact.
func (s *FSStore) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".part-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return path.Clean("/" + name)[1:], nil
}

func (s *FSStore) Open(ctx context.Context, ref string) (io.ReadCloser, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	full, err := s.resolve(ref)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(full)
	if os.IsNotExist(err) {
		return nil, "", domain.ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	return f, contentTypeOf(full), nil
}
