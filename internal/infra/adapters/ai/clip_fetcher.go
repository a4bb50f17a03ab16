package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"autoshorts/internal/domain/ports/adapter"
	derror "autoshorts/internal/error"
)

var _ adapter.ClipFetcher = (*HTTPClipFetcher)(nil)

const (
	opDownload   = "video.download"
	maxClipBytes = 256 << 20
	maxErrorBody = 2 << 10
)

// HTTPClipFetcher downloads rendered clips. The download URI only answers
// when the submitting credential is passed as the key query parameter.
type HTTPClipFetcher struct {
	client *http.Client
}

func NewHTTPClipFetcher(timeout time.Duration) *HTTPClipFetcher {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &HTTPClipFetcher{client: &http.Client{Timeout: timeout}}
}

// WithKey appends key=<apiKey> to uri, keeping any existing query.
func WithKey(uri, apiKey string) string {
	sep := "?"
	if strings.Contains(uri, "?") {
		sep = "&"
	}
	return uri + sep + "key=" + url.QueryEscape(apiKey)
}

func (f *HTTPClipFetcher) FetchClip(ctx context.Context, apiKey, uri string) (*adapter.Clip, error) {
	if uri == "" {
		return nil, derror.Rejected(opDownload, 0, errors.New("empty video URI"))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, WithKey(uri, apiKey), nil)
	if err != nil {
		return nil, derror.Rejected(opDownload, 0, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, derror.Rejected(opDownload, 0, errors.New(redactKey(err.Error(), apiKey)))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, classifyStatus(opDownload, resp.StatusCode, fmt.Errorf("download http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	// An error document served with 200 is still a failure.
	ct := resp.Header.Get("Content-Type")
	if strings.Contains(ct, "application/json") || strings.Contains(ct, "text/xml") {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, derror.Rejected(opDownload, resp.StatusCode, fmt.Errorf("download returned %s instead of video: %s", ct, strings.TrimSpace(string(body))))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxClipBytes+1))
	if err != nil {
		return nil, derror.Rejected(opDownload, resp.StatusCode, err)
	}
	if len(data) > maxClipBytes {
		return nil, derror.Rejected(opDownload, resp.StatusCode, fmt.Errorf("clip larger than %d bytes", maxClipBytes))
	}
	if len(data) == 0 {
		return nil, derror.Malformed(opDownload, "empty clip body")
	}
	if ct == "" {
		ct = "video/mp4"
	}
	return &adapter.Clip{Data: data, ContentType: ct}, nil
}

func redactKey(s, key string) string {
	if key == "" {
		return s
	}
	s = strings.ReplaceAll(s, url.QueryEscape(key), "***")
	return strings.ReplaceAll(s, key, "***")
}
