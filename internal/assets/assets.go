// Package assets downloads legacy images from the Firebase storage bucket.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/go-resty/resty/v2"
	"google.golang.org/api/option"

	"github.com/nabijung/thepilatesapp-sub000/internal/migerr"
)

// Source fetches a legacy object by path or absolute URL.
type Source interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// HTTPSource downloads through the public Firebase download endpoint:
// <base>/v0/b/<bucket>/o/<escaped path>?alt=media. Absolute URLs are fetched
// as they are.
type HTTPSource struct {
	http   *resty.Client
	base   string
	bucket string
}

// NewHTTPSource creates an HTTP source. The client's timeout is left unset;
// callers bound each attempt through ctx.
func NewHTTPSource(baseURL, bucket string) *HTTPSource {
	return &HTTPSource{
		http:   resty.New().SetHeader("User-Agent", "studio-migrate"),
		base:   strings.TrimRight(baseURL, "/"),
		bucket: bucket,
	}
}

// URL resolves a legacy path to its download URL.
func (s *HTTPSource) URL(path string) string {
	if IsURL(path) {
		return path
	}
	return fmt.Sprintf("%s/v0/b/%s/o/%s?alt=media", s.base, s.bucket, url.PathEscape(strings.TrimLeft(path, "/")))
}

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context, path string) ([]byte, error) {
	resp, err := s.http.R().SetContext(ctx).Get(s.URL(path))
	if err != nil {
		return nil, migerr.Transient("download", err)
	}
	switch code := resp.StatusCode(); {
	case code >= 200 && code < 300:
		return resp.Body(), nil
	case code == http.StatusTooManyRequests || code >= 500:
		return nil, migerr.Transient("download", fmt.Errorf("HTTP %d for %s", code, path))
	default:
		return nil, migerr.New(migerr.KindRow, "download", fmt.Sprintf("HTTP %d for %s", code, path))
	}
}

// GCSSource reads objects with an authenticated Cloud Storage client.
type GCSSource struct {
	client *storage.Client
	bucket string
	http   *HTTPSource
}

// NewGCSSource opens a storage client with the service account credentials
// in credentialsFile. Absolute URLs are still fetched over plain HTTP.
func NewGCSSource(ctx context.Context, bucket, credentialsFile string, fallback *HTTPSource) (*GCSSource, error) {
	client, err := storage.NewClient(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(storage.ScopeReadOnly),
	)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSSource{client: client, bucket: bucket, http: fallback}, nil
}

// Fetch implements Source.
func (s *GCSSource) Fetch(ctx context.Context, path string) ([]byte, error) {
	if IsURL(path) && s.http != nil {
		return s.http.Fetch(ctx, path)
	}
	r, err := s.client.Bucket(s.bucket).Object(strings.TrimLeft(path, "/")).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, migerr.Wrap(migerr.KindRow, "download", err)
		}
		return nil, migerr.Transient("download", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, migerr.Transient("download", err)
	}
	return data, nil
}

// Close releases the storage client.
func (s *GCSSource) Close() error {
	return s.client.Close()
}

// IsURL reports whether path is an absolute http(s) URL.
func IsURL(path string) bool {
	return strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "http://")
}
