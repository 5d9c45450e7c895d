// Package supabase implements objectstore.Bucket over the Supabase Storage REST API.
package supabase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/nabijung/thepilatesapp-sub000/internal/httpclient"
	"github.com/nabijung/thepilatesapp-sub000/internal/objectstore"
	"github.com/nabijung/thepilatesapp-sub000/internal/store"
	"github.com/nabijung/thepilatesapp-sub000/pkg/logger"
)

// Bucket is one Storage bucket reached through <project>/storage/v1.
type Bucket struct {
	http    *resty.Client
	name    string
	baseURL string
	log     *zap.Logger
}

// New creates a bucket client. http must carry the storage base URL and
// service role headers.
func New(http *resty.Client, bucket string, log *zap.Logger) *Bucket {
	return &Bucket{
		http:    http,
		name:    bucket,
		baseURL: strings.TrimRight(http.BaseURL, "/"),
		log:     log.With(logger.Scope("objectstore.supabase")),
	}
}

func (b *Bucket) objectPath(path string) string {
	return "/object/" + b.name + "/" + strings.TrimLeft(path, "/")
}

// Exists implements objectstore.Bucket. Storage answers a missing object with
// 404, or with 400 and a 404 status in the body.
func (b *Bucket) Exists(ctx context.Context, path string) (bool, error) {
	resp, err := b.http.R().SetContext(ctx).Head(b.objectPath(path))
	if err == nil && (resp.StatusCode() == http.StatusNotFound || resp.StatusCode() == http.StatusBadRequest) {
		return false, nil
	}
	if err := httpclient.Check("head object", resp, err); err != nil {
		return false, err
	}
	return true, nil
}

// Upload implements objectstore.Bucket. It never overwrites.
func (b *Bucket) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	resp, err := b.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetHeader("x-upsert", "false").
		SetBody(data).
		Post(b.objectPath(path))
	if err := httpclient.Check("upload object", resp, err); err != nil {
		if errors.Is(err, store.ErrConflict) || (resp != nil && strings.Contains(resp.String(), "Duplicate")) {
			return objectstore.ErrExists
		}
		return err
	}
	b.log.Debug("object uploaded", zap.String("path", path), zap.Int("size", len(data)))
	return nil
}

// PublicURL implements objectstore.Bucket.
func (b *Bucket) PublicURL(path string) string {
	return b.baseURL + "/object/public/" + b.name + "/" + strings.TrimLeft(path, "/")
}
