// Package s3 implements objectstore.Bucket against an S3-compatible endpoint,
// such as the S3 gateway of Supabase Storage.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/nabijung/thepilatesapp-sub000/internal/migerr"
	"github.com/nabijung/thepilatesapp-sub000/internal/objectstore"
	"github.com/nabijung/thepilatesapp-sub000/pkg/logger"
)

// Config holds the S3 endpoint settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
}

// API is the subset of the S3 client the bucket uses.
type API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Bucket stores objects in one S3 bucket.
type Bucket struct {
	client    API
	bucket    string
	publicURL func(path string) string
	log       *zap.Logger
}

// NewClient builds a path-style S3 client with static credentials.
func NewClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	}), nil
}

// New creates a bucket. publicURL maps an object path to the URL stored in
// the database, which for Supabase is the Storage public URL rather than the
// S3 endpoint.
func New(client API, bucket string, publicURL func(string) string, log *zap.Logger) *Bucket {
	return &Bucket{
		client:    client,
		bucket:    bucket,
		publicURL: publicURL,
		log:       log.With(logger.Scope("objectstore.s3")),
	}
}

// Exists implements objectstore.Bucket.
func (b *Bucket) Exists(ctx context.Context, path string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, migerr.Transient("head object", err)
	}
	return true, nil
}

// Upload implements objectstore.Bucket. If-None-Match keeps it from
// overwriting an object that appeared after the existence check.
func (b *Bucket) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(path),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		IfNoneMatch:   aws.String("*"),
	})
	if err != nil {
		if strings.Contains(err.Error(), "PreconditionFailed") {
			return objectstore.ErrExists
		}
		b.log.Error("failed to upload object", zap.String("key", path), logger.Error(err))
		return migerr.Transient("put object", err)
	}
	b.log.Debug("object uploaded", zap.String("key", path), zap.Int("size", len(data)))
	return nil
}

// PublicURL implements objectstore.Bucket.
func (b *Bucket) PublicURL(path string) string {
	return b.publicURL(path)
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	if errors.As(err, &nf) || errors.As(err, &nsk) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "NotFound") || strings.Contains(msg, "StatusCode: 404") || strings.Contains(msg, "NoSuchKey")
}
