// Package images copies legacy profile pictures and progress photos into the
// destination bucket and links each upload to its database row.
package images

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nabijung/thepilatesapp-sub000/internal/assets"
	"github.com/nabijung/thepilatesapp-sub000/internal/ledger"
	"github.com/nabijung/thepilatesapp-sub000/internal/migerr"
	"github.com/nabijung/thepilatesapp-sub000/internal/objectstore"
	"github.com/nabijung/thepilatesapp-sub000/internal/retry"
	"github.com/nabijung/thepilatesapp-sub000/internal/store"
	"github.com/nabijung/thepilatesapp-sub000/pkg/logger"
)

// Options tunes the pool.
type Options struct {
	// Concurrency is the batch size: every item of a batch runs at once.
	Concurrency int
	// BatchDelay is the pause between batches.
	BatchDelay time.Duration
	// Download retries transient source failures.
	Download retry.Policy
	// Limiter throttles source requests. Nil means unthrottled.
	Limiter *rate.Limiter
}

// Pool runs work items in fixed-size batches. Reconciliation writes for a
// batch finish before the next batch starts downloading.
type Pool struct {
	source assets.Source
	bucket objectstore.Bucket
	repo   *store.Repo
	joins  ledger.Reader
	opts   Options
	log    *zap.Logger
}

// NewPool creates a pool. joins is the studio_students ledger partition,
// consulted before the store when a progress photo needs its membership row.
func NewPool(src assets.Source, bucket objectstore.Bucket, repo *store.Repo, joins ledger.Reader, log *zap.Logger, opts Options) *Pool {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Pool{
		source: src,
		bucket: bucket,
		repo:   repo,
		joins:  joins,
		opts:   opts,
		log:    log.Named("images"),
	}
}

// Run processes items in order. Item failures are recorded on the items and
// in the summary; the returned error is set only when ctx ends first.
func (p *Pool) Run(ctx context.Context, items []*WorkItem) (*Summary, error) {
	sum := &Summary{}
	size := p.opts.Concurrency
	batches := (len(items) + size - 1) / size

	for b := 0; b < batches; b++ {
		if err := ctx.Err(); err != nil {
			sum.collect(items)
			return sum, migerr.Fatal("migrate images", err)
		}
		start := b * size
		batch := items[start:min(start+size, len(items))]

		log := p.log.With(zap.Int("batch", b+1), zap.Int("batches", batches))
		log.Info("batch started", zap.Int("items", len(batch)))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(size)
		for _, item := range batch {
			g.Go(func() error {
				p.process(gctx, item)
				return nil
			})
		}
		_ = g.Wait()

		p.reconcile(ctx, batch, sum)
		log.Info("batch finished")

		if b < batches-1 && p.opts.BatchDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(p.opts.BatchDelay):
			}
		}
	}

	sum.collect(items)
	return sum, nil
}

func (p *Pool) process(ctx context.Context, item *WorkItem) {
	log := p.log.With(zap.String("kind", string(item.Kind)), zap.String("legacy_id", item.LegacyID), zap.String("dest", item.DestPath))

	item.advance(Downloading)
	data, err := retry.Do(ctx, p.opts.Download, func(ctx context.Context) ([]byte, error) {
		if p.opts.Limiter != nil {
			if err := p.opts.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		return p.source.Fetch(ctx, item.SourcePath)
	}, func(attempt int, err error, wait time.Duration) {
		log.Warn("download failed, retrying", zap.Int("attempt", attempt), zap.Duration("wait", wait), logger.Error(err))
	})
	if err != nil {
		log.Error("download failed", zap.String("source", item.SourcePath), logger.Error(err))
		item.fail(err)
		return
	}
	item.advance(Downloaded)

	item.advance(Uploading)
	exists, err := p.bucket.Exists(ctx, item.DestPath)
	if err != nil {
		log.Error("existence check failed", logger.Error(err))
		item.fail(err)
		return
	}
	if exists {
		log.Info("object already exists, skipping upload")
		item.advance(Skipped)
		return
	}

	err = p.bucket.Upload(ctx, item.DestPath, data, objectstore.ContentTypeJPEG)
	switch {
	case errors.Is(err, objectstore.ErrExists):
		log.Info("object created concurrently, skipping upload")
		item.advance(Skipped)
	case err != nil:
		log.Error("upload failed", logger.Error(err))
		item.fail(err)
	default:
		log.Debug("uploaded", zap.Int("bytes", len(data)))
		item.advance(Succeeded)
	}
}

// reconcile links every freshly uploaded item of batch to its row.
func (p *Pool) reconcile(ctx context.Context, batch []*WorkItem, sum *Summary) {
	for _, item := range batch {
		if item.State != Succeeded {
			continue
		}
		var err error
		switch item.Kind {
		case KindProfile:
			err = p.repo.SetProfilePicture(ctx, item.StudentID, p.bucket.PublicURL(item.DestPath))
		case KindProgress:
			err = p.linkProgressPhoto(ctx, item)
		}
		if err != nil {
			p.log.Error("reconciliation write failed",
				zap.String("kind", string(item.Kind)), zap.String("dest", item.DestPath), logger.Error(err))
			sum.addFailure(item, "reconcile", err)
			continue
		}
		sum.Reconciled++
	}
}

func (p *Pool) linkProgressPhoto(ctx context.Context, item *WorkItem) error {
	joinID, ok := p.joins.Lookup(ledger.JoinKey(item.StudioLegacy, item.StudentLegacy))
	if !ok {
		var err error
		joinID, ok, err = p.repo.FindStudioStudent(ctx, item.StudioID, item.StudentID)
		if err != nil {
			return err
		}
		if !ok {
			return migerr.New(migerr.KindRow, "link progress photo", "student is not a member of the studio")
		}
	}

	url := p.bucket.PublicURL(item.DestPath)
	if _, exists, err := p.repo.FindProgressPhoto(ctx, joinID, url); err != nil || exists {
		return err
	}
	_, err := p.repo.InsertProgressPhoto(ctx, store.ProgressPhoto{
		StudioStudentID: joinID,
		URL:             url,
		TakenAt:         item.TakenAt,
	})
	return err
}
