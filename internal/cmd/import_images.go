package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nabijung/thepilatesapp-sub000/internal/app"
	"github.com/nabijung/thepilatesapp-sub000/internal/assets"
	"github.com/nabijung/thepilatesapp-sub000/internal/config"
	"github.com/nabijung/thepilatesapp-sub000/internal/images"
	"github.com/nabijung/thepilatesapp-sub000/internal/ledger"
	"github.com/nabijung/thepilatesapp-sub000/internal/migerr"
	"github.com/nabijung/thepilatesapp-sub000/internal/objectstore"
	"github.com/nabijung/thepilatesapp-sub000/internal/report"
	"github.com/nabijung/thepilatesapp-sub000/internal/retry"
	"github.com/nabijung/thepilatesapp-sub000/internal/source"
	"github.com/nabijung/thepilatesapp-sub000/internal/store"
	"github.com/nabijung/thepilatesapp-sub000/pkg/logger"
)

var importImagesCmd = &cobra.Command{
	Use:   "import-images [export.json]",
	Short: "Copy profile pictures and progress photos",
	Long: `Copy legacy profile pictures and progress photos into the destination bucket
and link each upload to its student or studio membership.

Needs the mappings file written by import-all. Objects already in the bucket
are not uploaded again. Any failed image makes the command exit non-zero.`,
	Args: cobra.ExactArgs(1),
	RunE: runImportImages,
}

func init() {
	rootCmd.AddCommand(importImagesCmd)
}

func runImportImages(cmd *cobra.Command, args []string) error {
	const (
		script = "import-images"
		op     = "import images"
	)
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	s := settings(script, cfg)
	if s.DryRun {
		return migerr.Precondition(op, "--dry-run is not supported: images are linked to rows import-all already created")
	}

	var (
		repo   *store.Repo
		bucket objectstore.Bucket
		src    assets.Source
		log    *zap.Logger
	)
	return app.Run(cmd.Context(), s, func(ctx context.Context) error {
		l, err := ledger.Load(cfg.MappingsFile)
		if errors.Is(err, ledger.ErrNotFound) {
			err = migerr.Precondition(op, err.Error()+"; run import-all first")
		}
		if err != nil {
			log.Error("mappings file unavailable", logger.Error(err))
			return err
		}

		doc, err := source.Load(args[0], source.ImagesKeys)
		if err != nil {
			log.Error("export rejected", logger.Error(err))
			return err
		}

		items, dropped := images.BuildItems(doc, l, log)
		log.Info("work items built", zap.Int("items", len(items)), zap.Int("dropped", dropped))

		pool := images.NewPool(src, bucket, repo, l.Reader(ledger.StudioStudents), log, poolOptions(cfg.Images))
		rep := report.New(script, time.Now(), s.DryRun)
		sum, runErr := pool.Run(ctx, items)
		sum.Dropped = dropped
		rep.Images(sum)
		finish(rep, cfg, log)

		if runErr != nil {
			log.Error("image migration stopped", logger.Error(runErr))
			return runErr
		}
		if sum.HasFailures() {
			return errFailures
		}
		return nil
	}, &repo, &bucket, &src, &log)
}

func poolOptions(c config.ImagesConfig) images.Options {
	var limiter *rate.Limiter
	if c.DownloadRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(c.DownloadRPS), max(1, c.Concurrency))
	}
	return images.Options{
		Concurrency: c.Concurrency,
		BatchDelay:  c.BatchDelay,
		Download: retry.Policy{
			MaxRetries:     c.MaxRetries,
			Delay:          c.RetryDelay,
			MaxDelay:       8 * c.RetryDelay,
			Jitter:         0.2,
			AttemptTimeout: c.DownloadTimeout,
		},
		Limiter: limiter,
	}
}
