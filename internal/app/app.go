// Package app assembles the object graph a command runs against.
package app

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/nabijung/thepilatesapp-sub000/internal/assets"
	"github.com/nabijung/thepilatesapp-sub000/internal/config"
	"github.com/nabijung/thepilatesapp-sub000/internal/httpclient"
	"github.com/nabijung/thepilatesapp-sub000/internal/migerr"
	"github.com/nabijung/thepilatesapp-sub000/internal/objectstore"
	bucketmem "github.com/nabijung/thepilatesapp-sub000/internal/objectstore/memstore"
	"github.com/nabijung/thepilatesapp-sub000/internal/objectstore/s3"
	"github.com/nabijung/thepilatesapp-sub000/internal/objectstore/supabase"
	"github.com/nabijung/thepilatesapp-sub000/internal/store"
	"github.com/nabijung/thepilatesapp-sub000/internal/store/memstore"
	"github.com/nabijung/thepilatesapp-sub000/internal/store/pg"
	"github.com/nabijung/thepilatesapp-sub000/internal/store/postgrest"
	"github.com/nabijung/thepilatesapp-sub000/pkg/logger"
)

// Settings are the per-invocation inputs of the graph.
type Settings struct {
	Script  string
	Config  *config.Config
	DryRun  bool
	NoColor bool
}

// Module provides the logger, destination store, bucket and asset source.
// fx only runs the constructors a command asks for.
var Module = fx.Module("studio-migrate",
	fx.Provide(
		NewLogger,
		func(l *logger.Logger) *zap.Logger { return l.Logger },
		NewStore,
		NewRepo,
		NewBucket,
		NewAssetSource,
	),
)

// NewLogger opens the command's log files; they are closed on stop.
func NewLogger(lc fx.Lifecycle, s Settings) (*logger.Logger, error) {
	l, err := logger.New(s.Script, logger.Options{
		Dir:     s.Config.LogDir,
		Level:   s.Config.LogLevel,
		NoColor: s.NoColor,
	})
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return l.Close() },
	})
	return l, nil
}

// NewStore selects the destination backend: memory for dry runs, Postgres
// when DATABASE_URL is set, PostgREST otherwise.
func NewStore(lc fx.Lifecycle, s Settings, log *zap.Logger) (store.Store, error) {
	cfg := s.Config
	switch {
	case s.DryRun:
		log.Warn("dry run: destination writes go to an in-memory store")
		return memstore.New(), nil
	case cfg.DatabaseURL != "":
		db, closeDB, err := pg.Open(context.Background(), cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error { return closeDB() },
		})
		return pg.New(db, log), nil
	default:
		return postgrest.New(httpclient.New(cfg.RESTURL(), cfg.ServiceRoleKey, cfg.HTTPTimeout), log), nil
	}
}

// NewRepo wraps the store with the typed table operations.
func NewRepo(st store.Store, log *zap.Logger) *store.Repo {
	return store.NewRepo(st, log)
}

// NewBucket selects the destination bucket: memory for dry runs, the S3
// endpoint when its keys are configured, the Storage REST API otherwise.
func NewBucket(s Settings, log *zap.Logger) (objectstore.Bucket, error) {
	cfg := s.Config
	switch {
	case s.DryRun:
		return bucketmem.New(), nil
	case cfg.Storage.UseS3():
		client, err := s3.NewClient(context.Background(), s3.Config{
			Endpoint:  cfg.Storage.S3Endpoint,
			AccessKey: cfg.Storage.S3AccessKey,
			SecretKey: cfg.Storage.S3SecretKey,
			Region:    cfg.Storage.S3Region,
			Bucket:    cfg.Storage.Bucket,
		})
		if err != nil {
			return nil, err
		}
		return s3.New(client, cfg.Storage.Bucket, cfg.PublicObjectURL, log), nil
	default:
		http := httpclient.New(cfg.StorageURL(), cfg.ServiceRoleKey, cfg.HTTPTimeout)
		return supabase.New(http, cfg.Storage.Bucket, log), nil
	}
}

// NewAssetSource reads legacy images through the GCS client when a
// credentials file is configured, and over public download URLs otherwise.
func NewAssetSource(lc fx.Lifecycle, s Settings, log *zap.Logger) (assets.Source, error) {
	fb := s.Config.Firebase
	httpSource := assets.NewHTTPSource(fb.DownloadBaseURL, fb.Bucket)
	if !fb.UseGCS() {
		return httpSource, nil
	}
	gcs, err := assets.NewGCSSource(context.Background(), fb.Bucket, fb.CredentialsFile, httpSource)
	if err != nil {
		return nil, err
	}
	log.Info("reading legacy images through Cloud Storage", zap.String("bucket", fb.Bucket))
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return gcs.Close() },
	})
	return gcs, nil
}

// Run builds the graph, fills targets, runs fn and stops the graph again.
// Failing to build the graph is fatal.
func Run(ctx context.Context, s Settings, fn func(ctx context.Context) error, targets ...any) error {
	a := fx.New(
		fx.NopLogger,
		fx.Supply(s),
		Module,
		fx.Populate(targets...),
	)
	if err := a.Err(); err != nil {
		return migerr.Fatal("initialize "+s.Script, err)
	}
	if err := a.Start(ctx); err != nil {
		return migerr.Fatal("start "+s.Script, err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = a.Stop(stopCtx)
	}()
	return fn(ctx)
}
