package cmd

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nabijung/thepilatesapp-sub000/internal/app"
	"github.com/nabijung/thepilatesapp-sub000/internal/config"
	"github.com/nabijung/thepilatesapp-sub000/internal/migerr"
	"github.com/nabijung/thepilatesapp-sub000/internal/report"
	"github.com/nabijung/thepilatesapp-sub000/pkg/logger"
)

// errFailures ends a run that completed but must exit non-zero.
var errFailures = errors.New("completed with failures, see the summary and the error log")

// loadConfig reads env files and the environment, then applies flag and
// config file overrides. Commands that talk to the destination validate.
func loadConfig(validate bool) (*config.Config, error) {
	const op = "configuration"
	if err := config.LoadEnvFiles(envFiles...); err != nil {
		return nil, migerr.Fatal(op, err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, migerr.Fatal(op, err)
	}
	if v := viper.GetString("log-dir"); v != "" {
		cfg.LogDir = v
	}
	if v := viper.GetString("mappings"); v != "" {
		cfg.MappingsFile = v
	}
	if v := viper.GetInt("concurrency"); v > 0 {
		cfg.Images.Concurrency = v
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, migerr.Fatal(op, err)
		}
	}
	return cfg, nil
}

func settings(script string, cfg *config.Config) app.Settings {
	return app.Settings{
		Script:  script,
		Config:  cfg,
		DryRun:  viper.GetBool("dry-run"),
		NoColor: viper.GetBool("no-color"),
	}
}

// finish stamps, stores and prints a report. A report that cannot be
// written is logged; the run's own outcome decides the exit code.
func finish(rep *report.Report, cfg *config.Config, log *zap.Logger) {
	rep.Finish(time.Now())
	path, err := rep.Write(cfg.LogDir)
	if err != nil {
		log.Error("summary not written", logger.Error(err))
	} else {
		log.Info("summary written", zap.String("path", path))
	}
	if err := rep.Print(os.Stdout, viper.GetBool("no-color")); err != nil {
		log.Error("summary not printed", logger.Error(err))
	}
}
