package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nabijung/thepilatesapp-sub000/internal/app"
	"github.com/nabijung/thepilatesapp-sub000/internal/importer"
	"github.com/nabijung/thepilatesapp-sub000/internal/ledger"
	"github.com/nabijung/thepilatesapp-sub000/internal/migerr"
	"github.com/nabijung/thepilatesapp-sub000/internal/report"
	"github.com/nabijung/thepilatesapp-sub000/internal/source"
	"github.com/nabijung/thepilatesapp-sub000/internal/store"
	"github.com/nabijung/thepilatesapp-sub000/pkg/logger"
)

var importAllCmd = &cobra.Command{
	Use:   "import-all [export.json]",
	Short: "Import studios, people, lessons and notebooks",
	Long: `Run every import phase in dependency order: studios, instructors, students,
relationships, lessons, student lessons, notebooks, entries and, when the
export has it, the exercise catalog.

An existing mappings file is loaded and extended. Studios, people, memberships
and notebooks are matched on a second run; lessons, entries and the exercise
catalog are inserted again. Row errors are logged and counted; they do not
fail the run.`,
	Args: cobra.ExactArgs(1),
	RunE: runImportAll,
}

func init() {
	rootCmd.AddCommand(importAllCmd)
}

func runImportAll(cmd *cobra.Command, args []string) error {
	const script = "import-all"
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	s := settings(script, cfg)

	var (
		repo *store.Repo
		log  *zap.Logger
	)
	return app.Run(cmd.Context(), s, func(ctx context.Context) error {
		doc, err := source.Load(args[0], source.ImportAllKeys)
		if err != nil {
			log.Error("export rejected", logger.Error(err))
			return err
		}

		l, resumed, err := openLedger(cfg.MappingsFile, s.DryRun)
		if err != nil {
			log.Error("mappings file unreadable", logger.Error(err))
			return err
		}
		if resumed {
			log.Info("resuming from mappings file", zap.String("path", cfg.MappingsFile))
		}

		rep := report.New(script, time.Now(), s.DryRun)
		res, runErr := importer.New(doc, repo, log, importer.Options{}).Run(ctx, l, resumed)
		rep.Import(res)
		finish(rep, cfg, log)
		if runErr != nil {
			log.Error("import stopped", logger.Error(runErr))
		}
		return runErr
	}, &repo, &log)
}

// openLedger loads or starts the mappings file. Dry runs never read or
// write it.
func openLedger(path string, dryRun bool) (*ledger.Ledger, bool, error) {
	if dryRun {
		return ledger.New(""), false, nil
	}
	l, resumed, err := ledger.LoadOrNew(path)
	if err != nil {
		return nil, false, migerr.Fatal("load mappings", err)
	}
	return l, resumed, nil
}
