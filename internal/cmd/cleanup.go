package cmd

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nabijung/thepilatesapp-sub000/internal/app"
	"github.com/nabijung/thepilatesapp-sub000/internal/cleanup"
	"github.com/nabijung/thepilatesapp-sub000/internal/ledger"
	"github.com/nabijung/thepilatesapp-sub000/internal/migerr"
	"github.com/nabijung/thepilatesapp-sub000/internal/report"
	"github.com/nabijung/thepilatesapp-sub000/internal/store"
	"github.com/nabijung/thepilatesapp-sub000/pkg/logger"
)

var cleanupForce bool

var cleanupCmd = &cobra.Command{
	Use:   "cleanup-imported",
	Short: "Delete every row an import created",
	Long: `Delete the rows recorded in the mappings file, children before parents, plus
exercise catalog rows created in the last 24 hours.

Deleting studios, people and the catalog asks for confirmation unless --force
is given. A failing step is logged and the next one still runs. When every
step completed, the mappings file is renamed to a timestamped backup.

With --dry-run the plan is printed and nothing is deleted.`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().BoolVar(&cleanupForce, "force", false, "delete without asking for confirmation")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	const script = "cleanup-imported"
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	s := settings(script, cfg)
	// The plan is read from the real destination even for a dry run.
	preview := s.DryRun
	s.DryRun = false

	var (
		repo *store.Repo
		log  *zap.Logger
	)
	return app.Run(cmd.Context(), s, func(ctx context.Context) error {
		l, err := ledger.Load(cfg.MappingsFile)
		if err != nil {
			err = migerr.Fatal("load mappings", err)
			log.Error("nothing to clean up", logger.Error(err))
			return err
		}

		start := time.Now()
		plan, err := cleanup.NewPlanner(repo, log).Plan(ctx, l, start)
		if err != nil {
			log.Error("cleanup not planned", logger.Error(err))
			return err
		}

		rep := report.New(script, start, preview)
		if preview {
			rep.Cleanup(cleanup.Preview(plan))
			finish(rep, cfg, log)
			return nil
		}

		var confirm cleanup.Confirmer = cleanup.Force
		if !cleanupForce {
			confirm = cleanup.NewPrompter(os.Stdin, os.Stderr)
		}
		res, runErr := cleanup.NewExecutor(repo, log, nil).Execute(ctx, plan, confirm)
		rep.Cleanup(res)
		finish(rep, cfg, log)
		if runErr != nil {
			log.Error("cleanup stopped", logger.Error(runErr))
		}
		return runErr
	}, &repo, &log)
}
