package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nabijung/thepilatesapp-sub000/internal/app"
	"github.com/nabijung/thepilatesapp-sub000/internal/importer"
	"github.com/nabijung/thepilatesapp-sub000/internal/report"
	"github.com/nabijung/thepilatesapp-sub000/internal/source"
	"github.com/nabijung/thepilatesapp-sub000/internal/store"
	"github.com/nabijung/thepilatesapp-sub000/pkg/logger"
)

var importExercisesCmd = &cobra.Command{
	Use:   "import-exercises [export.json]",
	Short: "Import the exercise catalog only",
	Long: `Copy exerciseDataLists into exercise_lists and exercises.

The destination columns are checked before the first insert. Unlike import-all,
any failed insert makes the command exit non-zero.`,
	Args: cobra.ExactArgs(1),
	RunE: runImportExercises,
}

func init() {
	rootCmd.AddCommand(importExercisesCmd)
}

func runImportExercises(cmd *cobra.Command, args []string) error {
	const script = "import-exercises"
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
		doc, err := source.Load(args[0], source.ExercisesKeys)
		if err != nil {
			log.Error("export rejected", logger.Error(err))
			return err
		}

		rep := report.New(script, time.Now(), s.DryRun)
		counts, err := importer.New(doc, repo, log, importer.Options{}).ImportExercises(ctx)
		rep.Exercises(counts)
		finish(rep, cfg, log)
		if err != nil {
			log.Error("exercise catalog not imported", logger.Error(err))
			return err
		}
		if counts.Failed > 0 {
			return errFailures
		}
		return nil
	}, &repo, &log)
}
