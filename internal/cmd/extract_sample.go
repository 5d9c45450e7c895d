package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nabijung/thepilatesapp-sub000/internal/app"
	"github.com/nabijung/thepilatesapp-sub000/internal/migerr"
	"github.com/nabijung/thepilatesapp-sub000/internal/report"
	"github.com/nabijung/thepilatesapp-sub000/internal/sample"
	"github.com/nabijung/thepilatesapp-sub000/internal/source"
	"github.com/nabijung/thepilatesapp-sub000/pkg/logger"
)

var (
	sampleOut       string
	sampleStudios   int
	samplePerStudio int
)

var extractSampleCmd = &cobra.Command{
	Use:   "extract-sample [export.json]",
	Short: "Cut a small consistent fixture out of an export",
	Long: `Write a subset of the export that keeps its references intact: a few studios,
some of their instructors and students, and the lessons, notebooks, entries and
photos those reference. Records are picked in id order, so the same export
always yields the same sample.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtractSample,
}

func init() {
	extractSampleCmd.Flags().StringVar(&sampleOut, "out", "sample-data.json", "output file")
	extractSampleCmd.Flags().IntVar(&sampleStudios, "studios", sample.DefaultOptions.Studios, "number of studios")
	extractSampleCmd.Flags().IntVar(&samplePerStudio, "per-studio", sample.DefaultOptions.PerStudio, "instructors and students per studio")
	rootCmd.AddCommand(extractSampleCmd)
}

var sampleKeys = []string{
	source.KeyStudios, source.KeyInstructors, source.KeyStudents, source.KeyLessons,
	source.KeyNotebooks, source.KeyEntries, source.KeyPhotos, source.KeyExerciseDataLists,
}

func runExtractSample(cmd *cobra.Command, args []string) error {
	const script = "extract-sample"
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}

	var log *zap.Logger
	return app.Run(cmd.Context(), settings(script, cfg), func(context.Context) error {
		doc, err := source.Load(args[0], source.ImportAllKeys)
		if err != nil {
			log.Error("export rejected", logger.Error(err))
			return err
		}

		rep := report.New(script, time.Now(), false)
		s := sample.Extract(doc, sample.Options{Studios: sampleStudios, PerStudio: samplePerStudio})
		if err := sample.Write(sampleOut, s); err != nil {
			err = migerr.Fatal("write sample", err)
			log.Error("sample not written", logger.Error(err))
			return err
		}
		log.Info("sample written", zap.String("path", sampleOut))

		rep.Sample(s.Counts(), sampleKeys)
		finish(rep, cfg, log)
		return nil
	}, &log)
}
