// Package cmd implements the studio-migrate command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile     string
	envFiles    []string
	logDir      string
	mappings    string
	concurrency int
	dryRun      bool
	noColor     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "studio-migrate",
	Short: "Move a legacy studio export into the new database",
	Long: `studio-migrate imports a legacy JSON export of studios, instructors, students,
lessons, notebooks and the exercise catalog into the relational destination.

Every row it creates or matches is recorded in a mappings file, which lets
import-images find the rows images belong to and lets cleanup-imported remove
what was imported.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// NewRootCommand returns the root command. Tests use it to drive subcommands.
func NewRootCommand() *cobra.Command {
	return rootCmd
}

// Execute runs the command line with ctx, which is cancelled on interrupt.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./studio-migrate.yaml)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env", ".env.local"}, "env files to load, later files override earlier ones")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "directory for log files and summaries (default LOG_DIR or logs)")
	rootCmd.PersistentFlags().StringVar(&mappings, "mappings", "", "mappings file (default MAPPINGS_FILE or id-mappings.json)")
	rootCmd.PersistentFlags().IntVar(&concurrency, "concurrency", 0, "images transferred per batch (default IMAGE_CONCURRENCY or 5)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "write to an in-memory destination and keep the mappings file untouched")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	viper.BindPFlag("log-dir", rootCmd.PersistentFlags().Lookup("log-dir"))
	viper.BindPFlag("mappings", rootCmd.PersistentFlags().Lookup("mappings"))
	viper.BindPFlag("concurrency", rootCmd.PersistentFlags().Lookup("concurrency"))
	viper.BindPFlag("dry-run", rootCmd.PersistentFlags().Lookup("dry-run"))
	viper.BindPFlag("no-color", rootCmd.PersistentFlags().Lookup("no-color"))
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("studio-migrate")
	}

	viper.SetEnvPrefix("STUDIO_MIGRATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, missing := err.(viper.ConfigFileNotFoundError); !missing && cfgFile != "" {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}
