package cmd

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/frontscan/pkg/config"
	"github.com/frontscan/pkg/telemetry"
	"github.com/frontscan/pkg/utils"
)

var (
	// Global flags
	configFile string
	verbose    bool

	cfg    *config.Config
	logger utils.Logger

	telemetryShutdown telemetry.ShutdownFunc
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "frontscan",
	Short: "A memory leak detection tool for frontend heap snapshots",
	Long: `frontscan analyzes heap snapshots captured from frontend applications
and detects memory leaks.

It diffs before/after snapshots, classifies leak candidates against known
leak patterns (detached DOM nodes, zombie components, dangling listeners,
timers, closures and more), traces retention chains back to GC roots and
produces an analysis report with fix suggestions.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return err
		}

		logLevel := utils.ParseLogLevel(cfg.Log.Level)
		if verbose {
			logLevel = utils.LevelDebug
		}
		logger = utils.NewDefaultLogger(logLevel, os.Stdout)

		shutdown, err := telemetry.Init(cmd.Context())
		if err != nil {
			logger.Warn("Failed to initialize telemetry: %v", err)
			return nil
		}
		telemetryShutdown = shutdown
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if telemetryShutdown != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := telemetryShutdown(ctx); err != nil {
				logger.Warn("Failed to shut down telemetry: %v", err)
			}
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file path (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	binName := BinName()
	rootCmd.Example = `  # Detect leaks across a directory of heap snapshots
  ` + binName + ` detect -s ./snapshots -f react

  # Detect leaks for a single component
  ` + binName + ` detect -s ./snapshots --component UserList

  # Detect, persist the run and upload the report
  ` + binName + ` detect -s ./snapshots --publish

  # List recent detection runs
  ` + binName + ` runs --limit 20`
}

// GetLogger returns the configured logger
func GetLogger() utils.Logger {
	return logger
}

// GetConfig returns the loaded configuration
func GetConfig() *config.Config {
	return cfg
}

// BinName returns the base name of the current executable
func BinName() string {
	return filepath.Base(os.Args[0])
}
