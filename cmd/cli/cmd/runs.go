package cmd

import (
	"github.com/spf13/cobra"

	"github.com/frontscan/internal/repository"
)

var (
	// Runs command flags
	runsLimit   int
	runsShowUID string
)

// runsCmd represents the runs command
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded detection runs",
	Long: `List detection runs recorded in the database, newest first.

With --show, prints the leak records of a single run instead.`,
	RunE: runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Number of runs to list")
	runsCmd.Flags().StringVar(&runsShowUID, "show", "", "Show the leak records of one run by UUID")
}

func runRuns(cmd *cobra.Command, args []string) error {
	log := GetLogger()
	conf := GetConfig()

	repo, err := repository.New(&conf.Database)
	if err != nil {
		return err
	}
	defer repo.Close()

	ctx := cmd.Context()

	if runsShowUID != "" {
		run, err := repo.GetRun(ctx, runsShowUID)
		if err != nil {
			return err
		}
		leaks, err := repo.GetLeaks(ctx, runsShowUID)
		if err != nil {
			return err
		}

		log.Info("Run %s (%s)", run.RunUUID, run.CreatedAt.Format("2006-01-02 15:04:05"))
		log.Info("  Framework: %s  Leaks: %d  Growth: %d bytes  Scanned: %d objects",
			run.Framework, run.LeakCount, run.MemoryGrowth, run.ObjectsScanned)
		for _, leak := range leaks {
			log.Info("  [%s] %s  object=%s size=%d", leak.Severity, leak.Pattern, leak.ObjectID, leak.Size)
			if leak.ComponentName != "" {
				log.Info("    Component: %s", leak.ComponentName)
			}
		}
		return nil
	}

	runs, err := repo.ListRuns(ctx, runsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		log.Info("No detection runs recorded.")
		return nil
	}

	log.Info("=== Detection Runs (%d) ===", len(runs))
	for _, run := range runs {
		status := "clean"
		if run.HasLeak {
			status = "leaks"
		}
		log.Info("  %s  %-5s  leaks=%-3d  framework=%-6s  %s",
			run.CreatedAt.Format("2006-01-02 15:04:05"), status, run.LeakCount,
			run.Framework, run.RunUUID)
	}
	return nil
}
