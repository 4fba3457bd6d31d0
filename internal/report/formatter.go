// Package report renders and publishes analysis reports.
package report

import (
	"fmt"

	"github.com/frontscan/pkg/model"
	"github.com/frontscan/pkg/utils"
)

// maxPrintedLeaks bounds how many leaks the console summary lists.
const maxPrintedLeaks = 10

// Formatter renders an analysis report to the logger.
type Formatter struct{}

// Format outputs the report summary.
func (f *Formatter) Format(report *model.AnalysisReport, log utils.Logger) {
	result := report.Result

	log.Info("=== Memory Leak Analysis ===")
	if report.Framework != "" {
		log.Info("Framework:       %s", report.Framework)
	}
	log.Info("Objects Scanned: %d", result.ObjectsScanned)
	log.Info("Memory Growth:   %s", formatBytes(result.MemoryGrowth))
	log.Info("Duration:        %s", result.Duration)
	log.Info("")

	if !result.HasLeak {
		log.Info("No leaks detected.")
		return
	}

	log.Info("=== Leaks (%d) ===", len(result.Leaks))
	for i, leak := range result.Leaks {
		if i >= maxPrintedLeaks {
			log.Info("  ... and %d more leaks", len(result.Leaks)-maxPrintedLeaks)
			break
		}
		log.Info("  %2d. [%s] %s  %s", i+1, leak.Severity, leak.Pattern, formatBytes(leak.Size))
		log.Info("      %s", truncateString(leak.Description, 100))
		if leak.ComponentName != "" {
			log.Info("      Component: %s", leak.ComponentName)
		}
		f.printChains(report.Chains[leak.ID], log)
	}
}

func (f *Formatter) printChains(chains []*model.ReferenceChainInfo, log utils.Logger) {
	for _, c := range chains {
		log.Info("      Chain [%s]: %s", c.Type, truncateString(c.AbstractPath, 90))
	}
}

// formatBytes renders a byte count in a human-readable unit.
func formatBytes(n int64) string {
	abs := n
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(n)/float64(1<<20))
	case abs >= 1<<10:
		return fmt.Sprintf("%.2f KB", float64(n)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// truncateString cuts a string to at most maxLen runes.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
