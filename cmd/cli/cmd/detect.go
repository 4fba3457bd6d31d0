package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/frontscan/internal/chain"
	"github.com/frontscan/internal/detector"
	"github.com/frontscan/internal/diff"
	"github.com/frontscan/internal/pattern"
	"github.com/frontscan/internal/report"
	"github.com/frontscan/internal/repository"
	"github.com/frontscan/internal/snapshot"
	"github.com/frontscan/internal/storage"
	"github.com/frontscan/pkg/config"
	"github.com/frontscan/pkg/model"
	"github.com/frontscan/pkg/utils"
)

var (
	// Detect command flags
	snapshotDir   string
	framework     string
	componentName string
	componentPath string
	runUUID       string
	publishRun    bool
	noTrace       bool
)

// detectCmd represents the detect command
var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect memory leaks from heap snapshot files",
	Long: `Detect memory leaks by replaying heap snapshot JSON files.

The detect command consumes the *.json files in the snapshot directory in
lexical order as a before/after snapshot sequence, diffs them, classifies
the growth candidates against the leak pattern registry and traces the
retention chains of every confirmed leak.

Supported frameworks:
  - react : React applications (default)
  - vue   : Vue applications
  - ""    : framework-agnostic patterns only`,
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)

	binName := BinName()
	detectCmd.Example = `  # Detect leaks in a React application snapshot sequence
  ` + binName + ` detect -s ./snapshots -f react

  # Focus on a single component subtree
  ` + binName + ` detect -s ./snapshots --component UserList --component-path App/Page/UserList

  # Persist the run and upload the report artifact
  ` + binName + ` detect -s ./snapshots --publish --uuid nightly-001`

	detectCmd.Flags().StringVarP(&snapshotDir, "snapshots", "s", "", "Directory of heap snapshot JSON files (required)")
	detectCmd.MarkFlagRequired("snapshots")

	detectCmd.Flags().StringVarP(&framework, "framework", "f", "", "Frontend framework: react, vue (defaults to config)")
	detectCmd.Flags().StringVar(&componentName, "component", "", "Restrict detection to one component by name")
	detectCmd.Flags().StringVar(&componentPath, "component-path", "", "Component tree path filter (used with --component)")
	detectCmd.Flags().StringVar(&runUUID, "uuid", "", "Run UUID (auto-generated if empty)")
	detectCmd.Flags().BoolVar(&publishRun, "publish", false, "Persist the run and upload the report artifact")
	detectCmd.Flags().BoolVar(&noTrace, "no-trace", false, "Skip reference chain tracing")
}

func runDetect(cmd *cobra.Command, args []string) error {
	log := GetLogger()
	conf := GetConfig()

	if _, err := os.Stat(snapshotDir); os.IsNotExist(err) {
		return fmt.Errorf("snapshot directory not found: %s", snapshotDir)
	}

	uuid := runUUID
	if uuid == "" {
		uuid = generateRunUUID()
	}

	fw := framework
	if fw == "" {
		fw = conf.Detection.Framework
	}

	log.Info("=== frontscan ===")
	log.Info("Snapshot dir: %s", snapshotDir)
	log.Info("Framework:    %s", fw)
	log.Info("Run UUID:     %s", uuid)
	log.Info("")

	det, err := buildDetector(conf, log)
	if err != nil {
		return err
	}

	detectCfg := buildDetectionConfig(conf, fw)

	startTime := time.Now()
	var analysis *model.AnalysisReport

	if componentName != "" {
		result, err := det.DetectComponentLeak(cmd.Context(), componentName, componentPath, detectCfg)
		if err != nil {
			return fmt.Errorf("detection failed: %w", err)
		}
		analysis = &model.AnalysisReport{
			Result:     result,
			Framework:  fw,
			AnalyzedAt: startTime,
		}
	} else if noTrace {
		result, err := det.DetectMemoryLeak(cmd.Context(), detectCfg)
		if err != nil {
			return fmt.Errorf("detection failed: %w", err)
		}
		analysis = &model.AnalysisReport{
			Result:     result,
			Framework:  fw,
			AnalyzedAt: startTime,
		}
	} else {
		analysis, err = det.AnalyzeMemoryLeak(cmd.Context(), detectCfg)
		if err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}
	}

	(&report.Formatter{}).Format(analysis, log)

	if publishRun {
		log.Info("")
		url, err := publishReport(cmd.Context(), conf, uuid, analysis, log)
		if err != nil {
			return fmt.Errorf("failed to publish report: %w", err)
		}
		log.Info("Run recorded as %s", uuid)
		if url != "" {
			log.Info("Report: %s", url)
		}
	}

	if analysis.Result.HasLeak {
		log.Info("")
		log.Info("=== Detection Complete: %d leaks in %s ===",
			len(analysis.Result.Leaks), time.Since(startTime).Round(time.Millisecond))
	}
	return nil
}

// buildDetector wires the snapshot store, diff engine, classifier and tracer
// into a detector from configuration.
func buildDetector(conf *config.Config, log utils.Logger) (*detector.Detector, error) {
	provider, err := snapshot.NewFileProvider(snapshotDir)
	if err != nil {
		return nil, err
	}
	store := snapshot.NewStore(provider, log)

	diffOpts := diff.DefaultOptions()
	if conf.Detection.SizeThreshold > 0 {
		diffOpts.AddedSizeThreshold = conf.Detection.SizeThreshold
	}
	if conf.Detection.GrowthRateThreshold > 0 {
		diffOpts.GrowthRateThreshold = conf.Detection.GrowthRateThreshold
	}
	engine := diff.NewEngineWithOptions(store, log, diffOpts)

	classifier := pattern.NewClassifier(log, patternOptions(&conf.Pattern))
	tracer := chain.NewTracer(log)

	return detector.New(store, engine, classifier, tracer, log), nil
}

func buildDetectionConfig(conf *config.Config, fw string) detector.Config {
	c := detector.DefaultConfig()
	if conf.Detection.ScanIntervalMs > 0 {
		c.ScanInterval = time.Duration(conf.Detection.ScanIntervalMs) * time.Millisecond
	}
	if conf.Detection.ScanCount > 0 {
		c.ScanCount = conf.Detection.ScanCount
	}
	c.ForceGC = conf.Detection.ForceGC
	c.Framework = fw
	c.Trace = chain.Config{
		MaxPathLength:    conf.Trace.MaxPathLength,
		MaxPaths:         conf.Trace.MaxPaths,
		SimplifyPaths:    conf.Trace.SimplifyPaths,
		IdentifyKeyNodes: conf.Trace.IdentifyKeyNodes,
	}
	return c
}

func patternOptions(pc *config.PatternConfig) pattern.Options {
	opts := pattern.DefaultOptions()
	if pc.MinConfidence > 0 {
		opts.MinConfidence = pc.MinConfidence
	}
	if pc.FeatureThresholdRatio > 0 {
		opts.FeatureThresholdRatio = pc.FeatureThresholdRatio
	}
	if pc.MinSeverity != "" {
		opts.MinSeverity = model.ParseSeverity(pc.MinSeverity)
	}
	for _, p := range pc.EnabledPatternTypes {
		opts.EnabledPatterns = append(opts.EnabledPatterns, model.LeakPattern(p))
	}
	return opts
}

// publishReport persists the run in the database and uploads the report
// artifacts to the configured storage backend.
func publishReport(ctx context.Context, conf *config.Config, uuid string, analysis *model.AnalysisReport, log utils.Logger) (string, error) {
	store, err := storage.New(&conf.Storage)
	if err != nil {
		return "", err
	}

	repo, err := repository.New(&conf.Database)
	if err != nil {
		return "", err
	}
	defer repo.Close()

	return report.NewPublisher(store, repo, log).Publish(ctx, uuid, analysis)
}

func generateRunUUID() string {
	return fmt.Sprintf("run-%s-%d", time.Now().UTC().Format("20060102-150405"), os.Getpid())
}
