// Package detector sequences the detection pipeline: capture, wait, diff,
// classify, trace. It drives the lower components and never gets called back
// by them.
package detector

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/frontscan/internal/chain"
	"github.com/frontscan/internal/diff"
	"github.com/frontscan/internal/pattern"
	"github.com/frontscan/internal/snapshot"
	"github.com/frontscan/pkg/errors"
	"github.com/frontscan/pkg/model"
	"github.com/frontscan/pkg/telemetry"
	"github.com/frontscan/pkg/utils"
)

// First-pass severity bands by leaked size. The classifier's severity
// supersedes these when it produces a match.
const (
	SizeBandLow    int64 = 10 * 1024
	SizeBandMedium int64 = 50 * 1024
	SizeBandHigh   int64 = 100 * 1024
)

// DefaultScanInterval is the wait between the before and after snapshots,
// giving the runtime's collector a chance to run.
const DefaultScanInterval = time.Second

// sessionState tracks where a detection session is in its pipeline. States
// only move forward within one session.
type sessionState string

const (
	stateIdle               sessionState = "idle"
	stateSnapshottingBefore sessionState = "snapshotting-before"
	stateWaiting            sessionState = "waiting"
	stateGC                 sessionState = "gc"
	stateSnapshottingAfter  sessionState = "snapshotting-after"
	stateDiffing            sessionState = "diffing"
	stateClassifying        sessionState = "classifying"
	stateDone               sessionState = "done"
)

// GCTrigger requests a garbage collection pass from the runtime under
// observation. Best effort: failures degrade accuracy, not correctness.
type GCTrigger interface {
	TriggerGC(ctx context.Context) error
}

// Config tunes one detection session.
type Config struct {
	ScanInterval time.Duration
	ScanCount    int
	ForceGC      bool
	Framework    string
	Trace        chain.Config
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		ScanInterval: DefaultScanInterval,
		ScanCount:    1,
		Trace:        chain.DefaultConfig(),
	}
}

func (c Config) withDefaults() Config {
	if c.ScanInterval <= 0 {
		c.ScanInterval = DefaultScanInterval
	}
	if c.ScanCount <= 0 {
		c.ScanCount = 1
	}
	return c
}

// Detector owns one detection pipeline. All collaborators are injected; the
// detector holds no process-wide state of its own.
type Detector struct {
	store      *snapshot.Store
	diff       *diff.Engine
	classifier *pattern.Classifier
	tracer     *chain.Tracer
	lifecycle  *Lifecycle
	gc         GCTrigger
	logger     utils.Logger
	clock      utils.Clock
	otel       trace.Tracer
}

// Option configures a Detector.
type Option func(*Detector)

// WithGCTrigger installs a runtime GC hook.
func WithGCTrigger(gc GCTrigger) Option {
	return func(d *Detector) { d.gc = gc }
}

// WithClock overrides the wall clock, for tests.
func WithClock(clock utils.Clock) Option {
	return func(d *Detector) { d.clock = clock }
}

// New creates a Detector over the given collaborators.
func New(store *snapshot.Store, diffEngine *diff.Engine, classifier *pattern.Classifier, tracer *chain.Tracer, logger utils.Logger, opts ...Option) *Detector {
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	d := &Detector{
		store:      store,
		diff:       diffEngine,
		classifier: classifier,
		tracer:     tracer,
		lifecycle:  NewLifecycle(),
		logger:     logger,
		clock:      utils.NewRealClock(),
		otel:       otel.Tracer(telemetry.TracerName),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Lifecycle exposes the component lifecycle registry backing the
// framework-aware entry points.
func (d *Detector) Lifecycle() *Lifecycle {
	return d.lifecycle
}

func (d *Detector) setState(session string, from, to sessionState) sessionState {
	d.logger.Debug("session %s: %s -> %s", session, from, to)
	return to
}

// DetectMemoryLeak runs one full detection session: snapshot, wait, optional
// GC, snapshot again, diff, classify. A missing diff yields an empty result
// rather than an error.
func (d *Detector) DetectMemoryLeak(ctx context.Context, cfg Config) (*model.DetectionResult, error) {
	return d.detect(ctx, "detect", cfg, nil)
}

// DetectComponentLeak runs the same pipeline with candidates pre-filtered to
// component instances matching the given name and, when non-empty, path.
func (d *Detector) DetectComponentLeak(ctx context.Context, componentName, componentPath string, cfg Config) (*model.DetectionResult, error) {
	filter := func(obj *model.MemoryObject) bool {
		if obj.Type != model.ObjectTypeComponent {
			return false
		}
		if obj.ComponentName != componentName {
			return false
		}
		return componentPath == "" || obj.ComponentPath == componentPath
	}
	return d.detect(ctx, "detect-component:"+componentName, cfg, filter)
}

func (d *Detector) detect(ctx context.Context, session string, cfg Config, filter func(*model.MemoryObject) bool) (*model.DetectionResult, error) {
	cfg = cfg.withDefaults()
	start := d.clock.Now()

	ctx, span := d.otel.Start(ctx, "detector.detect",
		trace.WithAttributes(attribute.String("detect.session", session)))
	defer span.End()

	state := stateIdle
	state = d.setState(session, state, stateSnapshottingBefore)
	before, err := d.store.Create(ctx, "before")
	if err != nil {
		return nil, errors.Wrap(errors.CodeSnapshotError, "before snapshot failed", err)
	}

	var after *model.MemorySnapshot
	var diffResult *model.SnapshotDiff
	diffOK := false

	for scan := 0; scan < cfg.ScanCount; scan++ {
		state = d.setState(session, state, stateWaiting)
		d.clock.Sleep(cfg.ScanInterval)

		if cfg.ForceGC {
			state = d.setState(session, state, stateGC)
			d.triggerGC(ctx)
		}

		state = d.setState(session, state, stateSnapshottingAfter)
		after, err = d.store.Create(ctx, "after")
		if err != nil {
			return nil, errors.Wrap(errors.CodeSnapshotError, "after snapshot failed", err)
		}

		state = d.setState(session, state, stateDiffing)
		diffResult, diffOK = d.diff.Diff(before.ID, after.ID)
		if diffOK && len(diffResult.LeakCandidates) > 0 {
			break
		}
	}

	if !diffOK {
		d.setState(session, state, stateDone)
		return &model.DetectionResult{HasLeak: false, Duration: d.clock.Since(start)}, nil
	}

	state = d.setState(session, state, stateClassifying)
	candidates := diffResult.LeakCandidates
	if filter != nil {
		candidates = filterObjects(candidates, filter)
	}
	leaks := d.classifyCandidates(candidates, after, diffResult, cfg.Framework)

	d.setState(session, state, stateDone)
	span.SetAttributes(
		attribute.Int("detect.candidates", len(candidates)),
		attribute.Int("detect.leaks", len(leaks)),
	)

	return &model.DetectionResult{
		HasLeak:          len(leaks) > 0,
		Leaks:            leaks,
		MemoryGrowth:     diffResult.TotalSizeDelta,
		Duration:         d.clock.Since(start),
		ObjectsScanned:   len(after.Objects),
		BaseSnapshotID:   before.ID,
		TargetSnapshotID: after.ID,
	}, nil
}

// triggerGC asks the runtime for a collection pass. Absence or failure of
// the hook is logged and detection continues with reduced accuracy.
func (d *Detector) triggerGC(ctx context.Context) {
	if d.gc == nil {
		d.logger.Warn("no GC trigger available, results may include collectable objects")
		return
	}
	if err := d.gc.TriggerGC(ctx); err != nil {
		d.logger.Warn("GC trigger failed: %v", err)
	}
}

// classifyCandidates turns classifier matches into leaks. The size-band
// severity is assigned first and the classifier's severity overwrites it,
// never merges.
func (d *Detector) classifyCandidates(candidates []*model.MemoryObject, snap *model.MemorySnapshot, diffResult *model.SnapshotDiff, framework string) []*model.LeakInfo {
	ctx := &pattern.DetectContext{Snapshot: snap, Diff: diffResult, Framework: framework}

	var leaks []*model.LeakInfo
	for _, obj := range candidates {
		match, ok := d.classifier.IdentifyLeakPattern(obj, ctx)
		if !ok {
			continue
		}
		leak := &model.LeakInfo{
			ID:            "leak-" + obj.ID,
			Object:        obj,
			Severity:      severityForSize(obj.Size),
			Size:          obj.Size,
			Framework:     framework,
			ComponentName: obj.ComponentName,
		}
		leak.Pattern = match.Pattern
		leak.Severity = match.Severity
		leak.Description = match.Description
		leak.FixSuggestion = match.FixSuggestion
		leak.Details = map[string]interface{}{
			"confidence":          match.Confidence,
			"matched_feature_ids": match.MatchedFeatureIDs,
		}
		leaks = append(leaks, leak)
	}
	return leaks
}

// AnalyzeMemoryLeak is the top-level composition: detection, classifier
// enhancement, then chain tracing for every confirmed leak.
func (d *Detector) AnalyzeMemoryLeak(ctx context.Context, cfg Config) (*model.AnalysisReport, error) {
	cfg = cfg.withDefaults()

	ctx, span := d.otel.Start(ctx, "detector.AnalyzeMemoryLeak")
	defer span.End()

	result, err := d.DetectMemoryLeak(ctx, cfg)
	if err != nil {
		return nil, err
	}

	report := &model.AnalysisReport{
		Result:     result,
		Framework:  cfg.Framework,
		AnalyzedAt: d.clock.Now(),
	}
	if !result.HasLeak {
		return report, nil
	}

	after, ok := d.store.Get(result.TargetSnapshotID)
	if !ok {
		d.logger.Warn("target snapshot %s evicted before tracing", result.TargetSnapshotID)
		return report, nil
	}

	report.Chains = make(map[string][]*model.ReferenceChainInfo, len(result.Leaks))
	for _, leak := range result.Leaks {
		chains := d.tracer.TraceReferenceChains(leak.Object.ID, after, cfg.Trace)
		report.Chains[leak.ID] = chains
		if len(chains) > 0 {
			leak.RetentionPath = chains[0].Path
		}
	}
	return report, nil
}

func filterObjects(objs []*model.MemoryObject, keep func(*model.MemoryObject) bool) []*model.MemoryObject {
	var out []*model.MemoryObject
	for _, obj := range objs {
		if keep(obj) {
			out = append(out, obj)
		}
	}
	return out
}

// severityForSize assigns the first-pass severity band.
func severityForSize(size int64) model.Severity {
	switch {
	case size > SizeBandHigh:
		return model.SeverityHigh
	case size > SizeBandMedium:
		return model.SeverityMedium
	case size > SizeBandLow:
		return model.SeverityLow
	default:
		return model.SeverityInfo
	}
}
