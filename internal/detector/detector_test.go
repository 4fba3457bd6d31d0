package detector

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frontscan/internal/chain"
	"github.com/frontscan/internal/diff"
	"github.com/frontscan/internal/pattern"
	"github.com/frontscan/internal/snapshot"
	"github.com/frontscan/internal/testutil"
	"github.com/frontscan/pkg/model"
	"github.com/frontscan/pkg/utils"
)

type fakeProvider struct {
	snaps []*model.MemorySnapshot
	next  int
}

func (p *fakeProvider) Capture(_ context.Context, label string) (*model.MemorySnapshot, error) {
	if p.next >= len(p.snaps) {
		return nil, fmt.Errorf("no snapshot prepared")
	}
	snap := p.snaps[p.next]
	p.next++
	snap.Label = label
	return snap, nil
}

type fakeGC struct {
	calls int
	err   error
}

func (g *fakeGC) TriggerGC(_ context.Context) error {
	g.calls++
	return g.err
}

func newDetector(t *testing.T, clock utils.Clock, snaps []*model.MemorySnapshot, storeOpts []snapshot.StoreOption, opts ...Option) *Detector {
	t.Helper()
	logger := &utils.NullLogger{}
	store := snapshot.NewStore(&fakeProvider{snaps: snaps}, logger, storeOpts...)
	engine := diff.NewEngine(store, logger)
	classifier := pattern.NewClassifier(logger, pattern.DefaultOptions())
	tracer := chain.NewTracer(logger)
	opts = append([]Option{WithClock(clock)}, opts...)
	return New(store, engine, classifier, tracer, logger, opts...)
}

func detachedDOMSnapshot(id string) *model.MemorySnapshot {
	b := testutil.NewGraph(id).
		Object("root", model.ObjectTypeGCRoot, 0).
		Object("dom-1", model.ObjectTypeDOMNode, 20000).
		Ref("root", "dom-1", "detachedNodes")
	b.LastObject().Metadata = map[string]interface{}{"detached": true}
	return b.Build()
}

func TestDetectMemoryLeakFindsDetachedDOM(t *testing.T) {
	clock := utils.NewMockClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	base := testutil.NewGraph("s1").Object("root", model.ObjectTypeGCRoot, 0).Build()
	d := newDetector(t, clock, []*model.MemorySnapshot{base, detachedDOMSnapshot("s2")}, nil)

	cfg := DefaultConfig()
	cfg.ScanInterval = 500 * time.Millisecond

	result, err := d.DetectMemoryLeak(context.Background(), cfg)
	require.NoError(t, err)

	assert.True(t, result.HasLeak)
	require.Len(t, result.Leaks, 1)
	leak := result.Leaks[0]
	assert.Equal(t, "leak-dom-1", leak.ID)
	assert.Equal(t, model.PatternDetachedDOM, leak.Pattern)
	assert.Equal(t, model.SeverityHigh, leak.Severity)
	assert.Contains(t, leak.Details, "confidence")

	assert.Equal(t, int64(20000), result.MemoryGrowth)
	assert.Equal(t, "s1", result.BaseSnapshotID)
	assert.Equal(t, "s2", result.TargetSnapshotID)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, clock.SleepCalls())
	assert.Equal(t, 500*time.Millisecond, result.Duration)
}

func TestDetectMemoryLeakNoGrowth(t *testing.T) {
	clock := utils.NewMockClock(time.Now())
	mk := func(id string) *model.MemorySnapshot {
		return testutil.NewGraph(id).Object("a", model.ObjectTypeObject, 100).Build()
	}
	d := newDetector(t, clock, []*model.MemorySnapshot{mk("s1"), mk("s2")}, nil)

	result, err := d.DetectMemoryLeak(context.Background(), DefaultConfig())
	require.NoError(t, err)
	assert.False(t, result.HasLeak)
	assert.Empty(t, result.Leaks)
	assert.Zero(t, result.MemoryGrowth)
}

func TestDetectMemoryLeakEvictedSnapshotSoftFails(t *testing.T) {
	// Retention limit 1 evicts the before snapshot, so the diff is absent.
	clock := utils.NewMockClock(time.Now())
	snaps := []*model.MemorySnapshot{
		testutil.NewGraph("s1").Build(),
		detachedDOMSnapshot("s2"),
	}
	d := newDetector(t, clock, snaps, []snapshot.StoreOption{snapshot.WithRetentionLimit(1)})

	result, err := d.DetectMemoryLeak(context.Background(), DefaultConfig())
	require.NoError(t, err)
	assert.False(t, result.HasLeak)
	assert.Empty(t, result.Leaks)
}

func TestDetectMemoryLeakScanCountRetries(t *testing.T) {
	clock := utils.NewMockClock(time.Now())
	snaps := []*model.MemorySnapshot{
		testutil.NewGraph("s1").Object("root", model.ObjectTypeGCRoot, 0).Build(),
		testutil.NewGraph("s2").Object("root", model.ObjectTypeGCRoot, 0).Build(), // no change yet
		detachedDOMSnapshot("s3"),
	}
	d := newDetector(t, clock, snaps, nil)

	cfg := DefaultConfig()
	cfg.ScanCount = 3

	result, err := d.DetectMemoryLeak(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, result.HasLeak)
	assert.Equal(t, "s3", result.TargetSnapshotID)
	assert.Len(t, clock.SleepCalls(), 2, "stops scanning once candidates appear")
}

func TestDetectMemoryLeakGCTrigger(t *testing.T) {
	clock := utils.NewMockClock(time.Now())
	gc := &fakeGC{}
	snaps := []*model.MemorySnapshot{
		testutil.NewGraph("s1").Build(),
		testutil.NewGraph("s2").Build(),
	}
	d := newDetector(t, clock, snaps, nil, WithGCTrigger(gc))

	cfg := DefaultConfig()
	cfg.ForceGC = true

	_, err := d.DetectMemoryLeak(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, gc.calls)
}

func TestDetectMemoryLeakMissingGCTriggerIsNotFatal(t *testing.T) {
	clock := utils.NewMockClock(time.Now())
	snaps := []*model.MemorySnapshot{
		testutil.NewGraph("s1").Build(),
		testutil.NewGraph("s2").Build(),
	}
	d := newDetector(t, clock, snaps, nil)

	cfg := DefaultConfig()
	cfg.ForceGC = true

	_, err := d.DetectMemoryLeak(context.Background(), cfg)
	assert.NoError(t, err)
}

func TestDetectMemoryLeakProviderErrorFails(t *testing.T) {
	clock := utils.NewMockClock(time.Now())
	d := newDetector(t, clock, nil, nil)

	_, err := d.DetectMemoryLeak(context.Background(), DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "before snapshot failed")
}

func zombieComponent(id string) *model.MemoryObject {
	return &model.MemoryObject{
		ID:            id,
		Type:          model.ObjectTypeComponent,
		Size:          300 * 1024,
		RetainedCount: 2,
		ComponentName: "Sidebar",
		Metadata:      map[string]interface{}{"unmounted": true},
	}
}

func TestDetectComponentLeakFiltersCandidates(t *testing.T) {
	clock := utils.NewMockClock(time.Now())
	base := testutil.NewGraph("s1").Object("root", model.ObjectTypeGCRoot, 0).Build()
	after := testutil.NewGraph("s2").
		Object("root", model.ObjectTypeGCRoot, 0).
		Object("big", model.ObjectTypeArray, 400*1024).
		ObjectFull(zombieComponent("c1")).
		Build()
	d := newDetector(t, clock, []*model.MemorySnapshot{base, after}, nil)

	cfg := DefaultConfig()
	cfg.Framework = "react"

	result, err := d.DetectComponentLeak(context.Background(), "Sidebar", "", cfg)
	require.NoError(t, err)
	require.Len(t, result.Leaks, 1)
	assert.Equal(t, model.PatternZombieComponent, result.Leaks[0].Pattern)
	assert.Equal(t, "Sidebar", result.Leaks[0].ComponentName)
}

func TestComponentMountUnmountDerivesSubtype(t *testing.T) {
	clock := utils.NewMockClock(time.Now())
	mount := testutil.NewGraph("s1").Object("root", model.ObjectTypeGCRoot, 0).Build()
	unmount := testutil.NewGraph("s2").
		Object("root", model.ObjectTypeGCRoot, 0).
		ObjectFull(zombieComponent("c1")).
		Build()
	d := newDetector(t, clock, []*model.MemorySnapshot{mount, unmount}, nil)

	require.NoError(t, d.RegisterComponentMount(context.Background(), "cid-1", "Sidebar"))
	d.RegisterHookCall(HookRecord{ComponentID: "cid-1", HookName: "useEffect", CleanupPresent: false})

	cfg := DefaultConfig()
	cfg.Framework = "react"

	result, err := d.RegisterComponentUnmount(context.Background(), "cid-1", cfg)
	require.NoError(t, err)
	require.Len(t, result.Leaks, 1)
	assert.Equal(t, model.PatternZombieComponent, result.Leaks[0].Pattern)
	assert.Equal(t, model.LeakKindHookCleanupMissing, result.Leaks[0].Subtype)

	// The mount entry is consumed.
	_, err = d.RegisterComponentUnmount(context.Background(), "cid-1", cfg)
	assert.Error(t, err)
}

func TestDeriveSubtype(t *testing.T) {
	unmountedAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	withCleanup := []HookRecord{{HookName: "useEffect", CleanupPresent: true, Deps: []string{"userId"}}}

	lateObject := &model.MemoryObject{ID: "o", CreatedAt: unmountedAt.Add(time.Second).UnixMilli()}
	assert.Equal(t, model.LeakKindStateUpdateAfterUnmount,
		deriveSubtype(&model.LeakInfo{Object: lateObject, Pattern: model.PatternZombieComponent}, withCleanup, unmountedAt))

	missingDeps := &model.MemoryObject{ID: "o", Metadata: map[string]interface{}{"missingDeps": true}}
	assert.Equal(t, model.LeakKindDependencyArray,
		deriveSubtype(&model.LeakInfo{Object: missingDeps, Pattern: model.PatternClosureCycle}, withCleanup, unmountedAt))

	plain := &model.MemoryObject{ID: "o"}
	assert.Equal(t, model.LeakKindListenerAfterUnmount,
		deriveSubtype(&model.LeakInfo{Object: plain, Pattern: model.PatternDanglingListener}, withCleanup, unmountedAt))
	assert.Equal(t, model.LeakKindTimerAfterUnmount,
		deriveSubtype(&model.LeakInfo{Object: plain, Pattern: model.PatternTimerReference}, withCleanup, unmountedAt))
	assert.Equal(t, model.LeakKindGlobalStoreRetained,
		deriveSubtype(&model.LeakInfo{Object: plain, Pattern: model.PatternStoreReference}, withCleanup, unmountedAt))
	assert.Equal(t, model.LeakKindContextSubscription,
		deriveSubtype(&model.LeakInfo{Object: plain, Pattern: model.PatternContextReference}, withCleanup, unmountedAt))

	noCleanup := []HookRecord{{HookName: "useEffect", CleanupPresent: false}}
	assert.Equal(t, model.LeakKindHookCleanupMissing,
		deriveSubtype(&model.LeakInfo{Object: plain, Pattern: model.PatternDanglingListener}, noCleanup, unmountedAt))
}

func TestAnalyzeMemoryLeakTracesChains(t *testing.T) {
	clock := utils.NewMockClock(time.Now())
	base := testutil.NewGraph("s1").Object("root", model.ObjectTypeGCRoot, 0).Build()
	d := newDetector(t, clock, []*model.MemorySnapshot{base, detachedDOMSnapshot("s2")}, nil)

	report, err := d.AnalyzeMemoryLeak(context.Background(), DefaultConfig())
	require.NoError(t, err)
	require.True(t, report.Result.HasLeak)
	assert.False(t, report.AnalyzedAt.IsZero())

	chains := report.Chains["leak-dom-1"]
	require.Len(t, chains, 1)
	assert.Equal(t, model.ChainTypeDOM, chains[0].Type)
	assert.Equal(t, chains[0].Path, report.Result.Leaks[0].RetentionPath)
}

func TestSeverityForSizeBands(t *testing.T) {
	assert.Equal(t, model.SeverityInfo, severityForSize(1024))
	assert.Equal(t, model.SeverityLow, severityForSize(SizeBandLow+1))
	assert.Equal(t, model.SeverityMedium, severityForSize(SizeBandMedium+1))
	assert.Equal(t, model.SeverityHigh, severityForSize(SizeBandHigh+1))
}
