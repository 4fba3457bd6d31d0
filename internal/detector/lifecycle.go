package detector

import (
	"context"
	"time"

	"github.com/frontscan/pkg/errors"
	"github.com/frontscan/pkg/model"
)

// HookRecord captures one framework hook invocation for a component.
type HookRecord struct {
	ComponentID    string
	HookName       string
	CleanupPresent bool
	Deps           []string
	CalledAt       time.Time
}

// Lifecycle tracks per-component mount snapshots, unmount times and hook
// calls. It is created per detector and holds no locks: callers must
// serialize operations on the same component id.
type Lifecycle struct {
	mountSnapshots map[string]*model.MemorySnapshot
	componentNames map[string]string
	unmountedAt    map[string]time.Time
	hooks          map[string][]HookRecord
}

// NewLifecycle creates an empty lifecycle registry.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		mountSnapshots: make(map[string]*model.MemorySnapshot),
		componentNames: make(map[string]string),
		unmountedAt:    make(map[string]time.Time),
		hooks:          make(map[string][]HookRecord),
	}
}

// MountSnapshot returns the snapshot captured at mount for the component.
func (l *Lifecycle) MountSnapshot(componentID string) (*model.MemorySnapshot, bool) {
	snap, ok := l.mountSnapshots[componentID]
	return snap, ok
}

// Hooks returns the hook records for the component.
func (l *Lifecycle) Hooks(componentID string) []HookRecord {
	return l.hooks[componentID]
}

// RegisterComponentMount snapshots the heap at mount time and remembers it
// under the component id.
func (d *Detector) RegisterComponentMount(ctx context.Context, componentID, componentName string) error {
	snap, err := d.store.Create(ctx, "mount:"+componentID)
	if err != nil {
		return errors.Wrap(errors.CodeSnapshotError, "mount snapshot failed", err)
	}
	d.lifecycle.mountSnapshots[componentID] = snap
	d.lifecycle.componentNames[componentID] = componentName
	d.logger.Debug("component %s (%s) mounted, snapshot %s", componentID, componentName, snap.ID)
	return nil
}

// RegisterHookCall records a hook invocation for later subtype derivation.
func (d *Detector) RegisterHookCall(record HookRecord) {
	d.lifecycle.hooks[record.ComponentID] = append(d.lifecycle.hooks[record.ComponentID], record)
}

// RegisterComponentUnmount runs an unmount-scoped detection: wait, optional
// GC, snapshot, diff against the mount snapshot restricted to the component,
// then derive a framework-specific subtype for every leak. The mount entry is
// consumed.
func (d *Detector) RegisterComponentUnmount(ctx context.Context, componentID string, cfg Config) (*model.DetectionResult, error) {
	cfg = cfg.withDefaults()

	mountSnap, ok := d.lifecycle.mountSnapshots[componentID]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, "no mount snapshot for component "+componentID)
	}
	componentName := d.lifecycle.componentNames[componentID]
	unmountedAt := d.clock.Now()
	d.lifecycle.unmountedAt[componentID] = unmountedAt

	d.clock.Sleep(cfg.ScanInterval)
	if cfg.ForceGC {
		d.triggerGC(ctx)
	}

	after, err := d.store.Create(ctx, "unmount:"+componentID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeSnapshotError, "unmount snapshot failed", err)
	}

	diffResult, ok := d.diff.Diff(mountSnap.ID, after.ID)
	if !ok {
		return &model.DetectionResult{HasLeak: false}, nil
	}

	candidates := filterObjects(diffResult.LeakCandidates, func(obj *model.MemoryObject) bool {
		return obj.ComponentName == componentName || obj.MetaString("componentId") == componentID
	})
	leaks := d.classifyCandidates(candidates, after, diffResult, cfg.Framework)

	hooks := d.lifecycle.hooks[componentID]
	for _, leak := range leaks {
		leak.Subtype = deriveSubtype(leak, hooks, unmountedAt)
	}

	delete(d.lifecycle.mountSnapshots, componentID)
	delete(d.lifecycle.componentNames, componentID)

	return &model.DetectionResult{
		HasLeak:          len(leaks) > 0,
		Leaks:            leaks,
		MemoryGrowth:     diffResult.TotalSizeDelta,
		ObjectsScanned:   len(after.Objects),
		BaseSnapshotID:   mountSnap.ID,
		TargetSnapshotID: after.ID,
	}, nil
}

// deriveSubtype cross-references the leak's pattern and object metadata with
// the component's hook records and the unmount timestamp.
func deriveSubtype(leak *model.LeakInfo, hooks []HookRecord, unmountedAt time.Time) model.FrameworkLeakKind {
	obj := leak.Object

	// Objects created after the unmount point to late state updates.
	if obj.CreatedAt > 0 && obj.CreatedAt > unmountedAt.UnixMilli() {
		return model.LeakKindStateUpdateAfterUnmount
	}
	if obj.MetaBool("missingDeps") {
		return model.LeakKindDependencyArray
	}

	switch leak.Pattern {
	case model.PatternDanglingListener:
		if hasEffectWithoutCleanup(hooks) {
			return model.LeakKindHookCleanupMissing
		}
		return model.LeakKindListenerAfterUnmount
	case model.PatternTimerReference:
		if hasEffectWithoutCleanup(hooks) {
			return model.LeakKindHookCleanupMissing
		}
		return model.LeakKindTimerAfterUnmount
	case model.PatternClosureCycle:
		return model.LeakKindClosureCapture
	case model.PatternContextReference:
		return model.LeakKindContextSubscription
	case model.PatternStoreReference:
		return model.LeakKindGlobalStoreRetained
	case model.PatternZombieComponent:
		if hasEffectWithoutCleanup(hooks) {
			return model.LeakKindHookCleanupMissing
		}
	}

	if hasIncompleteDeps(hooks) {
		return model.LeakKindDependencyArray
	}
	return model.LeakKindClosureCapture
}

func hasEffectWithoutCleanup(hooks []HookRecord) bool {
	for _, h := range hooks {
		if !h.CleanupPresent {
			return true
		}
	}
	return false
}

func hasIncompleteDeps(hooks []HookRecord) bool {
	for _, h := range hooks {
		if h.Deps != nil && len(h.Deps) == 0 {
			return true
		}
	}
	return false
}
