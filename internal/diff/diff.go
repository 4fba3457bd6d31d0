// Package diff compares two memory snapshots and flags first-pass leak
// candidates. The candidate filter is deliberately over-inclusive; the
// pattern classifier narrows it downstream.
package diff

import (
	"github.com/frontscan/internal/snapshot"
	"github.com/frontscan/pkg/model"
	"github.com/frontscan/pkg/utils"
)

// Candidate selection thresholds. These encode tunable domain judgment, not
// structural logic, so they are named and overridable rather than inlined.
const (
	// DefaultAddedSizeThreshold is the minimum size for a newly added object
	// to count as a leak candidate.
	DefaultAddedSizeThreshold int64 = 10000

	// DefaultGrowthSizeDelta is the minimum growth for a changed object to
	// count as a leak candidate.
	DefaultGrowthSizeDelta int64 = 5000

	// DefaultGrowthRateThreshold is the minimum relative growth for a changed
	// object to count as a leak candidate.
	DefaultGrowthRateThreshold = 0.5
)

// Options tunes the candidate selection thresholds.
type Options struct {
	AddedSizeThreshold  int64
	GrowthSizeDelta     int64
	GrowthRateThreshold float64
}

// DefaultOptions returns the default thresholds.
func DefaultOptions() Options {
	return Options{
		AddedSizeThreshold:  DefaultAddedSizeThreshold,
		GrowthSizeDelta:     DefaultGrowthSizeDelta,
		GrowthRateThreshold: DefaultGrowthRateThreshold,
	}
}

// Engine diffs snapshots held by a store.
type Engine struct {
	store  *snapshot.Store
	logger utils.Logger
	opts   Options
}

// NewEngine creates a diff engine over the given store.
func NewEngine(store *snapshot.Store, logger utils.Logger) *Engine {
	return NewEngineWithOptions(store, logger, DefaultOptions())
}

// NewEngineWithOptions creates a diff engine with custom thresholds.
func NewEngineWithOptions(store *snapshot.Store, logger utils.Logger, opts Options) *Engine {
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	if opts.AddedSizeThreshold == 0 {
		opts.AddedSizeThreshold = DefaultAddedSizeThreshold
	}
	if opts.GrowthSizeDelta == 0 {
		opts.GrowthSizeDelta = DefaultGrowthSizeDelta
	}
	if opts.GrowthRateThreshold == 0 {
		opts.GrowthRateThreshold = DefaultGrowthRateThreshold
	}
	return &Engine{store: store, logger: logger, opts: opts}
}

// Diff compares the two stored snapshots. A missing snapshot yields
// (nil, false): "no comparison available" is a soft-fail signal, not an error.
func (e *Engine) Diff(baseID, targetID string) (*model.SnapshotDiff, bool) {
	base, ok := e.store.Get(baseID)
	if !ok {
		e.logger.Warn("diff skipped: base snapshot %s not found", baseID)
		return nil, false
	}
	target, ok := e.store.Get(targetID)
	if !ok {
		e.logger.Warn("diff skipped: target snapshot %s not found", targetID)
		return nil, false
	}
	return e.Compare(base, target), true
}

// Compare diffs two snapshots directly. The result depends only on the object
// and reference sets, not on their array order.
func (e *Engine) Compare(base, target *model.MemorySnapshot) *model.SnapshotDiff {
	baseIdx := base.ObjectIndex()
	targetIdx := target.ObjectIndex()

	d := &model.SnapshotDiff{
		BaseSnapshotID:   base.ID,
		TargetSnapshotID: target.ID,
	}

	for _, obj := range target.Objects {
		before, existed := baseIdx[obj.ID]
		if !existed {
			d.Added = append(d.Added, obj)
			continue
		}
		if obj.Size != before.Size || obj.RetainedCount != before.RetainedCount {
			sizeDelta := obj.Size - before.Size
			baseSize := before.Size
			if baseSize < 1 {
				baseSize = 1
			}
			changeRate := float64(abs64(sizeDelta)) / float64(baseSize)
			d.Changed = append(d.Changed, &model.ObjectChange{
				Before:     before,
				After:      obj,
				SizeDelta:  sizeDelta,
				ChangeRate: changeRate,
			})
		}
	}

	for _, obj := range base.Objects {
		if _, stillThere := targetIdx[obj.ID]; !stillThere {
			d.Removed = append(d.Removed, obj)
		}
	}

	d.LeakCandidates = e.selectCandidates(d)

	d.TotalSizeDelta = target.TotalSize - base.TotalSize
	d.TotalObjectsDelta = len(target.Objects) - len(base.Objects)
	d.TotalReferencesDelta = len(target.References) - len(base.References)

	e.logger.Debug("diff %s -> %s: added=%d removed=%d changed=%d candidates=%d",
		base.ID, target.ID, len(d.Added), len(d.Removed), len(d.Changed), len(d.LeakCandidates))

	return d
}

// selectCandidates applies the first-pass heuristic: large retained additions,
// fast-growing survivors, and any retained component instances. The union is
// de-duplicated by object id.
func (e *Engine) selectCandidates(d *model.SnapshotDiff) []*model.MemoryObject {
	var candidates []*model.MemoryObject
	seen := make(map[string]bool)

	add := func(obj *model.MemoryObject) {
		if !seen[obj.ID] {
			seen[obj.ID] = true
			candidates = append(candidates, obj)
		}
	}

	for _, obj := range d.Added {
		if obj.Size > e.opts.AddedSizeThreshold && obj.RetainedCount > 0 {
			add(obj)
		}
	}
	for _, ch := range d.Changed {
		if ch.SizeDelta > e.opts.GrowthSizeDelta && ch.ChangeRate > e.opts.GrowthRateThreshold {
			add(ch.After)
		}
	}
	for _, obj := range d.Added {
		if obj.Type == model.ObjectTypeComponent && obj.RetainedCount > 0 {
			add(obj)
		}
	}

	return candidates
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
