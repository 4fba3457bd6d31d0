// Package pattern classifies leak candidates against a registry of known
// frontend leak signatures.
package pattern

import (
	"strings"

	"github.com/frontscan/pkg/model"
)

// Detection size thresholds.
const (
	// largeCacheSize is the size above which a collection reads as a cache.
	largeCacheSize int64 = 100 * 1024

	// closureCaptureSize is the size above which a retained closure is
	// suspicious on its own.
	closureCaptureSize int64 = 32 * 1024

	// largeRetainedSize is the catch-all threshold for oversized retained
	// objects that match no structural signature.
	largeRetainedSize int64 = 200 * 1024

	// growingCollectionRate is the relative growth above which a surviving
	// collection reads as unbounded accumulation.
	growingCollectionRate = 1.0
)

// DetectContext carries the snapshot, diff and runtime context a feature may
// consult beyond the candidate object itself.
type DetectContext struct {
	Snapshot  *model.MemorySnapshot
	Diff      *model.SnapshotDiff
	Framework string

	changes map[string]*model.ObjectChange
}

// Change returns the diff entry for the given object id, or nil.
func (c *DetectContext) Change(id string) *model.ObjectChange {
	if c == nil || c.Diff == nil {
		return nil
	}
	if c.changes == nil {
		c.changes = make(map[string]*model.ObjectChange, len(c.Diff.Changed))
		for _, ch := range c.Diff.Changed {
			c.changes[ch.After.ID] = ch
		}
	}
	return c.changes[id]
}

// Feature is one detectable leak signature. Detect inspects a single
// candidate; it must not mutate the object or the context.
type Feature struct {
	ID            string
	Pattern       model.LeakPattern
	Severity      model.Severity
	Frameworks    []string // empty means framework-agnostic
	Description   string
	FixSuggestion string
	Detect        func(obj *model.MemoryObject, ctx *DetectContext) bool
}

// AppliesTo reports whether the feature is relevant for the given framework.
func (f *Feature) AppliesTo(framework string) bool {
	if len(f.Frameworks) == 0 {
		return true
	}
	for _, fw := range f.Frameworks {
		if strings.EqualFold(fw, framework) {
			return true
		}
	}
	return false
}

func isCollection(t model.ObjectType) bool {
	return t == model.ObjectTypeArray || t == model.ObjectTypeMap || t == model.ObjectTypeSet
}

func nameContains(obj *model.MemoryObject, fragment string) bool {
	return strings.Contains(strings.ToLower(obj.Name), fragment)
}

// DefaultFeatures returns the built-in signature registry. Callers get a
// fresh slice and may append their own features.
func DefaultFeatures() []*Feature {
	return []*Feature{
		{
			ID:            "react-detached-dom",
			Pattern:       model.PatternDetachedDOM,
			Severity:      model.SeverityHigh,
			Description:   "DOM node detached from the document but still referenced from JavaScript",
			FixSuggestion: "Drop references to removed DOM elements so the subtree can be collected.",
			Detect: func(obj *model.MemoryObject, _ *DetectContext) bool {
				return obj.Type == model.ObjectTypeDOMNode && obj.MetaBool("detached")
			},
		},
		{
			ID:            "retained-dom-subtree",
			Pattern:       model.PatternDetachedDOM,
			Severity:      model.SeverityHigh,
			Description:   "detached DOM node anchoring a retained subtree",
			FixSuggestion: "Clear element refs in teardown so detached subtrees are released.",
			Detect: func(obj *model.MemoryObject, _ *DetectContext) bool {
				return obj.Type == model.ObjectTypeDOMNode && obj.MetaBool("detached") && obj.RetainedCount > 0
			},
		},
		{
			ID:            "zombie-component",
			Pattern:       model.PatternZombieComponent,
			Severity:      model.SeverityHigh,
			Frameworks:    []string{"react", "vue"},
			Description:   "component instance retained after unmount",
			FixSuggestion: "Remove the unmounted component from caches, subscriptions and parent state.",
			Detect: func(obj *model.MemoryObject, _ *DetectContext) bool {
				return obj.Type == model.ObjectTypeComponent && obj.MetaBool("unmounted")
			},
		},
		{
			ID:            "dangling-event-listener",
			Pattern:       model.PatternDanglingListener,
			Severity:      model.SeverityHigh,
			Description:   "event listener whose target element is gone",
			FixSuggestion: "Call removeEventListener during teardown, before the target is discarded.",
			Detect: func(obj *model.MemoryObject, _ *DetectContext) bool {
				return obj.Type == model.ObjectTypeEventListener && obj.MetaBool("detached")
			},
		},
		{
			ID:            "active-timer-reference",
			Pattern:       model.PatternTimerReference,
			Severity:      model.SeverityMedium,
			Description:   "active timer holding its callback captures alive",
			FixSuggestion: "Clear intervals and timeouts when their owner is torn down.",
			Detect: func(obj *model.MemoryObject, _ *DetectContext) bool {
				return obj.Type == model.ObjectTypeTimer && obj.MetaBool("active")
			},
		},
		{
			ID:            "closure-capture",
			Pattern:       model.PatternClosureCycle,
			Severity:      model.SeverityMedium,
			Description:   "long-lived closure capturing a large environment",
			FixSuggestion: "Capture only the fields the closure needs instead of whole objects.",
			Detect: func(obj *model.MemoryObject, _ *DetectContext) bool {
				return obj.Type == model.ObjectTypeClosure && obj.RetainedCount > 0 && obj.Size > closureCaptureSize
			},
		},
		{
			ID:            "pending-promise-chain",
			Pattern:       model.PatternPromiseChain,
			Severity:      model.SeverityLow,
			Description:   "promise that never settles, pinning its reaction chain",
			FixSuggestion: "Reject or resolve abandoned promises, or attach an abort signal.",
			Detect: func(obj *model.MemoryObject, _ *DetectContext) bool {
				return obj.Type == model.ObjectTypePromise && obj.MetaBool("pending")
			},
		},
		{
			ID:            "large-cache",
			Pattern:       model.PatternLargeCache,
			Severity:      model.SeverityMedium,
			Description:   "oversized cache-like collection",
			FixSuggestion: "Bound the cache with an eviction policy or weak references.",
			Detect: func(obj *model.MemoryObject, _ *DetectContext) bool {
				return isCollection(obj.Type) && obj.Size > largeCacheSize && nameContains(obj, "cache")
			},
		},
		{
			ID:            "growing-collection",
			Pattern:       model.PatternGrowingCollection,
			Severity:      model.SeverityMedium,
			Description:   "collection that keeps growing between snapshots",
			FixSuggestion: "Remove entries when they are no longer needed; growth without eviction is unbounded.",
			Detect: func(obj *model.MemoryObject, ctx *DetectContext) bool {
				if !isCollection(obj.Type) {
					return false
				}
				ch := ctx.Change(obj.ID)
				return ch != nil && ch.SizeDelta > 0 && ch.ChangeRate > growingCollectionRate
			},
		},
		{
			ID:            "context-reference",
			Pattern:       model.PatternContextReference,
			Severity:      model.SeverityLow,
			Frameworks:    []string{"react"},
			Description:   "object retained through a context subscription",
			FixSuggestion: "Unsubscribe from the context provider when the consumer unmounts.",
			Detect: func(obj *model.MemoryObject, _ *DetectContext) bool {
				return nameContains(obj, "context") && obj.RetainedCount > 0
			},
		},
		{
			ID:            "store-reference",
			Pattern:       model.PatternStoreReference,
			Severity:      model.SeverityLow,
			Description:   "object retained by a global store",
			FixSuggestion: "Evict per-session entries from global stores and unsubscribe on teardown.",
			Detect: func(obj *model.MemoryObject, _ *DetectContext) bool {
				return nameContains(obj, "store") && obj.RetainedCount > 0
			},
		},
		{
			ID:            "large-retained-object",
			Pattern:       model.PatternOther,
			Severity:      model.SeverityLow,
			Description:   "unusually large retained object with no structural signature",
			FixSuggestion: "Inspect the retention path to find who holds this object.",
			Detect: func(obj *model.MemoryObject, _ *DetectContext) bool {
				return obj.Size > largeRetainedSize && obj.RetainedCount > 0
			},
		},
	}
}
