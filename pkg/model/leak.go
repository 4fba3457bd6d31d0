package model

import "time"

// LeakPattern names a structural leak signature.
type LeakPattern string

const (
	PatternDetachedDOM       LeakPattern = "detached-dom"
	PatternZombieComponent   LeakPattern = "zombie-component"
	PatternDanglingListener  LeakPattern = "dangling-event-listener"
	PatternTimerReference    LeakPattern = "timer-reference"
	PatternClosureCycle      LeakPattern = "closure-cycle"
	PatternPromiseChain      LeakPattern = "promise-chain"
	PatternLargeCache        LeakPattern = "large-cache"
	PatternGrowingCollection LeakPattern = "growing-collection"
	PatternContextReference  LeakPattern = "context-reference"
	PatternStoreReference    LeakPattern = "store-reference"
	PatternOther             LeakPattern = "other"
)

// FrameworkLeakKind is a framework-specific leak subtype derived by
// cross-referencing leak patterns with recorded component lifecycle data.
type FrameworkLeakKind string

const (
	LeakKindHookCleanupMissing     FrameworkLeakKind = "hook-cleanup-missing"
	LeakKindListenerAfterUnmount   FrameworkLeakKind = "event-listener-after-unmount"
	LeakKindTimerAfterUnmount      FrameworkLeakKind = "timer-after-unmount"
	LeakKindClosureCapture         FrameworkLeakKind = "closure-capture"
	LeakKindContextSubscription    FrameworkLeakKind = "context-subscription-uncleared"
	LeakKindDependencyArray        FrameworkLeakKind = "dependency-array-incomplete"
	LeakKindGlobalStoreRetained    FrameworkLeakKind = "global-store-retained"
	LeakKindStateUpdateAfterUnmount FrameworkLeakKind = "state-update-after-unmount"
)

// LeakInfo describes one confirmed or suspected leak.
type LeakInfo struct {
	ID            string                 `json:"id"`
	Object        *MemoryObject          `json:"object"`
	Pattern       LeakPattern            `json:"pattern"`
	Severity      Severity               `json:"severity"`
	Size          int64                  `json:"size"`
	Description   string                 `json:"description"`
	FixSuggestion string                 `json:"fix_suggestion,omitempty"`
	RetentionPath []*MemoryReference     `json:"retention_path,omitempty"`
	Framework     string                 `json:"framework,omitempty"`
	ComponentName string                 `json:"component_name,omitempty"`
	Subtype       FrameworkLeakKind      `json:"subtype,omitempty"`
	Details       map[string]interface{} `json:"details,omitempty"`
}

// DetectionResult is the outcome of one detection session.
type DetectionResult struct {
	HasLeak          bool          `json:"has_leak"`
	Leaks            []*LeakInfo   `json:"leaks"`
	MemoryGrowth     int64         `json:"memory_growth"`
	Duration         time.Duration `json:"duration"`
	ObjectsScanned   int           `json:"objects_scanned"`
	BaseSnapshotID   string        `json:"base_snapshot_id,omitempty"`
	TargetSnapshotID string        `json:"target_snapshot_id,omitempty"`
}

// ObjectChange records one object that changed between two snapshots.
type ObjectChange struct {
	Before     *MemoryObject `json:"before"`
	After      *MemoryObject `json:"after"`
	ChangeRate float64       `json:"change_rate"`
	SizeDelta  int64         `json:"size_delta"`
}

// SnapshotDiff is the comparison of two snapshots. It is a derived, read-only
// artifact owned by the caller that requested it.
type SnapshotDiff struct {
	BaseSnapshotID       string          `json:"base_snapshot_id"`
	TargetSnapshotID     string          `json:"target_snapshot_id"`
	Added                []*MemoryObject `json:"added"`
	Removed              []*MemoryObject `json:"removed"`
	Changed              []*ObjectChange `json:"changed"`
	LeakCandidates       []*MemoryObject `json:"leak_candidates"`
	TotalSizeDelta       int64           `json:"total_size_delta"`
	TotalObjectsDelta    int             `json:"total_objects_delta"`
	TotalReferencesDelta int             `json:"total_references_delta"`
}

// ChainType summarizes the dominant node kind along a retention path.
type ChainType string

const (
	ChainTypeDOM       ChainType = "dom-chain"
	ChainTypeEvent     ChainType = "event-chain"
	ChainTypeClosure   ChainType = "closure-chain"
	ChainTypeComponent ChainType = "component-chain"
	ChainTypeTimer     ChainType = "timer-chain"
	ChainTypeStore     ChainType = "store-chain"
	ChainTypeMixed     ChainType = "mixed-chain"
)

// ReferenceChainInfo describes one retention path from a GC root to a leaked
// object, ordered root first.
type ReferenceChainInfo struct {
	ID            string             `json:"id"`
	Type          ChainType          `json:"type"`
	Path          []*MemoryReference `json:"path"`
	Objects       []*MemoryObject    `json:"objects"`
	Root          *MemoryObject      `json:"root"`
	LeakObject    *MemoryObject      `json:"leak_object"`
	KeyNodes      []*MemoryObject    `json:"key_nodes,omitempty"`
	Explanation   string             `json:"explanation,omitempty"`
	AbstractPath  string             `json:"abstract_path,omitempty"`
	FixSuggestion string             `json:"fix_suggestion,omitempty"`
}

// AnalysisReport is the top-level artifact produced by a full analysis run:
// the detection result plus traced retention chains per confirmed leak.
type AnalysisReport struct {
	Result     *DetectionResult                 `json:"result"`
	Chains     map[string][]*ReferenceChainInfo `json:"chains,omitempty"` // keyed by leak ID
	Framework  string                           `json:"framework,omitempty"`
	AnalyzedAt time.Time                        `json:"analyzed_at"`
}
