package chain

import (
	"fmt"

	"github.com/frontscan/pkg/model"
)

// SyntheticRefType marks references inserted by simplification in place of a
// run of dropped hops. Their Name carries the skipped count.
const SyntheticRefType = "skipped"

// keyObjectTypes are the node kinds always preserved during simplification.
var keyObjectTypes = map[model.ObjectType]bool{
	model.ObjectTypeDOMNode:       true,
	model.ObjectTypeComponent:     true,
	model.ObjectTypeEventListener: true,
	model.ObjectTypeTimer:         true,
	model.ObjectTypeClosure:       true,
}

// simplifyPath shortens a long retention path while keeping its shape
// readable. The first and last references always survive; an intermediate
// survives when its target is a key-typed node, carries a name, or is large.
// Runs of dropped references collapse into one synthetic marker, with a real
// midpoint anchor kept whenever the run would exceed maxKeptGap.
func simplifyPath(path []*model.MemoryReference, objects map[string]*model.MemoryObject) []*model.MemoryReference {
	kept := make([]int, 0, len(path))
	for i, ref := range path {
		if i == 0 || i == len(path)-1 {
			kept = append(kept, i)
			continue
		}
		if shouldKeepRef(ref, objects) {
			kept = append(kept, i)
		}
	}

	kept = anchorWideGaps(kept)

	out := make([]*model.MemoryReference, 0, len(kept))
	for k, idx := range kept {
		if k > 0 {
			if skipped := idx - kept[k-1] - 1; skipped > 0 {
				out = append(out, &model.MemoryReference{
					SourceID: path[kept[k-1]].TargetID,
					TargetID: path[idx].SourceID,
					Name:     fmt.Sprintf("…%d skipped…", skipped),
					Type:     SyntheticRefType,
					Weight:   int64(skipped),
				})
			}
		}
		out = append(out, path[idx])
	}
	return out
}

func shouldKeepRef(ref *model.MemoryReference, objects map[string]*model.MemoryObject) bool {
	target, ok := objects[ref.TargetID]
	if !ok {
		return false
	}
	if keyObjectTypes[target.Type] {
		return true
	}
	if target.Name != "" {
		return true
	}
	return target.Size > keyNodeSizeThreshold
}

// anchorWideGaps inserts the midpoint of any kept-index gap wider than
// maxKeptGap, so a collapsed run never hides more than ~maxKeptGap hops on
// either side of an anchor.
func anchorWideGaps(kept []int) []int {
	out := make([]int, 0, len(kept))
	for k, idx := range kept {
		if k > 0 && idx-kept[k-1] > maxKeptGap {
			out = append(out, (kept[k-1]+idx)/2)
		}
		out = append(out, idx)
	}
	return out
}
