package chain

import (
	"fmt"
	"strings"

	"github.com/frontscan/pkg/model"
)

// classifyChain derives the chain type from the resolved nodes and the path
// references. Rules are checked in priority order; the first match wins.
func classifyChain(nodes []*model.MemoryObject, path []*model.MemoryReference) model.ChainType {
	if len(nodes) == 0 {
		return model.ChainTypeMixed
	}

	counts := make(map[model.ObjectType]int)
	for _, n := range nodes {
		counts[n.Type]++
	}
	total := len(nodes)

	switch {
	case counts[model.ObjectTypeDOMNode]*3 >= total:
		return model.ChainTypeDOM
	case counts[model.ObjectTypeEventListener] > 0:
		return model.ChainTypeEvent
	case counts[model.ObjectTypeClosure]*3 >= total:
		return model.ChainTypeClosure
	case counts[model.ObjectTypeComponent] > 0:
		return model.ChainTypeComponent
	case counts[model.ObjectTypeTimer] > 0:
		return model.ChainTypeTimer
	case hasStoreName(nodes, path):
		return model.ChainTypeStore
	default:
		return model.ChainTypeMixed
	}
}

func hasStoreName(nodes []*model.MemoryObject, path []*model.MemoryReference) bool {
	match := func(name string) bool {
		lower := strings.ToLower(name)
		return strings.Contains(lower, "store") || strings.Contains(lower, "context")
	}
	for _, n := range nodes {
		if match(n.Name) {
			return true
		}
	}
	for _, ref := range path {
		if ref.Type != SyntheticRefType && match(ref.Name) {
			return true
		}
	}
	return false
}

// identifyKeyNodes picks the nodes most relevant to the chain's type. When
// the filter matches nothing, the root and leak endpoints stand in so a
// chain is never reported without anchors.
func identifyKeyNodes(chainType model.ChainType, nodes []*model.MemoryObject, root, leak *model.MemoryObject) []*model.MemoryObject {
	var keep func(*model.MemoryObject) bool
	switch chainType {
	case model.ChainTypeDOM:
		keep = func(o *model.MemoryObject) bool { return o.Type == model.ObjectTypeDOMNode }
	case model.ChainTypeEvent:
		keep = func(o *model.MemoryObject) bool {
			return o.Type == model.ObjectTypeEventListener || o.Type == model.ObjectTypeDOMNode
		}
	case model.ChainTypeClosure:
		keep = func(o *model.MemoryObject) bool { return o.Type == model.ObjectTypeClosure }
	case model.ChainTypeComponent:
		keep = func(o *model.MemoryObject) bool { return o.Type == model.ObjectTypeComponent }
	case model.ChainTypeTimer:
		keep = func(o *model.MemoryObject) bool { return o.Type == model.ObjectTypeTimer }
	case model.ChainTypeStore:
		keep = func(o *model.MemoryObject) bool {
			lower := strings.ToLower(o.Name)
			return strings.Contains(lower, "store") || strings.Contains(lower, "context")
		}
	default:
		keep = func(o *model.MemoryObject) bool { return o.Name != "" }
	}

	var keys []*model.MemoryObject
	for _, n := range nodes {
		if keep(n) {
			keys = append(keys, n)
		}
	}
	if len(keys) == 0 {
		if root != nil {
			keys = append(keys, root)
		}
		if leak != nil && leak != root {
			keys = append(keys, leak)
		}
	}
	return keys
}

// explainChain renders a one-paragraph account of why the object stays alive.
func explainChain(chainType model.ChainType, hops int, root, leak *model.MemoryObject) string {
	rootName := objectLabel(root)
	leakName := objectLabel(leak)

	switch chainType {
	case model.ChainTypeDOM:
		return fmt.Sprintf("%s is held alive through a chain of DOM nodes reachable from %s (%d hops). Detached DOM subtrees stay in memory as long as any JavaScript reference to them survives.", leakName, rootName, hops)
	case model.ChainTypeEvent:
		return fmt.Sprintf("%s is retained via an event listener registration reachable from %s (%d hops). Listeners keep their handler and everything the handler captures alive until removed.", leakName, rootName, hops)
	case model.ChainTypeClosure:
		return fmt.Sprintf("%s is captured by a chain of closures reachable from %s (%d hops). Each closure retains its full lexical environment.", leakName, rootName, hops)
	case model.ChainTypeComponent:
		return fmt.Sprintf("%s is retained through a component instance reachable from %s (%d hops). The component appears to outlive its place in the tree.", leakName, rootName, hops)
	case model.ChainTypeTimer:
		return fmt.Sprintf("%s is retained by an active timer reachable from %s (%d hops). Timer callbacks hold their captures until cleared.", leakName, rootName, hops)
	case model.ChainTypeStore:
		return fmt.Sprintf("%s is retained through a store or context object reachable from %s (%d hops). Long-lived stores accumulate everything registered into them.", leakName, rootName, hops)
	default:
		return fmt.Sprintf("%s is reachable from %s through %d references of mixed kinds.", leakName, rootName, hops)
	}
}

// abstractPath renders a compact dotted form of the path, e.g.
// "window.handlers.onClick(DataCache)". Synthetic markers render as "…".
func abstractPath(path []*model.MemoryReference, root, leak *model.MemoryObject) string {
	var sb strings.Builder
	sb.WriteString(objectLabel(root))
	for _, ref := range path {
		sb.WriteByte('.')
		switch {
		case ref.Type == SyntheticRefType:
			sb.WriteString("…")
		case ref.Name != "":
			sb.WriteString(ref.Name)
		default:
			sb.WriteString("<ref>")
		}
	}
	sb.WriteString("(")
	sb.WriteString(objectLabel(leak))
	sb.WriteString(")")
	return sb.String()
}

// chainFixSuggestion maps a chain type to remediation advice.
func chainFixSuggestion(chainType model.ChainType) string {
	switch chainType {
	case model.ChainTypeDOM:
		return "Null out references to removed DOM elements, or scope them so they fall out of reach when the element is detached."
	case model.ChainTypeEvent:
		return "Remove event listeners when the owning component or element goes away, for example in a cleanup callback."
	case model.ChainTypeClosure:
		return "Avoid capturing large objects in long-lived closures; pass only the fields the closure actually needs."
	case model.ChainTypeComponent:
		return "Make sure unmounted components are not referenced by caches, subscriptions or parent state."
	case model.ChainTypeTimer:
		return "Clear intervals and timeouts when their owner is torn down."
	case model.ChainTypeStore:
		return "Unsubscribe from stores and contexts on teardown, and evict per-session entries from global stores."
	default:
		return "Review the retention path and break the strongest link closest to the GC root."
	}
}

func objectLabel(obj *model.MemoryObject) string {
	if obj == nil {
		return "<unknown>"
	}
	if obj.Name != "" {
		return obj.Name
	}
	if obj.ComponentName != "" {
		return obj.ComponentName
	}
	return string(obj.Type)
}
