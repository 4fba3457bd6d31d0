// Package chain reconstructs the reference paths that keep a suspicious
// object alive, walking the snapshot graph backward to a GC root.
package chain

import (
	"fmt"

	"github.com/frontscan/pkg/model"
	"github.com/frontscan/pkg/utils"
)

// Traversal and simplification bounds.
const (
	// DefaultMaxPathLength caps the depth of a single retention path.
	DefaultMaxPathLength = 50

	// DefaultMaxPaths caps how many paths are traced per object. The cap is
	// enforced during traversal, not as a post-filter, so worst-case work
	// stays bounded on densely connected graphs.
	DefaultMaxPaths = 10

	// simplifyMinHops is the path length above which simplification kicks in.
	simplifyMinHops = 3

	// maxKeptGap is the widest run of dropped references allowed before a
	// midpoint is kept as an anchor.
	maxKeptGap = 10

	// keyNodeSizeThreshold marks a node as worth keeping during
	// simplification based on size alone.
	keyNodeSizeThreshold int64 = 10 * 1024
)

// Config tunes a trace run.
type Config struct {
	MaxPathLength    int
	MaxPaths         int
	SimplifyPaths    bool
	IdentifyKeyNodes bool
}

// DefaultConfig returns the default trace configuration.
func DefaultConfig() Config {
	return Config{
		MaxPathLength:    DefaultMaxPathLength,
		MaxPaths:         DefaultMaxPaths,
		SimplifyPaths:    true,
		IdentifyKeyNodes: true,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxPathLength <= 0 {
		c.MaxPathLength = DefaultMaxPathLength
	}
	if c.MaxPaths <= 0 {
		c.MaxPaths = DefaultMaxPaths
	}
	return c
}

// Tracer performs backward reachability searches over snapshots.
type Tracer struct {
	logger utils.Logger
}

// NewTracer creates a Tracer.
func NewTracer(logger utils.Logger) *Tracer {
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	return &Tracer{logger: logger}
}

// TraceReferenceChains finds up to cfg.MaxPaths retention paths from a GC
// root to the given object, each at most cfg.MaxPathLength hops. An object
// with no route to a root yields an empty result.
func (t *Tracer) TraceReferenceChains(objectID string, snap *model.MemorySnapshot, cfg Config) []*model.ReferenceChainInfo {
	cfg = cfg.withDefaults()

	objects := snap.ObjectIndex()
	if _, ok := objects[objectID]; !ok {
		t.logger.Warn("trace skipped: object %s not in snapshot %s", objectID, snap.ID)
		return nil
	}
	incoming := snap.IncomingIndex()

	rawPaths := t.findRootPaths(objectID, objects, incoming, cfg)

	chains := make([]*model.ReferenceChainInfo, 0, len(rawPaths))
	for i, path := range rawPaths {
		if cfg.SimplifyPaths && len(path) > simplifyMinHops {
			path = simplifyPath(path, objects)
		}
		info := t.buildChainInfo(fmt.Sprintf("chain-%s-%d", objectID, i+1), objectID, path, objects, cfg)
		chains = append(chains, info)
	}

	t.logger.Debug("traced %d chains for object %s", len(chains), objectID)
	return chains
}

// dfsFrame is one step of the backward walk. via is the reference through
// which this object was reached from the previous frame (nil at the leak).
type dfsFrame struct {
	objID    string
	refIndex int
	via      *model.MemoryReference
}

// findRootPaths walks incoming references backward from startID until hitting
// GC roots. Iterative DFS with a single shared visited set and backtracking;
// terminates as soon as maxPaths paths have been emitted.
func (t *Tracer) findRootPaths(
	startID string,
	objects map[string]*model.MemoryObject,
	incoming map[string][]*model.MemoryReference,
	cfg Config,
) [][]*model.MemoryReference {
	var paths [][]*model.MemoryReference

	stack := []dfsFrame{{objID: startID}}
	visited := map[string]bool{startID: true}

	for len(stack) > 0 && len(paths) < cfg.MaxPaths {
		frame := &stack[len(stack)-1]

		if frame.refIndex == 0 && len(stack) > 1 {
			if obj, ok := objects[frame.objID]; ok && obj.Type == model.ObjectTypeGCRoot {
				// Emit root -> leak: references along the stack, top first.
				// Paths end at the first root, so the frame pops right away.
				path := make([]*model.MemoryReference, 0, len(stack)-1)
				for i := len(stack) - 1; i >= 1; i-- {
					path = append(path, stack[i].via)
				}
				paths = append(paths, path)
				delete(visited, frame.objID)
				stack = stack[:len(stack)-1]
				continue
			}
		}

		// A path may not exceed MaxPathLength references.
		if len(stack) > cfg.MaxPathLength {
			delete(visited, frame.objID)
			stack = stack[:len(stack)-1]
			continue
		}

		refs := incoming[frame.objID]
		advanced := false
		for frame.refIndex < len(refs) {
			ref := refs[frame.refIndex]
			frame.refIndex++
			if visited[ref.SourceID] {
				continue
			}
			if _, ok := objects[ref.SourceID]; !ok {
				continue // dangling reference, provider contract violation
			}
			visited[ref.SourceID] = true
			stack = append(stack, dfsFrame{objID: ref.SourceID, via: ref})
			advanced = true
			break
		}

		if !advanced {
			delete(visited, frame.objID)
			stack = stack[:len(stack)-1]
		}
	}

	return paths
}

// buildChainInfo resolves the nodes along a path and derives the chain's
// type, key nodes, explanation, abstract path and fix suggestion.
func (t *Tracer) buildChainInfo(
	id, leakID string,
	path []*model.MemoryReference,
	objects map[string]*model.MemoryObject,
	cfg Config,
) *model.ReferenceChainInfo {
	nodes := resolvePathObjects(path, objects)

	var root *model.MemoryObject
	if len(nodes) > 0 {
		root = nodes[0]
	}
	leak := objects[leakID]

	chainType := classifyChain(nodes, path)

	info := &model.ReferenceChainInfo{
		ID:           id,
		Type:         chainType,
		Path:         path,
		Objects:      nodes,
		Root:         root,
		LeakObject:   leak,
		Explanation:  explainChain(chainType, len(path), root, leak),
		AbstractPath: abstractPath(path, root, leak),
	}
	info.FixSuggestion = chainFixSuggestion(chainType)

	if cfg.IdentifyKeyNodes {
		info.KeyNodes = identifyKeyNodes(chainType, nodes, root, leak)
	}

	return info
}

// resolvePathObjects maps a root->leak reference path to its node objects.
// Synthetic markers inserted by simplification resolve to nothing and are
// skipped.
func resolvePathObjects(path []*model.MemoryReference, objects map[string]*model.MemoryObject) []*model.MemoryObject {
	var nodes []*model.MemoryObject
	seen := make(map[string]bool)

	appendNode := func(id string) {
		if obj, ok := objects[id]; ok && !seen[id] {
			seen[id] = true
			nodes = append(nodes, obj)
		}
	}

	for i, ref := range path {
		if i == 0 {
			appendNode(ref.SourceID)
		}
		appendNode(ref.TargetID)
	}
	return nodes
}
