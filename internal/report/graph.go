package report

import (
	"github.com/frontscan/internal/chain"
	"github.com/frontscan/pkg/model"
)

// GraphNode is one node of the retention graph projection.
type GraphNode struct {
	ID            string           `json:"id"`
	Type          model.ObjectType `json:"type"`
	Name          string           `json:"name,omitempty"`
	Size          int64            `json:"size"`
	ComponentName string           `json:"component_name,omitempty"`
	IsRoot        bool             `json:"is_root,omitempty"`
	IsLeak        bool             `json:"is_leak,omitempty"`
	IsKeyNode     bool             `json:"is_key_node,omitempty"`
}

// GraphEdge is one edge of the retention graph projection.
type GraphEdge struct {
	SourceID  string `json:"source_id"`
	TargetID  string `json:"target_id"`
	Name      string `json:"name,omitempty"`
	Synthetic bool   `json:"synthetic,omitempty"`
	LeakID    string `json:"leak_id"`
}

// ChainGraph is a renderable projection of all traced retention chains,
// deduplicated across leaks so shared retainers appear once.
type ChainGraph struct {
	Nodes []*GraphNode `json:"nodes"`
	Edges []*GraphEdge `json:"edges"`
}

// BuildChainGraph flattens the report's chains into one node/edge set.
func BuildChainGraph(report *model.AnalysisReport) *ChainGraph {
	g := &ChainGraph{}
	nodes := make(map[string]*GraphNode)

	addNode := func(obj *model.MemoryObject) *GraphNode {
		if obj == nil {
			return nil
		}
		if n, ok := nodes[obj.ID]; ok {
			return n
		}
		n := &GraphNode{
			ID:            obj.ID,
			Type:          obj.Type,
			Name:          obj.Name,
			Size:          obj.Size,
			ComponentName: obj.ComponentName,
		}
		nodes[obj.ID] = n
		g.Nodes = append(g.Nodes, n)
		return n
	}

	for leakID, chains := range report.Chains {
		for _, c := range chains {
			for _, obj := range c.Objects {
				addNode(obj)
			}
			if n := addNode(c.Root); n != nil {
				n.IsRoot = true
			}
			if n := addNode(c.LeakObject); n != nil {
				n.IsLeak = true
			}
			for _, key := range c.KeyNodes {
				if n := addNode(key); n != nil {
					n.IsKeyNode = true
				}
			}
			for _, ref := range c.Path {
				g.Edges = append(g.Edges, &GraphEdge{
					SourceID:  ref.SourceID,
					TargetID:  ref.TargetID,
					Name:      ref.Name,
					Synthetic: ref.Type == chain.SyntheticRefType,
					LeakID:    leakID,
				})
			}
		}
	}
	return g
}
