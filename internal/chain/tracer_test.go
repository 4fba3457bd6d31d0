package chain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frontscan/internal/testutil"
	"github.com/frontscan/pkg/model"
	"github.com/frontscan/pkg/utils"
)

func TestTraceUnknownObjectYieldsNil(t *testing.T) {
	snap := testutil.NewGraph("s").Object("a", model.ObjectTypeObject, 10).Build()
	tracer := NewTracer(&utils.NullLogger{})

	chains := tracer.TraceReferenceChains("missing", snap, DefaultConfig())
	assert.Nil(t, chains)
}

func TestTraceNoIncomingRefsYieldsEmpty(t *testing.T) {
	// An unreferenced non-root object has no retention path at all.
	snap := testutil.NewGraph("s").
		Object("root", model.ObjectTypeGCRoot, 0).
		Object("orphan", model.ObjectTypeObject, 5000).
		Build()
	tracer := NewTracer(&utils.NullLogger{})

	chains := tracer.TraceReferenceChains("orphan", snap, DefaultConfig())
	assert.Empty(t, chains)
}

func TestTracePathBoundaries(t *testing.T) {
	// Two distinct routes from the root to the leak.
	snap := testutil.NewGraph("s").
		Object("root", model.ObjectTypeGCRoot, 0).
		Object("a", model.ObjectTypeObject, 100).
		Object("b", model.ObjectTypeObject, 100).
		Object("leak", model.ObjectTypeArray, 40000).
		Ref("root", "a", "left").
		Ref("root", "b", "right").
		Ref("a", "leak", "items").
		Ref("b", "leak", "items").
		Build()
	tracer := NewTracer(&utils.NullLogger{})

	chains := tracer.TraceReferenceChains("leak", snap, DefaultConfig())
	require.Len(t, chains, 2)

	for _, c := range chains {
		require.NotEmpty(t, c.Path)
		assert.Equal(t, "root", c.Path[0].SourceID, "path must start at a GC root")
		assert.Equal(t, "leak", c.Path[len(c.Path)-1].TargetID, "path must end at the queried object")
		require.NotNil(t, c.Root)
		assert.Equal(t, model.ObjectTypeGCRoot, c.Root.Type)
		require.NotNil(t, c.LeakObject)
		assert.Equal(t, "leak", c.LeakObject.ID)
		assert.NotEmpty(t, c.Explanation)
		assert.NotEmpty(t, c.FixSuggestion)
	}
}

func TestTraceMaxPathsCap(t *testing.T) {
	b := testutil.NewGraph("s").
		Object("root", model.ObjectTypeGCRoot, 0).
		Object("leak", model.ObjectTypeObject, 1000)
	for i := 0; i < 15; i++ {
		mid := fmt.Sprintf("m%d", i)
		b.Object(mid, model.ObjectTypeObject, 10).
			Ref("root", mid, "slot").
			Ref(mid, "leak", "held")
	}
	tracer := NewTracer(&utils.NullLogger{})

	chains := tracer.TraceReferenceChains("leak", b.Build(), Config{MaxPaths: 10, MaxPathLength: 50})
	assert.Len(t, chains, 10)
}

func TestTraceMaxPathLengthPrunes(t *testing.T) {
	// root -> n0 -> n1 -> n2 -> n3 -> leak: five references.
	b := testutil.NewGraph("s").Object("root", model.ObjectTypeGCRoot, 0)
	prev := "root"
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("n%d", i)
		b.Object(id, model.ObjectTypeObject, 10).Ref(prev, id, "next")
		prev = id
	}
	b.Object("leak", model.ObjectTypeObject, 1000).Ref(prev, "leak", "next")
	snap := b.Build()
	tracer := NewTracer(&utils.NullLogger{})

	short := tracer.TraceReferenceChains("leak", snap, Config{MaxPaths: 10, MaxPathLength: 3})
	assert.Empty(t, short)

	long := tracer.TraceReferenceChains("leak", snap, Config{MaxPaths: 10, MaxPathLength: 5, SimplifyPaths: false})
	require.Len(t, long, 1)
	assert.Len(t, long[0].Path, 5)
}

func TestTraceCycleTerminates(t *testing.T) {
	snap := testutil.NewGraph("s").
		Object("a", model.ObjectTypeObject, 10).
		Object("leak", model.ObjectTypeObject, 10).
		Ref("a", "leak", "fwd").
		Ref("leak", "a", "back").
		Build()
	tracer := NewTracer(&utils.NullLogger{})

	chains := tracer.TraceReferenceChains("leak", snap, DefaultConfig())
	assert.Empty(t, chains, "cycle without a root must terminate with no paths")
}

func TestTraceSimplifiesLongPaths(t *testing.T) {
	// Anonymous small intermediates should collapse into one marker.
	b := testutil.NewGraph("s").Object("root", model.ObjectTypeGCRoot, 0)
	prev := "root"
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("o%d", i)
		b.Object(id, model.ObjectTypeObject, 16).Ref(prev, id, "")
		prev = id
	}
	b.Object("leak", model.ObjectTypeArray, 50000).Ref(prev, "leak", "entries")
	snap := b.Build()
	tracer := NewTracer(&utils.NullLogger{})

	cfg := DefaultConfig()
	chains := tracer.TraceReferenceChains("leak", snap, cfg)
	require.Len(t, chains, 1)

	path := chains[0].Path
	require.Len(t, path, 3)
	assert.Equal(t, "root", path[0].SourceID)
	assert.Equal(t, SyntheticRefType, path[1].Type)
	assert.Equal(t, int64(3), path[1].Weight)
	assert.Equal(t, "leak", path[2].TargetID)

	cfg.SimplifyPaths = false
	full := tracer.TraceReferenceChains("leak", snap, cfg)
	require.Len(t, full, 1)
	assert.Len(t, full[0].Path, 5)
}

func TestTraceClassifiesDOMChain(t *testing.T) {
	snap := testutil.NewGraph("s").
		Object("root", model.ObjectTypeGCRoot, 0).
		Object("div", model.ObjectTypeDOMNode, 200).
		Object("span", model.ObjectTypeDOMNode, 100).
		Ref("root", "div", "detachedNodes").
		Ref("div", "span", "child").
		Build()
	tracer := NewTracer(&utils.NullLogger{})

	chains := tracer.TraceReferenceChains("span", snap, DefaultConfig())
	require.Len(t, chains, 1)
	assert.Equal(t, model.ChainTypeDOM, chains[0].Type)

	var keyTypes []model.ObjectType
	for _, n := range chains[0].KeyNodes {
		keyTypes = append(keyTypes, n.Type)
	}
	assert.NotContains(t, keyTypes, model.ObjectTypeGCRoot)
	assert.Contains(t, keyTypes, model.ObjectTypeDOMNode)
}

func TestTraceClassifiesEventChain(t *testing.T) {
	snap := testutil.NewGraph("s").
		Object("root", model.ObjectTypeGCRoot, 0).
		Object("listener", model.ObjectTypeEventListener, 64).
		Object("leak", model.ObjectTypeObject, 30000).
		Ref("root", "listener", "handlers").
		Ref("listener", "leak", "captured").
		Build()
	tracer := NewTracer(&utils.NullLogger{})

	chains := tracer.TraceReferenceChains("leak", snap, DefaultConfig())
	require.Len(t, chains, 1)
	assert.Equal(t, model.ChainTypeEvent, chains[0].Type)
}

func TestTraceStoreChainByName(t *testing.T) {
	b := testutil.NewGraph("s").
		Object("root", model.ObjectTypeGCRoot, 0).
		Object("store", model.ObjectTypeObject, 500).
		Object("leak", model.ObjectTypeObject, 20000)
	snap := b.Ref("root", "store", "appStore").Ref("store", "leak", "sessions").Build()
	snap.Objects[1].Name = "GlobalStore"
	tracer := NewTracer(&utils.NullLogger{})

	chains := tracer.TraceReferenceChains("leak", snap, DefaultConfig())
	require.Len(t, chains, 1)
	assert.Equal(t, model.ChainTypeStore, chains[0].Type)
}

func TestTraceKeyNodesFallBackToEndpoints(t *testing.T) {
	// A mixed chain of unnamed plain objects has no type-specific key nodes.
	snap := testutil.NewGraph("s").
		Object("root", model.ObjectTypeGCRoot, 0).
		Object("mid", model.ObjectTypeObject, 10).
		Object("leak", model.ObjectTypeObject, 10).
		Ref("root", "mid", "a").
		Ref("mid", "leak", "b").
		Build()
	tracer := NewTracer(&utils.NullLogger{})

	chains := tracer.TraceReferenceChains("leak", snap, DefaultConfig())
	require.Len(t, chains, 1)
	assert.Equal(t, model.ChainTypeMixed, chains[0].Type)

	require.Len(t, chains[0].KeyNodes, 2)
	assert.Equal(t, "root", chains[0].KeyNodes[0].ID)
	assert.Equal(t, "leak", chains[0].KeyNodes[1].ID)
}

func TestTraceAbstractPath(t *testing.T) {
	snap := testutil.NewGraph("s").
		Object("root", model.ObjectTypeGCRoot, 0).
		Object("cache", model.ObjectTypeMap, 100).
		Object("leak", model.ObjectTypeArray, 20000).
		Ref("root", "cache", "cache").
		Ref("cache", "leak", "entries").
		Build()
	snap.Objects[0].Name = "window"
	snap.Objects[2].Name = "DataCache"
	tracer := NewTracer(&utils.NullLogger{})

	chains := tracer.TraceReferenceChains("leak", snap, DefaultConfig())
	require.Len(t, chains, 1)
	assert.Equal(t, "window.cache.entries(DataCache)", chains[0].AbstractPath)
}
