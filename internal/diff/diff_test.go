package diff

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frontscan/internal/snapshot"
	"github.com/frontscan/internal/testutil"
	"github.com/frontscan/pkg/model"
	"github.com/frontscan/pkg/utils"
)

type stubProvider struct {
	snaps map[string]*model.MemorySnapshot
	order []string
	next  int
}

func (p *stubProvider) Capture(_ context.Context, _ string) (*model.MemorySnapshot, error) {
	id := p.order[p.next]
	p.next++
	return p.snaps[id], nil
}

func storeWith(t *testing.T, snaps ...*model.MemorySnapshot) *snapshot.Store {
	t.Helper()
	provider := &stubProvider{snaps: make(map[string]*model.MemorySnapshot)}
	for _, s := range snaps {
		provider.snaps[s.ID] = s
		provider.order = append(provider.order, s.ID)
	}
	store := snapshot.NewStore(provider, &utils.NullLogger{})
	for range snaps {
		_, err := store.Create(context.Background(), "")
		require.NoError(t, err)
	}
	return store
}

func TestDiffMissingSnapshotSoftFails(t *testing.T) {
	store := storeWith(t, testutil.NewGraph("only").Build())
	engine := NewEngine(store, &utils.NullLogger{})

	_, ok := engine.Diff("missing", "only")
	assert.False(t, ok)
	_, ok = engine.Diff("only", "missing")
	assert.False(t, ok)
}

func TestDiffIdenticalSnapshotsIsEmpty(t *testing.T) {
	build := func(id string) *model.MemorySnapshot {
		return testutil.NewGraph(id).
			Object("a", model.ObjectTypeObject, 1000).
			Object("b", model.ObjectTypeArray, 2000).
			Ref("a", "b", "items").
			Build()
	}
	store := storeWith(t, build("base"), build("target"))
	engine := NewEngine(store, &utils.NullLogger{})

	d, ok := engine.Diff("base", "target")
	require.True(t, ok)
	assert.Empty(t, d.Added)
	assert.Empty(t, d.Removed)
	assert.Empty(t, d.Changed)
	assert.Empty(t, d.LeakCandidates)
	assert.Zero(t, d.TotalSizeDelta)
	assert.Zero(t, d.TotalObjectsDelta)
}

func TestDiffUnchangedObjectNotInChanged(t *testing.T) {
	// Scenario: object X present in both with identical size and retained count.
	base := testutil.NewGraph("base").Object("x", model.ObjectTypeObject, 1000).Build()
	target := testutil.NewGraph("target").Object("x", model.ObjectTypeObject, 1000).Build()

	engine := NewEngine(storeWith(t, base, target), &utils.NullLogger{})
	d, ok := engine.Diff("base", "target")
	require.True(t, ok)
	assert.Empty(t, d.Changed)
}

func TestDiffOrderIndependence(t *testing.T) {
	mk := func(id string, reverse bool) *model.MemorySnapshot {
		b := testutil.NewGraph(id)
		if reverse {
			b.Object("c", model.ObjectTypeMap, 3000).
				Object("b", model.ObjectTypeArray, 2000).
				Object("a", model.ObjectTypeObject, 1000)
		} else {
			b.Object("a", model.ObjectTypeObject, 1000).
				Object("b", model.ObjectTypeArray, 2000).
				Object("c", model.ObjectTypeMap, 3000)
		}
		return b.Build()
	}
	target := func(id string) *model.MemorySnapshot {
		return testutil.NewGraph(id).
			Object("b", model.ObjectTypeArray, 2000).
			Object("d", model.ObjectTypeSet, 20000).
			Build()
	}

	engine1 := NewEngine(storeWith(t, mk("base", false), target("t1")), &utils.NullLogger{})
	engine2 := NewEngine(storeWith(t, mk("base", true), target("t2")), &utils.NullLogger{})

	d1, ok := engine1.Diff("base", "t1")
	require.True(t, ok)
	d2, ok := engine2.Diff("base", "t2")
	require.True(t, ok)

	ids := func(objs []*model.MemoryObject) []string {
		var out []string
		for _, o := range objs {
			out = append(out, o.ID)
		}
		return out
	}
	assert.ElementsMatch(t, ids(d1.Added), ids(d2.Added))
	assert.ElementsMatch(t, ids(d1.Removed), ids(d2.Removed))
	assert.ElementsMatch(t, ids(d1.LeakCandidates), ids(d2.LeakCandidates))
}

func TestDiffLargeAddedObjectIsCandidate(t *testing.T) {
	// Scenario: Y added with size=20000, retainedCount=1.
	base := testutil.NewGraph("base").Object("a", model.ObjectTypeObject, 100).Build()
	target := testutil.NewGraph("target").
		Object("a", model.ObjectTypeObject, 100).
		Object("y", model.ObjectTypeArray, 20000).
		Build()

	engine := NewEngine(storeWith(t, base, target), &utils.NullLogger{})
	d, ok := engine.Diff("base", "target")
	require.True(t, ok)

	require.Len(t, d.Added, 1)
	require.Len(t, d.LeakCandidates, 1)
	assert.Equal(t, "y", d.LeakCandidates[0].ID)
}

func TestDiffSmallOrUnretainedAddedObjectIsNotCandidate(t *testing.T) {
	base := testutil.NewGraph("base").Build()
	target := testutil.NewGraph("target").
		Object("small", model.ObjectTypeObject, 500).
		Object("unretained", model.ObjectTypeArray, 50000).
		Build()
	target.Objects[1].RetainedCount = 0

	engine := NewEngine(storeWith(t, base, target), &utils.NullLogger{})
	d, ok := engine.Diff("base", "target")
	require.True(t, ok)
	assert.Empty(t, d.LeakCandidates)
}

func TestDiffGrowingObjectIsCandidate(t *testing.T) {
	base := testutil.NewGraph("base").Object("g", model.ObjectTypeMap, 8000).Build()
	target := testutil.NewGraph("target").Object("g", model.ObjectTypeMap, 20000).Build()

	engine := NewEngine(storeWith(t, base, target), &utils.NullLogger{})
	d, ok := engine.Diff("base", "target")
	require.True(t, ok)

	require.Len(t, d.Changed, 1)
	assert.Equal(t, int64(12000), d.Changed[0].SizeDelta)
	assert.InDelta(t, 1.5, d.Changed[0].ChangeRate, 0.0001)
	require.Len(t, d.LeakCandidates, 1)
	assert.Equal(t, "g", d.LeakCandidates[0].ID)
}

func TestDiffSlowGrowthIsNotCandidate(t *testing.T) {
	// Grows by 6000 but only 20% relative: passes the delta bar, fails the rate bar.
	base := testutil.NewGraph("base").Object("g", model.ObjectTypeMap, 30000).Build()
	target := testutil.NewGraph("target").Object("g", model.ObjectTypeMap, 36000).Build()

	engine := NewEngine(storeWith(t, base, target), &utils.NullLogger{})
	d, ok := engine.Diff("base", "target")
	require.True(t, ok)
	require.Len(t, d.Changed, 1)
	assert.Empty(t, d.LeakCandidates)
}

func TestDiffAddedComponentInstanceIsCandidate(t *testing.T) {
	base := testutil.NewGraph("base").Build()
	target := testutil.NewGraph("target").
		Object("comp", model.ObjectTypeComponent, 64). // small, but still a candidate
		Build()

	engine := NewEngine(storeWith(t, base, target), &utils.NullLogger{})
	d, ok := engine.Diff("base", "target")
	require.True(t, ok)
	require.Len(t, d.LeakCandidates, 1)
	assert.Equal(t, "comp", d.LeakCandidates[0].ID)
}

func TestDiffCandidatesDeduplicated(t *testing.T) {
	base := testutil.NewGraph("base").Build()
	target := testutil.NewGraph("target").
		Object("comp", model.ObjectTypeComponent, 50000). // large added AND component rule
		Build()

	engine := NewEngine(storeWith(t, base, target), &utils.NullLogger{})
	d, ok := engine.Diff("base", "target")
	require.True(t, ok)
	assert.Len(t, d.LeakCandidates, 1)
}

func TestDiffRemovedAndAggregates(t *testing.T) {
	base := testutil.NewGraph("base").
		Object("a", model.ObjectTypeObject, 1000).
		Object("gone", model.ObjectTypeArray, 500).
		Ref("a", "gone", "buf").
		Build()
	target := testutil.NewGraph("target").
		Object("a", model.ObjectTypeObject, 1000).
		Build()

	engine := NewEngine(storeWith(t, base, target), &utils.NullLogger{})
	d, ok := engine.Diff("base", "target")
	require.True(t, ok)

	require.Len(t, d.Removed, 1)
	assert.Equal(t, "gone", d.Removed[0].ID)
	assert.Equal(t, int64(-500), d.TotalSizeDelta)
	assert.Equal(t, -1, d.TotalObjectsDelta)
	assert.Equal(t, -1, d.TotalReferencesDelta)
}

func TestDiffChangeRateGuardsZeroBaseSize(t *testing.T) {
	base := testutil.NewGraph("base").Object("z", model.ObjectTypeObject, 0).Build()
	target := testutil.NewGraph("target").Object("z", model.ObjectTypeObject, 6000).Build()

	engine := NewEngine(storeWith(t, base, target), &utils.NullLogger{})
	d, ok := engine.Diff("base", "target")
	require.True(t, ok)
	require.Len(t, d.Changed, 1)
	assert.InDelta(t, 6000.0, d.Changed[0].ChangeRate, 0.0001)
}
