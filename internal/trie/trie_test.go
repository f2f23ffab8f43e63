package trie

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ambre-go/ambre/internal/order"
	"github.com/ambre-go/ambre/internal/symbol"
)

func TestInsertPathCreatesOneNodePerDistinctPath(t *testing.T) {
	tr := New()
	isCons := func(symbol.ID) bool { return false }

	id1 := tr.InsertPath([]symbol.ID{1, 2}, isCons)
	id2 := tr.InsertPath([]symbol.ID{1, 2}, isCons)
	require.Equal(t, id1, id2)

	id3 := tr.InsertPath([]symbol.ID{1, 3}, isCons)
	require.NotEqual(t, id1, id3)
	require.Equal(t, 4, tr.NodeCount()) // root, {1}, {1,2}, {1,3}
}

func TestOccurrencesAndDepth(t *testing.T) {
	tr := New()
	isCons := func(symbol.ID) bool { return false }
	id := tr.InsertPath([]symbol.ID{5, 6, 7}, isCons)
	tr.Increment(id)
	tr.Increment(id)
	require.Equal(t, uint64(2), tr.Occurrences(id))
	require.Equal(t, 3, tr.Depth(id))
}

func TestConsequentsCountTracksClassifier(t *testing.T) {
	tr := New()
	isCons := func(s symbol.ID) bool { return s == 10 }
	id := tr.InsertPath([]symbol.ID{10, 20, 11}, isCons)
	require.Equal(t, 1, tr.ConsequentsCount(id))
}

func TestGetOrNone(t *testing.T) {
	tr := New()
	isCons := func(symbol.ID) bool { return false }
	tr.InsertPath([]symbol.ID{1, 2}, isCons)

	id, ok := tr.GetOrNone([]symbol.ID{1, 2})
	require.True(t, ok)
	require.Equal(t, 2, tr.Depth(id))

	_, ok = tr.GetOrNone([]symbol.ID{1, 9})
	require.False(t, ok)
}

func TestPathReconstructsInsertionOrder(t *testing.T) {
	tr := New()
	isCons := func(symbol.ID) bool { return false }
	id := tr.InsertPath([]symbol.ID{4, 2, 9}, isCons)
	path := tr.Path(id, nil)
	require.Equal(t, []symbol.ID{4, 2, 9}, path)
}

func TestInsertChildIsIdempotent(t *testing.T) {
	tr := New()
	c1 := tr.InsertChild(Root, 7, false)
	c2 := tr.InsertChild(Root, 7, false)
	require.Equal(t, c1, c2)
}

func TestSubtreeIterVisitsEveryNodeAndPrunesOnFalse(t *testing.T) {
	tr := New()
	isCons := func(symbol.ID) bool { return false }
	tr.InsertPath([]symbol.ID{1}, isCons)
	tr.InsertPath([]symbol.ID{1, 2}, isCons)
	tr.InsertPath([]symbol.ID{1, 3}, isCons)
	ord := order.Build(nil, tr.Depth1Occurrences())

	var visited []symbol.ID
	tr.SubtreeIter(Root, ord, nil, func(v Visit) {
		if v.ID != Root {
			visited = append(visited, v.Path[len(v.Path)-1])
		}
	})
	require.Len(t, visited, 3)

	var prunedVisit int
	tr.SubtreeIter(Root, ord, func(v Visit) bool {
		return v.Depth < 1 // prune every node below the root
	}, func(v Visit) {
		prunedVisit++
	})
	require.Equal(t, 1, prunedVisit) // only the root itself passes
}

func TestDepth1Occurrences(t *testing.T) {
	tr := New()
	isCons := func(symbol.ID) bool { return false }
	id := tr.InsertPath([]symbol.ID{3}, isCons)
	tr.Increment(id)
	tr.Increment(id)
	occ := tr.Depth1Occurrences()
	require.Equal(t, uint64(2), occ[3])
}
