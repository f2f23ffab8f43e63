package ingest

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ambre-go/ambre/internal/symbol"
	"github.com/ambre-go/ambre/internal/trie"
)

func TestIngestInsertsEveryNonEmptySubset(t *testing.T) {
	tr := trie.New()
	cons := NewConsequents(nil)
	err := Ingest(tr, cons, []symbol.ID{1, 2, 3}, Options{})
	require.NoError(t, err)

	// 2^3 - 1 = 7 non-empty subsets, plus the root.
	require.Equal(t, uint64(1), tr.Occurrences(trie.Root))
	for _, path := range [][]symbol.ID{
		{1}, {2}, {3}, {1, 2}, {1, 3}, {2, 3}, {1, 2, 3},
	} {
		id, ok := tr.GetOrNone(path)
		require.True(t, ok, "missing subset %v", path)
		require.Equal(t, uint64(1), tr.Occurrences(id))
	}
}

func TestIngestRespectsMaxLen(t *testing.T) {
	tr := trie.New()
	cons := NewConsequents(nil)
	err := Ingest(tr, cons, []symbol.ID{1, 2, 3}, Options{MaxLen: 2})
	require.NoError(t, err)

	_, ok := tr.GetOrNone([]symbol.ID{1, 2, 3})
	require.False(t, ok)
	_, ok = tr.GetOrNone([]symbol.ID{1, 2})
	require.True(t, ok)
}

func TestStrictModeRejectsOversizedTransactions(t *testing.T) {
	tr := trie.New()
	cons := NewConsequents(nil)
	err := Ingest(tr, cons, []symbol.ID{1, 2, 3}, Options{MaxLen: 2, Strict: true})
	require.Error(t, err)
	var tooBig *MaxLenExceededError
	require.ErrorAs(t, err, &tooBig)

	// strict rejection must not mutate the trie at all
	require.Equal(t, 1, tr.NodeCount())
}

func TestCanonicalOrderPutsConsequentsFirstInDeclaredOrder(t *testing.T) {
	cons := NewConsequents([]symbol.ID{30, 10})
	out := CanonicalOrder([]symbol.ID{10, 5, 30, 1}, cons)
	require.Equal(t, []symbol.ID{30, 10, 1, 5}, out)
}

func TestDedupeCollapsesRepeats(t *testing.T) {
	out := Dedupe([]symbol.ID{1, 2, 1, 3, 2})
	require.Equal(t, []symbol.ID{1, 2, 3}, out)
}

func TestSamplingBelowOneIsBestEffort(t *testing.T) {
	tr := trie.New()
	cons := NewConsequents(nil)
	r := rand.New(rand.NewSource(42))
	err := Ingest(tr, cons, []symbol.ID{1, 2}, Options{SamplingRatio: 0.5, Rand: r})
	require.NoError(t, err) // some subsets may be dropped at random; ingestion itself still succeeds
}
