package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ambre-go/ambre/internal/ingest"
	"github.com/ambre-go/ambre/internal/order"
	"github.com/ambre-go/ambre/internal/symbol"
	"github.com/ambre-go/ambre/internal/trie"
)

// buildBasketTrie ingests a handful of baskets with bread(1)/milk(2) as
// consequents and butter(3)/eggs(4) as antecedent candidates.
func buildBasketTrie(t *testing.T) (*trie.Trie, *order.Order, ingest.Consequents) {
	t.Helper()
	tr := trie.New()
	cons := ingest.NewConsequents([]symbol.ID{1, 2})
	baskets := [][]symbol.ID{
		{1, 2, 4},
		{1, 3},
		{2, 4, 3},
		{1, 2, 3, 4},
		{1, 2},
	}
	for _, b := range baskets {
		require.NoError(t, ingest.Ingest(tr, cons, b, ingest.Options{}))
	}
	ord := order.Build(cons.Order, tr.Depth1Occurrences())
	return tr, ord, cons
}

func TestEnumerateSkipsTheEmptyRootItemset(t *testing.T) {
	tr, ord, _ := buildBasketTrie(t)
	items, err := Enumerate(context.Background(), tr, ord, Filters{MaxLength: Unbounded, MaxAntecedentsLength: Unbounded})
	require.NoError(t, err)
	for _, it := range items {
		require.NotEqual(t, 0, it.Depth)
	}
}

func TestEnumerateMinOccurrencesPrunesSubtrees(t *testing.T) {
	tr, ord, _ := buildBasketTrie(t)
	items, err := Enumerate(context.Background(), tr, ord, Filters{
		MinOccurrences:       5,
		MaxLength:            Unbounded,
		MaxAntecedentsLength: Unbounded,
	})
	require.NoError(t, err)
	require.Empty(t, items) // nothing occurs in all 5 baskets
}

func TestEnumerateRespectsMaxAntecedentsLength(t *testing.T) {
	tr, ord, _ := buildBasketTrie(t)
	items, err := Enumerate(context.Background(), tr, ord, Filters{
		MaxLength:            Unbounded,
		MaxAntecedentsLength: 1,
	})
	require.NoError(t, err)
	for _, it := range items {
		require.LessOrEqual(t, it.Depth-it.ConsequentsCount, 1)
	}
}

func TestEnumerateCancellation(t *testing.T) {
	tr, ord, _ := buildBasketTrie(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Enumerate(ctx, tr, ord, Filters{MaxLength: Unbounded, MaxAntecedentsLength: Unbounded})
	require.ErrorIs(t, err, ErrCancelled)
}

func TestDeriveComputesSupportConfidenceLift(t *testing.T) {
	tr, ord, _ := buildBasketTrie(t)
	rules, err := Derive(context.Background(), tr, ord, DeriveOptions{MaxAntecedentsLength: Unbounded}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, rules)
	for _, r := range rules {
		require.GreaterOrEqual(t, r.Confidence, 0.0)
		require.LessOrEqual(t, r.Confidence, 1.0)
		require.GreaterOrEqual(t, r.Support, 0.0)
	}
}

func TestDeriveMinConfidenceFilter(t *testing.T) {
	tr, ord, _ := buildBasketTrie(t)
	minConf := 0.99
	rules, err := Derive(context.Background(), tr, ord, DeriveOptions{
		MaxAntecedentsLength: Unbounded,
		MinConfidence:        &minConf,
	}, nil)
	require.NoError(t, err)
	for _, r := range rules {
		require.GreaterOrEqual(t, r.Confidence, minConf)
	}
}

func TestSuppressRedundantDropsNonImprovingSupersets(t *testing.T) {
	rules := []Rule{
		{Antecedents: []symbol.ID{1}, Consequents: []symbol.ID{9}, Confidence: 0.9},
		{Antecedents: []symbol.ID{1, 2}, Consequents: []symbol.ID{9}, Confidence: 0.9},
		{Antecedents: []symbol.ID{1, 3}, Consequents: []symbol.ID{9}, Confidence: 0.99},
	}
	kept := suppressRedundant(rules)
	require.Len(t, kept, 2)
	for _, r := range kept {
		if len(r.Antecedents) == 2 {
			require.Equal(t, []symbol.ID{1, 3}, r.Antecedents)
		}
	}
}

func TestApplyCommonSenseSuppressesMatchingSupersets(t *testing.T) {
	rules := []Rule{
		{Antecedents: []symbol.ID{1, 2}, Consequents: []symbol.ID{9}},
		{Antecedents: []symbol.ID{5}, Consequents: []symbol.ID{9}},
	}
	cs := []CommonSenseRule{{Antecedents: []symbol.ID{1}, Consequents: []symbol.ID{9}}}
	out := applyCommonSense(rules, cs)
	require.Len(t, out, 1)
	require.Equal(t, []symbol.ID{5}, out[0].Antecedents)
}

func TestIsSubset(t *testing.T) {
	require.True(t, isSubset(nil, []symbol.ID{1, 2}))
	require.True(t, isSubset([]symbol.ID{1}, []symbol.ID{1, 2}))
	require.False(t, isSubset([]symbol.ID{3}, []symbol.ID{1, 2}))
}
