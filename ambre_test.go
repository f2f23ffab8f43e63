package ambre

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// e1Transactions is spec example E1's grocery-basket log.
var e1Transactions = []Transaction{
	{"milk", "bread"},
	{"butter"},
	{"beer", "diapers"},
	{"milk", "bread", "butter"},
	{"bread"},
}

func buildE1(t *testing.T) *Index {
	t.Helper()
	idx, err := New(Options{Consequents: []string{"bread"}, MaxAntecedentsLength: Unbounded})
	require.NoError(t, err)
	require.NoError(t, idx.InsertTransactions(e1Transactions, IngestOptions{}))
	return idx
}

func TestE1GroceryBasketItemsetOccurrences(t *testing.T) {
	idx := buildE1(t)
	itemsets, err := idx.DeriveItemsets(context.Background(), ItemsetFilters{})
	require.NoError(t, err)

	occ := make(map[string]uint64)
	for _, it := range itemsets {
		key := ""
		for _, c := range it.Consequents {
			key += "C:" + c + ","
		}
		for _, a := range it.Antecedents {
			key += "A:" + a + ","
		}
		occ[key] = it.Occurrences
	}
	require.Equal(t, uint64(3), occ["C:bread,"])
	require.Equal(t, uint64(2), occ["C:bread,A:milk,"])
	require.Equal(t, uint64(2), occ["A:butter,"])
}

func TestE1GroceryBasketRuleMeasures(t *testing.T) {
	idx := buildE1(t)
	rules, err := idx.DeriveRules(context.Background(), RuleOptions{MaxAntecedentsLength: Unbounded})
	require.NoError(t, err)

	var found bool
	for _, r := range rules {
		if len(r.Antecedents) == 1 && r.Antecedents[0] == "milk" && len(r.Consequents) == 1 && r.Consequents[0] == "bread" {
			found = true
			require.InDelta(t, 1.0, r.Confidence, 1e-9)
			require.InDelta(t, 2.0/5.0, r.Support, 1e-9)
			require.InDelta(t, 5.0/3.0, r.Lift, 1e-9)
		}
	}
	require.True(t, found, "expected rule {milk} => {bread}")
}

func TestE2CommonSenseSuppression(t *testing.T) {
	idx, err := New(Options{Consequents: []string{"S=1"}, MaxAntecedentsLength: Unbounded})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, idx.InsertTransaction(Transaction{"S=1", "P=0"}, IngestOptions{}))
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, idx.InsertTransaction(Transaction{"S=0", "P=0"}, IngestOptions{}))
	}

	minConf := 0.0
	before, err := idx.DeriveRules(context.Background(), RuleOptions{MaxAntecedentsLength: Unbounded, MinConfidence: &minConf})
	require.NoError(t, err)
	// rules report canonical item strings, case-folded by default
	require.True(t, hasRule(before, []string{"p=0"}, []string{"s=1"}))

	require.NoError(t, idx.InsertCommonSenseRule([]string{"P=0"}, []string{"S=1"}))
	after, err := idx.DeriveRules(context.Background(), RuleOptions{MaxAntecedentsLength: Unbounded, MinConfidence: &minConf})
	require.NoError(t, err)
	require.False(t, hasRule(after, []string{"p=0"}, []string{"s=1"}))
}

func hasRule(rules []Rule, antecedents, consequents []string) bool {
	for _, r := range rules {
		if sameSet(r.Antecedents, antecedents) && sameSet(r.Consequents, consequents) {
			return true
		}
	}
	return false
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		if !set[s] {
			return false
		}
	}
	return true
}

func TestE3MergeEquivalence(t *testing.T) {
	t1, err := New(Options{Consequents: []string{"bread"}, MaxAntecedentsLength: Unbounded})
	require.NoError(t, err)
	require.NoError(t, t1.InsertTransactions(e1Transactions[:2], IngestOptions{}))

	t2, err := New(Options{Consequents: []string{"bread"}, MaxAntecedentsLength: Unbounded})
	require.NoError(t, err)
	require.NoError(t, t2.InsertTransactions(e1Transactions[2:], IngestOptions{}))

	merged, err := Merge(t1, t2)
	require.NoError(t, err)

	whole := buildE1(t)

	mergedItems, err := merged.DeriveItemsets(context.Background(), ItemsetFilters{})
	require.NoError(t, err)
	wholeItems, err := whole.DeriveItemsets(context.Background(), ItemsetFilters{})
	require.NoError(t, err)

	require.Equal(t, occurrenceMultiset(wholeItems), occurrenceMultiset(mergedItems))
}

func occurrenceMultiset(items []Itemset) map[string]uint64 {
	out := make(map[string]uint64, len(items))
	for _, it := range items {
		key := ""
		for _, c := range it.Consequents {
			key += "C:" + c + ","
		}
		as := append([]string{}, it.Antecedents...)
		for _, a := range as {
			key += "A:" + a + ","
		}
		out[key] += it.Occurrences
	}
	return out
}

// sortedItemsetOccurrences keys by content only, with antecedents and
// consequents each sorted before joining, so it cannot mask a merge
// that split one logical itemset across two differently-ordered nodes
// the way occurrenceMultiset's path-ordered key can.
func sortedItemsetOccurrences(items []Itemset) map[string]uint64 {
	out := make(map[string]uint64, len(items))
	for _, it := range items {
		cs := append([]string{}, it.Consequents...)
		as := append([]string{}, it.Antecedents...)
		sort.Strings(cs)
		sort.Strings(as)
		key := strings.Join(cs, ",") + "|" + strings.Join(as, ",")
		out[key] += it.Occurrences
	}
	return out
}

// TestMergeReconcilesReversedFirstSeenOrder covers the case where two
// indices assign opposite first-seen order to a shared pair of
// non-consequent items: a sees "x" before "y", b sees "y" before "x".
// A merge that copies each input's trie shape positionally would land
// the two on different nodes (one via x->y, one via y->x) instead of
// summing onto the single canonical {x,y} node. NodeCount is the
// assertion that actually catches this: a content-keyed occurrence sum
// still totals correctly even when the node is wrongly split, since
// DeriveItemsets would just emit two entries that sum to the same
// total.
func TestMergeReconcilesReversedFirstSeenOrder(t *testing.T) {
	a, err := New(Options{Consequents: []string{"cons"}, MaxAntecedentsLength: Unbounded})
	require.NoError(t, err)
	require.NoError(t, a.InsertTransaction(Transaction{"x"}, IngestOptions{}))
	require.NoError(t, a.InsertTransaction(Transaction{"x", "y"}, IngestOptions{}))

	b, err := New(Options{Consequents: []string{"cons"}, MaxAntecedentsLength: Unbounded})
	require.NoError(t, err)
	require.NoError(t, b.InsertTransaction(Transaction{"y"}, IngestOptions{}))
	require.NoError(t, b.InsertTransaction(Transaction{"x", "y"}, IngestOptions{}))

	merged, err := Merge(a, b)
	require.NoError(t, err)

	items, err := merged.DeriveItemsets(context.Background(), ItemsetFilters{})
	require.NoError(t, err)

	occ := sortedItemsetOccurrences(items)
	require.Equal(t, uint64(2), occ["|x,y"])
	require.Equal(t, uint64(3), occ["|x"])
	require.Equal(t, uint64(3), occ["|y"])

	// root + {x} + {y} + {x,y}: exactly one node per logical itemset.
	// A positional merge would leave 5: a duplicate {x,y} node reached
	// the opposite way.
	require.Equal(t, 4, merged.Stats().NodeCount)
}

func TestE4MaxAntecedentsCap(t *testing.T) {
	idx, err := New(Options{Consequents: []string{"a"}, MaxAntecedentsLength: 2})
	require.NoError(t, err)
	require.NoError(t, idx.InsertTransaction(Transaction{"a", "b", "c", "d", "e"}, IngestOptions{}))

	items, err := idx.DeriveItemsets(context.Background(), ItemsetFilters{MaxLength: 10})
	require.NoError(t, err)
	for _, it := range items {
		require.LessOrEqual(t, len(it.Antecedents)+len(it.Consequents), 3)
	}

	// the 4-antecedent-plus-consequent path must not exist at all
	found := false
	for _, it := range items {
		if len(it.Antecedents) == 4 {
			found = true
		}
	}
	require.False(t, found)
}

func TestE5Prediction(t *testing.T) {
	idx, err := New(Options{Consequents: []string{"diabetes", "hypertension"}, MaxAntecedentsLength: Unbounded})
	require.NoError(t, err)

	txns := []Transaction{
		{"adiposity", "father smokes", "diabetes"},
		{"adiposity", "father smokes", "diabetes"},
		{"adiposity", "father smokes"},
		{"adiposity", "father smokes", "hypertension"},
		{"adiposity"},
		{"father smokes"},
		{"adiposity", "father smokes", "diabetes", "hypertension"},
	}
	require.NoError(t, idx.InsertTransactions(txns, IngestOptions{}))

	preds, err := idx.Predict([]string{"adiposity", "father smokes"}, PredictOptions{})
	require.NoError(t, err)
	require.Len(t, preds, 2)
	require.GreaterOrEqual(t, preds[0].Score, preds[1].Score)
}

func TestE6UnknownAntecedent(t *testing.T) {
	idx, err := New(Options{Consequents: []string{"diabetes"}, MaxAntecedentsLength: Unbounded})
	require.NoError(t, err)
	require.NoError(t, idx.InsertTransaction(Transaction{"adiposity", "diabetes"}, IngestOptions{}))

	_, err = idx.Predict([]string{"adiposity", "hates smoking"}, PredictOptions{})
	require.Error(t, err)
	require.True(t, IsKind(err, KindUnknownAntecedent))

	withFlag, err := idx.Predict([]string{"adiposity", "hates smoking"}, PredictOptions{SkipUnknownAntecedents: true})
	require.NoError(t, err)
	withoutGhost, err := idx.Predict([]string{"adiposity"}, PredictOptions{})
	require.NoError(t, err)
	require.Equal(t, withoutGhost, withFlag)
}

func TestSerializationRoundTrip(t *testing.T) {
	idx := buildE1(t)
	require.NoError(t, idx.InsertCommonSenseRule([]string{"butter"}, []string{"bread"}))

	blob, err := idx.Save(SerializeOptions{Compress: true})
	require.NoError(t, err)

	loaded, err := Load(blob)
	require.NoError(t, err)

	want, err := idx.DeriveItemsets(context.Background(), ItemsetFilters{})
	require.NoError(t, err)
	got, err := loaded.DeriveItemsets(context.Background(), ItemsetFilters{})
	require.NoError(t, err)
	require.Equal(t, occurrenceMultiset(want), occurrenceMultiset(got))
}

func TestCounterMonotonicityRandomTransactions(t *testing.T) {
	idx, err := New(Options{Consequents: []string{"z"}, MaxAntecedentsLength: Unbounded})
	require.NoError(t, err)

	r := rand.New(rand.NewSource(7))
	universe := []string{"z", "a", "b", "c", "d", "e", "f"}
	for i := 0; i < 200; i++ {
		n := 1 + r.Intn(len(universe))
		seen := make(map[string]bool)
		var txn Transaction
		for len(txn) < n {
			item := universe[r.Intn(len(universe))]
			if seen[item] {
				continue
			}
			seen[item] = true
			txn = append(txn, item)
		}
		require.NoError(t, idx.InsertTransaction(txn, IngestOptions{}))
	}

	items, err := idx.DeriveItemsets(context.Background(), ItemsetFilters{})
	require.NoError(t, err)
	occByKey := make(map[string]uint64, len(items))
	for _, it := range items {
		occByKey[itemsetKey(it)] = it.Occurrences
	}
	// every single-item itemset dominates every two-item superset containing it
	for _, it := range items {
		if len(it.Antecedents)+len(it.Consequents) != 2 {
			continue
		}
		all := append(append([]string{}, it.Consequents...), it.Antecedents...)
		for _, single := range all {
			key := "A:" + single + ","
			if contains(it.Consequents, single) {
				key = "C:" + single + ","
			}
			require.GreaterOrEqual(t, occByKey[key], it.Occurrences)
		}
	}
}

func itemsetKey(it Itemset) string {
	key := ""
	for _, c := range it.Consequents {
		key += "C:" + c + ","
	}
	for _, a := range it.Antecedents {
		key += "A:" + a + ","
	}
	return key
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

func TestConfigValidationRejectsEmptyConsequents(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
	require.True(t, IsKind(err, KindConfigError))
}

func TestStrictIngestRejectsOverlongTransactionAtomically(t *testing.T) {
	idx, err := New(Options{Consequents: []string{"a"}, MaxAntecedentsLength: 1})
	require.NoError(t, err)
	statsBefore := idx.Stats()

	err = idx.InsertTransaction(Transaction{"a", "b", "c", "d"}, IngestOptions{Strict: true})
	require.Error(t, err)
	require.True(t, IsKind(err, KindMaxLenExceeded))

	statsAfter := idx.Stats()
	require.Equal(t, statsBefore.NodeCount, statsAfter.NodeCount)
	require.Equal(t, statsBefore.SymbolCount, statsAfter.SymbolCount)
}

func TestColumnValueItemRejectsSeparatorCollision(t *testing.T) {
	idx, err := New(Options{Consequents: []string{"x"}})
	require.NoError(t, err)
	_, err = idx.ColumnValueItem("col\x1fumn", "value")
	require.Error(t, err)

	item, err := idx.ColumnValueItem("region", "west")
	require.NoError(t, err)
	require.Equal(t, "region\x1fwest", item)
}
