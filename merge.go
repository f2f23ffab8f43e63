package ambre

import (
	"strconv"
	"strings"

	"github.com/ambre-go/ambre/internal/ingest"
	"github.com/ambre-go/ambre/internal/rules"
	"github.com/ambre-go/ambre/internal/symbol"
	"github.com/ambre-go/ambre/internal/trie"
)

// Merge combines two indices built from identical construction options
// into a fresh third index whose counters are the elementwise sum of
// the inputs' (spec.md §4.8's merge homomorphism). a and b are left
// unmodified.
func Merge(a, b *Index) (*Index, error) {
	a.guard.Lock()
	defer a.guard.Unlock()
	b.guard.Lock()
	defer b.guard.Unlock()

	if err := compatibleForMerge(a.opts, b.opts); err != nil {
		return nil, err
	}

	out, err := New(a.opts)
	if err != nil {
		return nil, wrapError(KindIncompatibleMerge, err, "constructing merge target")
	}

	translateA, err := importSymbols(out, a.symbols)
	if err != nil {
		return nil, err
	}
	translateB, err := importSymbols(out, b.symbols)
	if err != nil {
		return nil, err
	}

	mergeTrieInto(out.trie, a.trie, trie.Root, nil, translateA, out.consequents)
	mergeTrieInto(out.trie, b.trie, trie.Root, nil, translateB, out.consequents)

	merged := make([]rules.CommonSenseRule, 0, len(a.commonSense)+len(b.commonSense))
	for _, r := range a.commonSense {
		merged = append(merged, translateCommonSense(r, translateA))
	}
	for _, r := range b.commonSense {
		merged = append(merged, translateCommonSense(r, translateB))
	}
	out.commonSense = dedupeCommonSense(merged)

	return out, nil
}

func compatibleForMerge(a, b Options) error {
	if len(a.Consequents) != len(b.Consequents) {
		return newError(KindIncompatibleMerge, "consequent lists differ in length")
	}
	for i := range a.Consequents {
		if a.Consequents[i] != b.Consequents[i] {
			return newError(KindIncompatibleMerge, "consequent lists differ at position %d", i)
		}
	}
	if a.CaseInsensitive != b.CaseInsensitive {
		return newError(KindIncompatibleMerge, "case_insensitive differs")
	}
	if a.NormalizeWhitespace != b.NormalizeWhitespace {
		return newError(KindIncompatibleMerge, "normalize_whitespace differs")
	}
	if a.ItemAlphabet != b.ItemAlphabet {
		return newError(KindIncompatibleMerge, "item_alphabet differs")
	}
	if a.Separator != b.Separator {
		return newError(KindIncompatibleMerge, "separator differs")
	}
	if a.MaxAntecedentsLength != b.MaxAntecedentsLength {
		return newError(KindIncompatibleMerge, "max_antecedents_length differs")
	}
	return nil
}

// importSymbols re-interns every symbol of src into dst's symbol table,
// returning the translation from src's old ids to dst's new ids.
func importSymbols(dst *Index, src *symbol.Table) (map[symbol.ID]symbol.ID, error) {
	pairs := src.All()
	translate := make(map[symbol.ID]symbol.ID, len(pairs))
	for _, p := range pairs {
		newID, err := dst.symbols.Intern(p.S)
		if err != nil {
			return nil, wrapError(KindIncompatibleMerge, err, "re-interning symbol during merge")
		}
		translate[p.ID] = newID
	}
	return translate, nil
}

// mergeTrieInto adds srcNode's subtree (srcNode included) into dst.
// translatedPath is srcNode's path from the root with every symbol
// already passed through translate. Because two inputs can assign
// opposite first-seen order to the same pair of non-consequent items,
// a src path copied positionally would not, in general, land on the
// same dst node two equivalent itemsets from different inputs belong
// on — so every path is re-run through ingest.CanonicalOrder and
// inserted via InsertPath, the same canonicalization Ingest itself
// applies, rather than recreated edge-for-edge from src's shape.
func mergeTrieInto(dst, src *trie.Trie, srcNode trie.NodeID, translatedPath []symbol.ID, translate map[symbol.ID]symbol.ID, cons ingest.Consequents) {
	canonical := ingest.CanonicalOrder(translatedPath, cons)
	dstNode := trie.Root
	if len(canonical) > 0 {
		dstNode = dst.InsertPath(canonical, cons.IsMember)
	}
	dst.Add(dstNode, src.Occurrences(srcNode))

	for _, childID := range src.ChildIDs(srcNode) {
		childSym := translate[src.Symbol(childID)]
		childPath := append(append([]symbol.ID{}, translatedPath...), childSym)
		mergeTrieInto(dst, src, childID, childPath, translate, cons)
	}
}

func translateCommonSense(r rules.CommonSenseRule, translate map[symbol.ID]symbol.ID) rules.CommonSenseRule {
	return rules.CommonSenseRule{
		Antecedents: translateIDs(r.Antecedents, translate),
		Consequents: translateIDs(r.Consequents, translate),
	}
}

func translateIDs(ids []symbol.ID, translate map[symbol.ID]symbol.ID) []symbol.ID {
	out := make([]symbol.ID, len(ids))
	for i, id := range ids {
		out[i] = translate[id]
	}
	return out
}

func dedupeCommonSense(rs []rules.CommonSenseRule) []rules.CommonSenseRule {
	seen := make(map[string]bool, len(rs))
	out := make([]rules.CommonSenseRule, 0, len(rs))
	for _, r := range rs {
		key := csKey(r)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

func csKey(r rules.CommonSenseRule) string {
	var b strings.Builder
	b.WriteString("a")
	for _, id := range r.Antecedents {
		b.WriteString(strconv.FormatUint(uint64(id), 10))
		b.WriteByte(',')
	}
	b.WriteString("c")
	for _, id := range r.Consequents {
		b.WriteString(strconv.FormatUint(uint64(id), 10))
		b.WriteByte(',')
	}
	return b.String()
}
