package ambre

import (
	"context"

	"github.com/ambre-go/ambre/internal/rules"
	"github.com/ambre-go/ambre/internal/symbol"
)

// Itemset is one frequent itemset: a path through the trie and its
// occurrence count.
type Itemset struct {
	Antecedents []string
	Consequents []string
	Occurrences uint64
	Length      int
}

// Rule is one derived association rule with its statistical measures,
// the public mirror of internal/rules.Rule with items resolved back to
// their canonical strings (spec.md §6's output record shape).
type Rule struct {
	Antecedents                []string
	Consequents                []string
	Occurrences                uint64
	OccurrencesAntecedents     uint64
	OccurrencesConsequents     uint64
	Support                    float64
	Confidence                 float64
	Lift                       float64
	RuleLength                 int
}

// ItemsetFilters configures DeriveItemsets, mirroring spec.md §4.6.
type ItemsetFilters struct {
	MinOccurrences       uint64
	MinLength, MaxLength int // 0 means unbounded for both; negative also means unbounded
	MaxAntecedentsLength int // 0 or negative means unbounded
	FilterToConsequents  []string
}

// RuleOptions configures DeriveRules, mirroring spec.md §4.7.
type RuleOptions struct {
	NonAntecedentsRules  bool
	MinOccurrences       uint64
	MinConfidence        *float64
	MinLift              *float64
	MinSupport           *float64
	MaxAntecedentsLength int // 0 or negative means unbounded
	FilterToConsequents  []string
	ShowGeneralizations  bool
}

// InsertCommonSenseRule records a (antecedents, consequents) pair that
// suppresses any derived rule that is a superset in both components.
// Unknown items are interned fresh, exactly like transaction items,
// since a common-sense rule may reference items no transaction has
// produced yet.
func (ix *Index) InsertCommonSenseRule(antecedents, consequents []string) error {
	ix.guard.Lock()
	defer ix.guard.Unlock()

	a, err := ix.internAll(antecedents)
	if err != nil {
		return err
	}
	k, err := ix.internAll(consequents)
	if err != nil {
		return err
	}
	ix.commonSense = append(ix.commonSense, rules.CommonSenseRule{Antecedents: a, Consequents: k})
	return nil
}

func (ix *Index) internAll(items []string) ([]symbol.ID, error) {
	out := make([]symbol.ID, 0, len(items))
	for _, raw := range items {
		id, err := ix.symbols.Intern(raw)
		if err != nil {
			return nil, wrapError(KindInvalidItem, err, "normalizing item")
		}
		out = append(out, id)
	}
	return out, nil
}

// lookupKnown resolves already-interned items only, failing with
// UnknownAntecedent-flavored behavior controlled by the caller (used by
// filter-to-consequents style inputs, which must reference real items).
func (ix *Index) lookupKnown(items []string) ([]symbol.ID, bool) {
	out := make([]symbol.ID, 0, len(items))
	for _, raw := range items {
		id, ok := ix.symbols.Lookup(raw)
		if !ok {
			return nil, false
		}
		out = append(out, id)
	}
	return out, true
}

func (ix *Index) resolveIDs(ids []symbol.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = ix.symbols.String(id)
	}
	return out
}

func normLen(n int) int {
	if n <= 0 {
		return rules.Unbounded
	}
	return n
}

// DeriveItemsets enumerates every itemset passing filters (spec.md
// §4.6). The antecedents/consequents of each result are the itemset's
// path split at its consequent prefix, resolved back to strings.
func (ix *Index) DeriveItemsets(ctx context.Context, f ItemsetFilters) ([]Itemset, error) {
	ix.guard.Lock()
	defer ix.guard.Unlock()

	filters := rules.Filters{
		MinOccurrences:       f.MinOccurrences,
		MinLength:            normLenOrZero(f.MinLength),
		MaxLength:            normLen(f.MaxLength),
		MaxAntecedentsLength: normLen(f.MaxAntecedentsLength),
	}
	if f.FilterToConsequents != nil {
		ids, ok := ix.lookupKnown(f.FilterToConsequents)
		if !ok {
			return nil, newError(KindUnknownAntecedent, "filter_to_consequents references an unknown item")
		}
		filters.FilterToConsequents = ids
	}

	items, err := rules.Enumerate(ctx, ix.trie, ix.order(), filters)
	if err != nil {
		return nil, wrapError(KindConfigError, err, "deriving itemsets")
	}

	out := make([]Itemset, 0, len(items))
	for _, it := range items {
		out = append(out, Itemset{
			Antecedents: ix.resolveIDs(it.Path[it.ConsequentsCount:]),
			Consequents: ix.resolveIDs(it.Path[:it.ConsequentsCount]),
			Occurrences: it.Occurrences,
			Length:      it.Depth,
		})
	}
	return out, nil
}

func normLenOrZero(n int) int {
	if n <= 0 {
		return 0
	}
	return n
}

// DeriveRules derives association rules per spec.md §4.7.
func (ix *Index) DeriveRules(ctx context.Context, opts RuleOptions) ([]Rule, error) {
	ix.guard.Lock()
	defer ix.guard.Unlock()

	o := rules.DeriveOptions{
		NonAntecedentsRules:  opts.NonAntecedentsRules,
		MinOccurrences:       opts.MinOccurrences,
		MinConfidence:        opts.MinConfidence,
		MinLift:              opts.MinLift,
		MinSupport:           opts.MinSupport,
		MaxAntecedentsLength: normLen(opts.MaxAntecedentsLength),
		ShowGeneralizations:  opts.ShowGeneralizations,
	}
	if opts.FilterToConsequents != nil {
		ids, ok := ix.lookupKnown(opts.FilterToConsequents)
		if !ok {
			return nil, newError(KindUnknownAntecedent, "filter_to_consequents references an unknown item")
		}
		o.FilterToConsequents = ids
	}

	derived, err := rules.Derive(ctx, ix.trie, ix.order(), o, ix.commonSense)
	if err != nil {
		return nil, wrapError(KindConfigError, err, "deriving rules")
	}

	out := make([]Rule, 0, len(derived))
	for _, r := range derived {
		out = append(out, Rule{
			Antecedents:            ix.resolveIDs(r.Antecedents),
			Consequents:            ix.resolveIDs(r.Consequents),
			Occurrences:            r.OccurrencesRule,
			OccurrencesAntecedents: r.OccurrencesAntecedentsOnly,
			OccurrencesConsequents: r.OccurrencesConsequentsOnly,
			Support:                r.Support,
			Confidence:             r.Confidence,
			Lift:                   r.Lift,
			RuleLength:             r.RuleLength,
		})
	}
	return out, nil
}
