// Package rules implements the Itemset Enumerator and the Rule Deriver:
// the lazy, filtered walk over the trie that produces frequent
// itemsets, and the derivation of association rules from them,
// including minimality suppression and the common-sense filter.
package rules

import (
	"context"
	"fmt"
	"sort"

	"github.com/ambre-go/ambre/internal/order"
	"github.com/ambre-go/ambre/internal/symbol"
	"github.com/ambre-go/ambre/internal/trie"
)

// Unbounded marks a length filter as having no cap.
const Unbounded = -1

// Itemset is one (path, occurrences) pair surviving the enumerator's
// filters, with an owned (non-aliased) copy of its path.
type Itemset struct {
	Path             []symbol.ID
	Occurrences      uint64
	Depth            int
	ConsequentsCount int
}

// Filters configures the Itemset Enumerator, mirroring spec.md §4.6.
type Filters struct {
	MinOccurrences        uint64
	MinLength, MaxLength  int // Unbounded disables the bound
	MaxAntecedentsLength  int // Unbounded disables the bound
	FilterToConsequents   []symbol.ID
}

// ErrCancelled is returned when the supplied context is cancelled
// mid-derivation; no partial results are returned (spec.md §7).
var ErrCancelled = fmt.Errorf("derivation cancelled")

// Enumerate walks the trie under ord's current item order and returns
// every itemset passing filters.
func Enumerate(ctx context.Context, tr *trie.Trie, ord *order.Order, filters Filters) ([]Itemset, error) {
	if filters.MinOccurrences == 0 {
		filters.MinOccurrences = 1
	}
	var target map[string]bool
	if filters.FilterToConsequents != nil {
		target = map[string]bool{setKey(filters.FilterToConsequents): true}
	}

	var out []Itemset
	var cancelled bool
	tr.SubtreeIter(trie.Root, ord,
		func(v trie.Visit) bool {
			if cancelled {
				return false
			}
			select {
			case <-ctx.Done():
				cancelled = true
				return false
			default:
			}
			if v.Occurrences < filters.MinOccurrences {
				return false
			}
			if filters.MaxLength != Unbounded && v.Depth > filters.MaxLength {
				return false
			}
			if filters.MaxAntecedentsLength != Unbounded {
				if v.Depth-v.ConsequentsCount > filters.MaxAntecedentsLength {
					return false
				}
			}
			return true
		},
		func(v trie.Visit) {
			if v.Depth == 0 {
				return // the root itself is the empty itemset, never emitted
			}
			if filters.MinLength != Unbounded && v.Depth < filters.MinLength {
				return
			}
			if target != nil && !target[setKey(v.Path[:v.ConsequentsCount])] {
				return
			}
			out = append(out, Itemset{
				Path:             append([]symbol.ID(nil), v.Path...),
				Occurrences:      v.Occurrences,
				Depth:            v.Depth,
				ConsequentsCount: v.ConsequentsCount,
			})
		},
	)
	if cancelled {
		return nil, ErrCancelled
	}
	return out, nil
}

func setKey(ids []symbol.ID) string {
	// ids arrive already in a fixed canonical order (the declared C
	// order for a consequent prefix), so a direct join is a valid set key.
	b := make([]byte, 0, len(ids)*5)
	for _, id := range ids {
		b = append(b, fmt.Sprintf("%d,", id)...)
	}
	return string(b)
}

// CommonSenseRule is a user-supplied (antecedents, consequents) pair
// whose presence suppresses any derived rule that is a superset in
// both components (spec.md §4.7).
type CommonSenseRule struct {
	Antecedents []symbol.ID
	Consequents []symbol.ID
}

// Rule is one derived association rule with its statistical measures.
type Rule struct {
	Antecedents                []symbol.ID
	Consequents                []symbol.ID
	OccurrencesRule            uint64
	OccurrencesAntecedentsOnly uint64
	OccurrencesConsequentsOnly uint64
	Support                    float64
	Confidence                 float64
	Lift                       float64
	RuleLength                 int
}

// DeriveOptions configures the Rule Deriver, mirroring spec.md §4.7.
type DeriveOptions struct {
	NonAntecedentsRules  bool
	MinOccurrences       uint64
	MinConfidence        *float64
	MinLift              *float64
	MinSupport           *float64
	MaxAntecedentsLength int // Unbounded disables the bound
	FilterToConsequents  []symbol.ID
	ShowGeneralizations  bool
}

// Derive computes every rule surviving DeriveOptions' thresholds, then
// (unless ShowGeneralizations) suppresses redundant generalizations,
// then suppresses any rule matched by a common-sense entry.
func Derive(ctx context.Context, tr *trie.Trie, ord *order.Order, opts DeriveOptions, commonSense []CommonSenseRule) ([]Rule, error) {
	rootOcc := tr.Occurrences(trie.Root)
	if rootOcc == 0 {
		return nil, nil
	}

	minLen := 1
	if opts.NonAntecedentsRules {
		minLen = 0
	}
	itemsets, err := Enumerate(ctx, tr, ord, Filters{
		MinOccurrences:       max64(opts.MinOccurrences, 1),
		MinLength:            0,
		MaxLength:            Unbounded,
		MaxAntecedentsLength: opts.MaxAntecedentsLength,
	})
	if err != nil {
		return nil, err
	}

	candidates := make([]Rule, 0, len(itemsets))
	for _, it := range itemsets {
		k := it.Path[:it.ConsequentsCount]
		a := it.Path[it.ConsequentsCount:]
		if len(a) < minLen {
			continue
		}

		occRule := it.Occurrences
		occA := lookupOccurrences(tr, a, rootOcc)
		occK := lookupOccurrences(tr, k, rootOcc)

		var confidence float64
		if occA > 0 {
			confidence = float64(occRule) / float64(occA)
		}
		support := float64(occRule) / float64(rootOcc)
		supportA := float64(occA) / float64(rootOcc)
		supportK := float64(occK) / float64(rootOcc)
		var lift float64
		if supportA > 0 && supportK > 0 {
			lift = support / (supportA * supportK)
		}

		if opts.MinConfidence != nil && confidence < *opts.MinConfidence {
			continue
		}
		if opts.MinLift != nil && lift < *opts.MinLift {
			continue
		}
		if opts.MinSupport != nil && support < *opts.MinSupport {
			continue
		}

		candidates = append(candidates, Rule{
			Antecedents:                append([]symbol.ID(nil), a...),
			Consequents:                append([]symbol.ID(nil), k...),
			OccurrencesRule:            occRule,
			OccurrencesAntecedentsOnly: occA,
			OccurrencesConsequentsOnly: occK,
			Support:                    support,
			Confidence:                 confidence,
			Lift:                       lift,
			RuleLength:                 len(a) + len(k),
		})
	}

	if opts.FilterToConsequents != nil {
		want := setKey(opts.FilterToConsequents)
		filtered := candidates[:0]
		for _, r := range candidates {
			if setKey(r.Consequents) == want {
				filtered = append(filtered, r)
			}
		}
		candidates = filtered
	}

	if !opts.ShowGeneralizations {
		candidates = suppressRedundant(candidates)
	}
	candidates = applyCommonSense(candidates, commonSense)
	return candidates, nil
}

func lookupOccurrences(tr *trie.Trie, path []symbol.ID, rootOcc uint64) uint64 {
	if len(path) == 0 {
		return rootOcc
	}
	id, ok := tr.GetOrNone(path)
	if !ok {
		return 0
	}
	return tr.Occurrences(id)
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// suppressRedundant implements the minimality rule of spec.md §4.7:
// group candidates by consequent set, sort ascending by |A| then
// descending by confidence, and drop any rule whose antecedents are a
// strict superset of an already-kept rule's with no confidence gain.
func suppressRedundant(rules []Rule) []Rule {
	groups := make(map[string][]int)
	for i, r := range rules {
		key := setKey(r.Consequents)
		groups[key] = append(groups[key], i)
	}

	keep := make(map[int]bool, len(rules))
	for _, idxs := range groups {
		sort.Slice(idxs, func(i, j int) bool {
			ri, rj := rules[idxs[i]], rules[idxs[j]]
			if len(ri.Antecedents) != len(rj.Antecedents) {
				return len(ri.Antecedents) < len(rj.Antecedents)
			}
			return ri.Confidence > rj.Confidence
		})
		var minimal []int
		for _, idx := range idxs {
			r := rules[idx]
			redundant := false
			for _, mIdx := range minimal {
				m := rules[mIdx]
				if isSubset(m.Antecedents, r.Antecedents) && m.Confidence >= r.Confidence {
					redundant = true
					break
				}
			}
			if !redundant {
				minimal = append(minimal, idx)
				keep[idx] = true
			}
		}
	}

	out := make([]Rule, 0, len(keep))
	for i, r := range rules {
		if keep[i] {
			out = append(out, r)
		}
	}
	return out
}

func applyCommonSense(rules []Rule, cs []CommonSenseRule) []Rule {
	if len(cs) == 0 {
		return rules
	}
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		suppressed := false
		for _, c := range cs {
			if isSubset(c.Consequents, r.Consequents) && isSubset(c.Antecedents, r.Antecedents) {
				suppressed = true
				break
			}
		}
		if !suppressed {
			out = append(out, r)
		}
	}
	return out
}

// isSubset reports whether every element of a appears in b.
func isSubset(a, b []symbol.ID) bool {
	if len(a) == 0 {
		return true
	}
	set := make(map[symbol.ID]struct{}, len(b))
	for _, id := range b {
		set[id] = struct{}{}
	}
	for _, id := range a {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}
