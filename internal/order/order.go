// Package order computes the total item order used to arrange every
// trie path: consequents first (in their declared order), then
// non-consequents by descending occurrence count with a deterministic
// tie-break. It is a pure function of the declared consequent set and
// the trie's depth-1 counters — never a cached value, so it can't go
// stale as ingestion changes those counters (spec.md §9).
package order

import "github.com/ambre-go/ambre/internal/symbol"

// Order is an immutable snapshot of the total order ≺ over symbols,
// valid until the next ingestion changes depth-1 counters.
type Order struct {
	rank map[symbol.ID]int
	cons map[symbol.ID]int // consequent -> its position within C
}

// Build computes the order from the declared consequent set (in
// declaration order) and the current depth-1 occurrence counts for
// every symbol observed so far (consequent or not).
func Build(consequents []symbol.ID, depth1Occurrences map[symbol.ID]uint64) *Order {
	cons := make(map[symbol.ID]int, len(consequents))
	for i, c := range consequents {
		cons[c] = i
	}

	nonCons := make([]symbol.ID, 0, len(depth1Occurrences))
	for id := range depth1Occurrences {
		if _, isCons := cons[id]; !isCons {
			nonCons = append(nonCons, id)
		}
	}
	sortByFreqThenID(nonCons, depth1Occurrences)

	rank := make(map[symbol.ID]int, len(consequents)+len(nonCons))
	for i, c := range consequents {
		rank[c] = i
	}
	base := len(consequents)
	for i, id := range nonCons {
		rank[id] = base + i
	}
	return &Order{rank: rank, cons: cons}
}

// sortByFreqThenID orders ids by descending occurrence count, breaking
// ties by ascending symbol id — the deterministic tie-break the source
// left underspecified (spec.md §9 Open Questions).
func sortByFreqThenID(ids []symbol.ID, occ map[symbol.ID]uint64) {
	// simple insertion sort: depth-1 symbol counts are small relative to
	// the combinatorial explosion deeper in the trie, so O(n^2) here is
	// not the bottleneck the ingestor is.
	for i := 1; i < len(ids); i++ {
		j := i
		for j > 0 && less(ids[j], ids[j-1], occ) {
			ids[j], ids[j-1] = ids[j-1], ids[j]
			j--
		}
	}
}

func less(a, b symbol.ID, occ map[symbol.ID]uint64) bool {
	oa, ob := occ[a], occ[b]
	if oa != ob {
		return oa > ob // descending frequency
	}
	return a < b // ascending id as tie-break
}

// IsConsequent reports whether id is one of the declared consequents.
func (o *Order) IsConsequent(id symbol.ID) bool {
	_, ok := o.cons[id]
	return ok
}

// ConsequentPosition returns id's position within the declared
// consequent order; only valid when IsConsequent(id) is true.
func (o *Order) ConsequentPosition(id symbol.ID) int { return o.cons[id] }

// Less reports whether a strictly precedes b under ≺.
func (o *Order) Less(a, b symbol.ID) bool {
	ra, aok := o.rank[a]
	rb, bok := o.rank[b]
	if !aok || !bok {
		// a symbol with no depth-1 occurrence yet (never seen standalone)
		// has no rank and sorts after every ranked symbol; consequents
		// always have a rank since they are seeded at Build time, so they
		// stay first. Two unranked symbols compare by id.
		if aok != bok {
			return aok
		}
		return a < b
	}
	return ra < rb
}

// Sort orders ids in place according to ≺.
func (o *Order) Sort(ids []symbol.ID) {
	for i := 1; i < len(ids); i++ {
		j := i
		for j > 0 && o.Less(ids[j], ids[j-1]) {
			ids[j], ids[j-1] = ids[j-1], ids[j]
			j--
		}
	}
}
