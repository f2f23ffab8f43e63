// Package ingest implements transaction ingestion: for each transaction
// it enumerates every ordered subset up to max_len and inserts it into
// the trie, incrementing the matching node's occurrence counter.
package ingest

import (
	"math/rand"
	"sort"

	"github.com/ambre-go/ambre/internal/symbol"
	"github.com/ambre-go/ambre/internal/trie"
)

// Consequents captures the declared, ordered consequent set C.
type Consequents struct {
	Order []symbol.ID
	pos   map[symbol.ID]int
}

func NewConsequents(order []symbol.ID) Consequents {
	pos := make(map[symbol.ID]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	return Consequents{Order: order, pos: pos}
}

func (c Consequents) IsMember(id symbol.ID) bool {
	_, ok := c.pos[id]
	return ok
}

func (c Consequents) Position(id symbol.ID) int { return c.pos[id] }

// Options configures one Ingest call.
type Options struct {
	// MaxLen bounds the cardinality of inserted subsets. <= 0 means
	// unbounded.
	MaxLen int
	// Strict, when true, rejects (MaxLenExceeded) transactions whose
	// item count exceeds MaxLen instead of silently truncating which
	// subsets get inserted.
	Strict bool
	// SamplingRatio in (0,1]; 1 disables subsampling. Values below 1
	// make ingestion best-effort and break the exact-counting property
	// (spec.md §9 Open Questions).
	SamplingRatio float64
	// Rand drives the sampling coin flip. Nil means no sampling is
	// possible (SamplingRatio must be 1 in that case).
	Rand *rand.Rand
}

// MaxLenExceededError reports a strict-mode transaction that is too wide.
type MaxLenExceededError struct {
	Len, MaxLen int
}

func (e *MaxLenExceededError) Error() string {
	return "transaction exceeds max_len"
}

// Ingest inserts one transaction's subsets into tr. items is the set of
// already-interned, de-duplicated symbol ids for the transaction
// (duplicates must already be collapsed by the caller, per spec.md §3).
func Ingest(tr *trie.Trie, cons Consequents, items []symbol.ID, opts Options) error {
	n := len(items)
	maxK := n
	if opts.MaxLen > 0 && opts.MaxLen < maxK {
		maxK = opts.MaxLen
	}
	if opts.Strict && opts.MaxLen > 0 && n > opts.MaxLen {
		return &MaxLenExceededError{Len: n, MaxLen: opts.MaxLen}
	}
	if maxK <= 0 {
		tr.Increment(trie.Root)
		return nil
	}

	ordered := CanonicalOrder(items, cons)

	tr.Increment(trie.Root)

	sampling := opts.SamplingRatio > 0 && opts.SamplingRatio < 1
	isConsequent := func(id symbol.ID) bool { return cons.IsMember(id) }

	enumerateSubsets(ordered, maxK, func(subset []symbol.ID) {
		if sampling && opts.Rand.Float64() >= opts.SamplingRatio {
			return
		}
		id := tr.InsertPath(subset, isConsequent)
		tr.Increment(id)
	})
	return nil
}

// CanonicalOrder lays a symbol set out as (consequents, in declared C
// order) followed by (non-consequents, ascending symbol id): the stable
// surrogate for ≺ used to fix node identity at ingestion time. The true
// frequency-based ≺ is only applied when re-sorting children for
// derivation (internal/order), never to decide which arena node a
// subset occupies (spec.md §4.5, §9). Also used by the Predictor to
// build the canonical lookup path for query ∪ {k}.
func CanonicalOrder(items []symbol.ID, cons Consequents) []symbol.ID {
	out := make([]symbol.ID, len(items))
	copy(out, items)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		aC, bC := cons.IsMember(a), cons.IsMember(b)
		if aC != bC {
			return aC // consequents first
		}
		if aC && bC {
			return cons.Position(a) < cons.Position(b)
		}
		return a < b
	})
	return out
}

// enumerateSubsets calls fn once for every non-empty, order-preserving
// subsequence of ordered with length <= maxK, reusing a single scratch
// buffer (spec.md §9's stack-of-indices enumerator).
func enumerateSubsets(ordered []symbol.ID, maxK int, fn func(subset []symbol.ID)) {
	n := len(ordered)
	buf := make([]symbol.ID, 0, maxK)
	var rec func(start int)
	rec = func(start int) {
		if len(buf) > 0 {
			fn(buf)
		}
		if len(buf) == maxK {
			return
		}
		for i := start; i < n; i++ {
			buf = append(buf, ordered[i])
			rec(i + 1)
			buf = buf[:len(buf)-1]
		}
	}
	rec(0)
}

// Dedupe collapses a raw transaction's duplicate items (after interning)
// into a set, per spec.md §3.
func Dedupe(ids []symbol.ID) []symbol.ID {
	seen := make(map[symbol.ID]struct{}, len(ids))
	out := make([]symbol.ID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
