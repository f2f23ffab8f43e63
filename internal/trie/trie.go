// Package trie implements the arena-allocated prefix tree that is the
// combinatorial index's core: one node per distinct itemset observed
// during ingestion, with a per-node occurrence counter. It is grounded
// on the teacher trie library's node-store arena pattern (dense ids,
// map-keyed children, no heap parent pointers) with the cryptographic
// commitment machinery replaced by plain counters, since this domain
// has no use for commitments.
package trie

import (
	"sort"

	"go.uber.org/atomic"

	"github.com/ambre-go/ambre/internal/order"
	"github.com/ambre-go/ambre/internal/symbol"
)

// NodeID is a dense arena index. Root is always NodeID(0).
type NodeID uint32

const Root NodeID = 0

// node is one arena slot. Parent is stored as a compact integer column
// rather than a pointer, per spec.md §9's "avoid heap-allocated parent
// pointers" guidance.
type node struct {
	parent           NodeID
	sym              symbol.ID // 0 only for the root, which carries no symbol
	occurrences      uint64
	depth            int
	consequentsCount int
	children         map[symbol.ID]NodeID
}

// Trie is the arena. It is not safe for concurrent use; callers must
// serialize mutating and read-only operations on one instance (spec.md
// §5).
type Trie struct {
	nodes  []node
	nextID atomic.Uint32
}

// New creates a trie containing only the root node.
func New() *Trie {
	t := &Trie{
		nodes: make([]node, 1, 64),
	}
	t.nodes[0] = node{children: make(map[symbol.ID]NodeID)}
	t.nextID.Store(1)
	return t
}

// NodeCount returns the number of arena slots, including the root.
func (t *Trie) NodeCount() int { return len(t.nodes) }

// Depth returns a node's distance from the root (its itemset cardinality).
func (t *Trie) Depth(id NodeID) int { return t.nodes[id].depth }

// Symbol returns the edge symbol leading into id (meaningless for Root).
func (t *Trie) Symbol(id NodeID) symbol.ID { return t.nodes[id].sym }

// Occurrences returns id's occurrence counter.
func (t *Trie) Occurrences(id NodeID) uint64 { return t.nodes[id].occurrences }

// ConsequentsCount returns how many of id's path symbols belong to C.
func (t *Trie) ConsequentsCount(id NodeID) int { return t.nodes[id].consequentsCount }

// Increment adds one to id's occurrence counter. Counters are
// monotone: this is the only mutator besides InsertPath/Merge/Load.
func (t *Trie) Increment(id NodeID) {
	t.nodes[id].occurrences++
}

// Add adds delta to id's occurrence counter. Used by Merge, where
// counters combine by addition rather than by one-at-a-time ingestion.
func (t *Trie) Add(id NodeID, delta uint64) {
	t.nodes[id].occurrences += delta
}

// InsertPath walks from the root along path, creating any missing
// nodes, and returns the terminal node id. It does not touch occurrence
// counters — callers increment the exact node(s) they mean to count.
// isConsequent classifies each path symbol so consequents_count can be
// maintained incrementally as new nodes are created.
func (t *Trie) InsertPath(path []symbol.ID, isConsequent func(symbol.ID) bool) NodeID {
	cur := Root
	for _, s := range path {
		children := t.nodes[cur].children
		next, ok := children[s]
		if !ok {
			next = t.newNode(cur, s, isConsequent(s))
			children[s] = next
		}
		cur = next
	}
	return cur
}

// InsertChild ensures parent has a child edge on sym, creating it if
// necessary, and returns the child's id. Unlike InsertPath this does
// not walk from the root, so callers that already hold a parent id (the
// Serializer's loader) can extend the trie in O(1) instead
// of O(depth).
func (t *Trie) InsertChild(parent NodeID, sym symbol.ID, isConsequent bool) NodeID {
	children := t.nodes[parent].children
	if id, ok := children[sym]; ok {
		return id
	}
	id := t.newNode(parent, sym, isConsequent)
	children[sym] = id
	return id
}

func (t *Trie) newNode(parent NodeID, sym symbol.ID, isConsequent bool) NodeID {
	id := NodeID(t.nextID.Inc() - 1)
	cc := t.nodes[parent].consequentsCount
	if isConsequent {
		cc++
	}
	n := node{
		parent:           parent,
		sym:              sym,
		depth:            t.nodes[parent].depth + 1,
		consequentsCount: cc,
		children:         make(map[symbol.ID]NodeID),
	}
	if int(id) == len(t.nodes) {
		t.nodes = append(t.nodes, n)
	} else {
		// should never happen: ids are allocated densely and in order
		t.nodes = append(t.nodes, node{})
		t.nodes[id] = n
	}
	return id
}

// GetOrNone looks up the exact path; returns (0, false) when absent
// (note NodeID 0 is the root, so callers must check the bool, not the
// id, for absence).
func (t *Trie) GetOrNone(path []symbol.ID) (NodeID, bool) {
	cur := Root
	for _, s := range path {
		next, ok := t.nodes[cur].children[s]
		if !ok {
			return 0, false
		}
		cur = next
	}
	return cur, true
}

// ChildrenSorted returns id's children ordered by ≺, re-sorted fresh
// from the current order snapshot every call (spec.md §9: the order is
// never cached).
func (t *Trie) ChildrenSorted(id NodeID, ord *order.Order) []NodeID {
	children := t.nodes[id].children
	out := make([]NodeID, 0, len(children))
	for _, childID := range children {
		out = append(out, childID)
	}
	sort.Slice(out, func(i, j int) bool {
		return ord.Less(t.nodes[out[i]].sym, t.nodes[out[j]].sym)
	})
	return out
}

// ChildIDs returns id's children in arbitrary (map iteration) order,
// for callers — like Merge — that don't need ≺ order.
func (t *Trie) ChildIDs(id NodeID) []NodeID {
	children := t.nodes[id].children
	out := make([]NodeID, 0, len(children))
	for _, c := range children {
		out = append(out, c)
	}
	return out
}

// Depth1Occurrences returns the occurrence counts of every root child,
// the data Item Ordering needs to rebuild ≺ on each derivation.
func (t *Trie) Depth1Occurrences() map[symbol.ID]uint64 {
	children := t.nodes[Root].children
	out := make(map[symbol.ID]uint64, len(children))
	for sym, id := range children {
		out[sym] = t.nodes[id].occurrences
	}
	return out
}

// Path reconstructs the full symbol path from root to id by walking
// parent pointers, appending into (and returning) the given scratch
// buffer reversed into path order. Passing a reused buffer avoids a
// per-node allocation during enumeration (spec.md §9).
func (t *Trie) Path(id NodeID, scratch []symbol.ID) []symbol.ID {
	scratch = scratch[:0]
	for cur := id; cur != Root; cur = t.nodes[cur].parent {
		scratch = append(scratch, t.nodes[cur].sym)
	}
	for i, j := 0, len(scratch)-1; i < j; i, j = i+1, j-1 {
		scratch[i], scratch[j] = scratch[j], scratch[i]
	}
	return scratch
}

// Visit is the record passed to SubtreeIter's callback. Path aliases a
// buffer reused across the whole walk: callers that need to keep a
// path past the callback that received it must copy it.
type Visit struct {
	ID               NodeID
	Path             []symbol.ID
	Occurrences      uint64
	Depth            int
	ConsequentsCount int
}

// SubtreeIter performs a depth-first walk of id's subtree (id included),
// calling shouldDescend before entering a node's children — returning
// false prunes the whole subtree — and visit for every node that passes
// shouldDescend. The path buffer is reused across the whole walk.
func (t *Trie) SubtreeIter(id NodeID, ord *order.Order, shouldDescend func(Visit) bool, visit func(Visit)) {
	var scratch []symbol.ID
	var walk func(cur NodeID)
	walk = func(cur NodeID) {
		n := &t.nodes[cur]
		v := Visit{
			ID:               cur,
			Path:             t.Path(cur, scratch),
			Occurrences:      n.occurrences,
			Depth:            n.depth,
			ConsequentsCount: n.consequentsCount,
		}
		scratch = v.Path[:cap(v.Path)] // keep underlying array for reuse
		if shouldDescend != nil && !shouldDescend(v) {
			return
		}
		visit(v)
		for _, childID := range t.ChildrenSorted(cur, ord) {
			walk(childID)
		}
	}
	walk(id)
}
