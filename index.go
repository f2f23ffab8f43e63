// Package ambre mines association rules from a stream of categorical
// transactions. It wires together the Normalizer, Alphabet Codec, Item
// Ordering, Trie Store, Ingestor, Itemset Enumerator, Rule Deriver,
// Merger, Predictor and Serializer described in spec.md into a single
// public facade, the way the teacher trie library's root package wires
// common, mutable and the commitment models together.
package ambre

import (
	"math/rand"

	"github.com/golang/glog"
	"github.com/sasha-s/go-deadlock"

	"github.com/ambre-go/ambre/internal/codec"
	"github.com/ambre-go/ambre/internal/ingest"
	"github.com/ambre-go/ambre/internal/order"
	"github.com/ambre-go/ambre/internal/rules"
	"github.com/ambre-go/ambre/internal/symbol"
	"github.com/ambre-go/ambre/internal/trie"
)

// Index is the in-memory combinatorial index: one symbol table, one
// trie, one common-sense rule list, all guarded by one instance-local
// mutex. Distinct Index instances are fully independent (spec.md §5);
// do not share one across goroutines without external synchronization.
type Index struct {
	opts Options

	// guard enforces spec.md §5's "callers must serialize" rule on one
	// instance; go-deadlock is a drop-in sync.Mutex that additionally
	// detects lock-order cycles in builds with debug.Enable() set,
	// matching the teacher pack's own transitive choice of deadlock
	// detector over a bare sync.Mutex.
	guard deadlock.Mutex

	symbols     *symbol.Table
	consequents ingest.Consequents
	trie        *trie.Trie
	commonSense []rules.CommonSenseRule

	rng *rand.Rand // drives IngestOptions.SamplingRatio's coin flip
}

// New constructs an Index from Options, layering the caller's fields
// onto DefaultOptions so a plain struct literal — the way every call
// site in this repo builds Options — gets spec.md §6's documented
// defaults instead of Go's bool/string zero values, then validates the
// result per spec.md §7 (ConfigError).
func New(opts Options) (*Index, error) {
	opts = withDefaults(opts)
	if err := opts.validate(); err != nil {
		return nil, err
	}

	var c codec.Codec
	if opts.ItemAlphabet != "" {
		var err error
		c, err = codec.New(opts.ItemAlphabet)
		if err != nil {
			return nil, wrapError(KindConfigError, err, "building alphabet codec")
		}
	}

	table := symbol.NewTable(symbol.Options{
		CaseInsensitive:     opts.CaseInsensitive,
		NormalizeWhitespace: opts.NormalizeWhitespace,
		Separator:           opts.Separator,
		Codec:               c,
	})

	consIDs := make([]symbol.ID, 0, len(opts.Consequents))
	for _, raw := range opts.Consequents {
		id, err := table.Intern(raw)
		if err != nil {
			return nil, wrapError(KindConfigError, err, "interning declared consequent")
		}
		consIDs = append(consIDs, id)
	}

	idx := &Index{
		opts:        opts,
		symbols:     table,
		consequents: ingest.NewConsequents(consIDs),
		trie:        trie.New(),
		rng:         rand.New(rand.NewSource(1)),
	}
	glog.V(2).Infof("ambre: new index, %d consequents, max_antecedents_length=%d", len(consIDs), opts.MaxAntecedentsLength)
	return idx, nil
}

// maxLen returns max_len = max_antecedents_length + |C|, or 0
// (unbounded) when max_antecedents_length is unbounded (spec.md §3
// invariant 5).
func (ix *Index) maxLen() int {
	if ix.opts.MaxAntecedentsLength == Unbounded {
		return 0
	}
	return ix.opts.MaxAntecedentsLength + len(ix.opts.Consequents)
}

// samplingRand returns the per-instance random source the Ingestor's
// sampling coin flip draws from. Deterministic seeding keeps a given
// index's ingestion sequence reproducible across runs.
func (ix *Index) samplingRand() *rand.Rand { return ix.rng }

// order rebuilds the item order ≺ from the trie's current depth-1
// counters. Never cached, per spec.md §9.
func (ix *Index) order() *order.Order {
	return order.Build(ix.consequents.Order, ix.trie.Depth1Occurrences())
}

// Stats describes the index's current size, the dominant memory cost
// per spec.md §5.
type Stats struct {
	NodeCount       int
	SymbolCount     int
	MaxDepth        int
	RootOccurrences uint64
}

// Stats computes current index statistics. O(node count).
func (ix *Index) Stats() Stats {
	ix.guard.Lock()
	defer ix.guard.Unlock()

	s := Stats{
		NodeCount:       ix.trie.NodeCount(),
		SymbolCount:     ix.symbols.Len(),
		RootOccurrences: ix.trie.Occurrences(trie.Root),
	}
	ix.trie.SubtreeIter(trie.Root, ix.order(), nil, func(v trie.Visit) {
		if v.Depth > s.MaxDepth {
			s.MaxDepth = v.Depth
		}
	})
	return s
}
