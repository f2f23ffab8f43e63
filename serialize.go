package ambre

import (
	"math/rand"

	"github.com/ambre-go/ambre/internal/codec"
	"github.com/ambre-go/ambre/internal/ingest"
	"github.com/ambre-go/ambre/internal/persist"
	"github.com/ambre-go/ambre/internal/rules"
	"github.com/ambre-go/ambre/internal/symbol"
)

// SerializeOptions controls the wire encoding produced by Save.
type SerializeOptions struct {
	// Compress enables snappy compression of the encoded payload.
	Compress bool
}

// Save encodes the index's entire state — configuration, symbol table,
// common-sense rules and trie — into an opaque, versioned byte blob
// (spec.md §4.10). The result round-trips through Load to an
// observationally equivalent index.
func (ix *Index) Save(opts SerializeOptions) ([]byte, error) {
	ix.guard.Lock()
	defer ix.guard.Unlock()

	pairs := ix.symbols.All()
	symbols := make([]string, len(pairs))
	for _, p := range pairs {
		symbols[int(p.ID)-1] = p.S
	}

	cs := make([]persist.CommonSenseRule, len(ix.commonSense))
	for i, r := range ix.commonSense {
		cs[i] = persist.CommonSenseRule{
			Antecedents: ix.resolveIDs(r.Antecedents),
			Consequents: ix.resolveIDs(r.Consequents),
		}
	}

	state := &persist.State{
		Config: persist.Config{
			Consequents:          ix.opts.Consequents,
			CaseInsensitive:      ix.opts.CaseInsensitive,
			NormalizeWhitespace:  ix.opts.NormalizeWhitespace,
			Separator:            ix.opts.Separator,
			Alphabet:             ix.opts.ItemAlphabet,
			MaxAntecedentsLength: ix.opts.MaxAntecedentsLength,
		},
		Symbols:     symbols,
		CommonSense: cs,
		Trie:        ix.trie,
	}

	blob, err := persist.Save(state, persist.Options{Compress: opts.Compress})
	if err != nil {
		return nil, wrapError(KindConfigError, err, "encoding index")
	}
	return blob, nil
}

// Load decodes a blob produced by Save into a fresh, independent index.
func Load(blob []byte) (*Index, error) {
	state, err := persist.Load(blob)
	if err != nil {
		if err == persist.ErrSchemaMismatch {
			return nil, wrapError(KindSchemaMismatch, err, "loading index")
		}
		return nil, wrapError(KindSchemaMismatch, err, "decoding index blob")
	}

	opts := Options{
		Consequents:          state.Config.Consequents,
		MaxAntecedentsLength: state.Config.MaxAntecedentsLength,
		CaseInsensitive:      state.Config.CaseInsensitive,
		ItemAlphabet:         state.Config.Alphabet,
		NormalizeWhitespace:  state.Config.NormalizeWhitespace,
		Separator:            state.Config.Separator,
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	symOpts, err := symbolOptionsFor(opts)
	if err != nil {
		return nil, err
	}
	table, err := symbol.Restore(symOpts, toPairs(state.Symbols))
	if err != nil {
		return nil, wrapError(KindConfigError, err, "restoring symbol table")
	}

	consIDs := make([]symbol.ID, 0, len(opts.Consequents))
	for _, raw := range opts.Consequents {
		id, ok := table.Lookup(raw)
		if !ok {
			return nil, newError(KindSchemaMismatch, "persisted symbol table missing declared consequent %q", raw)
		}
		consIDs = append(consIDs, id)
	}

	ix := &Index{
		opts:        opts,
		symbols:     table,
		consequents: ingest.NewConsequents(consIDs),
		trie:        state.Trie,
		rng:         rand.New(rand.NewSource(1)),
	}
	ix.commonSense = make([]rules.CommonSenseRule, len(state.CommonSense))
	for i, r := range state.CommonSense {
		a, err := lookupStrict(table, r.Antecedents)
		if err != nil {
			return nil, err
		}
		k, err := lookupStrict(table, r.Consequents)
		if err != nil {
			return nil, err
		}
		ix.commonSense[i] = rules.CommonSenseRule{Antecedents: a, Consequents: k}
	}

	return ix, nil
}

func symbolOptionsFor(opts Options) (symbol.Options, error) {
	var c codec.Codec
	if opts.ItemAlphabet != "" {
		var err error
		c, err = codec.New(opts.ItemAlphabet)
		if err != nil {
			return symbol.Options{}, wrapError(KindConfigError, err, "rebuilding alphabet codec")
		}
	}
	return symbol.Options{
		CaseInsensitive:     opts.CaseInsensitive,
		NormalizeWhitespace: opts.NormalizeWhitespace,
		Separator:           opts.Separator,
		Codec:               c,
	}, nil
}

func toPairs(symbols []string) []struct {
	ID symbol.ID
	S  string
} {
	out := make([]struct {
		ID symbol.ID
		S  string
	}, len(symbols))
	for i, s := range symbols {
		out[i] = struct {
			ID symbol.ID
			S  string
		}{symbol.ID(i + 1), s}
	}
	return out
}

func lookupStrict(table *symbol.Table, items []string) ([]symbol.ID, error) {
	out := make([]symbol.ID, 0, len(items))
	for _, raw := range items {
		id, ok := table.Lookup(raw)
		if !ok {
			return nil, newError(KindSchemaMismatch, "persisted common-sense rule references unknown item %q", raw)
		}
		out = append(out, id)
	}
	return out, nil
}
