package ambre

import (
	"strconv"
	"strings"

	"github.com/golang/glog"

	"github.com/ambre-go/ambre/internal/ingest"
	"github.com/ambre-go/ambre/internal/symbol"
)

// Transaction is a finite set of raw item strings; duplicates are
// collapsed during ingestion (spec.md §3).
type Transaction []string

// IngestOptions tunes a single InsertTransaction(s) call.
type IngestOptions struct {
	// Strict rejects a transaction whose item count exceeds max_len
	// instead of silently ingesting only the subsets that fit.
	Strict bool
	// SamplingRatio in (0,1]; 1 (the zero value maps to 1) disables
	// subsampling. Values below 1 are best-effort and break exact
	// counting (spec.md §9).
	SamplingRatio float64
}

// InsertTransaction normalizes and ingests one transaction, updating the
// trie store in place. Ingestion is atomic: a normalization failure
// leaves the index unchanged (spec.md §7).
func (ix *Index) InsertTransaction(t Transaction, opts IngestOptions) error {
	ix.guard.Lock()
	defer ix.guard.Unlock()
	return ix.insertLocked(t, opts)
}

// InsertTransactions ingests a sequence of transactions. It stops and
// returns the first error; transactions before the failing one remain
// ingested (each call to InsertTransaction is independently atomic, the
// batch as a whole is not).
func (ix *Index) InsertTransactions(ts []Transaction, opts IngestOptions) error {
	ix.guard.Lock()
	defer ix.guard.Unlock()
	for i, t := range ts {
		if err := ix.insertLocked(t, opts); err != nil {
			kind := KindInvalidItem
			if e, ok := err.(*Error); ok {
				kind = e.Kind
			}
			return wrapError(kind, err, "transaction "+strconv.Itoa(i))
		}
	}
	return nil
}

func (ix *Index) insertLocked(t Transaction, opts IngestOptions) error {
	if opts.SamplingRatio == 0 {
		opts.SamplingRatio = 1
	}

	// Interning a transaction's raw items can allocate new symbols
	// before validation (strict max_len) runs. A rejected transaction
	// must leave the whole index, symbol table included, exactly as it
	// found it (spec.md §7), so any new symbols get rolled back on
	// either a normalization or an ingestion failure.
	mark := ix.symbols.Mark()

	ids := make([]symbol.ID, 0, len(t))
	for _, raw := range t {
		id, err := ix.symbols.Intern(raw)
		if err != nil {
			ix.symbols.Rollback(mark)
			return wrapError(KindInvalidItem, err, "normalizing item")
		}
		ids = append(ids, id)
	}
	ids = ingest.Dedupe(ids)

	err := ingest.Ingest(ix.trie, ix.consequents, ids, ingest.Options{
		MaxLen:        ix.maxLen(),
		Strict:        opts.Strict,
		SamplingRatio: opts.SamplingRatio,
		Rand:          ix.samplingRand(),
	})
	if err != nil {
		ix.symbols.Rollback(mark)
		glog.Warningf("ambre: transaction rejected: %v", err)
		return wrapError(KindMaxLenExceeded, err, "ingesting transaction")
	}
	return nil
}

// ColumnValueItem builds the "column<sep>value" item the tabular-input
// adapter is expected to hand to InsertTransaction. It rejects a column
// or value that already contains the declared separator; it does not
// check the result against the configured item_alphabet.
func (ix *Index) ColumnValueItem(column, value string) (string, error) {
	sep := ix.opts.Separator
	if sep == "" {
		sep = DefaultSeparator
	}
	if strings.Contains(column, sep) || strings.Contains(value, sep) {
		return "", newError(KindInvalidItem, "column or value contains the reserved separator %q", sep)
	}
	return column + sep + value, nil
}

