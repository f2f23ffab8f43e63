package ambre

import (
	"github.com/ambre-go/ambre/internal/ingest"
	"github.com/ambre-go/ambre/internal/predict"
	"github.com/ambre-go/ambre/internal/symbol"
)

// Prediction is one consequent's predicted completion score, resolved
// back to its canonical item string.
type Prediction struct {
	Consequent string
	Score      float64
}

// PredictOptions tunes Predict's handling of antecedent items the
// index has never seen.
type PredictOptions struct {
	// SkipUnknownAntecedents silently drops unknown items from the query
	// instead of failing the whole call with UnknownAntecedent.
	SkipUnknownAntecedents bool
}

// Predict scores each declared consequent as a completion of the given
// partial transaction, per spec.md §4.9. Antecedent items are resolved
// through the already-built symbol table: items never seen by this
// index are either dropped (SkipUnknownAntecedents) or cause an
// UnknownAntecedent error.
func (ix *Index) Predict(antecedents []string, opts PredictOptions) ([]Prediction, error) {
	ix.guard.Lock()
	defer ix.guard.Unlock()

	ids := make([]symbol.ID, 0, len(antecedents))
	for _, raw := range antecedents {
		id, ok := ix.symbols.Lookup(raw)
		if !ok {
			if opts.SkipUnknownAntecedents {
				continue
			}
			return nil, newError(KindUnknownAntecedent, "unknown antecedent item %q", raw)
		}
		if ix.consequents.IsMember(id) {
			continue // antecedents are items outside C
		}
		ids = append(ids, id)
	}
	ids = ingest.Dedupe(ids)
	query := ingest.CanonicalOrder(ids, ix.consequents)

	orderPath := func(base []symbol.ID, k symbol.ID) []symbol.ID {
		withK := append(append([]symbol.ID{}, base...), k)
		return ingest.CanonicalOrder(withK, ix.consequents)
	}

	scores := predict.Predict(ix.trie, query, ix.consequents.Order, orderPath)

	out := make([]Prediction, len(scores))
	for i, s := range scores {
		out[i] = Prediction{Consequent: ix.symbols.String(s.Consequent), Score: s.Score}
	}
	return out, nil
}
