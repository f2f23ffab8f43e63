// Package predict implements the Predictor: scoring each declared
// consequent as a candidate completion of a partial transaction by
// exact trie lookups.
package predict

import (
	"sort"

	"github.com/ambre-go/ambre/internal/symbol"
	"github.com/ambre-go/ambre/internal/trie"
)

// Prediction is one consequent's predicted score.
type Prediction struct {
	Consequent symbol.ID
	Score      float64
}

// Predict scores every id in consequents as a completion of query,
// using exact trie lookups (spec.md §4.9). query must already be the
// deduplicated, canonically-ordered antecedent symbol set (consequents
// stripped out by the caller per the predictor contract).
func Predict(tr *trie.Trie, query []symbol.ID, consequents []symbol.ID, orderPath func([]symbol.ID, symbol.ID) []symbol.ID) []Prediction {
	queryID, queryFound := tr.GetOrNone(query)
	var queryOcc uint64
	if queryFound {
		queryOcc = tr.Occurrences(queryID)
	}

	out := make([]Prediction, 0, len(consequents))
	for _, k := range consequents {
		var score float64
		if queryOcc > 0 {
			path := orderPath(query, k)
			if id, ok := tr.GetOrNone(path); ok {
				score = float64(tr.Occurrences(id)) / float64(queryOcc)
			}
		}
		out = append(out, Prediction{Consequent: k, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
