package ambre

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// bytesPerNode is a rough estimate of one trie arena slot's resident
// size (parent id, symbol id, occurrence counter, depth, consequents
// count, plus the Go map header for children) used only for the
// human-readable memory estimate in String().
const bytesPerNode = 96

// String renders Stats the way an operator sizing an index would want
// to read it: humanized counts rather than raw integers.
func (s Stats) String() string {
	return fmt.Sprintf(
		"nodes=%s symbols=%s max_depth=%d transactions=%s memory≈%s",
		humanize.Comma(int64(s.NodeCount)),
		humanize.Comma(int64(s.SymbolCount)),
		s.MaxDepth,
		humanize.Comma(int64(s.RootOccurrences)),
		humanize.Bytes(uint64(s.NodeCount)*bytesPerNode),
	)
}
