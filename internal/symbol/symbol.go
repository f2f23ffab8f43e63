// Package symbol implements the Normalizer and the symbol table: raw
// item strings are canonicalized, optionally run through an alphabet
// codec, and interned to small monotone integer ids. Every downstream
// component operates on ids, never on the raw or normalized string.
package symbol

import (
	"strings"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/ambre-go/ambre/internal/codec"
)

// ID is a dense, monotonically assigned symbol identifier. Zero is
// reserved and never assigned to a real item, so a zero ID reliably
// means "no such symbol".
type ID uint32

// InvalidItemError is returned by Intern when a raw item cannot be
// turned into a symbol: empty after trimming, contains the reserved
// separator, or is rejected by the alphabet codec.
type InvalidItemError struct {
	Item   string
	Reason string
}

func (e *InvalidItemError) Error() string {
	return "invalid item " + `"` + e.Item + `"` + ": " + e.Reason
}

// Table interns normalized items to IDs and back. It owns the
// normalization policy (case folding, whitespace collapsing, the
// alphabet codec and the reserved separator check) so the Ingestor
// never has to duplicate it.
type Table struct {
	caseInsensitive     bool
	normalizeWhitespace bool
	separator           string
	codec               codec.Codec

	byKey map[uint64][]entry // xxhash bucket, collision list
	byID  []string           // id -> canonical (post-normalization, pre-codec) string; index 0 unused
	next  uint32             // next id to allocate, pre-increment via atomic for style parity with the arena allocator
}

type entry struct {
	key    string // normalized (post-codec) bytes as string, the true intern key
	id     ID
	canon  string // canonical display string (post-normalization, pre-codec)
}

// Options configures a Table the same way Index options configure the
// Normalizer contract in spec.md §4.1/§6.
type Options struct {
	CaseInsensitive     bool
	NormalizeWhitespace bool
	Separator           string
	Codec               codec.Codec
}

func NewTable(opts Options) *Table {
	c := opts.Codec
	if c == nil {
		c = codec.Identity()
	}
	return &Table{
		caseInsensitive:     opts.CaseInsensitive,
		normalizeWhitespace: opts.NormalizeWhitespace,
		separator:           opts.Separator,
		codec:               c,
		byKey:               make(map[uint64][]entry),
		byID:                make([]string, 1), // index 0 reserved
	}
}

// Canonicalize applies case folding and whitespace normalization without
// interning or alphabet-encoding the result. Exposed so the reserved
// separator check and the adapter's column/value construction can reuse
// exactly the same rules the Intern path uses.
func (t *Table) Canonicalize(raw string) string {
	s := raw
	if t.normalizeWhitespace {
		s = collapseWhitespace(strings.TrimSpace(s))
	}
	if t.caseInsensitive {
		s = strings.ToLower(s)
	}
	return s
}

// Intern normalizes raw, validates it, and returns its symbol id,
// allocating a fresh one on first occurrence.
func (t *Table) Intern(raw string) (ID, error) {
	canon := t.Canonicalize(raw)
	if canon == "" {
		return 0, &InvalidItemError{Item: raw, Reason: "empty after normalization"}
	}
	if t.separator != "" && strings.Contains(canon, t.separator) {
		return 0, &InvalidItemError{Item: raw, Reason: "contains reserved separator " + `"` + t.separator + `"`}
	}
	encoded, err := t.codec.Encode(canon)
	if err != nil {
		return 0, &InvalidItemError{Item: raw, Reason: err.Error()}
	}
	key := string(encoded)
	h := xxhash.Sum64String(key)
	for _, e := range t.byKey[h] {
		if e.key == key {
			return e.id, nil
		}
	}
	id := ID(atomic.AddUint32(&t.next, 1))
	t.byID = append(t.byID, canon)
	t.byKey[h] = append(t.byKey[h], entry{key: key, id: id, canon: canon})
	return id, nil
}

// Lookup returns the id of an already-interned item, without allocating
// a new one. Used by the Predictor, which must fail on unknown items
// rather than silently creating them.
func (t *Table) Lookup(raw string) (ID, bool) {
	canon := t.Canonicalize(raw)
	encoded, err := t.codec.Encode(canon)
	if err != nil {
		return 0, false
	}
	key := string(encoded)
	h := xxhash.Sum64String(key)
	for _, e := range t.byKey[h] {
		if e.key == key {
			return e.id, true
		}
	}
	return 0, false
}

// String returns the canonical display string for an id, or "" if the
// id was never allocated.
func (t *Table) String(id ID) string {
	if int(id) >= len(t.byID) || id == 0 {
		return ""
	}
	return t.byID[id]
}

// Len returns the number of distinct symbols interned so far.
func (t *Table) Len() int { return len(t.byID) - 1 }

// Mark returns a checkpoint of the table's state, to pass to Rollback
// if a caller-level operation that interned new symbols along the way
// (e.g. one InsertTransaction call) ultimately fails and must leave the
// table exactly as it found it.
func (t *Table) Mark() uint32 { return t.next }

// Rollback discards every symbol interned since mark was taken,
// restoring the table to its state at that point. mark must come from
// a Mark call on this table with no intervening Restore.
func (t *Table) Rollback(mark uint32) {
	if t.next == mark {
		return
	}
	t.byID = t.byID[:mark+1]
	for h, entries := range t.byKey {
		kept := entries[:0]
		for _, e := range entries {
			if uint32(e.id) <= mark {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(t.byKey, h)
		} else {
			t.byKey[h] = kept
		}
	}
	t.next = mark
}

// All returns every (id, canonical string) pair, in id order.
func (t *Table) All() []struct {
	ID ID
	S  string
} {
	out := make([]struct {
		ID ID
		S  string
	}, 0, len(t.byID)-1)
	for id := 1; id < len(t.byID); id++ {
		out = append(out, struct {
			ID ID
			S  string
		}{ID(id), t.byID[id]})
	}
	return out
}

// Restore rebuilds a table from a persisted (id, canonical string) list,
// used by the Serializer's load path. IDs must be presented in
// ascending, gap-free order starting at 1.
func Restore(opts Options, pairs []struct {
	ID ID
	S  string
}) (*Table, error) {
	t := NewTable(opts)
	for _, p := range pairs {
		if ID(len(t.byID)) != p.ID {
			return nil, &InvalidItemError{Item: p.S, Reason: "non-contiguous id on restore"}
		}
		encoded, err := t.codec.Encode(p.S)
		if err != nil {
			return nil, err
		}
		key := string(encoded)
		h := xxhash.Sum64String(key)
		t.byID = append(t.byID, p.S)
		t.byKey[h] = append(t.byKey[h], entry{key: key, id: p.ID, canon: p.S})
		if uint32(p.ID) >= t.next {
			t.next = uint32(p.ID)
		}
	}
	return t, nil
}

func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if isSpace(r) {
			if !prevSpace {
				b.WriteByte(' ')
			}
			prevSpace = true
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}
