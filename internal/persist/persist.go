// Package persist implements the Serializer: an opaque, versioned byte
// encoding of the engine's entire state (configuration, symbol table,
// common-sense rules, trie) that round-trips to an observationally
// equal index. The framing (magic + schema version + preorder trie
// traversal) follows spec.md §4.10/§6; the little-endian length-prefixed
// primitives are the teacher trie library's own encoding style
// (common/util.go), and the optional snappy compression and blake2b
// checksum are drawn from the rest of the dependency pack (badger uses
// snappy; the teacher's common.Blake2b160 already hashes byte blobs).
package persist

import (
	"bytes"
	"io"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/xerrors"

	"github.com/golang/snappy"

	"github.com/ambre-go/ambre/internal/binutil"
	"github.com/ambre-go/ambre/internal/symbol"
	"github.com/ambre-go/ambre/internal/trie"
)

// Magic identifies an ambre persisted blob, per spec.md §6.
var Magic = [4]byte{'A', 'M', 'B', 'R'}

// SchemaVersion is the current schema version this package writes and
// the only version it can load.
const SchemaVersion uint32 = 1

// ErrSchemaMismatch is returned by Load when the blob's schema version
// is not one this build understands.
var ErrSchemaMismatch = xerrors.New("persist: unknown schema version")

// ErrNotAllBytesConsumed is returned by Load when trailing bytes remain
// after a structurally complete decode, signalling a corrupt or
// truncated blob.
var ErrNotAllBytesConsumed = xerrors.New("persist: not all bytes were consumed")

// Config is the subset of construction options that must round-trip.
type Config struct {
	Consequents         []string
	CaseInsensitive     bool
	NormalizeWhitespace bool
	Separator           string
	Alphabet            string // "" means the alphabet codec is disabled
	MaxAntecedentsLength int   // negative means unbounded
}

// CommonSenseRule mirrors internal/rules.CommonSenseRule in terms of
// canonical item strings rather than runtime symbol ids, since ids are
// not stable across a save/load round-trip in general.
type CommonSenseRule struct {
	Antecedents []string
	Consequents []string
}

// State is everything Save/Load round-trips.
type State struct {
	Config      Config
	Symbols     []string // index i (0-based) is symbol id i+1
	CommonSense []CommonSenseRule
	Trie        *trie.Trie
}

// Options controls the wire encoding.
type Options struct {
	// Compress enables snappy compression of the payload. Disabled by
	// default so small blobs (typical of tests) stay trivially
	// inspectable.
	Compress bool
}

// Save encodes state as an opaque byte blob: magic, schema version, a
// flags byte (bit 0 set when compressed), a blake2b-160 checksum of the
// (possibly compressed) payload, then the length-prefixed payload itself.
func Save(state *State, opts Options) ([]byte, error) {
	var payload bytes.Buffer
	if err := writeConfig(&payload, state.Config); err != nil {
		return nil, err
	}
	if err := writeStrings(&payload, state.Symbols); err != nil {
		return nil, err
	}
	if err := writeCommonSense(&payload, state.CommonSense); err != nil {
		return nil, err
	}
	if err := writeTrie(&payload, state.Trie); err != nil {
		return nil, err
	}

	body := payload.Bytes()
	flags := byte(0)
	if opts.Compress {
		body = snappy.Encode(nil, body)
		flags = 1
	}
	checksum := blake2b160(body)

	var out bytes.Buffer
	out.Write(Magic[:])
	_ = binutil.WriteUint32(&out, SchemaVersion)
	_ = binutil.WriteByte(&out, flags)
	out.Write(checksum[:])
	_ = binutil.WriteBytes32(&out, body)
	return out.Bytes(), nil
}

// Load decodes a blob produced by Save into a fresh State.
func Load(blob []byte) (*State, error) {
	r := bytes.NewReader(blob)
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, xerrors.Errorf("persist: reading magic: %w", err)
	}
	if magic != Magic {
		return nil, xerrors.Errorf("persist: bad magic %x", magic)
	}
	version, err := binutil.ReadUint32(r)
	if err != nil {
		return nil, err
	}
	if version != SchemaVersion {
		return nil, ErrSchemaMismatch
	}
	flags, err := binutil.ReadByte(r)
	if err != nil {
		return nil, err
	}
	var checksum [20]byte
	if _, err := io.ReadFull(r, checksum[:]); err != nil {
		return nil, err
	}
	body, err := binutil.ReadBytes32(r)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, ErrNotAllBytesConsumed
	}
	if blake2b160(body) != checksum {
		return nil, xerrors.New("persist: checksum mismatch")
	}
	if flags&1 != 0 {
		decoded, err := snappy.Decode(nil, body)
		if err != nil {
			return nil, xerrors.Errorf("persist: snappy decode: %w", err)
		}
		body = decoded
	}

	br := bytes.NewReader(body)
	cfg, err := readConfig(br)
	if err != nil {
		return nil, err
	}
	symbols, err := readStrings(br)
	if err != nil {
		return nil, err
	}
	cs, err := readCommonSense(br)
	if err != nil {
		return nil, err
	}
	tr, err := readTrie(br, cfg, symbols)
	if err != nil {
		return nil, err
	}
	if br.Len() != 0 {
		return nil, ErrNotAllBytesConsumed
	}
	return &State{Config: cfg, Symbols: symbols, CommonSense: cs, Trie: tr}, nil
}

func blake2b160(data []byte) (ret [20]byte) {
	h, _ := blake2b.New(20, nil)
	_, _ = h.Write(data)
	copy(ret[:], h.Sum(nil))
	return
}

func writeConfig(w io.Writer, c Config) error {
	if err := writeStrings(w, c.Consequents); err != nil {
		return err
	}
	flags := byte(0)
	if c.CaseInsensitive {
		flags |= 1
	}
	if c.NormalizeWhitespace {
		flags |= 2
	}
	if err := binutil.WriteByte(w, flags); err != nil {
		return err
	}
	if err := binutil.WriteString32(w, c.Separator); err != nil {
		return err
	}
	if err := binutil.WriteString32(w, c.Alphabet); err != nil {
		return err
	}
	return binutil.WriteUint32(w, uint32(int32(c.MaxAntecedentsLength)))
}

func readConfig(r io.Reader) (Config, error) {
	var c Config
	var err error
	if c.Consequents, err = readStrings(r); err != nil {
		return c, err
	}
	flags, err := binutil.ReadByte(r)
	if err != nil {
		return c, err
	}
	c.CaseInsensitive = flags&1 != 0
	c.NormalizeWhitespace = flags&2 != 0
	if c.Separator, err = binutil.ReadString32(r); err != nil {
		return c, err
	}
	if c.Alphabet, err = binutil.ReadString32(r); err != nil {
		return c, err
	}
	maxAnte, err := binutil.ReadUint32(r)
	if err != nil {
		return c, err
	}
	c.MaxAntecedentsLength = int(int32(maxAnte))
	return c, nil
}

func writeStrings(w io.Writer, ss []string) error {
	if err := binutil.WriteUint32(w, uint32(len(ss))); err != nil {
		return err
	}
	for _, s := range ss {
		if err := binutil.WriteString32(w, s); err != nil {
			return err
		}
	}
	return nil
}

func readStrings(r io.Reader) ([]string, error) {
	n, err := binutil.ReadUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		if out[i], err = binutil.ReadString32(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func writeCommonSense(w io.Writer, rs []CommonSenseRule) error {
	if err := binutil.WriteUint32(w, uint32(len(rs))); err != nil {
		return err
	}
	for _, r := range rs {
		if err := writeStrings(w, r.Antecedents); err != nil {
			return err
		}
		if err := writeStrings(w, r.Consequents); err != nil {
			return err
		}
	}
	return nil
}

func readCommonSense(r io.Reader) ([]CommonSenseRule, error) {
	n, err := binutil.ReadUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]CommonSenseRule, n)
	for i := range out {
		if out[i].Antecedents, err = readStrings(r); err != nil {
			return nil, err
		}
		if out[i].Consequents, err = readStrings(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// writeTrie emits a preorder traversal: (symbol_id, occurrences,
// child_count) per node, root first, per spec.md §6.
func writeTrie(w io.Writer, tr *trie.Trie) error {
	var walk func(id trie.NodeID) error
	walk = func(id trie.NodeID) error {
		if err := binutil.WriteUint32(w, uint32(tr.Symbol(id))); err != nil {
			return err
		}
		if err := binutil.WriteUint64(w, tr.Occurrences(id)); err != nil {
			return err
		}
		children := tr.ChildIDs(id)
		if err := binutil.WriteUint32(w, uint32(len(children))); err != nil {
			return err
		}
		for _, c := range children {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(trie.Root)
}

// readTrie rebuilds a trie from its preorder encoding. cfg.Consequents
// and symbols (by id) let it classify each symbol as a consequent while
// rebuilding, so consequents_count is correct without a second pass.
func readTrie(r io.Reader, cfg Config, symbols []string) (*trie.Trie, error) {
	consSet := make(map[symbol.ID]bool, len(cfg.Consequents))
	byCanon := make(map[string]symbol.ID, len(symbols))
	for i, s := range symbols {
		byCanon[s] = symbol.ID(i + 1)
	}
	// symbols hold canonical strings while cfg.Consequents holds the raw
	// declared ones, so canonicalize the latter under the same rules.
	norm := symbol.NewTable(symbol.Options{CaseInsensitive: cfg.CaseInsensitive, NormalizeWhitespace: cfg.NormalizeWhitespace})
	for _, c := range cfg.Consequents {
		if id, ok := byCanon[norm.Canonicalize(c)]; ok {
			consSet[id] = true
		}
	}
	isConsequent := func(id symbol.ID) bool { return consSet[id] }

	tr := trie.New()
	var walk func(id trie.NodeID) error
	walk = func(id trie.NodeID) error {
		symID, err := binutil.ReadUint32(r)
		if err != nil {
			return err
		}
		occ, err := binutil.ReadUint64(r)
		if err != nil {
			return err
		}
		childCount, err := binutil.ReadUint32(r)
		if err != nil {
			return err
		}
		tr.Add(id, occ)
		_ = symID // the root's encoded symbol is always 0 and is not reinserted
		for i := uint32(0); i < childCount; i++ {
			childSymRaw, err := peekUint32(r)
			if err != nil {
				return err
			}
			childID := tr.InsertChild(id, symbol.ID(childSymRaw), isConsequent(symbol.ID(childSymRaw)))
			if err := walk(childID); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(trie.Root); err != nil {
		return nil, err
	}
	return tr, nil
}

// peekUint32 reads the next 4 bytes without consuming the stream,
// needed because writeTrie emits a child's symbol id as the first field
// of the child's own record, but InsertChild must be called before
// descending into it.
func peekUint32(r io.Reader) (uint32, error) {
	br, ok := r.(*bytes.Reader)
	binutil.Assert(ok, "persist: readTrie requires a *bytes.Reader")
	pos, _ := br.Seek(0, io.SeekCurrent)
	var tmp [4]byte
	if _, err := io.ReadFull(br, tmp[:]); err != nil {
		return 0, err
	}
	_, _ = br.Seek(pos, io.SeekStart)
	return binutil.Uint32From4Bytes(tmp[:]), nil
}
