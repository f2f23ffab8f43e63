// Package codec implements the optional alphabet codec: a bijective
// string<->bytes compressor against a user-declared character alphabet.
// It is a pure memory optimization — the packed bytes are used only as
// the symbol table's interning key and in the serialized blob; every
// other component operates on symbol ids, never on codec output.
package codec

import (
	"bytes"
	"fmt"
	"math/bits"
)

// Codec is a bijective string<->bytes transform. Encode/Decode must be
// exact inverses of one another.
type Codec interface {
	Encode(s string) ([]byte, error)
	Decode(b []byte) (string, error)
	// Alphabet returns the declared character set, or "" for the
	// identity codec.
	Alphabet() string
}

// identity is the no-op codec used when item_alphabet is not configured.
type identity struct{}

func (identity) Encode(s string) ([]byte, error) { return []byte(s), nil }
func (identity) Decode(b []byte) (string, error) { return string(b), nil }
func (identity) Alphabet() string                { return "" }

// Identity returns the disabled-codec identity transform.
func Identity() Codec { return identity{} }

// alphabetCodec packs each rune of the input into a ceil(log2(k))-bit
// field, big-endian, back to back into a byte buffer prefixed with the
// rune count. k = len(alphabet) in runes.
type alphabetCodec struct {
	alphabet string
	runes    []rune
	index    map[rune]uint32
	bitWidth uint
}

// New builds an alphabet codec over the given character set. The
// alphabet must contain no duplicate runes and must be non-empty.
func New(alphabet string) (Codec, error) {
	if alphabet == "" {
		return nil, fmt.Errorf("codec: empty alphabet")
	}
	runes := []rune(alphabet)
	index := make(map[rune]uint32, len(runes))
	for i, r := range runes {
		if _, dup := index[r]; dup {
			return nil, fmt.Errorf("codec: duplicate rune %q in alphabet", r)
		}
		index[r] = uint32(i)
	}
	k := len(runes)
	width := bits.Len(uint(k - 1))
	if width == 0 {
		width = 1
	}
	return &alphabetCodec{
		alphabet: alphabet,
		runes:    runes,
		index:    index,
		bitWidth: uint(width),
	}, nil
}

func (c *alphabetCodec) Alphabet() string { return c.alphabet }

// Encode packs the string's runes into the codec's compact bit form.
// Returns an error (the caller maps it to InvalidItem) when a rune is
// outside the declared alphabet.
func (c *alphabetCodec) Encode(s string) ([]byte, error) {
	runes := []rune(s)
	var buf bytes.Buffer
	// rune-count prefix, varint-free fixed 4 bytes is simplest and the
	// blob is tiny (one item) so the extra bytes don't matter.
	writeU32(&buf, uint32(len(runes)))

	var acc uint64
	var accBits uint
	for _, r := range runes {
		pos, ok := c.index[r]
		if !ok {
			return nil, fmt.Errorf("codec: rune %q not in declared alphabet", r)
		}
		acc = (acc << c.bitWidth) | uint64(pos)
		accBits += c.bitWidth
		for accBits >= 8 {
			accBits -= 8
			buf.WriteByte(byte(acc >> accBits))
		}
	}
	if accBits > 0 {
		buf.WriteByte(byte(acc << (8 - accBits)))
	}
	return buf.Bytes(), nil
}

// Decode recovers the exact original string from packed bytes.
func (c *alphabetCodec) Decode(b []byte) (string, error) {
	if len(b) < 4 {
		return "", fmt.Errorf("codec: truncated payload")
	}
	n := readU32(b[:4])
	b = b[4:]

	var acc uint64
	var accBits uint
	bi := 0
	out := make([]rune, 0, n)
	for uint32(len(out)) < n {
		for accBits < c.bitWidth {
			if bi >= len(b) {
				return "", fmt.Errorf("codec: truncated payload")
			}
			acc = (acc << 8) | uint64(b[bi])
			accBits += 8
			bi++
		}
		accBits -= c.bitWidth
		pos := uint32((acc >> accBits) & ((1 << c.bitWidth) - 1))
		if int(pos) >= len(c.runes) {
			return "", fmt.Errorf("codec: corrupt payload: position %d out of range", pos)
		}
		out = append(out, c.runes[pos])
	}
	return string(out), nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	buf.WriteByte(byte(v))
	buf.WriteByte(byte(v >> 8))
	buf.WriteByte(byte(v >> 16))
	buf.WriteByte(byte(v >> 24))
}

func readU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
