// Package binutil provides the small binary read/write helpers shared by
// the trie arena and the serializer. It is the same little-endian,
// length-prefixed encoding style the teacher trie library used for its
// key/value dumps, trimmed to the primitives this module actually needs.
package binutil

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Assert panics with a formatted message when cond is false. Used for
// invariants the trie's own construction guarantees, never for
// caller-reachable error conditions.
func Assert(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}

func WriteByte(w io.Writer, val byte) error {
	_, err := w.Write([]byte{val})
	return err
}

func ReadByte(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func Uint32To4Bytes(val uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], val)
	return tmp[:]
}

func Uint32From4Bytes(b []byte) uint32 {
	Assert(len(b) == 4, "binutil.Uint32From4Bytes: expected 4 bytes, got %d", len(b))
	return binary.LittleEndian.Uint32(b)
}

func WriteUint32(w io.Writer, val uint32) error {
	_, err := w.Write(Uint32To4Bytes(val))
	return err
}

func ReadUint32(r io.Reader) (uint32, error) {
	var tmp [4]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(tmp[:]), nil
}

func WriteUint64(w io.Writer, val uint64) error {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], val)
	_, err := w.Write(tmp[:])
	return err
}

func ReadUint64(r io.Reader) (uint64, error) {
	var tmp [8]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(tmp[:]), nil
}

// WriteBytes32 writes a length-prefixed (uint32 LE) byte slice.
func WriteBytes32(w io.Writer, data []byte) error {
	if len(data) > math.MaxUint32 {
		panic(fmt.Sprintf("binutil.WriteBytes32: too long (%d)", len(data)))
	}
	if err := WriteUint32(w, uint32(len(data))); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	_, err := w.Write(data)
	return err
}

// ReadBytes32 reads a length-prefixed (uint32 LE) byte slice.
func ReadBytes32(r io.Reader) ([]byte, error) {
	n, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{}, nil
	}
	ret := make([]byte, n)
	if _, err := io.ReadFull(r, ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// WriteString32 writes a length-prefixed UTF-8 string.
func WriteString32(w io.Writer, s string) error {
	return WriteBytes32(w, []byte(s))
}

// ReadString32 reads a length-prefixed UTF-8 string.
func ReadString32(r io.Reader) (string, error) {
	b, err := ReadBytes32(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
