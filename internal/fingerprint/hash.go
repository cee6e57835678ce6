// Package fingerprint computes the deterministic hashes that serve as
// cache keys: file sets, environment subsets, the run-global inputs,
// and the per-task fingerprint combining all of them.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// HashLen is the length of every fingerprint in hex characters.
const HashLen = 32

const (
	fieldSep = 0x1e // between fields
	valueSep = 0x1f // between values within a field
)

// hasher accumulates a canonical byte sequence: each field is written
// as name, then its values, with explicit separators so that field and
// value boundaries can never be confused ("ab","c" vs "a","bc").
type hasher struct {
	h hash.Hash
}

func newHasher() *hasher {
	return &hasher{h: sha256.New()}
}

func (w *hasher) field(name string, values ...string) {
	w.h.Write([]byte(name))
	for _, v := range values {
		w.h.Write([]byte{valueSep})
		w.h.Write([]byte(v))
	}
	w.h.Write([]byte{fieldSep})
}

func (w *hasher) sum() string {
	return hex.EncodeToString(w.h.Sum(nil))[:HashLen]
}

// Digest hashes an ordered list of values into one fingerprint.
func Digest(values ...string) string {
	w := newHasher()
	w.field("digest", values...)
	return w.sum()
}
