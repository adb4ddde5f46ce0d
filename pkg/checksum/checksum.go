// Package checksum computes the integrity digest recorded in
// snapshot.json and state.ok, per SPEC_FULL.md §4.1. It is built on
// github.com/minio/highwayhash, carried over from the estuary-flow sibling
// in the retrieval pack (see DESIGN.md) — this is a crash-recovery
// integrity check, not a security boundary, so a fixed key is fine.
package checksum

import (
	"encoding/hex"
	"hash"

	"github.com/minio/highwayhash"
)

// key is a fixed, versioned 32-byte key. Changing it invalidates every
// previously written checksum, forcing a full replay on next startup;
// that is an acceptable, intentional one-time cost if it is ever rotated.
var key = [32]byte{
	0x6c, 0x6c, 0x6d, 0x2d, 0x6d, 0x65, 0x6d, 0x6f,
	0x72, 0x79, 0x2d, 0x63, 0x68, 0x65, 0x63, 0x6b,
	0x73, 0x75, 0x6d, 0x2d, 0x76, 0x31, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// Digester accumulates parts (catalog bytes, then each index file's bytes,
// in a fixed order) and produces one hex digest over the whole sequence. A
// missing part still contributes its name, so a partially deleted index/
// directory changes the digest rather than silently matching.
type Digester struct {
	h hash.Hash
}

// New returns a Digester ready to accept Write calls.
func New() *Digester {
	h, err := highwayhash.New(key[:])
	if err != nil {
		// key is a fixed 32-byte array; highwayhash.New only errors on
		// wrong key length, which cannot happen here.
		panic(err)
	}
	return &Digester{h: h}
}

// WritePart feeds one named part into the digest: the name (to distinguish
// a present-but-empty file from an absent one) followed by its bytes.
func (d *Digester) WritePart(name string, data []byte) {
	_, _ = d.h.Write([]byte(name))
	_, _ = d.h.Write([]byte{0})
	_, _ = d.h.Write(data)
	_, _ = d.h.Write([]byte{0})
}

// Sum returns the accumulated digest as a hex string.
func (d *Digester) Sum() string {
	return hex.EncodeToString(d.h.Sum(nil))
}
