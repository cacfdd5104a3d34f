package crank25519

import (
	"hash"
	"sync"

	sha256simd "github.com/minio/sha256-simd"
)

// Domain tags used for the tagged hashes of this module
const (
	TagRistrettoSeed  = "crank25519/ristretto-seed"
	TagMontgomerySeed = "crank25519/montgomery-seed"
	TagTransaction    = "crank25519/transaction"
	TagNoop           = "crank25519/noop"
)

// tag prefixes are computed once per tag
var tagPrefixes sync.Map

// tagPrefix returns SHA256(tag), cached
func tagPrefix(tag string) [32]byte {
	if v, ok := tagPrefixes.Load(tag); ok {
		return v.([32]byte)
	}
	prefix := sha256simd.Sum256([]byte(tag))
	tagPrefixes.Store(tag, prefix)
	return prefix
}

// SHA256 represents a SHA-256 hash context
type SHA256 struct {
	hasher hash.Hash
}

// NewSHA256 creates a new SHA-256 hash context
func NewSHA256() *SHA256 {
	return &SHA256{hasher: sha256simd.New()}
}

// NewTaggedSHA256 creates a context preloaded with SHA256(tag) || SHA256(tag)
func NewTaggedSHA256(tag string) *SHA256 {
	h := NewSHA256()
	prefix := tagPrefix(tag)
	h.Write(prefix[:])
	h.Write(prefix[:])
	return h
}

// Write writes data to the hash
func (h *SHA256) Write(data []byte) {
	h.hasher.Write(data)
}

// Sum returns the 32-byte digest
func (h *SHA256) Sum() (out [32]byte) {
	copy(out[:], h.hasher.Sum(nil))
	return
}

// Reset clears the hash state
func (h *SHA256) Reset() {
	h.hasher.Reset()
}

// TaggedHash computes SHA256(SHA256(tag) || SHA256(tag) || data...)
func TaggedHash(tag string, data ...[]byte) [32]byte {
	h := NewTaggedSHA256(tag)
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum()
}

// HashToSeed derives the 32-byte Elligator seed for msg. Bit 255 is kept,
// so Montgomery hashing can use it as the sign.
func HashToSeed(tag string, msg []byte) [32]byte {
	return TaggedHash(tag, msg)
}

// HashToUniform derives 64 uniform bytes for msg. Each half is the tagged
// hash of a one byte counter followed by msg.
func HashToUniform(tag string, msg []byte) (out [64]byte) {
	prefix := tagPrefix(tag)
	h := NewSHA256()
	for i := 0; i < 2; i++ {
		h.Reset()
		h.Write(prefix[:])
		h.Write(prefix[:])
		h.Write([]byte{byte(i)})
		h.Write(msg)
		sum := h.Sum()
		copy(out[32*i:], sum[:])
	}
	return
}
