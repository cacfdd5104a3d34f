package crank25519

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSHA256Vectors(t *testing.T) {
	testCases := []struct {
		name     string
		input    []byte
		expected string
	}{
		{"empty", []byte{}, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"abc", []byte("abc"), "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{
			"long_message",
			[]byte("abcdbcdecdefdefgefghfghighijhijkijkljklmklmnlmnomnopnopq"),
			"248d6a61d20638b8e5c026930c3e6039a33ce45964ff2167f6ecedd419db06c1",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewSHA256()
			h.Write(tc.input)
			out := h.Sum()
			assert.Equal(t, mustHex(t, tc.expected), out[:])

			h.Reset()
			h.Write(tc.input)
			again := h.Sum()
			assert.Equal(t, out, again)
		})
	}
}

func TestTaggedHash(t *testing.T) {
	tag := sha256.Sum256([]byte(TagNoop))
	manual := sha256.New()
	manual.Write(tag[:])
	manual.Write(tag[:])
	manual.Write([]byte("hello"))
	manual.Write([]byte("world"))

	got := TaggedHash(TagNoop, []byte("hello"), []byte("world"))
	assert.Equal(t, manual.Sum(nil), got[:])

	// cached prefix gives the same answer
	assert.Equal(t, got, TaggedHash(TagNoop, []byte("helloworld")))
	assert.NotEqual(t, got, TaggedHash(TagTransaction, []byte("helloworld")))
}

func TestHashToUniform(t *testing.T) {
	u := HashToUniform(TagRistrettoSeed, []byte("msg"))
	assert.NotEqual(t, u[:32], u[32:])
	assert.Equal(t, u, HashToUniform(TagRistrettoSeed, []byte("msg")))
	lo := TaggedHash(TagRistrettoSeed, []byte{0}, []byte("msg"))
	hi := TaggedHash(TagRistrettoSeed, []byte{1}, []byte("msg"))
	assert.Equal(t, lo[:], u[:32])
	assert.Equal(t, hi[:], u[32:])
	assert.NotEqual(t, u, HashToUniform(TagMontgomerySeed, []byte("msg")))

	seed := HashToSeed(TagRistrettoSeed, []byte("msg"))
	assert.Equal(t, TaggedHash(TagRistrettoSeed, []byte("msg")), seed)
}
