package crank25519

import (
	"encoding/hex"
	"testing"

	"filippo.io/edwards25519"
	"filippo.io/edwards25519/field"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// a Ristretto element and its negation
var (
	elementBytes = CompressedRistretto{
		202, 148, 27, 77, 122, 101, 116, 31,
		215, 41, 243, 54, 4, 27, 77, 165,
		16, 215, 42, 27, 197, 222, 243, 67,
		76, 183, 142, 167, 62, 36, 241, 1,
	}
	negElementBytes = CompressedRistretto{
		56, 121, 86, 54, 1, 207, 49, 169,
		17, 26, 157, 55, 224, 194, 217, 15,
		52, 240, 214, 108, 251, 96, 252, 129,
		242, 190, 61, 18, 88, 179, 89, 40,
	}
	elligatorSeed = []byte{
		0, 1, 2, 3, 4, 5, 6, 7,
		0, 1, 2, 3, 4, 5, 6, 7,
		0, 1, 2, 3, 4, 5, 6, 7,
		0, 1, 2, 3, 4, 5, 6, 7,
	}
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestRistrettoFixtures(t *testing.T) {
	p, err := elementBytes.Decompress()
	require.NoError(t, err)
	n, err := negElementBytes.Decompress()
	require.NoError(t, err)

	assert.Equal(t, elementBytes, CompressRistretto(p))
	assert.Equal(t, negElementBytes, CompressRistretto(n))
	assert.Equal(t, negElementBytes, CompressRistretto(new(EdwardsPoint).Negate(p)))

	sum := new(EdwardsPoint).Add(p, n)
	assert.True(t, RistrettoIsIdentity(sum))
	assert.False(t, RistrettoIsIdentity(p))
}

func TestRistrettoBasepoint(t *testing.T) {
	b, err := RistrettoBasepoint.Decompress()
	require.NoError(t, err)
	g := new(EdwardsPoint).FromPoint(edwards25519.NewGeneratorPoint())
	assert.True(t, RistrettoEqual(b, g))
	assert.Equal(t, RistrettoBasepoint, CompressRistretto(g))
}

func TestRistrettoRoundTrip(t *testing.T) {
	ours, _ := randomPoints(t, 20, 8)
	for _, p := range ours {
		c := CompressRistretto(p)
		q, err := c.Decompress()
		require.NoError(t, err)
		assert.True(t, RistrettoEqual(p, q))
		assert.Equal(t, c, CompressRistretto(q))
	}
}

func TestRistrettoSplitDecompress(t *testing.T) {
	v, err := elementBytes.DecompressInit()
	require.NoError(t, err)

	// InvSqrt with u = 1 through the split chain
	one := new(field.Element).One()
	x, _ := SqrtRatioInput(one, v)
	t17, t13, _ := Pow22001(x)
	ok, i := SqrtRatioI(one, v, SqrtRatioCandidate(one, v, Pow22501(t17, t13)))
	require.True(t, ok)

	p, err := elementBytes.DecompressFini(i)
	require.NoError(t, err)
	want, err := elementBytes.Decompress()
	require.NoError(t, err)
	assert.True(t, p.Equal(want))
}

func TestRistrettoWitness(t *testing.T) {
	w, err := elementBytes.Witness()
	require.NoError(t, err)

	_, err = elementBytes.DecompressFini(w)
	require.NoError(t, err)

	// -w is accepted, any other value is not
	_, err = elementBytes.DecompressFini(new(field.Element).Negate(w))
	require.NoError(t, err)

	bad := new(field.Element).Add(w, new(field.Element).One())
	_, err = elementBytes.DecompressFini(bad)
	assert.ErrorIs(t, err, ErrNonSquare)
}

func TestRistrettoRejectsInvalid(t *testing.T) {
	// s = 1 is negative
	odd := CompressedRistretto{1}
	_, err := odd.Decompress()
	assert.ErrorIs(t, err, ErrInvalidEncoding)

	// top bit set
	high := elementBytes
	high[31] |= 0x80
	_, err = high.Decompress()
	assert.ErrorIs(t, err, ErrInvalidEncoding)

	// p is not canonical
	var pEnc CompressedRistretto
	copy(pEnc[:], mustHex(t, "edffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff7f"))
	_, err = pEnc.Decompress()
	assert.ErrorIs(t, err, ErrInvalidEncoding)

	// zero is the identity
	var zero CompressedRistretto
	id, err := zero.Decompress()
	require.NoError(t, err)
	assert.True(t, RistrettoIsIdentity(id))
}

func TestElligatorFixedSeed(t *testing.T) {
	p, err := ElligatorRistrettoFlavor(elligatorSeed)
	require.NoError(t, err)
	want := mustHex(t, "a6317e175ee291a718cc6b1c00e2f0037719435acd9cb9e480148525cf6e6a16")
	c := CompressRistretto(p)
	assert.Equal(t, want, c[:])
}

func TestElligatorSplitMatchesOnePass(t *testing.T) {
	seeds := [][]byte{elligatorSeed}
	for i := byte(0); i < 6; i++ {
		s := HashToSeed(TagRistrettoSeed, []byte{i})
		seeds = append(seeds, s[:])
	}
	for _, seed := range seeds {
		x, err := ElligatorInput(seed)
		require.NoError(t, err)
		t17, t13, _ := Pow22001(x)
		got, err := ElligatorFinish(seed, Pow22501(t17, t13))
		require.NoError(t, err)

		want, err := ElligatorRistrettoFlavor(seed)
		require.NoError(t, err)
		assert.True(t, got.Equal(want))
	}

	_, err := ElligatorInput(elligatorSeed[:31])
	assert.ErrorIs(t, err, ErrFieldLength)
}

func TestRistrettoFromUniformBytes(t *testing.T) {
	in := mustHex(t, "5d1be09e3d0c82fc538112490e35701979d99e06ca3e2b5b54bffe8b4dc772c1"+
		"4d98b696a1bbfb5ca32c436cc61c16563790306c79eaca7705668b47dffe5bb6")
	p, err := RistrettoFromUniformBytes(in)
	require.NoError(t, err)
	c := CompressRistretto(p)
	assert.Equal(t, mustHex(t, "3066f82a1a747d45120d1740f14358531a8f04bbffe6a819f86dfe50f44a0a46"), c[:])
}
