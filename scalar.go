package crank25519

import (
	"encoding/binary"

	"filippo.io/edwards25519"
	"github.com/pkg/errors"
)

// ScalarSize is the size of a serialized scalar
const ScalarSize = 32

// ErrScalarRange is returned for scalars that cannot be recoded to radix 16
var ErrScalarRange = errors.New("scalar top byte exceeds 127")

// Scalar is a little-endian 256-bit integer as stored in the compute buffer.
// Values produced by this package are reduced modulo the group order l.
type Scalar [ScalarSize]byte

// ScalarFromUint64 returns the scalar n
func ScalarFromUint64(n uint64) Scalar {
	var s Scalar
	binary.LittleEndian.PutUint64(s[:8], n)
	return s
}

// ScalarFromCanonicalBytes checks that b is reduced modulo l
func ScalarFromCanonicalBytes(b []byte) (Scalar, error) {
	var s Scalar
	if _, err := new(edwards25519.Scalar).SetCanonicalBytes(b); err != nil {
		return s, errors.Wrap(err, "scalar")
	}
	copy(s[:], b)
	return s, nil
}

// ScalarFromUniformBytes reduces 64 bytes modulo l
func ScalarFromUniformBytes(b []byte) (Scalar, error) {
	var s Scalar
	e, err := new(edwards25519.Scalar).SetUniformBytes(b)
	if err != nil {
		return s, errors.Wrap(err, "scalar")
	}
	copy(s[:], e.Bytes())
	return s, nil
}

// toEdwards converts a reduced scalar to an edwards25519.Scalar
func (r *Scalar) toEdwards() (*edwards25519.Scalar, error) {
	return new(edwards25519.Scalar).SetCanonicalBytes(r[:])
}

// Negate returns l - r. r must be reduced.
func (r Scalar) Negate() (Scalar, error) {
	e, err := r.toEdwards()
	if err != nil {
		return Scalar{}, errors.Wrap(err, "scalar")
	}
	var out Scalar
	copy(out[:], e.Negate(e).Bytes())
	return out, nil
}

// Radix16Safe reports whether r can be recoded into balanced radix-16 digits
func (r *Scalar) Radix16Safe() bool {
	return r[31] <= 127
}

// ToRadix16 recodes r into 64 signed digits a_i in [-8, 8) such that
// r = sum(a_i * 16^i). The top digit may be 8. Requires Radix16Safe.
func (r *Scalar) ToRadix16() [64]int8 {
	var out [64]int8
	for i := 0; i < 32; i++ {
		out[2*i] = int8(r[i] & 15)
		out[2*i+1] = int8((r[i] >> 4) & 15)
	}
	// recenter [0, 16) to [-8, 8)
	for i := 0; i < 63; i++ {
		carry := (out[i] + 8) >> 4
		out[i] -= carry << 4
		out[i+1] += carry
	}
	return out
}
