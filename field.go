// Package crank25519 provides curve25519 arithmetic split into resumable
// steps: field exponentiation chains, Edwards, Ristretto and Montgomery point
// codecs, and the lookup tables used by multiscalar multiplication.
package crank25519

import (
	"filippo.io/edwards25519/field"
	"github.com/pkg/errors"
)

// FieldElementSize is the size of a serialized field element.
const FieldElementSize = 32

// ErrFieldLength is returned when a field element encoding is not 32 bytes.
var ErrFieldLength = errors.New("field element byte array must be 32 bytes")

// Field constants, converted from 51-bit limbs in init.
var (
	// EdwardsD is the twisted Edwards curve constant d = -121665/121666
	EdwardsD field.Element
	// EdwardsD2 is 2d
	EdwardsD2 field.Element
	// SqrtM1 is the square root of -1 with even encoding
	SqrtM1 field.Element
	// SqrtADMinusOne is sqrt(a*d - 1) with a = -1
	SqrtADMinusOne field.Element
	// InvSqrtAMinusD is 1/sqrt(a - d)
	InvSqrtAMinusD field.Element
	// OneMinusDSquared is 1 - d^2
	OneMinusDSquared field.Element
	// DMinusOneSquared is (d - 1)^2
	DMinusOneSquared field.Element
	// MinusOne is p - 1
	MinusOne field.Element
	// MontgomeryA is the Montgomery curve constant A = 486662
	MontgomeryA field.Element
	// MontgomeryANeg is -A
	MontgomeryANeg field.Element
)

func init() {
	setLimbs(&EdwardsD, [5]uint64{
		929955233495203, 466365720129213, 1662059464998953,
		2033849074728123, 1442794654840575,
	})
	setLimbs(&SqrtM1, [5]uint64{
		1718705420411056, 234908883556509, 2233514472574048,
		2117202627021982, 765476049583133,
	})
	setLimbs(&SqrtADMinusOne, [5]uint64{
		2241493124984347, 425987919032274, 2207028919301688,
		1220490630685848, 974799131293748,
	})
	setLimbs(&InvSqrtAMinusD, [5]uint64{
		278908739862762, 821645201101625, 8113234426968,
		1777959178193151, 2118520810568447,
	})

	one := new(field.Element).One()
	EdwardsD2.Add(&EdwardsD, &EdwardsD)
	MinusOne.Negate(one)

	var dSq field.Element
	dSq.Square(&EdwardsD)
	OneMinusDSquared.Subtract(one, &dSq)

	var dMinusOne field.Element
	dMinusOne.Subtract(&EdwardsD, one)
	DMinusOneSquared.Square(&dMinusOne)

	setLimbs(&MontgomeryA, [5]uint64{486662, 0, 0, 0, 0})
	MontgomeryANeg.Negate(&MontgomeryA)
}

// setLimbs packs five 51-bit limbs into a little-endian encoding and loads it
func setLimbs(r *field.Element, limbs [5]uint64) {
	var b [32]byte
	var acc uint64
	var accBits uint
	pos := 0
	for _, l := range limbs {
		for bit := uint(0); bit < 51; bit++ {
			acc |= ((l >> bit) & 1) << accBits
			accBits++
			if accBits == 8 {
				b[pos] = byte(acc)
				pos++
				acc, accBits = 0, 0
			}
		}
	}
	if pos < 32 {
		b[pos] = byte(acc)
	}
	if _, err := r.SetBytes(b[:]); err != nil {
		panic(err)
	}
}

// FieldFromBytes decodes a 32-byte little-endian field element, ignoring the
// top bit. Non-canonical values are reduced.
func FieldFromBytes(b []byte) (*field.Element, error) {
	if len(b) != FieldElementSize {
		return nil, ErrFieldLength
	}
	return new(field.Element).SetBytes(b)
}

// isCanonical reports whether b is the canonical encoding of a field element
// with the top bit clear.
func isCanonical(b []byte) bool {
	fe, err := FieldFromBytes(b)
	if err != nil || b[31]&0x80 != 0 {
		return false
	}
	return string(fe.Bytes()) == string(b)
}

// pow2k squares x k times
func pow2k(x *field.Element, k int) *field.Element {
	r := new(field.Element).Set(x)
	for i := 0; i < k; i++ {
		r.Square(r)
	}
	return r
}

// Pow22001 runs the first half of the x^(2^250-1) addition chain. It returns
// t17 = x^(2^200-1), t13 = x^(2^50-1) and t3 = x^11.
func Pow22001(x *field.Element) (t17, t13, t3 *field.Element) {
	var t0, t1, t2, t4, t5, t6, t7, t9, t11, t15 field.Element

	t0.Square(x)          // 2
	t1.Set(pow2k(&t0, 2)) // 8
	t2.Multiply(x, &t1)   // 9
	t3 = new(field.Element).Multiply(&t0, &t2)
	t4.Square(t3)         // 22
	t5.Multiply(&t2, &t4) // 2^5 - 1

	t6.Set(pow2k(&t5, 5))
	t7.Multiply(&t6, &t5) // 2^10 - 1
	t9.Multiply(pow2k(&t7, 10), &t7)
	t11.Multiply(pow2k(&t9, 20), &t9)

	t13 = new(field.Element)
	t13.Multiply(pow2k(&t11, 10), &t7) // 2^50 - 1
	t15.Multiply(pow2k(t13, 50), t13)

	t17 = new(field.Element)
	t17.Multiply(pow2k(&t15, 100), &t15) // 2^200 - 1
	return
}

// Pow22501 completes the chain started by Pow22001: t19 = x^(2^250-1).
func Pow22501(t17, t13 *field.Element) *field.Element {
	return new(field.Element).Multiply(pow2k(t17, 50), t13)
}

// PowP58 returns x^((p-5)/8) given t19 = x^(2^250-1).
func PowP58(x, t19 *field.Element) *field.Element {
	return new(field.Element).Multiply(x, pow2k(t19, 2))
}

// InvertFromChain returns x^(p-2) given t19 = x^(2^250-1) and t3 = x^11.
func InvertFromChain(t19, t3 *field.Element) *field.Element {
	return new(field.Element).Multiply(pow2k(t19, 5), t3)
}

// SqrtRatioInput returns u*v^7, the value fed to the pow22501 chain when
// computing sqrt(u/v), along with v^3.
func SqrtRatioInput(u, v *field.Element) (x, v3 *field.Element) {
	v3 = new(field.Element).Square(v)
	v3.Multiply(v3, v)
	v7 := new(field.Element).Square(v3)
	v7.Multiply(v7, v)
	return new(field.Element).Multiply(u, v7), v3
}

// SqrtRatioCandidate returns the root candidate u*v^3*(u*v^7)^((p-5)/8)
// given t19 = (u*v^7)^(2^250-1).
func SqrtRatioCandidate(u, v, t19 *field.Element) *field.Element {
	x, v3 := SqrtRatioInput(u, v)
	r := new(field.Element).Multiply(u, v3)
	return r.Multiply(r, PowP58(x, t19))
}

// SqrtRatioI checks a candidate root r of u/v. It returns the nonnegative
// root and whether u/v was square. When u/v is not square the returned
// value is the root of i*u/v.
func SqrtRatioI(u, v, r *field.Element) (wasSquare bool, out *field.Element) {
	check := new(field.Element).Square(r)
	check.Multiply(check, v)

	negU := new(field.Element).Negate(u)
	negUI := new(field.Element).Multiply(negU, &SqrtM1)

	correct := check.Equal(u)
	flipped := check.Equal(negU)
	flippedI := check.Equal(negUI)

	ri := new(field.Element).Multiply(r, &SqrtM1)
	out = new(field.Element).Select(ri, r, flipped|flippedI)
	out.Absolute(out)
	return correct|flipped == 1, out
}

// SqrtRatio computes sqrt(u/v) in one pass. It is the straight-line form of
// the split InvSqrt steps.
func SqrtRatio(u, v *field.Element) (wasSquare bool, out *field.Element) {
	x, _ := SqrtRatioInput(u, v)
	t17, t13, _ := Pow22001(x)
	return SqrtRatioI(u, v, SqrtRatioCandidate(u, v, Pow22501(t17, t13)))
}

// isZero reports whether x is zero
func isZero(x *field.Element) bool {
	return x.Equal(new(field.Element).Zero()) == 1
}

// condNegate negates x in place when cond is 1
func condNegate(x *field.Element, cond int) {
	neg := new(field.Element).Negate(x)
	x.Select(neg, x, cond)
}
