package crank25519

import (
	"filippo.io/edwards25519/field"
)

// MontgomeryPoint is the u-coordinate encoding of a point on Curve25519.
// Bit 255 is not part of u; the to-Edwards conversion reads it as the sign
// of the resulting x coordinate.
type MontgomeryPoint [32]byte

// EdwardsY is an RFC 8032 point encoding: y with the sign of x in bit 255
type EdwardsY [32]byte

// sign returns bit 255
func (m *MontgomeryPoint) sign() byte { return m[31] >> 7 }

// ToEdwardsInput returns u+1, the value inverted by the to-Edwards conversion.
// u = -1 has no Edwards image and is rejected.
func (m *MontgomeryPoint) ToEdwardsInput() (*field.Element, error) {
	u, err := FieldFromBytes(m[:])
	if err != nil {
		return nil, err
	}
	if u.Equal(&MinusOne) == 1 {
		return nil, ErrInvalidEncoding
	}
	return u.Add(u, new(field.Element).One()), nil
}

// ToEdwardsFinish computes y = (u-1)/(u+1) given inv = 1/(u+1) and copies the
// sign bit.
func (m *MontgomeryPoint) ToEdwardsFinish(inv *field.Element) (EdwardsY, error) {
	u, err := FieldFromBytes(m[:])
	if err != nil {
		return EdwardsY{}, err
	}
	if u.Equal(&MinusOne) == 1 {
		return EdwardsY{}, ErrInvalidEncoding
	}
	y := new(field.Element).Subtract(u, new(field.Element).One())
	y.Multiply(y, inv)

	var out EdwardsY
	copy(out[:], y.Bytes())
	out[31] |= m.sign() << 7
	return out, nil
}

// ToEdwards converts m in one pass
func (m *MontgomeryPoint) ToEdwards() (EdwardsY, error) {
	up1, err := m.ToEdwardsInput()
	if err != nil {
		return EdwardsY{}, err
	}
	return m.ToEdwardsFinish(new(field.Element).Invert(up1))
}

// edwardsRatio returns u = y^2 - 1 and v = d y^2 + 1 for the y encoded in e.
// Non-canonical y values are rejected.
func (e *EdwardsY) edwardsRatio() (y, u, v *field.Element, err error) {
	var masked [32]byte
	copy(masked[:], e[:])
	masked[31] &= 0x7f
	if !isCanonical(masked[:]) {
		return nil, nil, nil, ErrInvalidEncoding
	}
	y, err = FieldFromBytes(masked[:])
	if err != nil {
		return nil, nil, nil, err
	}
	one := new(field.Element).One()
	yy := new(field.Element).Square(y)
	u = new(field.Element).Subtract(yy, one)
	v = new(field.Element).Multiply(yy, &EdwardsD)
	v.Add(v, one)
	return y, u, v, nil
}

// DecompressInput returns the pow22501 input for decoding e
func (e *EdwardsY) DecompressInput() (*field.Element, error) {
	_, u, v, err := e.edwardsRatio()
	if err != nil {
		return nil, err
	}
	x, _ := SqrtRatioInput(u, v)
	return x, nil
}

// DecompressFinish decodes e given t19 = DecompressInput()^(2^250-1).
func (e *EdwardsY) DecompressFinish(t19 *field.Element) (*EdwardsPoint, error) {
	y, u, v, err := e.edwardsRatio()
	if err != nil {
		return nil, err
	}
	ok, x := SqrtRatioI(u, v, SqrtRatioCandidate(u, v, t19))
	if !ok {
		return nil, ErrNonSquare
	}
	sign := int(e[31] >> 7)
	if isZero(x) && sign == 1 {
		return nil, ErrInvalidEncoding
	}
	condNegate(x, sign)

	p := &EdwardsPoint{}
	p.X.Set(x)
	p.Y.Set(y)
	p.Z.One()
	p.T.Multiply(x, y)
	return p, nil
}

// Decompress decodes e in one pass
func (e *EdwardsY) Decompress() (*EdwardsPoint, error) {
	x, err := e.DecompressInput()
	if err != nil {
		return nil, err
	}
	t17, t13, _ := Pow22001(x)
	return e.DecompressFinish(Pow22501(t17, t13))
}

// MontgomeryElligatorD1 returns 1 + 2 r^2, the denominator inverted by the
// first phase of the Montgomery Elligator map.
func MontgomeryElligatorD1(seed []byte) (*field.Element, error) {
	r0, err := FieldFromBytes(seed)
	if err != nil {
		return nil, err
	}
	d1 := new(field.Element).Square(r0)
	d1.Add(d1, d1)
	return d1.Add(d1, new(field.Element).One()), nil
}

// MontgomeryElligatorEps returns d = -A/d1 and eps = d^3 + A d^2 + d given
// inv = 1/d1.
func MontgomeryElligatorEps(inv *field.Element) (d, eps *field.Element) {
	d = new(field.Element).Multiply(&MontgomeryANeg, inv)
	return d, montgomeryEps(d)
}

// MontgomeryElligatorFinish selects u = d, or -d-A when eps is not square,
// given t19 = eps^(2^250-1). Bit 255 of the seed is carried into the output.
func MontgomeryElligatorFinish(seed []byte, d, t19 *field.Element) (MontgomeryPoint, error) {
	if len(seed) != FieldElementSize {
		return MontgomeryPoint{}, ErrFieldLength
	}
	one := new(field.Element).One()
	eps := montgomeryEps(d)
	isSq, _ := SqrtRatioI(eps, one, SqrtRatioCandidate(eps, one, t19))
	return montgomeryU(seed, d, isSq), nil
}

// montgomeryEps recomputes eps from d
func montgomeryEps(d *field.Element) *field.Element {
	dSq := new(field.Element).Square(d)
	au := new(field.Element).Multiply(&MontgomeryA, d)
	inner := new(field.Element).Add(dSq, au)
	inner.Add(inner, new(field.Element).One())
	return new(field.Element).Multiply(d, inner)
}

func montgomeryU(seed []byte, d *field.Element, isSq bool) MontgomeryPoint {
	notSq := 1
	if isSq {
		notSq = 0
	}
	aTemp := new(field.Element).Select(&MontgomeryA, new(field.Element).Zero(), notSq)
	u := new(field.Element).Add(d, aTemp)
	condNegate(u, notSq)

	var out MontgomeryPoint
	copy(out[:], u.Bytes())
	out[31] |= seed[31] & 0x80
	return out
}

// ElligatorEncode maps a 32-byte seed to a Montgomery u-coordinate in one
// pass. Bit 255 of the seed is carried into the output.
func ElligatorEncode(seed []byte) (MontgomeryPoint, error) {
	d1, err := MontgomeryElligatorD1(seed)
	if err != nil {
		return MontgomeryPoint{}, err
	}
	d, eps := MontgomeryElligatorEps(new(field.Element).Invert(d1))
	isSq, _ := SqrtRatio(eps, new(field.Element).One())
	return montgomeryU(seed, d, isSq), nil
}

// HashFromBytes maps a 32-byte seed to a point in the prime-order subgroup:
// Elligator onto Curve25519, conversion to Edwards form using the seed's top
// bit as the sign, then multiplication by the cofactor.
func HashFromBytes(seed []byte) (*EdwardsPoint, error) {
	u, err := ElligatorEncode(seed)
	if err != nil {
		return nil, err
	}
	y, err := u.ToEdwards()
	if err != nil {
		return nil, err
	}
	p, err := y.Decompress()
	if err != nil {
		return nil, err
	}
	return p.MulByCofactor(p), nil
}
