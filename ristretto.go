package crank25519

import (
	"filippo.io/edwards25519/field"
)

// CompressedRistretto is the 32-byte canonical encoding of a Ristretto element.
type CompressedRistretto [32]byte

// RistrettoBasepoint is the encoding of the Ristretto generator
var RistrettoBasepoint = CompressedRistretto{
	0xe2, 0xf2, 0xae, 0x0a, 0x6a, 0xbc, 0x4e, 0x71,
	0xa8, 0x84, 0xa9, 0x61, 0xc5, 0x00, 0x51, 0x5f,
	0x58, 0xe3, 0x0b, 0x6a, 0xa5, 0x82, 0xdd, 0x8d,
	0xb6, 0xa6, 0x59, 0x45, 0xe0, 0x8d, 0x2d, 0x76,
}

// ristrettoRatio holds the intermediate values of Ristretto decoding
type ristrettoRatio struct {
	s, u1, u2, v, vu2sq field.Element
}

// ratio validates the encoding and computes the decoding intermediates
func (c *CompressedRistretto) ratio() (*ristrettoRatio, error) {
	if !isCanonical(c[:]) {
		return nil, ErrInvalidEncoding
	}
	r := &ristrettoRatio{}
	if _, err := r.s.SetBytes(c[:]); err != nil {
		return nil, err
	}
	if r.s.IsNegative() == 1 {
		return nil, ErrInvalidEncoding
	}

	one := new(field.Element).One()
	var ss, u2sq, du1sq field.Element
	ss.Square(&r.s)
	r.u1.Subtract(one, &ss)
	r.u2.Add(one, &ss)
	u2sq.Square(&r.u2)

	// v = -(d * u1^2) - u2^2
	du1sq.Square(&r.u1)
	du1sq.Multiply(&EdwardsD, &du1sq)
	r.v.Negate(&du1sq)
	r.v.Subtract(&r.v, &u2sq)

	r.vu2sq.Multiply(&r.v, &u2sq)
	return r, nil
}

// DecompressInit validates the encoding and returns v*u2^2, the value whose
// inverse square root finishes the decoding.
func (c *CompressedRistretto) DecompressInit() (*field.Element, error) {
	r, err := c.ratio()
	if err != nil {
		return nil, err
	}
	return new(field.Element).Set(&r.vu2sq), nil
}

// DecompressFini finishes decoding with invSqrt = 1/sqrt(v*u2^2). A value
// that is not such a root is rejected.
func (c *CompressedRistretto) DecompressFini(invSqrt *field.Element) (*EdwardsPoint, error) {
	r, err := c.ratio()
	if err != nil {
		return nil, err
	}
	ok, i := SqrtRatioI(new(field.Element).One(), &r.vu2sq, invSqrt)
	if !ok {
		return nil, ErrNonSquare
	}

	var dx, dy, x, y, t field.Element
	dx.Multiply(i, &r.u2)
	dy.Multiply(i, &dx)
	dy.Multiply(&dy, &r.v)

	// x = |2 s Dx|
	x.Add(&r.s, &r.s)
	x.Multiply(&x, &dx)
	x.Absolute(&x)
	y.Multiply(&r.u1, &dy)
	t.Multiply(&x, &y)

	if t.IsNegative() == 1 || isZero(&y) {
		return nil, ErrInvalidEncoding
	}
	p := &EdwardsPoint{}
	p.X.Set(&x)
	p.Y.Set(&y)
	p.Z.One()
	p.T.Set(&t)
	return p, nil
}

// Witness computes the inverse square root that DecompressFini and
// DecompressWithWitness consume.
func (c *CompressedRistretto) Witness() (*field.Element, error) {
	v, err := c.DecompressInit()
	if err != nil {
		return nil, err
	}
	ok, i := SqrtRatio(new(field.Element).One(), v)
	if !ok {
		return nil, ErrNonSquare
	}
	return i, nil
}

// Decompress decodes c in one pass
func (c *CompressedRistretto) Decompress() (*EdwardsPoint, error) {
	i, err := c.Witness()
	if err != nil {
		return nil, err
	}
	return c.DecompressFini(i)
}

// CompressRistretto returns the canonical Ristretto encoding of the coset of p
func CompressRistretto(p *EdwardsPoint) CompressedRistretto {
	var u1, u2, zmy, u2sq, tmp field.Element
	u1.Add(&p.Z, &p.Y)
	zmy.Subtract(&p.Z, &p.Y)
	u1.Multiply(&u1, &zmy)
	u2.Multiply(&p.X, &p.Y)

	u2sq.Square(&u2)
	tmp.Multiply(&u1, &u2sq)
	_, invsqrt := SqrtRatio(new(field.Element).One(), &tmp)

	var i1, i2, zInv, den field.Element
	i1.Multiply(invsqrt, &u1)
	i2.Multiply(invsqrt, &u2)
	zInv.Multiply(&i2, &p.T)
	zInv.Multiply(&zInv, &i1)
	den.Set(&i2)

	var ix, iy, enchanted, x, y field.Element
	ix.Multiply(&p.X, &SqrtM1)
	iy.Multiply(&p.Y, &SqrtM1)
	enchanted.Multiply(&i1, &InvSqrtAMinusD)

	tmp.Multiply(&p.T, &zInv)
	rotate := tmp.IsNegative()
	x.Select(&iy, &p.X, rotate)
	y.Select(&ix, &p.Y, rotate)
	den.Select(&enchanted, &den, rotate)

	tmp.Multiply(&x, &zInv)
	condNegate(&y, tmp.IsNegative())

	var s field.Element
	s.Subtract(&p.Z, &y)
	s.Multiply(&s, &den)
	s.Absolute(&s)

	var out CompressedRistretto
	copy(out[:], s.Bytes())
	return out
}

// RistrettoIsIdentity reports whether p lies in the identity coset
func RistrettoIsIdentity(p *EdwardsPoint) bool {
	return isZero(&p.X) || isZero(&p.Y)
}

// RistrettoEqual reports whether p and q represent the same Ristretto element
func RistrettoEqual(p, q *EdwardsPoint) bool {
	var a, b field.Element
	a.Multiply(&p.X, &q.Y)
	b.Multiply(&p.Y, &q.X)
	if a.Equal(&b) == 1 {
		return true
	}
	a.Multiply(&p.X, &q.X)
	b.Multiply(&p.Y, &q.Y)
	return a.Equal(&b) == 1
}

// elligatorState carries the values shared by both Elligator phases
type elligatorState struct {
	r0, r, ns, d field.Element
}

func newElligatorState(seed []byte) (*elligatorState, error) {
	st := &elligatorState{}
	if _, err := st.r0.SetBytes(seed); err != nil {
		return nil, err
	}
	one := new(field.Element).One()
	st.r.Square(&st.r0)
	st.r.Multiply(&SqrtM1, &st.r)

	st.ns.Add(&st.r, one)
	st.ns.Multiply(&st.ns, &OneMinusDSquared)

	// D = (c - d r) (r + d) with c = -1
	var dr, rd field.Element
	dr.Multiply(&EdwardsD, &st.r)
	st.d.Subtract(&MinusOne, &dr)
	rd.Add(&st.r, &EdwardsD)
	st.d.Multiply(&st.d, &rd)
	return st, nil
}

// ElligatorInput returns the pow22501 input for the Ristretto Elligator map
// of the 32-byte seed.
func ElligatorInput(seed []byte) (*field.Element, error) {
	if len(seed) != FieldElementSize {
		return nil, ErrFieldLength
	}
	st, err := newElligatorState(seed)
	if err != nil {
		return nil, err
	}
	x, _ := SqrtRatioInput(&st.ns, &st.d)
	return x, nil
}

// ElligatorFinish completes the Ristretto Elligator map given
// t19 = ElligatorInput(seed)^(2^250-1).
func ElligatorFinish(seed []byte, t19 *field.Element) (*EdwardsPoint, error) {
	if len(seed) != FieldElementSize {
		return nil, ErrFieldLength
	}
	st, err := newElligatorState(seed)
	if err != nil {
		return nil, err
	}
	isSq, s := SqrtRatioI(&st.ns, &st.d, SqrtRatioCandidate(&st.ns, &st.d, t19))
	return st.finish(isSq, s), nil
}

// finish maps the square root result to a point
func (st *elligatorState) finish(isSq bool, s *field.Element) *EdwardsPoint {
	one := new(field.Element).One()
	notSq := 1
	if isSq {
		notSq = 0
	}

	sPrime := new(field.Element).Multiply(s, &st.r0)
	condNegate(sPrime, 1-sPrime.IsNegative())

	c := new(field.Element).Set(&MinusOne)
	s.Select(sPrime, s, notSq)
	c.Select(&st.r, c, notSq)

	// N_t = c (r - 1) (d - 1)^2 - D
	var nt, rm1, sSq field.Element
	rm1.Subtract(&st.r, one)
	nt.Multiply(c, &rm1)
	nt.Multiply(&nt, &DMinusOneSquared)
	nt.Subtract(&nt, &st.d)
	sSq.Square(s)

	cp := &CompletedPoint{}
	cp.X.Add(s, s)
	cp.X.Multiply(&cp.X, &st.d)
	cp.Z.Multiply(&nt, &SqrtADMinusOne)
	cp.Y.Subtract(one, &sSq)
	cp.T.Add(one, &sSq)
	return cp.toExtended()
}

// ElligatorRistrettoFlavor maps a 32-byte seed to a point in one pass
func ElligatorRistrettoFlavor(seed []byte) (*EdwardsPoint, error) {
	if len(seed) != FieldElementSize {
		return nil, ErrFieldLength
	}
	st, err := newElligatorState(seed)
	if err != nil {
		return nil, err
	}
	isSq, s := SqrtRatio(&st.ns, &st.d)
	return st.finish(isSq, s), nil
}

// RistrettoFromUniformBytes maps 64 uniform bytes to a Ristretto element as
// the sum of two Elligator images.
func RistrettoFromUniformBytes(b []byte) (*EdwardsPoint, error) {
	if len(b) != 64 {
		return nil, ErrFieldLength
	}
	p1, err := ElligatorRistrettoFlavor(b[:32])
	if err != nil {
		return nil, err
	}
	p2, err := ElligatorRistrettoFlavor(b[32:])
	if err != nil {
		return nil, err
	}
	return new(EdwardsPoint).Add(p1, p2), nil
}
