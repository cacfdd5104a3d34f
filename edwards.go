package crank25519

import (
	"filippo.io/edwards25519"
	"filippo.io/edwards25519/field"
	"github.com/pkg/errors"
)

// PointSize is the size of a serialized EdwardsPoint (X, Y, Z, T)
const PointSize = 4 * FieldElementSize

// NielsPointSize is the size of a serialized ProjectiveNielsPoint
const NielsPointSize = 4 * FieldElementSize

var (
	// ErrPointLength is returned when a point encoding has the wrong size
	ErrPointLength = errors.New("point byte array must be 128 bytes")
	// ErrInvalidEncoding is returned for encodings that do not decode to a point
	ErrInvalidEncoding = errors.New("invalid point encoding")
	// ErrNonSquare is returned when a square root does not exist
	ErrNonSquare = errors.New("ratio is not a square")
	// ErrBadInverse is returned when a supplied inverse does not match
	ErrBadInverse = errors.New("supplied inverse does not match")
)

// EdwardsPoint is a point on the twisted Edwards curve -x^2 + y^2 = 1 + d x^2 y^2
// in extended coordinates: x = X/Z, y = Y/Z, x*y = T/Z.
type EdwardsPoint struct {
	X, Y, Z, T field.Element
}

// ProjectivePoint is a point in projective coordinates (X:Y:Z), used as the
// doubling input.
type ProjectivePoint struct {
	X, Y, Z field.Element
}

// CompletedPoint is a point in P1xP1 form: x = X/Z, y = Y/T.
type CompletedPoint struct {
	X, Y, Z, T field.Element
}

// ProjectiveNielsPoint is the precomputed addition form (Y+X, Y-X, Z, 2dT).
type ProjectiveNielsPoint struct {
	YplusX, YminusX, Z, T2d field.Element
}

// NewIdentity returns the neutral element
func NewIdentity() *EdwardsPoint {
	r := &EdwardsPoint{}
	r.setIdentity()
	return r
}

// setIdentity sets r to (0, 1, 1, 0)
func (r *EdwardsPoint) setIdentity() {
	r.X.Zero()
	r.Y.One()
	r.Z.One()
	r.T.Zero()
}

// Set copies a into r
func (r *EdwardsPoint) Set(a *EdwardsPoint) *EdwardsPoint {
	*r = *a
	return r
}

// PointFromBytes decodes the 128-byte X|Y|Z|T encoding. Coordinates are
// taken as-is; no curve membership check is performed.
func PointFromBytes(b []byte) (*EdwardsPoint, error) {
	if len(b) != PointSize {
		return nil, ErrPointLength
	}
	r := &EdwardsPoint{}
	for i, fe := range []*field.Element{&r.X, &r.Y, &r.Z, &r.T} {
		if _, err := fe.SetBytes(b[i*32 : i*32+32]); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Bytes returns the 128-byte X|Y|Z|T encoding with canonical coordinates
func (r *EdwardsPoint) Bytes() []byte {
	out := make([]byte, 0, PointSize)
	out = append(out, r.X.Bytes()...)
	out = append(out, r.Y.Bytes()...)
	out = append(out, r.Z.Bytes()...)
	out = append(out, r.T.Bytes()...)
	return out
}

// Equal reports whether r and a represent the same point
func (r *EdwardsPoint) Equal(a *EdwardsPoint) bool {
	var l, rr field.Element
	l.Multiply(&r.X, &a.Z)
	rr.Multiply(&a.X, &r.Z)
	if l.Equal(&rr) != 1 {
		return false
	}
	l.Multiply(&r.Y, &a.Z)
	rr.Multiply(&a.Y, &r.Z)
	return l.Equal(&rr) == 1
}

// IsIdentity reports whether r is the Edwards identity
func (r *EdwardsPoint) IsIdentity() bool {
	return r.Equal(NewIdentity())
}

// Negate sets r = -a
func (r *EdwardsPoint) Negate(a *EdwardsPoint) *EdwardsPoint {
	r.X.Negate(&a.X)
	r.Y.Set(&a.Y)
	r.Z.Set(&a.Z)
	r.T.Negate(&a.T)
	return r
}

// toProjective drops T
func (r *EdwardsPoint) toProjective() *ProjectivePoint {
	p := &ProjectivePoint{}
	p.X.Set(&r.X)
	p.Y.Set(&r.Y)
	p.Z.Set(&r.Z)
	return p
}

// ToProjectiveNiels converts r into the precomputed addition form
func (r *EdwardsPoint) ToProjectiveNiels() *ProjectiveNielsPoint {
	n := &ProjectiveNielsPoint{}
	n.YplusX.Add(&r.Y, &r.X)
	n.YminusX.Subtract(&r.Y, &r.X)
	n.Z.Set(&r.Z)
	n.T2d.Multiply(&r.T, &EdwardsD2)
	return n
}

// addNiels computes r + q in completed form
func (r *EdwardsPoint) addNiels(q *ProjectiveNielsPoint) *CompletedPoint {
	var yPlusX, yMinusX, pp, mm, tt2d, zz, zz2 field.Element
	yPlusX.Add(&r.Y, &r.X)
	yMinusX.Subtract(&r.Y, &r.X)
	pp.Multiply(&yPlusX, &q.YplusX)
	mm.Multiply(&yMinusX, &q.YminusX)
	tt2d.Multiply(&r.T, &q.T2d)
	zz.Multiply(&r.Z, &q.Z)
	zz2.Add(&zz, &zz)

	c := &CompletedPoint{}
	c.X.Subtract(&pp, &mm)
	c.Y.Add(&pp, &mm)
	c.Z.Add(&zz2, &tt2d)
	c.T.Subtract(&zz2, &tt2d)
	return c
}

// Add sets r = a + b
func (r *EdwardsPoint) Add(a, b *EdwardsPoint) *EdwardsPoint {
	return r.Set(a.addNiels(b.ToProjectiveNiels()).toExtended())
}

// AddNiels sets r = a + q
func (r *EdwardsPoint) AddNiels(a *EdwardsPoint, q *ProjectiveNielsPoint) *EdwardsPoint {
	return r.Set(a.addNiels(q).toExtended())
}

// Double sets r = 2a
func (r *EdwardsPoint) Double(a *EdwardsPoint) *EdwardsPoint {
	return r.Set(a.toProjective().double().toExtended())
}

// MulByPow2 sets r = 2^k * a
func (r *EdwardsPoint) MulByPow2(a *EdwardsPoint, k int) *EdwardsPoint {
	if k <= 0 {
		return r.Set(a)
	}
	s := a.toProjective()
	for i := 0; i < k-1; i++ {
		s = s.double().toProjective()
	}
	return r.Set(s.double().toExtended())
}

// MulByCofactor sets r = 8a
func (r *EdwardsPoint) MulByCofactor(a *EdwardsPoint) *EdwardsPoint {
	return r.MulByPow2(a, 3)
}

// double computes 2r in completed form
func (r *ProjectivePoint) double() *CompletedPoint {
	var xx, yy, zz2, xPlusY, xPlusYSq, yyPlusXX, yyMinusXX field.Element
	xx.Square(&r.X)
	yy.Square(&r.Y)
	zz2.Square(&r.Z)
	zz2.Add(&zz2, &zz2)
	xPlusY.Add(&r.X, &r.Y)
	xPlusYSq.Square(&xPlusY)
	yyPlusXX.Add(&yy, &xx)
	yyMinusXX.Subtract(&yy, &xx)

	c := &CompletedPoint{}
	c.X.Subtract(&xPlusYSq, &yyPlusXX)
	c.Y.Set(&yyPlusXX)
	c.Z.Set(&yyMinusXX)
	c.T.Subtract(&zz2, &yyMinusXX)
	return c
}

// toExtended converts a completed point to extended coordinates
func (r *CompletedPoint) toExtended() *EdwardsPoint {
	p := &EdwardsPoint{}
	p.X.Multiply(&r.X, &r.T)
	p.Y.Multiply(&r.Y, &r.Z)
	p.Z.Multiply(&r.Z, &r.T)
	p.T.Multiply(&r.X, &r.Y)
	return p
}

// toProjective converts a completed point to projective coordinates
func (r *CompletedPoint) toProjective() *ProjectivePoint {
	p := &ProjectivePoint{}
	p.X.Multiply(&r.X, &r.T)
	p.Y.Multiply(&r.Y, &r.Z)
	p.Z.Multiply(&r.Z, &r.T)
	return p
}

// setIdentity sets r to the Niels form of the identity
func (r *ProjectiveNielsPoint) setIdentity() {
	r.YplusX.One()
	r.YminusX.One()
	r.Z.One()
	r.T2d.Zero()
}

// cmov sets r = a when cond is 1
func (r *ProjectiveNielsPoint) cmov(a *ProjectiveNielsPoint, cond int) {
	r.YplusX.Select(&a.YplusX, &r.YplusX, cond)
	r.YminusX.Select(&a.YminusX, &r.YminusX, cond)
	r.Z.Select(&a.Z, &r.Z, cond)
	r.T2d.Select(&a.T2d, &r.T2d, cond)
}

// condNegate negates r when cond is 1. Negation swaps Y+X and Y-X and
// negates 2dT.
func (r *ProjectiveNielsPoint) condNegate(cond int) {
	r.YplusX.Swap(&r.YminusX, cond)
	condNegate(&r.T2d, cond)
}

// encode writes Y+X | Y-X | Z | 2dT into b
func (r *ProjectiveNielsPoint) encode(b []byte) {
	copy(b[0:32], r.YplusX.Bytes())
	copy(b[32:64], r.YminusX.Bytes())
	copy(b[64:96], r.Z.Bytes())
	copy(b[96:128], r.T2d.Bytes())
}

// decode reads the layout written by encode
func (r *ProjectiveNielsPoint) decode(b []byte) error {
	if len(b) < NielsPointSize {
		return ErrPointLength
	}
	for i, fe := range []*field.Element{&r.YplusX, &r.YminusX, &r.Z, &r.T2d} {
		if _, err := fe.SetBytes(b[i*32 : i*32+32]); err != nil {
			return err
		}
	}
	return nil
}

// encodedSize returns the serialized size of a ProjectiveNielsPoint
func (r *ProjectiveNielsPoint) encodedSize() int { return NielsPointSize }

// Compress returns the RFC 8032 encoding of r: y with the sign of x in bit 255.
func (r *EdwardsPoint) Compress() [32]byte {
	zInv := new(field.Element).Invert(&r.Z)
	return compressWithInverse(r, zInv)
}

// CompressWithInverse is Compress with 1/Z supplied by the caller. An inverse
// that does not match Z is rejected.
func (r *EdwardsPoint) CompressWithInverse(zInv *field.Element) ([32]byte, error) {
	check := new(field.Element).Multiply(&r.Z, zInv)
	if check.Equal(new(field.Element).One()) != 1 {
		return [32]byte{}, ErrBadInverse
	}
	return compressWithInverse(r, zInv), nil
}

// compressWithInverse encodes r given 1/Z
func compressWithInverse(r *EdwardsPoint, zInv *field.Element) [32]byte {
	var x, y field.Element
	x.Multiply(&r.X, zInv)
	y.Multiply(&r.Y, zInv)
	var out [32]byte
	copy(out[:], y.Bytes())
	out[31] |= byte(x.IsNegative() << 7)
	return out
}

// ToPoint converts r to an edwards25519.Point
func (r *EdwardsPoint) ToPoint() (*edwards25519.Point, error) {
	return new(edwards25519.Point).SetExtendedCoordinates(&r.X, &r.Y, &r.Z, &r.T)
}

// FromPoint sets r from an edwards25519.Point
func (r *EdwardsPoint) FromPoint(p *edwards25519.Point) *EdwardsPoint {
	x, y, z, t := p.ExtendedCoordinates()
	r.X.Set(x)
	r.Y.Set(y)
	r.Z.Set(z)
	r.T.Set(t)
	return r
}
