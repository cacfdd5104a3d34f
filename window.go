package crank25519

import (
	"github.com/pkg/errors"
)

// TableSize is the number of precomputed multiples in a lookup table
const TableSize = 8

// NielsTableSize is the serialized size of a NielsTable
const NielsTableSize = TableSize * NielsPointSize

// tableEntry is the constraint satisfied by lookup table entries
type tableEntry[T any] interface {
	*T
	setIdentity()
	cmov(a *T, cond int)
	condNegate(cond int)
	encode(b []byte)
	decode(b []byte) error
	encodedSize() int
}

// LookupTable holds the multiples 1P..nP of a point in a precomputed form
// and selects a signed multiple in constant time.
type LookupTable[T any, P tableEntry[T]] struct {
	entries []T
}

// NielsTable is the table used for windowed scalar multiplication
type NielsTable = LookupTable[ProjectiveNielsPoint, *ProjectiveNielsPoint]

// NewNielsTable builds the 8-entry table [P, 2P, ..., 8P] for p
func NewNielsTable(p *EdwardsPoint) *NielsTable {
	return nielsTable(p, TableSize)
}

// NewNielsTableSize builds a table of n multiples of p. n must be positive.
func NewNielsTableSize(p *EdwardsPoint, n int) (*NielsTable, error) {
	if n < 1 {
		return nil, errors.Errorf("table of %d entries", n)
	}
	return nielsTable(p, n), nil
}

func nielsTable(p *EdwardsPoint, n int) *NielsTable {
	t := &NielsTable{entries: make([]ProjectiveNielsPoint, n)}
	t.entries[0] = *p.ToProjectiveNiels()
	var acc EdwardsPoint
	for j := 0; j < n-1; j++ {
		acc.AddNiels(p, &t.entries[j])
		t.entries[j+1] = *acc.ToProjectiveNiels()
	}
	return t
}

// Len returns the number of entries
func (t *LookupTable[T, P]) Len() int { return len(t.entries) }

// EncodedSize returns the serialized size of t
func (t *LookupTable[T, P]) EncodedSize() int {
	var zero T
	return len(t.entries) * P(&zero).encodedSize()
}

// ctEq returns 1 if a == b and 0 otherwise without branching
func ctEq(a, b uint16) int {
	x := uint32(a ^ b)
	return int(((x - 1) >> 31) & 1)
}

// Select returns x*P for x in [-n, n], scanning every entry.
func (t *LookupTable[T, P]) Select(x int8) T {
	// xabs = |x| without branching
	xmask := x >> 7
	xabs := uint16((x + xmask) ^ xmask)

	var out T
	P(&out).setIdentity()
	for j := 1; j <= len(t.entries); j++ {
		P(&out).cmov(&t.entries[j-1], ctEq(xabs, uint16(j)))
	}
	P(&out).condNegate(int(xmask & 1))
	return out
}

// Bytes serializes the entries in order
func (t *LookupTable[T, P]) Bytes() []byte {
	var zero T
	size := P(&zero).encodedSize()
	out := make([]byte, len(t.entries)*size)
	for i := range t.entries {
		P(&t.entries[i]).encode(out[i*size : (i+1)*size])
	}
	return out
}

// DecodeLookupTable reads n entries from b
func DecodeLookupTable[T any, P tableEntry[T]](b []byte, n int) (*LookupTable[T, P], error) {
	var zero T
	size := P(&zero).encodedSize()
	if len(b) != n*size {
		return nil, errors.Errorf("lookup table must be %d bytes, got %d", n*size, len(b))
	}
	t := &LookupTable[T, P]{entries: make([]T, n)}
	for i := range t.entries {
		if err := P(&t.entries[i]).decode(b[i*size : (i+1)*size]); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// DecodeNielsTable reads an 8-entry NielsTable
func DecodeNielsTable(b []byte) (*NielsTable, error) {
	return DecodeLookupTable[ProjectiveNielsPoint, *ProjectiveNielsPoint](b, TableSize)
}

// MultiscalarStep runs digit positions [start, end) of a windowed
// multiscalar multiplication, most significant first. For each position j
// the accumulator q is multiplied by 16 and then each tables[i] contributes
// digits[i][j] times its point.
func MultiscalarStep(q *EdwardsPoint, digits [][64]int8, tables []*NielsTable, start, end int) *EdwardsPoint {
	r := new(EdwardsPoint).Set(q)
	for j := end - 1; j >= start; j-- {
		r.MulByPow2(r, 4)
		for i := range tables {
			sel := tables[i].Select(digits[i][j])
			r.AddNiels(r, &sel)
		}
	}
	return r
}

// MultiscalarMul computes sum(scalars[i] * points[i]) with 4-bit windows
func MultiscalarMul(scalars []Scalar, points []*EdwardsPoint) (*EdwardsPoint, error) {
	if len(scalars) != len(points) {
		return nil, errors.Errorf("%d scalars for %d points", len(scalars), len(points))
	}
	digits := make([][64]int8, len(scalars))
	tables := make([]*NielsTable, len(points))
	for i := range scalars {
		if !scalars[i].Radix16Safe() {
			return nil, ErrScalarRange
		}
		digits[i] = scalars[i].ToRadix16()
		tables[i] = NewNielsTable(points[i])
	}
	return MultiscalarStep(NewIdentity(), digits, tables, 0, 64), nil
}
