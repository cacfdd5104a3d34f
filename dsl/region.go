package dsl

import (
	"github.com/pkg/errors"
)

// Region is an (offset, length) view into a buffer body. Offsets are absolute
// buffer offsets, so a valid region never starts inside the header.
type Region struct {
	Offset uint32 `yaml:"offset"`
	Length uint32 `yaml:"length"`
}

// End returns the first offset past the region
func (r Region) End() uint64 { return uint64(r.Offset) + uint64(r.Length) }

// Sub returns the region of length n starting off bytes into r
func (r Region) Sub(off, n uint32) Region {
	return Region{Offset: r.Offset + off, Length: n}
}

// Slot returns the i-th of the equal sized slots that r is divided into
func (r Region) Slot(i int, size uint32) Region {
	return r.Sub(uint32(i)*size, size)
}

// Check verifies that r lies in the body of a buffer of length n
func (r Region) Check(n int) error {
	if r.Offset < HeaderSize {
		return errors.WithMessagef(ErrInvalidArgument, "region at %d overlaps the header", r.Offset)
	}
	if r.End() > uint64(n) {
		return errors.WithMessagef(ErrInvalidArgument, "region [%d, %d) exceeds buffer of %d bytes", r.Offset, r.End(), n)
	}
	return nil
}

// View returns the bytes of buf covered by r after checking its range
func (r Region) View(buf []byte) ([]byte, error) {
	if err := r.Check(len(buf)); err != nil {
		return nil, err
	}
	return buf[r.Offset:r.End()], nil
}

// Offsets of the multi-phase primitives relative to their offset operand.
// These are part of the wire contract shared with the executors.
const (
	// field element and point widths
	FieldWidth = 32
	PointWidth = 128
	TableWidth = 1024

	// pow22501: P1(o) reads o and writes t17, t13, t3; P2(o) reads t17 at o
	// and t13 at o+32 and writes t19 at o+96.
	PowT17 = 32
	PowT13 = 64
	PowT3  = 96
	PowT19 = 96

	// InvSqrt(o): v at o, pow input at o+32, t19 at o+160, result at o+192
	InvSqrtInput  = 32
	InvSqrtT19    = 160
	InvSqrtResult = 192

	// Ristretto decompression over scratch S
	DecompressRatio    = 32
	DecompressPowInput = 64
	DecompressT19      = 192
	DecompressInvSqrt  = 224
	DecompressPoint    = 256
	DecompressScratch  = 384

	// Ristretto Elligator over scratch S
	ElligatorPowInput = 32
	ElligatorT19      = 160
	ElligatorPoint    = 192
	ElligatorScratch  = 320

	// Edwards decompression over scratch S
	EdwardsPowInput = 32
	EdwardsT19      = 160
	EdwardsPoint    = 192
	EdwardsScratch  = 320

	// Edwards compression of the point at o
	CompressZ       = 128
	CompressT3      = 224
	CompressT19     = 256
	CompressOutput  = 288
	CompressScratch = 320

	// Montgomery to Edwards over scratch S; the y encoding replaces u at S
	ToEdwardsInput   = 32
	ToEdwardsT3      = 128
	ToEdwardsT19     = 160
	ToEdwardsScratch = 192

	// Montgomery Elligator over scratch S; u replaces the seed at S
	MontgomeryPowInput = 32
	MontgomeryT3       = 128
	MontgomeryT19      = 160
	MontgomeryD        = 224
	MontgomeryScratch  = 256

	// decompression with a supplied witness at o
	WitnessInvSqrt = 32
	WitnessPoint   = 64
	WitnessScratch = 192
)
