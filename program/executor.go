package program

import (
	"math"

	"filippo.io/edwards25519/field"
	"github.com/pkg/errors"

	crank25519 "crank25519.mleku.dev"
	"crank25519.mleku.dev/dsl"
)

// arena is the compute buffer seen by the step executors. Reads and writes
// go through range-checked regions; a step computes all of its outputs first
// and hands them to commit, which checks every range before copying any.
type arena []byte

// output is a pending write of b at rel bytes past the step's offset
type output struct {
	rel uint32
	b   []byte
}

// region returns the n bytes at o+rel as a checked region
func (a arena) region(o, rel, n uint32) (dsl.Region, error) {
	if uint64(o)+uint64(rel) > math.MaxUint32 {
		return dsl.Region{}, errors.WithMessagef(ErrInvalidArgument, "offset %d+%d overflows", o, rel)
	}
	r := dsl.Region{Offset: o + rel, Length: n}
	return r, r.Check(len(a))
}

func (a arena) view(o, rel, n uint32) ([]byte, error) {
	r, err := a.region(o, rel, n)
	if err != nil {
		return nil, err
	}
	return a[r.Offset:r.End()], nil
}

func (a arena) bytes32(o, rel uint32) (out [32]byte, err error) {
	b, err := a.view(o, rel, dsl.FieldWidth)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

func (a arena) field(o, rel uint32) (*field.Element, error) {
	b, err := a.view(o, rel, dsl.FieldWidth)
	if err != nil {
		return nil, err
	}
	fe, err := crank25519.FieldFromBytes(b)
	if err != nil {
		return nil, invalid(err)
	}
	return fe, nil
}

func (a arena) point(o, rel uint32) (*crank25519.EdwardsPoint, error) {
	b, err := a.view(o, rel, dsl.PointWidth)
	if err != nil {
		return nil, err
	}
	p, err := crank25519.PointFromBytes(b)
	if err != nil {
		return nil, invalid(err)
	}
	return p, nil
}

func at(rel uint32, b []byte) output {
	return output{rel: rel, b: b}
}

// commit checks every output range relative to o, then writes them in order
func (a arena) commit(o uint32, outs ...output) error {
	for _, w := range outs {
		if _, err := a.region(o, w.rel, uint32(len(w.b))); err != nil {
			return err
		}
	}
	for _, w := range outs {
		copy(a[o+w.rel:], w.b)
	}
	return nil
}

// invalid folds a curve error into ErrInvalidArgument
func invalid(err error) error {
	return errors.WithMessage(ErrInvalidArgument, err.Error())
}

var one = new(field.Element).One()

// execute runs one decoded instruction against the compute buffer. input is
// only read, and only by CopyInput.
func execute(ins dsl.Instruction, compute, input []byte) error {
	a := arena(compute)
	switch v := ins.(type) {
	case dsl.CopyInput:
		return copyInput(a, input, v)
	case dsl.DecompressInit:
		return decompressInit(a, v.Offset)
	case dsl.InvSqrtInit:
		return invSqrtInit(a, v.Offset)
	case dsl.Pow22501P1:
		return pow22501P1(a, v.Offset)
	case dsl.Pow22501P2:
		return pow22501P2(a, v.Offset)
	case dsl.InvSqrtFini:
		return invSqrtFini(a, v.Offset)
	case dsl.DecompressFini:
		return decompressFini(a, v.Offset)
	case dsl.ElligatorInit:
		return elligatorInit(a, v.Offset)
	case dsl.ElligatorFini:
		return elligatorFini(a, v.Offset)
	case dsl.BuildLookupTable:
		return buildLookupTable(a, v)
	case dsl.MultiscalarMul:
		return multiscalarMul(a, v)
	case dsl.DecompressEdwardsInit:
		return decompressEdwardsInit(a, v.Offset)
	case dsl.DecompressEdwardsFini:
		return decompressEdwardsFini(a, v.Offset)
	case dsl.CompressEdwardsInit:
		return compressEdwardsInit(a, v.Offset)
	case dsl.CompressEdwardsFini:
		return compressEdwardsFini(a, v.Offset)
	case dsl.MontgomeryToEdwardsInit:
		return montgomeryToEdwardsInit(a, v.Offset)
	case dsl.MontgomeryToEdwardsFini:
		return montgomeryToEdwardsFini(a, v.Offset)
	case dsl.MontgomeryElligatorStep1:
		return montgomeryElligatorStep1(a, v.Offset)
	case dsl.MontgomeryElligatorStep2:
		return montgomeryElligatorStep2(a, v.Offset)
	case dsl.MontgomeryElligatorStep3:
		return montgomeryElligatorStep3(a, v.Offset)
	case dsl.MulByCofactor:
		return mulByCofactor(a, v.Offset)
	case dsl.WriteIdentity:
		return writeIdentity(a, v.Offset)
	case dsl.DecompressWithWitness:
		return decompressWithWitness(a, v.Offset)
	}
	return errors.WithMessagef(ErrInvalidArgument, "unknown instruction %s", ins)
}

func copyInput(a arena, input []byte, c dsl.CopyInput) error {
	h, err := ReadBufferHeader(input)
	if err != nil {
		return err
	}
	if h.Key != InputBufferV1 {
		return errors.WithMessagef(ErrInvalidArgument, "copy source is %s", h.Key)
	}
	if !h.Finalized {
		return errors.WithMessage(ErrInvalidArgument, "input buffer is not finalized")
	}
	if c.Length > dsl.MaxCopyLength {
		return errors.WithMessagef(ErrInvalidArgument, "copy of %d bytes exceeds %d", c.Length, dsl.MaxCopyLength)
	}
	src, err := dsl.Region{Offset: c.InputOffset, Length: c.Length}.View(input)
	if err != nil {
		return errors.WithMessage(err, "input")
	}
	dst, err := dsl.Region{Offset: c.ComputeOffset, Length: c.Length}.View(a)
	if err != nil {
		return errors.WithMessage(err, "compute")
	}
	copy(dst, src)
	return nil
}

func decompressInit(a arena, s uint32) error {
	c, err := a.bytes32(s, 0)
	if err != nil {
		return err
	}
	v, err := (*crank25519.CompressedRistretto)(&c).DecompressInit()
	if err != nil {
		return invalid(err)
	}
	return a.commit(s, at(dsl.DecompressRatio, v.Bytes()))
}

func invSqrtInit(a arena, o uint32) error {
	v, err := a.field(o, 0)
	if err != nil {
		return err
	}
	x, _ := crank25519.SqrtRatioInput(one, v)
	return a.commit(o, at(dsl.InvSqrtInput, x.Bytes()))
}

func pow22501P1(a arena, o uint32) error {
	x, err := a.field(o, 0)
	if err != nil {
		return err
	}
	t17, t13, t3 := crank25519.Pow22001(x)
	return a.commit(o,
		at(dsl.PowT17, t17.Bytes()),
		at(dsl.PowT13, t13.Bytes()),
		at(dsl.PowT3, t3.Bytes()),
	)
}

func pow22501P2(a arena, o uint32) error {
	t17, err := a.field(o, 0)
	if err != nil {
		return err
	}
	t13, err := a.field(o, dsl.FieldWidth)
	if err != nil {
		return err
	}
	return a.commit(o, at(dsl.PowT19, crank25519.Pow22501(t17, t13).Bytes()))
}

func invSqrtFini(a arena, o uint32) error {
	v, err := a.field(o, 0)
	if err != nil {
		return err
	}
	t19, err := a.field(o, dsl.InvSqrtT19)
	if err != nil {
		return err
	}
	ok, r := crank25519.SqrtRatioI(one, v, crank25519.SqrtRatioCandidate(one, v, t19))
	if !ok {
		return invalid(crank25519.ErrNonSquare)
	}
	return a.commit(o, at(dsl.InvSqrtResult, r.Bytes()))
}

func decompressFini(a arena, s uint32) error {
	c, err := a.bytes32(s, 0)
	if err != nil {
		return err
	}
	i, err := a.field(s, dsl.DecompressInvSqrt)
	if err != nil {
		return err
	}
	p, err := (*crank25519.CompressedRistretto)(&c).DecompressFini(i)
	if err != nil {
		return invalid(err)
	}
	return a.commit(s, at(dsl.DecompressPoint, p.Bytes()))
}

func elligatorInit(a arena, s uint32) error {
	seed, err := a.view(s, 0, dsl.FieldWidth)
	if err != nil {
		return err
	}
	x, err := crank25519.ElligatorInput(seed)
	if err != nil {
		return invalid(err)
	}
	return a.commit(s, at(dsl.ElligatorPowInput, x.Bytes()))
}

func elligatorFini(a arena, s uint32) error {
	seed, err := a.view(s, 0, dsl.FieldWidth)
	if err != nil {
		return err
	}
	t19, err := a.field(s, dsl.ElligatorT19)
	if err != nil {
		return err
	}
	p, err := crank25519.ElligatorFinish(seed, t19)
	if err != nil {
		return invalid(err)
	}
	return a.commit(s, at(dsl.ElligatorPoint, p.Bytes()))
}

func buildLookupTable(a arena, b dsl.BuildLookupTable) error {
	p, err := a.point(b.PointOffset, 0)
	if err != nil {
		return err
	}
	return a.commit(b.TableOffset, at(0, crank25519.NewNielsTable(p).Bytes()))
}

func multiscalarMul(a arena, m dsl.MultiscalarMul) error {
	switch {
	case m.NumInputs == 0:
		return errors.WithMessage(ErrInvalidArgument, "multiscalar step without inputs")
	case m.NumInputs > dsl.MaxMultiscalarPoints:
		return errors.WithMessagef(ErrInvalidArgument, "%d inputs exceed %d", m.NumInputs, dsl.MaxMultiscalarPoints)
	case m.Start > m.End:
		return errors.WithMessagef(ErrInvalidArgument, "digit range [%d, %d)", m.Start, m.End)
	case m.End > 64:
		return errors.WithMessagef(ErrInvalidArgument, "digit range ends at %d", m.End)
	}
	n := uint32(m.NumInputs)
	scalars, err := a.view(m.ScalarsOffset, 0, n*dsl.FieldWidth)
	if err != nil {
		return errors.WithMessage(err, "scalars")
	}
	tables, err := a.view(m.TablesOffset, 0, n*dsl.TableWidth)
	if err != nil {
		return errors.WithMessage(err, "tables")
	}
	q, err := a.point(m.ResultOffset, 0)
	if err != nil {
		return errors.WithMessage(err, "accumulator")
	}

	digits := make([][64]int8, n)
	decoded := make([]*crank25519.NielsTable, n)
	for i := range digits {
		var s crank25519.Scalar
		copy(s[:], scalars[i*dsl.FieldWidth:])
		if !s.Radix16Safe() {
			return errors.WithMessagef(ErrInvalidArgument, "scalar %d: %v", i, crank25519.ErrScalarRange)
		}
		digits[i] = s.ToRadix16()
		t, err := crank25519.DecodeNielsTable(tables[i*dsl.TableWidth : (i+1)*dsl.TableWidth])
		if err != nil {
			return invalid(err)
		}
		decoded[i] = t
	}
	r := crank25519.MultiscalarStep(q, digits, decoded, int(m.Start), int(m.End))
	return a.commit(m.ResultOffset, at(0, r.Bytes()))
}

func decompressEdwardsInit(a arena, s uint32) error {
	y, err := a.bytes32(s, 0)
	if err != nil {
		return err
	}
	x, err := (*crank25519.EdwardsY)(&y).DecompressInput()
	if err != nil {
		return invalid(err)
	}
	return a.commit(s, at(dsl.EdwardsPowInput, x.Bytes()))
}

func decompressEdwardsFini(a arena, s uint32) error {
	y, err := a.bytes32(s, 0)
	if err != nil {
		return err
	}
	t19, err := a.field(s, dsl.EdwardsT19)
	if err != nil {
		return err
	}
	p, err := (*crank25519.EdwardsY)(&y).DecompressFinish(t19)
	if err != nil {
		return invalid(err)
	}
	return a.commit(s, at(dsl.EdwardsPoint, p.Bytes()))
}

func compressEdwardsInit(a arena, o uint32) error {
	p, err := a.point(o, 0)
	if err != nil {
		return err
	}
	return a.commit(o, at(dsl.CompressZ, p.Z.Bytes()))
}

func compressEdwardsFini(a arena, o uint32) error {
	p, err := a.point(o, 0)
	if err != nil {
		return err
	}
	t3, err := a.field(o, dsl.CompressT3)
	if err != nil {
		return err
	}
	t19, err := a.field(o, dsl.CompressT19)
	if err != nil {
		return err
	}
	enc, err := p.CompressWithInverse(crank25519.InvertFromChain(t19, t3))
	if err != nil {
		return invalid(err)
	}
	return a.commit(o, at(dsl.CompressOutput, enc[:]))
}

func montgomeryToEdwardsInit(a arena, s uint32) error {
	u, err := a.bytes32(s, 0)
	if err != nil {
		return err
	}
	up1, err := (*crank25519.MontgomeryPoint)(&u).ToEdwardsInput()
	if err != nil {
		return invalid(err)
	}
	return a.commit(s, at(dsl.ToEdwardsInput, up1.Bytes()))
}

func montgomeryToEdwardsFini(a arena, s uint32) error {
	u, err := a.bytes32(s, 0)
	if err != nil {
		return err
	}
	m := (*crank25519.MontgomeryPoint)(&u)
	up1, err := m.ToEdwardsInput()
	if err != nil {
		return invalid(err)
	}
	inv, err := chainInverse(a, s, dsl.ToEdwardsT3, dsl.ToEdwardsT19, up1)
	if err != nil {
		return err
	}
	y, err := m.ToEdwardsFinish(inv)
	if err != nil {
		return invalid(err)
	}
	return a.commit(s, at(0, y[:]))
}

func montgomeryElligatorStep1(a arena, s uint32) error {
	seed, err := a.view(s, 0, dsl.FieldWidth)
	if err != nil {
		return err
	}
	d1, err := crank25519.MontgomeryElligatorD1(seed)
	if err != nil {
		return invalid(err)
	}
	return a.commit(s, at(dsl.MontgomeryPowInput, d1.Bytes()))
}

func montgomeryElligatorStep2(a arena, s uint32) error {
	seed, err := a.view(s, 0, dsl.FieldWidth)
	if err != nil {
		return err
	}
	d1, err := crank25519.MontgomeryElligatorD1(seed)
	if err != nil {
		return invalid(err)
	}
	inv, err := chainInverse(a, s, dsl.MontgomeryT3, dsl.MontgomeryT19, d1)
	if err != nil {
		return err
	}
	d, eps := crank25519.MontgomeryElligatorEps(inv)
	return a.commit(s,
		at(dsl.MontgomeryD, d.Bytes()),
		at(dsl.MontgomeryPowInput, eps.Bytes()),
	)
}

func montgomeryElligatorStep3(a arena, s uint32) error {
	seed, err := a.view(s, 0, dsl.FieldWidth)
	if err != nil {
		return err
	}
	d, err := a.field(s, dsl.MontgomeryD)
	if err != nil {
		return err
	}
	t19, err := a.field(s, dsl.MontgomeryT19)
	if err != nil {
		return err
	}
	u, err := crank25519.MontgomeryElligatorFinish(seed, d, t19)
	if err != nil {
		return invalid(err)
	}
	return a.commit(s, at(0, u[:]))
}

// chainInverse assembles x^(p-2) from the t3 and t19 left by the pow
// phases and checks it against x.
func chainInverse(a arena, s, t3Off, t19Off uint32, x *field.Element) (*field.Element, error) {
	t3, err := a.field(s, t3Off)
	if err != nil {
		return nil, err
	}
	t19, err := a.field(s, t19Off)
	if err != nil {
		return nil, err
	}
	inv := crank25519.InvertFromChain(t19, t3)
	if new(field.Element).Multiply(inv, x).Equal(one) != 1 {
		return nil, invalid(crank25519.ErrBadInverse)
	}
	return inv, nil
}

func mulByCofactor(a arena, o uint32) error {
	p, err := a.point(o, 0)
	if err != nil {
		return err
	}
	return a.commit(o, at(0, p.MulByCofactor(p).Bytes()))
}

func writeIdentity(a arena, o uint32) error {
	return a.commit(o, at(0, crank25519.NewIdentity().Bytes()))
}

func decompressWithWitness(a arena, o uint32) error {
	c, err := a.bytes32(o, 0)
	if err != nil {
		return err
	}
	i, err := a.field(o, dsl.WitnessInvSqrt)
	if err != nil {
		return err
	}
	p, err := (*crank25519.CompressedRistretto)(&c).DecompressFini(i)
	if err != nil {
		return invalid(err)
	}
	return a.commit(o, at(dsl.WitnessPoint, p.Bytes()))
}
