package dsl

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	crank25519 "crank25519.mleku.dev"
)

// ResultKind describes the encoding held by each result region
type ResultKind uint8

const (
	// ResultPoint regions hold a 128-byte extended point
	ResultPoint ResultKind = iota
	// ResultEdwardsEncoding regions hold a 32-byte RFC 8032 encoding
	ResultEdwardsEncoding
)

func (k ResultKind) String() string {
	switch k {
	case ResultPoint:
		return "point"
	case ResultEdwardsEncoding:
		return "edwards-encoding"
	}
	return fmt.Sprintf("ResultKind(%d)", uint8(k))
}

// MarshalYAML renders the kind by name
func (k ResultKind) MarshalYAML() (interface{}, error) { return k.String(), nil }

// Layout is the offset plan every instruction of a Program agrees with.
// Regions other than Inputs are in the compute buffer.
type Layout struct {
	InstructionLen int        `yaml:"instructionBufferLen"`
	InputLen       int        `yaml:"inputBufferLen"`
	ComputeLen     int        `yaml:"computeBufferLen"`
	Kind           ResultKind `yaml:"resultKind"`
	Results        []Region   `yaml:"results"`
	Scratch        Region     `yaml:"scratch"`
	Scalars        Region     `yaml:"scalars,omitempty"`
	Tables         Region     `yaml:"tables,omitempty"`
	Inputs         Region     `yaml:"inputs"`
}

// Check verifies every region against the buffer lengths
func (l *Layout) Check() error {
	for i, r := range l.Results {
		if err := r.Check(l.ComputeLen); err != nil {
			return errors.WithMessagef(err, "result %d", i)
		}
	}
	named := []struct {
		name string
		r    Region
	}{{"scratch", l.Scratch}, {"scalars", l.Scalars}, {"tables", l.Tables}}
	for _, n := range named {
		if n.r.Length == 0 {
			continue
		}
		if err := n.r.Check(l.ComputeLen); err != nil {
			return errors.WithMessage(err, n.name)
		}
	}
	if l.Inputs.Length > 0 {
		return l.Inputs.Check(l.InputLen)
	}
	return nil
}

// Program is a compiled instruction stream together with its layout
type Program struct {
	Instructions []Instruction
	Layout       Layout
}

// Len returns the number of instructions
func (p *Program) Len() int { return len(p.Instructions) }

// Bytes returns the encoded instruction buffer body
func (p *Program) Bytes() []byte { return EncodeAll(p.Instructions) }

// Listing renders one line per instruction
func (p *Program) Listing() []string {
	out := make([]string, len(p.Instructions))
	for i, ins := range p.Instructions {
		out[i] = fmt.Sprintf("%5d  %s", i, ins)
	}
	return out
}

// Job is anything that compiles into a Program
type Job interface {
	Compile() (*Program, error)
}

// builder accumulates instructions
type builder struct {
	ins []Instruction
}

func (b *builder) emit(ins ...Instruction) {
	b.ins = append(b.ins, ins...)
}

// copyInput emits as many CopyInput instructions as n bytes need
func (b *builder) copyInput(in, comp, n uint32) {
	for n > 0 {
		c := n
		if c > MaxCopyLength {
			c = MaxCopyLength
		}
		b.ins = append(b.ins, CopyInput{InputOffset: in, ComputeOffset: comp, Length: c})
		in, comp, n = in+c, comp+c, n-c
	}
}

// pow raises the element at o to 2^250-1, leaving t19 at o+PowT17+PowT19
func (b *builder) pow(o uint32) {
	b.emit(Pow22501P1{Offset: o}, Pow22501P2{Offset: o + PowT17})
}

func (b *builder) ristrettoDecompress(s uint32) {
	b.emit(DecompressInit{Offset: s})
	b.emit(InvSqrtInit{Offset: s + DecompressRatio})
	b.pow(s + DecompressPowInput)
	b.emit(InvSqrtFini{Offset: s + DecompressRatio})
	b.emit(DecompressFini{Offset: s})
}

func (b *builder) ristrettoElligator(s uint32) {
	b.emit(ElligatorInit{Offset: s})
	b.pow(s + ElligatorPowInput)
	b.emit(ElligatorFini{Offset: s})
}

func (b *builder) edwardsDecompress(s uint32) {
	b.emit(DecompressEdwardsInit{Offset: s})
	b.pow(s + EdwardsPowInput)
	b.emit(DecompressEdwardsFini{Offset: s})
}

func (b *builder) edwardsCompress(o uint32) {
	b.emit(CompressEdwardsInit{Offset: o})
	b.pow(o + CompressZ)
	b.emit(CompressEdwardsFini{Offset: o})
}

func (b *builder) montgomeryToEdwards(s uint32) {
	b.emit(MontgomeryToEdwardsInit{Offset: s})
	b.pow(s + ToEdwardsInput)
	b.emit(MontgomeryToEdwardsFini{Offset: s})
}

func (b *builder) montgomeryElligator(s uint32) {
	b.emit(MontgomeryElligatorStep1{Offset: s})
	b.pow(s + MontgomeryPowInput)
	b.emit(MontgomeryElligatorStep2{Offset: s})
	b.pow(s + MontgomeryPowInput)
	b.emit(MontgomeryElligatorStep3{Offset: s})
}

// checkSize rejects layouts whose offsets do not fit in a u32
func checkSize(n uint64) error {
	if n > math.MaxUint32 {
		return errors.WithMessagef(ErrInvalidArgument, "layout needs %d bytes", n)
	}
	return nil
}

// MultiscalarJob computes one multiscalar product per group. Groups[g] is the
// number of points combined in result g. With Witnesses set, every input
// point carries its inverse square root and decompresses in one instruction.
type MultiscalarJob struct {
	Groups    []int
	Witnesses bool
}

// Points returns the total number of input points
func (j MultiscalarJob) Points() int {
	n := 0
	for _, g := range j.Groups {
		n += g
	}
	return n
}

func (j MultiscalarJob) pointWidth() uint32 {
	if j.Witnesses {
		return 2 * FieldWidth
	}
	return FieldWidth
}

// Compile lays out the buffers and emits the instruction stream
func (j MultiscalarJob) Compile() (*Program, error) {
	if len(j.Groups) == 0 {
		return nil, errors.WithMessage(ErrInvalidArgument, "no groups")
	}
	for i, g := range j.Groups {
		if g < 1 || g > MaxMultiscalarPoints {
			return nil, errors.WithMessagef(ErrInvalidArgument, "group %d has %d points", i, g)
		}
	}
	n := uint64(j.Points())
	pw := uint64(j.pointWidth())
	scratch := uint64(DecompressScratch)
	if j.Witnesses {
		scratch = WitnessScratch
	}
	total := HeaderSize + uint64(len(j.Groups))*PointWidth + scratch + n*(FieldWidth+TableWidth)
	if err := checkSize(total); err != nil {
		return nil, err
	}

	l := Layout{Kind: ResultPoint}
	l.Inputs = Region{Offset: HeaderSize, Length: uint32(n * (pw + FieldWidth))}
	results := Region{Offset: HeaderSize, Length: uint32(len(j.Groups)) * PointWidth}
	l.Scratch = Region{Offset: uint32(results.End()), Length: uint32(scratch)}
	l.Scalars = Region{Offset: uint32(l.Scratch.End()), Length: uint32(n * FieldWidth)}
	l.Tables = Region{Offset: uint32(l.Scalars.End()), Length: uint32(n * TableWidth)}
	l.ComputeLen = int(l.Tables.End())
	l.InputLen = int(l.Inputs.End())
	for g := range j.Groups {
		l.Results = append(l.Results, results.Slot(g, PointWidth))
	}

	b := &builder{}
	s := l.Scratch.Offset
	for i := 0; i < int(n); i++ {
		b.copyInput(HeaderSize+uint32(uint64(i)*pw), s, uint32(pw))
		point := s + DecompressPoint
		if j.Witnesses {
			b.emit(DecompressWithWitness{Offset: s})
			point = s + WitnessPoint
		} else {
			b.ristrettoDecompress(s)
		}
		b.ins = append(b.ins, BuildLookupTable{
			PointOffset: point,
			TableOffset: l.Tables.Slot(i, TableWidth).Offset,
		})
	}
	b.copyInput(HeaderSize+uint32(n*pw), l.Scalars.Offset, l.Scalars.Length)
	for _, r := range l.Results {
		b.emit(WriteIdentity{Offset: r.Offset})
	}
	first := 0
	for g, size := range j.Groups {
		for d := 63; d >= 0; d-- {
			b.ins = append(b.ins, MultiscalarMul{
				Start:         uint8(d),
				End:           uint8(d + 1),
				NumInputs:     uint8(size),
				ScalarsOffset: l.Scalars.Slot(first, FieldWidth).Offset,
				TablesOffset:  l.Tables.Slot(first, TableWidth).Offset,
				ResultOffset:  l.Results[g].Offset,
			})
		}
		first += size
	}
	return finish(b, l)
}

// EncodeInput lays out the compressed points followed by the scalars
func (j MultiscalarJob) EncodeInput(points []crank25519.CompressedRistretto, scalars []crank25519.Scalar) ([]byte, error) {
	n := j.Points()
	if len(points) != n || len(scalars) != n {
		return nil, errors.WithMessagef(ErrInvalidArgument, "job takes %d points and scalars, got %d and %d", n, len(points), len(scalars))
	}
	out := make([]byte, 0, n*int(j.pointWidth()+FieldWidth))
	for i := range points {
		out = append(out, points[i][:]...)
		if !j.Witnesses {
			continue
		}
		w, err := points[i].Witness()
		if err != nil {
			return nil, errors.WithMessagef(ErrInvalidArgument, "point %d: %v", i, err)
		}
		out = append(out, w.Bytes()...)
	}
	for i := range scalars {
		if !scalars[i].Radix16Safe() {
			return nil, errors.WithMessagef(ErrInvalidArgument, "scalar %d: %v", i, crank25519.ErrScalarRange)
		}
		out = append(out, scalars[i][:]...)
	}
	return out, nil
}

// seedJob lays out one workspace per 32-byte seed
func seedJob(seeds int, workspace, result, resultLen uint32, kind ResultKind, emit func(b *builder, w uint32)) (*Program, error) {
	if seeds < 1 {
		return nil, errors.WithMessage(ErrInvalidArgument, "no seeds")
	}
	if err := checkSize(HeaderSize + uint64(seeds)*uint64(workspace)); err != nil {
		return nil, err
	}
	l := Layout{Kind: kind}
	l.Inputs = Region{Offset: HeaderSize, Length: uint32(seeds) * FieldWidth}
	l.Scratch = Region{Offset: HeaderSize, Length: uint32(seeds) * workspace}
	l.InputLen = int(l.Inputs.End())
	l.ComputeLen = int(l.Scratch.End())

	b := &builder{}
	for i := 0; i < seeds; i++ {
		w := l.Scratch.Slot(i, workspace)
		b.copyInput(l.Inputs.Slot(i, FieldWidth).Offset, w.Offset, FieldWidth)
		emit(b, w.Offset)
		l.Results = append(l.Results, w.Sub(result, resultLen))
	}
	return finish(b, l)
}

func finish(b *builder, l Layout) (*Program, error) {
	l.InstructionLen = HeaderSize + len(b.ins)*InstructionSize
	if err := l.Check(); err != nil {
		return nil, err
	}
	return &Program{Instructions: b.ins, Layout: l}, nil
}

// RistrettoHashJob maps each 32-byte seed to a point with the Ristretto
// flavoured Elligator map.
type RistrettoHashJob struct {
	Seeds int
}

func (j RistrettoHashJob) Compile() (*Program, error) {
	return seedJob(j.Seeds, ElligatorScratch, ElligatorPoint, PointWidth, ResultPoint, func(b *builder, w uint32) {
		b.ristrettoElligator(w)
	})
}

// EncodeInput concatenates the seeds
func (j RistrettoHashJob) EncodeInput(seeds [][32]byte) ([]byte, error) {
	return encodeSeeds(j.Seeds, seeds)
}

// MontgomeryHashJob maps each 32-byte seed onto the prime-order subgroup via
// the Montgomery Elligator map, the birational map to Edwards form and a
// cofactor multiplication.
type MontgomeryHashJob struct {
	Seeds int
}

func (j MontgomeryHashJob) Compile() (*Program, error) {
	return seedJob(j.Seeds, EdwardsScratch, EdwardsPoint, PointWidth, ResultPoint, func(b *builder, w uint32) {
		b.montgomeryElligator(w)
		b.montgomeryToEdwards(w)
		b.edwardsDecompress(w)
		b.emit(MulByCofactor{Offset: w + EdwardsPoint})
	})
}

// EncodeInput concatenates the seeds
func (j MontgomeryHashJob) EncodeInput(seeds [][32]byte) ([]byte, error) {
	return encodeSeeds(j.Seeds, seeds)
}

// EdwardsRoundTripJob decompresses each RFC 8032 encoding and compresses the
// resulting point again.
type EdwardsRoundTripJob struct {
	Points int
}

// roundTripScratch is the workspace of one round trip: Edwards decompression
// followed by compression of the decoded point.
const roundTripScratch = EdwardsPoint + CompressScratch

func (j EdwardsRoundTripJob) Compile() (*Program, error) {
	return seedJob(j.Points, roundTripScratch, EdwardsPoint+CompressOutput, FieldWidth, ResultEdwardsEncoding, func(b *builder, w uint32) {
		b.edwardsDecompress(w)
		b.edwardsCompress(w + EdwardsPoint)
	})
}

// EncodeInput concatenates the encodings
func (j EdwardsRoundTripJob) EncodeInput(points []crank25519.EdwardsY) ([]byte, error) {
	seeds := make([][32]byte, len(points))
	for i := range points {
		seeds[i] = [32]byte(points[i])
	}
	return encodeSeeds(j.Points, seeds)
}

func encodeSeeds(n int, seeds [][32]byte) ([]byte, error) {
	if len(seeds) != n {
		return nil, errors.WithMessagef(ErrInvalidArgument, "job takes %d inputs, got %d", n, len(seeds))
	}
	out := make([]byte, 0, n*FieldWidth)
	for i := range seeds {
		out = append(out, seeds[i][:]...)
	}
	return out, nil
}
