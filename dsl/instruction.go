// Package dsl defines the fixed-width instruction set executed one
// instruction per crank, and compiles curve jobs into instruction streams
// with the buffer layouts they run against.
package dsl

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

const (
	// HeaderSize is the number of bytes reserved for the header of every buffer
	HeaderSize = 128
	// InstructionSize is the width of one encoded instruction
	InstructionSize = 16
	// MaxMultiscalarPoints bounds num_inputs of a MultiscalarMul
	MaxMultiscalarPoints = 6
	// MaxCopyLength bounds the length of a single CopyInput
	MaxCopyLength = 1024
)

// ErrInvalidArgument is the single error kind reported to callers
var ErrInvalidArgument = errors.New("invalid argument")

// Tag is the instruction discriminant stored in byte 0 of a slot
type Tag uint8

const (
	TagCopyInput Tag = iota
	TagDecompressInit
	TagInvSqrtInit
	TagPow22501P1
	TagPow22501P2
	TagInvSqrtFini
	TagDecompressFini
	TagElligatorInit
	TagElligatorFini
	TagBuildLookupTable
	TagMultiscalarMul
	TagDecompressEdwardsInit
	TagDecompressEdwardsFini
	TagCompressEdwardsInit
	TagCompressEdwardsFini
	TagMontgomeryToEdwardsInit
	TagMontgomeryToEdwardsFini
	TagMontgomeryElligatorStep1
	TagMontgomeryElligatorStep2
	TagMontgomeryElligatorStep3
	TagMulByCofactor
	TagWriteIdentity
	TagDecompressWithWitness

	numTags
)

var tagNames = [numTags]string{
	"CopyInput",
	"DecompressInit",
	"InvSqrtInit",
	"Pow22501P1",
	"Pow22501P2",
	"InvSqrtFini",
	"DecompressFini",
	"ElligatorInit",
	"ElligatorFini",
	"BuildLookupTable",
	"MultiscalarMul",
	"DecompressEdwardsInit",
	"DecompressEdwardsFini",
	"CompressEdwardsInit",
	"CompressEdwardsFini",
	"MontgomeryToEdwardsInit",
	"MontgomeryToEdwardsFini",
	"MontgomeryElligatorStep1",
	"MontgomeryElligatorStep2",
	"MontgomeryElligatorStep3",
	"MulByCofactor",
	"WriteIdentity",
	"DecompressWithWitness",
}

func (t Tag) String() string {
	if t < numTags {
		return tagNames[t]
	}
	return fmt.Sprintf("Tag(%d)", uint8(t))
}

// Tags returns every defined tag in order
func Tags() []Tag {
	out := make([]Tag, numTags)
	for i := range out {
		out[i] = Tag(i)
	}
	return out
}

// Instruction is one of the concrete instruction types of this package, one
// per Tag. Decode returns the type matching the slot tag.
type Instruction interface {
	Tag() Tag
	encode(slot *[InstructionSize]byte)
	fmt.Stringer
}

// CopyInput copies Length bytes from the input buffer to the compute buffer
type CopyInput struct {
	InputOffset   uint32
	ComputeOffset uint32
	Length        uint32
}

// BuildLookupTable writes the table of the point at PointOffset to TableOffset
type BuildLookupTable struct {
	PointOffset uint32
	TableOffset uint32
}

// MultiscalarMul runs digit positions [Start, End) over NumInputs points.
type MultiscalarMul struct {
	Start         uint8
	End           uint8
	NumInputs     uint8
	ScalarsOffset uint32
	TablesOffset  uint32
	ResultOffset  uint32
}

func (CopyInput) Tag() Tag        { return TagCopyInput }
func (BuildLookupTable) Tag() Tag { return TagBuildLookupTable }
func (MultiscalarMul) Tag() Tag   { return TagMultiscalarMul }

func (i CopyInput) encode(slot *[InstructionSize]byte) {
	slot[0] = byte(TagCopyInput)
	binary.LittleEndian.PutUint32(slot[1:5], i.InputOffset)
	binary.LittleEndian.PutUint32(slot[5:9], i.ComputeOffset)
	binary.LittleEndian.PutUint32(slot[9:13], i.Length)
}

func (b BuildLookupTable) encode(slot *[InstructionSize]byte) {
	slot[0] = byte(TagBuildLookupTable)
	binary.LittleEndian.PutUint32(slot[1:5], b.PointOffset)
	binary.LittleEndian.PutUint32(slot[5:9], b.TableOffset)
}

func (m MultiscalarMul) encode(slot *[InstructionSize]byte) {
	slot[0] = byte(TagMultiscalarMul)
	slot[1] = m.Start
	slot[2] = m.End
	slot[3] = m.NumInputs
	binary.LittleEndian.PutUint32(slot[4:8], m.ScalarsOffset)
	binary.LittleEndian.PutUint32(slot[8:12], m.TablesOffset)
	binary.LittleEndian.PutUint32(slot[12:16], m.ResultOffset)
}

func (i CopyInput) String() string {
	return fmt.Sprintf("CopyInput input=%d compute=%d len=%d", i.InputOffset, i.ComputeOffset, i.Length)
}

func (b BuildLookupTable) String() string {
	return fmt.Sprintf("BuildLookupTable point=%d table=%d", b.PointOffset, b.TableOffset)
}

func (m MultiscalarMul) String() string {
	return fmt.Sprintf("MultiscalarMul [%d,%d) n=%d scalars=%d tables=%d result=%d",
		m.Start, m.End, m.NumInputs, m.ScalarsOffset, m.TablesOffset, m.ResultOffset)
}

// payloadSize returns the number of payload bytes used by a tag
func payloadSize(t Tag) int {
	switch t {
	case TagCopyInput:
		return 12
	case TagBuildLookupTable:
		return 8
	case TagMultiscalarMul:
		return 15
	}
	return 4
}

// Encode serializes ins into a zero-padded slot
func Encode(ins Instruction) [InstructionSize]byte {
	var slot [InstructionSize]byte
	ins.encode(&slot)
	return slot
}

// EncodeAll concatenates the encoded slots of ins
func EncodeAll(ins []Instruction) []byte {
	out := make([]byte, 0, len(ins)*InstructionSize)
	for _, i := range ins {
		slot := Encode(i)
		out = append(out, slot[:]...)
	}
	return out
}

// Decode parses one slot. Unknown tags and non-zero padding are rejected.
func Decode(slot []byte) (Instruction, error) {
	if len(slot) != InstructionSize {
		return nil, errors.WithMessagef(ErrInvalidArgument, "instruction slot is %d bytes", len(slot))
	}
	tag := Tag(slot[0])
	if tag >= numTags {
		return nil, errors.WithMessagef(ErrInvalidArgument, "unknown instruction tag %d", slot[0])
	}
	for _, b := range slot[1+payloadSize(tag):] {
		if b != 0 {
			return nil, errors.WithMessagef(ErrInvalidArgument, "%s: non-zero padding", tag)
		}
	}

	u32 := func(off int) uint32 { return binary.LittleEndian.Uint32(slot[off : off+4]) }
	switch tag {
	case TagCopyInput:
		return CopyInput{InputOffset: u32(1), ComputeOffset: u32(5), Length: u32(9)}, nil
	case TagBuildLookupTable:
		return BuildLookupTable{PointOffset: u32(1), TableOffset: u32(5)}, nil
	case TagMultiscalarMul:
		return MultiscalarMul{
			Start:         slot[1],
			End:           slot[2],
			NumInputs:     slot[3],
			ScalarsOffset: u32(4),
			TablesOffset:  u32(8),
			ResultOffset:  u32(12),
		}, nil
	}
	if ins := decodeOffset(tag, u32(1)); ins != nil {
		return ins, nil
	}
	return nil, errors.WithMessagef(ErrInvalidArgument, "unhandled tag %s", tag)
}

// DecodeAll parses a concatenation of slots
func DecodeAll(b []byte) ([]Instruction, error) {
	if len(b)%InstructionSize != 0 {
		return nil, errors.WithMessagef(ErrInvalidArgument, "stream length %d is not a multiple of %d", len(b), InstructionSize)
	}
	out := make([]Instruction, 0, len(b)/InstructionSize)
	for off := 0; off < len(b); off += InstructionSize {
		ins, err := Decode(b[off : off+InstructionSize])
		if err != nil {
			return nil, errors.WithMessagef(err, "instruction %d", off/InstructionSize)
		}
		out = append(out, ins)
	}
	return out, nil
}
