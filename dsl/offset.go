package dsl

import (
	"encoding/binary"
	"fmt"
)

// The instructions below take a single compute buffer offset. Scratch slots
// relative to Offset are listed in region.go.

// DecompressInit checks a Ristretto encoding and writes the ratio to invert
type DecompressInit struct{ Offset uint32 }

// InvSqrtInit prepares the pow chain input of an inverse square root
type InvSqrtInit struct{ Offset uint32 }

// Pow22501P1 runs the first half of the x^(2^250-1) chain
type Pow22501P1 struct{ Offset uint32 }

// Pow22501P2 runs the second half of the x^(2^250-1) chain
type Pow22501P2 struct{ Offset uint32 }

// InvSqrtFini finishes an inverse square root from the chain output
type InvSqrtFini struct{ Offset uint32 }

// DecompressFini finishes Ristretto decompression
type DecompressFini struct{ Offset uint32 }

// ElligatorInit starts the Ristretto flavoured Elligator map
type ElligatorInit struct{ Offset uint32 }

// ElligatorFini finishes the Ristretto flavoured Elligator map
type ElligatorFini struct{ Offset uint32 }

// DecompressEdwardsInit starts RFC 8032 decompression
type DecompressEdwardsInit struct{ Offset uint32 }

// DecompressEdwardsFini finishes RFC 8032 decompression
type DecompressEdwardsFini struct{ Offset uint32 }

// CompressEdwardsInit starts RFC 8032 compression
type CompressEdwardsInit struct{ Offset uint32 }

// CompressEdwardsFini finishes RFC 8032 compression
type CompressEdwardsFini struct{ Offset uint32 }

// MontgomeryToEdwardsInit starts the birational map from u to y
type MontgomeryToEdwardsInit struct{ Offset uint32 }

// MontgomeryToEdwardsFini finishes the birational map from u to y
type MontgomeryToEdwardsFini struct{ Offset uint32 }

// The Montgomery Elligator map runs in three steps around two pow chains
type MontgomeryElligatorStep1 struct{ Offset uint32 }
type MontgomeryElligatorStep2 struct{ Offset uint32 }
type MontgomeryElligatorStep3 struct{ Offset uint32 }

// MulByCofactor multiplies the point at Offset by 8 in place
type MulByCofactor struct{ Offset uint32 }

// WriteIdentity writes the identity point at Offset
type WriteIdentity struct{ Offset uint32 }

// DecompressWithWitness decompresses a Ristretto point using the witness stored after it
type DecompressWithWitness struct{ Offset uint32 }

func (DecompressInit) Tag() Tag { return TagDecompressInit }
func (InvSqrtInit) Tag() Tag { return TagInvSqrtInit }
func (Pow22501P1) Tag() Tag { return TagPow22501P1 }
func (Pow22501P2) Tag() Tag { return TagPow22501P2 }
func (InvSqrtFini) Tag() Tag { return TagInvSqrtFini }
func (DecompressFini) Tag() Tag { return TagDecompressFini }
func (ElligatorInit) Tag() Tag { return TagElligatorInit }
func (ElligatorFini) Tag() Tag { return TagElligatorFini }
func (DecompressEdwardsInit) Tag() Tag { return TagDecompressEdwardsInit }
func (DecompressEdwardsFini) Tag() Tag { return TagDecompressEdwardsFini }
func (CompressEdwardsInit) Tag() Tag { return TagCompressEdwardsInit }
func (CompressEdwardsFini) Tag() Tag { return TagCompressEdwardsFini }
func (MontgomeryToEdwardsInit) Tag() Tag { return TagMontgomeryToEdwardsInit }
func (MontgomeryToEdwardsFini) Tag() Tag { return TagMontgomeryToEdwardsFini }
func (MontgomeryElligatorStep1) Tag() Tag { return TagMontgomeryElligatorStep1 }
func (MontgomeryElligatorStep2) Tag() Tag { return TagMontgomeryElligatorStep2 }
func (MontgomeryElligatorStep3) Tag() Tag { return TagMontgomeryElligatorStep3 }
func (MulByCofactor) Tag() Tag { return TagMulByCofactor }
func (WriteIdentity) Tag() Tag { return TagWriteIdentity }
func (DecompressWithWitness) Tag() Tag { return TagDecompressWithWitness }

func (i DecompressInit) encode(s *[InstructionSize]byte) { putOffset(s, i.Tag(), i.Offset) }
func (i InvSqrtInit) encode(s *[InstructionSize]byte) { putOffset(s, i.Tag(), i.Offset) }
func (i Pow22501P1) encode(s *[InstructionSize]byte) { putOffset(s, i.Tag(), i.Offset) }
func (i Pow22501P2) encode(s *[InstructionSize]byte) { putOffset(s, i.Tag(), i.Offset) }
func (i InvSqrtFini) encode(s *[InstructionSize]byte) { putOffset(s, i.Tag(), i.Offset) }
func (i DecompressFini) encode(s *[InstructionSize]byte) { putOffset(s, i.Tag(), i.Offset) }
func (i ElligatorInit) encode(s *[InstructionSize]byte) { putOffset(s, i.Tag(), i.Offset) }
func (i ElligatorFini) encode(s *[InstructionSize]byte) { putOffset(s, i.Tag(), i.Offset) }
func (i DecompressEdwardsInit) encode(s *[InstructionSize]byte) { putOffset(s, i.Tag(), i.Offset) }
func (i DecompressEdwardsFini) encode(s *[InstructionSize]byte) { putOffset(s, i.Tag(), i.Offset) }
func (i CompressEdwardsInit) encode(s *[InstructionSize]byte) { putOffset(s, i.Tag(), i.Offset) }
func (i CompressEdwardsFini) encode(s *[InstructionSize]byte) { putOffset(s, i.Tag(), i.Offset) }
func (i MontgomeryToEdwardsInit) encode(s *[InstructionSize]byte) { putOffset(s, i.Tag(), i.Offset) }
func (i MontgomeryToEdwardsFini) encode(s *[InstructionSize]byte) { putOffset(s, i.Tag(), i.Offset) }
func (i MontgomeryElligatorStep1) encode(s *[InstructionSize]byte) { putOffset(s, i.Tag(), i.Offset) }
func (i MontgomeryElligatorStep2) encode(s *[InstructionSize]byte) { putOffset(s, i.Tag(), i.Offset) }
func (i MontgomeryElligatorStep3) encode(s *[InstructionSize]byte) { putOffset(s, i.Tag(), i.Offset) }
func (i MulByCofactor) encode(s *[InstructionSize]byte) { putOffset(s, i.Tag(), i.Offset) }
func (i WriteIdentity) encode(s *[InstructionSize]byte) { putOffset(s, i.Tag(), i.Offset) }
func (i DecompressWithWitness) encode(s *[InstructionSize]byte) { putOffset(s, i.Tag(), i.Offset) }

func (i DecompressInit) String() string { return offsetString(i) }
func (i InvSqrtInit) String() string { return offsetString(i) }
func (i Pow22501P1) String() string { return offsetString(i) }
func (i Pow22501P2) String() string { return offsetString(i) }
func (i InvSqrtFini) String() string { return offsetString(i) }
func (i DecompressFini) String() string { return offsetString(i) }
func (i ElligatorInit) String() string { return offsetString(i) }
func (i ElligatorFini) String() string { return offsetString(i) }
func (i DecompressEdwardsInit) String() string { return offsetString(i) }
func (i DecompressEdwardsFini) String() string { return offsetString(i) }
func (i CompressEdwardsInit) String() string { return offsetString(i) }
func (i CompressEdwardsFini) String() string { return offsetString(i) }
func (i MontgomeryToEdwardsInit) String() string { return offsetString(i) }
func (i MontgomeryToEdwardsFini) String() string { return offsetString(i) }
func (i MontgomeryElligatorStep1) String() string { return offsetString(i) }
func (i MontgomeryElligatorStep2) String() string { return offsetString(i) }
func (i MontgomeryElligatorStep3) String() string { return offsetString(i) }
func (i MulByCofactor) String() string { return offsetString(i) }
func (i WriteIdentity) String() string { return offsetString(i) }
func (i DecompressWithWitness) String() string { return offsetString(i) }

func putOffset(s *[InstructionSize]byte, t Tag, off uint32) {
	s[0] = byte(t)
	binary.LittleEndian.PutUint32(s[1:5], off)
}

func offsetString(i Instruction) string {
	var slot [InstructionSize]byte
	i.encode(&slot)
	return fmt.Sprintf("%s offset=%d", i.Tag(), binary.LittleEndian.Uint32(slot[1:5]))
}

// decodeOffset builds the single-offset instruction for t, or nil when t
// takes other operands
func decodeOffset(t Tag, off uint32) Instruction {
	switch t {
	case TagDecompressInit:
		return DecompressInit{Offset: off}
	case TagInvSqrtInit:
		return InvSqrtInit{Offset: off}
	case TagPow22501P1:
		return Pow22501P1{Offset: off}
	case TagPow22501P2:
		return Pow22501P2{Offset: off}
	case TagInvSqrtFini:
		return InvSqrtFini{Offset: off}
	case TagDecompressFini:
		return DecompressFini{Offset: off}
	case TagElligatorInit:
		return ElligatorInit{Offset: off}
	case TagElligatorFini:
		return ElligatorFini{Offset: off}
	case TagDecompressEdwardsInit:
		return DecompressEdwardsInit{Offset: off}
	case TagDecompressEdwardsFini:
		return DecompressEdwardsFini{Offset: off}
	case TagCompressEdwardsInit:
		return CompressEdwardsInit{Offset: off}
	case TagCompressEdwardsFini:
		return CompressEdwardsFini{Offset: off}
	case TagMontgomeryToEdwardsInit:
		return MontgomeryToEdwardsInit{Offset: off}
	case TagMontgomeryToEdwardsFini:
		return MontgomeryToEdwardsFini{Offset: off}
	case TagMontgomeryElligatorStep1:
		return MontgomeryElligatorStep1{Offset: off}
	case TagMontgomeryElligatorStep2:
		return MontgomeryElligatorStep2{Offset: off}
	case TagMontgomeryElligatorStep3:
		return MontgomeryElligatorStep3{Offset: off}
	case TagMulByCofactor:
		return MulByCofactor{Offset: off}
	case TagWriteIdentity:
		return WriteIdentity{Offset: off}
	case TagDecompressWithWitness:
		return DecompressWithWitness{Offset: off}
	}
	return nil
}
