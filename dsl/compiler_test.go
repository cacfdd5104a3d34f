package dsl

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	crank25519 "crank25519.mleku.dev"
)

// countTags tallies the instructions of p by tag
func countTags(p *Program) map[Tag]int {
	out := map[Tag]int{}
	for _, ins := range p.Instructions {
		out[ins.Tag()]++
	}
	return out
}

// offsetsInBody checks that every offset operand points past the header
func offsetsInBody(t *testing.T, p *Program) {
	t.Helper()
	for i, ins := range p.Instructions {
		switch v := ins.(type) {
		case CopyInput:
			assert.GreaterOrEqual(t, v.InputOffset, uint32(HeaderSize), "instruction %d", i)
			assert.LessOrEqual(t, uint64(v.InputOffset)+uint64(v.Length), uint64(p.Layout.InputLen))
			assert.LessOrEqual(t, uint64(v.ComputeOffset)+uint64(v.Length), uint64(p.Layout.ComputeLen))
			assert.LessOrEqual(t, v.Length, uint32(MaxCopyLength))
		case BuildLookupTable:
			assert.LessOrEqual(t, uint64(v.TableOffset)+TableWidth, uint64(p.Layout.ComputeLen))
		case MultiscalarMul:
			assert.LessOrEqual(t, int(v.NumInputs), MaxMultiscalarPoints)
			assert.LessOrEqual(t, uint64(v.TablesOffset)+uint64(v.NumInputs)*TableWidth, uint64(p.Layout.ComputeLen))
		default:
			slot := Encode(ins)
			off := binary.LittleEndian.Uint32(slot[1:5])
			assert.GreaterOrEqual(t, off, uint32(HeaderSize), "instruction %d", i)
			assert.Less(t, off, uint32(p.Layout.ComputeLen))
		}
	}
}

func TestMultiscalarLayout(t *testing.T) {
	p, err := MultiscalarJob{Groups: []int{2}}.Compile()
	require.NoError(t, err)

	l := p.Layout
	assert.Equal(t, []Region{{Offset: 128, Length: 128}}, l.Results)
	assert.Equal(t, Region{Offset: 256, Length: 384}, l.Scratch)
	assert.Equal(t, Region{Offset: 640, Length: 64}, l.Scalars)
	assert.Equal(t, Region{Offset: 704, Length: 2048}, l.Tables)
	assert.Equal(t, 2752, l.ComputeLen)
	assert.Equal(t, 256, l.InputLen)
	assert.Equal(t, 82, p.Len())
	assert.Equal(t, HeaderSize+82*InstructionSize, l.InstructionLen)
	assert.Len(t, p.Bytes(), 82*InstructionSize)
	offsetsInBody(t, p)

	// first point: copy then the decompression sub-sequence
	assert.Equal(t, []Instruction{
		CopyInput{InputOffset: 128, ComputeOffset: 256, Length: 32},
		DecompressInit{Offset: 256},
		InvSqrtInit{Offset: 288},
		Pow22501P1{Offset: 320},
		Pow22501P2{Offset: 352},
		InvSqrtFini{Offset: 288},
		DecompressFini{Offset: 256},
		BuildLookupTable{PointOffset: 512, TableOffset: 704},
	}, p.Instructions[:8])
	assert.Equal(t, BuildLookupTable{PointOffset: 512, TableOffset: 1728}, p.Instructions[15])
	assert.Equal(t, CopyInput{InputOffset: 192, ComputeOffset: 640, Length: 64}, p.Instructions[16])
	assert.Equal(t, WriteIdentity{Offset: 128}, p.Instructions[17])

	// digit positions run from the most significant down
	for k, ins := range p.Instructions[18:] {
		m := ins.(MultiscalarMul)
		assert.Equal(t, uint8(63-k), m.Start)
		assert.Equal(t, m.Start+1, m.End)
		assert.Equal(t, uint8(2), m.NumInputs)
		assert.Equal(t, uint32(640), m.ScalarsOffset)
		assert.Equal(t, uint32(704), m.TablesOffset)
		assert.Equal(t, uint32(128), m.ResultOffset)
	}
}

func TestMultiscalarGroupsAndCopySplit(t *testing.T) {
	groups := []int{6, 6, 6, 6, 6, 6, 4}
	p, err := MultiscalarJob{Groups: groups}.Compile()
	require.NoError(t, err)
	offsetsInBody(t, p)

	counts := countTags(p)
	assert.Equal(t, 40, counts[TagBuildLookupTable])
	assert.Equal(t, 40+2, counts[TagCopyInput])
	assert.Equal(t, len(groups), counts[TagWriteIdentity])
	assert.Equal(t, 64*len(groups), counts[TagMultiscalarMul])
	assert.Equal(t, 40, counts[TagPow22501P1])

	// the last group starts at point 36
	last := p.Instructions[len(p.Instructions)-1].(MultiscalarMul)
	assert.Equal(t, p.Layout.Scalars.Offset+36*FieldWidth, last.ScalarsOffset)
	assert.Equal(t, p.Layout.Tables.Offset+36*TableWidth, last.TablesOffset)
	assert.Equal(t, p.Layout.Results[6].Offset, last.ResultOffset)
	assert.Equal(t, uint8(4), last.NumInputs)
	assert.Equal(t, uint8(0), last.Start)
}

func TestMultiscalarWithWitnesses(t *testing.T) {
	p, err := MultiscalarJob{Groups: []int{2, 1}, Witnesses: true}.Compile()
	require.NoError(t, err)
	offsetsInBody(t, p)
	assert.Equal(t, 3*3+1+2+128, p.Len())
	assert.Equal(t, uint32(WitnessScratch), p.Layout.Scratch.Length)
	assert.Equal(t, HeaderSize+3*64+3*32, p.Layout.InputLen)

	s := p.Layout.Scratch.Offset
	assert.Equal(t, CopyInput{InputOffset: 128, ComputeOffset: s, Length: 64}, p.Instructions[0])
	assert.Equal(t, DecompressWithWitness{Offset: s}, p.Instructions[1])
	assert.Equal(t, BuildLookupTable{PointOffset: s + WitnessPoint, TableOffset: p.Layout.Tables.Offset}, p.Instructions[2])
	assert.Zero(t, countTags(p)[TagPow22501P1])
}

func TestMultiscalarRejectsShapes(t *testing.T) {
	for _, groups := range [][]int{nil, {0}, {7}, {1, -1}} {
		_, err := MultiscalarJob{Groups: groups}.Compile()
		assert.ErrorIs(t, err, ErrInvalidArgument, "groups %v", groups)
	}
}

func TestMultiscalarEncodeInput(t *testing.T) {
	job := MultiscalarJob{Groups: []int{1}, Witnesses: true}
	one := crank25519.ScalarFromUint64(1)

	in, err := job.EncodeInput([]crank25519.CompressedRistretto{crank25519.RistrettoBasepoint}, []crank25519.Scalar{one})
	require.NoError(t, err)
	require.Len(t, in, 96)
	assert.Equal(t, crank25519.RistrettoBasepoint[:], in[:32])
	w, err := crank25519.RistrettoBasepoint.Witness()
	require.NoError(t, err)
	assert.Equal(t, w.Bytes(), in[32:64])
	assert.Equal(t, one[:], in[64:])

	_, err = job.EncodeInput(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	var big crank25519.Scalar
	big[31] = 0x80
	_, err = job.EncodeInput([]crank25519.CompressedRistretto{crank25519.RistrettoBasepoint}, []crank25519.Scalar{big})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	var bad crank25519.CompressedRistretto
	bad[0] = 1 // negative s
	_, err = job.EncodeInput([]crank25519.CompressedRistretto{bad}, []crank25519.Scalar{one})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSeedJobs(t *testing.T) {
	testCases := []struct {
		name      string
		job       Job
		perSeed   int
		workspace uint32
		result    Region
		kind      ResultKind
	}{
		{"ristretto", RistrettoHashJob{Seeds: 3}, 5, ElligatorScratch, Region{Offset: 128 + 192, Length: 128}, ResultPoint},
		{"montgomery", MontgomeryHashJob{Seeds: 3}, 17, EdwardsScratch, Region{Offset: 128 + 192, Length: 128}, ResultPoint},
		{"roundtrip", EdwardsRoundTripJob{Points: 3}, 9, 512, Region{Offset: 128 + 480, Length: 32}, ResultEdwardsEncoding},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := tc.job.Compile()
			require.NoError(t, err)
			offsetsInBody(t, p)

			assert.Equal(t, 3*tc.perSeed, p.Len())
			assert.Equal(t, tc.kind, p.Layout.Kind)
			assert.Equal(t, HeaderSize+3*int(tc.workspace), p.Layout.ComputeLen)
			assert.Equal(t, HeaderSize+3*32, p.Layout.InputLen)
			require.Len(t, p.Layout.Results, 3)
			assert.Equal(t, tc.result, p.Layout.Results[0])
			assert.Equal(t, tc.result.Offset+2*tc.workspace, p.Layout.Results[2].Offset)
			assert.Equal(t, CopyInput{InputOffset: 160, ComputeOffset: 128 + tc.workspace, Length: 32}, p.Instructions[tc.perSeed])
		})
	}

	_, err := RistrettoHashJob{}.Compile()
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMontgomerySequence(t *testing.T) {
	p, err := MontgomeryHashJob{Seeds: 1}.Compile()
	require.NoError(t, err)
	var tags []Tag
	for _, ins := range p.Instructions {
		tags = append(tags, ins.Tag())
	}
	assert.Equal(t, []Tag{
		TagCopyInput,
		TagMontgomeryElligatorStep1, TagPow22501P1, TagPow22501P2,
		TagMontgomeryElligatorStep2, TagPow22501P1, TagPow22501P2,
		TagMontgomeryElligatorStep3,
		TagMontgomeryToEdwardsInit, TagPow22501P1, TagPow22501P2, TagMontgomeryToEdwardsFini,
		TagDecompressEdwardsInit, TagPow22501P1, TagPow22501P2, TagDecompressEdwardsFini,
		TagMulByCofactor,
	}, tags)
	assert.Equal(t, MulByCofactor{Offset: 128 + EdwardsPoint}, p.Instructions[16])
}

func TestSeedEncoders(t *testing.T) {
	seeds := [][32]byte{{1}, {2}}
	in, err := RistrettoHashJob{Seeds: 2}.EncodeInput(seeds)
	require.NoError(t, err)
	assert.Equal(t, append(seeds[0][:], seeds[1][:]...), in)

	_, err = MontgomeryHashJob{Seeds: 3}.EncodeInput(seeds)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	in, err = EdwardsRoundTripJob{Points: 1}.EncodeInput([]crank25519.EdwardsY{{9}})
	require.NoError(t, err)
	assert.Equal(t, byte(9), in[0])
}

func TestListing(t *testing.T) {
	p, err := RistrettoHashJob{Seeds: 1}.Compile()
	require.NoError(t, err)
	lines := p.Listing()
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "CopyInput")
	assert.Contains(t, lines[4], "ElligatorFini offset=128")
}
