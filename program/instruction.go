package program

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	crank25519 "crank25519.mleku.dev"
	"crank25519.mleku.dev/host"
)

// Discriminant selects the control instruction in byte 0 of instruction data
type Discriminant uint8

const (
	DiscInitializeInstructionBuffer Discriminant = iota
	DiscInitializeInputBuffer
	DiscInitializeComputeBuffer
	DiscCloseBuffer
	DiscWriteBytes
	DiscCrankCompute
	DiscNoop
)

var discriminantNames = []string{
	"InitializeInstructionBuffer",
	"InitializeInputBuffer",
	"InitializeComputeBuffer",
	"CloseBuffer",
	"WriteBytes",
	"CrankCompute",
	"Noop",
}

func (d Discriminant) String() string {
	if int(d) < len(discriminantNames) {
		return discriminantNames[d]
	}
	return fmt.Sprintf("Discriminant(%d)", uint8(d))
}

// NoopTagSize is the width of the opaque Noop payload
const NoopTagSize = 8

// writeBytesPrefix is the discriminant, offset and finalize flag
const writeBytesPrefix = 1 + 4 + 1

// Control is a decoded control instruction
type Control interface {
	Discriminant() Discriminant
}

// Initialize sets up a buffer of the given kind. Compute buffers carry the
// addresses of their instruction and input buffers.
type Initialize struct {
	Kind         Key
	Instructions host.Address
	Input        host.Address
}

// WriteBytes copies Bytes into a buffer body at Offset
type WriteBytes struct {
	Offset   uint32
	Finalize bool
	Bytes    []byte
}

// CloseBuffer returns a buffer's balance to its authority
type CloseBuffer struct{}

// CrankCompute executes the next DSL instruction of a compute buffer
type CrankCompute struct{}

// Noop does nothing; its tag only appears in logs
type Noop struct {
	Tag [NoopTagSize]byte
}

func (i Initialize) Discriminant() Discriminant {
	switch i.Kind {
	case InputBufferV1:
		return DiscInitializeInputBuffer
	case ComputeBufferV1:
		return DiscInitializeComputeBuffer
	}
	return DiscInitializeInstructionBuffer
}

func (WriteBytes) Discriminant() Discriminant   { return DiscWriteBytes }
func (CloseBuffer) Discriminant() Discriminant  { return DiscCloseBuffer }
func (CrankCompute) Discriminant() Discriminant { return DiscCrankCompute }
func (Noop) Discriminant() Discriminant         { return DiscNoop }

// EncodeControl serializes a control instruction
func EncodeControl(c Control) []byte {
	out := []byte{byte(c.Discriminant())}
	switch v := c.(type) {
	case Initialize:
		if v.Kind == ComputeBufferV1 {
			out = append(out, v.Instructions[:]...)
			out = append(out, v.Input[:]...)
		}
	case WriteBytes:
		var off [4]byte
		binary.LittleEndian.PutUint32(off[:], v.Offset)
		out = append(out, off[:]...)
		flag := byte(0)
		if v.Finalize {
			flag = 1
		}
		out = append(out, flag)
		out = append(out, v.Bytes...)
	case Noop:
		out = append(out, v.Tag[:]...)
	}
	return out
}

// ParseControl decodes instruction data
func ParseControl(data []byte) (Control, error) {
	if len(data) == 0 {
		return nil, errors.WithMessage(ErrInvalidArgument, "empty instruction data")
	}
	d, payload := Discriminant(data[0]), data[1:]
	switch d {
	case DiscInitializeInstructionBuffer, DiscInitializeInputBuffer:
		if len(payload) != 0 {
			return nil, errors.WithMessagef(ErrInvalidArgument, "%s takes no cross references", d)
		}
		kind := InstructionBufferV1
		if d == DiscInitializeInputBuffer {
			kind = InputBufferV1
		}
		return Initialize{Kind: kind}, nil
	case DiscInitializeComputeBuffer:
		if len(payload) != 2*host.AddressSize {
			return nil, errors.WithMessagef(ErrInvalidArgument, "%s needs exactly two cross references", d)
		}
		c := Initialize{Kind: ComputeBufferV1}
		copy(c.Instructions[:], payload[:host.AddressSize])
		copy(c.Input[:], payload[host.AddressSize:])
		return c, nil
	case DiscCloseBuffer, DiscCrankCompute:
		if len(payload) != 0 {
			return nil, errors.WithMessagef(ErrInvalidArgument, "%s takes no payload", d)
		}
		if d == DiscCloseBuffer {
			return CloseBuffer{}, nil
		}
		return CrankCompute{}, nil
	case DiscWriteBytes:
		if len(data) < writeBytesPrefix {
			return nil, errors.WithMessage(ErrInvalidArgument, "truncated write")
		}
		w := WriteBytes{Offset: binary.LittleEndian.Uint32(payload[:4]), Bytes: payload[5:]}
		switch payload[4] {
		case 0:
		case 1:
			w.Finalize = true
		default:
			return nil, errors.WithMessagef(ErrInvalidArgument, "finalize flag %d", payload[4])
		}
		return w, nil
	case DiscNoop:
		if len(payload) != NoopTagSize {
			return nil, errors.WithMessagef(ErrInvalidArgument, "noop tag is %d bytes", len(payload))
		}
		var n Noop
		copy(n.Tag[:], payload)
		return n, nil
	}
	return nil, errors.WithMessagef(ErrInvalidArgument, "unknown discriminant %d", data[0])
}

// Builders for host instructions addressed to the program at id.

func InitializeInstructionBufferIx(id, buffer, authority host.Address) host.Instruction {
	return bufferIx(id, buffer, authority, Initialize{Kind: InstructionBufferV1})
}

func InitializeInputBufferIx(id, buffer, authority host.Address) host.Instruction {
	return bufferIx(id, buffer, authority, Initialize{Kind: InputBufferV1})
}

func InitializeComputeBufferIx(id, buffer, authority, instructions, input host.Address) host.Instruction {
	return bufferIx(id, buffer, authority, Initialize{Kind: ComputeBufferV1, Instructions: instructions, Input: input})
}

func WriteBytesIx(id, buffer, authority host.Address, offset uint32, finalize bool, b []byte) host.Instruction {
	return bufferIx(id, buffer, authority, WriteBytes{Offset: offset, Finalize: finalize, Bytes: b})
}

// CloseBufferIx marks the authority writable so it can receive the balance
func CloseBufferIx(id, buffer, authority host.Address) host.Instruction {
	return host.Instruction{
		ProgramID: id,
		Accounts:  []host.AccountMeta{host.Writable(buffer, false), host.Writable(authority, true)},
		Data:      EncodeControl(CloseBuffer{}),
	}
}

func CrankComputeIx(id, instructions, input, compute host.Address) host.Instruction {
	return host.Instruction{
		ProgramID: id,
		Accounts: []host.AccountMeta{
			host.ReadOnly(instructions, false),
			host.ReadOnly(input, false),
			host.Writable(compute, false),
		},
		Data: EncodeControl(CrankCompute{}),
	}
}

// NoopIx tags a transaction with the first bytes of the tagged hash of label
func NoopIx(id host.Address, label []byte) host.Instruction {
	var n Noop
	h := crank25519.TaggedHash(crank25519.TagNoop, label)
	copy(n.Tag[:], h[:NoopTagSize])
	return host.Instruction{ProgramID: id, Data: EncodeControl(n)}
}

func bufferIx(id, buffer, authority host.Address, c Control) host.Instruction {
	return host.Instruction{
		ProgramID: id,
		Accounts:  []host.AccountMeta{host.Writable(buffer, false), host.ReadOnly(authority, true)},
		Data:      EncodeControl(c),
	}
}
