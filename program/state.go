package program

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"crank25519.mleku.dev/dsl"
	"crank25519.mleku.dev/host"
)

// HeaderSize is the number of leading bytes of every buffer that hold its header
const HeaderSize = dsl.HeaderSize

// ErrInvalidArgument is the only error kind the program reports
var ErrInvalidArgument = dsl.ErrInvalidArgument

// Key is the buffer kind stored in byte 0
type Key uint8

const (
	Uninitialized Key = iota
	InputBufferV1
	ComputeBufferV1
	InstructionBufferV1
)

func (k Key) String() string {
	switch k {
	case Uninitialized:
		return "Uninitialized"
	case InputBufferV1:
		return "InputBufferV1"
	case ComputeBufferV1:
		return "ComputeBufferV1"
	case InstructionBufferV1:
		return "InstructionBufferV1"
	}
	return fmt.Sprintf("Key(%d)", uint8(k))
}

// Header field offsets. Instruction and input buffers share one layout.
const (
	keyOffset = 0

	bufferAuthorityOffset = 1
	bufferFinalizedOffset = 33

	computeCursorOffset       = 1
	computeAuthorityOffset    = 5
	computeInstructionsOffset = 37
	computeInputOffset        = 69
	computeHeaderLen          = 101
)

// ReadKey returns the kind of a buffer. Buffers shorter than a header are
// reported as uninitialized.
func ReadKey(data []byte) Key {
	if len(data) < HeaderSize {
		return Uninitialized
	}
	return Key(data[keyOffset])
}

// BufferHeader is the header of instruction and input buffers
type BufferHeader struct {
	Key       Key
	Authority host.Address
	Finalized bool
}

// ReadBufferHeader decodes the header of an instruction or input buffer
func ReadBufferHeader(data []byte) (BufferHeader, error) {
	var h BufferHeader
	if len(data) < HeaderSize {
		return h, errors.WithMessagef(ErrInvalidArgument, "buffer of %d bytes has no header", len(data))
	}
	h.Key = Key(data[keyOffset])
	if h.Key != InstructionBufferV1 && h.Key != InputBufferV1 {
		return h, errors.WithMessagef(ErrInvalidArgument, "%s is not an instruction or input buffer", h.Key)
	}
	copy(h.Authority[:], data[bufferAuthorityOffset:bufferFinalizedOffset])
	switch data[bufferFinalizedOffset] {
	case 0:
	case 1:
		h.Finalized = true
	default:
		return h, errors.WithMessagef(ErrInvalidArgument, "corrupt finalized flag %d", data[bufferFinalizedOffset])
	}
	return h, nil
}

// Write encodes h into the first bytes of data
func (h BufferHeader) Write(data []byte) {
	data[keyOffset] = byte(h.Key)
	copy(data[bufferAuthorityOffset:bufferFinalizedOffset], h.Authority[:])
	data[bufferFinalizedOffset] = 0
	if h.Finalized {
		data[bufferFinalizedOffset] = 1
	}
}

// ComputeHeader is the header of a compute buffer
type ComputeHeader struct {
	Key          Key
	Cursor       uint32
	Authority    host.Address
	Instructions host.Address
	Input        host.Address
}

// ReadComputeHeader decodes the header of a compute buffer
func ReadComputeHeader(data []byte) (ComputeHeader, error) {
	var h ComputeHeader
	if len(data) < HeaderSize {
		return h, errors.WithMessagef(ErrInvalidArgument, "buffer of %d bytes has no header", len(data))
	}
	h.Key = Key(data[keyOffset])
	if h.Key != ComputeBufferV1 {
		return h, errors.WithMessagef(ErrInvalidArgument, "%s is not a compute buffer", h.Key)
	}
	h.Cursor = binary.LittleEndian.Uint32(data[computeCursorOffset:computeAuthorityOffset])
	copy(h.Authority[:], data[computeAuthorityOffset:computeInstructionsOffset])
	copy(h.Instructions[:], data[computeInstructionsOffset:computeInputOffset])
	copy(h.Input[:], data[computeInputOffset:computeHeaderLen])
	return h, nil
}

// Write encodes h into the first bytes of data
func (h ComputeHeader) Write(data []byte) {
	data[keyOffset] = byte(h.Key)
	binary.LittleEndian.PutUint32(data[computeCursorOffset:computeAuthorityOffset], h.Cursor)
	copy(data[computeAuthorityOffset:computeInstructionsOffset], h.Authority[:])
	copy(data[computeInstructionsOffset:computeInputOffset], h.Instructions[:])
	copy(data[computeInputOffset:computeHeaderLen], h.Input[:])
}

// setCursor persists only the cursor field
func setCursor(data []byte, cursor uint32) {
	binary.LittleEndian.PutUint32(data[computeCursorOffset:computeAuthorityOffset], cursor)
}

// InstructionCount returns how many instructions fit in a buffer body
func InstructionCount(data []byte) int {
	if len(data) < HeaderSize {
		return 0
	}
	return (len(data) - HeaderSize) / dsl.InstructionSize
}

// authority returns the authority recorded in the header of any initialized buffer
func authority(data []byte) (host.Address, error) {
	switch ReadKey(data) {
	case InstructionBufferV1, InputBufferV1:
		h, err := ReadBufferHeader(data)
		return h.Authority, err
	case ComputeBufferV1:
		h, err := ReadComputeHeader(data)
		return h.Authority, err
	}
	return host.Address{}, errors.WithMessagef(ErrInvalidArgument, "buffer is %s", ReadKey(data))
}
