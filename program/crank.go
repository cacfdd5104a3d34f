package program

import (
	"github.com/pkg/errors"

	"crank25519.mleku.dev/dsl"
	"crank25519.mleku.dev/host"
)

// crank executes the instruction at the compute buffer's cursor and advances
// the cursor by one. A rejected crank leaves the cursor where it was.
func (p *Processor) crank(ic *host.InvokeContext) error {
	accts, err := accounts(ic, 3)
	if err != nil {
		return err
	}
	instructions, input, compute := accts[0], accts[1], accts[2]
	if err := owned(ic, instructions, input, compute); err != nil {
		return err
	}
	if !compute.IsWritable {
		return errors.WithMessagef(ErrInvalidArgument, "compute buffer %s is not writable", compute.Address)
	}

	ch, err := ReadComputeHeader(compute.Data)
	if err != nil {
		return err
	}
	if ch.Instructions != instructions.Address || ch.Input != input.Address {
		return errors.WithMessage(ErrInvalidArgument, "buffers do not match the compute header")
	}
	ih, err := ReadBufferHeader(instructions.Data)
	if err != nil {
		return err
	}
	switch {
	case ih.Key != InstructionBufferV1:
		return errors.WithMessagef(ErrInvalidArgument, "instruction buffer is %s", ih.Key)
	case !ih.Finalized:
		return errors.WithMessage(ErrInvalidArgument, "instruction buffer is not finalized")
	}
	n := InstructionCount(instructions.Data)
	if int64(ch.Cursor) >= int64(n) {
		return errors.WithMessagef(ErrInvalidArgument, "cursor %d: program of %d instructions is complete", ch.Cursor, n)
	}

	off := HeaderSize + int(ch.Cursor)*dsl.InstructionSize
	ins, err := dsl.Decode(instructions.Data[off : off+dsl.InstructionSize])
	if err != nil {
		return errors.WithMessagef(err, "instruction %d", ch.Cursor)
	}

	setCursor(compute.Data, ch.Cursor+1)
	if err := execute(ins, compute.Data, input.Data); err != nil {
		setCursor(compute.Data, ch.Cursor)
		logger.Warnw("crank failed", "compute", compute.Address, "cursor", ch.Cursor, "instruction", ins.String(), "error", err)
		return errors.WithMessagef(err, "instruction %d (%s)", ch.Cursor, ins.Tag())
	}
	p.metrics.crank(ins.Tag().String())
	logger.Debugw("cranked", "compute", compute.Address, "cursor", ch.Cursor, "instruction", ins.String())
	return nil
}
