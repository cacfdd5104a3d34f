package program

import (
	"github.com/pkg/errors"

	"crank25519.mleku.dev/host"
)

// initialize claims a zeroed, rent exempt buffer for the signing authority
func (p *Processor) initialize(ic *host.InvokeContext, c Initialize) error {
	accts, err := accounts(ic, 2)
	if err != nil {
		return err
	}
	buf, auth := accts[0], accts[1]
	if err := owned(ic, buf); err != nil {
		return err
	}
	switch {
	case !buf.IsWritable:
		return errors.WithMessagef(ErrInvalidArgument, "buffer %s is not writable", buf.Address)
	case !auth.IsSigner:
		return errors.WithMessagef(ErrInvalidArgument, "authority %s did not sign", auth.Address)
	case len(buf.Data) < HeaderSize:
		return errors.WithMessagef(ErrInvalidArgument, "buffer of %d bytes is shorter than its header", len(buf.Data))
	case !ic.Rent.IsExempt(buf.Lamports, len(buf.Data)):
		return errors.WithMessagef(ErrInvalidArgument, "balance %d below rent exemption %d", buf.Lamports, ic.Rent.MinimumBalance(len(buf.Data)))
	case ReadKey(buf.Data) != Uninitialized:
		return errors.WithMessagef(ErrInvalidArgument, "buffer is already %s", ReadKey(buf.Data))
	}

	switch c.Kind {
	case ComputeBufferV1:
		ComputeHeader{
			Key:          ComputeBufferV1,
			Authority:    auth.Address,
			Instructions: c.Instructions,
			Input:        c.Input,
		}.Write(buf.Data)
	case InstructionBufferV1, InputBufferV1:
		BufferHeader{Key: c.Kind, Authority: auth.Address}.Write(buf.Data)
	default:
		return errors.WithMessagef(ErrInvalidArgument, "cannot initialize %s", c.Kind)
	}
	logger.Debugw("initialized buffer", "buffer", buf.Address, "kind", c.Kind, "len", len(buf.Data))
	return nil
}

// writeBytes copies bytes into the body of an open instruction or input buffer
func (p *Processor) writeBytes(ic *host.InvokeContext, w WriteBytes) error {
	accts, err := accounts(ic, 2)
	if err != nil {
		return err
	}
	buf, auth := accts[0], accts[1]
	if err := owned(ic, buf); err != nil {
		return err
	}
	h, err := ReadBufferHeader(buf.Data)
	if err != nil {
		return err
	}
	end := uint64(w.Offset) + uint64(len(w.Bytes))
	switch {
	case !buf.IsWritable:
		return errors.WithMessagef(ErrInvalidArgument, "buffer %s is not writable", buf.Address)
	case !auth.IsSigner || h.Authority != auth.Address:
		return errors.WithMessagef(ErrInvalidArgument, "%s is not the signing authority", auth.Address)
	case h.Finalized:
		return errors.WithMessage(ErrInvalidArgument, "buffer is finalized")
	case w.Offset < HeaderSize:
		return errors.WithMessagef(ErrInvalidArgument, "write at %d overlaps the header", w.Offset)
	case end > uint64(len(buf.Data)):
		return errors.WithMessagef(ErrInvalidArgument, "write [%d, %d) exceeds buffer of %d bytes", w.Offset, end, len(buf.Data))
	}

	copy(buf.Data[w.Offset:], w.Bytes)
	if w.Finalize {
		h.Finalized = true
		h.Write(buf.Data)
	}
	logger.Debugw("wrote bytes", "buffer", buf.Address, "offset", w.Offset, "len", len(w.Bytes), "finalized", h.Finalized)
	return nil
}

// close hands the buffer's balance to its authority and clears its tag. The
// host drops the emptied account when the transaction commits.
func (p *Processor) close(ic *host.InvokeContext) error {
	accts, err := accounts(ic, 2)
	if err != nil {
		return err
	}
	buf, auth := accts[0], accts[1]
	if err := owned(ic, buf); err != nil {
		return err
	}
	recorded, err := authority(buf.Data)
	if err != nil {
		return err
	}
	switch {
	case !buf.IsWritable || !auth.IsWritable:
		return errors.WithMessage(ErrInvalidArgument, "buffer and authority must be writable")
	case !auth.IsSigner || recorded != auth.Address:
		return errors.WithMessagef(ErrInvalidArgument, "%s is not the signing authority", auth.Address)
	}

	auth.Lamports += buf.Lamports
	buf.Lamports = 0
	buf.Data[keyOffset] = byte(Uninitialized)
	logger.Debugw("closed buffer", "buffer", buf.Address, "authority", auth.Address)
	return nil
}
