package host

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrSystemInstruction reports a malformed or disallowed system instruction
var ErrSystemInstruction = errors.New("invalid system instruction")

// MaxAccountSize bounds the data length of a created account
const MaxAccountSize = 10 << 20

const (
	systemCreateAccount byte = iota
	systemTransfer
)

// InvokeContext is everything a program sees for one instruction
type InvokeContext struct {
	ProgramID Address
	Rent      Rent
	Accounts  []*AccountInfo
	Data      []byte
}

// Program executes instructions addressed to its ID
type Program interface {
	Process(ic *InvokeContext) error
}

// ProgramFunc adapts a function to Program
type ProgramFunc func(ic *InvokeContext) error

func (f ProgramFunc) Process(ic *InvokeContext) error { return f(ic) }

// CreateAccount funds a new account with space zero bytes assigned to owner.
// Both from and to sign.
func CreateAccount(from, to Address, lamports, space uint64, owner Address) Instruction {
	data := make([]byte, 1+8+8+AddressSize)
	data[0] = systemCreateAccount
	binary.LittleEndian.PutUint64(data[1:9], lamports)
	binary.LittleEndian.PutUint64(data[9:17], space)
	copy(data[17:], owner[:])
	return Instruction{
		ProgramID: SystemProgramID,
		Accounts:  []AccountMeta{Writable(from, true), Writable(to, true)},
		Data:      data,
	}
}

// Transfer moves lamports from a system-owned account
func Transfer(from, to Address, lamports uint64) Instruction {
	data := make([]byte, 1+8)
	data[0] = systemTransfer
	binary.LittleEndian.PutUint64(data[1:9], lamports)
	return Instruction{
		ProgramID: SystemProgramID,
		Accounts:  []AccountMeta{Writable(from, true), Writable(to, false)},
		Data:      data,
	}
}

// systemProgram creates accounts and moves lamports
type systemProgram struct{}

func (systemProgram) Process(ic *InvokeContext) error {
	if len(ic.Data) == 0 || len(ic.Accounts) < 2 {
		return errors.WithMessage(ErrSystemInstruction, "missing data or accounts")
	}
	from, to := ic.Accounts[0], ic.Accounts[1]
	if !from.IsSigner || !from.IsWritable || !to.IsWritable {
		return errors.WithMessage(ErrSystemInstruction, "funding account must sign and both must be writable")
	}
	if from.Owner != SystemProgramID {
		return errors.WithMessagef(ErrSystemInstruction, "funding account %s is not system owned", from.Address)
	}

	switch ic.Data[0] {
	case systemCreateAccount:
		if len(ic.Data) != 1+8+8+AddressSize {
			return errors.WithMessage(ErrSystemInstruction, "create account payload")
		}
		lamports := binary.LittleEndian.Uint64(ic.Data[1:9])
		space := binary.LittleEndian.Uint64(ic.Data[9:17])
		var owner Address
		copy(owner[:], ic.Data[17:])

		if !to.IsSigner {
			return errors.WithMessage(ErrSystemInstruction, "new account must sign")
		}
		if to.Lamports != 0 || len(to.Data) != 0 || to.Owner != SystemProgramID {
			return errors.WithMessagef(ErrSystemInstruction, "account %s already in use", to.Address)
		}
		if space > MaxAccountSize {
			return errors.WithMessagef(ErrSystemInstruction, "space %d exceeds %d", space, MaxAccountSize)
		}
		if from.Lamports < lamports {
			return errors.WithMessagef(ErrInsufficientFunds, "%s has %d, needs %d", from.Address, from.Lamports, lamports)
		}
		from.Lamports -= lamports
		to.Lamports = lamports
		to.Data = make([]byte, space)
		to.Owner = owner
		return nil

	case systemTransfer:
		if len(ic.Data) != 1+8 {
			return errors.WithMessage(ErrSystemInstruction, "transfer payload")
		}
		lamports := binary.LittleEndian.Uint64(ic.Data[1:9])
		if from.Lamports < lamports {
			return errors.WithMessagef(ErrInsufficientFunds, "%s has %d, needs %d", from.Address, from.Lamports, lamports)
		}
		from.Lamports -= lamports
		to.Lamports += lamports
		return nil
	}
	return errors.WithMessagef(ErrSystemInstruction, "unknown discriminant %d", ic.Data[0])
}
