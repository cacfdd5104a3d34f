// Package host models the runtime the crank program executes in: accounts
// with balances and owners, rent exemption, signed transactions, the system
// program and a bank that applies transactions atomically.
package host

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/pkg/errors"
)

// AddressSize is the width of an account address
const AddressSize = 32

// Address identifies an account. Keyed accounts use their BIP-340 x-only
// public key.
type Address [AddressSize]byte

// SystemProgramID owns every account that has not been assigned elsewhere
var SystemProgramID = Address{}

// NativeLoaderID owns the executable accounts of registered programs
var NativeLoaderID = Address{'n', 'a', 't', 'i', 'v', 'e', '-', 'l', 'o', 'a', 'd', 'e', 'r'}

func (a Address) String() string { return hex.EncodeToString(a[:]) }

// IsZero reports whether a is the all-zero address
func (a Address) IsZero() bool { return a == Address{} }

// ParseAddress decodes a 64 character hex string
func ParseAddress(s string) (Address, error) {
	var a Address
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, errors.Wrapf(err, "invalid address %q", s)
	}
	if len(b) != AddressSize {
		return a, errors.Errorf("address %q is %d bytes", s, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// Account is the persisted state of an address
type Account struct {
	Lamports   uint64
	Owner      Address
	Executable bool
	Data       []byte
}

// Clone returns a deep copy of a
func (a *Account) Clone() *Account {
	c := *a
	c.Data = append([]byte(nil), a.Data...)
	return &c
}

const accountFixedSize = 8 + AddressSize + 1

// MarshalBinary encodes lamports, owner, the executable flag and the data
func (a *Account) MarshalBinary() ([]byte, error) {
	out := make([]byte, accountFixedSize+len(a.Data))
	binary.LittleEndian.PutUint64(out[0:8], a.Lamports)
	copy(out[8:40], a.Owner[:])
	if a.Executable {
		out[40] = 1
	}
	copy(out[accountFixedSize:], a.Data)
	return out, nil
}

// UnmarshalBinary decodes the encoding produced by MarshalBinary
func (a *Account) UnmarshalBinary(b []byte) error {
	if len(b) < accountFixedSize {
		return errors.Errorf("account encoding is %d bytes", len(b))
	}
	if b[40] > 1 {
		return errors.Errorf("invalid executable flag %d", b[40])
	}
	a.Lamports = binary.LittleEndian.Uint64(b[0:8])
	copy(a.Owner[:], b[8:40])
	a.Executable = b[40] == 1
	a.Data = append([]byte(nil), b[accountFixedSize:]...)
	return nil
}

// AccountInfo is the view of an account handed to a program for one
// instruction. Programs may change Lamports, Data contents and Owner subject
// to the bank's ownership rules. Data must not be resized except by the
// system program.
type AccountInfo struct {
	Address    Address
	IsSigner   bool
	IsWritable bool
	Lamports   uint64
	Owner      Address
	Executable bool
	Data       []byte
}

func newAccountInfo(meta AccountMeta, a *Account) *AccountInfo {
	return &AccountInfo{
		Address:    meta.Address,
		IsSigner:   meta.IsSigner,
		IsWritable: meta.IsWritable,
		Lamports:   a.Lamports,
		Owner:      a.Owner,
		Executable: a.Executable,
		Data:       append([]byte(nil), a.Data...),
	}
}

func (ai *AccountInfo) account() *Account {
	return &Account{
		Lamports:   ai.Lamports,
		Owner:      ai.Owner,
		Executable: ai.Executable,
		Data:       ai.Data,
	}
}
