package host

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/pkg/errors"

	crank25519 "crank25519.mleku.dev"
)

var (
	ErrMissingSignature = errors.New("missing signature")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrUnexpectedSigner = errors.New("signer is not required by the transaction")
)

// SignatureSize is the width of a BIP-340 signature
const SignatureSize = 64

// Signer produces BIP-340 signatures over transaction digests
type Signer interface {
	PublicKey() [32]byte
	Sign(digest [32]byte) ([SignatureSize]byte, error)
}

// AccountMeta names an account used by an instruction and how
type AccountMeta struct {
	Address    Address
	IsSigner   bool
	IsWritable bool
}

// Writable returns a writable meta for a
func Writable(a Address, signer bool) AccountMeta {
	return AccountMeta{Address: a, IsSigner: signer, IsWritable: true}
}

// ReadOnly returns a read-only meta for a
func ReadOnly(a Address, signer bool) AccountMeta {
	return AccountMeta{Address: a, IsSigner: signer}
}

// Instruction invokes one program with an ordered list of accounts
type Instruction struct {
	ProgramID Address
	Accounts  []AccountMeta
	Data      []byte
}

// Transaction is a signed, ordered list of instructions applied atomically
type Transaction struct {
	FeePayer     Address
	Nonce        uint64
	Instructions []Instruction
	Signatures   map[Address][SignatureSize]byte
}

// NewTransaction returns an unsigned transaction
func NewTransaction(payer Address, nonce uint64, ins ...Instruction) *Transaction {
	return &Transaction{
		FeePayer:     payer,
		Nonce:        nonce,
		Instructions: ins,
		Signatures:   make(map[Address][SignatureSize]byte),
	}
}

// RequiredSigners lists the fee payer followed by every signer account, once
func (tx *Transaction) RequiredSigners() []Address {
	seen := map[Address]bool{tx.FeePayer: true}
	out := []Address{tx.FeePayer}
	for _, ix := range tx.Instructions {
		for _, m := range ix.Accounts {
			if m.IsSigner && !seen[m.Address] {
				seen[m.Address] = true
				out = append(out, m.Address)
			}
		}
	}
	return out
}

// Message returns the canonical encoding that signatures commit to
func (tx *Transaction) Message() []byte {
	var u32 [4]byte
	var u64 [8]byte
	out := append([]byte(nil), tx.FeePayer[:]...)
	binary.LittleEndian.PutUint64(u64[:], tx.Nonce)
	out = append(out, u64[:]...)
	binary.LittleEndian.PutUint32(u32[:], uint32(len(tx.Instructions)))
	out = append(out, u32[:]...)
	for _, ix := range tx.Instructions {
		out = append(out, ix.ProgramID[:]...)
		binary.LittleEndian.PutUint32(u32[:], uint32(len(ix.Accounts)))
		out = append(out, u32[:]...)
		for _, m := range ix.Accounts {
			var flags byte
			if m.IsSigner {
				flags |= 1
			}
			if m.IsWritable {
				flags |= 2
			}
			out = append(out, m.Address[:]...)
			out = append(out, flags)
		}
		binary.LittleEndian.PutUint32(u32[:], uint32(len(ix.Data)))
		out = append(out, u32[:]...)
		out = append(out, ix.Data...)
	}
	return out
}

// Digest is the tagged hash of the message
func (tx *Transaction) Digest() [32]byte {
	return crank25519.TaggedHash(crank25519.TagTransaction, tx.Message())
}

// Sign adds a signature from every signer. Each must be a required signer.
func (tx *Transaction) Sign(signers ...Signer) error {
	required := map[Address]bool{}
	for _, a := range tx.RequiredSigners() {
		required[a] = true
	}
	if tx.Signatures == nil {
		tx.Signatures = make(map[Address][SignatureSize]byte)
	}
	digest := tx.Digest()
	for _, s := range signers {
		addr := Address(s.PublicKey())
		if !required[addr] {
			return errors.WithMessagef(ErrUnexpectedSigner, "%s", addr)
		}
		sig, err := s.Sign(digest)
		if err != nil {
			return errors.Wrapf(err, "error signing with %s", addr)
		}
		tx.Signatures[addr] = sig
	}
	return nil
}

// Verify checks that every required signer has a valid signature
func (tx *Transaction) Verify() error {
	digest := tx.Digest()
	for _, addr := range tx.RequiredSigners() {
		raw, ok := tx.Signatures[addr]
		if !ok {
			return errors.WithMessagef(ErrMissingSignature, "%s", addr)
		}
		pub, err := schnorr.ParsePubKey(addr[:])
		if err != nil {
			return errors.WithMessagef(ErrInvalidSignature, "%s: %v", addr, err)
		}
		sig, err := schnorr.ParseSignature(raw[:])
		if err != nil {
			return errors.WithMessagef(ErrInvalidSignature, "%s: %v", addr, err)
		}
		if !sig.Verify(digest[:], pub) {
			return errors.WithMessagef(ErrInvalidSignature, "%s", addr)
		}
	}
	return nil
}
