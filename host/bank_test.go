package host

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crank25519.mleku.dev/signer"
	"crank25519.mleku.dev/store"
)

func newKey(t *testing.T) (*signer.Keypair, Address) {
	k, err := signer.Generate()
	require.NoError(t, err)
	return k, Address(k.PublicKey())
}

func newBank(t *testing.T) (*Bank, *Metrics) {
	m := NewMetrics(prometheus.NewRegistry())
	return NewBank(store.NewMemory(), Config{LamportsPerSignature: 10}, m), m
}

func balance(t *testing.T, b *Bank, a Address) uint64 {
	acct, err := b.GetAccount(a)
	require.NoError(t, err)
	if acct == nil {
		return 0
	}
	return acct.Lamports
}

func TestTransferCommits(t *testing.T) {
	b, m := newBank(t)
	payer, payerAddr := newKey(t)
	_, dest := newKey(t)
	require.NoError(t, b.Airdrop(payerAddr, 1000))

	tx := NewTransaction(payerAddr, 1, Transfer(payerAddr, dest, 300))
	require.NoError(t, tx.Sign(payer))
	require.NoError(t, b.ProcessTransaction(context.Background(), tx))

	assert.Equal(t, uint64(1000-300-10), balance(t, b, payerAddr))
	assert.Equal(t, uint64(300), balance(t, b, dest))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Transactions.WithLabelValues("committed")))

	// replaying the same transaction is refused
	err := b.ProcessTransaction(context.Background(), tx)
	assert.ErrorIs(t, err, ErrDuplicateTransaction)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Transactions.WithLabelValues("rejected")))
}

func TestSignatureChecks(t *testing.T) {
	b, _ := newBank(t)
	payer, payerAddr := newKey(t)
	other, otherAddr := newKey(t)
	require.NoError(t, b.Airdrop(payerAddr, 1000))

	tx := NewTransaction(payerAddr, 1, Transfer(payerAddr, otherAddr, 1))
	err := b.ProcessTransaction(context.Background(), tx)
	assert.ErrorIs(t, err, ErrMissingSignature)

	assert.ErrorIs(t, tx.Sign(other), ErrUnexpectedSigner)

	require.NoError(t, tx.Sign(payer))
	sig := tx.Signatures[payerAddr]
	sig[5] ^= 0x40
	tx.Signatures[payerAddr] = sig
	err = b.ProcessTransaction(context.Background(), tx)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	// a signature over a different message is rejected
	require.NoError(t, tx.Sign(payer))
	tx.Nonce++
	err = b.ProcessTransaction(context.Background(), tx)
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Equal(t, uint64(1000), balance(t, b, payerAddr))
}

func TestFailedInstructionRollsBack(t *testing.T) {
	b, _ := newBank(t)
	payer, payerAddr := newKey(t)
	_, dest := newKey(t)
	require.NoError(t, b.Airdrop(payerAddr, 1000))

	tx := NewTransaction(payerAddr, 1,
		Transfer(payerAddr, dest, 100),
		Transfer(payerAddr, dest, 5000),
	)
	require.NoError(t, tx.Sign(payer))
	err := b.ProcessTransaction(context.Background(), tx)

	var ie *InstructionError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, 1, ie.Index)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, uint64(1000), balance(t, b, payerAddr))
	assert.Equal(t, uint64(0), balance(t, b, dest))
}

func TestCreateAccountAndOwnership(t *testing.T) {
	b, _ := newBank(t)
	payer, payerAddr := newKey(t)
	acct, acctAddr := newKey(t)
	require.NoError(t, b.Airdrop(payerAddr, 1_000_000))

	programID := Address{0xaa}
	writes := 0
	require.NoError(t, b.RegisterProgram(programID, ProgramFunc(func(ic *InvokeContext) error {
		writes++
		if a := ic.Accounts[0]; len(a.Data) > 0 {
			a.Data[0] = 0x42
		} else {
			a.Lamports++
		}
		return nil
	})))
	assert.Error(t, b.RegisterProgram(programID, ProgramFunc(nil)))

	tx := NewTransaction(payerAddr, 1, CreateAccount(payerAddr, acctAddr, 5000, 16, programID))
	require.NoError(t, tx.Sign(payer, acct))
	require.NoError(t, b.ProcessTransaction(context.Background(), tx))

	got, err := b.GetAccount(acctAddr)
	require.NoError(t, err)
	assert.Equal(t, programID, got.Owner)
	assert.Len(t, got.Data, 16)
	assert.Equal(t, uint64(5000), got.Lamports)

	// the owner may write data
	tx = NewTransaction(payerAddr, 2, Instruction{ProgramID: programID, Accounts: []AccountMeta{Writable(acctAddr, false)}})
	require.NoError(t, tx.Sign(payer))
	require.NoError(t, b.ProcessTransaction(context.Background(), tx))
	got, err = b.GetAccount(acctAddr)
	require.NoError(t, err)
	assert.Equal(t, byte(0x42), got.Data[0])

	// a read-only account may not change
	tx = NewTransaction(payerAddr, 3, Instruction{ProgramID: programID, Accounts: []AccountMeta{ReadOnly(payerAddr, false)}})
	require.NoError(t, tx.Sign(payer))
	err = b.ProcessTransaction(context.Background(), tx)
	assert.ErrorIs(t, err, ErrAccountRule)

	// the system program may not take lamports from a program owned account
	tx = NewTransaction(payerAddr, 4, Transfer(acctAddr, payerAddr, 1))
	require.NoError(t, tx.Sign(payer, acct))
	err = b.ProcessTransaction(context.Background(), tx)
	assert.ErrorIs(t, err, ErrSystemInstruction)
	assert.Equal(t, 2, writes)
}

func TestAccountRules(t *testing.T) {
	prog := Address{1}
	other := Address{2}
	pre := &Account{Lamports: 10, Owner: prog, Data: []byte{0, 0}}

	post := func(f func(ai *AccountInfo)) *AccountInfo {
		ai := newAccountInfo(AccountMeta{IsWritable: true}, pre)
		f(ai)
		return ai
	}
	w := AccountMeta{IsWritable: true}

	assert.NoError(t, checkAccount(prog, w, pre, post(func(ai *AccountInfo) { ai.Data[1] = 1 })))
	assert.NoError(t, checkAccount(prog, w, pre, post(func(ai *AccountInfo) { ai.Lamports = 0 })))
	assert.NoError(t, checkAccount(prog, w, pre, post(func(ai *AccountInfo) { ai.Owner = other })))
	assert.NoError(t, checkAccount(other, w, pre, post(func(ai *AccountInfo) { ai.Lamports = 20 })))

	assert.ErrorIs(t, checkAccount(other, w, pre, post(func(ai *AccountInfo) { ai.Data[1] = 1 })), ErrAccountRule)
	assert.ErrorIs(t, checkAccount(other, w, pre, post(func(ai *AccountInfo) { ai.Lamports = 5 })), ErrAccountRule)
	assert.ErrorIs(t, checkAccount(prog, w, pre, post(func(ai *AccountInfo) { ai.Data = append(ai.Data, 0) })), ErrAccountRule)
	assert.ErrorIs(t, checkAccount(prog, AccountMeta{}, pre, post(func(ai *AccountInfo) { ai.Data[0] = 1 })), ErrAccountRule)
	assert.ErrorIs(t, checkAccount(prog, w, pre, post(func(ai *AccountInfo) { ai.Executable = true })), ErrAccountRule)
}

func TestInstructionLimits(t *testing.T) {
	b := NewBank(store.NewMemory(), Config{MaxInstructionsPerTx: 2}, nil)
	payer, payerAddr := newKey(t)
	require.NoError(t, b.Airdrop(payerAddr, 1000))

	tx := NewTransaction(payerAddr, 1,
		Transfer(payerAddr, payerAddr, 1),
		Transfer(payerAddr, payerAddr, 1),
		Transfer(payerAddr, payerAddr, 1),
	)
	require.NoError(t, tx.Sign(payer))
	assert.ErrorIs(t, b.ProcessTransaction(context.Background(), tx), ErrTooManyInstructions)

	tx = NewTransaction(payerAddr, 2, Instruction{ProgramID: Address{9}})
	require.NoError(t, tx.Sign(payer))
	assert.ErrorIs(t, b.ProcessTransaction(context.Background(), tx), ErrUnknownProgram)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.ProcessTransaction(ctx, tx), context.Canceled)
}

func TestZeroBalanceAccountsArePurged(t *testing.T) {
	b, _ := newBank(t)
	payer, payerAddr := newKey(t)
	_, dest := newKey(t)
	require.NoError(t, b.Airdrop(payerAddr, 110))

	tx := NewTransaction(payerAddr, 1, Transfer(payerAddr, dest, 100))
	require.NoError(t, tx.Sign(payer))
	require.NoError(t, b.ProcessTransaction(context.Background(), tx))

	got, err := b.GetAccount(payerAddr)
	require.NoError(t, err)
	assert.Nil(t, got)

	addrs, err := b.Accounts()
	require.NoError(t, err)
	assert.Equal(t, []Address{dest}, addrs)
}

func TestRent(t *testing.T) {
	assert.Equal(t, uint64(128*3480*2), DefaultRent.MinimumBalance(0))
	assert.Equal(t, uint64((128+1000)*3480*2), DefaultRent.MinimumBalance(1000))
	assert.True(t, DefaultRent.IsExempt(DefaultRent.MinimumBalance(10), 10))
	assert.False(t, DefaultRent.IsExempt(DefaultRent.MinimumBalance(10)-1, 10))
}

func TestAccountEncoding(t *testing.T) {
	a := &Account{Lamports: 77, Owner: Address{3}, Executable: true, Data: []byte{1, 2, 3}}
	enc, err := a.MarshalBinary()
	require.NoError(t, err)
	back := &Account{}
	require.NoError(t, back.UnmarshalBinary(enc))
	assert.Equal(t, a, back)

	enc[40] = 2
	assert.Error(t, back.UnmarshalBinary(enc))
	assert.Error(t, back.UnmarshalBinary(enc[:10]))

	addr, err := ParseAddress(Address{0xab}.String())
	require.NoError(t, err)
	assert.Equal(t, Address{0xab}, addr)
	_, err = ParseAddress("abcd")
	assert.Error(t, err)
}
