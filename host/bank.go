package host

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"crank25519.mleku.dev/logging"
	"crank25519.mleku.dev/store"
)

var logger = logging.MustGetLogger("host")

var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrTooManyInstructions  = errors.New("too many instructions")
	ErrUnknownProgram       = errors.New("unknown program")
	ErrAccountRule          = errors.New("account rule violated")
	ErrDuplicateAccount     = errors.New("account listed twice in one instruction")
	ErrDuplicateTransaction = errors.New("transaction already processed")
)

// InstructionError carries the index of the instruction that failed
type InstructionError struct {
	Index int
	Err   error
}

func (e *InstructionError) Error() string {
	return fmt.Sprintf("instruction %d: %v", e.Index, e.Err)
}

func (e *InstructionError) Unwrap() error { return e.Err }

// Config bounds transactions and prices signatures and storage
type Config struct {
	MaxInstructionsPerTx int    `mapstructure:"maxInstructionsPerTx"`
	LamportsPerSignature uint64 `mapstructure:"lamportsPerSignature"`
	Rent                 Rent   `mapstructure:"rent"`
}

// DefaultConfig is used for zero fields of the Config passed to NewBank
var DefaultConfig = Config{
	MaxInstructionsPerTx: 64,
	LamportsPerSignature: 5000,
	Rent:                 DefaultRent,
}

// Bank owns the account state. Transactions are applied one at a time, each
// to working copies that are committed to the store only when every
// instruction succeeds.
type Bank struct {
	mu       sync.Mutex
	store    store.Store
	config   Config
	programs map[Address]Program
	seen     map[[32]byte]struct{}
	metrics  *Metrics
}

// NewBank returns a bank over s. metrics may be nil.
func NewBank(s store.Store, config Config, metrics *Metrics) *Bank {
	if config.MaxInstructionsPerTx == 0 {
		config.MaxInstructionsPerTx = DefaultConfig.MaxInstructionsPerTx
	}
	if config.Rent == (Rent{}) {
		config.Rent = DefaultConfig.Rent
	}
	return &Bank{
		store:    s,
		config:   config,
		programs: map[Address]Program{SystemProgramID: systemProgram{}},
		seen:     make(map[[32]byte]struct{}),
		metrics:  metrics,
	}
}

// Rent returns the rent parameters programs are invoked with
func (b *Bank) Rent() Rent { return b.config.Rent }

// Config returns the active configuration
func (b *Bank) Config() Config { return b.config }

// Fee returns the fee charged for tx
func (b *Bank) Fee(tx *Transaction) uint64 {
	return uint64(len(tx.RequiredSigners())) * b.config.LamportsPerSignature
}

// RegisterProgram binds p to id and stores an executable account for it
func (b *Bank) RegisterProgram(id Address, p Program) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.programs[id]; ok {
		return errors.Errorf("program %s already registered", id)
	}
	acct := &Account{Lamports: 1, Owner: NativeLoaderID, Executable: true}
	if err := b.commit(map[Address]*Account{id: acct}); err != nil {
		return err
	}
	b.programs[id] = p
	logger.Infow("registered program", "id", id)
	return nil
}

// Airdrop credits lamports to a, creating a system account when needed
func (b *Bank) Airdrop(a Address, lamports uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	acct, err := b.load(a)
	if err != nil {
		return err
	}
	acct.Lamports += lamports
	return b.commit(map[Address]*Account{a: acct})
}

// GetAccount returns the stored account, or nil when it does not exist
func (b *Bank) GetAccount(a Address) (*Account, error) {
	raw, err := b.store.Get(a[:])
	if err != nil || raw == nil {
		return nil, err
	}
	acct := &Account{}
	if err := acct.UnmarshalBinary(raw); err != nil {
		return nil, errors.WithMessagef(err, "account %s", a)
	}
	return acct, nil
}

// Accounts lists every stored address
func (b *Bank) Accounts() ([]Address, error) {
	keys, err := b.store.Keys()
	if err != nil {
		return nil, err
	}
	out := make([]Address, 0, len(keys))
	for _, k := range keys {
		if len(k) != AddressSize {
			continue
		}
		out = append(out, Address(k))
	}
	return out, nil
}

// load returns a copy of the account at a, or an empty system account
func (b *Bank) load(a Address) (*Account, error) {
	acct, err := b.GetAccount(a)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return &Account{Owner: SystemProgramID}, nil
	}
	return acct, nil
}

// commit writes accounts, deleting those left without lamports
func (b *Bank) commit(accounts map[Address]*Account) error {
	puts := make(map[string][]byte, len(accounts))
	var deletes []string
	for a, acct := range accounts {
		if acct.Lamports == 0 {
			deletes = append(deletes, string(a[:]))
			continue
		}
		enc, err := acct.MarshalBinary()
		if err != nil {
			return err
		}
		puts[string(a[:])] = enc
	}
	return b.store.Commit(puts, deletes)
}

// ProcessTransaction verifies, charges and executes tx. Either every
// instruction succeeds and all changes are committed, or nothing changes.
// A failing instruction is reported as an *InstructionError.
func (b *Bank) ProcessTransaction(ctx context.Context, tx *Transaction) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer func() { b.metrics.observe(tx, err) }()

	if len(tx.Instructions) == 0 || len(tx.Instructions) > b.config.MaxInstructionsPerTx {
		return errors.WithMessagef(ErrTooManyInstructions, "%d instructions, limit %d", len(tx.Instructions), b.config.MaxInstructionsPerTx)
	}
	if err := tx.Verify(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	digest := tx.Digest()
	if _, ok := b.seen[digest]; ok {
		return errors.WithMessagef(ErrDuplicateTransaction, "%x", digest)
	}

	working := map[Address]*Account{}
	get := func(a Address) (*Account, error) {
		if acct, ok := working[a]; ok {
			return acct, nil
		}
		acct, err := b.load(a)
		if err != nil {
			return nil, err
		}
		working[a] = acct
		return acct, nil
	}

	payer, err := get(tx.FeePayer)
	if err != nil {
		return err
	}
	fee := b.Fee(tx)
	if payer.Lamports < fee {
		return errors.WithMessagef(ErrInsufficientFunds, "fee payer %s has %d, fee is %d", tx.FeePayer, payer.Lamports, fee)
	}
	payer.Lamports -= fee

	for i, ix := range tx.Instructions {
		if err := b.execute(ix, get, working); err != nil {
			logger.Warnw("transaction rejected", "instruction", i, "program", ix.ProgramID, "error", err)
			return &InstructionError{Index: i, Err: err}
		}
	}

	if err := b.commit(working); err != nil {
		return errors.WithMessage(err, "commit")
	}
	b.seen[digest] = struct{}{}
	logger.Debugw("committed transaction", "digest", fmt.Sprintf("%x", digest[:8]), "instructions", len(tx.Instructions), "accounts", len(working))
	return nil
}

// execute runs one instruction against the working set
func (b *Bank) execute(ix Instruction, get func(Address) (*Account, error), working map[Address]*Account) error {
	prog, ok := b.programs[ix.ProgramID]
	if !ok {
		return errors.WithMessagef(ErrUnknownProgram, "%s", ix.ProgramID)
	}

	pre := make([]*Account, len(ix.Accounts))
	infos := make([]*AccountInfo, len(ix.Accounts))
	listed := map[Address]bool{}
	for i, m := range ix.Accounts {
		if listed[m.Address] {
			return errors.WithMessagef(ErrDuplicateAccount, "%s", m.Address)
		}
		listed[m.Address] = true
		acct, err := get(m.Address)
		if err != nil {
			return err
		}
		pre[i] = acct.Clone()
		infos[i] = newAccountInfo(m, acct)
	}

	ic := &InvokeContext{ProgramID: ix.ProgramID, Rent: b.config.Rent, Accounts: infos, Data: ix.Data}
	if err := prog.Process(ic); err != nil {
		return err
	}

	var before, after uint64
	for i, info := range infos {
		if err := checkAccount(ix.ProgramID, ix.Accounts[i], pre[i], info); err != nil {
			return err
		}
		before += pre[i].Lamports
		after += info.Lamports
	}
	if before != after {
		return errors.WithMessagef(ErrAccountRule, "lamports not balanced: %d before, %d after", before, after)
	}
	for _, info := range infos {
		working[info.Address] = info.account()
	}
	return nil
}

// checkAccount enforces what a program may change on one account
func checkAccount(programID Address, meta AccountMeta, pre *Account, post *AccountInfo) error {
	owned := pre.Owner == programID
	dataChanged := !bytes.Equal(pre.Data, post.Data)
	changed := dataChanged || pre.Lamports != post.Lamports || pre.Owner != post.Owner || pre.Executable != post.Executable

	switch {
	case !changed:
		return nil
	case pre.Executable || post.Executable != pre.Executable:
		return errors.WithMessagef(ErrAccountRule, "%s: executable accounts are immutable", meta.Address)
	case !meta.IsWritable:
		return errors.WithMessagef(ErrAccountRule, "%s: read-only account modified", meta.Address)
	case post.Owner != pre.Owner && (!owned || !allZero(pre.Data)):
		return errors.WithMessagef(ErrAccountRule, "%s: owner changed by non-owner", meta.Address)
	case dataChanged && !owned:
		return errors.WithMessagef(ErrAccountRule, "%s: data changed by non-owner", meta.Address)
	case len(pre.Data) != len(post.Data) && (programID != SystemProgramID || len(pre.Data) != 0):
		return errors.WithMessagef(ErrAccountRule, "%s: data resized", meta.Address)
	case post.Lamports < pre.Lamports && !owned:
		return errors.WithMessagef(ErrAccountRule, "%s: lamports debited by non-owner", meta.Address)
	}
	return nil
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
