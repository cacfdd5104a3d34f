// Package client drives a compiled program through the ledger: it allocates
// the three buffers, uploads the instruction stream and input, cranks until
// the cursor reaches the end and reads the results back.
package client

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"crank25519.mleku.dev/dsl"
	"crank25519.mleku.dev/host"
	"crank25519.mleku.dev/logging"
	"crank25519.mleku.dev/program"
	"crank25519.mleku.dev/signer"
)

var logger = logging.MustGetLogger("client")

// Ledger is the part of host.Bank the client needs
type Ledger interface {
	ProcessTransaction(ctx context.Context, tx *host.Transaction) error
	GetAccount(a host.Address) (*host.Account, error)
	Rent() host.Rent
	Config() host.Config
}

var _ Ledger = (*host.Bank)(nil)

// Options tune how a run is split into transactions
type Options struct {
	// ChunkSize is the number of bytes carried by one WriteBytes
	ChunkSize int `mapstructure:"chunkSize"`
	// CrankBatch is the number of CrankCompute instructions per transaction
	CrankBatch int `mapstructure:"crankBatch"`
	// Timeout bounds a whole run; zero means no limit
	Timeout time.Duration `mapstructure:"timeout"`
	// Label, when set, adds a Noop derived from it to every buffer creation
	Label string `mapstructure:"label"`
}

// DefaultOptions fill the zero fields of the Options passed to New
var DefaultOptions = Options{
	ChunkSize:  800,
	CrankBatch: 32,
}

// Client submits transactions paid for and authorized by one key
type Client struct {
	ledger    Ledger
	payer     host.Signer
	programID host.Address
	opts      Options
	nonce     atomic.Uint64
}

// New returns a client. The payer is also the authority of every buffer it
// creates.
func New(ledger Ledger, payer host.Signer, programID host.Address, opts Options) *Client {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultOptions.ChunkSize
	}
	if opts.CrankBatch <= 0 {
		opts.CrankBatch = DefaultOptions.CrankBatch
	}
	if limit := ledger.Config().MaxInstructionsPerTx; limit > 0 && opts.CrankBatch > limit {
		opts.CrankBatch = limit
	}
	c := &Client{ledger: ledger, payer: payer, programID: programID, opts: opts}
	c.nonce.Store(uint64(time.Now().UnixNano()))
	return c
}

// Options returns the effective options
func (c *Client) Options() Options { return c.opts }

func (c *Client) authority() host.Address { return host.Address(c.payer.PublicKey()) }

// submit signs and processes one transaction
func (c *Client) submit(ctx context.Context, extra []host.Signer, ins ...host.Instruction) error {
	tx := host.NewTransaction(c.authority(), c.nonce.Add(1), ins...)
	if err := tx.Sign(append([]host.Signer{c.payer}, extra...)...); err != nil {
		return errors.Wrap(err, "signing transaction")
	}
	return c.ledger.ProcessTransaction(ctx, tx)
}

// Buffers are the addresses of one run's accounts
type Buffers struct {
	Instructions host.Address
	Input        host.Address
	Compute      host.Address
}

// Result is what a finished run leaves in its compute buffer
type Result struct {
	Buffers Buffers
	Layout  dsl.Layout
	// Regions holds a copy of every result region, in layout order
	Regions [][]byte
	// Cranks is the number of instructions executed
	Cranks int
}

// Run executes prog over input and returns the result regions. The buffers
// are closed before Run returns, whether or not the run succeeded.
func (c *Client) Run(ctx context.Context, prog *dsl.Program, input []byte) (res *Result, err error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}
	l := prog.Layout
	if len(input) != l.InputLen-dsl.HeaderSize {
		return nil, errors.WithMessagef(program.ErrInvalidArgument, "input is %d bytes, layout expects %d", len(input), l.InputLen-dsl.HeaderSize)
	}

	var b Buffers
	var created []host.Address
	defer func() {
		// cleanup must run even when ctx is done
		cleanup := context.WithoutCancel(ctx)
		for _, a := range created {
			if cerr := c.Close(cleanup, a); cerr != nil {
				logger.Warnw("failed to close buffer", "buffer", a, "error", cerr)
				if err == nil {
					err = cerr
					res = nil
				}
			}
		}
	}()

	create := func(kind program.Key, size int, refs ...host.Address) (host.Address, error) {
		addr, err := c.createBuffer(ctx, kind, size, refs...)
		if err == nil {
			created = append(created, addr)
		}
		return addr, err
	}

	if b.Instructions, err = create(program.InstructionBufferV1, l.InstructionLen); err != nil {
		return nil, errors.WithMessage(err, "instruction buffer")
	}
	if err = c.Write(ctx, b.Instructions, prog.Bytes()); err != nil {
		return nil, errors.WithMessage(err, "uploading instructions")
	}
	if b.Input, err = create(program.InputBufferV1, l.InputLen); err != nil {
		return nil, errors.WithMessage(err, "input buffer")
	}
	if err = c.Write(ctx, b.Input, input); err != nil {
		return nil, errors.WithMessage(err, "uploading input")
	}
	if b.Compute, err = create(program.ComputeBufferV1, l.ComputeLen, b.Instructions, b.Input); err != nil {
		return nil, errors.WithMessage(err, "compute buffer")
	}
	logger.Infow("buffers ready", "instructions", prog.Len(), "compute", b.Compute, "computeLen", l.ComputeLen)

	if err = c.Crank(ctx, b, prog.Len()); err != nil {
		return nil, err
	}

	acct, err := c.ledger.GetAccount(b.Compute)
	if err != nil {
		return nil, errors.Wrap(err, "reading compute buffer")
	}
	if acct == nil {
		return nil, errors.Errorf("compute buffer %s vanished", b.Compute)
	}
	res = &Result{Buffers: b, Layout: l, Cranks: prog.Len()}
	for i, r := range l.Results {
		v, err := r.View(acct.Data)
		if err != nil {
			return nil, errors.WithMessagef(err, "result %d", i)
		}
		res.Regions = append(res.Regions, append([]byte(nil), v...))
	}
	logger.Infow("run complete", "cranks", res.Cranks, "results", len(res.Regions))
	return res, nil
}

// createBuffer funds a rent exempt account of size bytes for the program and
// initializes it in the same transaction
func (c *Client) createBuffer(ctx context.Context, kind program.Key, size int, refs ...host.Address) (host.Address, error) {
	key, err := signer.Generate()
	if err != nil {
		return host.Address{}, err
	}
	addr := host.Address(key.PublicKey())
	auth := c.authority()

	var init host.Instruction
	switch kind {
	case program.InstructionBufferV1:
		init = program.InitializeInstructionBufferIx(c.programID, addr, auth)
	case program.InputBufferV1:
		init = program.InitializeInputBufferIx(c.programID, addr, auth)
	case program.ComputeBufferV1:
		if len(refs) != 2 {
			return host.Address{}, errors.WithMessage(program.ErrInvalidArgument, "compute buffer needs two references")
		}
		init = program.InitializeComputeBufferIx(c.programID, addr, auth, refs[0], refs[1])
	default:
		return host.Address{}, errors.WithMessagef(program.ErrInvalidArgument, "cannot create %s", kind)
	}

	ins := []host.Instruction{
		host.CreateAccount(auth, addr, c.ledger.Rent().MinimumBalance(size), uint64(size), c.programID),
		init,
	}
	if c.opts.Label != "" {
		ins = append(ins, program.NoopIx(c.programID, []byte(c.opts.Label)))
	}
	if err := c.submit(ctx, []host.Signer{key}, ins...); err != nil {
		return host.Address{}, err
	}
	logger.Debugw("created buffer", "buffer", addr, "kind", kind, "size", size)
	return addr, nil
}

// Write uploads body into an instruction or input buffer in ChunkSize pieces
// and finalizes it with the last piece.
func (c *Client) Write(ctx context.Context, buffer host.Address, body []byte) error {
	off := 0
	for {
		end := off + c.opts.ChunkSize
		if end > len(body) {
			end = len(body)
		}
		last := end == len(body)
		ix := program.WriteBytesIx(c.programID, buffer, c.authority(), uint32(dsl.HeaderSize+off), last, body[off:end])
		if err := c.submit(ctx, nil, ix); err != nil {
			return errors.WithMessagef(err, "write at %d", off)
		}
		if last {
			return nil
		}
		off = end
	}
}

// Crank issues n cranks in batches, checking ctx between batches
func (c *Client) Crank(ctx context.Context, b Buffers, n int) error {
	for done := 0; done < n; {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "stopped after %d of %d cranks", done, n)
		}
		batch := c.opts.CrankBatch
		if n-done < batch {
			batch = n - done
		}
		ins := make([]host.Instruction, batch)
		for i := range ins {
			ins[i] = program.CrankComputeIx(c.programID, b.Instructions, b.Input, b.Compute)
		}
		if err := c.submit(ctx, nil, ins...); err != nil {
			return errors.WithMessagef(err, "crank batch at %d", done)
		}
		done += batch
		logger.Debugw("cranked batch", "done", done, "total", n)
	}
	return nil
}

// Close reclaims a buffer's balance
func (c *Client) Close(ctx context.Context, buffer host.Address) error {
	return c.submit(ctx, nil, program.CloseBufferIx(c.programID, buffer, c.authority()))
}
