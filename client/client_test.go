package client

import (
	"context"
	"math/rand"
	"testing"

	"filippo.io/edwards25519"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	crank25519 "crank25519.mleku.dev"
	"crank25519.mleku.dev/dsl"
	"crank25519.mleku.dev/host"
	"crank25519.mleku.dev/program"
	"crank25519.mleku.dev/signer"
	"crank25519.mleku.dev/store"
)

var testProgramID = host.Address{0xc2, 0x55}

const airdrop = 1_000_000_000_000

// recorder counts committed transactions and the fees they paid, and can
// cancel a context once a number of them went through
type recorder struct {
	*host.Bank
	txs      int
	fees     uint64
	cancelAt int
	cancel   context.CancelFunc
}

func (r *recorder) ProcessTransaction(ctx context.Context, tx *host.Transaction) error {
	err := r.Bank.ProcessTransaction(ctx, tx)
	if err == nil {
		r.txs++
		r.fees += r.Bank.Fee(tx)
		if r.cancel != nil && r.txs == r.cancelAt {
			r.cancel()
		}
	}
	return err
}

func newClient(t *testing.T, opts Options) (*Client, *recorder, host.Address) {
	t.Helper()
	bank := host.NewBank(store.NewMemory(), host.Config{}, nil)
	require.NoError(t, bank.RegisterProgram(testProgramID, program.NewProcessor(nil)))
	payer, err := signer.Generate()
	require.NoError(t, err)
	addr := host.Address(payer.PublicKey())
	require.NoError(t, bank.Airdrop(addr, airdrop))
	r := &recorder{Bank: bank}
	return New(r, payer, testProgramID, opts), r, addr
}

// assertReclaimed checks that only the payer and the program account remain
// and that the payer lost nothing but fees
func assertReclaimed(t *testing.T, r *recorder, payer host.Address) {
	t.Helper()
	accounts, err := r.Accounts()
	require.NoError(t, err)
	assert.ElementsMatch(t, []host.Address{payer, testProgramID}, accounts)
	acct, err := r.GetAccount(payer)
	require.NoError(t, err)
	assert.Equal(t, uint64(airdrop)-r.fees, acct.Lamports)
}

func ceil(a, b int) int { return (a + b - 1) / b }

func TestRunMultiscalar(t *testing.T) {
	c, r, payer := newClient(t, Options{ChunkSize: 100, CrankBatch: 5, Label: "multiscalar"})

	base, err := crank25519.RistrettoBasepoint.Decompress()
	require.NoError(t, err)
	points := make([]*crank25519.EdwardsPoint, 3)
	enc := make([]crank25519.CompressedRistretto, 3)
	acc := crank25519.NewIdentity()
	for i := range points {
		acc = new(crank25519.EdwardsPoint).Add(acc, base)
		enc[i] = crank25519.CompressRistretto(acc)
		points[i], err = enc[i].Decompress()
		require.NoError(t, err)
	}
	rng := rand.New(rand.NewSource(21))
	scalars := make([]crank25519.Scalar, 3)
	for i := range scalars {
		var b [64]byte
		rng.Read(b[:])
		scalars[i], err = crank25519.ScalarFromUniformBytes(b[:])
		require.NoError(t, err)
	}

	job := dsl.MultiscalarJob{Groups: []int{2, 1}}
	prog, err := job.Compile()
	require.NoError(t, err)
	input, err := job.EncodeInput(enc, scalars)
	require.NoError(t, err)

	res, err := c.Run(context.Background(), prog, input)
	require.NoError(t, err)
	assert.Equal(t, prog.Len(), res.Cranks)
	require.Len(t, res.Regions, 2)

	got, err := res.Points()
	require.NoError(t, err)
	want0, err := crank25519.MultiscalarMul(scalars[:2], points[:2])
	require.NoError(t, err)
	want1, err := crank25519.MultiscalarMul(scalars[2:], points[2:])
	require.NoError(t, err)
	assert.True(t, crank25519.RistrettoEqual(want0, got[0]))
	assert.True(t, crank25519.RistrettoEqual(want1, got[1]))

	// three creations, the chunked uploads, the crank batches and three closes
	want := 3 + ceil(len(prog.Bytes()), 100) + ceil(len(input), 100) + ceil(prog.Len(), 5) + 3
	assert.Equal(t, want, r.txs)
	assertReclaimed(t, r, payer)
}

func TestRunRistrettoHash(t *testing.T) {
	c, r, payer := newClient(t, Options{})
	seeds := make([][32]byte, 2)
	for i := range seeds {
		seeds[i] = crank25519.HashToSeed(crank25519.TagRistrettoSeed, []byte{byte(i), 'c'})
	}
	job := dsl.RistrettoHashJob{Seeds: len(seeds)}
	prog, err := job.Compile()
	require.NoError(t, err)
	input, err := job.EncodeInput(seeds)
	require.NoError(t, err)

	res, err := c.Run(context.Background(), prog, input)
	require.NoError(t, err)
	got, err := res.Ristretto()
	require.NoError(t, err)
	for i := range seeds {
		p, err := crank25519.ElligatorRistrettoFlavor(seeds[i][:])
		require.NoError(t, err)
		assert.Equal(t, crank25519.CompressRistretto(p), got[i], "seed %d", i)
	}
	assertReclaimed(t, r, payer)
}

func TestRunEdwardsRoundTrip(t *testing.T) {
	c, r, payer := newClient(t, Options{CrankBatch: 1000})
	assert.Equal(t, host.DefaultConfig.MaxInstructionsPerTx, c.Options().CrankBatch)

	rng := rand.New(rand.NewSource(22))
	encodings := make([]crank25519.EdwardsY, 2)
	for i := range encodings {
		var b [64]byte
		rng.Read(b[:])
		k, err := new(edwards25519.Scalar).SetUniformBytes(b[:])
		require.NoError(t, err)
		copy(encodings[i][:], new(edwards25519.Point).ScalarBaseMult(k).Bytes())
	}
	job := dsl.EdwardsRoundTripJob{Points: len(encodings)}
	prog, err := job.Compile()
	require.NoError(t, err)
	input, err := job.EncodeInput(encodings)
	require.NoError(t, err)

	res, err := c.Run(context.Background(), prog, input)
	require.NoError(t, err)
	got, err := res.Encodings()
	require.NoError(t, err)
	for i := range encodings {
		assert.Equal(t, [32]byte(encodings[i]), got[i], "point %d", i)
	}
	_, err = res.Points()
	assert.Error(t, err)
	assertReclaimed(t, r, payer)
}

func TestRunRejectsInputLength(t *testing.T) {
	c, r, _ := newClient(t, Options{})
	prog, err := dsl.RistrettoHashJob{Seeds: 1}.Compile()
	require.NoError(t, err)

	_, err = c.Run(context.Background(), prog, make([]byte, 31))
	assert.ErrorIs(t, err, program.ErrInvalidArgument)
	assert.Zero(t, r.txs)
}

func TestRunClosesBuffersWhenCancelled(t *testing.T) {
	c, r, payer := newClient(t, Options{CrankBatch: 1})
	job := dsl.MontgomeryHashJob{Seeds: 1}
	prog, err := job.Compile()
	require.NoError(t, err)
	input, err := job.EncodeInput([][32]byte{{1, 2, 3}})
	require.NoError(t, err)
	require.Greater(t, prog.Len(), 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// cancel after the second crank
	chunk := c.Options().ChunkSize
	r.cancel = cancel
	r.cancelAt = 3 + ceil(len(prog.Bytes()), chunk) + ceil(len(input), chunk) + 2

	_, err = c.Run(ctx, prog, input)
	assert.ErrorIs(t, err, context.Canceled)
	assertReclaimed(t, r, payer)
}

func TestWriteEmptyBodyFinalizes(t *testing.T) {
	c, r, _ := newClient(t, Options{})
	ctx := context.Background()
	addr, err := c.createBuffer(ctx, program.InputBufferV1, program.HeaderSize+32)
	require.NoError(t, err)
	require.NoError(t, c.Write(ctx, addr, nil))

	acct, err := r.GetAccount(addr)
	require.NoError(t, err)
	h, err := program.ReadBufferHeader(acct.Data)
	require.NoError(t, err)
	assert.True(t, h.Finalized)
	require.NoError(t, c.Close(ctx, addr))
}
