// Package program is the on-ledger side of the engine: it owns the
// instruction, input and compute buffers, and executes one DSL instruction
// per CrankCompute.
package program

import (
	"encoding/hex"

	"github.com/pkg/errors"

	crank25519 "crank25519.mleku.dev"
	"crank25519.mleku.dev/host"
	"crank25519.mleku.dev/logging"
)

var logger = logging.MustGetLogger("program")

// ID is the address the processor is conventionally registered at
var ID = host.Address(crank25519.TaggedHash("crank25519/program"))

// Processor implements host.Program
type Processor struct {
	metrics *Metrics
}

var _ host.Program = (*Processor)(nil)

// NewProcessor returns a processor. metrics may be nil.
func NewProcessor(metrics *Metrics) *Processor {
	return &Processor{metrics: metrics}
}

// Process decodes and runs one control instruction
func (p *Processor) Process(ic *host.InvokeContext) error {
	c, err := ParseControl(ic.Data)
	if err != nil {
		p.metrics.reject("malformed")
		logger.Warnw("malformed instruction", "error", err)
		return err
	}

	switch v := c.(type) {
	case Initialize:
		err = p.initialize(ic, v)
	case WriteBytes:
		err = p.writeBytes(ic, v)
	case CloseBuffer:
		err = p.close(ic)
	case CrankCompute:
		err = p.crank(ic)
	case Noop:
		logger.Debugw("noop", "tag", hex.EncodeToString(v.Tag[:]))
	default:
		err = errors.WithMessagef(ErrInvalidArgument, "unhandled %s", c.Discriminant())
	}
	if err != nil {
		p.metrics.reject(c.Discriminant().String())
		logger.Warnw("instruction rejected", "kind", c.Discriminant(), "error", err)
		return err
	}
	p.metrics.control(c.Discriminant())
	return nil
}

// accounts returns the first n accounts of ic, rejecting shorter lists
func accounts(ic *host.InvokeContext, n int) ([]*host.AccountInfo, error) {
	if len(ic.Accounts) < n {
		return nil, errors.WithMessagef(ErrInvalidArgument, "need %d accounts, got %d", n, len(ic.Accounts))
	}
	return ic.Accounts[:n], nil
}

// owned checks that every account belongs to the program
func owned(ic *host.InvokeContext, accts ...*host.AccountInfo) error {
	for _, a := range accts {
		if a.Owner != ic.ProgramID {
			return errors.WithMessagef(ErrInvalidArgument, "%s is owned by %s", a.Address, a.Owner)
		}
	}
	return nil
}
