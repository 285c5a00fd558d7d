package listing

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/yolodolo42/deployfi/internal/chain"
	"github.com/yolodolo42/deployfi/internal/contracts"
	"github.com/yolodolo42/deployfi/internal/deploy"
	"github.com/yolodolo42/deployfi/internal/failure"
	"github.com/yolodolo42/deployfi/internal/tx"
)

// Executor sends the workflow's state-changing calls on one chain through
// one wallet.
type Executor struct {
	profile   *chain.NetworkProfile
	reader    chain.Reader
	wallet    tx.Wallet
	builder   *tx.Builder
	submitter *tx.Submitter
	logger    *slog.Logger
}

// NewExecutor creates an executor for profile's chain.
func NewExecutor(profile *chain.NetworkProfile, reader chain.Reader, wallet tx.Wallet, logger *slog.Logger, opts ...tx.SubmitterOption) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append(opts, tx.WithLogger(logger))
	return &Executor{
		profile:   profile,
		reader:    reader,
		wallet:    wallet,
		builder:   tx.NewBuilder(tx.Policy{}, logger),
		submitter: tx.NewSubmitter(reader, opts...),
		logger:    logger,
	}
}

// Profile returns the chain the executor sends on.
func (x *Executor) Profile() *chain.NetworkProfile { return x.profile }

// Reader returns the executor's chain reader.
func (x *Executor) Reader() chain.Reader { return x.reader }

// Owner returns the wallet address.
func (x *Executor) Owner() common.Address { return x.wallet.Address() }

// Send builds, submits and confirms one call. Returned errors are
// *failure.Error.
func (x *Executor) Send(ctx context.Context, to common.Address, call contracts.Call, value *big.Int, gasLimit uint64) (*types.Receipt, error) {
	env, err := x.builder.Build(ctx, tx.Request{
		ChainID:  x.profile.ChainID,
		From:     x.wallet.Address(),
		To:       to,
		Call:     call,
		Value:    value,
		GasLimit: gasLimit,
		Op:       tx.OpCall,
	}, x.profile, x.reader)
	if err != nil {
		return nil, x.fail(failure.Classify(err))
	}

	rcpt, err := x.submitter.SubmitAndConfirm(ctx, x.wallet, env)
	if err != nil {
		return rcpt, x.fail(failure.Classify(err))
	}
	return rcpt, nil
}

func (x *Executor) fail(c *failure.Error) *failure.Error {
	if c.ExplorerURL == "" && c.TxHash != (common.Hash{}) {
		c.ExplorerURL = x.profile.ExplorerLink(chain.LinkTx, c.TxHash.Hex())
	}
	deploy.FailuresTotal.WithLabelValues(string(c.Kind)).Inc()
	return c
}
