package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Reader is the read-only view of one chain used by the deployment pipeline.
type Reader interface {
	CodeAt(ctx context.Context, addr common.Address) ([]byte, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error)
	// TransactionReceipt returns ethereum.NotFound while the tx is pending.
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	FeeEstimate(ctx context.Context) (FeeEstimate, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// FeeEstimate carries either a legacy gas price, fee-market caps, or both.
type FeeEstimate struct {
	GasPrice       *big.Int
	MaxFee         *big.Int
	MaxPriorityFee *big.Int
}

// SupportsFeeMarket reports whether both fee-market caps are present.
func (f FeeEstimate) SupportsFeeMarket() bool {
	return f.MaxFee != nil && f.MaxPriorityFee != nil
}

// ChainReader binds a Client to a single chain. It also exposes the nonce and
// broadcast calls wallets need.
type ChainReader struct {
	client  *Client
	chainID uint64
}

// ChainID returns the chain the reader is bound to.
func (r *ChainReader) ChainID() uint64 {
	return r.chainID
}

func (r *ChainReader) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	return r.client.CodeAt(ctx, r.chainID, addr)
}

func (r *ChainReader) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	return r.client.CallContract(ctx, r.chainID, msg, block)
}

func (r *ChainReader) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return r.client.GetTransactionReceipt(ctx, r.chainID, hash)
}

func (r *ChainReader) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return r.client.FilterLogs(ctx, r.chainID, q)
}

func (r *ChainReader) FeeEstimate(ctx context.Context) (FeeEstimate, error) {
	return r.client.FeeEstimate(ctx, r.chainID)
}

func (r *ChainReader) BlockNumber(ctx context.Context) (uint64, error) {
	return r.client.BlockNumber(ctx, r.chainID)
}

func (r *ChainReader) PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	return r.client.GetNonce(ctx, r.chainID, addr)
}

func (r *ChainReader) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return r.client.SendTransaction(ctx, r.chainID, tx)
}
