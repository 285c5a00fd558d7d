package wallet

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/yolodolo42/deployfi/internal/failure"
	"github.com/yolodolo42/deployfi/internal/tx"
)

// Backend is the chain-bound RPC surface a wallet needs.
type Backend interface {
	ChainID() uint64
	PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// ConfirmFunc is asked before every signature. Returning false rejects the
// transaction.
type ConfirmFunc func(env *tx.Envelope) bool

// Wallet nonces, signs and broadcasts envelopes for one account on one chain.
// Submissions are serialized so concurrent flows never reuse a nonce.
type Wallet struct {
	mu      sync.Mutex
	signer  Signer
	backend Backend
	confirm ConfirmFunc
}

// New creates a wallet. confirm may be nil to sign without asking.
func New(signer Signer, backend Backend, confirm ConfirmFunc) *Wallet {
	return &Wallet{signer: signer, backend: backend, confirm: confirm}
}

func (w *Wallet) Address() common.Address {
	return w.signer.Address()
}

// SendTransaction signs env with the next pending nonce and broadcasts it.
// A declined confirmation wraps failure.ErrUserRejected.
func (w *Wallet) SendTransaction(ctx context.Context, env *tx.Envelope) (common.Hash, error) {
	if env.ChainID != w.backend.ChainID() {
		return common.Hash{}, fmt.Errorf("envelope for chain %d sent to chain %d backend", env.ChainID, w.backend.ChainID())
	}
	if w.confirm != nil && !w.confirm(env) {
		return common.Hash{}, fmt.Errorf("%s: %w", env.Method, failure.ErrUserRejected)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	nonce, err := w.backend.PendingNonceAt(ctx, w.signer.Address())
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}

	signed, err := w.signer.SignTransaction(env.Unsigned(nonce), new(big.Int).SetUint64(env.ChainID))
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign tx: %w", err)
	}
	if err := w.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send tx: %w", err)
	}
	return signed.Hash(), nil
}
