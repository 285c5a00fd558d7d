package tx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/yolodolo42/deployfi/internal/chain"
	"github.com/yolodolo42/deployfi/internal/failure"
)

// Wallet submits envelopes on behalf of one account. Implementations must
// accept both legacy and fee-market envelopes and wrap failure.ErrUserRejected
// when the user declines to sign.
type Wallet interface {
	Address() common.Address
	SendTransaction(ctx context.Context, env *Envelope) (common.Hash, error)
}

const (
	DefaultSendTimeout     = 20 * time.Second
	DefaultConfirmTimeout  = 2 * time.Minute
	DefaultConfirmInterval = 2 * time.Second
)

// Submitter sends envelopes and waits for their receipts. It never resubmits.
type Submitter struct {
	reader   chain.Reader
	timeout  time.Duration
	interval time.Duration
	logger   *slog.Logger
}

// SubmitterOption configures a Submitter.
type SubmitterOption func(*Submitter)

// WithConfirmTimeout bounds how long SubmitAndConfirm waits for a receipt.
func WithConfirmTimeout(d time.Duration) SubmitterOption {
	return func(s *Submitter) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithPollInterval sets the receipt polling interval.
func WithPollInterval(d time.Duration) SubmitterOption {
	return func(s *Submitter) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLogger sets the submitter's logger.
func WithLogger(l *slog.Logger) SubmitterOption {
	return func(s *Submitter) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSubmitter creates a submitter confirming through reader.
func NewSubmitter(reader chain.Reader, opts ...SubmitterOption) *Submitter {
	s := &Submitter{
		reader:   reader,
		timeout:  DefaultConfirmTimeout,
		interval: DefaultConfirmInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitAndConfirm sends env through w and waits for a successful receipt.
// Every error returned is a *failure.Error; once a hash is known it is
// carried on the error.
func (s *Submitter) SubmitAndConfirm(ctx context.Context, w Wallet, env *Envelope) (*types.Receipt, error) {
	sendCtx, cancel := context.WithTimeout(ctx, DefaultSendTimeout)
	hash, err := w.SendTransaction(sendCtx, env)
	cancel()
	if err != nil {
		c := failure.Classify(err)
		s.logger.Warn("submission failed", "method", env.Method, "kind", c.Kind, "error", c.RawMessage)
		return nil, c
	}
	s.logger.Info("transaction submitted", "chain", env.ChainID, "method", env.Method, "tx", hash.Hex())

	receipt, err := s.Await(ctx, hash)
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, s.revertError(ctx, env, receipt)
	}
	return receipt, nil
}

// Await polls for the receipt of hash until it appears or the confirmation
// timeout passes. It can be called again after a ConfirmationTimeout to
// re-query the same hash.
func (s *Submitter) Await(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		receipt, err := s.reader.TransactionReceipt(waitCtx, hash)
		switch {
		case err == nil && receipt != nil:
			return receipt, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			s.logger.Debug("receipt poll failed", "tx", hash.Hex(), "error", err)
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				// Cancelled by the caller rather than timed out.
				c := failure.New(failure.KindUnknown, ctx.Err())
				c.TxHash = hash
				return nil, c
			}
			return nil, failure.ConfirmationTimeout(hash,
				fmt.Errorf("no receipt for %s after %s", hash.Hex(), s.timeout))
		case <-ticker.C:
		}
	}
}

// revertError replays the call at the receipt's block to recover the revert
// reason. Without a recognised reason the failure is an UnclassifiedRevert.
func (s *Submitter) revertError(ctx context.Context, env *Envelope, receipt *types.Receipt) *failure.Error {
	raw := fmt.Errorf("transaction %s reverted in block %v", receipt.TxHash.Hex(), receipt.BlockNumber)

	out := failure.New(failure.KindUnclassifiedRevert, raw)
	if _, err := s.reader.CallContract(ctx, env.CallMsg(), receipt.BlockNumber); err != nil {
		if c := failure.Classify(err); c.Kind == failure.KindContractValidation || c.Kind == failure.KindUnclassifiedRevert {
			out = c
		}
	}
	out.TxHash = receipt.TxHash
	s.logger.Warn("transaction reverted", "tx", receipt.TxHash.Hex(), "kind", out.Kind, "reason", out.Reason)
	return out
}
