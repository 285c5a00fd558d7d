package tx

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/yolodolo42/deployfi/internal/chain"
)

// Envelope is a fully built, unsigned transaction request. Exactly one of the
// fee field groups is set, matching Style.
type Envelope struct {
	ChainID  uint64
	Style    chain.TxStyle
	From     common.Address
	To       common.Address
	Method   string
	Data     []byte
	Value    *big.Int
	GasLimit uint64

	GasPrice *big.Int // legacy

	MaxFee         *big.Int // fee market
	MaxPriorityFee *big.Int // fee market
}

// Unsigned returns the transaction for nonce in the envelope's style.
func (e *Envelope) Unsigned(nonce uint64) *types.Transaction {
	to := e.To
	if e.Style == chain.TxStyleLegacy {
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: e.GasPrice,
			Gas:      e.GasLimit,
			To:       &to,
			Value:    e.Value,
			Data:     e.Data,
		})
	}
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   new(big.Int).SetUint64(e.ChainID),
		Nonce:     nonce,
		GasTipCap: e.MaxPriorityFee,
		GasFeeCap: e.MaxFee,
		Gas:       e.GasLimit,
		To:        &to,
		Value:     e.Value,
		Data:      e.Data,
	})
}

// CallMsg returns the envelope as an eth_call message, used for pre-flight
// simulation and revert replay.
func (e *Envelope) CallMsg() ethereum.CallMsg {
	to := e.To
	msg := ethereum.CallMsg{
		From:  e.From,
		To:    &to,
		Gas:   e.GasLimit,
		Value: e.Value,
		Data:  e.Data,
	}
	if e.Style == chain.TxStyleLegacy {
		msg.GasPrice = e.GasPrice
	} else {
		msg.GasFeeCap = e.MaxFee
		msg.GasTipCap = e.MaxPriorityFee
	}
	return msg
}

// Builder assembles chain-appropriate envelopes.
type Builder struct {
	policy Policy
	logger *slog.Logger
}

// NewBuilder creates a builder enforcing policy.
func NewBuilder(policy Policy, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{policy: policy, logger: logger}
}

// Build reads a fee estimate through reader and assembles the envelope.
func (b *Builder) Build(ctx context.Context, req Request, profile *chain.NetworkProfile, reader chain.Reader) (*Envelope, error) {
	est, err := chain.RetryRead(ctx, chain.DefaultRetryConfig, reader.FeeEstimate)
	if err != nil {
		return nil, fmt.Errorf("fee estimate: %w", err)
	}
	return b.Assemble(req, profile, est)
}

// Assemble encodes the call and selects fee fields from the profile's style.
// A fee-market chain whose estimate lacks fee-market data degrades to a
// legacy envelope rather than failing.
func (b *Builder) Assemble(req Request, profile *chain.NetworkProfile, est chain.FeeEstimate) (*Envelope, error) {
	if err := Validate(req, b.policy); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	data, err := req.Call.Encode()
	if err != nil {
		return nil, err
	}

	env := &Envelope{
		ChainID:  profile.ChainID,
		Style:    profile.TxStyle,
		From:     req.From,
		To:       req.To,
		Method:   req.Method(),
		Data:     data,
		Value:    req.value(),
		GasLimit: req.gasLimit(),
	}

	if env.Style == chain.TxStyleFeeMarket {
		if est.SupportsFeeMarket() {
			env.MaxFee = new(big.Int).Set(est.MaxFee)
			env.MaxPriorityFee = new(big.Int).Set(est.MaxPriorityFee)
			return env, nil
		}
		b.logger.Warn("fee-market data unavailable, degrading to legacy transaction",
			"chain", profile.ChainID, "method", env.Method)
		env.Style = chain.TxStyleLegacy
	}

	switch {
	case est.GasPrice != nil:
		env.GasPrice = new(big.Int).Set(est.GasPrice)
	case est.MaxFee != nil:
		env.GasPrice = new(big.Int).Set(est.MaxFee)
	default:
		return nil, fmt.Errorf("no gas price available for chain %d", profile.ChainID)
	}
	return env, nil
}
