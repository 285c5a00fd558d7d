package listing

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yolodolo42/deployfi/internal/contracts"
	"github.com/yolodolo42/deployfi/internal/failure"
	"github.com/yolodolo42/deployfi/internal/tx"
)

// Method is a way of adding liquidity.
type Method string

const (
	// MethodToken calls the token's own addLiquidity.
	MethodToken Method = "token"
	// MethodRouter calls the router's addLiquidityETH directly.
	MethodRouter Method = "router"
)

const (
	DefaultSlippageBps = 500
	DefaultDeadline    = 20 * time.Minute
)

// LiquidityRequest is the amount pair to seed.
type LiquidityRequest struct {
	TokenAmount  *big.Int
	NativeAmount *big.Int
	SlippageBps  uint64 // zero selects DefaultSlippageBps
}

// LiquidityResult reports which method succeeded.
type LiquidityResult struct {
	Method   Method
	TxHash   common.Hash
	FellBack bool
}

// Engine adds liquidity with the token method first and falls back to the
// router once, only when the token method reverts.
type Engine struct {
	exec *Executor
	now  func() time.Time
}

// NewEngine creates an engine sending through exec.
func NewEngine(exec *Executor) *Engine {
	return &Engine{exec: exec, now: time.Now}
}

// AddLiquidity seeds liquidity for tok. A token without the addLiquidity
// entry point goes straight to the router. When both methods run, the
// returned error is the router's.
func (e *Engine) AddLiquidity(ctx context.Context, tok Token, req LiquidityRequest) (LiquidityResult, error) {
	if req.TokenAmount == nil || req.TokenAmount.Sign() <= 0 {
		return LiquidityResult{}, failure.Configuration("token amount must be positive")
	}
	if req.NativeAmount == nil || req.NativeAmount.Sign() <= 0 {
		return LiquidityResult{}, failure.Configuration("native amount must be positive")
	}

	if !tok.LiquidityCall {
		return e.viaRouter(ctx, tok, req, false)
	}

	rcpt, err := e.exec.Send(ctx, tok.Address,
		contracts.NewCall(contracts.FuncAddLiquidity, req.TokenAmount), req.NativeAmount, tx.DefaultDeployGas)
	if err == nil {
		return LiquidityResult{Method: MethodToken, TxHash: rcpt.TxHash}, nil
	}

	c := failure.Classify(err)
	if !revertFallback(c) || !e.exec.Profile().HasRouter() {
		return LiquidityResult{Method: MethodToken, TxHash: c.TxHash}, c
	}
	e.exec.logger.Warn("token liquidity call reverted, retrying through router",
		"token", tok.Address.Hex(), "kind", c.Kind, "reason", c.Reason, "error", c.RawMessage)
	return e.viaRouter(ctx, tok, req, true)
}

// revertFallback reports whether c is an execution revert. Rejections,
// timeouts and funding errors never fall back.
func revertFallback(c *failure.Error) bool {
	return c.Kind == failure.KindUnclassifiedRevert || c.Kind == failure.KindContractValidation
}

func (e *Engine) viaRouter(ctx context.Context, tok Token, req LiquidityRequest, fellBack bool) (LiquidityResult, error) {
	profile := e.exec.Profile()
	res := LiquidityResult{Method: MethodRouter, FellBack: fellBack}
	if !profile.HasRouter() {
		return res, failure.Configuration("no router configured on %s (chain %d)", profile.Name, profile.ChainID)
	}

	slippage := req.SlippageBps
	if slippage == 0 {
		slippage = DefaultSlippageBps
	}
	if slippage >= bpsDenominator {
		return res, failure.New(failure.KindConfiguration, fmt.Errorf("slippage %d bps out of range", slippage))
	}
	deadline := big.NewInt(e.now().Add(DefaultDeadline).Unix())

	call := contracts.NewCall(contracts.FuncAddLiquidityETH,
		tok.Address,
		req.TokenAmount,
		minAmount(req.TokenAmount, slippage),
		minAmount(req.NativeAmount, slippage),
		e.exec.Owner(),
		deadline,
	)
	rcpt, err := e.exec.Send(ctx, profile.Router, call, req.NativeAmount, tx.DefaultDeployGas)
	if err != nil {
		c := failure.Classify(err)
		res.TxHash = c.TxHash
		return res, c
	}
	res.TxHash = rcpt.TxHash
	return res, nil
}

func minAmount(amount *big.Int, slippageBps uint64) *big.Int {
	m := new(big.Int).Mul(amount, new(big.Int).SetUint64(bpsDenominator-slippageBps))
	return m.Div(m, big.NewInt(bpsDenominator))
}
