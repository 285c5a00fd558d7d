package listing

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yolodolo42/deployfi/internal/contracts"
	"github.com/yolodolo42/deployfi/internal/failure"
	"github.com/yolodolo42/deployfi/internal/tx"
)

// LiquidityShareBps is the share of total supply approved for, and paired
// into, initial liquidity.
const LiquidityShareBps = 4000

const bpsDenominator = 10_000

// TargetAllowance returns the allowance the listing needs for totalSupply.
func TargetAllowance(totalSupply *big.Int) *big.Int {
	t := new(big.Int).Mul(totalSupply, big.NewInt(LiquidityShareBps))
	return t.Div(t, big.NewInt(bpsDenominator))
}

// ApprovalResult describes one approval action.
type ApprovalResult struct {
	Target    *big.Int
	Current   *big.Int
	Submitted bool
	Exempt    bool
	TxHash    common.Hash
}

// Approver grants a spender the target allowance on a token.
type Approver struct {
	exec *Executor
}

// NewApprover creates an approver sending through exec.
func NewApprover(exec *Executor) *Approver {
	return &Approver{exec: exec}
}

// Approve reads total supply and the current allowance and submits an
// approve only when the allowance is below target. Calling it again after a
// successful approval sends nothing.
func (a *Approver) Approve(ctx context.Context, token, spender common.Address) (ApprovalResult, error) {
	reader := a.exec.Reader()
	supply, err := contracts.ReadUint(ctx, reader, token, contracts.FuncTotalSupply)
	if err != nil {
		return ApprovalResult{}, failure.Classify(err)
	}
	res := ApprovalResult{Target: TargetAllowance(supply)}

	res.Current, err = contracts.ReadUint(ctx, reader, token, contracts.FuncAllowance, a.exec.Owner(), spender)
	if err != nil {
		return res, failure.Classify(err)
	}
	if res.Current.Cmp(res.Target) >= 0 {
		a.exec.logger.Info("allowance already sufficient, skipping approval",
			"token", token.Hex(), "spender", spender.Hex(), "allowance", res.Current.String())
		return res, nil
	}

	rcpt, err := a.exec.Send(ctx, token, contracts.NewCall(contracts.FuncApprove, spender, res.Target), nil, tx.DefaultCallGas)
	if err != nil {
		return res, err
	}
	res.Submitted = true
	res.TxHash = rcpt.TxHash
	a.exec.logger.Info("allowance granted", "token", token.Hex(), "spender", spender.Hex(), "amount", res.Target.String())
	return res, nil
}
