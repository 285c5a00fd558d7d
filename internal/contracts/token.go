package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"
	"github.com/yolodolo42/deployfi/internal/chain"
)

// Token, router and presale functions shared by every factory version.
var (
	FuncTotalSupply = w3.MustNewFunc("totalSupply()", "uint256")
	FuncDecimals    = w3.MustNewFunc("decimals()", "uint8")
	FuncAllowance   = w3.MustNewFunc("allowance(address owner,address spender)", "uint256")
	FuncApprove     = w3.MustNewFunc("approve(address spender,uint256 amount)", "bool")

	// Contract-mediated liquidity on v2+ tokens.
	FuncAddLiquidity = w3.MustNewFunc("addLiquidity(uint256 tokenAmount)", "")

	// Uniswap V2 style router.
	FuncAddLiquidityETH = w3.MustNewFunc(
		"addLiquidityETH(address token,uint256 amountTokenDesired,uint256 amountTokenMin,uint256 amountETHMin,address to,uint256 deadline)",
		"uint256 amountToken,uint256 amountETH,uint256 liquidity",
	)

	FuncFinalized         = w3.MustNewFunc("finalized()", "bool")
	FuncPresaleDeadline   = w3.MustNewFunc("presaleDeadline()", "uint256")
	FuncTotalRaised       = w3.MustNewFunc("totalRaised()", "uint256")
	FuncSoftCap           = w3.MustNewFunc("softCap()", "uint256")
	FuncFinalize          = w3.MustNewFunc("finalize()", "")
	FuncBurnUnsold        = w3.MustNewFunc("burnUnsold()", "")
	FuncCancelAndWithdraw = w3.MustNewFunc("cancelAndWithdraw()", "")
)

// NewCall builds a FuncCall for fn.
func NewCall(fn *w3.Func, args ...any) *FuncCall {
	return &FuncCall{Func: fn, Args: args}
}

// HasFunction reports whether code contains the 4-byte selector of fn. It is a
// cheap heuristic: solidity dispatchers embed every selector as a PUSH4.
func HasFunction(code []byte, fn *w3.Func) bool {
	if len(code) < 4 {
		return false
	}
	sel := fn.Selector
	for i := 0; i+4 <= len(code); i++ {
		if code[i] == sel[0] && code[i+1] == sel[1] && code[i+2] == sel[2] && code[i+3] == sel[3] {
			return true
		}
	}
	return false
}

// ReadUint calls a uint256 getter on target.
func ReadUint(ctx context.Context, reader chain.Reader, target common.Address, fn *w3.Func, args ...any) (*big.Int, error) {
	out, err := read(ctx, reader, target, fn, args...)
	if err != nil {
		return nil, err
	}
	var v *big.Int
	if err := fn.DecodeReturns(out, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", fn.Signature, err)
	}
	return v, nil
}

// ReadDecimals returns the token's decimals.
func ReadDecimals(ctx context.Context, reader chain.Reader, token common.Address) (uint8, error) {
	out, err := read(ctx, reader, token, FuncDecimals)
	if err != nil {
		return 0, err
	}
	var v uint8
	if err := FuncDecimals.DecodeReturns(out, &v); err != nil {
		return 0, fmt.Errorf("decode %s: %w", FuncDecimals.Signature, err)
	}
	return v, nil
}

// ReadBool calls a bool getter on target.
func ReadBool(ctx context.Context, reader chain.Reader, target common.Address, fn *w3.Func, args ...any) (bool, error) {
	out, err := read(ctx, reader, target, fn, args...)
	if err != nil {
		return false, err
	}
	var v bool
	if err := fn.DecodeReturns(out, &v); err != nil {
		return false, fmt.Errorf("decode %s: %w", fn.Signature, err)
	}
	return v, nil
}

func read(ctx context.Context, reader chain.Reader, target common.Address, fn *w3.Func, args ...any) ([]byte, error) {
	data, err := fn.EncodeArgs(args...)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", fn.Signature, err)
	}
	return chain.RetryRead(ctx, chain.DefaultRetryConfig, func(ctx context.Context) ([]byte, error) {
		return reader.CallContract(ctx, ethereum.CallMsg{To: &target, Data: data}, nil)
	})
}
