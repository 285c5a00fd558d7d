package tx

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/yolodolo42/deployfi/internal/contracts"
)

// Op is the kind of operation a request performs. It selects the default gas limit.
type Op string

const (
	OpDeploy Op = "deploy"
	OpCall   Op = "call"
)

// Gas limits used when a request does not set one. Deployments through a
// factory create a contract and cost far more than plain calls.
const (
	DefaultDeployGas uint64 = 3_000_000
	DefaultCallGas   uint64 = 300_000
	MaxGasLimit      uint64 = 15_000_000
)

// DefaultGasLimit returns the conservative gas limit for op.
func (o Op) DefaultGasLimit() uint64 {
	if o == OpDeploy {
		return DefaultDeployGas
	}
	return DefaultCallGas
}

// Request captures one state-changing call the user asked for. A request is
// consumed once and must not be mutated after it is submitted.
type Request struct {
	ChainID  uint64
	Version  string         // factory version; empty for calls on tokens or routers
	From     common.Address // sender, set from the wallet
	To       common.Address
	Call     contracts.Call
	Value    *big.Int // native value in wei; nil means zero
	GasLimit uint64   // zero selects Op.DefaultGasLimit
	Op       Op
}

// Method returns the name of the encoded call.
func (r Request) Method() string {
	if r.Call == nil {
		return ""
	}
	return r.Call.Name()
}

func (r Request) gasLimit() uint64 {
	if r.GasLimit > 0 {
		return r.GasLimit
	}
	return r.Op.DefaultGasLimit()
}

func (r Request) value() *big.Int {
	if r.Value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(r.Value)
}

// EscalateGas returns a copy of r with double the gas limit, capped at
// MaxGasLimit. It backs the "try again with higher gas" path after a failed
// attempt; the caller decides whether to resubmit.
func EscalateGas(r Request) Request {
	out := r
	if r.Value != nil {
		out.Value = new(big.Int).Set(r.Value)
	}
	out.GasLimit = min(r.gasLimit()*2, MaxGasLimit)
	return out
}

// Policy enforces safety constraints before a request is built.
type Policy struct {
	MaxValue *big.Int
	DenyTo   []common.Address
}

// Validate applies the deny list and the value limit.
func Validate(req Request, policy Policy) error {
	if req.Call == nil {
		return fmt.Errorf("call missing")
	}
	if req.To == (common.Address{}) {
		return fmt.Errorf("destination missing")
	}
	if req.Value != nil && req.Value.Sign() < 0 {
		return fmt.Errorf("value is negative")
	}

	for _, a := range policy.DenyTo {
		if a == req.To {
			return fmt.Errorf("destination denied by policy")
		}
	}
	if policy.MaxValue != nil && req.Value != nil && req.Value.Cmp(policy.MaxValue) > 0 {
		return fmt.Errorf("value exceeds max per tx limit")
	}
	return nil
}
