package contracts

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/lmittmann/w3"
)

// Call is an encodable contract call.
type Call interface {
	Name() string
	Encode() ([]byte, error)
}

// ABICall encodes Method with Args against a JSON ABI.
type ABICall struct {
	ABI    *abi.ABI
	Method string
	Args   []any
}

func (c *ABICall) Name() string { return c.Method }

func (c *ABICall) Encode() ([]byte, error) {
	data, err := c.ABI.Pack(c.Method, c.Args...)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", c.Method, err)
	}
	return data, nil
}

// Decode unpacks the return data of Method into its output values.
func (c *ABICall) Decode(output []byte) ([]any, error) {
	values, err := c.ABI.Unpack(c.Method, output)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.Method, err)
	}
	return values, nil
}

// FuncCall encodes a call to a w3 function definition.
type FuncCall struct {
	Func *w3.Func
	Args []any
}

func (c *FuncCall) Name() string { return c.Func.Signature }

func (c *FuncCall) Encode() ([]byte, error) {
	data, err := c.Func.EncodeArgs(c.Args...)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", c.Func.Signature, err)
	}
	return data, nil
}
