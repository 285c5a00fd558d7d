package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NativeDecimals is the decimals of every supported native currency.
const NativeDecimals = 18

// NativeBalance represents a native currency balance
type NativeBalance struct {
	ChainID uint64   `json:"chain_id"`
	Symbol  string   `json:"symbol"`
	Balance *big.Int `json:"balance"`
}

// GetNativeBalance returns the native currency balance for an address
func (c *Client) GetNativeBalance(ctx context.Context, chainID uint64, address common.Address) (*NativeBalance, error) {
	profile, err := c.registry.Resolve(chainID)
	if err != nil {
		return nil, err
	}

	balance, err := c.GetBalance(ctx, chainID, address)
	if err != nil {
		return nil, err
	}

	return &NativeBalance{
		ChainID: chainID,
		Symbol:  profile.NativeCurrency,
		Balance: balance,
	}, nil
}

// FormatBalance formats a balance with decimals as a human-readable string
func FormatBalance(balance *big.Int, decimals uint8) string {
	if balance == nil {
		return "0"
	}

	divisor := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	balFloat := new(big.Float).SetInt(balance)
	result := new(big.Float).Quo(balFloat, divisor)

	// Format with appropriate precision
	if decimals > 6 {
		return result.Text('f', 6)
	}
	return result.Text('f', int(decimals))
}

// ParseUnits converts a decimal string such as "1.5" into base units.
func ParseUnits(value string, decimals uint8) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(value, "-") {
		return nil, fmt.Errorf("negative amount: %s", value)
	}

	whole, frac, _ := strings.Cut(value, ".")
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("amount %s has more than %d decimals", value, decimals)
	}
	if whole == "" {
		whole = "0"
	}
	digits := whole + frac + strings.Repeat("0", int(decimals)-len(frac))

	out, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", value)
	}
	return out, nil
}
