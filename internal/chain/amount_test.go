package chain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatBalance(t *testing.T) {
	t.Run("nil balance returns zero", func(t *testing.T) {
		assert.Equal(t, "0", FormatBalance(nil, 18))
	})

	t.Run("zero balance", func(t *testing.T) {
		assert.Equal(t, "0.000000", FormatBalance(big.NewInt(0), 18))
	})

	t.Run("1 ETH (18 decimals)", func(t *testing.T) {
		oneEth, _ := new(big.Int).SetString("1000000000000000000", 10)
		assert.Equal(t, "1.000000", FormatBalance(oneEth, 18))
	})

	t.Run("fee of 0.01 ETH", func(t *testing.T) {
		fee, _ := new(big.Int).SetString("10000000000000000", 10)
		assert.Equal(t, "0.010000", FormatBalance(fee, 18))
	})

	t.Run("6 decimals (USDC)", func(t *testing.T) {
		assert.Equal(t, "100.000000", FormatBalance(big.NewInt(100000000), 6))
	})

	t.Run("0 decimals", func(t *testing.T) {
		assert.Equal(t, "12345", FormatBalance(big.NewInt(12345), 0))
	})
}

func TestParseUnits(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		decimals uint8
		want     string
		wantErr  bool
	}{
		{"whole ether", "1", 18, "1000000000000000000", false},
		{"fractional ether", "1.5", 18, "1500000000000000000", false},
		{"leading dot", ".25", 18, "250000000000000000", false},
		{"token supply", "1000000", 18, "1000000000000000000000000", false},
		{"six decimals", "2.000001", 6, "2000001", false},
		{"too many decimals", "0.0000001", 6, "", true},
		{"negative", "-1", 18, "", true},
		{"garbage", "abc", 18, "", true},
		{"empty", "", 18, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUnits(tt.value, tt.decimals)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}
