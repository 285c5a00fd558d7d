package contracts_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yolodolo42/deployfi/internal/contracts"
	"github.com/yolodolo42/deployfi/internal/testutil"
)

func TestReaders(t *testing.T) {
	token := common.HexToAddress("0x2222222222222222222222222222222222222222")
	owner := common.HexToAddress("0x3333333333333333333333333333333333333333")

	reader := testutil.NewFakeReader()
	reader.Respond(token, contracts.FuncDecimals.Selector, math.U256Bytes(big.NewInt(6)))
	reader.Respond(token, contracts.FuncTotalSupply.Selector, math.U256Bytes(big.NewInt(1_000_000)))
	reader.Respond(token, contracts.FuncFinalized.Selector, math.U256Bytes(big.NewInt(1)))

	t.Run("decimals", func(t *testing.T) {
		d, err := contracts.ReadDecimals(context.Background(), reader, token)
		require.NoError(t, err)
		assert.Equal(t, uint8(6), d)
	})

	t.Run("uint", func(t *testing.T) {
		v, err := contracts.ReadUint(context.Background(), reader, token, contracts.FuncTotalSupply)
		require.NoError(t, err)
		assert.Equal(t, int64(1_000_000), v.Int64())
	})

	t.Run("bool", func(t *testing.T) {
		v, err := contracts.ReadBool(context.Background(), reader, token, contracts.FuncFinalized)
		require.NoError(t, err)
		assert.True(t, v)
	})

	t.Run("call arguments are encoded", func(t *testing.T) {
		reader.Respond(token, contracts.FuncAllowance.Selector, math.U256Bytes(big.NewInt(40)))
		v, err := contracts.ReadUint(context.Background(), reader, token, contracts.FuncAllowance, owner, owner)
		require.NoError(t, err)
		assert.Equal(t, int64(40), v.Int64())

		calls := reader.Calls()
		last := calls[len(calls)-1]
		assert.Len(t, last.Data, 4+32+32)
		assert.Equal(t, owner.Bytes(), last.Data[4+12:4+32])
	})
}
