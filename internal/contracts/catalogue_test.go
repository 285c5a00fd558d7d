package contracts

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yolodolo42/deployfi/internal/chain"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		version   string
		variant   chain.ABIVariant
		event     string
		signature string
		fee       string
		exempt    bool
	}{
		{VersionV1, chain.ABIStandard, "TokenCreated", "TokenCreated(address,address,string,string,uint256)", "deploymentFee", false},
		{VersionV2, chain.ABIStandard, "TokenCreated", "TokenCreated(address,address,string,string,uint256)", "deploymentFee", false},
		{VersionV3, chain.ABIStandard, "TokenDeployed", "TokenDeployed(address,address,string,string,uint256)", "creationFee", false},
		{VersionV4, chain.ABIStandard, "TokenDeployed", "TokenDeployed(address,address,uint256)", "creationFee", true},
		{VersionLending, chain.ABIStandard, "PoolCreated", "PoolCreated(address,address,address,uint256,uint256)", "poolCreationFee", false},
		{VersionV1, chain.ABIAmoy, "TokenCreated", "TokenCreated(address,address)", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.version+"/"+string(tt.variant), func(t *testing.T) {
			f, err := Lookup(tt.version, tt.variant)
			require.NoError(t, err)
			assert.Equal(t, tt.event, f.CreatedEvent)
			assert.Equal(t, crypto.Keccak256Hash([]byte(tt.signature)), f.EventTopic())
			assert.Equal(t, tt.fee, f.FeeAccessor)
			assert.Equal(t, tt.exempt, f.ApprovalExempt)
			if tt.fee == "" {
				assert.Nil(t, f.FeeCall())
			} else {
				assert.Equal(t, tt.fee, f.FeeCall().Name())
			}
		})
	}

	t.Run("unknown version", func(t *testing.T) {
		_, err := Lookup("v9", chain.ABIStandard)
		assert.Error(t, err)
	})

	t.Run("amoy has no v3", func(t *testing.T) {
		_, err := Lookup(VersionV3, chain.ABIAmoy)
		assert.Error(t, err)
	})
}

func TestVersions(t *testing.T) {
	assert.Equal(t, []string{"lending", "v1", "v2", "v3", "v4"}, Versions(chain.ABIStandard))
	assert.Equal(t, []string{"lending", "v1", "v2"}, Versions(chain.ABIAmoy))
}

func TestEveryProfileVersionHasABI(t *testing.T) {
	for _, p := range chain.DefaultRegistry().Profiles() {
		for _, v := range p.Versions() {
			_, err := Lookup(v, p.ABIVariant)
			assert.NoError(t, err, "%s %s", p.Name, v)
		}
	}
}

func TestFactoryCreate(t *testing.T) {
	f, err := Lookup(VersionV2, chain.ABIStandard)
	require.NoError(t, err)

	call := f.Create("Test", "TST", uint8(18), big.NewInt(1_000_000))
	data, err := call.Encode()
	require.NoError(t, err)
	assert.Equal(t, f.ABI.Methods["createToken"].ID, data[:4])

	t.Run("wrong arity", func(t *testing.T) {
		_, err := f.Create("Test", "TST").Encode()
		assert.Error(t, err)
	})
}

func TestFactoryCreateArgs(t *testing.T) {
	values := map[string]any{
		"name":        "Test",
		"symbol":      "TST",
		"decimals":    uint8(18),
		"totalSupply": big.NewInt(1_000_000),
		"presale":     false,
	}

	tests := []struct {
		version string
		variant chain.ABIVariant
		arity   int
	}{
		{VersionV1, chain.ABIStandard, 3},
		{VersionV2, chain.ABIStandard, 4},
		{VersionV3, chain.ABIStandard, 5},
		{VersionV4, chain.ABIStandard, 4},
		{VersionV1, chain.ABIAmoy, 3},
	}
	for _, tt := range tests {
		t.Run(tt.version+"/"+string(tt.variant), func(t *testing.T) {
			f, err := Lookup(tt.version, tt.variant)
			require.NoError(t, err)

			args, err := f.CreateArgs(values)
			require.NoError(t, err)
			assert.Len(t, args, tt.arity)
			assert.Equal(t, "Test", args[0])

			_, err = f.Create(args...).Encode()
			assert.NoError(t, err)
		})
	}

	t.Run("missing argument", func(t *testing.T) {
		f, err := Lookup(VersionLending, chain.ABIStandard)
		require.NoError(t, err)
		_, err = f.CreateArgs(values)
		assert.ErrorContains(t, err, `missing argument "asset"`)
	})
}

func TestFuncCall(t *testing.T) {
	spender := common.HexToAddress("0x1111111111111111111111111111111111111111")
	call := NewCall(FuncApprove, spender, big.NewInt(40))

	data, err := call.Encode()
	require.NoError(t, err)
	assert.Equal(t, crypto.Keccak256([]byte("approve(address,uint256)"))[:4], data[:4])
	assert.Len(t, data, 4+32+32)
	assert.Equal(t, "approve(address,uint256)", call.Name())
}

func TestHasFunction(t *testing.T) {
	sel := FuncAddLiquidity.Selector
	code := append([]byte{0x60, 0x80, 0x63}, sel[:]...)
	code = append(code, 0x14, 0x61)

	assert.True(t, HasFunction(code, FuncAddLiquidity))
	assert.False(t, HasFunction(code, FuncFinalize))
	assert.False(t, HasFunction(nil, FuncFinalize))
	assert.False(t, HasFunction(bytes.Repeat([]byte{0}, 3), FuncFinalize))
}
