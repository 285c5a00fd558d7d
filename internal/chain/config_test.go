package chain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yolodolo42/deployfi/internal/failure"
)

func TestDefaultProfiles(t *testing.T) {
	profiles := DefaultProfiles()

	t.Run("returns all expected chains", func(t *testing.T) {
		expected := []uint64{1, 11155111, 137, 80002, 8453, 84532, 56}
		assert.Len(t, profiles, len(expected))
		ids := make(map[uint64]bool)
		for _, p := range profiles {
			ids[p.ChainID] = true
		}
		for _, id := range expected {
			assert.True(t, ids[id], "missing chain: %d", id)
		}
	})

	t.Run("amoy uses legacy transactions and its own abi", func(t *testing.T) {
		amoy, err := DefaultRegistry().Resolve(80002)
		require.NoError(t, err)

		assert.Equal(t, TxStyleLegacy, amoy.TxStyle)
		assert.Equal(t, ABIAmoy, amoy.ABIVariant)
		assert.True(t, amoy.NoFee)
		assert.True(t, amoy.IsSystemAddress(PolygonFeeContract))
	})

	t.Run("bsc uses legacy transactions", func(t *testing.T) {
		bsc, err := DefaultRegistry().Resolve(56)
		require.NoError(t, err)
		assert.Equal(t, TxStyleLegacy, bsc.TxStyle)
		assert.Equal(t, "BNB", bsc.NativeCurrency)
	})

	t.Run("all chains have RPC and explorer URLs", func(t *testing.T) {
		for _, p := range profiles {
			assert.NotEmpty(t, p.RPCURLs, "chain %d has no RPC URLs", p.ChainID)
			assert.NotEmpty(t, p.ExplorerURL, "chain %d has no explorer URL", p.ChainID)
		}
	})
}

func TestRegistry_Resolve(t *testing.T) {
	registry := DefaultRegistry()

	t.Run("every claimed version has a factory address", func(t *testing.T) {
		for _, id := range registry.ChainIDs() {
			p, err := registry.Resolve(id)
			require.NoError(t, err)
			for _, version := range p.Versions() {
				_, addr, err := registry.ResolveFactory(id, version)
				require.NoError(t, err)
				assert.NotEqual(t, common.Address{}, addr, "chain %d version %s", id, version)
			}
		}
	})

	t.Run("unsupported chain is a configuration error", func(t *testing.T) {
		p, err := registry.Resolve(999999)
		assert.Nil(t, p)
		require.Error(t, err)
		assert.ErrorIs(t, err, failure.ErrConfiguration)
		assert.ErrorIs(t, err, ErrUnknownChain)
		assert.False(t, failure.Classify(err).Retryable)
	})

	t.Run("sepolia has no v1 factory", func(t *testing.T) {
		p, addr, err := registry.ResolveFactory(11155111, "v1")
		assert.Nil(t, p)
		assert.Equal(t, common.Address{}, addr)
		assert.ErrorIs(t, err, failure.ErrConfiguration)
	})

	t.Run("lookup by name and id", func(t *testing.T) {
		byID, err := registry.Lookup("8453")
		require.NoError(t, err)
		byName, err := registry.Lookup("base")
		require.NoError(t, err)
		assert.Same(t, byID, byName)

		bySlug, err := registry.Lookup("polygon-amoy-testnet")
		require.NoError(t, err)
		assert.Equal(t, uint64(80002), bySlug.ChainID)

		short, err := registry.Lookup("polygon-amoy")
		require.NoError(t, err)
		assert.Equal(t, uint64(80002), short.ChainID)

		sepolia, err := registry.Lookup("Sepolia")
		require.NoError(t, err)
		assert.Equal(t, uint64(11155111), sepolia.ChainID, "not Base Sepolia")

		ethereum, err := registry.Lookup("ethereum")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), ethereum.ChainID)

		_, err = registry.Lookup("nowhere")
		assert.ErrorIs(t, err, ErrUnknownChain)
	})

	t.Run("chain ids are sorted", func(t *testing.T) {
		ids := registry.ChainIDs()
		for i := 1; i < len(ids); i++ {
			assert.Less(t, ids[i-1], ids[i])
		}
	})
}

func TestNewRegistry(t *testing.T) {
	base := NetworkProfile{Name: "Local", ChainID: 31337, NativeCurrency: "ETH"}

	t.Run("defaults style and variant", func(t *testing.T) {
		r, err := NewRegistry([]NetworkProfile{base})
		require.NoError(t, err)
		p, err := r.Resolve(31337)
		require.NoError(t, err)
		assert.Equal(t, TxStyleFeeMarket, p.TxStyle)
		assert.Equal(t, ABIStandard, p.ABIVariant)
	})

	t.Run("rejects duplicate chain ids", func(t *testing.T) {
		_, err := NewRegistry([]NetworkProfile{base, base})
		require.Error(t, err)
	})

	t.Run("rejects zero factory address", func(t *testing.T) {
		p := base
		p.Factories = map[string]common.Address{"v1": {}}
		_, err := NewRegistry([]NetworkProfile{p})
		require.Error(t, err)
	})

	t.Run("rejects unknown tx style", func(t *testing.T) {
		p := base
		p.TxStyle = "eip-4844"
		_, err := NewRegistry([]NetworkProfile{p})
		require.Error(t, err)
	})

	t.Run("does not alias caller maps", func(t *testing.T) {
		p := base
		p.Factories = map[string]common.Address{"v1": common.HexToAddress("0x01")}
		r, err := NewRegistry([]NetworkProfile{p})
		require.NoError(t, err)

		p.Factories["v2"] = common.HexToAddress("0x02")
		resolved, _ := r.Resolve(31337)
		assert.Equal(t, []string{"v1"}, resolved.Versions())
	})
}

func TestExplorerLink(t *testing.T) {
	p := &NetworkProfile{ExplorerURL: "https://sepolia.etherscan.io"}

	assert.Equal(t, "https://sepolia.etherscan.io/tx/0xabc", p.ExplorerLink(LinkTx, "0xabc"))
	assert.Equal(t, "https://sepolia.etherscan.io/address/0xdef", p.ExplorerLink(LinkAddress, "0xdef"))
	assert.Equal(t, "https://sepolia.etherscan.io/token/0x123", p.ExplorerLink(LinkToken, "0x123"))
	assert.Empty(t, (&NetworkProfile{}).ExplorerLink(LinkTx, "0xabc"))
	assert.Empty(t, p.ExplorerLink(LinkTx, ""))
}

func TestParseOverlay(t *testing.T) {
	raw := []byte(`
networks:
  - chain_id: 11155111
    factories:
      v1: "0x1111111111111111111111111111111111111111"
    explorer_url: https://sepolia.otterscan.io/
  - name: Local Anvil
    chain_id: 31337
    native_currency: ETH
    tx_style: legacy
    rpc_urls: ["http://localhost:8545"]
    factories:
      v4: "0x5FbDB2315678afecb367f032d93F642f64180aa3"
`)

	t.Run("merges and adds networks", func(t *testing.T) {
		profiles, err := ParseOverlay(raw, DefaultProfiles())
		require.NoError(t, err)

		r, err := NewRegistry(profiles)
		require.NoError(t, err)

		sepolia, addr, err := r.ResolveFactory(11155111, "v1")
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress("0x1111111111111111111111111111111111111111"), addr)
		assert.Equal(t, "https://sepolia.otterscan.io", sepolia.ExplorerURL)
		assert.Contains(t, sepolia.Versions(), "v4", "existing factories are kept")

		local, err := r.Resolve(31337)
		require.NoError(t, err)
		assert.Equal(t, TxStyleLegacy, local.TxStyle)
		assert.Equal(t, "Local Anvil", local.Name)
	})

	t.Run("does not mutate the base table", func(t *testing.T) {
		base := DefaultProfiles()
		_, err := ParseOverlay(raw, base)
		require.NoError(t, err)
		for _, p := range base {
			if p.ChainID == 11155111 {
				_, ok := p.Factories["v1"]
				assert.False(t, ok)
			}
		}
	})

	t.Run("explicit false clears a built-in flag", func(t *testing.T) {
		profiles, err := ParseOverlay([]byte("networks:\n  - chain_id: 80002\n    no_fee: false\n"), DefaultProfiles())
		require.NoError(t, err)
		r, err := NewRegistry(profiles)
		require.NoError(t, err)

		amoy, err := r.Resolve(80002)
		require.NoError(t, err)
		assert.False(t, amoy.NoFee)
		assert.True(t, amoy.IsTestnet, "unset flags are kept")
	})

	t.Run("omitted flags keep built-in values", func(t *testing.T) {
		profiles, err := ParseOverlay([]byte("networks:\n  - chain_id: 80002\n    name: Amoy\n"), DefaultProfiles())
		require.NoError(t, err)
		r, err := NewRegistry(profiles)
		require.NoError(t, err)

		amoy, err := r.Resolve(80002)
		require.NoError(t, err)
		assert.True(t, amoy.NoFee)
	})

	t.Run("explicit true sets a flag on a new network", func(t *testing.T) {
		profiles, err := ParseOverlay([]byte("networks:\n  - chain_id: 31337\n    name: Local\n    is_testnet: true\n    no_fee: true\n"), nil)
		require.NoError(t, err)
		require.Len(t, profiles, 1)
		assert.True(t, profiles[0].IsTestnet)
		assert.True(t, profiles[0].NoFee)
	})

	t.Run("rejects invalid address", func(t *testing.T) {
		_, err := ParseOverlay([]byte("networks:\n  - chain_id: 1\n    router: nope\n"), DefaultProfiles())
		require.Error(t, err)
	})

	t.Run("rejects missing chain id", func(t *testing.T) {
		_, err := ParseOverlay([]byte("networks:\n  - name: x\n"), nil)
		require.Error(t, err)
	})
}
