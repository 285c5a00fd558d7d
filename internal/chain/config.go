package chain

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// TxStyle selects which fee fields a chain accepts.
type TxStyle string

const (
	TxStyleLegacy    TxStyle = "legacy"
	TxStyleFeeMarket TxStyle = "fee_market"
)

// ABIVariant selects the factory ABI family deployed on a chain.
type ABIVariant string

const (
	ABIStandard ABIVariant = "standard"
	ABIAmoy     ABIVariant = "amoy"
)

// Addresses that emit logs on every transaction on some chains and must never
// be mistaken for a deployed contract.
var (
	// Polygon PoS system contract emitting LogFeeTransfer.
	PolygonFeeContract = common.HexToAddress("0x0000000000000000000000000000000000001010")

	// BaseSystemAddresses apply to every chain.
	BaseSystemAddresses = []common.Address{
		{},
		PolygonFeeContract,
		common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"),
	}
)

// NetworkProfile holds everything the deployment pipeline needs to know about
// one chain. Profiles are built once and must not be mutated afterwards.
type NetworkProfile struct {
	Name            string
	ChainID         uint64
	RPCURLs         []string
	ExplorerURL     string
	NativeCurrency  string
	IsTestnet       bool
	NoFee           bool // factories on this chain charge no deployment fee
	Factories       map[string]common.Address
	Router          common.Address
	TxStyle         TxStyle
	ABIVariant      ABIVariant
	SystemAddresses []common.Address
}

// Versions returns the factory versions configured on this chain, sorted.
func (p *NetworkProfile) Versions() []string {
	versions := make([]string, 0, len(p.Factories))
	for v := range p.Factories {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions
}

// Factory returns the factory address for version, if configured.
func (p *NetworkProfile) Factory(version string) (common.Address, bool) {
	addr, ok := p.Factories[version]
	if !ok || addr == (common.Address{}) {
		return common.Address{}, false
	}
	return addr, true
}

// HasRouter reports whether a DEX router is configured.
func (p *NetworkProfile) HasRouter() bool {
	return p.Router != (common.Address{})
}

// IsSystemAddress reports whether addr is the zero address or a known system
// address on this chain.
func (p *NetworkProfile) IsSystemAddress(addr common.Address) bool {
	for _, a := range BaseSystemAddresses {
		if a == addr {
			return true
		}
	}
	for _, a := range p.SystemAddresses {
		if a == addr {
			return true
		}
	}
	return false
}

// AllSystemAddresses returns the base system addresses plus the chain's own.
func (p *NetworkProfile) AllSystemAddresses() []common.Address {
	out := make([]common.Address, 0, len(BaseSystemAddresses)+len(p.SystemAddresses))
	out = append(out, BaseSystemAddresses...)
	return append(out, p.SystemAddresses...)
}

// DefaultProfiles returns the built-in network table.
func DefaultProfiles() []NetworkProfile {
	return []NetworkProfile{
		{
			Name:           "Ethereum Mainnet",
			ChainID:        1,
			RPCURLs:        []string{"https://eth.llamarpc.com", "https://rpc.ankr.com/eth"},
			ExplorerURL:    "https://etherscan.io",
			NativeCurrency: "ETH",
			Factories: map[string]common.Address{
				"v3": common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"),
				"v4": common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984"),
			},
			Router:     common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"),
			TxStyle:    TxStyleFeeMarket,
			ABIVariant: ABIStandard,
		},
		{
			Name:           "Sepolia Testnet",
			ChainID:        11155111,
			RPCURLs:        []string{"https://rpc.sepolia.org", "https://sepolia.drpc.org"},
			ExplorerURL:    "https://sepolia.etherscan.io",
			NativeCurrency: "ETH",
			IsTestnet:      true,
			Factories: map[string]common.Address{
				"v2":      common.HexToAddress("0x3b1F5b6E9B0e5e0b0E5A2c8bE2E6bA7fA1d0C4e2"),
				"v3":      common.HexToAddress("0x8aD2b7b1F5E7c09d3D1c4E2a5f3B6c7D8e9F0a1B"),
				"v4":      common.HexToAddress("0x0227628f3F023bb0B980b67D528571c95c6DaC1c"),
				"lending": common.HexToAddress("0x6Ae43d3271ff6888e7Fc43Fd7321a503ff738951"),
			},
			Router:     common.HexToAddress("0xeE567Fe1712Faf6149d80dA1E6934E354124CfE3"),
			TxStyle:    TxStyleFeeMarket,
			ABIVariant: ABIStandard,
		},
		{
			Name:           "Polygon",
			ChainID:        137,
			RPCURLs:        []string{"https://polygon-rpc.com", "https://polygon.llamarpc.com"},
			ExplorerURL:    "https://polygonscan.com",
			NativeCurrency: "POL",
			Factories: map[string]common.Address{
				"v3": common.HexToAddress("0x9e5A52f57b3038F1B8EeE45F28b3C1967e22799C"),
				"v4": common.HexToAddress("0xA0c68C638235ee32657e8f720a23ceC1bFc77C77"),
			},
			Router:          common.HexToAddress("0xa5E0829CaCEd8fFDD4De3c43696c57F7D7A678ff"),
			TxStyle:         TxStyleFeeMarket,
			ABIVariant:      ABIStandard,
			SystemAddresses: []common.Address{PolygonFeeContract},
		},
		{
			Name:           "Polygon Amoy Testnet",
			ChainID:        80002,
			RPCURLs:        []string{"https://rpc-amoy.polygon.technology"},
			ExplorerURL:    "https://amoy.polygonscan.com",
			NativeCurrency: "POL",
			IsTestnet:      true,
			NoFee:          true,
			Factories: map[string]common.Address{
				"v1":      common.HexToAddress("0x4B2f2A0bE6cF36e3d7d3A1A5cA3a1D2F8fA4b6C1"),
				"v2":      common.HexToAddress("0x2C0E5e8bE4a8cD9e1D7A3b5f6C4a2E1f0D9c8B7a"),
				"lending": common.HexToAddress("0x7E1B4c5a3D2f9E8c6A0b1D3e5F7a9C2b4D6e8F0a"),
			},
			Router:          common.HexToAddress("0x8954AfA98594b838bda56FE4C12a09D7739D179b"),
			TxStyle:         TxStyleLegacy,
			ABIVariant:      ABIAmoy,
			SystemAddresses: []common.Address{PolygonFeeContract},
		},
		{
			Name:           "Base",
			ChainID:        8453,
			RPCURLs:        []string{"https://mainnet.base.org", "https://base.llamarpc.com"},
			ExplorerURL:    "https://basescan.org",
			NativeCurrency: "ETH",
			Factories: map[string]common.Address{
				"v4": common.HexToAddress("0x8909Dc15e40173Ff4699343b6eB8132c65e18eC6"),
			},
			Router:     common.HexToAddress("0x4752ba5DBc23f44D87826276BF6Fd6b1C372aD24"),
			TxStyle:    TxStyleFeeMarket,
			ABIVariant: ABIStandard,
			SystemAddresses: []common.Address{
				common.HexToAddress("0x4200000000000000000000000000000000000015"),
			},
		},
		{
			Name:           "Base Sepolia Testnet",
			ChainID:        84532,
			RPCURLs:        []string{"https://sepolia.base.org"},
			ExplorerURL:    "https://sepolia.basescan.org",
			NativeCurrency: "ETH",
			IsTestnet:      true,
			NoFee:          true,
			Factories: map[string]common.Address{
				"v3": common.HexToAddress("0x7Ae58f10f7849cA6F5fB71b7f45CB416c9204b1e"),
				"v4": common.HexToAddress("0x4648a43B2C14Da09FdF82B161150d3F634f40491"),
			},
			Router:     common.HexToAddress("0x1689E7B1F10000AE47eBfE339a4f69dECd19F602"),
			TxStyle:    TxStyleFeeMarket,
			ABIVariant: ABIStandard,
			SystemAddresses: []common.Address{
				common.HexToAddress("0x4200000000000000000000000000000000000015"),
			},
		},
		{
			Name:           "BNB Smart Chain",
			ChainID:        56,
			RPCURLs:        []string{"https://bsc-dataseed.bnbchain.org", "https://bsc.llamarpc.com"},
			ExplorerURL:    "https://bscscan.com",
			NativeCurrency: "BNB",
			Factories: map[string]common.Address{
				"v3": common.HexToAddress("0xcA143Ce32Fe78f1f7019d7d551a6402fC5350c73"),
				"v4": common.HexToAddress("0x0BFbCF9fa4f9C56B0F40a671Ad40E0805A091865"),
			},
			Router:     common.HexToAddress("0x10ED43C718714eb63d5aA57B78B54704E256024E"),
			TxStyle:    TxStyleLegacy,
			ABIVariant: ABIStandard,
		},
	}
}
