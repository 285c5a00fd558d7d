package chain

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// networkFile is the on-disk shape of a registry overlay.
type networkFile struct {
	Networks []networkEntry `yaml:"networks"`
}

type networkEntry struct {
	Name            string            `yaml:"name"`
	ChainID         uint64            `yaml:"chain_id"`
	RPCURLs         []string          `yaml:"rpc_urls"`
	ExplorerURL     string            `yaml:"explorer_url"`
	NativeCurrency  string            `yaml:"native_currency"`
	IsTestnet       *bool             `yaml:"is_testnet"`
	NoFee           *bool             `yaml:"no_fee"`
	Factories       map[string]string `yaml:"factories"`
	Router          string            `yaml:"router"`
	TxStyle         string            `yaml:"tx_style"`
	ABIVariant      string            `yaml:"abi_variant"`
	SystemAddresses []string          `yaml:"system_addresses"`
}

// LoadOverlay reads a YAML network file and merges it over base. Entries for
// an existing chain id replace the fields they set; new chain ids are added.
func LoadOverlay(path string, base []NetworkProfile) ([]NetworkProfile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read network file: %w", err)
	}
	return ParseOverlay(raw, base)
}

// ParseOverlay is LoadOverlay for in-memory YAML.
func ParseOverlay(raw []byte, base []NetworkProfile) ([]NetworkProfile, error) {
	var file networkFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse network file: %w", err)
	}

	out := make([]NetworkProfile, len(base))
	copy(out, base)
	index := make(map[uint64]int, len(out))
	for i, p := range out {
		index[p.ChainID] = i
	}

	for _, entry := range file.Networks {
		if entry.ChainID == 0 {
			return nil, fmt.Errorf("network %q: chain_id is required", entry.Name)
		}
		i, exists := index[entry.ChainID]
		if !exists {
			out = append(out, NetworkProfile{ChainID: entry.ChainID})
			i = len(out) - 1
			index[entry.ChainID] = i
		}
		if err := entry.apply(&out[i]); err != nil {
			return nil, fmt.Errorf("chain %d: %w", entry.ChainID, err)
		}
	}
	return out, nil
}

func (e networkEntry) apply(p *NetworkProfile) error {
	if e.Name != "" {
		p.Name = e.Name
	}
	if len(e.RPCURLs) > 0 {
		p.RPCURLs = e.RPCURLs
	}
	if e.ExplorerURL != "" {
		p.ExplorerURL = e.ExplorerURL
	}
	if e.NativeCurrency != "" {
		p.NativeCurrency = e.NativeCurrency
	}
	if e.IsTestnet != nil {
		p.IsTestnet = *e.IsTestnet
	}
	if e.NoFee != nil {
		p.NoFee = *e.NoFee
	}
	if e.TxStyle != "" {
		p.TxStyle = TxStyle(e.TxStyle)
	}
	if e.ABIVariant != "" {
		p.ABIVariant = ABIVariant(e.ABIVariant)
	}

	if len(e.Factories) > 0 {
		factories := cloneFactories(p.Factories)
		for version, hex := range e.Factories {
			addr, err := parseAddress(hex)
			if err != nil {
				return fmt.Errorf("factory %s: %w", version, err)
			}
			factories[version] = addr
		}
		p.Factories = factories
	}
	if e.Router != "" {
		addr, err := parseAddress(e.Router)
		if err != nil {
			return fmt.Errorf("router: %w", err)
		}
		p.Router = addr
	}
	for _, hex := range e.SystemAddresses {
		addr, err := parseAddress(hex)
		if err != nil {
			return fmt.Errorf("system address: %w", err)
		}
		p.SystemAddresses = append(append([]common.Address(nil), p.SystemAddresses...), addr)
	}
	return nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
