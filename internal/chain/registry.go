package chain

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/yolodolo42/deployfi/internal/failure"
)

// ErrUnknownChain is wrapped by resolution failures for unconfigured chains.
var ErrUnknownChain = errors.New("unknown chain")

// Registry is the immutable chain id -> NetworkProfile table. It is safe for
// concurrent use because nothing mutates it after construction.
type Registry struct {
	profiles map[uint64]*NetworkProfile
}

// NewRegistry validates profiles and builds a registry. Each chain id must
// appear once and every configured factory must have a non-zero address.
func NewRegistry(profiles []NetworkProfile) (*Registry, error) {
	r := &Registry{profiles: make(map[uint64]*NetworkProfile, len(profiles))}
	for i := range profiles {
		p := profiles[i]
		if err := validateProfile(&p); err != nil {
			return nil, err
		}
		if _, dup := r.profiles[p.ChainID]; dup {
			return nil, fmt.Errorf("chain %d configured twice", p.ChainID)
		}
		p.Factories = cloneFactories(p.Factories)
		p.RPCURLs = append([]string(nil), p.RPCURLs...)
		p.SystemAddresses = append([]common.Address(nil), p.SystemAddresses...)
		r.profiles[p.ChainID] = &p
	}
	return r, nil
}

// DefaultRegistry builds a registry from DefaultProfiles.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultProfiles())
	if err != nil {
		panic(fmt.Sprintf("invalid default network table: %v", err))
	}
	return r
}

func validateProfile(p *NetworkProfile) error {
	if p.ChainID == 0 {
		return fmt.Errorf("network %q: chain id is required", p.Name)
	}
	if p.NativeCurrency == "" {
		return fmt.Errorf("chain %d: native currency is required", p.ChainID)
	}
	switch p.TxStyle {
	case TxStyleLegacy, TxStyleFeeMarket:
	case "":
		p.TxStyle = TxStyleFeeMarket
	default:
		return fmt.Errorf("chain %d: unknown tx style %q", p.ChainID, p.TxStyle)
	}
	switch p.ABIVariant {
	case ABIStandard, ABIAmoy:
	case "":
		p.ABIVariant = ABIStandard
	default:
		return fmt.Errorf("chain %d: unknown abi variant %q", p.ChainID, p.ABIVariant)
	}
	for version, addr := range p.Factories {
		if addr == (common.Address{}) {
			return fmt.Errorf("chain %d: factory %s has no address", p.ChainID, version)
		}
	}
	p.ExplorerURL = strings.TrimRight(p.ExplorerURL, "/")
	return nil
}

func cloneFactories(in map[string]common.Address) map[string]common.Address {
	out := make(map[string]common.Address, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Resolve returns the profile for chainID. A missing profile is a
// configuration error and is never retryable.
func (r *Registry) Resolve(chainID uint64) (*NetworkProfile, error) {
	p, ok := r.profiles[chainID]
	if !ok {
		return nil, failure.Configuration("%w: no network profile for chain %d", ErrUnknownChain, chainID)
	}
	return p, nil
}

// ResolveFactory returns the profile and the factory address for version.
func (r *Registry) ResolveFactory(chainID uint64, version string) (*NetworkProfile, common.Address, error) {
	p, err := r.Resolve(chainID)
	if err != nil {
		return nil, common.Address{}, err
	}
	addr, ok := p.Factory(version)
	if !ok {
		return nil, common.Address{}, failure.Configuration("no %s factory configured on %s (chain %d)", version, p.Name, chainID)
	}
	return p, addr, nil
}

// Lookup resolves a chain by numeric id or by case-insensitive name.
func (r *Registry) Lookup(input string) (*NetworkProfile, error) {
	if id, err := strconv.ParseUint(input, 10, 64); err == nil {
		return r.Resolve(id)
	}
	p, ok := lo.Find(r.Profiles(), func(p *NetworkProfile) bool {
		return strings.EqualFold(p.Name, input) || lo.Contains(aliases(p.Name), strings.ToLower(input))
	})
	if !ok {
		return nil, failure.Configuration("%w: %s", ErrUnknownChain, input)
	}
	return p, nil
}

// ChainIDs returns every configured chain id in ascending order.
func (r *Registry) ChainIDs() []uint64 {
	ids := lo.Keys(r.profiles)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Profiles returns every profile ordered by chain id.
func (r *Registry) Profiles() []*NetworkProfile {
	return lo.Map(r.ChainIDs(), func(id uint64, _ int) *NetworkProfile {
		return r.profiles[id]
	})
}

func slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}

// aliases are the lowercase names a profile answers to: its slug, and the
// slug without a trailing network kind ("sepolia-testnet" is also "sepolia").
func aliases(name string) []string {
	s := slug(name)
	short := strings.TrimSuffix(strings.TrimSuffix(s, "-testnet"), "-mainnet")
	return lo.Uniq([]string{s, short})
}
