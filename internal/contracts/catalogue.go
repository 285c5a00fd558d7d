package contracts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/yolodolo42/deployfi/internal/chain"
)

// Factory versions known to the catalogue.
const (
	VersionV1      = "v1"
	VersionV2      = "v2"
	VersionV3      = "v3"
	VersionV4      = "v4"
	VersionLending = "lending"
)

// CreationEventNames are the event names accepted by the heuristic scan when
// the exact creation event is not found.
var CreationEventNames = []string{"TokenCreated", "TokenDeployed", "PoolCreated"}

// Factory describes one factory version on one ABI variant. Differences between
// versions live here as data so the pipeline stays a single code path.
type Factory struct {
	Version        string
	Variant        chain.ABIVariant
	ABI            abi.ABI
	CreateMethod   string
	CreatedEvent   string
	FeeAccessor    string // empty when the factory charges no fee
	ApprovalExempt bool   // tokens from this factory need no router allowance
	LiquidityCall  bool   // tokens expose a payable addLiquidity(uint256)
	Presale        bool   // tokens may be presale-gated
	Pool           bool   // deploys lending pools rather than tokens
}

// Event returns the creation event definition.
func (f *Factory) Event() abi.Event {
	return f.ABI.Events[f.CreatedEvent]
}

// EventTopic returns topic0 of the creation event.
func (f *Factory) EventTopic() common.Hash {
	return f.ABI.Events[f.CreatedEvent].ID
}

// Create returns the call that deploys a new instance.
func (f *Factory) Create(args ...any) *ABICall {
	return &ABICall{ABI: &f.ABI, Method: f.CreateMethod, Args: args}
}

// CreateArgs orders named creation parameters the way this version's create
// method expects them. Parameters the method does not take are ignored.
func (f *Factory) CreateArgs(values map[string]any) ([]any, error) {
	m, ok := f.ABI.Methods[f.CreateMethod]
	if !ok {
		return nil, fmt.Errorf("%s factory has no %s method", f.Version, f.CreateMethod)
	}
	args := make([]any, 0, len(m.Inputs))
	for _, in := range m.Inputs {
		v, ok := values[in.Name]
		if !ok {
			return nil, fmt.Errorf("%s %s: missing argument %q", f.Version, f.CreateMethod, in.Name)
		}
		args = append(args, v)
	}
	return args, nil
}

// FeeCall returns the fee accessor call, or nil if the factory has none.
func (f *Factory) FeeCall() *ABICall {
	if f.FeeAccessor == "" {
		return nil
	}
	return &ABICall{ABI: &f.ABI, Method: f.FeeAccessor}
}

type catalogueKey struct {
	version string
	variant chain.ABIVariant
}

var catalogue = map[catalogueKey]*Factory{}

func register(f *Factory) {
	if _, ok := f.ABI.Methods[f.CreateMethod]; !ok {
		panic(fmt.Sprintf("factory %s/%s: missing method %s", f.Version, f.Variant, f.CreateMethod))
	}
	if _, ok := f.ABI.Events[f.CreatedEvent]; !ok {
		panic(fmt.Sprintf("factory %s/%s: missing event %s", f.Version, f.Variant, f.CreatedEvent))
	}
	if f.FeeAccessor != "" {
		if _, ok := f.ABI.Methods[f.FeeAccessor]; !ok {
			panic(fmt.Sprintf("factory %s/%s: missing fee accessor %s", f.Version, f.Variant, f.FeeAccessor))
		}
	}
	catalogue[catalogueKey{f.Version, f.Variant}] = f
}

func mustParse(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse abi: %v", err))
	}
	return parsed
}

func init() {
	v1 := mustParse(tokenFactoryV1JSON)
	v2 := mustParse(tokenFactoryV2JSON)
	v3 := mustParse(tokenFactoryV3JSON)
	v4 := mustParse(tokenFactoryV4JSON)
	lending := mustParse(lendingFactoryJSON)
	amoy := mustParse(amoyTokenFactoryJSON)

	register(&Factory{Version: VersionV1, Variant: chain.ABIStandard, ABI: v1,
		CreateMethod: "createToken", CreatedEvent: "TokenCreated", FeeAccessor: "deploymentFee"})
	register(&Factory{Version: VersionV2, Variant: chain.ABIStandard, ABI: v2,
		CreateMethod: "createToken", CreatedEvent: "TokenCreated", FeeAccessor: "deploymentFee",
		LiquidityCall: true})
	register(&Factory{Version: VersionV3, Variant: chain.ABIStandard, ABI: v3,
		CreateMethod: "createToken", CreatedEvent: "TokenDeployed", FeeAccessor: "creationFee",
		LiquidityCall: true, Presale: true})
	register(&Factory{Version: VersionV4, Variant: chain.ABIStandard, ABI: v4,
		CreateMethod: "createToken", CreatedEvent: "TokenDeployed", FeeAccessor: "creationFee",
		LiquidityCall: true, ApprovalExempt: true})
	register(&Factory{Version: VersionLending, Variant: chain.ABIStandard, ABI: lending,
		CreateMethod: "createPool", CreatedEvent: "PoolCreated", FeeAccessor: "poolCreationFee", Pool: true})

	register(&Factory{Version: VersionV1, Variant: chain.ABIAmoy, ABI: amoy,
		CreateMethod: "createToken", CreatedEvent: "TokenCreated"})
	register(&Factory{Version: VersionV2, Variant: chain.ABIAmoy, ABI: amoy,
		CreateMethod: "createToken", CreatedEvent: "TokenCreated", LiquidityCall: true})
	register(&Factory{Version: VersionLending, Variant: chain.ABIAmoy, ABI: lending,
		CreateMethod: "createPool", CreatedEvent: "PoolCreated", Pool: true})
}

// Lookup returns the factory description for version on variant.
func Lookup(version string, variant chain.ABIVariant) (*Factory, error) {
	f, ok := catalogue[catalogueKey{version, variant}]
	if !ok {
		return nil, fmt.Errorf("no %s ABI for factory version %s", variant, version)
	}
	return f, nil
}

// Versions returns every version registered for variant, sorted.
func Versions(variant chain.ABIVariant) []string {
	var out []string
	for k := range catalogue {
		if k.variant == variant {
			out = append(out, k.version)
		}
	}
	sort.Strings(out)
	return out
}

// KnownEvents returns every event declared by any registered factory, one per
// topic. The heuristic receipt scan matches logs against this set.
func KnownEvents() []abi.Event {
	seen := make(map[common.Hash]bool)
	var out []abi.Event
	for _, f := range catalogue {
		for _, ev := range f.ABI.Events {
			if seen[ev.ID] {
				continue
			}
			seen[ev.ID] = true
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sig < out[j].Sig })
	return out
}
