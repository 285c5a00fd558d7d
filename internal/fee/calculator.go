package fee

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/yolodolo42/deployfi/internal/chain"
	"github.com/yolodolo42/deployfi/internal/contracts"
	"github.com/yolodolo42/deployfi/internal/failure"
)

// Source records where a quoted fee came from.
type Source string

const (
	SourceLive     Source = "live"
	SourceNoFee    Source = "no_fee"
	SourceFallback Source = "fallback"
)

// Policy decides what happens when the live fee read fails.
type Policy string

const (
	// PolicyDefault falls back to the last known good fee and logs a warning.
	PolicyDefault Policy = "default"
	// PolicyStrict aborts the deployment with the classified read error.
	PolicyStrict Policy = "strict"
)

// ParsePolicy parses a configured policy name. Empty selects PolicyDefault.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyDefault:
		return PolicyDefault, nil
	case PolicyStrict:
		return PolicyStrict, nil
	default:
		return "", failure.Configuration("unknown fee fallback policy %q", s)
	}
}

// DefaultFees are the fees used when a read fails and nothing was read
// successfully for that factory during this process.
var DefaultFees = map[string]*big.Int{
	contracts.VersionV1:      big.NewInt(1e15), // 0.001
	contracts.VersionV2:      big.NewInt(1e15),
	contracts.VersionV3:      big.NewInt(5e15), // 0.005
	contracts.VersionV4:      big.NewInt(5e15),
	contracts.VersionLending: big.NewInt(1e16), // 0.01
}

// Quote is a computed deployment fee in wei.
type Quote struct {
	Amount *big.Int
	Source Source
}

type quoteKey struct {
	chainID uint64
	version string
}

// Calculator computes deployment fees. It is safe for concurrent use.
type Calculator struct {
	policy   Policy
	defaults map[string]*big.Int
	retry    chain.RetryConfig
	logger   *slog.Logger

	mu       sync.RWMutex
	lastGood map[quoteKey]*big.Int
}

// NewCalculator creates a calculator with the given fallback policy.
func NewCalculator(policy Policy, logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{
		policy:   policy,
		defaults: DefaultFees,
		retry:    chain.DefaultRetryConfig,
		logger:   logger,
		lastGood: make(map[quoteKey]*big.Int),
	}
}

// WithRetry overrides the read retry settings.
func (c *Calculator) WithRetry(cfg chain.RetryConfig) *Calculator {
	c.retry = cfg
	return c
}

// Compute returns the fee the factory for version on profile's chain expects.
// No-fee chains and factories without a fee accessor cost zero and are never
// read. Compute has no side effects beyond the read and the last-known-good
// cache.
func (c *Calculator) Compute(ctx context.Context, reader chain.Reader, profile *chain.NetworkProfile, version string) (Quote, error) {
	factory, ok := profile.Factory(version)
	if !ok {
		return Quote{}, failure.Configuration("no %s factory configured on %s (chain %d)", version, profile.Name, profile.ChainID)
	}
	if profile.NoFee {
		return Quote{Amount: new(big.Int), Source: SourceNoFee}, nil
	}
	spec, err := contracts.Lookup(version, profile.ABIVariant)
	if err != nil {
		return Quote{}, failure.Configuration("%v", err)
	}
	call := spec.FeeCall()
	if call == nil {
		return Quote{Amount: new(big.Int), Source: SourceNoFee}, nil
	}

	amount, err := c.read(ctx, reader, call, factory)
	key := quoteKey{profile.ChainID, version}
	if err == nil {
		c.mu.Lock()
		c.lastGood[key] = new(big.Int).Set(amount)
		c.mu.Unlock()
		return Quote{Amount: amount, Source: SourceLive}, nil
	}

	if c.policy == PolicyStrict {
		classified := failure.Classify(err)
		c.logger.Error("fee read failed", "chain", profile.ChainID, "version", version, "kind", classified.Kind, "error", classified.RawMessage)
		return Quote{}, classified
	}

	fallback := c.fallback(key)
	c.logger.Warn("fee read failed, using fallback fee; the deployment may revert with InsufficientFee",
		"chain", profile.ChainID, "version", version, "fee", fallback.String(), "error", err)
	return Quote{Amount: fallback, Source: SourceFallback}, nil
}

func (c *Calculator) read(ctx context.Context, reader chain.Reader, call *contracts.ABICall, factory common.Address) (*big.Int, error) {
	data, err := call.Encode()
	if err != nil {
		return nil, err
	}
	out, err := chain.RetryRead(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return reader.CallContract(ctx, ethereum.CallMsg{To: &factory, Data: data}, nil)
	})
	if err != nil {
		return nil, err
	}
	values, err := call.Decode(out)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%s returned %d values", call.Method, len(values))
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s returned %T", call.Method, values[0])
	}
	return amount, nil
}

func (c *Calculator) fallback(key quoteKey) *big.Int {
	c.mu.RLock()
	last, ok := c.lastGood[key]
	c.mu.RUnlock()
	if ok {
		return new(big.Int).Set(last)
	}
	if d, ok := c.defaults[key.version]; ok {
		return new(big.Int).Set(d)
	}
	return new(big.Int)
}
