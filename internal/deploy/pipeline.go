package deploy

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yolodolo42/deployfi/internal/chain"
	"github.com/yolodolo42/deployfi/internal/contracts"
	"github.com/yolodolo42/deployfi/internal/failure"
	"github.com/yolodolo42/deployfi/internal/fee"
	"github.com/yolodolo42/deployfi/internal/receipt"
	"github.com/yolodolo42/deployfi/internal/tx"
)

// ErrFlowCancelled is the raw error of a flow abandoned before signing.
var ErrFlowCancelled = errors.New("deployment flow cancelled")

// Request is one user-initiated deployment.
type Request struct {
	ChainID uint64
	Version string
	// Args are the factory's creation arguments, in ABI order.
	Args []any
	// ExtraValue is sent on top of the factory fee, e.g. initial liquidity.
	ExtraValue *big.Int
	GasLimit   uint64
}

// Result is delivered once per attempt.
type Result struct {
	FlowID      uuid.UUID
	ChainID     uint64
	Version     string
	Success     bool
	Address     common.Address
	Source      receipt.Source
	Confidence  int
	TxHash      common.Hash
	Fee         fee.Quote
	Error       *failure.Error
	ExplorerURL string
	// StartBlock is the chain head read just before submission; zero when
	// it could not be read. AwaitDeployment starts its log scan there.
	StartBlock uint64
}

// LogLookback bounds the log scan of AwaitDeployment when no start block is
// known. Public RPCs reject unbounded eth_getLogs ranges.
const LogLookback uint64 = 1000

// Callback receives the result of an asynchronous deployment.
type Callback func(Result)

// Config wires a Deployer. Registry is required; everything else has a default.
type Config struct {
	Registry         *chain.Registry
	Fees             *fee.Calculator
	Builder          *tx.Builder
	Extractor        *receipt.Extractor
	Journal          *Journal
	SubmitterOptions []tx.SubmitterOption
	Logger           *slog.Logger
}

// Deployer runs the deployment pipeline: resolve, fee, build, simulate,
// submit, confirm, extract, classify. It holds no per-flow state apart from
// the liveness guard, so independent flows may share it.
type Deployer struct {
	registry  *chain.Registry
	fees      *fee.Calculator
	builder   *tx.Builder
	extractor *receipt.Extractor
	journal   *Journal
	subOpts   []tx.SubmitterOption
	logger    *slog.Logger
	guard     Guard
}

// New creates a deployer.
func New(cfg Config) (*Deployer, error) {
	if cfg.Registry == nil {
		return nil, errors.New("deploy: registry is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	d := &Deployer{
		registry:  cfg.Registry,
		fees:      cfg.Fees,
		builder:   cfg.Builder,
		extractor: cfg.Extractor,
		journal:   cfg.Journal,
		subOpts:   cfg.SubmitterOptions,
		logger:    logger,
	}
	if d.fees == nil {
		d.fees = fee.NewCalculator(fee.PolicyDefault, logger)
	}
	if d.builder == nil {
		d.builder = tx.NewBuilder(tx.Policy{}, logger)
	}
	if d.extractor == nil {
		d.extractor = receipt.NewExtractor(logger)
	}
	return d, nil
}

// Journal returns the attempt journal, or nil when none is configured.
func (d *Deployer) Journal() *Journal {
	return d.journal
}

// Deploy runs one deployment synchronously. Failures are reported classified
// on Result.Error.
func (d *Deployer) Deploy(ctx context.Context, req Request, reader chain.Reader, w tx.Wallet) Result {
	return d.run(ctx, uuid.New(), req, reader, w, func() bool { return ctx.Err() == nil })
}

// DeployAsync starts a deployment that supersedes any previous asynchronous
// flow and returns its id. cb is invoked only if the flow is still live when
// the result arrives. cb runs under the guard and must not start a new flow.
func (d *Deployer) DeployAsync(ctx context.Context, req Request, reader chain.Reader, w tx.Wallet, cb Callback) uuid.UUID {
	id := d.guard.Begin()
	go func() {
		res := d.run(ctx, id, req, reader, w, func() bool { return ctx.Err() == nil && d.guard.Alive(id) })
		if !d.guard.Apply(id, func() { cb(res) }) {
			d.logger.Info("dropping result of stale flow", "flow", id.String(), "tx", res.TxHash.Hex())
		}
	}()
	return id
}

// Cancel invalidates the live asynchronous flow. A flow that has not signed
// yet stops before signing; one already submitted still finishes and is
// journaled, but its result is not delivered.
func (d *Deployer) Cancel() {
	d.guard.Cancel()
}

func (d *Deployer) run(ctx context.Context, id uuid.UUID, req Request, reader chain.Reader, w tx.Wallet, alive func() bool) (res Result) {
	res = Result{FlowID: id, ChainID: req.ChainID, Version: req.Version}
	logger := d.logger.With("flow", id.String(), "chain", req.ChainID, "version", req.Version)

	var (
		profile *chain.NetworkProfile
		factory *contracts.Factory
	)
	defer func() { d.finish(&res, profile, factory, logger) }()

	profile, factoryAddr, err := d.registry.ResolveFactory(req.ChainID, req.Version)
	if err != nil {
		res.Error = failure.Classify(err)
		return res
	}
	factory, err = contracts.Lookup(req.Version, profile.ABIVariant)
	if err != nil {
		res.Error = failure.Configuration("%v", err)
		return res
	}

	var (
		quote fee.Quote
		est   chain.FeeEstimate
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		quote, err = d.fees.Compute(gctx, reader, profile, req.Version)
		return err
	})
	g.Go(func() error {
		var err error
		est, err = chain.RetryRead(gctx, chain.DefaultRetryConfig, reader.FeeEstimate)
		return err
	})
	if err := g.Wait(); err != nil {
		res.Error = failure.Classify(err)
		return res
	}
	res.Fee = quote

	value := new(big.Int).Set(quote.Amount)
	if req.ExtraValue != nil {
		value.Add(value, req.ExtraValue)
	}
	env, err := d.builder.Assemble(tx.Request{
		ChainID:  req.ChainID,
		Version:  req.Version,
		From:     w.Address(),
		To:       factoryAddr,
		Call:     factory.Create(req.Args...),
		Value:    value,
		GasLimit: req.GasLimit,
		Op:       tx.OpDeploy,
	}, profile, est)
	if err != nil {
		res.Error = failure.Classify(err)
		return res
	}

	returnData, err := reader.CallContract(ctx, env.CallMsg(), nil)
	if err != nil {
		c := failure.Classify(err)
		switch c.Kind {
		case failure.KindContractValidation, failure.KindUnclassifiedRevert, failure.KindInsufficientFunds:
			logger.Warn("simulation failed, not submitting", "kind", c.Kind, "reason", c.Reason, "error", c.RawMessage)
			res.Error = c
			return res
		}
		logger.Debug("simulation unavailable, submitting without it", "error", err)
		returnData = nil
	}

	if !alive() {
		res.Error = failure.New(failure.KindUnknown, ErrFlowCancelled)
		return res
	}

	if head, err := chain.RetryRead(ctx, chain.DefaultRetryConfig, reader.BlockNumber); err == nil {
		res.StartBlock = head
	} else {
		logger.Debug("head unavailable before submission", "error", err)
	}

	opts := append(append([]tx.SubmitterOption(nil), d.subOpts...), tx.WithLogger(logger))
	start := time.Now()
	rcpt, err := tx.NewSubmitter(reader, opts...).SubmitAndConfirm(ctx, w, env)
	if rcpt != nil {
		res.TxHash = rcpt.TxHash
		ConfirmationSeconds.WithLabelValues(chainLabel(req.ChainID)).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		res.Error = failure.Classify(err)
		return res
	}

	addr, err := d.extractor.Extract(receipt.Input{
		Receipt:     rcpt,
		Factory:     factoryAddr,
		Sender:      w.Address(),
		Event:       factory.Event(),
		KnownEvents: contracts.KnownEvents(),
		ReturnData:  returnData,
		Exclude:     profile.AllSystemAddresses(),
		TxLink:      profile.ExplorerLink(chain.LinkTx, rcpt.TxHash.Hex()),
	})
	if err != nil {
		res.Error = failure.Classify(err)
		return res
	}
	res.Success = true
	res.Address = addr.Value
	res.Source = addr.Source
	res.Confidence = addr.Confidence
	ExtractionsTotal.WithLabelValues(addr.Source.String()).Inc()
	return res
}

// finish fills links, records metrics and journals the attempt.
func (d *Deployer) finish(res *Result, profile *chain.NetworkProfile, factory *contracts.Factory, logger *slog.Logger) {
	if res.Error != nil {
		if res.TxHash == (common.Hash{}) {
			res.TxHash = res.Error.TxHash
		} else if res.Error.TxHash == (common.Hash{}) {
			res.Error.TxHash = res.TxHash
		}
	}

	switch {
	case res.Success:
		kind := chain.LinkToken
		if factory != nil && factory.Pool {
			kind = chain.LinkAddress
		}
		res.ExplorerURL = profile.ExplorerLink(kind, res.Address.Hex())
	case res.TxHash != (common.Hash{}):
		res.ExplorerURL = profile.ExplorerLink(chain.LinkTx, res.TxHash.Hex())
	}

	outcome := "success"
	if res.Error != nil {
		if res.Error.ExplorerURL == "" {
			res.Error.ExplorerURL = res.ExplorerURL
		}
		outcome = string(res.Error.Kind)
		FailuresTotal.WithLabelValues(outcome).Inc()
		logger.Error("deployment failed", "kind", res.Error.Kind, "reason", res.Error.Reason,
			"tx", txHex(res.TxHash), "error", res.Error.RawMessage)
	} else {
		logger.Info("deployment succeeded", "address", res.Address.Hex(), "source", res.Source.String(), "tx", res.TxHash.Hex())
	}
	DeploymentsTotal.WithLabelValues(chainLabel(res.ChainID), res.Version, outcome).Inc()

	if d.journal == nil {
		return
	}
	entry := Entry{
		FlowID:  res.FlowID.String(),
		ChainID: res.ChainID,
		Version: res.Version,
		TxHash:  txHex(res.TxHash),
		Outcome: outcome,
	}
	if res.Success {
		entry.Address = res.Address.Hex()
	}
	if res.Error != nil {
		entry.Message = res.Error.Message()
	}
	if err := d.journal.Record(entry); err != nil {
		logger.Warn("failed to journal attempt", "error", err)
	}
}

// AwaitDeployment answers "did it appear yet" for a submitted deployment,
// typically after a ConfirmationTimeout. It watches the factory's creation
// events from fromBlock on for one emitted by txHash and extracts the created
// address from it. A zero fromBlock scans the last LogLookback blocks.
// It only reads and never resubmits.
func (d *Deployer) AwaitDeployment(ctx context.Context, reader chain.Reader, chainID uint64, version string, txHash common.Hash, fromBlock uint64, interval time.Duration) (receipt.Address, error) {
	profile, factoryAddr, err := d.registry.ResolveFactory(chainID, version)
	if err != nil {
		return receipt.Address{}, err
	}
	factory, err := contracts.Lookup(version, profile.ABIVariant)
	if err != nil {
		return receipt.Address{}, failure.Configuration("%v", err)
	}

	if fromBlock == 0 {
		head, err := chain.RetryRead(ctx, chain.DefaultRetryConfig, reader.BlockNumber)
		if err != nil {
			return receipt.Address{}, failure.Classify(err)
		}
		fromBlock = head - min(head, LogLookback)
	}

	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		Addresses: []common.Address{factoryAddr},
		Topics:    [][]common.Hash{{factory.EventTopic()}},
	}
	found, err := chain.NewWatcher(reader, interval, d.logger).AwaitLog(ctx, q, func(l types.Log) bool {
		return l.TxHash == txHash
	})
	if err != nil {
		return receipt.Address{}, failure.Classify(err)
	}

	rcpt := &types.Receipt{
		TxHash:      txHash,
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: new(big.Int).SetUint64(found.BlockNumber),
		Logs:        []*types.Log{&found},
	}
	return d.extractor.Extract(receipt.Input{
		Receipt:     rcpt,
		Factory:     factoryAddr,
		Event:       factory.Event(),
		KnownEvents: contracts.KnownEvents(),
		Exclude:     profile.AllSystemAddresses(),
		TxLink:      profile.ExplorerLink(chain.LinkTx, txHash.Hex()),
	})
}

func chainLabel(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func txHex(h common.Hash) string {
	if h == (common.Hash{}) {
		return ""
	}
	return h.Hex()
}
