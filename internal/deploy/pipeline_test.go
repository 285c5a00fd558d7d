package deploy

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yolodolo42/deployfi/internal/chain"
	"github.com/yolodolo42/deployfi/internal/contracts"
	"github.com/yolodolo42/deployfi/internal/failure"
	"github.com/yolodolo42/deployfi/internal/receipt"
	"github.com/yolodolo42/deployfi/internal/testutil"
	"github.com/yolodolo42/deployfi/internal/tx"
)

const sepolia = 11155111

var (
	token = common.HexToAddress("0x70CE000000000000000000000000000000000042")
	pool  = common.HexToAddress("0x9001000000000000000000000000000000000007")
	asset = common.HexToAddress("0xA55E700000000000000000000000000000000001")
)

type fixture struct {
	deployer *Deployer
	journal  *Journal
	reader   *testutil.FakeReader
	wallet   *testutil.FakeWallet
	profile  *chain.NetworkProfile
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	journal, err := OpenJournal()
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })

	registry := chain.DefaultRegistry()
	d, err := New(Config{
		Registry: registry,
		Journal:  journal,
		SubmitterOptions: []tx.SubmitterOption{
			tx.WithConfirmTimeout(200 * time.Millisecond),
			tx.WithPollInterval(5 * time.Millisecond),
		},
	})
	require.NoError(t, err)

	profile, err := registry.Resolve(sepolia)
	require.NoError(t, err)

	reader := testutil.NewFakeReader()
	return &fixture{
		deployer: d,
		journal:  journal,
		reader:   reader,
		wallet:   testutil.NewFakeWallet(reader),
		profile:  profile,
	}
}

func (f *fixture) factory(t *testing.T, version string) (common.Address, *contracts.Factory) {
	t.Helper()
	addr, ok := f.profile.Factory(version)
	require.True(t, ok)
	fac, err := contracts.Lookup(version, f.profile.ABIVariant)
	require.NoError(t, err)
	return addr, fac
}

// primeFee answers the factory's fee accessor with amount.
func (f *fixture) primeFee(t *testing.T, version string, amount *big.Int) {
	t.Helper()
	addr, fac := f.factory(t, version)
	m := fac.ABI.Methods[fac.FeeAccessor]
	out, err := m.Outputs.Pack(amount)
	require.NoError(t, err)
	f.reader.Respond(addr, selector(m.ID), out)
}

// primeCreate answers the creation simulation with created.
func (f *fixture) primeCreate(t *testing.T, version string, created common.Address) {
	t.Helper()
	addr, fac := f.factory(t, version)
	m := fac.ABI.Methods[fac.CreateMethod]
	out, err := m.Outputs.Pack(created)
	require.NoError(t, err)
	f.reader.Respond(addr, selector(m.ID), out)
}

func selector(id []byte) [4]byte {
	var sel [4]byte
	copy(sel[:], id)
	return sel
}

func tokenDeployedLog(t *testing.T, f *fixture, created common.Address) *types.Log {
	t.Helper()
	addr, fac := f.factory(t, contracts.VersionV4)
	ev := fac.Event()
	data, err := ev.Inputs.NonIndexed().Pack(big.NewInt(1_000_000))
	require.NoError(t, err)
	return &types.Log{
		Address: addr,
		Topics: []common.Hash{
			ev.ID,
			common.BytesToHash(created.Bytes()),
			common.BytesToHash(f.wallet.Addr.Bytes()),
		},
		Data: data,
	}
}

func tokenRequest() Request {
	return Request{
		ChainID: sepolia,
		Version: contracts.VersionV4,
		Args:    []any{"Test", "TST", uint8(18), big.NewInt(1_000_000)},
	}
}

func TestDeploy(t *testing.T) {
	ctx := context.Background()

	t.Run("deploys token and extracts address from event", func(t *testing.T) {
		f := newFixture(t)
		f.primeFee(t, contracts.VersionV4, big.NewInt(5000))
		f.primeCreate(t, contracts.VersionV4, token)
		created := tokenDeployedLog(t, f, token)
		f.wallet.Mine = func(*tx.Envelope) *types.Receipt { return testutil.SuccessReceipt(created) }
		before := promtest.ToFloat64(DeploymentsTotal.WithLabelValues("11155111", contracts.VersionV4, "success"))
		f.reader.Head = 7_000_100

		req := tokenRequest()
		req.ExtraValue = big.NewInt(100)
		res := f.deployer.Deploy(ctx, req, f.reader, f.wallet)

		require.Nil(t, res.Error)
		assert.True(t, res.Success)
		assert.Equal(t, token, res.Address)
		assert.Equal(t, receipt.SourceDecodedEvent, res.Source)
		assert.Equal(t, 6, res.Confidence)
		assert.Equal(t, "https://sepolia.etherscan.io/token/"+token.Hex(), res.ExplorerURL)
		assert.Equal(t, int64(5000), res.Fee.Amount.Int64())
		assert.Equal(t, uint64(7_000_100), res.StartBlock)

		sent := f.wallet.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, int64(5100), sent[0].Value.Int64(), "fee plus extra value")
		assert.Equal(t, chain.TxStyleFeeMarket, sent[0].Style)

		after := promtest.ToFloat64(DeploymentsTotal.WithLabelValues("11155111", contracts.VersionV4, "success"))
		assert.Equal(t, before+1, after)

		entry, err := f.journal.Get(res.FlowID.String())
		require.NoError(t, err)
		assert.Equal(t, "success", entry.Outcome)
		assert.Equal(t, token.Hex(), entry.Address)
		assert.Equal(t, res.TxHash.Hex(), entry.TxHash)
	})

	t.Run("missing factory is a configuration error and builds nothing", func(t *testing.T) {
		f := newFixture(t)
		req := tokenRequest()
		req.Version = contracts.VersionV1

		res := f.deployer.Deploy(ctx, req, f.reader, f.wallet)

		require.NotNil(t, res.Error)
		assert.Equal(t, failure.KindConfiguration, res.Error.Kind)
		assert.False(t, res.Error.Retryable)
		assert.Empty(t, f.wallet.Sent())
		assert.Empty(t, f.reader.Calls())
	})

	t.Run("bad creation arguments are not a configuration error", func(t *testing.T) {
		f := newFixture(t)
		f.primeFee(t, contracts.VersionV4, big.NewInt(5000))
		req := tokenRequest()
		req.Args = []any{"Test"}

		res := f.deployer.Deploy(ctx, req, f.reader, f.wallet)

		require.NotNil(t, res.Error)
		assert.Equal(t, failure.KindUnknown, res.Error.Kind)
		assert.Empty(t, f.wallet.Sent())
	})

	t.Run("missing gas price is not a configuration error", func(t *testing.T) {
		f := newFixture(t)
		f.primeFee(t, contracts.VersionV4, big.NewInt(5000))
		f.reader.Fees = chain.FeeEstimate{}

		res := f.deployer.Deploy(ctx, tokenRequest(), f.reader, f.wallet)

		require.NotNil(t, res.Error)
		assert.NotEqual(t, failure.KindConfiguration, res.Error.Kind)
		assert.Empty(t, f.wallet.Sent())
	})

	t.Run("simulated revert aborts before signing", func(t *testing.T) {
		f := newFixture(t)
		f.primeFee(t, contracts.VersionLending, big.NewInt(1))
		addr, fac := f.factory(t, contracts.VersionLending)
		f.reader.RespondErr(addr, selector(fac.ABI.Methods[fac.CreateMethod].ID),
			testutil.NewRevertError(failure.Selector(failure.ReasonPoolAlreadyExists)))

		res := f.deployer.Deploy(ctx, Request{
			ChainID: sepolia,
			Version: contracts.VersionLending,
			Args:    []any{asset, big.NewInt(7500), big.NewInt(1000)},
		}, f.reader, f.wallet)

		require.NotNil(t, res.Error)
		assert.Equal(t, failure.KindContractValidation, res.Error.Kind)
		assert.Equal(t, failure.ReasonPoolAlreadyExists, res.Error.Reason)
		assert.Empty(t, f.wallet.Sent())
	})

	t.Run("wallet rejection", func(t *testing.T) {
		f := newFixture(t)
		f.primeFee(t, contracts.VersionV4, big.NewInt(1))
		f.primeCreate(t, contracts.VersionV4, token)
		f.wallet.Err = errors.New("user rejected transaction")

		res := f.deployer.Deploy(ctx, tokenRequest(), f.reader, f.wallet)

		require.NotNil(t, res.Error)
		assert.Equal(t, failure.KindUserRejected, res.Error.Kind)
		assert.Equal(t, common.Hash{}, res.TxHash)
		assert.Empty(t, res.ExplorerURL)
	})

	t.Run("confirmation timeout keeps the hash", func(t *testing.T) {
		f := newFixture(t)
		f.primeFee(t, contracts.VersionV4, big.NewInt(1))
		f.primeCreate(t, contracts.VersionV4, token)

		res := f.deployer.Deploy(ctx, tokenRequest(), f.reader, f.wallet)

		require.NotNil(t, res.Error)
		assert.Equal(t, failure.KindConfirmationTimeout, res.Error.Kind)
		assert.True(t, res.Error.Retryable)
		assert.NotEqual(t, common.Hash{}, res.TxHash)
		assert.Equal(t, res.TxHash, res.Error.TxHash)
		assert.Equal(t, "https://sepolia.etherscan.io/tx/"+res.TxHash.Hex(), res.ExplorerURL)
		assert.Len(t, f.wallet.Sent(), 1, "never resubmitted")
	})

	t.Run("extraction failure after success carries the tx link", func(t *testing.T) {
		f := newFixture(t)
		f.primeFee(t, contracts.VersionV4, big.NewInt(1))
		addr, fac := f.factory(t, contracts.VersionV4)
		f.reader.Respond(addr, selector(fac.ABI.Methods[fac.CreateMethod].ID), nil)
		f.wallet.Mine = func(*tx.Envelope) *types.Receipt { return testutil.SuccessReceipt() }
		before := promtest.ToFloat64(FailuresTotal.WithLabelValues(string(failure.KindExtractionFailed)))

		res := f.deployer.Deploy(ctx, tokenRequest(), f.reader, f.wallet)

		require.NotNil(t, res.Error)
		assert.Equal(t, failure.KindExtractionFailed, res.Error.Kind)
		assert.False(t, res.Success)
		assert.Equal(t, "https://sepolia.etherscan.io/tx/"+res.TxHash.Hex(), res.Error.ExplorerURL)
		assert.Equal(t, before+1, promtest.ToFloat64(FailuresTotal.WithLabelValues(string(failure.KindExtractionFailed))))

		entry, err := f.journal.Get(res.FlowID.String())
		require.NoError(t, err)
		assert.Equal(t, string(failure.KindExtractionFailed), entry.Outcome)
		assert.Empty(t, entry.Address)
	})

	t.Run("falls back to simulated return data", func(t *testing.T) {
		f := newFixture(t)
		f.primeFee(t, contracts.VersionV4, big.NewInt(1))
		f.primeCreate(t, contracts.VersionV4, token)
		f.wallet.Mine = func(*tx.Envelope) *types.Receipt { return testutil.SuccessReceipt() }

		res := f.deployer.Deploy(ctx, tokenRequest(), f.reader, f.wallet)

		require.Nil(t, res.Error)
		assert.Equal(t, token, res.Address)
		assert.Equal(t, receipt.SourceReturnData, res.Source)
	})
}

func TestDeployAsync(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers result of live flow", func(t *testing.T) {
		f := newFixture(t)
		f.primeFee(t, contracts.VersionV4, big.NewInt(1))
		f.primeCreate(t, contracts.VersionV4, token)
		created := tokenDeployedLog(t, f, token)
		f.wallet.Mine = func(*tx.Envelope) *types.Receipt { return testutil.SuccessReceipt(created) }

		results := make(chan Result, 1)
		id := f.deployer.DeployAsync(ctx, tokenRequest(), f.reader, f.wallet, func(r Result) { results <- r })

		select {
		case res := <-results:
			assert.Equal(t, id, res.FlowID)
			assert.True(t, res.Success)
		case <-time.After(2 * time.Second):
			t.Fatal("no result delivered")
		}
	})

	t.Run("cancelled flow stops before signing and is not delivered", func(t *testing.T) {
		f := newFixture(t)
		f.primeFee(t, contracts.VersionV4, big.NewInt(1))
		f.reader.CallHook = func(ethereum.CallMsg, *big.Int) ([]byte, error) {
			f.deployer.Cancel()
			return nil, nil
		}

		delivered := make(chan Result, 1)
		id := f.deployer.DeployAsync(ctx, tokenRequest(), f.reader, f.wallet, func(r Result) { delivered <- r })

		require.Eventually(t, func() bool {
			_, err := f.journal.Get(id.String())
			return err == nil
		}, 2*time.Second, 5*time.Millisecond)

		entry, err := f.journal.Get(id.String())
		require.NoError(t, err)
		assert.Equal(t, string(failure.KindUnknown), entry.Outcome)
		assert.Empty(t, f.wallet.Sent())
		select {
		case <-delivered:
			t.Fatal("stale result delivered")
		case <-time.After(20 * time.Millisecond):
		}
	})
}

func TestAwaitDeployment(t *testing.T) {
	hash := common.HexToHash("0xabc1")

	await := func(t *testing.T, f *fixture, from uint64) (receipt.Address, error) {
		t.Helper()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return f.deployer.AwaitDeployment(ctx, f.reader, sepolia, contracts.VersionV4, hash, from, 5*time.Millisecond)
	}

	t.Run("scans from the recorded start block", func(t *testing.T) {
		f := newFixture(t)
		l := tokenDeployedLog(t, f, token)
		l.TxHash = hash
		l.BlockNumber = 42
		other := tokenDeployedLog(t, f, pool)
		other.TxHash = common.HexToHash("0xdef2")
		other.BlockNumber = 41
		f.reader.AddLogs(*other, *l)

		got, err := await(t, f, 40)
		require.NoError(t, err)
		assert.Equal(t, token, got.Value)
		assert.Equal(t, receipt.SourceDecodedEvent, got.Source)

		queries := f.reader.Queries()
		require.NotEmpty(t, queries)
		for _, q := range queries {
			require.NotNil(t, q.FromBlock, "log scan must be bounded")
			assert.Equal(t, uint64(40), q.FromBlock.Uint64())
		}
	})

	t.Run("unknown start block looks back from the head", func(t *testing.T) {
		f := newFixture(t)
		f.reader.Head = 5_000
		l := tokenDeployedLog(t, f, token)
		l.TxHash = hash
		l.BlockNumber = 4_500
		f.reader.AddLogs(*l)

		got, err := await(t, f, 0)
		require.NoError(t, err)
		assert.Equal(t, token, got.Value)

		q := f.reader.Queries()[0]
		require.NotNil(t, q.FromBlock)
		assert.Equal(t, uint64(5_000-LogLookback), q.FromBlock.Uint64())
	})

	t.Run("look-back stops at genesis", func(t *testing.T) {
		f := newFixture(t)
		f.reader.Head = 10
		l := tokenDeployedLog(t, f, token)
		l.TxHash = hash
		l.BlockNumber = 3
		f.reader.AddLogs(*l)

		_, err := await(t, f, 0)
		require.NoError(t, err)
		q := f.reader.Queries()[0]
		require.NotNil(t, q.FromBlock)
		assert.Equal(t, uint64(0), q.FromBlock.Uint64())
	})

	t.Run("unreadable head fails without scanning", func(t *testing.T) {
		f := newFixture(t)
		f.reader.HeadErr = errors.New("connection refused")

		_, err := await(t, f, 0)
		require.Error(t, err)
		assert.Empty(t, f.reader.Queries())
	})
}
