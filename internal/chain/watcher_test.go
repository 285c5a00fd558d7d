package chain

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRateLimited = errors.New("429 Too Many Requests")

// scriptedReader answers CodeAt and FilterLogs from per-call scripts.
type scriptedReader struct {
	codeCalls atomic.Int32
	code      func(call int) ([]byte, error)
	logCalls  atomic.Int32
	logs      func(call int) ([]types.Log, error)
}

func (r *scriptedReader) CodeAt(_ context.Context, _ common.Address) ([]byte, error) {
	return r.code(int(r.codeCalls.Add(1)))
}

func (r *scriptedReader) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, errors.New("not scripted")
}

func (r *scriptedReader) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return nil, ethereum.NotFound
}

func (r *scriptedReader) FilterLogs(_ context.Context, _ ethereum.FilterQuery) ([]types.Log, error) {
	return r.logs(int(r.logCalls.Add(1)))
}

func (r *scriptedReader) FeeEstimate(context.Context) (FeeEstimate, error) {
	return FeeEstimate{}, nil
}

func (r *scriptedReader) BlockNumber(context.Context) (uint64, error) {
	return 0, nil
}

var fastRetry = RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, BackoffMultiple: 2}

func TestRetryRead(t *testing.T) {
	t.Run("retries rate limits then succeeds", func(t *testing.T) {
		calls := 0
		got, err := RetryRead(context.Background(), fastRetry, func(context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, errRateLimited
			}
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, got)
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry non-retryable errors", func(t *testing.T) {
		calls := 0
		_, err := RetryRead(context.Background(), fastRetry, func(context.Context) (int, error) {
			calls++
			return 0, errors.New("execution reverted")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		_, err := RetryRead(context.Background(), fastRetry, func(context.Context) (int, error) {
			calls++
			return 0, errRateLimited
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, errRateLimited)
		assert.Equal(t, 3, calls)
	})
}

func TestBackoff(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 5 * time.Second, BackoffMultiple: 2}
	assert.Equal(t, time.Second, Backoff(0, cfg))
	assert.Equal(t, 2*time.Second, Backoff(1, cfg))
	assert.Equal(t, 4*time.Second, Backoff(2, cfg))
	assert.Equal(t, 5*time.Second, Backoff(3, cfg))
}

func TestWatcher_AwaitCode(t *testing.T) {
	t.Run("returns once code appears", func(t *testing.T) {
		reader := &scriptedReader{code: func(call int) ([]byte, error) {
			if call < 3 {
				return nil, nil
			}
			return []byte{0x60, 0x80}, nil
		}}
		w := NewWatcher(reader, time.Millisecond, nil)
		w.retry = fastRetry

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, w.AwaitCode(ctx, common.HexToAddress("0x01")))
		assert.GreaterOrEqual(t, int(reader.codeCalls.Load()), 3)
	})

	t.Run("stops on context timeout", func(t *testing.T) {
		reader := &scriptedReader{code: func(int) ([]byte, error) { return nil, nil }}
		w := NewWatcher(reader, time.Millisecond, nil)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, w.AwaitCode(ctx, common.HexToAddress("0x01")), context.DeadlineExceeded)
	})

	t.Run("survives rate limits", func(t *testing.T) {
		reader := &scriptedReader{code: func(call int) ([]byte, error) {
			if call < 5 {
				return nil, errRateLimited
			}
			return []byte{0x01}, nil
		}}
		w := NewWatcher(reader, time.Millisecond, nil)
		w.retry = fastRetry

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, w.AwaitCode(ctx, common.HexToAddress("0x01")))
	})
}

func TestWatcher_AwaitLog(t *testing.T) {
	pool := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	reader := &scriptedReader{logs: func(call int) ([]types.Log, error) {
		if call == 1 {
			return nil, nil
		}
		return []types.Log{
			{Address: common.HexToAddress("0x01")},
			{Address: pool},
		}, nil
	}}
	w := NewWatcher(reader, time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := w.AwaitLog(ctx, ethereum.FilterQuery{}, func(l types.Log) bool { return l.Address == pool })
	require.NoError(t, err)
	assert.Equal(t, pool, got.Address)
}
