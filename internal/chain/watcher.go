package chain

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/yolodolo42/deployfi/internal/failure"
)

// Watcher answers "did it appear yet" questions after a submission by polling
// read-only endpoints. It holds no mutable state shared with the deployment
// flow and may run concurrently with it.
type Watcher struct {
	reader   Reader
	interval time.Duration
	retry    RetryConfig
	logger   *slog.Logger
}

// NewWatcher creates a watcher polling every interval.
func NewWatcher(reader Reader, interval time.Duration, logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		reader:   reader,
		interval: interval,
		retry:    DefaultRetryConfig,
		logger:   logger,
	}
}

// AwaitCode blocks until addr has bytecode or ctx ends.
func (w *Watcher) AwaitCode(ctx context.Context, addr common.Address) error {
	return w.poll(ctx, func(ctx context.Context) (bool, error) {
		code, err := RetryRead(ctx, w.retry, func(ctx context.Context) ([]byte, error) {
			return w.reader.CodeAt(ctx, addr)
		})
		if err != nil {
			return false, err
		}
		return len(code) > 0, nil
	})
}

// AwaitLog blocks until a log matching q and match appears or ctx ends.
func (w *Watcher) AwaitLog(ctx context.Context, q ethereum.FilterQuery, match func(types.Log) bool) (types.Log, error) {
	var found types.Log
	err := w.poll(ctx, func(ctx context.Context) (bool, error) {
		logs, err := RetryRead(ctx, w.retry, func(ctx context.Context) ([]types.Log, error) {
			return w.reader.FilterLogs(ctx, q)
		})
		if err != nil {
			return false, err
		}
		for _, l := range logs {
			if match == nil || match(l) {
				found = l
				return true, nil
			}
		}
		return false, nil
	})
	return found, err
}

// poll runs check until it reports done. Transient read errors are logged and
// polling continues; non-retryable errors end the wait.
func (w *Watcher) poll(ctx context.Context, check func(context.Context) (bool, error)) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		done, err := check(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if !failure.Classify(err).Retryable {
				return err
			}
			w.logger.Debug("watch poll failed, retrying", "error", err)
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
