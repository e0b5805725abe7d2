package signer

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// withRetry runs a read-only RPC call with exponential backoff. Errors the node
// answered with (rpc.Error, e.g. execution reverted from eth_estimateGas) and
// context errors are final and returned without another attempt.
func withRetry(ctx context.Context, cfg ChainWriterConfig, logger *zap.Logger, op string, fn func(context.Context) error) error {
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	delay := cfg.RetryBackoff
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			logger.Warn("rpc call rejected", zap.String("op", op), zap.Error(err))
			return err
		}
		if attempt >= maxRetries {
			logger.Warn("rpc call failed, giving up",
				zap.String("op", op),
				zap.Int("attempts", attempt+1),
				zap.Error(err),
			)
			return err
		}
		logger.Warn("rpc call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var rpcErr rpc.Error
	return !errors.As(err, &rpcErr)
}
