package fs

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"

	echoerrors "github.com/raoulx24/wandering-echo/internal/errors"
)

// RetryPolicy controls how transient filesystem errors are retried: an
// exponential backoff starting at Delay and capped at MaxDelay.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
	MaxDelay time.Duration
	Clock    clock.Clock
}

func DefaultRetryPolicy(clk clock.Clock) RetryPolicy {
	return RetryPolicy{
		Attempts: 5,
		Delay:    100 * time.Millisecond,
		MaxDelay: 2 * time.Second,
		Clock:    clk,
	}
}

func withRetry(ctx context.Context, p RetryPolicy, opName string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := retry.Call(retry.CallArgs{
		Func: fn,
		IsFatalError: func(err error) bool {
			return !isTransient(err)
		},
		Attempts:    p.Attempts,
		Delay:       p.Delay,
		MaxDelay:    p.MaxDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       p.Clock,
		Stop:        ctx.Done(),
	})

	switch {
	case err == nil:
		return nil
	case retry.IsRetryStopped(err):
		return ctx.Err()
	case retry.IsAttemptsExceeded(err):
		return echoerrors.Mark(errors.Annotatef(retry.LastError(err), "%s failed after %d attempts", opName, p.Attempts), echoerrors.IOFailure)
	default:
		return echoerrors.Mark(errors.Annotatef(err, "%s failed permanently", opName), echoerrors.IOFailure)
	}
}
