package respawn

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
)

// Default pauses between poll attempts of the two blocking waits.
const (
	DefaultScaleOutInterval  = 5 * time.Second
	DefaultTerminateInterval = 2 * time.Second
)

// RetryPolicy paces a blocking wait on the provider.
type RetryPolicy struct {
	// Interval is the constant pause between poll attempts.
	Interval time.Duration
	// MaxAttempts bounds the number of poll attempts. Zero means no bound:
	// the wait runs until it succeeds or its context is done.
	MaxAttempts uint64
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	return backoff.WithContext(&boundedBackOff{interval: p.Interval, maxAttempts: p.MaxAttempts}, ctx)
}

// pollUntil runs check until it returns nil, the policy is exhausted or ctx
// is done. notify fires after every unsatisfied attempt that will be
// retried, before the pause. A check error wrapped in backoff.PermanentError
// aborts the wait at once and is returned unwrapped.
func pollUntil(ctx context.Context, policy RetryPolicy, check func() error, notify func(error)) error {
	return backoff.RetryNotify(check, policy.backOff(ctx), func(err error, _ time.Duration) {
		if notify != nil {
			notify(err)
		}
	})
}

// boundedBackOff pauses a constant interval between attempts and stops after
// maxAttempts of them (zero keeps going forever).
type boundedBackOff struct {
	interval    time.Duration
	maxAttempts uint64
	taken       uint64
}

func (b *boundedBackOff) NextBackOff() time.Duration {
	if b.maxAttempts > 0 {
		b.taken++
		if b.taken >= b.maxAttempts {
			return backoff.Stop
		}
	}
	return b.interval
}

func (b *boundedBackOff) Reset() {
	b.taken = 0
}
