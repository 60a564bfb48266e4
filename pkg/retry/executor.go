package retry

import (
	"context"

	"github.com/cenkalti/backoff/v4"
)

// Executor runs operations under a retry policy
type Executor struct {
	policy *Policy
}

// NewExecutor creates an executor for the given policy. A nil policy uses
// the defaults.
func NewExecutor(policy *Policy) *Executor {
	if policy == nil {
		policy = NewPolicy()
	}
	return &Executor{policy: policy}
}

// Policy returns the executor's policy
func (e *Executor) Policy() *Policy {
	return e.policy
}

// Execute calls operation until it succeeds, returns a permanent error, the
// attempts are exhausted or ctx is done. The last error is returned.
func (e *Executor) Execute(ctx context.Context, operation func() error) error {
	return backoff.Retry(operation, e.backOff(ctx))
}

func (e *Executor) backOff(ctx context.Context) backoff.BackOff {
	retries := uint64(0)
	if e.policy.MaximumAttempts > 1 {
		retries = uint64(e.policy.MaximumAttempts - 1)
	}
	return backoff.WithContext(backoff.WithMaxRetries(e.policy.exponential(), retries), ctx)
}

// Permanent marks err so that Execute stops retrying and returns it
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}
