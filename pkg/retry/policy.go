package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Defaults mirror the original client's wait_exponential(min=2, max=10) with
// stop_after_attempt(3).
const (
	DefaultInitialInterval = 2 * time.Second
	DefaultMaximumInterval = 10 * time.Second
	DefaultCoefficient     = 2.0
	DefaultMaxAttempts     = 3
)

// Policy is an exponential schedule without jitter. MaximumAttempts counts
// the first call.
type Policy struct {
	InitialInterval    time.Duration
	BackoffCoefficient float64
	MaximumInterval    time.Duration
	MaximumAttempts    int32
}

// Option adjusts a Policy
type Option func(*Policy)

func WithInitialInterval(interval time.Duration) Option {
	return func(p *Policy) { p.InitialInterval = interval }
}

func WithBackoffCoefficient(coefficient float64) Option {
	return func(p *Policy) { p.BackoffCoefficient = coefficient }
}

func WithMaximumInterval(interval time.Duration) Option {
	return func(p *Policy) { p.MaximumInterval = interval }
}

func WithMaxAttempts(attempts int32) Option {
	return func(p *Policy) { p.MaximumAttempts = attempts }
}

// NewPolicy applies opts over the defaults. Out-of-range values fall back to
// the default for that field, and the maximum interval never undercuts the
// initial one.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		InitialInterval:    DefaultInitialInterval,
		BackoffCoefficient: DefaultCoefficient,
		MaximumInterval:    DefaultMaximumInterval,
		MaximumAttempts:    DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.InitialInterval <= 0 {
		p.InitialInterval = DefaultInitialInterval
	}
	if p.BackoffCoefficient < 1 {
		p.BackoffCoefficient = DefaultCoefficient
	}
	if p.MaximumInterval < p.InitialInterval {
		p.MaximumInterval = p.InitialInterval
	}
	if p.MaximumAttempts < 1 {
		p.MaximumAttempts = 1
	}
	return p
}

// Schedule returns the waits between attempts, len MaximumAttempts-1
func (p *Policy) Schedule() []time.Duration {
	b := p.exponential()
	waits := make([]time.Duration, 0, p.MaximumAttempts-1)
	for i := int32(1); i < p.MaximumAttempts; i++ {
		waits = append(waits, b.NextBackOff())
	}
	return waits
}

func (p *Policy) exponential() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.Multiplier = p.BackoffCoefficient
	b.MaxInterval = p.MaximumInterval
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
