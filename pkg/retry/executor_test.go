package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastPolicy(attempts int32) *Policy {
	return NewPolicy(
		WithInitialInterval(time.Millisecond),
		WithMaximumInterval(2*time.Millisecond),
		WithMaxAttempts(attempts),
	)
}

func TestNewPolicyDefaults(t *testing.T) {
	p := NewPolicy()
	assert.Equal(t, 2*time.Second, p.InitialInterval)
	assert.Equal(t, 2.0, p.BackoffCoefficient)
	assert.Equal(t, 10*time.Second, p.MaximumInterval)
	assert.Equal(t, int32(3), p.MaximumAttempts)

	p = NewPolicy(WithBackoffCoefficient(1.5), WithMaxAttempts(5))
	assert.Equal(t, 1.5, p.BackoffCoefficient)
	assert.Equal(t, int32(5), p.MaximumAttempts)
}

func TestPolicySchedule(t *testing.T) {
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, NewPolicy().Schedule())

	capped := NewPolicy(WithMaxAttempts(5))
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second}, capped.Schedule())

	assert.Empty(t, NewPolicy(WithMaxAttempts(1)).Schedule())
}

func TestNewPolicyNormalizes(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want Policy
	}{
		{"zero attempts", []Option{WithMaxAttempts(0)}, Policy{2 * time.Second, 2.0, 10 * time.Second, 1}},
		{"shrinking coefficient", []Option{WithBackoffCoefficient(0.5)}, Policy{2 * time.Second, 2.0, 10 * time.Second, 3}},
		{"maximum below initial", []Option{WithInitialInterval(time.Minute)}, Policy{time.Minute, 2.0, time.Minute, 3}},
		{"negative initial", []Option{WithInitialInterval(-time.Second)}, Policy{2 * time.Second, 2.0, 10 * time.Second, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, *NewPolicy(tt.opts...))
		})
	}
}

func TestExecutorRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := NewExecutor(fastPolicy(3)).Execute(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExecutorStopsAfterMaxAttempts(t *testing.T) {
	calls := 0
	want := errors.New("still failing")
	err := NewExecutor(fastPolicy(3)).Execute(context.Background(), func() error {
		calls++
		return want
	})

	assert.ErrorIs(t, err, want)
	assert.Equal(t, 3, calls)
}

func TestExecutorPermanent(t *testing.T) {
	calls := 0
	want := errors.New("bad credentials")
	err := NewExecutor(fastPolicy(5)).Execute(context.Background(), func() error {
		calls++
		return Permanent(want)
	})

	assert.ErrorIs(t, err, want)
	assert.Equal(t, 1, calls)
	assert.NoError(t, Permanent(nil))
}

func TestExecutorContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := NewExecutor(NewPolicy()).Execute(ctx, func() error {
		calls++
		return errors.New("transient")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestNewExecutorNilPolicy(t *testing.T) {
	e := NewExecutor(nil)
	assert.Equal(t, int32(3), e.Policy().MaximumAttempts)
}
