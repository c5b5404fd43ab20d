package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func failing(context.Context) error { return errBoom }
func passing(context.Context) error { return nil }

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	cb := New(Config{Name: "test", FailureThreshold: 2, SuccessThreshold: 1, RetryTimeout: time.Minute}, nil)
	clock := time.Now()
	cb.now = func() time.Time { return clock }
	ctx := context.Background()

	assert.ErrorIs(t, cb.Execute(ctx, failing), errBoom)
	assert.ErrorIs(t, cb.Execute(ctx, failing), errBoom)
	require.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	clock = clock.Add(2 * time.Minute)
	require.NoError(t, cb.Execute(ctx, passing))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerIgnoresNonTrippingErrors(t *testing.T) {
	cb := New(Config{Name: "test", FailureThreshold: 1, Trip: func(err error) bool { return false }}, nil)

	assert.ErrorIs(t, cb.Execute(context.Background(), failing), errBoom)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerCancelledContext(t *testing.T) {
	cb := New(Config{Name: "test", FailureThreshold: 1}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, cb.Execute(ctx, failing), context.Canceled)
	assert.Equal(t, StateClosed, cb.State())
}
