package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errTransient = errors.New("transient")

func isTransient(err error) bool { return errors.Is(err, errTransient) }

func TestPolicyRetriesTransientUntilSuccess(t *testing.T) {
	calls := 0
	retries := 0
	p := New(3, 0, zap.NewNop())
	p.OnRetry = func(string, int, error) { retries++ }

	err := p.Do(context.Background(), "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	}, isTransient)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, retries)
}

func TestPolicyReturnsLastErrorWhenExhausted(t *testing.T) {
	calls := 0
	err := New(2, time.Millisecond, nil).Do(context.Background(), "op", func(context.Context) error {
		calls++
		return errTransient
	}, isTransient)

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 2, calls)
}

func TestPolicyDoesNotRetryFatal(t *testing.T) {
	fatal := errors.New("permission denied")
	calls := 0
	err := New(5, 0, nil).Do(context.Background(), "op", func(context.Context) error {
		calls++
		return fatal
	}, isTransient)

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestPolicyStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := New(5, time.Hour, nil).Do(ctx, "op", func(context.Context) error {
		calls++
		cancel()
		return errTransient
	}, isTransient)

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestPolicyCancelledBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New(3, 0, nil).Do(ctx, "op", func(context.Context) error {
		t.Fatal("op must not run")
		return nil
	}, isTransient)
	assert.ErrorIs(t, err, context.Canceled)
}
