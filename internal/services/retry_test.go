package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testPolicy() GasRetryPolicy {
	p := DefaultGasRetryPolicy()
	p.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return p
}

func TestGasRetryLadderValues(t *testing.T) {
	var sent []int64
	ok, err := testPolicy().Run(context.Background(),
		func(ctx context.Context, value int64) error {
			sent = append(sent, value)
			return nil
		},
		func(ctx context.Context) (bool, error) { return false, nil },
	)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, []int64{100_000_000, 150_000_000, 200_000_000}, sent)
}

func TestGasRetryStopsOnConfirmation(t *testing.T) {
	attempts := 0
	ok, err := testPolicy().Run(context.Background(),
		func(ctx context.Context, value int64) error {
			attempts++
			return nil
		},
		func(ctx context.Context) (bool, error) { return attempts == 2, nil },
	)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, attempts)
}

func TestGasRetrySendErrorStillConfirms(t *testing.T) {
	// A failed send may still have reached the chain, so confirmation is
	// checked anyway.
	confirmCalls := 0
	ok, err := testPolicy().Run(context.Background(),
		func(ctx context.Context, value int64) error { return errors.New("lite server timeout") },
		func(ctx context.Context) (bool, error) {
			confirmCalls++
			return confirmCalls == 1, nil
		},
	)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, confirmCalls)
}

func TestGasRetryReportsLastError(t *testing.T) {
	sendErr := errors.New("send rejected")
	ok, err := testPolicy().Run(context.Background(),
		func(ctx context.Context, value int64) error { return sendErr },
		func(ctx context.Context) (bool, error) { return false, nil },
	)
	require.False(t, ok)
	require.ErrorIs(t, err, sendErr)
}

func TestGasRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := DefaultGasRetryPolicy()
	p.SettleDelay = time.Millisecond
	ok, err := p.Run(ctx,
		func(ctx context.Context, value int64) error { return nil },
		func(ctx context.Context) (bool, error) { return true, nil },
	)
	require.False(t, ok)
	require.ErrorIs(t, err, context.Canceled)
}
