package client_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robalyx/guardian/internal/ai/client"
	"github.com/robalyx/guardian/internal/moderation"
	"github.com/robalyx/guardian/internal/setup/config"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func breakerConfig() *config.CircuitBreaker {
	return &config.CircuitBreaker{
		MaxRequests:  1,
		Interval:     0,
		Timeout:      60000,
		MinRequests:  2,
		FailureRatio: 0.5,
	}
}

func TestGuard_OpensAfterFailures(t *testing.T) {
	t.Parallel()

	guard := client.NewGuard("test", breakerConfig(), 2, zap.NewNop())

	var calls atomic.Int32
	failing := func(context.Context) (string, error) {
		calls.Add(1)
		return "", fmt.Errorf("%w: connection refused", moderation.ErrBackendUnavailable)
	}

	for range 2 {
		_, err := client.Call(t.Context(), guard, failing)
		require.ErrorIs(t, err, moderation.ErrBackendUnavailable)
	}
	assert.Equal(t, gobreaker.StateOpen, guard.State())

	// Open circuit rejects without calling the backend
	_, err := client.Call(t.Context(), guard, failing)
	require.ErrorIs(t, err, moderation.ErrBackendUnavailable)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGuard_FormatErrorsDoNotTrip(t *testing.T) {
	t.Parallel()

	guard := client.NewGuard("test", breakerConfig(), 2, zap.NewNop())

	for range 5 {
		_, err := client.Call(t.Context(), guard, func(context.Context) (int, error) {
			return 0, fmt.Errorf("%w: not json", moderation.ErrBackendFormat)
		})
		require.ErrorIs(t, err, moderation.ErrBackendFormat)
	}
	assert.Equal(t, gobreaker.StateClosed, guard.State())
}

func TestGuard_ReturnsResult(t *testing.T) {
	t.Parallel()

	guard := client.NewGuard("test", breakerConfig(), 1, zap.NewNop())

	verdict, err := client.Call(t.Context(), guard, func(context.Context) (*moderation.Verdict, error) {
		return &moderation.Verdict{Flagged: true, Reason: "spam"}, nil
	})
	require.NoError(t, err)
	assert.True(t, verdict.Flagged)
	assert.Equal(t, "spam", verdict.Reason)
}

func TestGuard_BoundsConcurrency(t *testing.T) {
	t.Parallel()

	guard := client.NewGuard("test", breakerConfig(), 2, zap.NewNop())

	var (
		inFlight atomic.Int32
		peak     atomic.Int32
		wg       sync.WaitGroup
	)

	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = client.Call(t.Context(), guard, func(context.Context) (bool, error) {
				current := inFlight.Add(1)
				for {
					old := peak.Load()
					if current <= old || peak.CompareAndSwap(old, current) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				inFlight.Add(-1)
				return true, nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestGuard_CancelledWhileWaiting(t *testing.T) {
	t.Parallel()

	guard := client.NewGuard("test", breakerConfig(), 1, zap.NewNop())

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = client.Call(context.Background(), guard, func(context.Context) (bool, error) {
			close(started)
			<-release
			return true, nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := client.Call(ctx, guard, func(context.Context) (bool, error) {
		return true, nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	close(release)
}
