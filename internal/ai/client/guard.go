package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robalyx/guardian/internal/moderation"
	"github.com/robalyx/guardian/internal/setup/config"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Guard protects an analysis backend with a circuit breaker and bounds the
// number of concurrent calls made to it.
type Guard struct {
	name      string
	breaker   *gobreaker.CircuitBreaker
	semaphore *semaphore.Weighted
	logger    *zap.Logger
}

// NewGuard creates a Guard for the named backend.
func NewGuard(name string, cfg *config.CircuitBreaker, maxConcurrent int64, logger *zap.Logger) *Guard {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	logger = logger.Named("guard").With(zap.String("backend", name))

	// Create circuit breaker settings
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.Interval) * time.Millisecond,
		Timeout:     time.Duration(cfg.Timeout) * time.Millisecond,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests && failureRatio >= cfg.FailureRatio
		},
		OnStateChange: func(_ string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// Only availability failures count against the backend
		IsSuccessful: func(err error) bool {
			return err == nil ||
				!errors.Is(err, moderation.ErrBackendUnavailable) ||
				errors.Is(err, context.Canceled)
		},
	}

	return &Guard{
		name:      name,
		breaker:   gobreaker.NewCircuitBreaker(settings),
		semaphore: semaphore.NewWeighted(maxConcurrent),
		logger:    logger,
	}
}

// State returns the current circuit breaker state.
func (g *Guard) State() gobreaker.State {
	return g.breaker.State()
}

// Call runs fn through the guard. An open circuit is reported as
// moderation.ErrBackendUnavailable without calling fn.
func Call[T any](ctx context.Context, g *Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	// Try to acquire semaphore
	if err := g.semaphore.Acquire(ctx, 1); err != nil {
		return zero, fmt.Errorf("failed to acquire semaphore: %w", err)
	}
	defer g.semaphore.Release(1)

	// Execute request
	result, err := g.breaker.Execute(func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			g.logger.Warn("Rejected call to unavailable backend", zap.Error(err))
			return zero, fmt.Errorf("%w: %s circuit is open: %w", moderation.ErrBackendUnavailable, g.name, err)
		}
		return zero, err
	}

	return result.(T), nil
}
