package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/blueprint/pkg/domain"
	"github.com/aretw0/blueprint/pkg/ports"
	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
// It does not wrap domain.ErrFatal, so the engine keeps retrying with backoff.
var ErrCircuitOpen = errors.New("gateway circuit open")

// CircuitBreakerConfig holds configuration for the gateway circuit breaker.
type CircuitBreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration

	// FailureThreshold is the failure ratio that trips the breaker once
	// MinRequests calls have been counted.
	FailureThreshold float64
	MinRequests      uint32

	Logger *slog.Logger
}

// DefaultCircuitBreakerConfig returns a default configuration for name.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxRequests:      1,
		Interval:         30 * time.Second,
		Timeout:          20 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// countsAsFailure reports whether err says something about gateway health.
// Conflicts, missing blueprints and rejected requests are answers, not outages.
func countsAsFailure(err error) bool {
	if err == nil {
		return false
	}
	return !domain.IsConflict(err) &&
		!errors.Is(err, domain.ErrBlueprintNotFound) &&
		!errors.Is(err, domain.ErrInvalidRequest) &&
		!errors.Is(err, context.Canceled)
}

type breakerMiddleware struct {
	next ports.Gateway
	cb   *gobreaker.CircuitBreaker
}

// NewCircuitBreakerMiddleware guards the gateway with a gobreaker circuit breaker.
func NewCircuitBreakerMiddleware(config CircuitBreakerConfig) Middleware {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= config.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if config.Logger != nil {
				config.Logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			}
		},
		IsSuccessful: func(err error) bool {
			return !countsAsFailure(err)
		},
	})
	return func(next ports.Gateway) ports.Gateway {
		return &breakerMiddleware{next: next, cb: cb}
	}
}

func execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	var out T
	_, err := cb.Execute(func() (any, error) {
		var err error
		out, err = fn()
		return nil, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, fmt.Errorf("%w: %s: %v", ErrCircuitOpen, cb.Name(), err)
	}
	return out, err
}

func (m *breakerMiddleware) UpsertGraph(ctx context.Context, req ports.UpsertRequest) (ports.UpsertResult, error) {
	return execute(m.cb, func() (ports.UpsertResult, error) {
		return m.next.UpsertGraph(ctx, req)
	})
}

func (m *breakerMiddleware) GetBlueprint(ctx context.Context, id string) (*domain.Hydrated, error) {
	return execute(m.cb, func() (*domain.Hydrated, error) {
		return m.next.GetBlueprint(ctx, id)
	})
}

func (m *breakerMiddleware) ListBlueprints(ctx context.Context) ([]domain.Blueprint, error) {
	return execute(m.cb, func() ([]domain.Blueprint, error) {
		return m.next.ListBlueprints(ctx)
	})
}

func (m *breakerMiddleware) DeleteBlueprint(ctx context.Context, id string) error {
	_, err := execute(m.cb, func() (struct{}, error) {
		return struct{}{}, m.next.DeleteBlueprint(ctx, id)
	})
	return err
}

func (m *breakerMiddleware) DuplicateBlueprint(ctx context.Context, id string) (string, error) {
	return execute(m.cb, func() (string, error) {
		return m.next.DuplicateBlueprint(ctx, id)
	})
}

func (m *breakerMiddleware) RenameBlueprint(ctx context.Context, req ports.RenameRequest) (uint64, error) {
	return execute(m.cb, func() (uint64, error) {
		return m.next.RenameBlueprint(ctx, req)
	})
}

func (m *breakerMiddleware) CreateSnapshot(ctx context.Context, id string, opts ports.SnapshotOptions) (*domain.SnapshotRecord, error) {
	return execute(m.cb, func() (*domain.SnapshotRecord, error) {
		return m.next.CreateSnapshot(ctx, id, opts)
	})
}

func (m *breakerMiddleware) CreateShare(ctx context.Context, id string, opts ports.ShareOptions) (*domain.Share, error) {
	return execute(m.cb, func() (*domain.Share, error) {
		return m.next.CreateShare(ctx, id, opts)
	})
}
