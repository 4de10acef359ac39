package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/blueprint"
	"github.com/aretw0/blueprint/internal/config"
	bphttp "github.com/aretw0/blueprint/pkg/adapters/http"
	"github.com/aretw0/blueprint/pkg/adapters/file"
	"github.com/aretw0/blueprint/pkg/adapters/memory"
	"github.com/aretw0/blueprint/pkg/adapters/redis"
	"github.com/aretw0/blueprint/pkg/persistence/middleware"
	"github.com/aretw0/blueprint/pkg/ports"
	"github.com/aretw0/blueprint/pkg/session"
	goredis "github.com/redis/go-redis/v9"
)

// Backend is the configured store of record plus what owns its connections.
type Backend struct {
	// Gateway is the decorated gateway every command talks to.
	Gateway ports.Gateway
	// Raw is the undecorated adapter, used by serve to re-expose it.
	Raw ports.Gateway
	// Locker is set for redis so sessions hold a lease.
	Locker   ports.DistributedLocker
	LeaseTTL time.Duration

	closers []func() error
}

// Close releases connections opened by OpenBackend.
func (b *Backend) Close() error {
	var firstErr error
	for _, c := range b.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// OpenBackend builds the gateway named by cfg.Gateway.Kind and wraps it with
// the configured middleware.
func OpenBackend(cfg *config.Config, logger *slog.Logger) (*Backend, error) {
	b := &Backend{}

	switch cfg.Gateway.Kind {
	case "memory":
		b.Raw = memory.NewGateway()
	case "file":
		b.Raw = file.New(cfg.Gateway.Path)
	case "redis":
		rc := cfg.Gateway.Redis
		client := goredis.NewClient(&goredis.Options{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
		})
		b.Raw = redis.NewFromClient(client, redis.WithPrefix(rc.Prefix))
		b.Locker = redis.NewLocker(client, rc.Prefix)
		b.LeaseTTL = rc.LeaseTTL
		b.closers = append(b.closers, client.Close)
	case "http":
		b.Raw = bphttp.NewClient(cfg.Gateway.URL)
	default:
		return nil, fmt.Errorf("unknown gateway kind %q", cfg.Gateway.Kind)
	}

	mws, err := Middlewares(cfg, logger)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	b.Gateway = middleware.Chain(b.Raw, mws...)
	return b, nil
}

// Middlewares returns the decorators enabled in cfg, outermost first:
// logging, circuit breaker, PII masking, encryption.
func Middlewares(cfg *config.Config, logger *slog.Logger) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if cfg.Middleware.Log {
		mws = append(mws, middleware.NewLoggingMiddleware(logger))
	}
	if cfg.Middleware.Breaker {
		bc := middleware.DefaultCircuitBreakerConfig("gateway-" + cfg.Gateway.Kind)
		bc.Logger = logger
		mws = append(mws, middleware.NewCircuitBreakerMiddleware(bc))
	}
	if len(cfg.Middleware.PIIPatterns) > 0 {
		pii, err := middleware.NewPIIMiddleware(cfg.Middleware.PIIPatterns)
		if err != nil {
			return nil, fmt.Errorf("pii middleware: %w", err)
		}
		mws = append(mws, pii)
	}
	active, fallback, err := cfg.EncryptionKeys()
	if err != nil {
		return nil, err
	}
	if active != nil {
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		})
		if err != nil {
			return nil, fmt.Errorf("encryption middleware: %w", err)
		}
		mws = append(mws, enc)
	}
	return mws, nil
}

// EngineOptions returns the options every command opens an engine with.
func (b *Backend) EngineOptions(cfg *config.Config, logger *slog.Logger, extra ...blueprint.Option) []blueprint.Option {
	opts := []blueprint.Option{
		blueprint.WithGateway(b.Gateway),
		blueprint.WithLogger(logger),
		blueprint.WithSettings(cfg.Settings()),
	}
	return append(opts, extra...)
}

// SessionManager builds a session manager over the backend, holding a lease
// when the backend provides a locker.
func (b *Backend) SessionManager(cfg *config.Config, logger *slog.Logger, extra ...blueprint.Option) *session.Manager {
	opts := []session.Option{
		session.WithLogger(logger),
		session.WithEngineOptions(
			append([]blueprint.Option{
				blueprint.WithLogger(logger),
				blueprint.WithSettings(cfg.Settings()),
			}, extra...)...,
		),
	}
	if b.Locker != nil {
		opts = append(opts, session.WithLocker(b.Locker, b.LeaseTTL))
	}
	return session.NewManager(b.Gateway, opts...)
}
