package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/blueprint"
	"github.com/aretw0/blueprint/internal/logging"
	"github.com/aretw0/blueprint/pkg/observability"
	"github.com/aretw0/blueprint/pkg/ports"
)

// DefaultLeaseTTL bounds how long a crashed replica can hold a blueprint.
const DefaultLeaseTTL = 10 * time.Minute

// ErrUnknownSession is returned when releasing a blueprint that is not open.
var ErrUnknownSession = errors.New("session not open")

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// session is an open engine and the lease that guards it.
type session struct {
	engine *blueprint.Engine
	refs   int
	unlock ports.UnlockFunc
}

// Manager orchestrates engine access, ensuring one engine per blueprint.
// It uses Reference Counting to close engines and garbage collect unused locks.
type Manager struct {
	gateway    ports.Gateway
	engineOpts []blueprint.Option

	mu       sync.Mutex
	locks    map[string]*lockEntry
	sessions map[string]*session

	locker     ports.DistributedLocker
	leaseTTL   time.Duration
	logger     *slog.Logger
	aggregator *observability.Aggregator
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed leases with the given TTL (DefaultLeaseTTL if zero).
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(m *Manager) {
		m.locker = locker
		if ttl > 0 {
			m.leaseTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithEngineOptions sets options applied to every engine the Manager opens.
// The gateway option is always the Manager's own.
func WithEngineOptions(opts ...blueprint.Option) Option {
	return func(m *Manager) {
		m.engineOpts = append(m.engineOpts, opts...)
	}
}

// NewManager creates a Manager opening engines against gw.
func NewManager(gw ports.Gateway, opts ...Option) *Manager {
	m := &Manager{
		gateway:    gw,
		locks:      make(map[string]*lockEntry),
		sessions:   make(map[string]*session),
		leaseTTL:   DefaultLeaseTTL,
		logger:     logging.NewNop(),
		aggregator: observability.NewAggregator(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(id) after unlocking.
func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		entry = &lockEntry{}
		m.locks[id] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, id)
	}
}

// withLock serializes Open and Release for one blueprint.
func (m *Manager) withLock(id string, fn func() error) error {
	entry := m.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(id)
	}()
	return fn()
}

// Open returns the engine for id, hydrating it on first use.
// Every successful Open must be paired with a Release.
func (m *Manager) Open(ctx context.Context, id string) (*blueprint.Engine, error) {
	var eng *blueprint.Engine
	err := m.withLock(id, func() error {
		m.mu.Lock()
		s, ok := m.sessions[id]
		if ok {
			s.refs++
			eng = s.engine
		}
		m.mu.Unlock()
		if ok {
			return nil
		}

		var unlock ports.UnlockFunc
		if m.locker != nil {
			var err error
			unlock, err = m.locker.Lock(ctx, id, m.leaseTTL)
			if err != nil {
				return fmt.Errorf("failed to acquire lease for blueprint %s: %w", id, err)
			}
		}

		opts := append(append([]blueprint.Option{}, m.engineOpts...), blueprint.WithGateway(m.gateway))
		opened, err := blueprint.Open(ctx, id, opts...)
		if err != nil {
			m.unlock(id, unlock)
			return err
		}

		m.mu.Lock()
		m.sessions[id] = &session{engine: opened, refs: 1, unlock: unlock}
		m.mu.Unlock()
		m.aggregator.AddWatcher(id, opened)
		m.logger.Info("session opened", "blueprint_id", id)
		eng = opened
		return nil
	})
	return eng, err
}

// Get returns the open engine for id without taking a reference.
func (m *Manager) Get(id string) (*blueprint.Engine, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return s.engine, true
}

// Release drops one reference. The last one flushes pending edits, closes the
// engine and gives up the lease. The engine is closed even when the flush fails.
func (m *Manager) Release(ctx context.Context, id string) error {
	return m.withLock(id, func() error {
		m.mu.Lock()
		s, ok := m.sessions[id]
		if !ok {
			m.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrUnknownSession, id)
		}
		s.refs--
		last := s.refs <= 0
		if last {
			delete(m.sessions, id)
		}
		m.mu.Unlock()

		if !last {
			return nil
		}
		return m.closeSession(ctx, id, s)
	})
}

func (m *Manager) closeSession(ctx context.Context, id string, s *session) error {
	m.aggregator.RemoveWatcher(id)
	flushErr := s.engine.Flush(ctx)
	if flushErr != nil {
		m.logger.Warn("session closed with unsaved edits", "blueprint_id", id, "err", flushErr)
	}
	closeErr := s.engine.Close()
	m.unlock(id, s.unlock)
	m.logger.Info("session closed", "blueprint_id", id)
	return errors.Join(flushErr, closeErr)
}

func (m *Manager) unlock(id string, unlock ports.UnlockFunc) {
	if unlock == nil {
		return
	}
	// The caller's context may already be done; the lease still has to go.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := unlock(ctx); err != nil {
		m.logger.Warn("Failed to release lease (will expire via TTL)",
			"blueprint_id", id,
			"err", err,
		)
	}
}

// List returns the ids of open sessions, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Watch merges the state streams of the sessions open at call time.
func (m *Manager) Watch(ctx context.Context) <-chan observability.Snapshot {
	return m.aggregator.Watch(ctx)
}

// Shutdown closes every session regardless of outstanding references.
func (m *Manager) Shutdown(ctx context.Context) error {
	var errs []error
	for _, id := range m.List() {
		err := m.withLock(id, func() error {
			m.mu.Lock()
			s, ok := m.sessions[id]
			delete(m.sessions, id)
			m.mu.Unlock()
			if !ok {
				return nil
			}
			return m.closeSession(ctx, id, s)
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
