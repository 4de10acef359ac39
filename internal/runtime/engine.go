package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/aretw0/blueprint/internal/logging"
	"github.com/aretw0/blueprint/pkg/clock"
	"github.com/aretw0/blueprint/pkg/domain"
	"github.com/aretw0/blueprint/pkg/ports"
	"github.com/google/uuid"
)

// DefaultTitle is used for drafts created without a title.
const DefaultTitle = "Untitled blueprint"

// Settings tunes the engine's timing and retry policy.
type Settings struct {
	HistoryDebounce  time.Duration
	HistoryLimit     int
	AutosaveDebounce time.Duration
	AutosaveAttempts int
	ManualAttempts   int
	Backoff          Backoff
	// CallTimeout bounds a single gateway call made by the worker.
	CallTimeout time.Duration
}

// DefaultSettings returns the stock timings.
func DefaultSettings() Settings {
	return Settings{
		HistoryDebounce:  180 * time.Millisecond,
		HistoryLimit:     50,
		AutosaveDebounce: time.Second,
		AutosaveAttempts: 4,
		ManualAttempts:   1,
		Backoff:          Backoff{Base: 1500 * time.Millisecond, Max: 15 * time.Second},
		CallTimeout:      30 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultSettings.
func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.HistoryDebounce <= 0 {
		s.HistoryDebounce = d.HistoryDebounce
	}
	if s.HistoryLimit <= 0 {
		s.HistoryLimit = d.HistoryLimit
	}
	if s.AutosaveDebounce <= 0 {
		s.AutosaveDebounce = d.AutosaveDebounce
	}
	if s.AutosaveAttempts <= 0 {
		s.AutosaveAttempts = d.AutosaveAttempts
	}
	if s.ManualAttempts <= 0 {
		s.ManualAttempts = d.ManualAttempts
	}
	if s.Backoff.Base <= 0 {
		s.Backoff.Base = d.Backoff.Base
	}
	if s.Backoff.Max <= 0 {
		s.Backoff.Max = d.Backoff.Max
	}
	if s.CallTimeout <= 0 {
		s.CallTimeout = d.CallTimeout
	}
	return s
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock sets the scheduler used for debounce and backoff timers.
func WithClock(c ports.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithTelemetry sets the sink receiving persistence events.
func WithTelemetry(sink ports.TelemetrySink) Option {
	return func(e *Engine) {
		e.telemetry = sink
	}
}

// WithSettings overrides timings. Zero fields keep their defaults.
func WithSettings(s Settings) Option {
	return func(e *Engine) {
		e.settings = s.withDefaults()
	}
}

// WithIDGenerator replaces the uuid generator used for new nodes and edges.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		if newID != nil {
			e.newID = newID
		}
	}
}

// WithTitle sets the title of a new draft.
func WithTitle(title string) Option {
	return func(e *Engine) {
		e.blueprint.Title = title
	}
}

// Engine is an editing session for one blueprint. It owns the working graph,
// its undo history and the persistence queue that reconciles it with a Gateway.
// All methods are safe for concurrent use.
type Engine struct {
	mu sync.Mutex

	gateway   ports.Gateway
	clock     ports.Clock
	telemetry ports.TelemetrySink
	logger    *slog.Logger
	settings  Settings
	newID     func() string

	blueprint domain.Blueprint
	store     *graphStore
	history   *history
	version   uint64
	dirty     bool
	revision  uint64
	status    domain.SyncStatus
	lastErr   error
	epoch     uint64

	persistedNodes domain.IDSet
	persistedEdges domain.IDSet

	queue      jobQueue
	inFlight   *job
	parked     *job
	retryTimer ports.Timer

	autosaveTimer ports.Timer
	autosaveGen   uint64

	wake        chan struct{}
	done        chan struct{}
	closed      bool
	idleWaiters []chan struct{}
	watchers    map[chan domain.EditorState]struct{}

	// outbox holds telemetry built under the lock; the worker delivers it after unlocking.
	outbox []domain.JobEvent
}

// New creates an engine holding a fresh draft with a single root node.
// The first save creates the blueprint in the gateway.
func New(gw ports.Gateway, opts ...Option) *Engine {
	e := &Engine{
		gateway:        gw,
		clock:          clock.Real{},
		logger:         logging.NewNop(),
		settings:       DefaultSettings(),
		newID:          uuid.NewString,
		blueprint:      domain.Blueprint{Status: domain.StatusDraft},
		status:         domain.SyncIdle,
		persistedNodes: domain.NewIDSet(),
		persistedEdges: domain.NewIDSet(),
		wake:           make(chan struct{}, 1),
		done:           make(chan struct{}),
		watchers:       make(map[chan domain.EditorState]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.blueprint.Title == "" {
		e.blueprint.Title = DefaultTitle
	}

	g := domain.NewGraph(e.newID())
	e.store = newGraphStore(g, e.newID)
	e.history = newHistory(g, e.settings.HistoryLimit, e.settings.HistoryDebounce, e.clock)
	e.history.fire = e.guard

	go e.run()
	return e
}

// Open creates an engine hydrated from the gateway.
func Open(ctx context.Context, gw ports.Gateway, id string, opts ...Option) (*Engine, error) {
	hydrated, err := gw.GetBlueprint(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to open blueprint %s: %w", id, err)
	}
	e := New(gw, opts...)
	e.mu.Lock()
	e.hydrateLocked(hydrated)
	e.mu.Unlock()
	return e, nil
}

// Reload discards local state and rehydrates from the gateway.
// It is the only operation that can move the version backwards.
func (e *Engine) Reload(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return domain.ErrDisposed
	}
	id := e.blueprint.ID
	e.mu.Unlock()

	if id == "" {
		return domain.ErrNotPersisted
	}

	hydrated, err := e.gateway.GetBlueprint(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to reload blueprint %s: %w", id, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return domain.ErrDisposed
	}
	e.hydrateLocked(hydrated)
	e.logger.Info("blueprint reloaded", "blueprint_id", id, "version", e.version)
	return nil
}

func (e *Engine) hydrateLocked(h *domain.Hydrated) {
	e.epoch++
	e.cancelJobsLocked(domain.ErrJobCanceled)
	e.stopAutosaveLocked()

	g, added := h.Graph.Clone().EnsureRoot(e.newID())
	if added {
		e.logger.Warn("hydrated graph had no root, added one", "blueprint_id", h.Blueprint.ID)
	}

	e.blueprint = h.Blueprint.Clone()
	e.store.replace(g)
	e.history.Reset(g)
	e.version = h.Blueprint.AutosaveVersion
	e.persistedNodes = domain.NewIDSet(g.NodeIDs()...)
	e.persistedEdges = domain.NewIDSet(g.EdgeIDs()...)
	e.dirty = false
	e.revision++
	e.status = domain.SyncIdle
	e.lastErr = nil

	e.notifyIdleLocked()
	e.publishLocked()
}

// cancelJobsLocked resolves every queued and parked job with err.
func (e *Engine) cancelJobsLocked(err error) {
	for _, j := range e.queue.drain() {
		j.finish(err)
	}
	if e.parked != nil {
		e.parked.finish(err)
		e.parked = nil
	}
	if e.retryTimer != nil {
		e.retryTimer.Stop()
		e.retryTimer = nil
	}
}

// Save enqueues a manual save and waits for it to settle.
func (e *Engine) Save(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return domain.ErrDisposed
	}
	if e.status == domain.SyncConflict {
		e.mu.Unlock()
		return fmt.Errorf("%w: reload required", domain.ErrConflict)
	}
	e.stopAutosaveLocked()
	j := e.enqueueLocked(jobUpsert, false, e.settings.ManualAttempts)
	e.publishLocked()
	e.mu.Unlock()

	return e.wait(ctx, j)
}

// Rename changes the title through the persistence queue.
func (e *Engine) Rename(ctx context.Context, title string) error {
	if title == "" {
		return fmt.Errorf("%w: empty title", domain.ErrInvalidRequest)
	}
	if n := utf8.RuneCountInString(title); n > domain.MaxTitleLength {
		return fmt.Errorf("%w: title has %d characters, limit is %d", domain.ErrInvalidRequest, n, domain.MaxTitleLength)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return domain.ErrDisposed
	}
	if e.blueprint.ID == "" {
		// Drafts are renamed locally; the first save carries the title.
		e.blueprint.Title = title
		e.publishLocked()
		e.mu.Unlock()
		return nil
	}
	if e.status == domain.SyncConflict {
		e.mu.Unlock()
		return fmt.Errorf("%w: reload required", domain.ErrConflict)
	}
	j := e.enqueueLocked(jobRename, false, e.settings.ManualAttempts)
	j.title = title
	e.publishLocked()
	e.mu.Unlock()

	return e.wait(ctx, j)
}

func (e *Engine) wait(ctx context.Context, j *job) error {
	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush enqueues a pending autosave immediately and waits until nothing is
// queued, in flight or waiting to retry.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return domain.ErrDisposed
	}
	if e.autosaveTimer != nil && e.dirty && e.status != domain.SyncConflict {
		e.stopAutosaveLocked()
		e.enqueueLocked(jobUpsert, true, e.settings.AutosaveAttempts)
		e.publishLocked()
	}
	if e.idleLocked() {
		e.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	e.idleWaiters = append(e.idleWaiters, ch)
	e.mu.Unlock()

	select {
	case <-ch:
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.closed {
			return domain.ErrDisposed
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) idleLocked() bool {
	return e.queue.len() == 0 && e.inFlight == nil && e.parked == nil
}

func (e *Engine) notifyIdleLocked() {
	if !e.closed && !e.idleLocked() {
		return
	}
	for _, ch := range e.idleWaiters {
		close(ch)
	}
	e.idleWaiters = nil
}

// Close stops every timer and the worker. Queued jobs resolve with ErrDisposed.
// An in-flight gateway call is not aborted; its outcome is discarded.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.cancelJobsLocked(domain.ErrDisposed)
	e.stopAutosaveLocked()
	e.history.cancelPending()
	close(e.done)
	e.notifyIdleLocked()
	for ch := range e.watchers {
		close(ch)
		delete(e.watchers, ch)
	}
	if e.dirty {
		e.logger.Warn("engine closed with unsaved edits", "blueprint_id", e.blueprint.ID, "version", e.version)
	}
	return nil
}

// CreateSnapshot records the persisted graph under label.
func (e *Engine) CreateSnapshot(ctx context.Context, label string) (*domain.SnapshotRecord, error) {
	id, err := e.persistedID()
	if err != nil {
		return nil, err
	}
	return e.gateway.CreateSnapshot(ctx, id, ports.SnapshotOptions{Label: label})
}

// CreateShare issues a share token for the persisted blueprint.
func (e *Engine) CreateShare(ctx context.Context, ttl time.Duration) (*domain.Share, error) {
	id, err := e.persistedID()
	if err != nil {
		return nil, err
	}
	return e.gateway.CreateShare(ctx, id, ports.ShareOptions{TTL: ttl})
}

func (e *Engine) persistedID() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return "", domain.ErrDisposed
	}
	if e.blueprint.ID == "" {
		return "", domain.ErrNotPersisted
	}
	return e.blueprint.ID, nil
}

// Status returns a snapshot of the session.
func (e *Engine) Status() domain.EditorState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *Engine) stateLocked() domain.EditorState {
	s := domain.EditorState{
		BlueprintID: e.blueprint.ID,
		Title:       e.blueprint.Title,
		Status:      e.status,
		Version:     e.version,
		Dirty:       e.dirty,
		Graph:       e.store.graph.Clone(),
		SelectedID:  e.store.selected,
		CanUndo:     e.history.CanUndo(),
		CanRedo:     e.history.CanRedo(),
		HistoryLen:  e.history.Len(),
		QueueDepth:  e.queue.len(),
		InFlight:    e.inFlight != nil,
	}
	if e.lastErr != nil {
		s.LastError = e.lastErr.Error()
	}
	return s
}

// Watch streams state snapshots after every change until ctx is done or the
// engine closes. Slow readers only see the latest snapshot.
func (e *Engine) Watch(ctx context.Context) <-chan domain.EditorState {
	ch := make(chan domain.EditorState, 1)

	e.mu.Lock()
	if e.closed {
		close(ch)
		e.mu.Unlock()
		return ch
	}
	e.watchers[ch] = struct{}{}
	ch <- e.stateLocked()
	e.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-e.done:
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		if _, ok := e.watchers[ch]; ok {
			delete(e.watchers, ch)
			close(ch)
		}
	}()
	return ch
}

func (e *Engine) publishLocked() {
	if len(e.watchers) == 0 {
		return
	}
	state := e.stateLocked()
	for ch := range e.watchers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- state:
		default:
		}
	}
}

// guard runs a timer callback under the engine lock, unless the engine is closed.
func (e *Engine) guard(f func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	f()
	e.publishLocked()
}

func (e *Engine) scheduleAutosaveLocked() {
	if e.closed || e.status == domain.SyncConflict {
		return
	}
	e.stopAutosaveLocked()
	gen := e.autosaveGen
	e.autosaveTimer = e.clock.AfterFunc(e.settings.AutosaveDebounce, func() {
		e.guard(func() {
			if gen != e.autosaveGen {
				return
			}
			e.autosaveTimer = nil
			if !e.dirty || e.status == domain.SyncConflict {
				return
			}
			e.enqueueLocked(jobUpsert, true, e.settings.AutosaveAttempts)
		})
	})
}

func (e *Engine) stopAutosaveLocked() {
	e.autosaveGen++
	if e.autosaveTimer != nil {
		e.autosaveTimer.Stop()
		e.autosaveTimer = nil
	}
}

// emitLocked queues an event for delivery once the engine lock is released.
func (e *Engine) emitLocked(event domain.JobEvent) {
	if e.telemetry == nil {
		return
	}
	e.outbox = append(e.outbox, event)
}

// deliver hands events to the telemetry sink. It must be called without the
// engine lock. Sink failures never reach the engine.
func (e *Engine) deliver(events []domain.JobEvent) {
	for _, event := range events {
		e.deliverOne(event)
	}
}

func (e *Engine) deliverOne(event domain.JobEvent) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("telemetry sink panicked", "panic", r)
		}
	}()
	e.telemetry.Emit(context.Background(), event)
}
