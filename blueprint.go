package blueprint

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/blueprint/internal/runtime"
	"github.com/aretw0/blueprint/pkg/adapters/memory"
	"github.com/aretw0/blueprint/pkg/domain"
	"github.com/aretw0/blueprint/pkg/persistence/middleware"
	"github.com/aretw0/blueprint/pkg/ports"
)

// Version is the library and CLI version. Release builds override it with -ldflags.
var Version = "0.4.0-dev"

// Settings tunes debounce windows, history size and the retry policy.
type Settings = runtime.Settings

// Backoff is the exponential retry delay policy.
type Backoff = runtime.Backoff

// DefaultSettings returns the stock timings.
func DefaultSettings() Settings {
	return runtime.DefaultSettings()
}

// Engine is the high-level entry point for the Blueprint library.
// It wraps one editing session of the internal runtime.
type Engine struct {
	runtime     *runtime.Engine
	gateway     ports.Gateway
	middlewares []middleware.Middleware
	runtimeOpts []runtime.Option
	logger      *slog.Logger
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithGateway sets the store of record. The default is an in-memory gateway.
func WithGateway(gw ports.Gateway) Option {
	return func(e *Engine) {
		e.gateway = gw
	}
}

// WithMiddleware wraps the gateway. The first middleware is the outermost.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(e *Engine) {
		e.middlewares = append(e.middlewares, mws...)
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock sets the timer source. Tests pass a clock.Fake.
func WithClock(c ports.Clock) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithClock(c))
	}
}

// WithTelemetry registers the sink receiving persistence events.
func WithTelemetry(sink ports.TelemetrySink) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithTelemetry(sink))
	}
}

// WithSettings overrides timings. Zero fields keep their defaults.
func WithSettings(s Settings) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithSettings(s))
	}
}

// WithIDGenerator replaces the uuid generator used for nodes and edges.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithIDGenerator(newID))
	}
}

// WithTitle sets the title of a new draft.
func WithTitle(title string) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithTitle(title))
	}
}

func configure(opts []Option) *Engine {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.gateway == nil {
		eng.gateway = memory.NewGateway()
	}
	eng.gateway = middleware.Chain(eng.gateway, eng.middlewares...)
	if eng.logger != nil {
		eng.runtimeOpts = append([]runtime.Option{runtime.WithLogger(eng.logger)}, eng.runtimeOpts...)
	}
	return eng
}

// New starts a session on a fresh draft holding a single root node.
// Nothing is written until the first save.
func New(opts ...Option) *Engine {
	eng := configure(opts)
	eng.runtime = runtime.New(eng.gateway, eng.runtimeOpts...)
	return eng
}

// Open starts a session on an existing blueprint.
func Open(ctx context.Context, id string, opts ...Option) (*Engine, error) {
	eng := configure(opts)
	if eng.logger != nil {
		eng.runtimeOpts = append(eng.runtimeOpts, runtime.WithLogger(eng.logger.With("blueprint_id", id)))
	}
	rt, err := runtime.Open(ctx, eng.gateway, id, eng.runtimeOpts...)
	if err != nil {
		return nil, err
	}
	eng.runtime = rt
	return eng, nil
}

// Gateway returns the (wrapped) gateway the engine persists through.
func (e *Engine) Gateway() ports.Gateway {
	return e.gateway
}

// AddNode creates a node of kind linked from parentID (or the selection, or the root)
// and returns its id. It returns "" once the engine is closed.
func (e *Engine) AddNode(kind string, pos domain.Position) string {
	return e.runtime.AddNode(kind, pos, "")
}

// AddChild is AddNode with an explicit parent.
func (e *Engine) AddChild(parentID, kind string, pos domain.Position) string {
	return e.runtime.AddNode(kind, pos, parentID)
}

// UpdateNodeData merges patch into a node's data.
func (e *Engine) UpdateNodeData(nodeID string, patch domain.NodeDataPatch) bool {
	return e.runtime.UpdateNodeData(nodeID, patch)
}

// MoveNode repositions a node. The root cannot move.
func (e *Engine) MoveNode(nodeID string, pos domain.Position) bool {
	return e.runtime.MoveNode(nodeID, pos)
}

// DeleteNode removes a node and its edges. The root cannot be deleted.
func (e *Engine) DeleteNode(nodeID string) bool {
	return e.runtime.DeleteNode(nodeID)
}

// Connect links two nodes and returns the edge id, or "" if the link is invalid.
func (e *Engine) Connect(source, target, sourceHandle, targetHandle string) string {
	return e.runtime.Connect(source, target, sourceHandle, targetHandle)
}

// DeleteEdge removes an edge.
func (e *Engine) DeleteEdge(edgeID string) bool {
	return e.runtime.DeleteEdge(edgeID)
}

// Select changes the selected node. Selection is not an edit.
func (e *Engine) Select(nodeID string) bool {
	return e.runtime.Select(nodeID)
}

// Undo restores the previous history entry.
func (e *Engine) Undo() bool {
	return e.runtime.Undo()
}

// Redo reapplies the next history entry.
func (e *Engine) Redo() bool {
	return e.runtime.Redo()
}

// Dispatch applies a command value.
func (e *Engine) Dispatch(ctx context.Context, cmd domain.Command) (domain.CommandResult, error) {
	return e.runtime.Dispatch(ctx, cmd)
}

// Save enqueues a manual save and waits for it to settle.
func (e *Engine) Save(ctx context.Context) error {
	return e.runtime.Save(ctx)
}

// Rename changes the blueprint title through the save queue.
func (e *Engine) Rename(ctx context.Context, title string) error {
	return e.runtime.Rename(ctx, title)
}

// Reload discards local state and rehydrates from the gateway.
func (e *Engine) Reload(ctx context.Context) error {
	return e.runtime.Reload(ctx)
}

// Flush saves pending edits now and waits until the queue is idle.
func (e *Engine) Flush(ctx context.Context) error {
	return e.runtime.Flush(ctx)
}

// CreateSnapshot records the persisted graph under label.
func (e *Engine) CreateSnapshot(ctx context.Context, label string) (*domain.SnapshotRecord, error) {
	return e.runtime.CreateSnapshot(ctx, label)
}

// CreateShare issues a share token valid for ttl (zero never expires).
func (e *Engine) CreateShare(ctx context.Context, ttl time.Duration) (*domain.Share, error) {
	return e.runtime.CreateShare(ctx, ttl)
}

// Status returns a snapshot of the session.
func (e *Engine) Status() domain.EditorState {
	return e.runtime.Status()
}

// Watch streams session snapshots until ctx is done or the engine closes.
func (e *Engine) Watch(ctx context.Context) <-chan domain.EditorState {
	return e.runtime.Watch(ctx)
}

// Close stops timers and the worker. Queued saves fail with domain.ErrDisposed.
func (e *Engine) Close() error {
	return e.runtime.Close()
}
