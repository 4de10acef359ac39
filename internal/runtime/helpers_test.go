package runtime

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/blueprint/pkg/clock"
	"github.com/aretw0/blueprint/pkg/domain"
	"github.com/aretw0/blueprint/pkg/ports"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func sequentialIDs(prefix string) func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, n.Add(1))
	}
}

// scriptedGateway is a Gateway whose upsert outcomes are scripted per call.
// It tracks the number of concurrent calls to check queue serialization.
type scriptedGateway struct {
	mu       sync.Mutex
	version  uint64
	id       string
	graph    domain.Graph
	title    string
	requests []ports.UpsertRequest
	script   []error
	gate     chan struct{}

	active    atomic.Int32
	maxActive atomic.Int32
}

func newScriptedGateway(script ...error) *scriptedGateway {
	return &scriptedGateway{script: script}
}

func (g *scriptedGateway) UpsertGraph(ctx context.Context, req ports.UpsertRequest) (ports.UpsertResult, error) {
	n := g.active.Add(1)
	defer g.active.Add(-1)
	for {
		m := g.maxActive.Load()
		if n <= m || g.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	g.mu.Lock()
	gate := g.gate
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)

	if len(g.script) > 0 {
		err := g.script[0]
		g.script = g.script[1:]
		if err != nil {
			return ports.UpsertResult{}, err
		}
	}
	if req.ExpectedAutosaveVersion != g.version {
		return ports.UpsertResult{}, fmt.Errorf("expected %d, have %d: %w", req.ExpectedAutosaveVersion, g.version, domain.ErrConflict)
	}
	if g.id == "" {
		g.id = "bp-1"
	}
	g.version++
	g.graph = req.Graph.Clone()
	g.title = req.Title
	return ports.UpsertResult{BlueprintID: g.id, Version: g.version}, nil
}

func (g *scriptedGateway) GetBlueprint(ctx context.Context, id string) (*domain.Hydrated, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id != g.id {
		return nil, domain.ErrBlueprintNotFound
	}
	return &domain.Hydrated{
		Blueprint: domain.Blueprint{ID: g.id, Title: g.title, AutosaveVersion: g.version},
		Graph:     g.graph.Clone(),
	}, nil
}

func (g *scriptedGateway) ListBlueprints(ctx context.Context) ([]domain.Blueprint, error) {
	return nil, nil
}

func (g *scriptedGateway) DeleteBlueprint(ctx context.Context, id string) error {
	return nil
}

func (g *scriptedGateway) DuplicateBlueprint(ctx context.Context, id string) (string, error) {
	return "", domain.ErrFatal
}

func (g *scriptedGateway) RenameBlueprint(ctx context.Context, req ports.RenameRequest) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if req.ExpectedAutosaveVersion != g.version {
		return 0, domain.ErrConflict
	}
	g.version++
	g.title = req.NextTitle
	return g.version, nil
}

func (g *scriptedGateway) CreateSnapshot(ctx context.Context, id string, opts ports.SnapshotOptions) (*domain.SnapshotRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return &domain.SnapshotRecord{ID: "snap-1", BlueprintID: id, Label: opts.Label, Version: g.version, Graph: g.graph.Clone()}, nil
}

func (g *scriptedGateway) CreateShare(ctx context.Context, id string, opts ports.ShareOptions) (*domain.Share, error) {
	return &domain.Share{Token: "tok", BlueprintID: id}, nil
}

// seed installs an existing blueprint at the given version.
func (g *scriptedGateway) seed(id string, version uint64, graph domain.Graph) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.id = id
	g.version = version
	g.graph = graph.Clone()
	g.title = "Seeded"
}

func (g *scriptedGateway) setVersion(version uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.version = version
}

func (g *scriptedGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

func (g *scriptedGateway) request(i int) ports.UpsertRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests[i]
}

// eventRecorder is a TelemetrySink collecting events.
type eventRecorder struct {
	mu     sync.Mutex
	events []domain.JobEvent
}

func (r *eventRecorder) Emit(ctx context.Context, event domain.JobEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) ofType(t domain.JobEventType) []domain.JobEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.JobEvent
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// waitFor blocks until n events of type t were delivered and returns them.
// Delivery happens after the engine lock is released, so it can trail the status.
func (r *eventRecorder) waitFor(tb testing.TB, t domain.JobEventType, n int) []domain.JobEvent {
	tb.Helper()
	require.Eventually(tb, func() bool { return len(r.ofType(t)) >= n }, time.Second, time.Millisecond)
	return r.ofType(t)
}

type harness struct {
	engine  *Engine
	gateway *scriptedGateway
	clock   *clock.Fake
	events  *eventRecorder
}

func newHarness(t *testing.T, gw *scriptedGateway, opts ...Option) *harness {
	t.Helper()
	h := &harness{gateway: gw, clock: clock.NewFake(epoch), events: &eventRecorder{}}
	base := []Option{
		WithClock(h.clock),
		WithTelemetry(h.events),
		WithIDGenerator(sequentialIDs("id")),
	}
	h.engine = New(gw, append(base, opts...)...)
	t.Cleanup(func() { _ = h.engine.Close() })
	return h
}

func openHarness(t *testing.T, gw *scriptedGateway, id string) *harness {
	t.Helper()
	h := &harness{gateway: gw, clock: clock.NewFake(epoch), events: &eventRecorder{}}
	e, err := Open(context.Background(), gw, id,
		WithClock(h.clock),
		WithTelemetry(h.events),
		WithIDGenerator(sequentialIDs("id")),
	)
	require.NoError(t, err)
	h.engine = e
	t.Cleanup(func() { _ = h.engine.Close() })
	return h
}

// waitParked blocks until a failed job is waiting for its retry timer.
func (h *harness) waitParked(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		h.engine.mu.Lock()
		defer h.engine.mu.Unlock()
		return h.engine.parked != nil
	}, time.Second, time.Millisecond)
}

// waitStatus blocks until the engine reports status with nothing in flight.
func (h *harness) waitStatus(t *testing.T, status domain.SyncStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		s := h.engine.Status()
		return s.Status == status && !s.InFlight
	}, time.Second, time.Millisecond)
}
