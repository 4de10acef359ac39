package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/blueprint/pkg/adapters/internal/record"
	"github.com/aretw0/blueprint/pkg/domain"
	"github.com/aretw0/blueprint/pkg/ports"
	"github.com/google/uuid"
)

// Gateway implements ports.Gateway in memory.
// Safe for concurrent use.
type Gateway struct {
	mu      sync.RWMutex
	records map[string]*record.Record
	now     func() time.Time
	newID   func() string
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithNow overrides the time source used for timestamps.
func WithNow(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// WithIDGenerator overrides the generator for blueprint, snapshot and share ids.
func WithIDGenerator(newID func() string) Option {
	return func(g *Gateway) {
		g.newID = newID
	}
}

// NewGateway creates an empty in-memory gateway.
func NewGateway(opts ...Option) *Gateway {
	g := &Gateway{
		records: make(map[string]*record.Record),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// UpsertGraph creates or updates a blueprint graph.
func (g *Gateway) UpsertGraph(ctx context.Context, req ports.UpsertRequest) (ports.UpsertResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if req.BlueprintID == "" {
		r, err := record.Create(g.newID(), req, g.now())
		if err != nil {
			return ports.UpsertResult{}, err
		}
		g.records[r.Blueprint.ID] = r
		return ports.UpsertResult{BlueprintID: r.Blueprint.ID, Version: r.Blueprint.AutosaveVersion}, nil
	}

	r, ok := g.records[req.BlueprintID]
	if !ok {
		return ports.UpsertResult{}, domain.ErrBlueprintNotFound
	}
	// Work on a copy so a rejected write leaves the record untouched.
	next := r.Clone()
	if err := next.Upsert(req, g.now()); err != nil {
		return ports.UpsertResult{}, err
	}
	g.records[req.BlueprintID] = next
	return ports.UpsertResult{BlueprintID: req.BlueprintID, Version: next.Blueprint.AutosaveVersion}, nil
}

// GetBlueprint returns a copy of the stored blueprint.
func (g *Gateway) GetBlueprint(ctx context.Context, id string) (*domain.Hydrated, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	r, ok := g.records[id]
	if !ok {
		return nil, domain.ErrBlueprintNotFound
	}
	return r.Hydrated(), nil
}

// ListBlueprints returns every blueprint, most recently updated first.
func (g *Gateway) ListBlueprints(ctx context.Context) ([]domain.Blueprint, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	list := make([]domain.Blueprint, 0, len(g.records))
	for _, r := range g.records {
		list = append(list, r.Blueprint.Clone())
	}
	record.SortByUpdated(list)
	return list, nil
}

// DeleteBlueprint removes a blueprint. Deleting a missing blueprint is not an error.
func (g *Gateway) DeleteBlueprint(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.records, id)
	return nil
}

// DuplicateBlueprint copies a blueprint under a new id.
func (g *Gateway) DuplicateBlueprint(ctx context.Context, id string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.records[id]
	if !ok {
		return "", domain.ErrBlueprintNotFound
	}
	dup := r.Duplicate(g.newID(), g.now())
	g.records[dup.Blueprint.ID] = dup
	return dup.Blueprint.ID, nil
}

// RenameBlueprint changes the title if the version matches.
func (g *Gateway) RenameBlueprint(ctx context.Context, req ports.RenameRequest) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.records[req.BlueprintID]
	if !ok {
		return 0, domain.ErrBlueprintNotFound
	}
	return r.Rename(req, g.now())
}

// CreateSnapshot records the current graph.
func (g *Gateway) CreateSnapshot(ctx context.Context, id string, opts ports.SnapshotOptions) (*domain.SnapshotRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.records[id]
	if !ok {
		return nil, domain.ErrBlueprintNotFound
	}
	return r.Snapshot(g.newID(), opts, g.now())
}

// CreateShare issues a share token.
func (g *Gateway) CreateShare(ctx context.Context, id string, opts ports.ShareOptions) (*domain.Share, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.records[id]
	if !ok {
		return nil, domain.ErrBlueprintNotFound
	}
	return r.Share(g.newID(), opts, g.now())
}

// Snapshots lists the snapshots of a blueprint, oldest first.
func (g *Gateway) Snapshots(ctx context.Context, id string) ([]domain.SnapshotRecord, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	r, ok := g.records[id]
	if !ok {
		return nil, domain.ErrBlueprintNotFound
	}
	return r.Clone().Snapshots, nil
}
