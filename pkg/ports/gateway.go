package ports

import (
	"context"
	"time"

	"github.com/aretw0/blueprint/pkg/domain"
)

// UpsertRequest is a full graph write.
// An empty BlueprintID creates a new blueprint; ExpectedAutosaveVersion must then be 0.
type UpsertRequest struct {
	BlueprintID             string                 `json:"blueprint_id,omitempty"`
	Title                   string                 `json:"title" validate:"max=200"`
	Description             string                 `json:"description,omitempty" validate:"max=2000"`
	Status                  domain.BlueprintStatus `json:"status,omitempty" validate:"omitempty,oneof=draft published archived"`
	Metadata                map[string]any         `json:"metadata,omitempty"`
	Graph                   domain.Graph           `json:"graph"`
	DeletedNodeIDs          []string               `json:"deleted_node_ids,omitempty"`
	DeletedEdgeIDs          []string               `json:"deleted_edge_ids,omitempty"`
	Autosave                bool                   `json:"autosave"`
	ExpectedAutosaveVersion uint64                 `json:"expected_autosave_version"`
}

// UpsertResult identifies the written blueprint.
// Version is the new AutosaveVersion when the gateway reports it, 0 otherwise.
type UpsertResult struct {
	BlueprintID string `json:"blueprint_id"`
	Version     uint64 `json:"version,omitempty"`
}

// RenameRequest is a version-checked title change.
type RenameRequest struct {
	BlueprintID             string `json:"blueprint_id" validate:"required"`
	NextTitle               string `json:"next_title" validate:"required,max=200"`
	ExpectedAutosaveVersion uint64 `json:"expected_autosave_version"`
}

// SnapshotOptions configures CreateSnapshot.
type SnapshotOptions struct {
	Label string `json:"label,omitempty" validate:"max=200"`
}

// ShareOptions configures CreateShare. A zero TTL never expires.
type ShareOptions struct {
	TTL time.Duration `json:"ttl,omitempty" validate:"gte=0"`
}

// Gateway defines the store of record for blueprints.
// Version-sensitive operations (UpsertGraph, RenameBlueprint) must fail with an
// error matching domain.ErrConflict when the expected version does not match.
// Any other error is treated as transient unless it wraps domain.ErrFatal.
type Gateway interface {
	// UpsertGraph writes the graph and returns the blueprint id.
	UpsertGraph(ctx context.Context, req UpsertRequest) (UpsertResult, error)

	// GetBlueprint returns the authoritative blueprint and graph.
	// Returns domain.ErrBlueprintNotFound if the blueprint does not exist.
	GetBlueprint(ctx context.Context, id string) (*domain.Hydrated, error)

	// ListBlueprints returns every blueprint, most recently updated first.
	ListBlueprints(ctx context.Context) ([]domain.Blueprint, error)

	// DeleteBlueprint removes a blueprint and everything attached to it.
	DeleteBlueprint(ctx context.Context, id string) error

	// DuplicateBlueprint copies a blueprint under a new id at version 1.
	DuplicateBlueprint(ctx context.Context, id string) (string, error)

	// RenameBlueprint changes the title and returns the new AutosaveVersion.
	RenameBlueprint(ctx context.Context, req RenameRequest) (uint64, error)

	// CreateSnapshot records the current graph under a label.
	CreateSnapshot(ctx context.Context, id string, opts SnapshotOptions) (*domain.SnapshotRecord, error)

	// CreateShare issues a share token.
	CreateShare(ctx context.Context, id string, opts ShareOptions) (*domain.Share, error)
}
