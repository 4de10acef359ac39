package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/blueprint/pkg/adapters/internal/record"
	"github.com/aretw0/blueprint/pkg/domain"
	"github.com/aretw0/blueprint/pkg/ports"
	"github.com/google/uuid"
)

// Gateway implements ports.Gateway on the local filesystem.
// Each blueprint is one JSON document under BasePath. Writes are atomic
// (temp file, fsync, rename) and serialized within the process.
type Gateway struct {
	BasePath string

	mu    sync.Mutex
	now   func() time.Time
	newID func() string
}

// New creates a Gateway rooted at basePath.
// If basePath is empty, it defaults to ".blueprint/blueprints".
func New(basePath string) *Gateway {
	if basePath == "" {
		basePath = filepath.Join(".blueprint", "blueprints")
	}
	return &Gateway{
		BasePath: basePath,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (g *Gateway) path(id string) string {
	return filepath.Join(g.BasePath, id+".json")
}

func validID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("%w: invalid blueprint id %q", domain.ErrInvalidRequest, id)
	}
	return nil
}

func (g *Gateway) load(id string) (*record.Record, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(g.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrBlueprintNotFound
		}
		return nil, fmt.Errorf("failed to read blueprint file: %w", err)
	}
	var r record.Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal blueprint %s: %v", domain.ErrFatal, id, err)
	}
	return &r, nil
}

// save writes the record atomically.
func (g *Gateway) save(r *record.Record) error {
	if err := os.MkdirAll(g.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure blueprint directory: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal blueprint: %w", err)
	}

	id := r.Blueprint.ID
	tmpFile, err := os.CreateTemp(g.BasePath, "tmp-"+id+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Windows cannot rename over an existing file.
	dest := g.path(id)
	if _, err := os.Stat(dest); err == nil {
		if err := os.Remove(dest); err != nil {
			return fmt.Errorf("failed to remove existing blueprint file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// UpsertGraph creates or updates a blueprint graph.
func (g *Gateway) UpsertGraph(ctx context.Context, req ports.UpsertRequest) (ports.UpsertResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var r *record.Record
	if req.BlueprintID == "" {
		created, err := record.Create(g.newID(), req, g.now())
		if err != nil {
			return ports.UpsertResult{}, err
		}
		r = created
	} else {
		loaded, err := g.load(req.BlueprintID)
		if err != nil {
			return ports.UpsertResult{}, err
		}
		if err := loaded.Upsert(req, g.now()); err != nil {
			return ports.UpsertResult{}, err
		}
		r = loaded
	}

	if err := g.save(r); err != nil {
		return ports.UpsertResult{}, err
	}
	return ports.UpsertResult{BlueprintID: r.Blueprint.ID, Version: r.Blueprint.AutosaveVersion}, nil
}

// GetBlueprint reads a blueprint document.
func (g *Gateway) GetBlueprint(ctx context.Context, id string) (*domain.Hydrated, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, err := g.load(id)
	if err != nil {
		return nil, err
	}
	return r.Hydrated(), nil
}

// ListBlueprints reads every document in BasePath.
func (g *Gateway) ListBlueprints(ctx context.Context) ([]domain.Blueprint, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	entries, err := os.ReadDir(g.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.Blueprint{}, nil
		}
		return nil, fmt.Errorf("failed to list blueprints: %w", err)
	}

	list := make([]domain.Blueprint, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		r, err := g.load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			if errors.Is(err, domain.ErrBlueprintNotFound) {
				continue
			}
			return nil, err
		}
		list = append(list, r.Blueprint)
	}
	record.SortByUpdated(list)
	return list, nil
}

// DeleteBlueprint removes a blueprint document.
func (g *Gateway) DeleteBlueprint(ctx context.Context, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := os.Remove(g.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blueprint file: %w", err)
	}
	return nil
}

// DuplicateBlueprint copies a blueprint under a new id.
func (g *Gateway) DuplicateBlueprint(ctx context.Context, id string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, err := g.load(id)
	if err != nil {
		return "", err
	}
	dup := r.Duplicate(g.newID(), g.now())
	if err := g.save(dup); err != nil {
		return "", err
	}
	return dup.Blueprint.ID, nil
}

// RenameBlueprint changes the title if the version matches.
func (g *Gateway) RenameBlueprint(ctx context.Context, req ports.RenameRequest) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, err := g.load(req.BlueprintID)
	if err != nil {
		return 0, err
	}
	version, err := r.Rename(req, g.now())
	if err != nil {
		return 0, err
	}
	if err := g.save(r); err != nil {
		return 0, err
	}
	return version, nil
}

// CreateSnapshot records the current graph inside the blueprint document.
func (g *Gateway) CreateSnapshot(ctx context.Context, id string, opts ports.SnapshotOptions) (*domain.SnapshotRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, err := g.load(id)
	if err != nil {
		return nil, err
	}
	snap, err := r.Snapshot(g.newID(), opts, g.now())
	if err != nil {
		return nil, err
	}
	if err := g.save(r); err != nil {
		return nil, err
	}
	return snap, nil
}

// CreateShare issues a share token stored inside the blueprint document.
func (g *Gateway) CreateShare(ctx context.Context, id string, opts ports.ShareOptions) (*domain.Share, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, err := g.load(id)
	if err != nil {
		return nil, err
	}
	share, err := r.Share(g.newID(), opts, g.now())
	if err != nil {
		return nil, err
	}
	if err := g.save(r); err != nil {
		return nil, err
	}
	return share, nil
}
