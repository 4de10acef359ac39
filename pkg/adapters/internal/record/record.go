// Package record holds the blueprint write rules shared by the storage adapters.
package record

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/blueprint/pkg/domain"
	"github.com/aretw0/blueprint/pkg/ports"
	"github.com/go-playground/validator/v10"
)

// DefaultTitle names blueprints created without a title.
const DefaultTitle = "Untitled blueprint"

var validate = validator.New()

// Validate checks a request's struct tags and wraps failures in domain.ErrInvalidRequest.
func Validate(req any) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidRequest, formatValidationError(err))
	}
	return nil
}

func formatValidationError(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, e.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, e.Param()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

// Record is the stored form of a blueprint.
type Record struct {
	Blueprint domain.Blueprint        `json:"blueprint"`
	Graph     domain.Graph            `json:"graph"`
	Snapshots []domain.SnapshotRecord `json:"snapshots,omitempty"`
	Shares    []domain.Share          `json:"shares,omitempty"`
}

// Create builds a record at version 1 from a create request.
func Create(id string, req ports.UpsertRequest, now time.Time) (*Record, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	if req.ExpectedAutosaveVersion != 0 {
		return nil, fmt.Errorf("%w: create expects version 0, got %d", domain.ErrConflict, req.ExpectedAutosaveVersion)
	}
	r := &Record{
		Blueprint: domain.Blueprint{
			ID:              id,
			Title:           req.Title,
			Status:          domain.StatusDraft,
			AutosaveVersion: 1,
			CreatedAt:       now,
			UpdatedAt:       now,
		},
		Graph: domain.Graph{}.Merge(req.Graph, req.DeletedNodeIDs, req.DeletedEdgeIDs),
	}
	r.applyAttributes(req)
	if r.Blueprint.Title == "" {
		r.Blueprint.Title = DefaultTitle
	}
	return r, nil
}

// Upsert applies a version-checked graph write.
func (r *Record) Upsert(req ports.UpsertRequest, now time.Time) error {
	if err := Validate(req); err != nil {
		return err
	}
	if err := r.checkVersion(req.ExpectedAutosaveVersion); err != nil {
		return err
	}
	r.Graph = r.Graph.Merge(req.Graph, req.DeletedNodeIDs, req.DeletedEdgeIDs)
	r.applyAttributes(req)
	r.bump(now)
	return nil
}

// Rename applies a version-checked title change and returns the new version.
func (r *Record) Rename(req ports.RenameRequest, now time.Time) (uint64, error) {
	if err := Validate(req); err != nil {
		return 0, err
	}
	if err := r.checkVersion(req.ExpectedAutosaveVersion); err != nil {
		return 0, err
	}
	r.Blueprint.Title = req.NextTitle
	r.bump(now)
	return r.Blueprint.AutosaveVersion, nil
}

func (r *Record) checkVersion(expected uint64) error {
	if expected != r.Blueprint.AutosaveVersion {
		return fmt.Errorf("%w: blueprint %s is at version %d, write expected %d",
			domain.ErrConflict, r.Blueprint.ID, r.Blueprint.AutosaveVersion, expected)
	}
	return nil
}

func (r *Record) bump(now time.Time) {
	r.Blueprint.AutosaveVersion++
	r.Blueprint.UpdatedAt = now
}

// applyAttributes copies the blueprint attributes a request sets.
func (r *Record) applyAttributes(req ports.UpsertRequest) {
	if req.Title != "" {
		r.Blueprint.Title = req.Title
	}
	if req.Description != "" {
		r.Blueprint.Description = req.Description
	}
	if req.Status != "" {
		r.Blueprint.Status = req.Status
	}
	if req.Metadata != nil {
		r.Blueprint.Metadata = domain.Blueprint{Metadata: req.Metadata}.Clone().Metadata
	}
}

// Duplicate copies the blueprint and graph under id at version 1.
// Snapshots and shares stay with the original.
func (r *Record) Duplicate(id string, now time.Time) *Record {
	bp := r.Blueprint.Clone()
	bp.ID = id
	bp.Title = r.Blueprint.Title + " (copy)"
	bp.Status = domain.StatusDraft
	bp.AutosaveVersion = 1
	bp.CreatedAt = now
	bp.UpdatedAt = now
	return &Record{Blueprint: bp, Graph: r.Graph.Clone()}
}

// Snapshot records the current graph and returns the snapshot.
func (r *Record) Snapshot(id string, opts ports.SnapshotOptions, now time.Time) (*domain.SnapshotRecord, error) {
	if err := Validate(opts); err != nil {
		return nil, err
	}
	snap := domain.SnapshotRecord{
		ID:          id,
		BlueprintID: r.Blueprint.ID,
		Label:       opts.Label,
		Version:     r.Blueprint.AutosaveVersion,
		CreatedAt:   now,
		Graph:       r.Graph.Clone(),
	}
	r.Snapshots = append(r.Snapshots, snap)
	out := snap
	out.Graph = snap.Graph.Clone()
	return &out, nil
}

// Share issues a share under token. A zero TTL never expires.
func (r *Record) Share(token string, opts ports.ShareOptions, now time.Time) (*domain.Share, error) {
	if err := Validate(opts); err != nil {
		return nil, err
	}
	share := domain.Share{Token: token, BlueprintID: r.Blueprint.ID}
	if opts.TTL > 0 {
		expires := now.Add(opts.TTL)
		share.ExpiresAt = &expires
	}
	r.Shares = append(r.Shares, share)
	return &share, nil
}

// Hydrated returns a deep copy of the blueprint and its graph.
func (r *Record) Hydrated() *domain.Hydrated {
	return &domain.Hydrated{
		Blueprint: r.Blueprint.Clone(),
		Graph:     r.Graph.Clone(),
	}
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	out := &Record{
		Blueprint: r.Blueprint.Clone(),
		Graph:     r.Graph.Clone(),
		Shares:    append([]domain.Share(nil), r.Shares...),
	}
	for _, s := range r.Snapshots {
		s.Graph = s.Graph.Clone()
		out.Snapshots = append(out.Snapshots, s)
	}
	return out
}

// SortByUpdated orders blueprints most recently updated first, then by id.
func SortByUpdated(list []domain.Blueprint) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].UpdatedAt.Equal(list[j].UpdatedAt) {
			return list[i].UpdatedAt.After(list[j].UpdatedAt)
		}
		return list[i].ID < list[j].ID
	})
}
