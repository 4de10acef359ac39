package domain

import "time"

// BlueprintStatus is the publication status of a blueprint.
type BlueprintStatus string

const (
	StatusDraft     BlueprintStatus = "draft"
	StatusPublished BlueprintStatus = "published"
	StatusArchived  BlueprintStatus = "archived"
)

// MaxTitleLength is the longest title, in characters, a store accepts.
const MaxTitleLength = 200

// Blueprint is the aggregate owned by the store of record.
// AutosaveVersion is the optimistic-concurrency token: it only grows, and every
// write names the value it believes is current.
type Blueprint struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	Status          BlueprintStatus `json:"status"`
	Metadata        map[string]any  `json:"metadata,omitempty"`
	AutosaveVersion uint64          `json:"autosave_version"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Clone returns a deep copy of b.
func (b Blueprint) Clone() Blueprint {
	out := b
	out.Metadata = cloneMap(b.Metadata)
	return out
}

// Hydrated is the authoritative payload used for initial load and reload.
type Hydrated struct {
	Blueprint Blueprint `json:"blueprint"`
	Graph     Graph     `json:"graph"`
}

// SnapshotRecord is a named, immutable copy of a blueprint at a version.
type SnapshotRecord struct {
	ID          string    `json:"id"`
	BlueprintID string    `json:"blueprint_id"`
	Label       string    `json:"label,omitempty"`
	Version     uint64    `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	Graph       Graph     `json:"graph"`
}

// Share grants read access to a blueprint through an opaque token.
type Share struct {
	Token       string     `json:"token"`
	BlueprintID string     `json:"blueprint_id"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}
