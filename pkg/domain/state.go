package domain

// SyncStatus is the state of the persistence scheduler.
type SyncStatus string

const (
	SyncIdle     SyncStatus = "idle"     // Nothing in flight
	SyncSaving   SyncStatus = "saving"   // A job is queued, in flight or waiting to retry
	SyncConflict SyncStatus = "conflict" // A write was rejected; reload required
	SyncError    SyncStatus = "error"    // Retries exhausted; edits kept locally
)

// EditorState is an observable snapshot of an editing session.
type EditorState struct {
	BlueprintID string     `json:"blueprint_id,omitempty"`
	Title       string     `json:"title"`
	Status      SyncStatus `json:"status"`
	Version     uint64     `json:"version"`
	Dirty       bool       `json:"dirty"`
	Graph       Graph      `json:"graph"`
	SelectedID  string     `json:"selected_id,omitempty"`
	CanUndo     bool       `json:"can_undo"`
	CanRedo     bool       `json:"can_redo"`
	HistoryLen  int        `json:"history_len"`
	QueueDepth  int        `json:"queue_depth"`
	InFlight    bool       `json:"in_flight"`
	LastError   string     `json:"last_error,omitempty"`
}
