package domain

// Conventional handle pair used when the engine connects a new node to its parent.
const (
	CenterSourceHandle = "center-source"
	CenterTargetHandle = "center-target"
)

// Edge metadata keys that mirror edge fields for persistence.
const (
	MetaSourceHandle = "sourceHandle"
	MetaTargetHandle = "targetHandle"
	MetaSource       = "source"
	MetaTarget       = "target"
)

// EdgeData holds annotations of an edge.
type EdgeData struct {
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Edge is a directed connection between two nodes.
type Edge struct {
	ID           string   `json:"id" yaml:"id"`
	Source       string   `json:"source" yaml:"source"`
	Target       string   `json:"target" yaml:"target"`
	SourceHandle string   `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty"`
	TargetHandle string   `json:"targetHandle,omitempty" yaml:"targetHandle,omitempty"`
	Data         EdgeData `json:"data" yaml:"data"`
}

// Touches reports whether nodeID is one of the edge's endpoints.
func (e Edge) Touches(nodeID string) bool {
	return e.Source == nodeID || e.Target == nodeID
}

// Clone returns a deep copy of e.
func (e Edge) Clone() Edge {
	out := e
	out.Data.Metadata = cloneMap(e.Data.Metadata)
	return out
}

// NewEdge builds an edge and records its handles in metadata.
func NewEdge(id, source, target, sourceHandle, targetHandle string) Edge {
	e := Edge{
		ID:           id,
		Source:       source,
		Target:       target,
		SourceHandle: sourceHandle,
		TargetHandle: targetHandle,
	}
	if sourceHandle != "" || targetHandle != "" {
		e.Data.Metadata = map[string]any{}
		if sourceHandle != "" {
			e.Data.Metadata[MetaSourceHandle] = sourceHandle
		}
		if targetHandle != "" {
			e.Data.Metadata[MetaTargetHandle] = targetHandle
		}
	}
	return e
}
