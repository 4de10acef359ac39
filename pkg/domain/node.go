package domain

import "math"

// RootElementKey marks the single root node of a graph.
const RootElementKey = "root"

// NodeKindRoot is the kind given to seeded root nodes.
const NodeKindRoot = "root"

// Position is a point on the editor canvas.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Valid reports whether both coordinates are finite numbers.
func (p Position) Valid() bool {
	return isFinite(p.X) && isFinite(p.Y)
}

// Normalize returns the origin for invalid positions and p otherwise.
func (p Position) Normalize() Position {
	if !p.Valid() {
		return Position{}
	}
	return p
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// NodeData holds the user-facing payload of a node.
type NodeData struct {
	Title string `json:"title" yaml:"title"`

	// ElementKey is the semantic role of the node. RootElementKey marks the root.
	ElementKey string `json:"elementKey,omitempty" yaml:"elementKey,omitempty"`

	// Fields are the editable attributes of the node.
	Fields map[string]any `json:"fields,omitempty" yaml:"fields,omitempty"`

	// Metadata holds non-editable annotations.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Node represents a vertex of the blueprint graph.
type Node struct {
	ID       string   `json:"id" yaml:"id"`
	Kind     string   `json:"kind" yaml:"kind"`
	Position Position `json:"position" yaml:"position"`
	Data     NodeData `json:"data" yaml:"data"`
}

// IsRoot reports whether n is the root node.
func (n Node) IsRoot() bool {
	return n.Data.ElementKey == RootElementKey
}

// Draggable reports whether the editor may move n. The root is pinned.
func (n Node) Draggable() bool {
	return !n.IsRoot()
}

// Deletable reports whether n may be removed from the graph.
func (n Node) Deletable() bool {
	return !n.IsRoot()
}

// Clone returns a deep copy of n.
func (n Node) Clone() Node {
	out := n
	out.Data.Fields = cloneMap(n.Data.Fields)
	out.Data.Metadata = cloneMap(n.Data.Metadata)
	return out
}

// NewRootNode creates the root node used to seed a fresh graph.
func NewRootNode(id string) Node {
	return Node{
		ID:   id,
		Kind: NodeKindRoot,
		Data: NodeData{
			Title:      "Root",
			ElementKey: RootElementKey,
		},
	}
}

// NodeDataPatch is a partial update of NodeData.
// Nil pointers leave the field untouched. Fields and Metadata merge key by key;
// a nil value removes the key.
type NodeDataPatch struct {
	Title      *string        `json:"title,omitempty" mapstructure:"title"`
	ElementKey *string        `json:"elementKey,omitempty" mapstructure:"element_key"`
	Fields     map[string]any `json:"fields,omitempty" mapstructure:"fields"`
	Metadata   map[string]any `json:"metadata,omitempty" mapstructure:"metadata"`
}

// Apply merges the patch into data and returns the result.
// ElementKey changes that would add or remove a root are ignored.
func (p NodeDataPatch) Apply(data NodeData) NodeData {
	out := NodeData{
		Title:      data.Title,
		ElementKey: data.ElementKey,
		Fields:     cloneMap(data.Fields),
		Metadata:   cloneMap(data.Metadata),
	}
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.ElementKey != nil {
		wasRoot := data.ElementKey == RootElementKey
		willBeRoot := *p.ElementKey == RootElementKey
		if wasRoot == willBeRoot {
			out.ElementKey = *p.ElementKey
		}
	}
	out.Fields = mergeMap(out.Fields, p.Fields)
	out.Metadata = mergeMap(out.Metadata, p.Metadata)
	return out
}

func mergeMap(dst, patch map[string]any) map[string]any {
	if len(patch) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		if v == nil {
			delete(dst, k)
			continue
		}
		dst[k] = cloneValue(v)
	}
	return dst
}
