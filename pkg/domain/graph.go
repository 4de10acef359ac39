package domain

import "reflect"

// Graph is the (nodes, edges) pair edited by a session.
// Order is preserved: it is the order the editor renders and persists.
type Graph struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// NewGraph seeds a graph holding only a root node.
func NewGraph(rootID string) Graph {
	return Graph{
		Nodes: []Node{NewRootNode(rootID)},
		Edges: []Edge{},
	}
}

// Clone returns a deep copy of g. Snapshots are always taken through Clone.
func (g Graph) Clone() Graph {
	out := Graph{
		Nodes: make([]Node, len(g.Nodes)),
		Edges: make([]Edge, len(g.Edges)),
	}
	for i, n := range g.Nodes {
		out.Nodes[i] = n.Clone()
	}
	for i, e := range g.Edges {
		out.Edges[i] = e.Clone()
	}
	return out
}

// Equal compares two graphs structurally. Nil and empty collections are equal.
func (g Graph) Equal(other Graph) bool {
	return reflect.DeepEqual(g.canonical(), other.canonical())
}

func (g Graph) canonical() Graph {
	out := g.Clone()
	for i := range out.Nodes {
		if len(out.Nodes[i].Data.Fields) == 0 {
			out.Nodes[i].Data.Fields = nil
		}
		if len(out.Nodes[i].Data.Metadata) == 0 {
			out.Nodes[i].Data.Metadata = nil
		}
	}
	for i := range out.Edges {
		if len(out.Edges[i].Data.Metadata) == 0 {
			out.Edges[i].Data.Metadata = nil
		}
	}
	if len(out.Nodes) == 0 {
		out.Nodes = nil
	}
	if len(out.Edges) == 0 {
		out.Edges = nil
	}
	return out
}

// NodeIDs returns the node ids in graph order.
func (g Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

// EdgeIDs returns the edge ids in graph order.
func (g Graph) EdgeIDs() []string {
	ids := make([]string, 0, len(g.Edges))
	for _, e := range g.Edges {
		ids = append(ids, e.ID)
	}
	return ids
}

// FindNode returns the index of the first node with the given id, or -1.
func (g Graph) FindNode(id string) int {
	for i, n := range g.Nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// Node returns the node with the given id.
func (g Graph) Node(id string) (Node, bool) {
	if i := g.FindNode(id); i >= 0 {
		return g.Nodes[i], true
	}
	return Node{}, false
}

// HasNode reports whether a node with the given id exists.
func (g Graph) HasNode(id string) bool {
	return id != "" && g.FindNode(id) >= 0
}

// FindEdge returns the index of the first edge with the given id, or -1.
func (g Graph) FindEdge(id string) int {
	for i, e := range g.Edges {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// Root returns the root node, if any.
func (g Graph) Root() (Node, bool) {
	for _, n := range g.Nodes {
		if n.IsRoot() {
			return n, true
		}
	}
	return Node{}, false
}

// RootCount returns how many nodes carry the root element key.
func (g Graph) RootCount() int {
	count := 0
	for _, n := range g.Nodes {
		if n.IsRoot() {
			count++
		}
	}
	return count
}

// EnsureRoot returns g with a root node prepended when none exists.
// The boolean reports whether a root was added.
func (g Graph) EnsureRoot(rootID string) (Graph, bool) {
	if g.RootCount() > 0 {
		return g, false
	}
	out := Graph{
		Nodes: append([]Node{NewRootNode(rootID)}, g.Nodes...),
		Edges: g.Edges,
	}
	return out, true
}

// Merge applies an upsert to a stored graph: incoming nodes and edges replace
// stored ones with the same id (or are appended), then the listed ids are removed.
// Edges left dangling by the removals are dropped as well.
func (g Graph) Merge(incoming Graph, deletedNodeIDs, deletedEdgeIDs []string) Graph {
	out := g.Clone()
	for _, n := range incoming.Nodes {
		if i := out.FindNode(n.ID); i >= 0 {
			out.Nodes[i] = n.Clone()
		} else {
			out.Nodes = append(out.Nodes, n.Clone())
		}
	}
	for _, e := range incoming.Edges {
		if i := out.FindEdge(e.ID); i >= 0 {
			out.Edges[i] = e.Clone()
		} else {
			out.Edges = append(out.Edges, e.Clone())
		}
	}

	deadNodes := NewIDSet(deletedNodeIDs...)
	deadEdges := NewIDSet(deletedEdgeIDs...)

	nodes := out.Nodes[:0]
	for _, n := range out.Nodes {
		if !deadNodes.Has(n.ID) {
			nodes = append(nodes, n)
		}
	}
	out.Nodes = nodes

	alive := NewIDSet(out.NodeIDs()...)
	edges := out.Edges[:0]
	for _, e := range out.Edges {
		if deadEdges.Has(e.ID) || !alive.Has(e.Source) || !alive.Has(e.Target) {
			continue
		}
		edges = append(edges, e)
	}
	out.Edges = edges
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}
