package runtime

import (
	"github.com/aretw0/blueprint/pkg/domain"
)

// graphStore holds the canonical working graph and the current selection.
// It is not safe for concurrent use; the Engine serializes access.
type graphStore struct {
	graph    domain.Graph
	selected string
	newID    func() string
}

func newGraphStore(g domain.Graph, newID func() string) *graphStore {
	s := &graphStore{graph: g, newID: newID}
	s.selectFallback()
	return s
}

// replace swaps the whole graph, keeping the selection when it survives.
func (s *graphStore) replace(g domain.Graph) {
	s.graph = g
	if !s.graph.HasNode(s.selected) {
		s.selectFallback()
	}
}

// selectFallback selects the root, or the first node when there is no root.
func (s *graphStore) selectFallback() {
	if root, ok := s.graph.Root(); ok {
		s.selected = root.ID
		return
	}
	if len(s.graph.Nodes) > 0 {
		s.selected = s.graph.Nodes[0].ID
		return
	}
	s.selected = ""
}

func (s *graphStore) rootID() string {
	if root, ok := s.graph.Root(); ok {
		return root.ID
	}
	return ""
}

// addNode creates a node and, when a parent resolves, the edge from the parent.
// Parent priority: explicit parentID, the selection, the root.
func (s *graphStore) addNode(kind string, pos domain.Position, parentID string) string {
	id := s.newID()
	node := domain.Node{
		ID:       id,
		Kind:     kind,
		Position: pos.Normalize(),
		Data:     domain.NodeData{Title: kind},
	}

	parent := ""
	for _, candidate := range []string{parentID, s.selected, s.rootID()} {
		if s.graph.HasNode(candidate) {
			parent = candidate
			break
		}
	}

	s.graph.Nodes = append(s.graph.Nodes, node)
	if parent != "" && parent != id {
		s.graph.Edges = append(s.graph.Edges, domain.NewEdge(
			s.newID(), parent, id, domain.CenterSourceHandle, domain.CenterTargetHandle,
		))
	}
	s.selected = id
	return id
}

// updateNodeData merges patch into the node's data. Returns false if the node is absent.
func (s *graphStore) updateNodeData(nodeID string, patch domain.NodeDataPatch) bool {
	i := s.graph.FindNode(nodeID)
	if nodeID == "" || i < 0 {
		return false
	}
	s.graph.Nodes[i].Data = patch.Apply(s.graph.Nodes[i].Data)
	return true
}

// moveNode repositions a draggable node.
func (s *graphStore) moveNode(nodeID string, pos domain.Position) bool {
	i := s.graph.FindNode(nodeID)
	if nodeID == "" || i < 0 || !s.graph.Nodes[i].Draggable() {
		return false
	}
	pos = pos.Normalize()
	if s.graph.Nodes[i].Position == pos {
		return false
	}
	s.graph.Nodes[i].Position = pos
	return true
}

// deleteNode removes a non-root node and cascades its edges.
func (s *graphStore) deleteNode(nodeID string) bool {
	i := s.graph.FindNode(nodeID)
	if nodeID == "" || i < 0 || !s.graph.Nodes[i].Deletable() {
		return false
	}

	nodes := make([]domain.Node, 0, len(s.graph.Nodes)-1)
	for _, n := range s.graph.Nodes {
		if n.ID != nodeID {
			nodes = append(nodes, n)
		}
	}
	edges := make([]domain.Edge, 0, len(s.graph.Edges))
	for _, e := range s.graph.Edges {
		if !e.Touches(nodeID) {
			edges = append(edges, e)
		}
	}
	s.graph.Nodes = nodes
	s.graph.Edges = edges

	if s.selected == nodeID {
		s.selectFallback()
	}
	return true
}

// connect creates an edge when both endpoints exist. Self-loops are allowed.
func (s *graphStore) connect(source, target, sourceHandle, targetHandle string) string {
	if !s.graph.HasNode(source) || !s.graph.HasNode(target) {
		return ""
	}
	id := s.newID()
	s.graph.Edges = append(s.graph.Edges, domain.NewEdge(id, source, target, sourceHandle, targetHandle))
	return id
}

// deleteEdge removes an edge by id.
func (s *graphStore) deleteEdge(edgeID string) bool {
	i := s.graph.FindEdge(edgeID)
	if edgeID == "" || i < 0 {
		return false
	}
	s.graph.Edges = append(s.graph.Edges[:i:i], s.graph.Edges[i+1:]...)
	return true
}

// selectNode changes the selection. Unknown ids are ignored.
func (s *graphStore) selectNode(nodeID string) bool {
	if !s.graph.HasNode(nodeID) || s.selected == nodeID {
		return false
	}
	s.selected = nodeID
	return true
}
