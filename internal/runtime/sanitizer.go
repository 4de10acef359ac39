package runtime

import (
	"github.com/aretw0/blueprint/pkg/domain"
)

// SanitizeResult is the outcome of a graph repair pass.
type SanitizeResult struct {
	Graph domain.Graph
	// NodeIDMap records, for each original node id, the ids its occurrences ended up with.
	NodeIDMap map[string][]string
	// EdgeIDMap records, for each original edge id, the ids its occurrences ended up with.
	EdgeIDMap    map[string][]string
	DroppedEdges []string
	Changed      bool
}

// Sanitize repairs a graph before it is written:
//   - invalid positions are reset to the origin
//   - empty or duplicate node ids are reminted; the first occurrence keeps its id
//   - edges whose endpoints no longer resolve are dropped
//   - id-bearing edge metadata is rewritten only when present and stale
//   - empty or duplicate edge ids are reminted
//
// The input is not modified. Running Sanitize on its own output changes nothing.
func Sanitize(g domain.Graph, newID func() string) SanitizeResult {
	res := SanitizeResult{
		Graph:     domain.Graph{},
		NodeIDMap: map[string][]string{},
		EdgeIDMap: map[string][]string{},
	}

	// Minted ids must not collide with any input id, including ones not visited yet.
	takenNodes := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		takenNodes[n.ID] = true
	}
	takenEdges := make(map[string]bool, len(g.Edges))
	for _, e := range g.Edges {
		takenEdges[e.ID] = true
	}

	seenNodes := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		node := n.Clone()
		if !node.Position.Valid() {
			node.Position = node.Position.Normalize()
			res.Changed = true
		}
		if node.ID == "" || seenNodes[node.ID] {
			node.ID = mintUnique(newID, takenNodes)
			takenNodes[node.ID] = true
			res.Changed = true
		}
		seenNodes[node.ID] = true
		res.NodeIDMap[n.ID] = append(res.NodeIDMap[n.ID], node.ID)
		res.Graph.Nodes = append(res.Graph.Nodes, node)
	}

	// Endpoints refer to the first occurrence of a node id, which always kept it.
	seenEdges := make(map[string]bool, len(g.Edges))
	for _, e := range g.Edges {
		if e.Source == "" || e.Target == "" || !seenNodes[e.Source] || !seenNodes[e.Target] {
			res.DroppedEdges = append(res.DroppedEdges, e.ID)
			res.Changed = true
			continue
		}

		edge := e.Clone()
		if syncEdgeMetadata(&edge) {
			res.Changed = true
		}
		if edge.ID == "" || seenEdges[edge.ID] {
			edge.ID = mintUnique(newID, takenEdges)
			takenEdges[edge.ID] = true
			res.Changed = true
		}
		seenEdges[edge.ID] = true
		res.EdgeIDMap[e.ID] = append(res.EdgeIDMap[e.ID], edge.ID)
		res.Graph.Edges = append(res.Graph.Edges, edge)
	}

	if !res.Changed {
		res.Graph = g.Clone()
	}
	return res
}

// syncEdgeMetadata rewrites id-bearing metadata keys that disagree with the edge fields.
// Keys that are absent stay absent.
func syncEdgeMetadata(e *domain.Edge) bool {
	if e.Data.Metadata == nil {
		return false
	}
	want := map[string]string{
		domain.MetaSource:       e.Source,
		domain.MetaTarget:       e.Target,
		domain.MetaSourceHandle: e.SourceHandle,
		domain.MetaTargetHandle: e.TargetHandle,
	}
	changed := false
	for key, value := range want {
		current, ok := e.Data.Metadata[key]
		if !ok {
			continue
		}
		if s, isString := current.(string); isString && s == value {
			continue
		}
		e.Data.Metadata[key] = value
		changed = true
	}
	return changed
}

func mintUnique(newID func() string, taken map[string]bool) string {
	for {
		id := newID()
		if id != "" && !taken[id] {
			return id
		}
	}
}
