package domain

import "sort"

// IDSet is a set of node or edge identifiers.
type IDSet map[string]struct{}

// NewIDSet builds a set from the given ids.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Difference returns the ids present in s but missing from current, sorted.
// The engine uses it to tell the gateway which ids a write deletes.
func (s IDSet) Difference(current []string) []string {
	keep := NewIDSet(current...)
	out := make([]string, 0)
	for id := range s {
		if !keep.Has(id) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// GraphDiff summarizes the structural changes between two graphs.
// It is designed to be serialized to JSON for clients and CLI reports.
type GraphDiff struct {
	AddedNodes   []string `json:"added_nodes,omitempty"`
	RemovedNodes []string `json:"removed_nodes,omitempty"`
	ChangedNodes []string `json:"changed_nodes,omitempty"`
	AddedEdges   []string `json:"added_edges,omitempty"`
	RemovedEdges []string `json:"removed_edges,omitempty"`
}

// Diff calculates the difference between oldGraph and newGraph by id.
func Diff(oldGraph, newGraph Graph) GraphDiff {
	var d GraphDiff

	oldNodes := make(map[string]Node, len(oldGraph.Nodes))
	for _, n := range oldGraph.Nodes {
		oldNodes[n.ID] = n
	}
	for _, n := range newGraph.Nodes {
		prev, ok := oldNodes[n.ID]
		switch {
		case !ok:
			d.AddedNodes = append(d.AddedNodes, n.ID)
		case !(Graph{Nodes: []Node{prev}}).Equal(Graph{Nodes: []Node{n}}):
			d.ChangedNodes = append(d.ChangedNodes, n.ID)
		}
	}
	d.RemovedNodes = NewIDSet(oldGraph.NodeIDs()...).Difference(newGraph.NodeIDs())

	oldEdges := NewIDSet(oldGraph.EdgeIDs()...)
	for _, e := range newGraph.Edges {
		if !oldEdges.Has(e.ID) {
			d.AddedEdges = append(d.AddedEdges, e.ID)
		}
	}
	d.RemovedEdges = oldEdges.Difference(newGraph.EdgeIDs())

	if len(d.RemovedNodes) == 0 {
		d.RemovedNodes = nil
	}
	if len(d.RemovedEdges) == 0 {
		d.RemovedEdges = nil
	}
	return d
}

// IsEmpty checks if the diff contains any changes.
func (d GraphDiff) IsEmpty() bool {
	return len(d.AddedNodes) == 0 &&
		len(d.RemovedNodes) == 0 &&
		len(d.ChangedNodes) == 0 &&
		len(d.AddedEdges) == 0 &&
		len(d.RemovedEdges) == 0
}
