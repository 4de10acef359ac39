package domain

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestDiff(t *testing.T) {
	base := Graph{
		Nodes: []Node{
			NewRootNode("root"),
			{ID: "a", Kind: "step", Data: NodeData{Title: "A"}},
		},
		Edges: []Edge{NewEdge("e1", "root", "a", "", "")},
	}

	tests := []struct {
		name string
		old  Graph
		new  Graph
		want GraphDiff
	}{
		{
			name: "No Changes",
			old:  base,
			new:  base.Clone(),
			want: GraphDiff{},
		},
		{
			name: "Added Node And Edge",
			old:  base,
			new: Graph{
				Nodes: append(base.Clone().Nodes, Node{ID: "b", Kind: "step"}),
				Edges: append(base.Clone().Edges, NewEdge("e2", "a", "b", "", "")),
			},
			want: GraphDiff{AddedNodes: []string{"b"}, AddedEdges: []string{"e2"}},
		},
		{
			name: "Removed Node Cascades",
			old:  base,
			new:  Graph{Nodes: []Node{NewRootNode("root")}},
			want: GraphDiff{RemovedNodes: []string{"a"}, RemovedEdges: []string{"e1"}},
		},
		{
			name: "Changed Title",
			old:  base,
			new: func() Graph {
				g := base.Clone()
				g.Nodes[1].Data.Title = "A2"
				return g
			}(),
			want: GraphDiff{ChangedNodes: []string{"a"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.old, tt.new)
			if !reflect.DeepEqual(got, tt.want) {
				gotJSON, _ := json.Marshal(got)
				wantJSON, _ := json.Marshal(tt.want)
				t.Errorf("Diff() = %s, want %s", gotJSON, wantJSON)
			}
			if got.IsEmpty() != tt.want.IsEmpty() {
				t.Errorf("IsEmpty() = %v, want %v", got.IsEmpty(), tt.want.IsEmpty())
			}
		})
	}
}

func TestIDSet_Difference(t *testing.T) {
	prev := NewIDSet("a", "b", "c")
	got := prev.Difference([]string{"b", "d"})
	want := []string{"a", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Difference() = %v, want %v", got, want)
	}

	if got := NewIDSet().Difference([]string{"x"}); len(got) != 0 {
		t.Errorf("expected empty difference, got %v", got)
	}
}
