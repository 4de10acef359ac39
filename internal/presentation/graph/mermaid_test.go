package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/blueprint/internal/presentation/graph"
	"github.com/aretw0/blueprint/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestGenerateMermaid(t *testing.T) {
	root := domain.NewRootNode("root-1")
	root.Data.Title = "Start"

	tests := []struct {
		name     string
		graph    domain.Graph
		overlay  *graph.Overlay
		contains []string
		excludes []string
	}{
		{
			name:     "Root Node Shape",
			graph:    domain.Graph{Nodes: []domain.Node{root}},
			contains: []string{`root_1(("Start"))`},
		},
		{
			name: "Decision Shape And Title Fallback",
			graph: domain.Graph{Nodes: []domain.Node{
				{ID: "d", Kind: "Decision", Data: domain.NodeData{Title: "Approved?"}},
				{ID: "plain", Kind: "step"},
			}},
			contains: []string{`d{"Approved?"}`, `plain["plain"]`},
		},
		{
			name: "ID Sanitization And Quote Escaping",
			graph: domain.Graph{Nodes: []domain.Node{
				{ID: "a.b/c-d", Data: domain.NodeData{Title: `say "hi"`}},
			}},
			contains: []string{`a_b_c_d["say 'hi'"]`},
		},
		{
			name: "Handle Labels",
			graph: domain.Graph{
				Nodes: []domain.Node{{ID: "a"}, {ID: "b"}, {ID: "c"}},
				Edges: []domain.Edge{
					domain.NewEdge("e1", "a", "b", domain.CenterSourceHandle, domain.CenterTargetHandle),
					domain.NewEdge("e2", "a", "c", "no", ""),
				},
			},
			contains: []string{"a --> b", `a -- "no" --> c`},
		},
		{
			name: "Overlay",
			graph: domain.Graph{Nodes: []domain.Node{
				{ID: "a"}, {ID: "b"},
			}},
			overlay:  &graph.Overlay{SelectedID: "b", Pending: []string{"a", "a", "gone"}},
			contains: []string{"class a pending;", "class b selected;"},
			excludes: []string{"class gone"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.graph, tt.overlay)
			assert.True(t, strings.HasPrefix(got, "graph TD\n"))
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, got, unwanted)
			}
			if tt.overlay != nil {
				assert.Equal(t, 1, strings.Count(got, "class a pending;"))
			}
		})
	}
}
