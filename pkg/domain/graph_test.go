package domain_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/aretw0/blueprint/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGraph() domain.Graph {
	g := domain.NewGraph("root")
	g.Nodes = append(g.Nodes, domain.Node{
		ID:   "a",
		Kind: "step",
		Data: domain.NodeData{
			Title:  "A",
			Fields: map[string]any{"nested": map[string]any{"k": "v"}, "list": []any{1, 2}},
		},
	})
	g.Edges = append(g.Edges, domain.NewEdge("e1", "root", "a", domain.CenterSourceHandle, domain.CenterTargetHandle))
	return g
}

func TestGraph_CloneIsDeep(t *testing.T) {
	g := sampleGraph()
	c := g.Clone()
	require.True(t, g.Equal(c))

	c.Nodes[1].Data.Fields["nested"].(map[string]any)["k"] = "changed"
	c.Nodes[1].Data.Fields["list"].([]any)[0] = 99
	c.Edges[0].Data.Metadata[domain.MetaSourceHandle] = "other"

	assert.Equal(t, "v", g.Nodes[1].Data.Fields["nested"].(map[string]any)["k"])
	assert.Equal(t, 1, g.Nodes[1].Data.Fields["list"].([]any)[0])
	assert.Equal(t, domain.CenterSourceHandle, g.Edges[0].Data.Metadata[domain.MetaSourceHandle])
	assert.False(t, g.Equal(c))
}

func TestGraph_EqualTreatsNilAndEmptyAlike(t *testing.T) {
	a := domain.Graph{Nodes: []domain.Node{{ID: "n", Data: domain.NodeData{Fields: map[string]any{}}}}}
	b := domain.Graph{Nodes: []domain.Node{{ID: "n"}}, Edges: []domain.Edge{}}
	assert.True(t, a.Equal(b))
}

func TestGraph_Root(t *testing.T) {
	g := sampleGraph()
	root, ok := g.Root()
	require.True(t, ok)
	assert.Equal(t, "root", root.ID)
	assert.False(t, root.Draggable())
	assert.False(t, root.Deletable())
	assert.Equal(t, 1, g.RootCount())

	bare := domain.Graph{Nodes: []domain.Node{{ID: "x"}}}
	fixed, added := bare.EnsureRoot("r")
	assert.True(t, added)
	assert.Equal(t, "r", fixed.Nodes[0].ID)
	_, added = fixed.EnsureRoot("r2")
	assert.False(t, added)
}

func TestGraph_Merge(t *testing.T) {
	stored := sampleGraph()
	incoming := domain.Graph{
		Nodes: []domain.Node{
			{ID: "a", Kind: "step", Data: domain.NodeData{Title: "A2"}},
			{ID: "b", Kind: "step"},
		},
		Edges: []domain.Edge{domain.NewEdge("e2", "a", "b", "", "")},
	}

	merged := stored.Merge(incoming, nil, nil)
	assert.Equal(t, []string{"root", "a", "b"}, merged.NodeIDs())
	assert.Equal(t, "A2", merged.Nodes[1].Data.Title)
	assert.Equal(t, []string{"e1", "e2"}, merged.EdgeIDs())

	pruned := merged.Merge(domain.Graph{}, []string{"a"}, nil)
	assert.Equal(t, []string{"root", "b"}, pruned.NodeIDs())
	assert.Empty(t, pruned.Edges, "edges touching a deleted node are dropped")

	// The stored graph is never aliased.
	assert.Equal(t, []string{"root", "a"}, stored.NodeIDs())
}

func TestPosition_Normalize(t *testing.T) {
	assert.Equal(t, domain.Position{}, domain.Position{X: math.NaN(), Y: 1}.Normalize())
	assert.Equal(t, domain.Position{}, domain.Position{X: 1, Y: math.Inf(1)}.Normalize())
	assert.Equal(t, domain.Position{X: 3, Y: 4}, domain.Position{X: 3, Y: 4}.Normalize())
}

func TestNodeDataPatch_Apply(t *testing.T) {
	title := "New"
	data := domain.NodeData{Title: "Old", Fields: map[string]any{"a": 1, "b": 2}}
	patch := domain.NodeDataPatch{
		Title:  &title,
		Fields: map[string]any{"b": nil, "c": 3},
	}

	out := patch.Apply(data)
	assert.Equal(t, "New", out.Title)
	assert.Equal(t, map[string]any{"a": 1, "c": 3}, out.Fields)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, data.Fields, "input is not mutated")

	t.Run("root key cannot be granted or revoked", func(t *testing.T) {
		root := domain.RootElementKey
		other := "section"

		promoted := domain.NodeDataPatch{ElementKey: &root}.Apply(domain.NodeData{ElementKey: "x"})
		assert.Equal(t, "x", promoted.ElementKey)

		demoted := domain.NodeDataPatch{ElementKey: &other}.Apply(domain.NodeData{ElementKey: root})
		assert.Equal(t, root, demoted.ElementKey)

		renamed := domain.NodeDataPatch{ElementKey: &other}.Apply(domain.NodeData{ElementKey: "x"})
		assert.Equal(t, other, renamed.ElementKey)
	})
}

func TestIsConflict(t *testing.T) {
	assert.True(t, domain.IsConflict(domain.ErrConflict))
	assert.False(t, domain.IsConflict(assert.AnError))
	assert.True(t, domain.IsConflict(errString("upstream: Version mismatch for blueprint")))
	assert.False(t, domain.IsConflict(nil))
}

func TestIsPermanent(t *testing.T) {
	for _, err := range []error{
		domain.ErrFatal,
		fmt.Errorf("%w: title too long", domain.ErrInvalidRequest),
		fmt.Errorf("upsert bp-1: %w", domain.ErrBlueprintNotFound),
	} {
		assert.True(t, domain.IsPermanent(err), err.Error())
	}
	assert.False(t, domain.IsPermanent(assert.AnError))
	assert.False(t, domain.IsPermanent(domain.ErrConflict))
	assert.False(t, domain.IsPermanent(nil))
}

type errString string

func (e errString) Error() string { return string(e) }
