package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/blueprint/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_NewDraft(t *testing.T) {
	h := newHarness(t, newScriptedGateway(), WithTitle("Onboarding"))

	s := h.engine.Status()
	assert.Equal(t, "Onboarding", s.Title)
	assert.Empty(t, s.BlueprintID)
	assert.Equal(t, domain.SyncIdle, s.Status)
	assert.False(t, s.Dirty)
	assert.Equal(t, []string{"id-1"}, s.Graph.NodeIDs())
	assert.Equal(t, "id-1", s.SelectedID)
	assert.Equal(t, 1, s.HistoryLen)
}

func TestEngine_AddNode(t *testing.T) {
	h := newHarness(t, newScriptedGateway())
	e := h.engine

	a := e.AddNode("step", domain.Position{X: 10, Y: 20}, "")
	require.Equal(t, "id-2", a)

	s := e.Status()
	assert.True(t, s.Dirty)
	assert.Equal(t, a, s.SelectedID)
	require.Len(t, s.Graph.Edges, 1)
	edge := s.Graph.Edges[0]
	assert.Equal(t, "id-1", edge.Source)
	assert.Equal(t, a, edge.Target)
	assert.Equal(t, domain.CenterSourceHandle, edge.SourceHandle)
	assert.Equal(t, domain.CenterTargetHandle, edge.Data.Metadata[domain.MetaTargetHandle])
	assert.Equal(t, "step", s.Graph.Nodes[1].Data.Title)

	// With no explicit parent the selection is the parent.
	b := e.AddNode("step", domain.Position{}, "")
	s = e.Status()
	assert.Equal(t, a, s.Graph.Edges[1].Source)
	assert.Equal(t, b, s.Graph.Edges[1].Target)

	// An explicit parent wins over the selection; an unknown one falls back.
	c := e.AddNode("note", domain.Position{}, "id-1")
	d := e.AddNode("note", domain.Position{}, "missing")
	s = e.Status()
	assert.Equal(t, "id-1", s.Graph.Edges[2].Source)
	assert.Equal(t, c, s.Graph.Edges[3].Source)
	assert.Equal(t, d, s.Graph.Edges[3].Target)
}

func TestEngine_RootInvariant(t *testing.T) {
	h := newHarness(t, newScriptedGateway())
	e := h.engine
	a := e.AddNode("step", domain.Position{}, "")

	assert.False(t, e.DeleteNode("id-1"))
	assert.False(t, e.MoveNode("id-1", domain.Position{X: 5}))

	root := domain.RootElementKey
	e.UpdateNodeData(a, domain.NodeDataPatch{ElementKey: &root})
	none := ""
	e.UpdateNodeData("id-1", domain.NodeDataPatch{ElementKey: &none})

	g := e.Status().Graph
	assert.Equal(t, 1, g.RootCount())
	r, ok := g.Root()
	require.True(t, ok)
	assert.Equal(t, "id-1", r.ID)
}

func TestEngine_UpdateAndMove(t *testing.T) {
	h := newHarness(t, newScriptedGateway())
	e := h.engine
	a := e.AddNode("step", domain.Position{}, "")

	title := "Collect address"
	assert.True(t, e.UpdateNodeData(a, domain.NodeDataPatch{
		Title:  &title,
		Fields: map[string]any{"required": true},
	}))
	assert.False(t, e.UpdateNodeData("missing", domain.NodeDataPatch{Title: &title}))
	assert.True(t, e.MoveNode(a, domain.Position{X: 40, Y: 80}))

	n := e.Status().Graph.Nodes[1]
	assert.Equal(t, title, n.Data.Title)
	assert.Equal(t, true, n.Data.Fields["required"])
	assert.Equal(t, domain.Position{X: 40, Y: 80}, n.Position)
}

func TestEngine_DeleteCascade(t *testing.T) {
	gw := newScriptedGateway()
	seed := domain.NewGraph("R")
	seed.Nodes = append(seed.Nodes,
		domain.Node{ID: "A", Kind: "step"},
		domain.Node{ID: "B", Kind: "step"},
	)
	seed.Edges = append(seed.Edges,
		domain.NewEdge("RA", "R", "A", "", ""),
		domain.NewEdge("AB", "A", "B", "", ""),
	)
	gw.seed("bp-1", 2, seed)
	h := openHarness(t, gw, "bp-1")
	e := h.engine

	require.True(t, e.Select("A"))
	require.True(t, e.DeleteNode("A"))

	s := e.Status()
	assert.Equal(t, []string{"R", "B"}, s.Graph.NodeIDs())
	assert.Empty(t, s.Graph.Edges)
	assert.Equal(t, "R", s.SelectedID)
	assert.Equal(t, 2, s.HistoryLen, "deletes commit history without waiting for the debounce")

	assert.False(t, e.DeleteNode("A"))
	assert.False(t, e.DeleteEdge("RA"))
}

func TestEngine_ConnectAndDeleteEdge(t *testing.T) {
	h := newHarness(t, newScriptedGateway())
	e := h.engine
	a := e.AddNode("step", domain.Position{}, "")

	assert.Empty(t, e.Connect(a, "missing", "", ""))
	loop := e.Connect(a, a, "out", "in")
	require.NotEmpty(t, loop)

	s := e.Status()
	i := s.Graph.FindEdge(loop)
	require.GreaterOrEqual(t, i, 0)
	assert.Equal(t, "out", s.Graph.Edges[i].Data.Metadata[domain.MetaSourceHandle])

	assert.True(t, e.DeleteEdge(loop))
	assert.Equal(t, -1, e.Status().Graph.FindEdge(loop))
}

func TestEngine_UndoRedo(t *testing.T) {
	h := newHarness(t, newScriptedGateway())
	e := h.engine
	initial := e.Status().Graph

	e.AddNode("step", domain.Position{}, "")
	h.clock.Advance(180 * time.Millisecond)
	edited := e.Status().Graph
	assert.Equal(t, 2, e.Status().HistoryLen)

	require.True(t, e.Undo())
	assert.True(t, initial.Equal(e.Status().Graph))
	assert.False(t, e.Undo())

	require.True(t, e.Redo())
	assert.True(t, edited.Equal(e.Status().Graph))
	assert.False(t, e.Redo())
	assert.True(t, e.Status().Dirty)
}

func TestEngine_UndoBeforeDebounce(t *testing.T) {
	h := newHarness(t, newScriptedGateway())
	e := h.engine
	initial := e.Status().Graph

	e.AddNode("step", domain.Position{}, "")
	require.True(t, e.Undo(), "a pending edit is committed before undo")
	assert.True(t, initial.Equal(e.Status().Graph))
	assert.True(t, e.Status().CanRedo)
}

func TestEngine_SeparatedEditsEachRecordHistory(t *testing.T) {
	h := newHarness(t, newScriptedGateway())
	e := h.engine

	for range 5 {
		e.AddNode("step", domain.Position{}, "")
		h.clock.Advance(200 * time.Millisecond)
	}
	assert.Equal(t, 6, e.Status().HistoryLen, "initial graph plus one entry per edit")

	for i := range 5 {
		require.True(t, e.Undo(), "undo %d", i+1)
	}
	assert.False(t, e.Undo())
	assert.Len(t, e.Status().Graph.Nodes, 1)
}

func TestEngine_HistoryIsBounded(t *testing.T) {
	h := newHarness(t, newScriptedGateway())
	e := h.engine

	for range 60 {
		e.AddNode("step", domain.Position{}, "")
		h.clock.Advance(200 * time.Millisecond)
	}
	s := e.Status()
	assert.Equal(t, DefaultSettings().HistoryLimit, s.HistoryLen)
	assert.Len(t, s.Graph.Nodes, 61)

	undone := 0
	for e.Undo() {
		undone++
	}
	assert.Equal(t, DefaultSettings().HistoryLimit-1, undone)
	assert.Len(t, e.Status().Graph.Nodes, 12, "the oldest ten edits fell off the stack")
}

func TestEngine_SelectIsNotAnEdit(t *testing.T) {
	gw := newScriptedGateway()
	seed := domain.NewGraph("R")
	seed.Nodes = append(seed.Nodes, domain.Node{ID: "A", Kind: "step"})
	gw.seed("bp-1", 1, seed)
	h := openHarness(t, gw, "bp-1")

	assert.True(t, h.engine.Select("A"))
	assert.False(t, h.engine.Select("missing"))

	s := h.engine.Status()
	assert.Equal(t, "A", s.SelectedID)
	assert.False(t, s.Dirty)
	assert.Equal(t, 1, s.HistoryLen)
	assert.Zero(t, h.clock.Pending(), "selection schedules no timers")
}

func TestEngine_Dispatch(t *testing.T) {
	h := newHarness(t, newScriptedGateway())
	ctx := context.Background()

	res, err := h.engine.Dispatch(ctx, domain.AddNode{Kind: "step"})
	require.NoError(t, err)
	assert.Equal(t, "id-2", res.ID)

	title := "Renamed node"
	_, err = h.engine.Dispatch(ctx, domain.UpdateNodeData{NodeID: res.ID, Patch: domain.NodeDataPatch{Title: &title}})
	require.NoError(t, err)

	res, err = h.engine.Dispatch(ctx, domain.Connect{Source: "id-1", Target: res.ID})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)

	_, err = h.engine.Dispatch(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = h.engine.Dispatch(ctx, domain.Reload{})
	assert.ErrorIs(t, err, domain.ErrNotPersisted)

	_, err = h.engine.Dispatch(ctx, domain.Save{})
	require.NoError(t, err)
	assert.Equal(t, title, h.gateway.request(0).Graph.Nodes[1].Data.Title)
}

func TestEngine_Watch(t *testing.T) {
	h := newHarness(t, newScriptedGateway())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := h.engine.Watch(ctx)
	first := <-updates
	assert.False(t, first.Dirty)

	h.engine.AddNode("step", domain.Position{}, "")
	next := <-updates
	assert.True(t, next.Dirty)
	assert.Len(t, next.Graph.Nodes, 2)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-updates:
			return !ok
		default:
			return false
		}
	}, time.Second, time.Millisecond)
}

func TestEngine_Closed(t *testing.T) {
	h := newHarness(t, newScriptedGateway())
	require.NoError(t, h.engine.Close())
	require.NoError(t, h.engine.Close())

	assert.Empty(t, h.engine.AddNode("step", domain.Position{}, ""))
	assert.ErrorIs(t, h.engine.Save(context.Background()), domain.ErrDisposed)
	assert.ErrorIs(t, h.engine.Flush(context.Background()), domain.ErrDisposed)

	_, open := <-h.engine.Watch(context.Background())
	assert.False(t, open)
}
