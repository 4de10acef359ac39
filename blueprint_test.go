package blueprint_test

import (
	"context"
	"testing"

	"github.com/aretw0/blueprint"
	"github.com/aretw0/blueprint/pkg/adapters/file"
	"github.com/aretw0/blueprint/pkg/domain"
	"github.com/aretw0/blueprint/pkg/persistence/middleware"
	"github.com/aretw0/blueprint/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsToMemoryGateway(t *testing.T) {
	ctx := context.Background()
	eng := blueprint.New(blueprint.WithTitle("Scratch"))
	defer eng.Close()

	eng.AddNode("step", domain.Position{X: 1, Y: 1})
	require.NoError(t, eng.Save(ctx))

	st := eng.Status()
	require.NotEmpty(t, st.BlueprintID)
	got, err := eng.Gateway().GetBlueprint(ctx, st.BlueprintID)
	require.NoError(t, err)
	assert.Equal(t, "Scratch", got.Blueprint.Title)
	assert.Len(t, got.Graph.Nodes, 2)
}

func TestOpen_ResumesFromFileGateway(t *testing.T) {
	ctx := context.Background()
	gw := file.New(t.TempDir())

	first := blueprint.New(blueprint.WithGateway(gw))
	child := first.AddNode("step", domain.Position{X: 100})
	require.NoError(t, first.Save(ctx))
	id := first.Status().BlueprintID
	require.NoError(t, first.Close())

	second, err := blueprint.Open(ctx, id, blueprint.WithGateway(gw))
	require.NoError(t, err)
	defer second.Close()

	st := second.Status()
	assert.Equal(t, uint64(1), st.Version)
	assert.True(t, st.Graph.HasNode(child))
	assert.False(t, st.Dirty)
}

func TestOpen_Missing(t *testing.T) {
	_, err := blueprint.Open(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrBlueprintNotFound)
}

func TestWithMiddleware_WrapsGateway(t *testing.T) {
	ctx := context.Background()
	mw, err := middleware.NewPIIMiddleware([]string{"^email$"})
	require.NoError(t, err)

	eng := blueprint.New(blueprint.WithMiddleware(mw))
	defer eng.Close()

	node := eng.AddNode("form", domain.Position{})
	eng.UpdateNodeData(node, domain.NodeDataPatch{Fields: map[string]any{"email": "a@b.c"}})
	require.NoError(t, eng.Save(ctx))

	var _ ports.Gateway = eng.Gateway()
	got, err := eng.Gateway().GetBlueprint(ctx, eng.Status().BlueprintID)
	require.NoError(t, err)
	stored, ok := got.Graph.Node(node)
	require.True(t, ok)
	assert.Equal(t, middleware.MaskedValue, stored.Data.Fields["email"])

	local, _ := eng.Status().Graph.Node(node)
	assert.Equal(t, "a@b.c", local.Data.Fields["email"], "the working copy keeps the clear value")
}
