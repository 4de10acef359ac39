package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/blueprint/pkg/adapters/memory"
	"github.com/aretw0/blueprint/pkg/domain"
	"github.com/aretw0/blueprint/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGateway_Contract(t *testing.T) {
	ports.RunGatewayContract(t, memory.NewGateway())
}

func TestMemoryGateway_RejectedWriteLeavesRecord(t *testing.T) {
	gw := memory.NewGateway()
	ctx := context.Background()

	res, err := gw.UpsertGraph(ctx, ports.UpsertRequest{Title: "Flow", Graph: domain.NewGraph("root")})
	require.NoError(t, err)

	_, err = gw.UpsertGraph(ctx, ports.UpsertRequest{
		BlueprintID:             res.BlueprintID,
		Title:                   "Changed",
		Graph:                   domain.Graph{},
		DeletedNodeIDs:          []string{"root"},
		ExpectedAutosaveVersion: 9,
	})
	require.ErrorIs(t, err, domain.ErrConflict)

	got, err := gw.GetBlueprint(ctx, res.BlueprintID)
	require.NoError(t, err)
	assert.Equal(t, "Flow", got.Blueprint.Title)
	assert.Equal(t, []string{"root"}, got.Graph.NodeIDs())
}

func TestMemoryGateway_Snapshots(t *testing.T) {
	gw := memory.NewGateway()
	ctx := context.Background()

	res, err := gw.UpsertGraph(ctx, ports.UpsertRequest{Graph: domain.NewGraph("root")})
	require.NoError(t, err)
	_, err = gw.CreateSnapshot(ctx, res.BlueprintID, ports.SnapshotOptions{Label: "first"})
	require.NoError(t, err)

	snaps, err := gw.Snapshots(ctx, res.BlueprintID)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "first", snaps[0].Label)
}
