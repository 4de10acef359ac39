package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/blueprint/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunGatewayContract runs a suite of tests to verify that a Gateway implementation
// adheres to the defined interface contract.
func RunGatewayContract(t *testing.T, gw Gateway) {
	ctx := context.Background()

	seed := domain.NewGraph("root")
	seed.Nodes = append(seed.Nodes, domain.Node{ID: "a", Kind: "step", Data: domain.NodeData{Title: "A"}})
	seed.Edges = append(seed.Edges, domain.NewEdge("e1", "root", "a", domain.CenterSourceHandle, domain.CenterTargetHandle))

	create := func(t *testing.T, title string) string {
		res, err := gw.UpsertGraph(ctx, UpsertRequest{
			Title:  title,
			Status: domain.StatusDraft,
			Graph:  seed,
		})
		require.NoError(t, err, "create should not return error")
		require.NotEmpty(t, res.BlueprintID)
		return res.BlueprintID
	}

	t.Run("Create and Get", func(t *testing.T) {
		id := create(t, "Contract")

		got, err := gw.GetBlueprint(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, got.Blueprint.ID)
		assert.Equal(t, "Contract", got.Blueprint.Title)
		assert.Equal(t, uint64(1), got.Blueprint.AutosaveVersion)
		assert.Equal(t, []string{"root", "a"}, got.Graph.NodeIDs())
		assert.Equal(t, []string{"e1"}, got.Graph.EdgeIDs())
		assert.Equal(t, domain.CenterSourceHandle, got.Graph.Edges[0].SourceHandle)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := gw.GetBlueprint(ctx, "missing-"+time.Now().Format("150405.000"))
		assert.ErrorIs(t, err, domain.ErrBlueprintNotFound)
	})

	t.Run("Upsert Advances Version And Applies Deletions", func(t *testing.T) {
		id := create(t, "Versioned")

		next := seed.Clone()
		next.Nodes = next.Nodes[:1]
		next.Edges = nil
		res, err := gw.UpsertGraph(ctx, UpsertRequest{
			BlueprintID:             id,
			Title:                   "Versioned",
			Graph:                   next,
			DeletedNodeIDs:          []string{"a"},
			DeletedEdgeIDs:          []string{"e1"},
			Autosave:                true,
			ExpectedAutosaveVersion: 1,
		})
		require.NoError(t, err)
		assert.Equal(t, id, res.BlueprintID)

		got, err := gw.GetBlueprint(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), got.Blueprint.AutosaveVersion)
		assert.Equal(t, []string{"root"}, got.Graph.NodeIDs())
		assert.Empty(t, got.Graph.Edges)
	})

	t.Run("Stale Version Conflicts", func(t *testing.T) {
		id := create(t, "Stale")

		_, err := gw.UpsertGraph(ctx, UpsertRequest{
			BlueprintID:             id,
			Graph:                   seed,
			ExpectedAutosaveVersion: 7,
		})
		assert.ErrorIs(t, err, domain.ErrConflict)

		got, err := gw.GetBlueprint(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), got.Blueprint.AutosaveVersion, "a rejected write must not advance the version")
	})

	t.Run("Upsert Unknown Blueprint", func(t *testing.T) {
		_, err := gw.UpsertGraph(ctx, UpsertRequest{
			BlueprintID:             "missing-upsert",
			Graph:                   seed,
			ExpectedAutosaveVersion: 1,
		})
		assert.ErrorIs(t, err, domain.ErrBlueprintNotFound)
	})

	t.Run("Rename Is Version Checked", func(t *testing.T) {
		id := create(t, "Before")

		_, err := gw.RenameBlueprint(ctx, RenameRequest{BlueprintID: id, NextTitle: "Nope", ExpectedAutosaveVersion: 0})
		assert.ErrorIs(t, err, domain.ErrConflict)

		version, err := gw.RenameBlueprint(ctx, RenameRequest{BlueprintID: id, NextTitle: "After", ExpectedAutosaveVersion: 1})
		require.NoError(t, err)
		assert.Equal(t, uint64(2), version)

		got, err := gw.GetBlueprint(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "After", got.Blueprint.Title)
		assert.Equal(t, uint64(2), got.Blueprint.AutosaveVersion)
	})

	t.Run("List Duplicate Delete", func(t *testing.T) {
		id := create(t, "Original")

		dupID, err := gw.DuplicateBlueprint(ctx, id)
		require.NoError(t, err)
		assert.NotEqual(t, id, dupID)

		dup, err := gw.GetBlueprint(ctx, dupID)
		require.NoError(t, err)
		assert.True(t, seed.Equal(dup.Graph))
		assert.Equal(t, uint64(1), dup.Blueprint.AutosaveVersion)

		list, err := gw.ListBlueprints(ctx)
		require.NoError(t, err)
		ids := make([]string, 0, len(list))
		for _, bp := range list {
			ids = append(ids, bp.ID)
		}
		assert.Contains(t, ids, id)
		assert.Contains(t, ids, dupID)

		require.NoError(t, gw.DeleteBlueprint(ctx, dupID))
		_, err = gw.GetBlueprint(ctx, dupID)
		assert.ErrorIs(t, err, domain.ErrBlueprintNotFound)
	})

	t.Run("Snapshot And Share", func(t *testing.T) {
		id := create(t, "Shared")

		snap, err := gw.CreateSnapshot(ctx, id, SnapshotOptions{Label: "v1"})
		require.NoError(t, err)
		assert.Equal(t, id, snap.BlueprintID)
		assert.Equal(t, "v1", snap.Label)
		assert.Equal(t, uint64(1), snap.Version)
		assert.True(t, seed.Equal(snap.Graph))

		share, err := gw.CreateShare(ctx, id, ShareOptions{TTL: time.Hour})
		require.NoError(t, err)
		assert.NotEmpty(t, share.Token)
		require.NotNil(t, share.ExpiresAt)
		assert.True(t, share.ExpiresAt.After(time.Now()))

		_, err = gw.CreateShare(ctx, "missing-share", ShareOptions{})
		assert.ErrorIs(t, err, domain.ErrBlueprintNotFound)
	})
}
