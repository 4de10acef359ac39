package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/blueprint/pkg/adapters/file"
	"github.com/aretw0/blueprint/pkg/domain"
	"github.com/aretw0/blueprint/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileGateway_Contract(t *testing.T) {
	ports.RunGatewayContract(t, file.New(t.TempDir()))
}

func TestFileGateway_SurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	res, err := file.New(dir).UpsertGraph(ctx, ports.UpsertRequest{Title: "Persistent", Graph: domain.NewGraph("root")})
	require.NoError(t, err)

	got, err := file.New(dir).GetBlueprint(ctx, res.BlueprintID)
	require.NoError(t, err)
	assert.Equal(t, "Persistent", got.Blueprint.Title)
	assert.Equal(t, []string{"root"}, got.Graph.NodeIDs())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files are left behind")
	assert.Equal(t, res.BlueprintID+".json", entries[0].Name())
}

func TestFileGateway_RejectsPathIDs(t *testing.T) {
	gw := file.New(t.TempDir())
	_, err := gw.GetBlueprint(context.Background(), "../escape")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestFileGateway_CorruptDocumentIsFatal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0644))

	_, err := file.New(dir).GetBlueprint(context.Background(), "broken")
	assert.ErrorIs(t, err, domain.ErrFatal)
}

func TestFileGateway_ListMissingDir(t *testing.T) {
	list, err := file.New(filepath.Join(t.TempDir(), "absent")).ListBlueprints(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}
