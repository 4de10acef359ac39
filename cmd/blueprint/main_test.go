package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/blueprint"
	"github.com/aretw0/blueprint/pkg/domain"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag to its default between invocations of the
// shared command tree.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	resetFlags(rootCmd)
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func setupProject(t *testing.T) (dir, cfgPath string) {
	t.Helper()
	dir = t.TempDir()
	t.Chdir(dir)
	cfgPath = writeFile(t, dir, "config.yaml", "log_level: error\ngateway:\n  kind: file\n  path: "+filepath.Join(dir, "data")+"\n")
	return dir, cfgPath
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "blueprint version "+blueprint.Version+"\n", out)
}

func TestBlueprintLifecycle(t *testing.T) {
	dir, cfg := setupProject(t)

	seed := writeFile(t, dir, "seed.yaml", `
steps:
  - op: add_node
    as: intake
    kind: form
  - op: update_node
    node: $intake
    patch: {title: Intake}
`)
	out, err := run(t, "--config", cfg, "new", "Onboarding", "--script", seed)
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	require.NotEmpty(t, id)

	out, err = run(t, "--config", cfg, "ls")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "Onboarding")

	out, err = run(t, "--config", cfg, "show", id, "--plain")
	require.NoError(t, err)
	assert.Contains(t, out, "# Onboarding")
	assert.Contains(t, out, "Intake")

	out, err = run(t, "--config", cfg, "graph", id)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	assert.Contains(t, out, `["Intake"]`)

	out, err = run(t, "--config", cfg, "check", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Graph is valid!")

	edits := writeFile(t, dir, "edits.yaml", `
steps:
  - op: add_node
    as: review
    kind: approval
    parent: $root
  - op: save
`)
	out, err = run(t, "--config", cfg, "apply", id, edits)
	require.NoError(t, err)
	assert.Contains(t, out, "add_node")
	assert.Contains(t, out, "as $review")
	assert.Contains(t, out, ">>> "+id+": version")

	out, err = run(t, "--config", cfg, "show", id, "--json")
	require.NoError(t, err)
	var h domain.Hydrated
	require.NoError(t, json.Unmarshal([]byte(out), &h))
	assert.Len(t, h.Graph.Nodes, 3)

	out, err = run(t, "--config", cfg, "rename", id, "Renamed")
	require.NoError(t, err)
	assert.Contains(t, out, "Renamed '"+id+"'")

	out, err = run(t, "--config", cfg, "snapshot", id, "--label", "v1", "--json")
	require.NoError(t, err)
	var snap domain.SnapshotRecord
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, "v1", snap.Label)
	assert.Len(t, snap.Graph.Nodes, 3)

	out, err = run(t, "--config", cfg, "share", id)
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))

	out, err = run(t, "--config", cfg, "dup", id)
	require.NoError(t, err)
	copyID := strings.TrimSpace(out)
	assert.NotEqual(t, id, copyID)

	out, err = run(t, "--config", cfg, "rm", copyID)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed blueprint '"+copyID+"'")
}

func TestCommandErrors(t *testing.T) {
	dir, cfg := setupProject(t)

	_, err := run(t, "--config", cfg, "show", "missing")
	assert.ErrorIs(t, err, domain.ErrBlueprintNotFound)

	_, err = run(t, "--config", cfg, "apply", "missing", filepath.Join(dir, "none.yaml"))
	assert.Error(t, err)

	_, err = run(t, "--config", filepath.Join(dir, "absent.yaml"), "ls")
	assert.Error(t, err)

	out, err := run(t, "--config", cfg, "ls")
	require.NoError(t, err)
	assert.Equal(t, "No blueprints found.\n", out)
}
