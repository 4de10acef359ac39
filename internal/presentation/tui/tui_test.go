package tui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/blueprint/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlueprintMarkdown(t *testing.T) {
	g := domain.NewGraph("root")
	g.Nodes = append(g.Nodes, domain.Node{ID: "a", Kind: "form", Data: domain.NodeData{
		Title:  "Intake | triage",
		Fields: map[string]any{"zeta": 1, "alpha": 2},
	}})
	g.Edges = append(g.Edges,
		domain.NewEdge("e1", "root", "a", domain.CenterSourceHandle, domain.CenterTargetHandle),
		domain.NewEdge("e2", "a", "root", "retry", ""),
	)
	md := BlueprintMarkdown(&domain.Hydrated{
		Blueprint: domain.Blueprint{
			ID:              "bp-1",
			Title:           "Onboarding",
			Status:          domain.StatusDraft,
			AutosaveVersion: 3,
			UpdatedAt:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		},
		Graph: g,
	})

	assert.True(t, strings.HasPrefix(md, "# Onboarding\n"))
	assert.Contains(t, md, "| version | 3 |")
	assert.Contains(t, md, "| updated | 2024-05-01 12:00:00 |")
	assert.Contains(t, md, "## Nodes (2)")
	assert.Contains(t, md, "| `a` | form | Intake \\| triage | alpha, zeta |")
	assert.Contains(t, md, "## Edges (2)")
	assert.Contains(t, md, "- `root` → `a`\n")
	assert.Contains(t, md, "- `a` → `root` (retry)\n")
}

func TestNewRenderer_Plain(t *testing.T) {
	render := NewRenderer(false)
	out, err := render("# Title")
	require.NoError(t, err)
	assert.Equal(t, "# Title", out)
}

func TestNewRenderer_Rich(t *testing.T) {
	render := NewRenderer(true)
	out, err := render("# Title\n\nbody")
	require.NoError(t, err)
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "body")
}

func TestStatusLabel_PlainWriter(t *testing.T) {
	var buf bytes.Buffer
	// A bytes.Buffer is not a terminal, so no escape codes are emitted.
	assert.Equal(t, "conflict", StatusLabel(&buf, domain.SyncConflict))
	assert.Equal(t, "archived", BlueprintStatusLabel(&buf, domain.StatusArchived))
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "1.2.3")
	assert.Contains(t, buf.String(), "1.2.3")
}
