package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/blueprint/pkg/domain"
)

// Overlay carries session state to highlight on the graph.
type Overlay struct {
	SelectedID string
	// Pending lists node ids with unsaved changes.
	Pending []string
}

// GenerateMermaid produces a Mermaid flowchart for g.
// Shapes:
// - Root: ((Circle))
// - decision kinds: {Rhombus}
// - Default: [Rectangle]
// Edges leaving a named handle carry it as a label.
func GenerateMermaid(g domain.Graph, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range g.Nodes {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		switch {
		case node.IsRoot():
			opener, closer = "((", "))"
		case isDecision(node.Kind):
			opener, closer = "{", "}"
		}

		label := node.Data.Title
		if label == "" {
			label = node.ID
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, escapeLabel(label), closer)
	}

	for _, edge := range g.Edges {
		arrow := "-->"
		if h := edge.SourceHandle; h != "" && h != domain.CenterSourceHandle {
			arrow = fmt.Sprintf("-- \"%s\" -->", escapeLabel(h))
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(edge.Source), arrow, sanitizeMermaidID(edge.Target))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on light fills in both themes.
		sb.WriteString("    classDef pending fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef selected fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.Pending {
			if !g.HasNode(id) {
				continue
			}
			safeID := sanitizeMermaidID(id)
			if !seen[safeID] {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s pending;\n", safeID)
			}
		}
		if overlay.SelectedID != "" && g.HasNode(overlay.SelectedID) {
			fmt.Fprintf(&sb, "    class %s selected;\n", sanitizeMermaidID(overlay.SelectedID))
		}
	}

	return sb.String()
}

func isDecision(kind string) bool {
	switch strings.ToLower(kind) {
	case "decision", "condition", "branch", "gateway":
		return true
	}
	return false
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	return strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_").Replace(id)
}
