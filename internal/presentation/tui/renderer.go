package tui

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/aretw0/blueprint/pkg/domain"
	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// IsInteractive reports whether f is a terminal. Rich output is only used then.
func IsInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// NewRenderer returns a function that renders markdown using glamour.
// When rich is false the markdown is returned as is.
func NewRenderer(rich bool) func(string) (string, error) {
	if !rich {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	return r.Render
}

// BlueprintMarkdown describes a stored blueprint as markdown.
func BlueprintMarkdown(h *domain.Hydrated) string {
	var sb strings.Builder
	bp := h.Blueprint

	title := bp.Title
	if title == "" {
		title = "Untitled"
	}
	fmt.Fprintf(&sb, "# %s\n\n", title)
	if bp.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", bp.Description)
	}

	sb.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&sb, "| id | `%s` |\n", bp.ID)
	fmt.Fprintf(&sb, "| status | %s |\n", bp.Status)
	fmt.Fprintf(&sb, "| version | %d |\n", bp.AutosaveVersion)
	if !bp.UpdatedAt.IsZero() {
		fmt.Fprintf(&sb, "| updated | %s |\n", bp.UpdatedAt.Format("2006-01-02 15:04:05"))
	}

	fmt.Fprintf(&sb, "\n## Nodes (%d)\n\n", len(h.Graph.Nodes))
	if len(h.Graph.Nodes) > 0 {
		sb.WriteString("| id | kind | title | fields |\n|---|---|---|---|\n")
		for _, n := range h.Graph.Nodes {
			fmt.Fprintf(&sb, "| `%s` | %s | %s | %s |\n", n.ID, n.Kind, cell(n.Data.Title), fieldList(n.Data.Fields))
		}
	}

	fmt.Fprintf(&sb, "\n## Edges (%d)\n\n", len(h.Graph.Edges))
	for _, e := range h.Graph.Edges {
		fmt.Fprintf(&sb, "- `%s` → `%s`", e.Source, e.Target)
		if e.SourceHandle != "" && e.SourceHandle != domain.CenterSourceHandle {
			fmt.Fprintf(&sb, " (%s)", e.SourceHandle)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func fieldList(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return cell(strings.Join(keys, ", "))
}
