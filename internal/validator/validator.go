package validator

import (
	"fmt"
	"strings"

	"github.com/aretw0/blueprint/pkg/domain"
)

// Problems lists what is wrong with g: missing or duplicate roots, repeated ids,
// dangling edges and nodes the root cannot reach. A clean graph yields nil.
func Problems(g domain.Graph) []string {
	var problems []string

	nodes := make(map[string]bool, len(g.Nodes))
	var roots []string
	for _, n := range g.Nodes {
		if n.ID == "" {
			problems = append(problems, fmt.Sprintf("Node without id (kind '%s')", n.Kind))
			continue
		}
		if nodes[n.ID] {
			problems = append(problems, fmt.Sprintf("Duplicate node id: '%s'", n.ID))
		}
		nodes[n.ID] = true
		if n.IsRoot() {
			roots = append(roots, n.ID)
		}
	}

	switch len(roots) {
	case 0:
		problems = append(problems, "Graph has no root node")
	case 1:
	default:
		problems = append(problems, fmt.Sprintf("Graph has %d root nodes: %s", len(roots), strings.Join(roots, ", ")))
	}

	next := make(map[string][]string)
	edges := make(map[string]bool, len(g.Edges))
	for _, e := range g.Edges {
		if e.ID != "" && edges[e.ID] {
			problems = append(problems, fmt.Sprintf("Duplicate edge id: '%s'", e.ID))
		}
		edges[e.ID] = true
		if !nodes[e.Source] || !nodes[e.Target] {
			problems = append(problems, fmt.Sprintf("Dangling edge '%s': %s -> %s", e.ID, e.Source, e.Target))
			continue
		}
		next[e.Source] = append(next[e.Source], e.Target)
	}

	if len(roots) == 0 {
		return problems
	}

	// Crawl from the root; anything left unvisited is unreachable.
	visited := map[string]bool{}
	queue := []string{roots[0]}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true
		for _, target := range next[current] {
			if !visited[target] {
				queue = append(queue, target)
			}
		}
	}
	for _, n := range g.Nodes {
		if n.ID != "" && !visited[n.ID] && !n.IsRoot() {
			problems = append(problems, fmt.Sprintf("Unreachable node: '%s'", n.ID))
		}
	}
	return problems
}

// ValidateGraph returns an error describing every problem found in g.
func ValidateGraph(g domain.Graph) error {
	problems := Problems(g)
	if len(problems) > 0 {
		return fmt.Errorf("found %d errors:\n- %s", len(problems), strings.Join(problems, "\n- "))
	}
	return nil
}
