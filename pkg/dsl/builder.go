package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/blueprint/pkg/domain"
)

// Builder manages the graph construction.
// Nodes and edges keep the order in which they were declared.
type Builder struct {
	nodes []*NodeBuilder
	index map[string]*NodeBuilder
	edges []domain.Edge
}

// New creates a new graph builder.
func New() *Builder {
	return &Builder{
		index: make(map[string]*NodeBuilder),
	}
}

// Root declares the root node. Calling it again returns the same builder.
func (b *Builder) Root(id string) *NodeBuilder {
	if nb, ok := b.index[id]; ok {
		return nb
	}
	return b.add(domain.NewRootNode(id))
}

// Add declares a node of the given kind, titled after the kind.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id, kind string) *NodeBuilder {
	if nb, ok := b.index[id]; ok {
		return nb
	}
	return b.add(domain.Node{
		ID:   id,
		Kind: kind,
		Data: domain.NodeData{Title: kind},
	})
}

func (b *Builder) add(n domain.Node) *NodeBuilder {
	nb := &NodeBuilder{node: n, builder: b}
	b.nodes = append(b.nodes, nb)
	b.index[n.ID] = nb
	return nb
}

func (b *Builder) connect(source, target, sourceHandle, targetHandle string) {
	id := fmt.Sprintf("%s->%s", source, target)
	for n := 2; b.hasEdge(id); n++ {
		id = fmt.Sprintf("%s->%s#%d", source, target, n)
	}
	b.edges = append(b.edges, domain.NewEdge(id, source, target, sourceHandle, targetHandle))
}

func (b *Builder) hasEdge(id string) bool {
	for _, e := range b.edges {
		if e.ID == id {
			return true
		}
	}
	return false
}

// Build compiles the declarations into a graph.
// It fails when there is not exactly one root or an edge names an undeclared node.
func (b *Builder) Build() (domain.Graph, error) {
	g := domain.Graph{
		Nodes: make([]domain.Node, 0, len(b.nodes)),
		Edges: make([]domain.Edge, 0, len(b.edges)),
	}
	for _, nb := range b.nodes {
		g.Nodes = append(g.Nodes, nb.Build())
	}

	var errs []error
	if roots := g.RootCount(); roots != 1 {
		errs = append(errs, fmt.Errorf("graph must have exactly one root, found %d", roots))
	}
	for _, e := range b.edges {
		if !g.HasNode(e.Source) {
			errs = append(errs, fmt.Errorf("edge %s: unknown source %q", e.ID, e.Source))
		}
		if !g.HasNode(e.Target) {
			errs = append(errs, fmt.Errorf("edge %s: unknown target %q", e.ID, e.Target))
		}
		g.Edges = append(g.Edges, e.Clone())
	}
	if len(errs) > 0 {
		return domain.Graph{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, errors.Join(errs...))
	}
	return g, nil
}

// MustBuild is Build for graphs known to be valid, such as test fixtures.
func (b *Builder) MustBuild() domain.Graph {
	g, err := b.Build()
	if err != nil {
		panic(err)
	}
	return g
}
