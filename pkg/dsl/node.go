package dsl

import "github.com/aretw0/blueprint/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node    domain.Node
	builder *Builder
}

// Title sets the display title.
func (n *NodeBuilder) Title(title string) *NodeBuilder {
	n.node.Data.Title = title
	return n
}

// At places the node on the canvas.
func (n *NodeBuilder) At(x, y float64) *NodeBuilder {
	n.node.Position = domain.Position{X: x, Y: y}
	return n
}

// Key sets the element key. The root key is reserved for Root.
func (n *NodeBuilder) Key(key string) *NodeBuilder {
	if key != domain.RootElementKey && !n.node.IsRoot() {
		n.node.Data.ElementKey = key
	}
	return n
}

// Field sets an editable attribute.
func (n *NodeBuilder) Field(key string, value any) *NodeBuilder {
	if n.node.Data.Fields == nil {
		n.node.Data.Fields = make(map[string]any)
	}
	n.node.Data.Fields[key] = value
	return n
}

// Meta sets a non-editable annotation.
func (n *NodeBuilder) Meta(key string, value any) *NodeBuilder {
	if n.node.Data.Metadata == nil {
		n.node.Data.Metadata = make(map[string]any)
	}
	n.node.Data.Metadata[key] = value
	return n
}

// Go connects this node to target through the center handles.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	return n.Via(target, domain.CenterSourceHandle, domain.CenterTargetHandle)
}

// Via connects this node to target through explicit handles.
func (n *NodeBuilder) Via(target, sourceHandle, targetHandle string) *NodeBuilder {
	n.builder.connect(n.node.ID, target, sourceHandle, targetHandle)
	return n
}

// Build returns a copy of the underlying domain.Node.
func (n *NodeBuilder) Build() domain.Node {
	return n.node.Clone()
}
