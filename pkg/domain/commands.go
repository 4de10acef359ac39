package domain

// Command is a message accepted by the engine's Dispatch API.
type Command interface {
	commandName() string
}

// CommandName returns the wire name of a command (as used in edit scripts).
func CommandName(c Command) string {
	return c.commandName()
}

// AddNode creates a node and connects it to ParentID, the selection or the root.
type AddNode struct {
	Kind     string   `mapstructure:"kind"`
	Position Position `mapstructure:"position"`
	ParentID string   `mapstructure:"parent"`
}

// UpdateNodeData merges Patch into the node's data.
type UpdateNodeData struct {
	NodeID string        `mapstructure:"node"`
	Patch  NodeDataPatch `mapstructure:"patch"`
}

// MoveNode changes the position of a draggable node.
type MoveNode struct {
	NodeID   string   `mapstructure:"node"`
	Position Position `mapstructure:"position"`
}

// DeleteNode removes a node and every edge touching it.
type DeleteNode struct {
	NodeID string `mapstructure:"node"`
}

// Connect creates an edge between two existing nodes.
type Connect struct {
	Source       string `mapstructure:"source"`
	Target       string `mapstructure:"target"`
	SourceHandle string `mapstructure:"source_handle"`
	TargetHandle string `mapstructure:"target_handle"`
}

// DeleteEdge removes an edge.
type DeleteEdge struct {
	EdgeID string `mapstructure:"edge"`
}

// Select changes the selected node.
type Select struct {
	NodeID string `mapstructure:"node"`
}

// Undo moves one step back in history.
type Undo struct{}

// Redo moves one step forward in history.
type Redo struct{}

// Save enqueues a manual save and waits for it to settle.
type Save struct{}

// Reload discards local state in favour of the store of record.
type Reload struct{}

// Rename changes the blueprint title through a version-checked write.
type Rename struct {
	Title string `mapstructure:"title"`
}

func (AddNode) commandName() string        { return "add_node" }
func (UpdateNodeData) commandName() string { return "update_node" }
func (MoveNode) commandName() string       { return "move_node" }
func (DeleteNode) commandName() string     { return "delete_node" }
func (Connect) commandName() string        { return "connect" }
func (DeleteEdge) commandName() string     { return "delete_edge" }
func (Select) commandName() string         { return "select" }
func (Undo) commandName() string           { return "undo" }
func (Redo) commandName() string           { return "redo" }
func (Save) commandName() string           { return "save" }
func (Reload) commandName() string         { return "reload" }
func (Rename) commandName() string         { return "rename" }

// CommandResult carries what a command produced, e.g. the id of a created node or edge.
type CommandResult struct {
	ID string `json:"id,omitempty"`
}
