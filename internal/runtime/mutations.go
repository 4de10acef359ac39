package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/blueprint/pkg/domain"
)

// AddNode creates a node of the given kind and connects it to parentID, the
// selected node or the root, in that order. It returns the new node id.
func (e *Engine) AddNode(kind string, pos domain.Position, parentID string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ""
	}
	id := e.store.addNode(kind, pos, parentID)
	e.editedLocked(false)
	return id
}

// UpdateNodeData merges patch into a node's data. Unknown nodes are ignored.
func (e *Engine) UpdateNodeData(nodeID string, patch domain.NodeDataPatch) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	if !e.store.updateNodeData(nodeID, patch) {
		e.logger.Debug("update ignored", "node_id", nodeID)
		return false
	}
	e.editedLocked(false)
	return true
}

// MoveNode repositions a node. The root cannot be moved.
func (e *Engine) MoveNode(nodeID string, pos domain.Position) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || !e.store.moveNode(nodeID, pos) {
		return false
	}
	e.editedLocked(false)
	return true
}

// DeleteNode removes a node and its edges. The root cannot be deleted.
func (e *Engine) DeleteNode(nodeID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	if !e.store.deleteNode(nodeID) {
		e.logger.Debug("delete ignored", "node_id", nodeID)
		return false
	}
	e.editedLocked(true)
	return true
}

// Connect creates an edge between two existing nodes and returns its id,
// or "" when an endpoint is missing.
func (e *Engine) Connect(source, target, sourceHandle, targetHandle string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ""
	}
	id := e.store.connect(source, target, sourceHandle, targetHandle)
	if id == "" {
		e.logger.Debug("connect ignored", "source", source, "target", target)
		return ""
	}
	e.editedLocked(false)
	return id
}

// DeleteEdge removes an edge.
func (e *Engine) DeleteEdge(edgeID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || !e.store.deleteEdge(edgeID) {
		return false
	}
	e.editedLocked(true)
	return true
}

// Select changes the selected node. Selection is not an edit.
func (e *Engine) Select(nodeID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || !e.store.selectNode(nodeID) {
		return false
	}
	e.publishLocked()
	return true
}

// Undo restores the previous history entry.
func (e *Engine) Undo() bool {
	return e.travel((*history).Undo)
}

// Redo restores the next history entry.
func (e *Engine) Redo() bool {
	return e.travel((*history).Redo)
}

func (e *Engine) travel(move func(*history) (domain.Graph, bool)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	g, ok := move(e.history)
	if !ok {
		return false
	}
	e.history.Apply(func() {
		e.store.replace(g)
	})
	e.markDirtyLocked()
	e.publishLocked()
	return true
}

// editedLocked records a user edit: history capture, dirty flag and autosave.
func (e *Engine) editedLocked(immediate bool) {
	if immediate {
		e.history.Commit(e.store.graph)
	} else {
		e.history.Schedule(e.store.graph)
	}
	e.markDirtyLocked()
	e.publishLocked()
}

func (e *Engine) markDirtyLocked() {
	e.revision++
	e.dirty = true
	e.scheduleAutosaveLocked()
}

// Dispatch applies a command. It is the message-passing form of the methods above.
func (e *Engine) Dispatch(ctx context.Context, cmd domain.Command) (domain.CommandResult, error) {
	switch c := cmd.(type) {
	case domain.AddNode:
		id := e.AddNode(c.Kind, c.Position, c.ParentID)
		if id == "" {
			return domain.CommandResult{}, domain.ErrDisposed
		}
		return domain.CommandResult{ID: id}, nil
	case domain.UpdateNodeData:
		e.UpdateNodeData(c.NodeID, c.Patch)
		return domain.CommandResult{ID: c.NodeID}, nil
	case domain.MoveNode:
		e.MoveNode(c.NodeID, c.Position)
		return domain.CommandResult{ID: c.NodeID}, nil
	case domain.DeleteNode:
		e.DeleteNode(c.NodeID)
		return domain.CommandResult{ID: c.NodeID}, nil
	case domain.Connect:
		return domain.CommandResult{ID: e.Connect(c.Source, c.Target, c.SourceHandle, c.TargetHandle)}, nil
	case domain.DeleteEdge:
		e.DeleteEdge(c.EdgeID)
		return domain.CommandResult{ID: c.EdgeID}, nil
	case domain.Select:
		e.Select(c.NodeID)
		return domain.CommandResult{ID: c.NodeID}, nil
	case domain.Undo:
		e.Undo()
		return domain.CommandResult{}, nil
	case domain.Redo:
		e.Redo()
		return domain.CommandResult{}, nil
	case domain.Save:
		return domain.CommandResult{}, e.Save(ctx)
	case domain.Reload:
		return domain.CommandResult{}, e.Reload(ctx)
	case domain.Rename:
		return domain.CommandResult{}, e.Rename(ctx, c.Title)
	case nil:
		return domain.CommandResult{}, fmt.Errorf("%w: nil command", domain.ErrInvalidRequest)
	default:
		return domain.CommandResult{}, fmt.Errorf("%w: unsupported command %T", domain.ErrInvalidRequest, cmd)
	}
}
