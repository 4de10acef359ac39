/*
Package blueprint is the synchronization engine of a visual node/edge editor.

An Engine holds the working copy of one blueprint graph. Edits are applied in
memory immediately, recorded in a bounded undo history and reconciled with a
store of record (a ports.Gateway) in the background.

# Concept

Every blueprint carries an AutosaveVersion. Each write names the version it
believes is current; the gateway rejects the write with domain.ErrConflict when
another writer got there first. The engine never merges: on conflict it stops
saving and waits for the host to call Reload, which replaces local state with
the authoritative copy.

Writes go through a single worker. Edits are debounced into autosave jobs,
transient failures are retried with exponential backoff, and manual saves are
queued behind whatever is already in flight.

# Usage

	eng := blueprint.New(blueprint.WithGateway(file.New(".blueprint/blueprints")))
	defer eng.Close()

	step := eng.AddNode("step", domain.Position{X: 200, Y: 0})
	eng.UpdateNodeData(step, domain.NodeDataPatch{Title: ptr("Collect input")})

	if err := eng.Save(ctx); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			_ = eng.Reload(ctx)
		}
	}

Hosts that prefer message passing can send domain.Command values through
Dispatch and follow the session with Watch.
*/
package blueprint
