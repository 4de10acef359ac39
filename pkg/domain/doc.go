/*
Package domain contains the data model of the blueprint editor and the rules that
hold for it regardless of where a graph lives.

It defines the graph (Nodes and Edges), the Blueprint aggregate that owns the
optimistic-concurrency version token, the commands accepted by the editing
engine and the telemetry events it emits. This package is kept pure and free of
I/O, following Hexagonal Architecture principles.

# Key Entities

  - Node: a vertex with a kind, a canvas position and editable data. Exactly one
    node per graph carries the root element key.
  - Edge: a directed connection between two nodes, optionally anchored on named handles.
  - Graph: the (nodes, edges) pair that the engine edits, snapshots and persists.
  - Blueprint: the remote aggregate carrying title, status and AutosaveVersion.
  - Command: a message accepted by the engine's Dispatch API.
*/
package domain
