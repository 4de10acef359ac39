package runtime

import (
	"time"

	"github.com/aretw0/blueprint/pkg/domain"
	"github.com/aretw0/blueprint/pkg/ports"
)

// history is a bounded linear undo stack of graph snapshots.
// Rapid edits are coalesced: Schedule keeps only the latest candidate and commits it
// once the debounce window passes without another edit.
// It is not safe for concurrent use; fire is invoked through the engine's guard.
type history struct {
	entries []domain.Graph
	index   int
	limit   int

	debounce   time.Duration
	clock      ports.Clock
	pending    *domain.Graph
	timer      ports.Timer
	generation uint64

	// applying suppresses recording while undo, redo or a repair writes the store.
	applying bool

	// fire schedules the timer callback. The engine wraps it with its lock.
	fire func(func())
}

func newHistory(initial domain.Graph, limit int, debounce time.Duration, clock ports.Clock) *history {
	if limit < 1 {
		limit = 1
	}
	return &history{
		entries:  []domain.Graph{initial.Clone()},
		limit:    limit,
		debounce: debounce,
		clock:    clock,
		fire:     func(f func()) { f() },
	}
}

// Schedule records g as the pending candidate and re-arms the debounce timer.
func (h *history) Schedule(g domain.Graph) {
	if h.applying {
		return
	}
	candidate := g.Clone()
	h.pending = &candidate
	h.stopTimer()

	h.generation++
	gen := h.generation
	h.timer = h.clock.AfterFunc(h.debounce, func() {
		h.fire(func() {
			if gen != h.generation {
				return
			}
			h.flushPending()
		})
	})
}

// Commit records g immediately, discarding any pending candidate.
func (h *history) Commit(g domain.Graph) {
	if h.applying {
		return
	}
	h.cancelPending()
	h.push(g)
}

// flushPending commits the pending candidate, if any.
func (h *history) flushPending() {
	if h.pending == nil {
		return
	}
	g := *h.pending
	h.cancelPending()
	h.push(g)
}

func (h *history) push(g domain.Graph) {
	if h.entries[h.index].Equal(g) {
		return
	}
	h.entries = append(h.entries[:h.index+1], g.Clone())
	if over := len(h.entries) - h.limit; over > 0 {
		h.entries = append([]domain.Graph(nil), h.entries[over:]...)
	}
	h.index = len(h.entries) - 1
}

// Undo commits pending edits and moves one entry back.
func (h *history) Undo() (domain.Graph, bool) {
	h.flushPending()
	if !h.CanUndo() {
		return domain.Graph{}, false
	}
	h.index--
	return h.entries[h.index].Clone(), true
}

// Redo moves one entry forward.
func (h *history) Redo() (domain.Graph, bool) {
	h.flushPending()
	if !h.CanRedo() {
		return domain.Graph{}, false
	}
	h.index++
	return h.entries[h.index].Clone(), true
}

// Rebaseline replaces the current entry with g without adding a step.
// Used when the graph changes for reasons the user did not initiate, like a repair.
func (h *history) Rebaseline(g domain.Graph) {
	h.flushPending()
	h.entries[h.index] = g.Clone()
}

// Reset drops all entries and starts over from g.
func (h *history) Reset(g domain.Graph) {
	h.cancelPending()
	h.entries = []domain.Graph{g.Clone()}
	h.index = 0
}

// Apply runs f with recording suppressed.
func (h *history) Apply(f func()) {
	h.applying = true
	defer func() { h.applying = false }()
	f()
}

func (h *history) cancelPending() {
	h.pending = nil
	h.stopTimer()
	h.generation++
}

func (h *history) stopTimer() {
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

func (h *history) Len() int      { return len(h.entries) }
func (h *history) Index() int    { return h.index }
func (h *history) CanUndo() bool { return h.index > 0 || h.hasPendingChange() }
func (h *history) CanRedo() bool { return h.index < len(h.entries)-1 && !h.hasPendingChange() }

// hasPendingChange reports whether the pending candidate would add an entry.
func (h *history) hasPendingChange() bool {
	return h.pending != nil && !h.entries[h.index].Equal(*h.pending)
}
