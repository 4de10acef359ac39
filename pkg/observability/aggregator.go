package observability

import (
	"context"
	"sync"

	"github.com/aretw0/blueprint/pkg/domain"
)

// Watcher is anything that publishes editor state snapshots.
type Watcher interface {
	Watch(ctx context.Context) <-chan domain.EditorState
}

// Snapshot is an EditorState tagged with the watcher it came from.
type Snapshot struct {
	Source string             `json:"source"`
	State  domain.EditorState `json:"state"`
}

// Aggregator combines multiple watchers into a single view.
type Aggregator struct {
	mu       sync.Mutex
	watchers map[string]Watcher
}

// NewAggregator creates a new aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		watchers: make(map[string]Watcher),
	}
}

// AddWatcher registers w under name, replacing any previous watcher with that name.
// It only affects streams opened by later Watch calls.
func (a *Aggregator) AddWatcher(name string, w Watcher) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.watchers[name] = w
}

// RemoveWatcher unregisters name.
func (a *Aggregator) RemoveWatcher(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.watchers, name)
}

// Watch merges every registered watcher into one channel.
// The channel closes once ctx is done or every source has closed.
func (a *Aggregator) Watch(ctx context.Context) <-chan Snapshot {
	a.mu.Lock()
	sources := make(map[string]Watcher, len(a.watchers))
	for name, w := range a.watchers {
		sources[name] = w
	}
	a.mu.Unlock()

	out := make(chan Snapshot, len(sources))
	var wg sync.WaitGroup
	for name, w := range sources {
		wg.Add(1)
		go func(name string, ch <-chan domain.EditorState) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case st, ok := <-ch:
					if !ok {
						return
					}
					select {
					case out <- Snapshot{Source: name, State: st}:
					case <-ctx.Done():
						return
					}
				}
			}
		}(name, w.Watch(ctx))
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
