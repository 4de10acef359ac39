package ports

import "time"

// Timer is a cancelable scheduled callback.
type Timer interface {
	// Stop prevents the callback from firing. It reports whether the call stopped it.
	Stop() bool
}

// Clock is the scheduler capability used by the engine for debounce and backoff.
// Callbacks run on an arbitrary goroutine; the engine serializes them itself.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}
