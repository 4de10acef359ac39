package clock

import (
	"time"

	"github.com/aretw0/blueprint/pkg/ports"
)

// Real is the wall clock backed by time.AfterFunc.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time { return time.Now() }

// AfterFunc schedules f after d.
func (Real) AfterFunc(d time.Duration, f func()) ports.Timer {
	return time.AfterFunc(d, f)
}
