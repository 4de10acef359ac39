package ports

import (
	"context"

	"github.com/aretw0/blueprint/pkg/domain"
)

// TelemetrySink receives persistence events.
// Emit must not block; delivery failures must not be reported back to the engine.
type TelemetrySink interface {
	Emit(ctx context.Context, event domain.JobEvent)
}

// TelemetryFunc adapts a function to TelemetrySink.
type TelemetryFunc func(ctx context.Context, event domain.JobEvent)

// Emit calls f.
func (f TelemetryFunc) Emit(ctx context.Context, event domain.JobEvent) {
	f(ctx, event)
}
