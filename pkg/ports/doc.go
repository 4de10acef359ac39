/*
Package ports defines the driven ports (interfaces) of the blueprint engine.

These interfaces decouple the synchronization core from the remote store, the
telemetry backend and the timer implementation, so the same engine logic runs
against a Redis store, an HTTP backend, or a test harness with a fake clock.

# Key Interfaces

  - Gateway: the remote CRUD/RPC surface that owns blueprints and their graphs.
  - TelemetrySink: best-effort receiver of persistence job events.
  - Clock: the scheduler capability used for debounce and backoff timers.
  - DistributedLocker: leases that keep a blueprint to a single editing session.
*/
package ports
