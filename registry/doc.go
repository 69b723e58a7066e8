// Package registry is the process-wide namespace of live I/O instances:
// a concurrency-safe map from instance id to device.IO, plus the provider
// resolution that turns configs into instances.
//
//	                ┌───────────────┐
//	Create[T] ────▶ │   Registry    │ ──▶ provider.Store (resolution)
//	Get[T]    ────▶ │ id → device.IO│ ──▶ Provider.Create → Initialize
//	Destroy   ────▶ │               │ ──▶ Shutdown on the way out
//	                └───────────────┘
//
// # Thread Safety
//
// All operations are safe for concurrent use. The write lock is held
// across the whole create (resolve, construct, initialize, insert) and the
// whole destroy (lookup, shutdown, delete), making per-id create/destroy
// linearizable: no double-create, no window where a reader observes a
// half-initialized or already-shut-down instance. The cost is that a slow
// device Initialize blocks every registry operation for its duration;
// callers with slow hardware should create instances during startup, not
// on request paths.
package registry
