// Package sessiongate is the admin session lifecycle and validation engine:
// it creates, validates, refreshes, and invalidates privileged sessions,
// binds them to a device fingerprint, persists them across three layers
// (in-process cache, durable Redis store, append-only audit log), and detects
// tampering.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// sessiongate is the public surface. It exposes [Engine], [Builder],
// [Config], and value types. Token signing lives in token/, fingerprint
// derivation in fingerprint/, persistence mechanics in session/, and the
// HTTP authentication boundary in middleware/.
//
// # Failure policy
//
// Failure handling is asymmetric and tagged per operation: session creation
// and validation lookups are fail-closed (a durable-store outage denies the
// request), while activity updates and heartbeat writes are fail-open
// (logged and swallowed, cached state keeps serving).
package sessiongate
