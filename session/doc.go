// Package session provides the admin session model, the in-process cache
// (layer 1), the Redis-backed durable record store (layer 2), and the compact
// binary session encoding used between them.
//
// # Binary encoding
//
// Sessions are stored in Redis as a compact binary format with a leading
// schema version byte. The encoder is append-only: new versions add fields
// but never reinterpret old ones.
//
// # Architecture boundaries
//
// This package owns persistence mechanics only. It does NOT verify tokens,
// compare fingerprints, or consult the identity directory — those
// responsibilities belong to the engine.
package session
