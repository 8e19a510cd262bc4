// Package middleware is the HTTP authentication boundary in front of
// sessiongate.Engine validation.
//
// # Guard
//
//   - [Guard] — full pipeline validation on every request: token extraction,
//     fingerprint capture, Engine.Validate, cookie re-issue on refresh.
//
// The guard resolves the access token by transport priority (bearer header,
// admin cookie, query parameter), runs the engine's validation pipeline, and
// injects the result into the request context. Rejected requests get their
// session cookies cleared and a single uniform unauthorized response.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself — all decisions are delegated to
// Engine.Validate.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Echo internal failure reasons to the caller.
package middleware
