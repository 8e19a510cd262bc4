package sessiongate

import "errors"

var (
	// ErrUnauthorized is the uniform failure surfaced across the
	// authentication boundary; internal reasons are never echoed to callers.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTokenInvalid is an exported sentinel for malformed or tampered tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is an exported sentinel for structurally valid but expired tokens.
	ErrTokenExpired = errors.New("token expired")
	// ErrSessionNotFound is returned when no session exists for a token's session ID.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionIntegrityViolation is returned on fingerprint mismatch or other
	// evidence of session tampering.
	ErrSessionIntegrityViolation = errors.New("session integrity violation")
	// ErrUserInvalid is returned when the owning account is inactive, banned,
	// or deleted.
	ErrUserInvalid = errors.New("user inactive, banned, or deleted")
	// ErrPersistenceDegraded marks a durable-store failure on a non-fatal path.
	ErrPersistenceDegraded = errors.New("durable session store degraded")
	// ErrCreationFailed marks a durable-store failure during session creation.
	// Creation is fail-closed; callers must surface a generic server error.
	ErrCreationFailed = errors.New("session creation failed")
	// ErrEngineNotReady is returned when the engine is used before Build.
	ErrEngineNotReady = errors.New("engine not initialized")
)
