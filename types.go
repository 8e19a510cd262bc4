package sessiongate

import (
	"context"

	"github.com/croven/sessiongate/session"
)

// Identity is the verified principal a session is created for. Credential
// verification happens outside this engine; by the time an Identity reaches
// [Engine.CreateSession] it is already trusted.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

// DirectoryUser is the identity directory's view of an account, re-queried on
// every validation rather than assumed from the session record.
type DirectoryUser struct {
	ID     string
	Email  string
	Role   string
	Active bool
	Banned bool
}

// UserDirectory is the identity collaborator. LookupUser returns (nil, nil)
// when no such user exists; the engine never mutates the directory.
type UserDirectory interface {
	LookupUser(ctx context.Context, userID string) (*DirectoryUser, error)
}

// InvalidReason tags why a validation run failed. Reasons are for internal
// logging and audit only and are never surfaced across the authentication
// boundary.
type InvalidReason string

const (
	// ReasonNone marks a successful validation.
	ReasonNone InvalidReason = ""
	// ReasonTokenInvalid covers malformed, tampered, or wrong-class tokens.
	ReasonTokenInvalid InvalidReason = "token-invalid"
	// ReasonTokenExpired covers expired access tokens.
	ReasonTokenExpired InvalidReason = "token-expired"
	// ReasonSessionNotFound covers tokens referencing no known session.
	ReasonSessionNotFound InvalidReason = "session-not-found"
	// ReasonSessionExpired covers sessions past their expiry.
	ReasonSessionExpired InvalidReason = "session-expired"
	// ReasonIntegrity covers invalidated sessions and fingerprint mismatches.
	ReasonIntegrity InvalidReason = "session-integrity"
	// ReasonUserInvalid covers inactive, banned, or deleted owning accounts.
	ReasonUserInvalid InvalidReason = "user-invalid"
	// ReasonStoreDegraded covers durable-store outages on the fail-closed
	// validation lookup path.
	ReasonStoreDegraded InvalidReason = "persistence-degraded"
)

// ValidationResult is the tagged terminal state of a validation pipeline run:
// either Valid with the authenticated identity and session, or Invalid with
// an internal reason.
type ValidationResult struct {
	Valid    bool
	Reason   InvalidReason
	Identity Identity
	Session  *session.Session

	// Refreshed signals the boundary that a new token pair was minted
	// during this run and cookies must be re-issued.
	Refreshed    bool
	AccessToken  string
	RefreshToken string
}

// Err maps the result to the uniform external error: nil when valid,
// [ErrUnauthorized] otherwise. Callers that need the internal reason read
// [ValidationResult.Reason] directly and keep it out of responses.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return ErrUnauthorized
}

// AuthResult is returned by session creation and explicit refresh: the
// session record plus the freshly minted token pair.
type AuthResult struct {
	Identity     Identity
	Session      *session.Session
	AccessToken  string
	RefreshToken string
}

// writeCriticality tags each durable write with its failure policy.
type writeCriticality int

const (
	// writeCritical writes propagate durable-store failures to the caller.
	writeCritical writeCriticality = iota
	// writeBestEffort writes are logged and swallowed; cached state keeps
	// serving while the durable layer is degraded.
	writeBestEffort
)
