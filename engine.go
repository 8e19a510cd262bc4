package sessiongate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/croven/sessiongate/fingerprint"
	"github.com/croven/sessiongate/internal"
	"github.com/croven/sessiongate/session"
	"github.com/croven/sessiongate/token"
)

// Engine is the admin session lifecycle engine. Instances are configured
// through [Builder.Build] and are safe for concurrent use afterwards.
type Engine struct {
	config       Config
	codec        *token.Codec
	fingerprints *fingerprint.Engine
	store        *sessionStore
	heartbeats   *heartbeatMonitor
	audit        *auditDispatcher
	metrics      *Metrics
	directory    UserDirectory
	logger       *slog.Logger
	clock        func() time.Time
}

// CreateSession mints a session for an already-verified identity. Credential
// verification is the caller's responsibility; the engine binds the identity
// to a fresh token pair and the device fingerprint captured in md.
//
// Creation is fail-closed: a durable-store failure returns
// [ErrCreationFailed] and no session exists afterwards.
func (e *Engine) CreateSession(ctx context.Context, identity Identity, md fingerprint.Metadata) (*AuthResult, error) {
	if e == nil || e.store == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}
	if identity.UserID == "" {
		return nil, ErrUserInvalid
	}

	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, errors.Join(ErrCreationFailed, err)
	}
	sessionID := sid.String()

	access, err := e.codec.IssueAccess(token.Identity(identity), sessionID)
	if err != nil {
		return nil, errors.Join(ErrCreationFailed, err)
	}
	refresh, err := e.codec.IssueRefresh(token.Identity(identity), sessionID)
	if err != nil {
		return nil, errors.Join(ErrCreationFailed, err)
	}

	now := e.clock()
	origin := fingerprint.NormalizeOrigin(md.NetworkOrigin)
	sess := &session.Session{
		SessionID:    sessionID,
		UserID:       identity.UserID,
		AccessToken:  access,
		RefreshToken: refresh,
		Metadata: session.Metadata{
			UserAgent:       md.UserAgent,
			NetworkOrigin:   origin,
			FingerprintHash: e.fingerprints.Compute(md),
			DeviceClass:     fingerprint.ClassifyDevice(md.UserAgent),
			CreatedAt:       now.Unix(),
			LastActivityAt:  now.Unix(),
		},
		ExpiresAt: now.Add(e.config.Token.AccessTTL).Unix(),
		IsValid:   true,
	}

	if err := e.store.persist(ctx, sess, writeCritical); err != nil {
		e.logLifecycle(ctx, slog.LevelError, auditEventCreationFailed, sessionID, identity.UserID, origin, err)
		e.emitAudit(ctx, auditEventCreationFailed, false, identity.UserID, sessionID, severityHigh, err, nil)
		return nil, errors.Join(ErrCreationFailed, err)
	}

	e.heartbeats.Track(sessionID)
	e.metrics.Inc(MetricSessionCreated)
	e.logLifecycle(ctx, slog.LevelInfo, auditEventSessionCreated, sessionID, identity.UserID, origin, nil)
	e.emitAudit(ctx, auditEventSessionCreated, true, identity.UserID, sessionID, severityInfo, nil, func() map[string]string {
		return map[string]string{
			"device_class": sess.Metadata.DeviceClass,
		}
	})

	return &AuthResult{
		Identity:     identity,
		Session:      sess,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// InvalidateSession is the administrative revocation path: the session is
// flagged inactive, dropped from cache, and its heartbeat cancelled. The
// transition is monotonic; there is no way back to valid.
func (e *Engine) InvalidateSession(ctx context.Context, sessionID string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	return e.wrapAudited(ctx, auditEventSessionInvalidated, "", sessionID, func(ctx context.Context) error {
		e.heartbeats.Cancel(sessionID)
		err := e.store.invalidate(ctx, sessionID)
		if err == nil {
			e.metrics.Inc(MetricSessionInvalidated)
		}
		e.logLifecycle(ctx, slog.LevelInfo, auditEventSessionInvalidated, sessionID, "", originFromContext(ctx), err)
		return err
	})
}

// Logout invalidates the session referenced by an access token. The token
// only needs a valid signature; an expired session can still be logged out.
func (e *Engine) Logout(ctx context.Context, accessToken string) error {
	if e == nil || e.codec == nil {
		return ErrEngineNotReady
	}

	claims, err := e.codec.Verify(accessToken, token.ClassAccess)
	if err != nil && !errors.Is(err, token.ErrTokenExpired) {
		return ErrTokenInvalid
	}
	if claims == nil {
		// Expired tokens still parse far enough to carry the session ID.
		claims, err = e.codec.VerifyExpired(accessToken, token.ClassAccess)
		if err != nil {
			return ErrTokenInvalid
		}
	}

	return e.InvalidateSession(ctx, claims.SessionID)
}

// Close releases background resources: heartbeat timers, the sweep loop,
// and the audit dispatcher (after draining).
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.heartbeats != nil {
		e.heartbeats.Close()
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// Health pings the durable layer and reports its round-trip latency. A
// degraded store does not stop the engine; cached sessions keep serving
// best-effort paths, so callers decide what a failed ping means for them.
func (e *Engine) Health(ctx context.Context) (time.Duration, error) {
	if e == nil || e.store == nil {
		return 0, ErrEngineNotReady
	}
	return e.store.durable.Ping(ctx)
}

// ActiveSessions returns the IDs of sessions currently held in the
// in-process cache. Introspection only; absence from the list says nothing
// about validity, since sessions created by other processes live in the
// durable layer until recovered.
func (e *Engine) ActiveSessions() []string {
	if e == nil || e.store == nil {
		return nil
	}
	return e.store.cache.IDs()
}

// MetricsSnapshot returns a copy of all engine counters.
func (e *Engine) MetricsSnapshot() map[MetricID]uint64 {
	if e == nil {
		return map[MetricID]uint64{}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports audit events discarded due to a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Cookies exposes the cookie policy for the authentication boundary.
func (e *Engine) Cookies() CookieConfig {
	return e.config.Cookie
}

// Fingerprints exposes the engine's fingerprint policy so the boundary can
// capture request metadata with the same signal set the engine compares.
func (e *Engine) Fingerprints() *fingerprint.Engine {
	return e.fingerprints
}
