package sessiongate

import (
	"context"
	"errors"
	"log/slog"

	"github.com/croven/sessiongate/fingerprint"
	"github.com/croven/sessiongate/token"
)

// Refresh is the explicit refresh operation for clients that exchange their
// refresh token proactively instead of relying on the validation pipeline's
// near-expiry refresh. The same integrity gates apply: a valid unexpired
// session, a matching fingerprint, and a live owning account.
//
// Unlike the pipeline-internal refresh, the explicit path is fail-closed: a
// durable-store failure returns an error rather than handing out an
// extension that was never recorded.
func (e *Engine) Refresh(ctx context.Context, refreshToken string, md fingerprint.Metadata) (*AuthResult, error) {
	if e == nil || e.store == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.codec.Verify(refreshToken, token.ClassRefresh)
	if err != nil {
		if errors.Is(err, token.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	sess, err := e.store.recover(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.UserID != claims.UserID {
		return nil, ErrSessionNotFound
	}
	if !sess.IsValid {
		return nil, ErrSessionIntegrityViolation
	}
	if sess.Expired(e.clock()) {
		return nil, ErrTokenExpired
	}

	current := e.fingerprints.Compute(md)
	if current != sess.Metadata.FingerprintHash {
		e.logSuspiciousActivity(ctx, suspicionFingerprintMismatch, sess.UserID, sess.SessionID, nil)
		e.heartbeats.Cancel(sess.SessionID)
		if invErr := e.store.invalidate(ctx, sess.SessionID); invErr != nil {
			e.logLifecycle(ctx, slog.LevelWarn, auditEventSessionInvalidated, sess.SessionID, sess.UserID, originFromContext(ctx), invErr)
		} else {
			e.metrics.Inc(MetricSessionInvalidated)
		}
		return nil, ErrSessionIntegrityViolation
	}

	user, err := e.directory.LookupUser(ctx, sess.UserID)
	if err != nil {
		return nil, errors.Join(ErrPersistenceDegraded, err)
	}
	if user == nil || !user.Active || user.Banned {
		e.heartbeats.Cancel(sess.SessionID)
		_ = e.store.invalidate(ctx, sess.SessionID)
		return nil, ErrUserInvalid
	}

	identity := Identity{UserID: user.ID, Email: user.Email, Role: user.Role}
	access, err := e.codec.IssueAccess(token.Identity(identity), sess.SessionID)
	if err != nil {
		return nil, err
	}
	refresh, err := e.codec.IssueRefresh(token.Identity(identity), sess.SessionID)
	if err != nil {
		return nil, err
	}

	now := e.clock()
	refreshed := sess.Clone()
	refreshed.AccessToken = access
	refreshed.RefreshToken = refresh
	if next := now.Add(e.config.Token.AccessTTL).Unix(); next > refreshed.ExpiresAt {
		refreshed.ExpiresAt = next
	}
	refreshed.Metadata.LastActivityAt = now.Unix()

	if err := e.store.persist(ctx, refreshed, writeCritical); err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricSessionRefreshed)
	e.logLifecycle(ctx, slog.LevelInfo, auditEventSessionRefreshed, sess.SessionID, sess.UserID, originFromContext(ctx), nil)
	e.emitAudit(ctx, auditEventSessionRefreshed, true, sess.UserID, sess.SessionID, severityInfo, nil, nil)

	return &AuthResult{
		Identity:     identity,
		Session:      refreshed,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}
