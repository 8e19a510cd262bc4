package sessiongate

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"github.com/croven/sessiongate/fingerprint"
	"github.com/croven/sessiongate/session"
	"github.com/croven/sessiongate/token"
)

// Validate runs the full validation pipeline for an access token:
//
//	TOKEN_DECODE -> SESSION_LOOKUP -> INTEGRITY_CHECK -> USER_STATUS_CHECK
//	-> REFRESH_IF_NEAR_EXPIRY -> ACTIVITY_UPDATE
//
// Each stage can short-circuit to a tagged Invalid result; the reason is for
// internal logging only and must never be echoed across the boundary.
// Validation never returns an error: outages on the fail-closed lookup path
// surface as Invalid(persistence-degraded).
func (e *Engine) Validate(ctx context.Context, accessToken string, md fingerprint.Metadata) ValidationResult {
	if e == nil || e.store == nil || e.codec == nil {
		return e.invalid(ctx, ReasonStoreDegraded, "", "", ErrEngineNotReady)
	}

	// Stage 1: TOKEN_DECODE.
	claims, err := e.codec.Verify(accessToken, token.ClassAccess)
	if err != nil {
		reason := ReasonTokenInvalid
		if errors.Is(err, token.ErrTokenExpired) {
			reason = ReasonTokenExpired
		}
		return e.invalid(ctx, reason, "", "", err)
	}

	// Stage 2: SESSION_LOOKUP — cache, then durable recovery.
	sess, err := e.store.recover(ctx, claims.SessionID)
	if err != nil {
		return e.invalid(ctx, ReasonStoreDegraded, claims.SessionID, claims.UserID, err)
	}
	if sess == nil || sess.UserID != claims.UserID {
		return e.invalid(ctx, ReasonSessionNotFound, claims.SessionID, claims.UserID, nil)
	}

	// Stage 3: INTEGRITY_CHECK.
	now := e.clock()
	if !sess.IsValid {
		return e.invalid(ctx, ReasonIntegrity, sess.SessionID, sess.UserID, nil)
	}
	if sess.Expired(now) {
		return e.invalid(ctx, ReasonSessionExpired, sess.SessionID, sess.UserID, nil)
	}
	if result, ok := e.checkFingerprint(ctx, sess, md); !ok {
		return result
	}

	// Stage 4: USER_STATUS_CHECK — re-queried, never assumed.
	user, err := e.directory.LookupUser(ctx, sess.UserID)
	if err != nil {
		return e.invalid(ctx, ReasonStoreDegraded, sess.SessionID, sess.UserID, err)
	}
	if user == nil || !user.Active || user.Banned {
		e.heartbeats.Cancel(sess.SessionID)
		if invErr := e.store.invalidate(ctx, sess.SessionID); invErr != nil {
			e.logLifecycle(ctx, slog.LevelWarn, auditEventSessionInvalidated, sess.SessionID, sess.UserID, originFromContext(ctx), invErr)
		}
		return e.invalid(ctx, ReasonUserInvalid, sess.SessionID, sess.UserID, nil)
	}

	identity := Identity{UserID: user.ID, Email: user.Email, Role: user.Role}
	result := ValidationResult{
		Valid:    true,
		Identity: identity,
		Session:  sess,
	}

	// Stage 5: REFRESH_IF_NEAR_EXPIRY.
	if remaining := time.Unix(sess.ExpiresAt, 0).Sub(now); remaining < e.config.Session.RefreshThreshold {
		if refreshed, access, refresh := e.refreshSession(ctx, identity, sess); refreshed != nil {
			result.Session = refreshed
			result.Refreshed = true
			result.AccessToken = access
			result.RefreshToken = refresh
		}
	}

	// Stage 6: ACTIVITY_UPDATE, best-effort.
	e.store.updateActivity(ctx, sess.SessionID, now)

	e.metrics.Inc(MetricValidationValid)
	return result
}

// checkFingerprint enforces exact fingerprint equality and soft-compares the
// network origin. A fingerprint mismatch is treated as theft: the session is
// invalidated immediately and a suspicious-activity record is written.
// Origin drift alone is logged — mobile clients legitimately change address.
func (e *Engine) checkFingerprint(ctx context.Context, sess *session.Session, md fingerprint.Metadata) (ValidationResult, bool) {
	current := e.fingerprints.Compute(md)
	stored := sess.Metadata.FingerprintHash

	if subtle.ConstantTimeCompare([]byte(current), []byte(stored)) != 1 {
		e.logSuspiciousActivity(ctx, suspicionFingerprintMismatch, sess.UserID, sess.SessionID, map[string]string{
			"device_class": sess.Metadata.DeviceClass,
		})
		e.heartbeats.Cancel(sess.SessionID)
		if err := e.store.invalidate(ctx, sess.SessionID); err != nil {
			e.logLifecycle(ctx, slog.LevelWarn, auditEventSessionInvalidated, sess.SessionID, sess.UserID, originFromContext(ctx), err)
		} else {
			e.metrics.Inc(MetricSessionInvalidated)
		}
		return e.invalid(ctx, ReasonIntegrity, sess.SessionID, sess.UserID, ErrSessionIntegrityViolation), false
	}

	origin := fingerprint.NormalizeOrigin(md.NetworkOrigin)
	if origin != sess.Metadata.NetworkOrigin &&
		origin != fingerprint.OriginUnknown &&
		sess.Metadata.NetworkOrigin != fingerprint.OriginUnknown {
		e.logLifecycle(ctx, slog.LevelWarn, auditEventOriginDrift, sess.SessionID, sess.UserID, origin, nil)
		e.emitAudit(ctx, auditEventOriginDrift, true, sess.UserID, sess.SessionID, severityInfo, nil, func() map[string]string {
			return map[string]string{
				"stored_origin":  sess.Metadata.NetworkOrigin,
				"current_origin": origin,
			}
		})
	}

	return ValidationResult{}, true
}

// refreshSession mints a replacement token pair and persists the extended
// session. The outgoing access token stays valid until its own expiry —
// revoking it here would race clients that have not yet received the new
// pair. The persist is best-effort: the minted tokens are self-contained
// credentials, so a degraded durable write only loses the recorded extension,
// never the refresh itself.
func (e *Engine) refreshSession(ctx context.Context, identity Identity, sess *session.Session) (*session.Session, string, string) {
	access, err := e.codec.IssueAccess(token.Identity(identity), sess.SessionID)
	if err != nil {
		e.logLifecycle(ctx, slog.LevelWarn, auditEventSessionRefreshed, sess.SessionID, sess.UserID, originFromContext(ctx), err)
		return nil, "", ""
	}
	refresh, err := e.codec.IssueRefresh(token.Identity(identity), sess.SessionID)
	if err != nil {
		e.logLifecycle(ctx, slog.LevelWarn, auditEventSessionRefreshed, sess.SessionID, sess.UserID, originFromContext(ctx), err)
		return nil, "", ""
	}

	now := e.clock()
	refreshed := sess.Clone()
	refreshed.AccessToken = access
	refreshed.RefreshToken = refresh
	// Expiry only ever moves forward; concurrent refreshes both extend.
	if next := now.Add(e.config.Token.AccessTTL).Unix(); next > refreshed.ExpiresAt {
		refreshed.ExpiresAt = next
	}
	refreshed.Metadata.LastActivityAt = now.Unix()

	if err := e.store.persist(ctx, refreshed, writeBestEffort); err != nil {
		return nil, "", ""
	}

	e.metrics.Inc(MetricSessionRefreshed)
	e.logLifecycle(ctx, slog.LevelInfo, auditEventSessionRefreshed, sess.SessionID, sess.UserID, originFromContext(ctx), nil)
	e.emitAudit(ctx, auditEventSessionRefreshed, true, sess.UserID, sess.SessionID, severityInfo, nil, nil)

	return refreshed, access, refresh
}

func (e *Engine) invalid(ctx context.Context, reason InvalidReason, sessionID, userID string, err error) ValidationResult {
	e.metrics.Inc(MetricValidationInvalid)
	e.logLifecycle(ctx, slog.LevelInfo, auditEventValidationFailed, sessionID, userID, originFromContext(ctx), err)
	e.emitAudit(ctx, auditEventValidationFailed, false, userID, sessionID, severityInfo, err, func() map[string]string {
		return map[string]string{"reason": string(reason)}
	})
	return ValidationResult{Valid: false, Reason: reason}
}
