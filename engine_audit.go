package sessiongate

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

const (
	auditEventSessionCreated     = "session_created"
	auditEventSessionRefreshed   = "session_refreshed"
	auditEventSessionInvalidated = "session_invalidated"
	auditEventValidationFailed   = "validation_failed"
	auditEventCreationFailed     = "session_creation_failed"
	auditEventSuspiciousActivity = "suspicious_activity"
	auditEventHeartbeatPruned    = "heartbeat_pruned"
	auditEventOriginDrift        = "origin_drift"
)

const (
	severityInfo = "info"
	severityHigh = "high"
)

const (
	suspicionFingerprintMismatch = "fingerprint_mismatch"
)

// emitAudit funnels every lifecycle transition into the append-only log with
// one event shape. metadataFn is lazy so callers pay nothing when audit is
// disabled.
func (e *Engine) emitAudit(
	ctx context.Context,
	action string,
	success bool,
	actor, sessionID, severity string,
	opErr error,
	metadataFn func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		EventID:       uuid.New(),
		Timestamp:     e.clock().UTC(),
		Actor:         actor,
		Action:        action,
		Method:        "engine",
		NetworkOrigin: originFromContext(ctx),
		SessionID:     sessionID,
		Success:       success,
		Severity:      severity,
	}
	if event.Actor == "" {
		event.Actor = "anonymous"
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}
	if metadataFn != nil {
		event.Metadata = metadataFn()
	}

	e.audit.Emit(ctx, event)
}

// logSuspiciousActivity writes a high-severity audit event for kind, at most
// once per user per dedup window. The marker only throttles audit flooding;
// it never gates the authorization decision that triggered it.
func (e *Engine) logSuspiciousActivity(ctx context.Context, kind, userID, sessionID string, metadata map[string]string) {
	e.metrics.Inc(MetricSuspiciousActivity)
	e.logLifecycle(ctx, slog.LevelWarn, auditEventSuspiciousActivity, sessionID, userID, originFromContext(ctx), nil)

	emit, err := e.store.durable.ShouldFlagSuspicious(ctx, userID, kind, e.config.Session.SuspiciousWindow)
	if err != nil {
		// Marker store down: emit anyway. Duplicate audit beats no audit.
		emit = true
	}
	if !emit {
		return
	}

	e.emitAudit(ctx, auditEventSuspiciousActivity, false, userID, sessionID, severityHigh, nil, func() map[string]string {
		meta := map[string]string{"kind": kind}
		for k, v := range metadata {
			meta[k] = v
		}
		return meta
	})
}

// wrapAudited runs a privileged operation and emits one audit event with its
// outcome. Audit coverage stays visible at each call site instead of hiding
// behind implicit interception.
func (e *Engine) wrapAudited(ctx context.Context, action, actor, sessionID string, fn func(context.Context) error) error {
	start := e.clock()
	err := fn(ctx)
	e.emitAudit(ctx, action, err == nil, actor, sessionID, severityInfo, err, func() map[string]string {
		return map[string]string{
			"duration": e.clock().Sub(start).String(),
		}
	})
	return err
}
