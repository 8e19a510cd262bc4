package sessiongate

import (
	"context"
	"log/slog"
)

// Every lifecycle transition (create, refresh, invalidate, suspicious) logs
// through this one helper with a fixed attribute schema, so downstream log
// consumers never special-case event shape.
func (e *Engine) logLifecycle(ctx context.Context, level slog.Level, event, sessionID, userID, origin string, err error) {
	if e == nil || e.logger == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	attrs := []any{
		slog.String("event", event),
		slog.String("session_id", sessionID),
		slog.String("user_id", userID),
		slog.String("origin", origin),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	e.logger.Log(ctx, level, "session lifecycle", attrs...)
}
