package sessiongate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/croven/sessiongate/session"
)

// invalidGrace keeps an expired record readable after its stored expiry so
// validation can distinguish "expired" from "never existed".
const invalidGrace = 24 * time.Hour

// sessionStore orchestrates the triple-layer store: the in-process cache
// (layer 1), the durable Redis record store (layer 2), and — through the
// engine's audit dispatcher — the append-only audit log (layer 3).
//
// No lock is ever held across a durable call, and no distributed lock is
// taken: recovery is read-mostly and every write is an idempotent upsert.
type sessionStore struct {
	cache     *session.Cache
	durable   *session.Store
	directory UserDirectory
	metrics   *Metrics
	logger    *slog.Logger
	clock     func() time.Time
}

// sweep evicts expired or invalidated sessions from the cache and purges
// expired records from the durable store. Returns how many entries each
// layer dropped; a durable failure is reported but never aborts the cache
// eviction that already happened.
func (s *sessionStore) sweep(ctx context.Context, now time.Time) (cached, durable int, err error) {
	cached = s.cache.EvictExpired(now)
	durable, err = s.durable.PurgeExpired(ctx, now)
	return cached, durable, err
}

// persist upserts the session into the durable layer and refreshes the
// cached copy. Criticality is the caller's choice: critical failures
// propagate wrapped in ErrPersistenceDegraded, best-effort failures are
// logged and swallowed.
func (s *sessionStore) persist(ctx context.Context, sess *session.Session, criticality writeCriticality) error {
	ttl := time.Unix(sess.ExpiresAt, 0).Add(invalidGrace).Sub(s.clock())
	err := s.durable.Save(ctx, sess, ttl)
	switch {
	case err == nil:
		s.cache.Put(sess)
		return nil
	case errors.Is(err, session.ErrInvalidated):
		// A concurrent invalidation won the race. The tombstone stands and
		// the cache must not keep a valid copy alive.
		s.cache.Remove(sess.SessionID)
		return ErrSessionIntegrityViolation
	case criticality == writeBestEffort:
		s.metrics.Inc(MetricPersistenceDegraded)
		s.logger.Warn("session persist degraded",
			slog.String("session_id", sess.SessionID),
			slog.String("error", err.Error()))
		s.cache.Put(sess)
		return nil
	default:
		return errors.Join(ErrPersistenceDegraded, err)
	}
}

// recover resolves a session by ID: cache first, then the durable layer.
// On a durable hit the owning identity is re-checked against the directory
// before rehydration; a failed identity check purges the stale record and
// reports not-found. Returns (nil, nil) when no session exists.
func (s *sessionStore) recover(ctx context.Context, sessionID string) (*session.Session, error) {
	if sess := s.cache.Get(sessionID); sess != nil {
		return sess, nil
	}

	sess, err := s.durable.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.Join(ErrPersistenceDegraded, err)
	}

	user, err := s.directory.LookupUser(ctx, sess.UserID)
	if err != nil {
		return nil, errors.Join(ErrPersistenceDegraded, err)
	}
	if user == nil || !user.Active || user.Banned {
		// Stale record for a dead account: purge rather than rehydrate.
		if delErr := s.durable.Delete(ctx, sessionID); delErr != nil {
			s.logger.Warn("stale session purge failed",
				slog.String("session_id", sessionID),
				slog.String("error", delErr.Error()))
		}
		return nil, nil
	}

	s.cache.Put(sess)
	s.metrics.Inc(MetricSessionRecovered)
	return sess, nil
}

// invalidate soft-deletes the session: the durable record is flagged
// inactive (monotonic, never reversed) and the cached copy is dropped.
// Heartbeat cancellation is the engine's responsibility.
func (s *sessionStore) invalidate(ctx context.Context, sessionID string) error {
	err := s.durable.MarkInvalid(ctx, sessionID)

	// The cache entry goes regardless; a degraded durable layer must not
	// leave a locally-valid copy serving requests.
	s.cache.Remove(sessionID)

	if err != nil {
		return errors.Join(ErrPersistenceDegraded, err)
	}
	return nil
}

// updateActivity records the last-activity timestamp. Always best-effort:
// a degraded durable layer is logged and ignored so the session stays
// usable from cache.
func (s *sessionStore) updateActivity(ctx context.Context, sessionID string, at time.Time) {
	// Cached sessions are replaced, never mutated in place: concurrent
	// validations may hold the old pointer.
	if cached := s.cache.Get(sessionID); cached != nil {
		dup := cached.Clone()
		dup.Metadata.LastActivityAt = at.Unix()
		s.cache.Put(dup)
	}
	if err := s.durable.Touch(ctx, sessionID, at); err != nil {
		s.metrics.Inc(MetricPersistenceDegraded)
		s.logger.Warn("activity update degraded",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
	}
}

// peek returns the freshest readily-available copy without identity
// re-checks; used by heartbeat ticks where a directory round-trip per
// session would be wasteful. Returns (nil, nil) when the record is
// genuinely absent; a durable outage is reported as an error so callers
// do not mistake it for deletion.
func (s *sessionStore) peek(ctx context.Context, sessionID string) (*session.Session, error) {
	if sess := s.cache.Get(sessionID); sess != nil {
		return sess, nil
	}
	sess, err := s.durable.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.Join(ErrPersistenceDegraded, err)
	}
	return sess, nil
}
