package sessiongate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/croven/sessiongate/session"
)

func orchestratorSession(id string, expiresAt time.Time) *session.Session {
	now := time.Now()
	return &session.Session{
		SessionID:    id,
		UserID:       "u-1",
		AccessToken:  "access",
		RefreshToken: "refresh",
		Metadata: session.Metadata{
			FingerprintHash: "fp",
			NetworkOrigin:   "203.0.113.9",
			CreatedAt:       now.Unix(),
			LastActivityAt:  now.Unix(),
		},
		ExpiresAt: expiresAt.Unix(),
		IsValid:   true,
	}
}

func TestPersistCriticalFailsClosed(t *testing.T) {
	store, mr, done := newHeartbeatStore(t)
	defer done()
	mr.Close()

	sess := orchestratorSession("s1", time.Now().Add(time.Hour))
	err := store.persist(context.Background(), sess, writeCritical)
	if !errors.Is(err, ErrPersistenceDegraded) {
		t.Fatalf("expected ErrPersistenceDegraded, got %v", err)
	}
	if store.cache.Get("s1") != nil {
		t.Fatal("failed critical write must not leave a cached copy")
	}
}

func TestPersistBestEffortKeepsCacheCopy(t *testing.T) {
	store, mr, done := newHeartbeatStore(t)
	defer done()
	mr.Close()

	sess := orchestratorSession("s1", time.Now().Add(time.Hour))
	if err := store.persist(context.Background(), sess, writeBestEffort); err != nil {
		t.Fatalf("best-effort persist must swallow the outage: %v", err)
	}
	if store.cache.Get("s1") == nil {
		t.Fatal("best-effort write must keep the session usable from cache")
	}
	if store.metrics.Value(MetricPersistenceDegraded) == 0 {
		t.Fatal("degradation not counted")
	}
}

func TestPersistRefusedAfterInvalidation(t *testing.T) {
	store, _, done := newHeartbeatStore(t)
	defer done()
	ctx := context.Background()

	sess := orchestratorSession("s1", time.Now().Add(time.Hour))
	if err := store.persist(ctx, sess, writeCritical); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if err := store.invalidate(ctx, "s1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	// A refresh whose write lands after the invalidation must lose: no
	// resurrection of the durable record, no valid copy left in cache.
	extended := sess.Clone()
	extended.ExpiresAt = time.Now().Add(2 * time.Hour).Unix()
	err := store.persist(ctx, extended, writeCritical)
	if !errors.Is(err, ErrSessionIntegrityViolation) {
		t.Fatalf("expected ErrSessionIntegrityViolation, got %v", err)
	}
	if store.cache.Get("s1") != nil {
		t.Fatal("refused persist left a cached copy")
	}
	got, err := store.durable.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.IsValid {
		t.Fatal("invalidation reversed by a late write")
	}

	// Best-effort writers lose the same race the same way.
	err = store.persist(ctx, extended, writeBestEffort)
	if !errors.Is(err, ErrSessionIntegrityViolation) {
		t.Fatalf("best-effort: expected ErrSessionIntegrityViolation, got %v", err)
	}
	if store.cache.Get("s1") != nil {
		t.Fatal("best-effort refused persist left a cached copy")
	}
}

func TestPeekDistinguishesAbsenceFromOutage(t *testing.T) {
	store, mr, done := newHeartbeatStore(t)
	defer done()
	ctx := context.Background()

	got, err := store.peek(ctx, "absent")
	if err != nil || got != nil {
		t.Fatalf("missing record: got (%+v, %v), want (nil, nil)", got, err)
	}

	mr.Close()
	if _, err := store.peek(ctx, "absent"); !errors.Is(err, ErrPersistenceDegraded) {
		t.Fatalf("outage: expected ErrPersistenceDegraded, got %v", err)
	}
}

func TestRecoverPrefersCache(t *testing.T) {
	store, mr, done := newHeartbeatStore(t)
	defer done()

	sess := orchestratorSession("s1", time.Now().Add(time.Hour))
	store.cache.Put(sess)
	// The durable layer is down, but the cached copy still serves.
	mr.Close()

	got, err := store.recover(context.Background(), "s1")
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got == nil || got.SessionID != "s1" {
		t.Fatalf("cache hit lost: %+v", got)
	}
}

func TestRecoverRehydratesAndReChecksIdentity(t *testing.T) {
	store, _, done := newHeartbeatStore(t)
	defer done()
	ctx := context.Background()
	dir := store.directory.(*fakeDirectory)
	dir.add(DirectoryUser{ID: "u-1", Role: "admin", Active: true})

	sess := orchestratorSession("s1", time.Now().Add(time.Hour))
	if err := store.persist(ctx, sess, writeCritical); err != nil {
		t.Fatalf("persist: %v", err)
	}
	store.cache.Remove("s1")

	got, err := store.recover(ctx, "s1")
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got == nil {
		t.Fatal("durable record not recovered")
	}
	if store.cache.Get("s1") == nil {
		t.Fatal("recovered session not re-cached")
	}
	if store.metrics.Value(MetricSessionRecovered) != 1 {
		t.Fatal("recovery not counted")
	}
}

func TestRecoverPurgesDeadAccountRecord(t *testing.T) {
	store, _, done := newHeartbeatStore(t)
	defer done()
	ctx := context.Background()
	dir := store.directory.(*fakeDirectory)
	dir.add(DirectoryUser{ID: "u-1", Role: "admin", Active: true})

	sess := orchestratorSession("s1", time.Now().Add(time.Hour))
	if err := store.persist(ctx, sess, writeCritical); err != nil {
		t.Fatalf("persist: %v", err)
	}
	store.cache.Remove("s1")
	dir.setBanned("u-1", true)

	got, err := store.recover(ctx, "s1")
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got != nil {
		t.Fatal("dead-account session must not rehydrate")
	}
	// The stale record itself is gone.
	if _, err := store.durable.Get(ctx, "s1"); err == nil {
		t.Fatal("stale record survived the purge")
	}
}

func TestRecoverMissingIsNotAnError(t *testing.T) {
	store, _, done := newHeartbeatStore(t)
	defer done()

	got, err := store.recover(context.Background(), "absent")
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing session, got %+v", got)
	}
}

func TestInvalidateDropsCacheEvenWhenDurableDown(t *testing.T) {
	store, mr, done := newHeartbeatStore(t)
	defer done()

	sess := orchestratorSession("s1", time.Now().Add(time.Hour))
	store.cache.Put(sess)
	mr.Close()

	err := store.invalidate(context.Background(), "s1")
	if !errors.Is(err, ErrPersistenceDegraded) {
		t.Fatalf("expected ErrPersistenceDegraded, got %v", err)
	}
	if store.cache.Get("s1") != nil {
		t.Fatal("cache copy must go even when the durable layer is down")
	}
}

func TestUpdateActivityReplacesCachedCopy(t *testing.T) {
	store, _, done := newHeartbeatStore(t)
	defer done()
	ctx := context.Background()

	sess := orchestratorSession("s1", time.Now().Add(time.Hour))
	if err := store.persist(ctx, sess, writeCritical); err != nil {
		t.Fatalf("persist: %v", err)
	}

	held := store.cache.Get("s1")
	at := time.Now().Add(10 * time.Minute)
	store.updateActivity(ctx, "s1", at)

	if held.Metadata.LastActivityAt == at.Unix() {
		t.Fatal("held pointer mutated in place")
	}
	if got := store.cache.Get("s1"); got.Metadata.LastActivityAt != at.Unix() {
		t.Fatal("cached copy not replaced")
	}
}
