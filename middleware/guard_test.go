package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	sessiongate "github.com/croven/sessiongate"
)

type staticDirectory struct{}

func (staticDirectory) LookupUser(ctx context.Context, userID string) (*sessiongate.DirectoryUser, error) {
	if userID != "u-1" {
		return nil, nil
	}
	return &sessiongate.DirectoryUser{ID: "u-1", Email: "admin@example.com", Role: "admin", Active: true}, nil
}

func newGuardEngine(t *testing.T) (*sessiongate.Engine, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := sessiongate.DefaultConfig()
	cfg.Token.AccessSecret = []byte("access-secret-0123456789abcdef")
	cfg.Token.RefreshSecret = []byte("refresh-secret-0123456789abcdef")
	cfg.Heartbeat.Interval = time.Hour
	cfg.Heartbeat.SweepInterval = time.Hour

	engine, err := sessiongate.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithDirectory(staticDirectory{}).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}

	return engine, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

func adminRequest(target string) *http.Request {
	r := httptest.NewRequest("GET", target, nil)
	r.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")
	r.Header.Set("Accept-Language", "en-US")
	r.Header.Set("Accept-Encoding", "gzip")
	r.RemoteAddr = "203.0.113.9:51000"
	return r
}

func createGuardSession(t *testing.T, engine *sessiongate.Engine) *sessiongate.AuthResult {
	t.Helper()
	md := engine.Fingerprints().Capture(adminRequest("/admin/login"))
	res, err := engine.CreateSession(context.Background(),
		sessiongate.Identity{UserID: "u-1", Email: "admin@example.com", Role: "admin"}, md)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return res
}

func okHandler(t *testing.T, sawIdentity *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if ok && identity.UserID == "u-1" {
			*sawIdentity = true
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestGuardAllowsBearerToken(t *testing.T) {
	engine, done := newGuardEngine(t)
	defer done()

	res := createGuardSession(t, engine)

	var sawIdentity bool
	handler := Guard(engine)(okHandler(t, &sawIdentity))

	r := adminRequest("/admin/dashboard")
	r.Header.Set("Authorization", "Bearer "+res.AccessToken)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %q", w.Code, w.Body.String())
	}
	if !sawIdentity {
		t.Fatal("identity not injected into request context")
	}
	if got := w.Header().Get("X-Session-ID"); got != res.Session.SessionID {
		t.Fatalf("X-Session-ID = %q", got)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" ||
		w.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatal("defensive headers missing")
	}
}

func TestGuardAllowsCookieToken(t *testing.T) {
	engine, done := newGuardEngine(t)
	defer done()

	res := createGuardSession(t, engine)

	var sawIdentity bool
	handler := Guard(engine)(okHandler(t, &sawIdentity))

	r := adminRequest("/admin/dashboard")
	r.AddCookie(&http.Cookie{Name: engine.Cookies().AccessName, Value: res.AccessToken})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !sawIdentity {
		t.Fatal("identity not injected")
	}
}

func TestGuardAllowsQueryToken(t *testing.T) {
	engine, done := newGuardEngine(t)
	defer done()

	res := createGuardSession(t, engine)

	var sawIdentity bool
	handler := Guard(engine)(okHandler(t, &sawIdentity))

	r := adminRequest("/admin/export?access_token=" + res.AccessToken)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestGuardBearerBeatsCookie(t *testing.T) {
	engine, done := newGuardEngine(t)
	defer done()

	res := createGuardSession(t, engine)

	handler := Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// A garbage bearer header wins the priority order; the valid cookie
	// behind it is never consulted.
	r := adminRequest("/admin/dashboard")
	r.Header.Set("Authorization", "Bearer garbage")
	r.AddCookie(&http.Cookie{Name: engine.Cookies().AccessName, Value: res.AccessToken})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestGuardRejectsUniformly(t *testing.T) {
	engine, done := newGuardEngine(t)
	defer done()

	res := createGuardSession(t, engine)
	handler := Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	// Stolen token from a different device: internally an integrity failure.
	stolen := adminRequest("/admin/dashboard")
	stolen.Header.Set("User-Agent", "curl/8.4.0")
	stolen.Header.Set("Authorization", "Bearer "+res.AccessToken)

	// Missing token entirely.
	missing := adminRequest("/admin/dashboard")

	var bodies []string
	for _, r := range []*http.Request{stolen, missing} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
		bodies = append(bodies, w.Body.String())

		cleared := 0
		for _, c := range w.Result().Cookies() {
			if c.MaxAge < 0 {
				cleared++
			}
		}
		if cleared != 3 {
			t.Fatalf("expected 3 cleared cookies, got %d", cleared)
		}
	}

	// Different internal reasons, identical external response.
	if bodies[0] != bodies[1] {
		t.Fatalf("unauthorized bodies differ: %q vs %q", bodies[0], bodies[1])
	}
}

func TestGuardReissuesCookiesOnRefresh(t *testing.T) {
	// The engine clock is real here, so force the refresh window with a
	// wide refresh threshold instead of advancing time.
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := sessiongate.DefaultConfig()
	cfg.Token.AccessSecret = []byte("access-secret-0123456789abcdef")
	cfg.Token.RefreshSecret = []byte("refresh-secret-0123456789abcdef")
	cfg.Token.AccessTTL = time.Hour
	cfg.Session.RefreshThreshold = 2 * time.Hour // every validation is near-expiry
	cfg.Heartbeat.Interval = time.Hour
	cfg.Heartbeat.SweepInterval = time.Hour

	short, err := sessiongate.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithDirectory(staticDirectory{}).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	defer short.Close()

	res := createGuardSession(t, short)
	handler := Guard(short)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := adminRequest("/admin/dashboard")
	r.Header.Set("Authorization", "Bearer "+res.AccessToken)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 3 {
		t.Fatalf("expected 3 re-issued cookies, got %d", len(cookies))
	}
	byName := map[string]*http.Cookie{}
	for _, c := range cookies {
		byName[c.Name] = c
	}

	access := byName[short.Cookies().AccessName]
	if access == nil || access.Value == res.AccessToken || access.Value == "" {
		t.Fatalf("access cookie not rotated: %+v", access)
	}
	if !access.HttpOnly || access.SameSite != http.SameSiteStrictMode {
		t.Fatal("access cookie attributes wrong")
	}
	if sid := byName[short.Cookies().SessionIDName]; sid == nil || sid.Value != res.Session.SessionID {
		t.Fatal("session-id mirror missing or wrong")
	}
	if fp := byName[short.Cookies().FingerprintName]; fp == nil || fp.Value == "" {
		t.Fatal("fingerprint fragment missing")
	}
}

func TestFingerprintFragmentRotates(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	same := fingerprintFragment("hash", base.Add(10*time.Minute), time.Hour)
	if got := fingerprintFragment("hash", base.Add(20*time.Minute), time.Hour); got != same {
		t.Fatal("fragment must be stable inside one rotation bucket")
	}
	if got := fingerprintFragment("hash", base.Add(2*time.Hour), time.Hour); got == same {
		t.Fatal("fragment must rotate across buckets")
	}
	if got := fingerprintFragment("other", base.Add(10*time.Minute), time.Hour); got == same {
		t.Fatal("fragment must depend on the fingerprint hash")
	}
}
