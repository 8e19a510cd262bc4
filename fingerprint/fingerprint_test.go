package fingerprint

import (
	"net/http/httptest"
	"testing"
)

func TestCaptureAndComputeStable(t *testing.T) {
	engine := New(nil)

	r := httptest.NewRequest("GET", "/admin", nil)
	r.Header.Set("User-Agent", "Mozilla/5.0")
	r.Header.Set("Accept-Language", "en-US")
	r.Header.Set("Accept-Encoding", "gzip")
	r.RemoteAddr = "203.0.113.9:51000"

	md := engine.Capture(r)
	if md.UserAgent != "Mozilla/5.0" {
		t.Fatalf("user agent: %q", md.UserAgent)
	}
	if md.NetworkOrigin != "203.0.113.9" {
		t.Fatalf("origin: %q", md.NetworkOrigin)
	}
	if len(md.Signals) != len(DefaultSignals) {
		t.Fatalf("expected %d signals, got %d", len(DefaultSignals), len(md.Signals))
	}

	first := engine.Compute(md)
	second := engine.Compute(engine.Capture(r))
	if first != second {
		t.Fatal("same request must produce same fingerprint")
	}
	if len(first) != 64 {
		t.Fatalf("expected sha256 hex, got %d chars", len(first))
	}
}

func TestComputeChangesWithAnySignal(t *testing.T) {
	engine := New(nil)

	r := httptest.NewRequest("GET", "/admin", nil)
	r.Header.Set("User-Agent", "Mozilla/5.0")
	r.Header.Set("Accept-Language", "en-US")
	base := engine.Compute(engine.Capture(r))

	r.Header.Set("Accept-Language", "de-DE")
	changed := engine.Compute(engine.Capture(r))
	if base == changed {
		t.Fatal("changed signal must change fingerprint")
	}
}

func TestComputeIgnoresNetworkOrigin(t *testing.T) {
	engine := New(nil)

	r := httptest.NewRequest("GET", "/admin", nil)
	r.Header.Set("User-Agent", "Mozilla/5.0")
	r.RemoteAddr = "203.0.113.9:51000"
	home := engine.Capture(r)

	r.RemoteAddr = "198.51.100.40:52000"
	cafe := engine.Capture(r)

	if home.NetworkOrigin == cafe.NetworkOrigin {
		t.Fatal("test setup: origins should differ")
	}
	if engine.Compute(home) != engine.Compute(cafe) {
		t.Fatal("origin change alone must not change the fingerprint")
	}
}

func TestCustomSignalPolicy(t *testing.T) {
	engine := New([]string{"User-Agent"})

	r := httptest.NewRequest("GET", "/admin", nil)
	r.Header.Set("User-Agent", "Mozilla/5.0")
	r.Header.Set("Accept-Language", "en-US")
	base := engine.Compute(engine.Capture(r))

	// Accept-Language is outside the narrowed policy.
	r.Header.Set("Accept-Language", "de-DE")
	if engine.Compute(engine.Capture(r)) != base {
		t.Fatal("non-policy header must not affect fingerprint")
	}
}

func TestClassifyDevice(t *testing.T) {
	cases := []struct {
		ua   string
		want string
	}{
		{"", "unknown"},
		{"curl/8.4.0", "automated"},
		{"Googlebot/2.1", "automated"},
		{"python-requests/2.31", "automated"},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0)", "mobile"},
		{"Mozilla/5.0 (Linux; Android 14) Mobile", "mobile"},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64)", "desktop"},
	}
	for _, tc := range cases {
		if got := ClassifyDevice(tc.ua); got != tc.want {
			t.Errorf("ClassifyDevice(%q) = %q, want %q", tc.ua, got, tc.want)
		}
	}
}

func TestNormalizeOrigin(t *testing.T) {
	if got := NormalizeOrigin("  203.0.113.9 "); got != "203.0.113.9" {
		t.Fatalf("trim: %q", got)
	}
	if got := NormalizeOrigin(""); got != OriginUnknown {
		t.Fatalf("empty: %q", got)
	}
}
