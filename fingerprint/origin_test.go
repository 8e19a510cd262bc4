package fingerprint

import (
	"net/http"
	"testing"
)

func TestResolveRealOriginHeaderPriority(t *testing.T) {
	h := http.Header{}
	h.Set("CF-Connecting-IP", "203.0.113.9")
	h.Set("X-Forwarded-For", "198.51.100.40")

	if got := ResolveRealOrigin(h, "10.0.0.1:80"); got != "203.0.113.9" {
		t.Fatalf("CDN header must win: %q", got)
	}
}

func TestResolveRealOriginSkipsPrivateHops(t *testing.T) {
	h := http.Header{}
	h.Set("X-Forwarded-For", "10.0.0.5, 192.168.1.4, 203.0.113.9, 172.16.0.2")

	if got := ResolveRealOrigin(h, "10.0.0.1:80"); got != "203.0.113.9" {
		t.Fatalf("expected first public hop, got %q", got)
	}
}

func TestResolveRealOriginForwardedHeader(t *testing.T) {
	h := http.Header{}
	h.Set("Forwarded", `for="203.0.113.9:4711";proto=https, for=10.0.0.2`)

	if got := ResolveRealOrigin(h, "10.0.0.1:80"); got != "203.0.113.9" {
		t.Fatalf("Forwarded parse: %q", got)
	}
}

func TestResolveRealOriginForwardedIPv6(t *testing.T) {
	h := http.Header{}
	h.Set("Forwarded", `for="[2001:db8::1]:4711"`)

	if got := ResolveRealOrigin(h, "10.0.0.1:80"); got != "2001:db8::1" {
		t.Fatalf("Forwarded ipv6 parse: %q", got)
	}
}

func TestResolveRealOriginFallsBackToRemoteAddr(t *testing.T) {
	if got := ResolveRealOrigin(http.Header{}, "203.0.113.9:51000"); got != "203.0.113.9" {
		t.Fatalf("remote addr fallback: %q", got)
	}
	// Bare address without a port still resolves.
	if got := ResolveRealOrigin(http.Header{}, "203.0.113.9"); got != "203.0.113.9" {
		t.Fatalf("bare remote addr: %q", got)
	}
}

func TestResolveRealOriginUnknown(t *testing.T) {
	if got := ResolveRealOrigin(http.Header{}, ""); got != OriginUnknown {
		t.Fatalf("expected unknown, got %q", got)
	}
	h := http.Header{}
	h.Set("X-Forwarded-For", "not-an-ip, 10.0.0.5")
	if got := ResolveRealOrigin(h, ""); got != OriginUnknown {
		t.Fatalf("garbage headers and no socket: %q", got)
	}
}
