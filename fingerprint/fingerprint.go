package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// DefaultSignals is the ordered header tuple hashed into the device
// fingerprint. The set is a policy choice, not a guaranteed security
// boundary; deployments may narrow or extend it via [Engine] configuration.
var DefaultSignals = []string{
	"User-Agent",
	"Accept-Language",
	"Accept-Encoding",
	"Sec-Ch-Ua",
	"Sec-Ch-Ua-Platform",
	"Sec-Ch-Ua-Mobile",
	"DNT",
	"Sec-Fetch-Site",
}

// Metadata is the request-derived material a fingerprint is computed from.
// It is captured once at the boundary and carried through validation so the
// engine never touches *http.Request directly.
type Metadata struct {
	UserAgent     string
	NetworkOrigin string
	Signals       []string
}

// Engine computes device fingerprints over a fixed signal policy.
//
// The zero value is not usable; construct with [New].
type Engine struct {
	signals []string
}

// New returns an Engine hashing the given header names in order. An empty
// list selects [DefaultSignals].
func New(signals []string) *Engine {
	if len(signals) == 0 {
		signals = DefaultSignals
	}
	return &Engine{signals: append([]string(nil), signals...)}
}

// Capture extracts fingerprint material from an inbound request: the
// ordered signal values for hashing plus the resolved network origin, which
// travels alongside the hash for drift comparison.
func (e *Engine) Capture(r *http.Request) Metadata {
	signals := make([]string, 0, len(e.signals))
	for _, name := range e.signals {
		signals = append(signals, r.Header.Get(name))
	}
	return Metadata{
		UserAgent:     r.Header.Get("User-Agent"),
		NetworkOrigin: ResolveRealOrigin(r.Header, r.RemoteAddr),
		Signals:       signals,
	}
}

// Compute hashes the ordered signal tuple into the stable device identity.
// Equal metadata always yields an equal hash; any single signal change yields
// a different one.
//
// The network origin is deliberately not part of the hashed tuple. Mobile
// clients legitimately change address mid-session, so origin drift is
// compared (and logged) separately instead of hard-failing the fingerprint.
func (e *Engine) Compute(md Metadata) string {
	var b strings.Builder
	for _, s := range md.Signals {
		b.WriteString(s)
		b.WriteByte('|')
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// ClassifyDevice buckets a user-agent into a coarse device class for session
// metadata. The class is bookkeeping only and never participates in the
// fingerprint hash.
func ClassifyDevice(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case ua == "":
		return "unknown"
	case strings.Contains(ua, "bot"), strings.Contains(ua, "curl"),
		strings.Contains(ua, "python"), strings.Contains(ua, "wget"):
		return "automated"
	case strings.Contains(ua, "mobile"), strings.Contains(ua, "android"),
		strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"):
		return "mobile"
	default:
		return "desktop"
	}
}

// NormalizeOrigin lowercases and trims an origin string, mapping the empty
// value to the "unknown" sentinel.
func NormalizeOrigin(origin string) string {
	origin = strings.TrimSpace(strings.ToLower(origin))
	if origin == "" {
		return OriginUnknown
	}
	return origin
}
