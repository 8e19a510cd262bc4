package fingerprint

import (
	"net"
	"net/http"
	"strings"
)

// OriginUnknown is the sentinel returned when no usable client address can
// be determined from headers or the connection itself.
const OriginUnknown = "unknown"

// forwardHeaders is the priority order for resolving the real client origin.
// CDN-injected single-value headers come first; chain headers are walked for
// the first public hop.
var forwardHeaders = []string{
	"CF-Connecting-IP",
	"True-Client-IP",
	"X-Real-IP",
	"X-Forwarded-For",
	"X-Client-IP",
}

// ResolveRealOrigin walks forwarded-address headers in priority order and
// returns the first public client address found. Private, loopback, and
// link-local hops are skipped; when no header yields a usable address the raw
// connection address is used, and failing that [OriginUnknown].
func ResolveRealOrigin(headers http.Header, remoteAddr string) string {
	for _, name := range forwardHeaders {
		value := headers.Get(name)
		if value == "" {
			continue
		}
		for _, candidate := range strings.Split(value, ",") {
			if ip := parsePublicIP(candidate); ip != "" {
				return ip
			}
		}
	}

	// RFC 7239 Forwarded: for=client, last resort before the socket address.
	if fwd := headers.Get("Forwarded"); fwd != "" {
		if ip := parseForwardedHeader(fwd); ip != "" {
			return ip
		}
	}

	if host, _, err := net.SplitHostPort(remoteAddr); err == nil && host != "" {
		return strings.ToLower(host)
	}
	if ip := net.ParseIP(strings.TrimSpace(remoteAddr)); ip != nil {
		return strings.ToLower(ip.String())
	}

	return OriginUnknown
}

func parseForwardedHeader(value string) string {
	for _, element := range strings.Split(value, ",") {
		for _, pair := range strings.Split(element, ";") {
			k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok || !strings.EqualFold(k, "for") {
				continue
			}
			v = strings.Trim(v, `"`)
			v = strings.TrimPrefix(v, "[")
			if i := strings.Index(v, "]"); i >= 0 {
				v = v[:i]
			}
			if ip := parsePublicIP(v); ip != "" {
				return ip
			}
		}
	}
	return ""
}

func parsePublicIP(candidate string) string {
	candidate = strings.TrimSpace(candidate)
	if host, _, err := net.SplitHostPort(candidate); err == nil {
		candidate = host
	}
	ip := net.ParseIP(candidate)
	if ip == nil {
		return ""
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
		return ""
	}
	return strings.ToLower(ip.String())
}
