package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	sessiongate "github.com/croven/sessiongate"
)

// cookieTTL tracks the refresh token lifetime so a browser session survives
// as long as its refresh credential does.
const cookieTTL = 30 * 24 * time.Hour

// fragmentLen is the hex length of the rotating fingerprint fragment.
const fragmentLen = 16

// SetSessionCookies writes the three admin-scoped cookies for a freshly
// created or refreshed session: the access token (httpOnly), a
// client-readable session-id mirror for UX bookkeeping, and the rotating
// fingerprint fragment. Login handlers call this after
// [sessiongate.Engine.CreateSession].
func SetSessionCookies(w http.ResponseWriter, cfg sessiongate.CookieConfig, accessToken, sessionID, fingerprintHash string) {
	now := time.Now()

	http.SetCookie(w, &http.Cookie{
		Name:     cfg.AccessName,
		Value:    accessToken,
		Domain:   cfg.Domain,
		Path:     cfg.Path,
		Expires:  now.Add(cookieTTL),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteStrictMode,
	})

	// Readable by page scripts on purpose. Never trusted for auth, the
	// engine only believes the signed token.
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.SessionIDName,
		Value:    sessionID,
		Domain:   cfg.Domain,
		Path:     cfg.Path,
		Expires:  now.Add(cookieTTL),
		Secure:   cfg.Secure,
		SameSite: http.SameSiteStrictMode,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     cfg.FingerprintName,
		Value:    fingerprintFragment(fingerprintHash, now, cfg.FragmentRotation),
		Domain:   cfg.Domain,
		Path:     cfg.Path,
		Expires:  now.Add(cfg.FragmentRotation),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearSessionCookies expires all three cookies. Called on every rejected
// request so a tampered browser state never lingers.
func ClearSessionCookies(w http.ResponseWriter, cfg sessiongate.CookieConfig) {
	for _, name := range []string{cfg.AccessName, cfg.SessionIDName, cfg.FingerprintName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Domain:   cfg.Domain,
			Path:     cfg.Path,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   cfg.Secure,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

// fingerprintFragment derives the hourly-rotating fragment from the stored
// fingerprint hash and the current rotation bucket. The fragment proves
// nothing by itself; rotation just keeps the cookie from becoming a stable
// cross-request identifier.
func fingerprintFragment(hash string, now time.Time, rotation time.Duration) string {
	if rotation <= 0 {
		rotation = time.Hour
	}
	bucket := now.Unix() / int64(rotation/time.Second)
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", hash, bucket)))
	return hex.EncodeToString(sum[:])[:fragmentLen]
}
