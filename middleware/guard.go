package middleware

import (
	"context"
	"net/http"
	"strings"

	sessiongate "github.com/croven/sessiongate"
)

// unauthorizedBody is the single response every rejected request receives.
// Internal reason codes stay in the logs; echoing them would let a caller
// probe why a stolen session failed.
const unauthorizedBody = "unauthorized, please sign in again"

// queryTokenParam carries the access token for constrained clients that can
// set neither headers nor cookies.
const queryTokenParam = "access_token"

type validationContextKey struct{}

// ResultFromContext returns the validation result a Guard attached to the
// request context.
func ResultFromContext(ctx context.Context) (*sessiongate.ValidationResult, bool) {
	res, ok := ctx.Value(validationContextKey{}).(*sessiongate.ValidationResult)
	return res, ok
}

// IdentityFromContext returns the validated admin identity, if the request
// passed a Guard.
func IdentityFromContext(ctx context.Context) (sessiongate.Identity, bool) {
	res, ok := ResultFromContext(ctx)
	if !ok || !res.Valid {
		return sessiongate.Identity{}, false
	}
	return res.Identity, true
}

// Guard wraps a handler with full session validation. Every request walks
// the engine's validation pipeline; a pass injects the result into the
// request context, a failure clears the session cookies and returns one
// uniform unauthorized response.
func Guard(engine *sessiongate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, unauthorizedBody, http.StatusUnauthorized)
				return
			}
			cfg := engine.Cookies()

			token, ok := extractToken(r, cfg)
			if !ok {
				ClearSessionCookies(w, cfg)
				http.Error(w, unauthorizedBody, http.StatusUnauthorized)
				return
			}

			md := engine.Fingerprints().Capture(r)
			ctx := sessiongate.WithRequestMetadata(r.Context(), md)

			res := engine.Validate(ctx, token, md)
			if !res.Valid {
				ClearSessionCookies(w, cfg)
				http.Error(w, unauthorizedBody, http.StatusUnauthorized)
				return
			}

			w.Header().Set("X-Session-ID", res.Session.SessionID)
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("X-XSS-Protection", "1; mode=block")

			if res.Refreshed {
				SetSessionCookies(w, cfg, res.AccessToken, res.Session.SessionID, res.Session.Metadata.FingerprintHash)
			}

			ctx = context.WithValue(ctx, validationContextKey{}, &res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken resolves the access token by transport priority: bearer
// header, then the access cookie, then the query parameter. First match
// wins; later transports are not consulted even when the first is invalid.
func extractToken(r *http.Request, cfg sessiongate.CookieConfig) (string, bool) {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}

	if c, err := r.Cookie(cfg.AccessName); err == nil && c.Value != "" {
		return c.Value, true
	}

	if token := r.URL.Query().Get(queryTokenParam); token != "" {
		return token, true
	}

	return "", false
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
