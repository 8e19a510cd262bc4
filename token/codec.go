package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Class distinguishes the two token types issued per session. Verify rejects
// a token whose embedded class does not match the expected one, so the long
// lived refresh credential cannot be presented on the access path.
type Class string

const (
	// ClassAccess is the short-lived credential presented on every request.
	ClassAccess Class = "access"
	// ClassRefresh is the long-lived credential used only to mint new pairs.
	ClassRefresh Class = "refresh"
)

var (
	// ErrTokenExpired is returned by Verify for a structurally valid but expired token.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned by Verify for any malformed, tampered, or
	// wrongly signed token.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenClass is returned when a token of one class is presented where
	// the other class is expected.
	ErrTokenClass = errors.New("token class mismatch")
)

// Config defines the signing material and lifetimes for a [Codec].
//
// AccessSecret and RefreshSecret must differ; NewCodec rejects shared
// material.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration

	// Now overrides the time source for issuance and verification.
	// Nil means time.Now.
	Now func() time.Time
}

// Identity is the verified principal a token pair is minted for.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

// Claims is the payload carried by both token classes. Refresh tokens omit
// Email and Role.
type Claims struct {
	UserID    string `json:"uid"`
	SessionID string `json:"sid"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	Class     Class  `json:"cls"`
	jwt.RegisteredClaims
}

// Codec issues and verifies the session token pair.
//
// Codec instances are configured once and safe for concurrent use.
type Codec struct {
	config Config
}

// NewCodec validates cfg and returns a ready [Codec].
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("token: both signing secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("token: access and refresh secrets must be disjoint")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token: invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("token: invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Codec{config: cfg}, nil
}

// AccessTTL reports the configured access-token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.config.AccessTTL }

// RefreshTTL reports the configured refresh-token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.config.RefreshTTL }

// IssueAccess signs a new access token for identity bound to sessionID.
func (c *Codec) IssueAccess(identity Identity, sessionID string) (string, error) {
	now := c.config.Now()
	claims := Claims{
		UserID:    identity.UserID,
		SessionID: sessionID,
		Email:     identity.Email,
		Role:      identity.Role,
		Class:     ClassAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.config.AccessTTL)),
			Issuer:    c.config.Issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.config.AccessSecret)
}

// IssueRefresh signs a new refresh token for identity bound to sessionID.
// The payload is minimal: no email or role travels in the long-lived token.
func (c *Codec) IssueRefresh(identity Identity, sessionID string) (string, error) {
	now := c.config.Now()
	claims := Claims{
		UserID:    identity.UserID,
		SessionID: sessionID,
		Class:     ClassRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.config.RefreshTTL)),
			Issuer:    c.config.Issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.config.RefreshSecret)
}

// Verify checks signature, expiry, and class of tokenStr against
// expectedClass and returns the decoded claims.
//
// Errors are always one of [ErrTokenExpired], [ErrTokenClass], or
// [ErrTokenInvalid]; parser details never escape to callers.
func (c *Codec) Verify(tokenStr string, expectedClass Class) (*Claims, error) {
	return c.verify(tokenStr, expectedClass, false)
}

// VerifyExpired verifies signature and class but tolerates an expired token.
// Logout uses it so an expired access token can still name the session to
// invalidate.
func (c *Codec) VerifyExpired(tokenStr string, expectedClass Class) (*Claims, error) {
	return c.verify(tokenStr, expectedClass, true)
}

func (c *Codec) verify(tokenStr string, expectedClass Class, allowExpired bool) (*Claims, error) {
	secret := c.config.AccessSecret
	if expectedClass == ClassRefresh {
		secret = c.config.RefreshSecret
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.config.Now),
		jwt.WithIssuedAt(),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}
	if allowExpired {
		// Signature, class, and structure only; expiry and issuer checks
		// are skipped for the logout-by-expired-token path.
		options = append(options, jwt.WithoutClaimsValidation())
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Class != expectedClass {
		return nil, ErrTokenClass
	}
	if strings.TrimSpace(claims.SessionID) == "" || strings.TrimSpace(claims.UserID) == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
