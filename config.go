package sessiongate

import (
	"bytes"
	"errors"
	"time"
)

// Config defines a public configuration tree for the engine.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable.
type Config struct {
	Token       TokenConfig
	Session     SessionConfig
	Fingerprint FingerprintConfig
	Heartbeat   HeartbeatConfig
	Cookie      CookieConfig
	Audit       AuditConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig carries the two independent signing secrets and token
// lifetimes. Access and refresh secrets must be disjoint: a leaked refresh
// token must never verify as an access token.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls persistence and refresh behavior.
type SessionConfig struct {
	RedisPrefix string

	// RefreshThreshold is the remaining-TTL window inside which a validation
	// proactively mints a new token pair.
	RefreshThreshold time.Duration

	// SuspiciousWindow bounds the dedup marker for repeated identical
	// suspicious-activity events per user.
	SuspiciousWindow time.Duration
}

/*
====================================
FINGERPRINT CONFIG
====================================
*/

// FingerprintConfig selects the header signals hashed into the device
// fingerprint. The signal set is a heuristic policy, not a guaranteed
// security boundary; an empty list selects the package default.
type FingerprintConfig struct {
	Signals []string
}

/*
====================================
HEARTBEAT CONFIG
====================================
*/

// HeartbeatConfig controls the per-session liveness timers and the bulk
// expiry sweep.
type HeartbeatConfig struct {
	Interval      time.Duration
	SweepInterval time.Duration
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig shapes the three admin-scoped cookies issued by the
// authentication boundary.
type CookieConfig struct {
	Domain string
	Path   string

	// Secure enforces the Secure attribute; disabled only for local
	// development environments.
	Secure bool

	AccessName      string
	SessionIDName   string
	FingerprintName string

	// FragmentRotation is the rotation period of the fingerprint fragment
	// cookie.
	FragmentRotation time.Duration
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the append-only audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// DefaultConfig returns the production defaults: 12h access TTL, 30d refresh
// TTL, 30m refresh threshold, 5m heartbeat, 1h suspicious-activity window.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:  12 * time.Hour,
			RefreshTTL: 30 * 24 * time.Hour,
			Issuer:     "sessiongate",
			Leeway:     30 * time.Second,
		},
		Session: SessionConfig{
			RedisPrefix:      "asg",
			RefreshThreshold: 30 * time.Minute,
			SuspiciousWindow: time.Hour,
		},
		Heartbeat: HeartbeatConfig{
			Interval:      5 * time.Minute,
			SweepInterval: 10 * time.Minute,
		},
		Cookie: CookieConfig{
			Path:             "/admin",
			Secure:           true,
			AccessName:       "admin_access",
			SessionIDName:    "admin_session_id",
			FingerprintName:  "admin_fp",
			FragmentRotation: time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

func (c *Config) normalize() {
	d := DefaultConfig()
	if c.Token.AccessTTL <= 0 {
		c.Token.AccessTTL = d.Token.AccessTTL
	}
	if c.Token.RefreshTTL <= 0 {
		c.Token.RefreshTTL = d.Token.RefreshTTL
	}
	if c.Session.RedisPrefix == "" {
		c.Session.RedisPrefix = d.Session.RedisPrefix
	}
	if c.Session.RefreshThreshold <= 0 {
		c.Session.RefreshThreshold = d.Session.RefreshThreshold
	}
	if c.Session.SuspiciousWindow <= 0 {
		c.Session.SuspiciousWindow = d.Session.SuspiciousWindow
	}
	if c.Heartbeat.Interval <= 0 {
		c.Heartbeat.Interval = d.Heartbeat.Interval
	}
	if c.Heartbeat.SweepInterval <= 0 {
		c.Heartbeat.SweepInterval = d.Heartbeat.SweepInterval
	}
	if c.Cookie.Path == "" {
		c.Cookie.Path = d.Cookie.Path
	}
	if c.Cookie.AccessName == "" {
		c.Cookie.AccessName = d.Cookie.AccessName
	}
	if c.Cookie.SessionIDName == "" {
		c.Cookie.SessionIDName = d.Cookie.SessionIDName
	}
	if c.Cookie.FingerprintName == "" {
		c.Cookie.FingerprintName = d.Cookie.FingerprintName
	}
	if c.Cookie.FragmentRotation <= 0 {
		c.Cookie.FragmentRotation = d.Cookie.FragmentRotation
	}
	if c.Audit.BufferSize <= 0 {
		c.Audit.BufferSize = d.Audit.BufferSize
	}
}

func validateConfig(c Config) error {
	if len(c.Token.AccessSecret) == 0 || len(c.Token.RefreshSecret) == 0 {
		return errors.New("config: both token signing secrets are required")
	}
	if bytes.Equal(c.Token.AccessSecret, c.Token.RefreshSecret) {
		return errors.New("config: access and refresh secrets must differ")
	}
	if c.Session.RefreshThreshold >= c.Token.AccessTTL {
		return errors.New("config: refresh threshold must be shorter than the access TTL")
	}
	if c.Token.RefreshTTL < c.Token.AccessTTL {
		return errors.New("config: refresh TTL must not be shorter than the access TTL")
	}
	return nil
}
