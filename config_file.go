package sessiongate

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML shape of a config file. Durations are Go duration
// strings ("12h", "30m"). Secrets are never read from the file; they come
// from the environment.
type fileConfig struct {
	Token struct {
		AccessTTL  string `yaml:"access_ttl"`
		RefreshTTL string `yaml:"refresh_ttl"`
		Issuer     string `yaml:"issuer"`
		Leeway     string `yaml:"leeway"`
	} `yaml:"token"`
	Session struct {
		RedisPrefix      string `yaml:"redis_prefix"`
		RefreshThreshold string `yaml:"refresh_threshold"`
		SuspiciousWindow string `yaml:"suspicious_window"`
	} `yaml:"session"`
	Fingerprint struct {
		Signals []string `yaml:"signals"`
	} `yaml:"fingerprint"`
	Heartbeat struct {
		Interval      string `yaml:"interval"`
		SweepInterval string `yaml:"sweep_interval"`
	} `yaml:"heartbeat"`
	Cookie struct {
		Domain           string `yaml:"domain"`
		Path             string `yaml:"path"`
		Secure           *bool  `yaml:"secure"`
		FragmentRotation string `yaml:"fragment_rotation"`
	} `yaml:"cookie"`
	Audit struct {
		Enabled    *bool `yaml:"enabled"`
		BufferSize int   `yaml:"buffer_size"`
		DropIfFull *bool `yaml:"drop_if_full"`
	} `yaml:"audit"`
}

// Environment variables consulted by LoadConfigFile. Signing secrets are
// mandatory; SESSIONGATE_INSECURE_COOKIES downgrades the Secure attribute
// for local development only.
const (
	EnvAccessSecret    = "SESSIONGATE_ACCESS_SECRET"
	EnvRefreshSecret   = "SESSIONGATE_REFRESH_SECRET"
	EnvCookieDomain    = "SESSIONGATE_COOKIE_DOMAIN"
	EnvInsecureCookies = "SESSIONGATE_INSECURE_COOKIES"
)

// LoadConfigFile reads a YAML config file, applies environment overrides for
// secrets and cookie policy, and returns a normalized, validated Config.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(raw, &fc); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
		if err := applyFileConfig(&cfg, fc); err != nil {
			return Config{}, err
		}
	}

	if v := os.Getenv(EnvAccessSecret); v != "" {
		cfg.Token.AccessSecret = []byte(v)
	}
	if v := os.Getenv(EnvRefreshSecret); v != "" {
		cfg.Token.RefreshSecret = []byte(v)
	}
	if v := os.Getenv(EnvCookieDomain); v != "" {
		cfg.Cookie.Domain = v
	}
	if os.Getenv(EnvInsecureCookies) == "1" {
		cfg.Cookie.Secure = false
	}

	cfg.normalize()
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFileConfig(cfg *Config, fc fileConfig) error {
	durations := []struct {
		raw string
		dst *time.Duration
	}{
		{fc.Token.AccessTTL, &cfg.Token.AccessTTL},
		{fc.Token.RefreshTTL, &cfg.Token.RefreshTTL},
		{fc.Token.Leeway, &cfg.Token.Leeway},
		{fc.Session.RefreshThreshold, &cfg.Session.RefreshThreshold},
		{fc.Session.SuspiciousWindow, &cfg.Session.SuspiciousWindow},
		{fc.Heartbeat.Interval, &cfg.Heartbeat.Interval},
		{fc.Heartbeat.SweepInterval, &cfg.Heartbeat.SweepInterval},
		{fc.Cookie.FragmentRotation, &cfg.Cookie.FragmentRotation},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("config: invalid duration %q: %w", d.raw, err)
		}
		*d.dst = parsed
	}

	if fc.Token.Issuer != "" {
		cfg.Token.Issuer = fc.Token.Issuer
	}
	if fc.Session.RedisPrefix != "" {
		cfg.Session.RedisPrefix = fc.Session.RedisPrefix
	}
	if len(fc.Fingerprint.Signals) > 0 {
		cfg.Fingerprint.Signals = fc.Fingerprint.Signals
	}
	if fc.Cookie.Domain != "" {
		cfg.Cookie.Domain = fc.Cookie.Domain
	}
	if fc.Cookie.Path != "" {
		cfg.Cookie.Path = fc.Cookie.Path
	}
	if fc.Cookie.Secure != nil {
		cfg.Cookie.Secure = *fc.Cookie.Secure
	}
	if fc.Audit.Enabled != nil {
		cfg.Audit.Enabled = *fc.Audit.Enabled
	}
	if fc.Audit.BufferSize > 0 {
		cfg.Audit.BufferSize = fc.Audit.BufferSize
	}
	if fc.Audit.DropIfFull != nil {
		cfg.Audit.DropIfFull = *fc.Audit.DropIfFull
	}
	return nil
}
