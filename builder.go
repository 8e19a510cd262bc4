package sessiongate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/croven/sessiongate/fingerprint"
	"github.com/croven/sessiongate/session"
	"github.com/croven/sessiongate/token"
)

// Builder assembles an Engine from its external dependencies. Configure it
// during initialization, call Build once, and discard it.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	directory UserDirectory
	auditSink AuditSink
	logger    *slog.Logger
	clock     func() time.Time

	built bool
}

// New returns a Builder preloaded with the production defaults.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the builder's configuration. Zero-valued fields are
// filled from the defaults during Build.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the client backing the durable session layer.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithDirectory sets the identity directory consulted on every validation.
func (b *Builder) WithDirectory(dir UserDirectory) *Builder {
	b.directory = dir
	return b
}

// WithAuditSink sets the destination for append-only audit events. Leaving
// it unset disables auditing even when the config enables it.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. Nil falls back to slog.Default.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the engine time source. Tests use this to drive
// expiry and refresh behavior deterministically.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

// Build validates the configuration, wires the token codec, fingerprint
// engine, stores, heartbeat monitor, and audit dispatcher, and returns the
// ready Engine. The builder cannot be reused afterwards.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	b.built = true

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.directory == nil {
		return nil, errors.New("user directory required")
	}

	cfg := b.config
	cfg.normalize()
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	codec, err := token.NewCodec(token.Config{
		AccessSecret:  cfg.Token.AccessSecret,
		RefreshSecret: cfg.Token.RefreshSecret,
		AccessTTL:     cfg.Token.AccessTTL,
		RefreshTTL:    cfg.Token.RefreshTTL,
		Issuer:        cfg.Token.Issuer,
		Leeway:        cfg.Token.Leeway,
		Now:           clock,
	})
	if err != nil {
		return nil, err
	}

	metrics := NewMetrics()

	store := &sessionStore{
		cache:     session.NewCache(),
		durable:   session.NewStore(b.redis, cfg.Session.RedisPrefix),
		directory: b.directory,
		metrics:   metrics,
		logger:    logger,
		clock:     clock,
	}

	var dispatcher *auditDispatcher
	if cfg.Audit.Enabled && b.auditSink != nil {
		dispatcher = newAuditDispatcher(cfg.Audit, b.auditSink)
	}

	engine := &Engine{
		config:       cfg,
		codec:        codec,
		fingerprints: fingerprint.New(cfg.Fingerprint.Signals),
		store:        store,
		audit:        dispatcher,
		metrics:      metrics,
		directory:    b.directory,
		logger:       logger,
		clock:        clock,
	}

	engine.heartbeats = newHeartbeatMonitor(store, metrics, logger, clock, cfg.Heartbeat,
		func(sessionID, userID string) {
			engine.emitAudit(context.Background(), auditEventHeartbeatPruned, true, userID, sessionID, severityInfo, nil, nil)
		})

	return engine, nil
}
