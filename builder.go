package authport

import (
	"errors"

	"go.uber.org/zap"

	"github.com/quvio/authport/password"
	"github.com/quvio/authport/token"
)

// Builder assembles an [Engine]. A zero builder is not usable; start
// from [New], chain the With options, finish with [Build]. Builders are
// single-use.
type Builder struct {
	config    Config
	store     Store
	logger    *zap.Logger
	auditSink AuditSink
	built     bool
}

func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithStore injects the persistence backend. The backend choice is a
// compile-time decision of the caller; the engine never resolves one
// from configuration.
func (b *Builder) WithStore(s Store) *Builder {
	b.store = s
	return b
}

func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, loads the signing secret and wires
// the engine. A missing secret file does not fail the build: the
// engine falls back to the built-in insecure default and the condition
// is logged at warn so it cannot pass unnoticed in production logs.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("store required")
	}

	logger := b.logger
	if logger == nil {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
	}

	secret, insecure, err := token.LoadSecret(cfg.Token.SecretFile)
	if err != nil {
		return nil, err
	}
	if insecure {
		logger.Warn("token secret file unavailable, signing with the built-in insecure default",
			zap.String("secret_file", cfg.Token.SecretFile))
	}

	codec, err := token.NewCodec(secret, cfg.Token.Algorithm)
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.Config{
		LegacySalt:   cfg.Password.LegacySalt,
		PreferLegacy: cfg.Password.PreferLegacy,
		Argon2: password.Argon2Config{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		},
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:         cfg,
		store:          b.store,
		hasher:         hasher,
		codec:          codec,
		totp:           newTOTPManager(cfg.TOTP),
		audit:          newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:        NewMetrics(cfg.Metrics),
		logger:         logger,
		totpKey:        secret,
		insecureSecret: insecure,
	}

	b.built = true

	return engine, nil
}
