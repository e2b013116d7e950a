package smtp

import "time"

// Config describes one SMTP delivery configuration. Configurations are
// passed to NewTransport in priority order; the first one that passes a
// verification handshake is cached and used for every send until it is
// invalidated.
//
// Field tags carry relative env names; embed with an envPrefix for
// parsing with caarlos0/env, e.g.:
//
//	Primary  smtp.Config `envPrefix:"SMTP_PRIMARY_"`
//	Fallback smtp.Config `envPrefix:"SMTP_FALLBACK_"`
type Config struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`

	// Envelope sender for mail relayed through this configuration.
	From     string `env:"FROM"`
	FromName string `env:"FROM_NAME"`

	// VerifyTimeout bounds the lightweight dial/auth handshake used by
	// the health cache. Deliberately shorter than SendTimeout: probing a
	// dead host must fail fast so the next candidate gets its turn.
	VerifyTimeout time.Duration `env:"VERIFY_TIMEOUT" envDefault:"5s"`

	// SendTimeout bounds one complete send attempt.
	SendTimeout time.Duration `env:"SEND_TIMEOUT" envDefault:"15s"`
}

// Enabled reports whether the configuration is filled in enough to be a
// fallback candidate. Unset configurations are skipped at construction,
// so a deployment with a single SMTP server just leaves the rest empty.
func (c Config) Enabled() bool {
	return c.Host != ""
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = 587
	}
	if c.VerifyTimeout <= 0 {
		c.VerifyTimeout = 5 * time.Second
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 15 * time.Second
	}
	return c
}
