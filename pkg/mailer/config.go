package mailer

import "time"

// Config holds delivery engine tuning.
// Embed this in your app config for env parsing with caarlos0/env.
type Config struct {
	// MaxRetries bounds SMTP send attempts per email. The API provider
	// is always a single attempt; only the SMTP path retries.
	MaxRetries int `env:"MAILER_MAX_RETRIES" envDefault:"3"`

	// BaseDelay is the first inter-attempt wait; subsequent waits double
	// (pure exponential backoff, no jitter).
	BaseDelay time.Duration `env:"MAILER_BASE_DELAY" envDefault:"1s"`
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	return c
}
