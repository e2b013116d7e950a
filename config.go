package notifier

import "time"

// Config holds service-level scheduling and shutdown settings.
// Embed this in your app config for env parsing with caarlos0/env.
type Config struct {
	// ReminderSchedule fires the verification reminder pipeline.
	// Standard 5-field cron, daily by default.
	ReminderSchedule string `env:"REMINDER_SCHEDULE" envDefault:"0 9 * * *"`

	// DigestSchedule fires the bulk digest pipeline, twice a month by
	// default (the 1st and the 15th).
	DigestSchedule string `env:"DIGEST_SCHEDULE" envDefault:"0 10 1,15 * *"`

	// StatusInterval controls the periodic delivery status log line.
	StatusInterval time.Duration `env:"STATUS_LOG_INTERVAL" envDefault:"15m"`

	// ShutdownTimeout bounds how long Stop waits for in-flight batch
	// runs before abandoning them.
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

func (c Config) withDefaults() Config {
	if c.ReminderSchedule == "" {
		c.ReminderSchedule = "0 9 * * *"
	}
	if c.DigestSchedule == "" {
		c.DigestSchedule = "0 10 1,15 * *"
	}
	if c.StatusInterval <= 0 {
		c.StatusInterval = 15 * time.Minute
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	return c
}
