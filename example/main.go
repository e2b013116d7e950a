// Command example wires the full notification service from environment
// configuration: logger, database pool, both delivery providers, the
// two pipelines, and the scheduler.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"

	"github.com/urbansetu/notifier"
	"github.com/urbansetu/notifier/pkg/logger"
	"github.com/urbansetu/notifier/pkg/mailer"
	"github.com/urbansetu/notifier/pkg/mailer/resend"
	"github.com/urbansetu/notifier/pkg/mailer/smtp"
	"github.com/urbansetu/notifier/pkg/pipeline/digest"
	"github.com/urbansetu/notifier/pkg/pipeline/reminder"
	"github.com/urbansetu/notifier/pkg/source/postgres"
)

type config struct {
	Service  notifier.Config
	Logger   logger.Config
	Mailer   mailer.Config
	Resend   resend.Config
	Primary  smtp.Config `envPrefix:"SMTP_PRIMARY_"`
	Fallback smtp.Config `envPrefix:"SMTP_FALLBACK_"`
	Database postgres.Config
	Reminder reminder.Config
	Digest   digest.Config
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		slog.Error("failed to parse configuration", slog.Any("error", err))
		os.Exit(1)
	}

	log := logger.NewWithSentry(cfg.Logger)

	ctx := context.Background()
	pool, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		log.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	src := postgres.NewSource(pool)

	transport, err := smtp.NewTransport(
		[]smtp.Config{cfg.Primary, cfg.Fallback},
		smtp.WithLogger(log),
	)
	if err != nil {
		log.Error("failed to build smtp transport", slog.Any("error", err))
		os.Exit(1)
	}

	m := mailer.New(
		resend.New(cfg.Resend),
		transport,
		cfg.Mailer,
		mailer.WithLogger(log),
	)

	svc := notifier.New(m,
		reminder.New(src, m, cfg.Reminder, reminder.WithLogger(log)),
		digest.New(src, src, m, cfg.Digest, digest.WithLogger(log)),
		cfg.Service,
		notifier.WithLogger(log),
		notifier.WithSMTPStatus(transport.Status),
		notifier.WithShutdownHook(postgres.Shutdown(pool)),
	)

	if err := svc.Run(); err != nil {
		log.Error("notifier exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}
