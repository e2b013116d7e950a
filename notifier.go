package notifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/urbansetu/notifier/pkg/logger"
	"github.com/urbansetu/notifier/pkg/mailer"
	"github.com/urbansetu/notifier/pkg/mailer/smtp"
	"github.com/urbansetu/notifier/pkg/pipeline/digest"
	"github.com/urbansetu/notifier/pkg/pipeline/reminder"
)

// Service ties the delivery engine and the two scheduled pipelines to
// the process-wide cron timer, and owns graceful shutdown.
type Service struct {
	cfg      Config
	log      *slog.Logger
	mailer   *mailer.Mailer
	reminder *reminder.Pipeline
	digest   *digest.Pipeline

	smtpStatus func() smtp.Status

	baseCtx         context.Context
	done            chan struct{}
	shutdownHooks   []func(ctx context.Context) error
	shutdownTimeout time.Duration
}

// New creates a Service. The mailer is required; either pipeline may be
// nil when a deployment runs only one of them.
func New(m *mailer.Mailer, rem *reminder.Pipeline, dig *digest.Pipeline, cfg Config, opts ...Option) *Service {
	s := &Service{
		cfg:             cfg.withDefaults(),
		log:             logger.NewNope(),
		mailer:          m,
		reminder:        rem,
		digest:          dig,
		baseCtx:         context.Background(),
		done:            make(chan struct{}),
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = 30 * time.Second
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mailer returns the delivery engine for transactional sends from the
// rest of the application.
func (s *Service) Mailer() *mailer.Mailer {
	return s.mailer
}
