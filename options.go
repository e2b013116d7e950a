package notifier

import (
	"context"
	"log/slog"

	"github.com/urbansetu/notifier/pkg/mailer/smtp"
)

// Option configures the Service.
type Option func(*Service)

// WithContext sets a custom base context for signal handling.
// Useful for testing or when integrating with existing context
// hierarchies. Defaults to context.Background().
func WithContext(ctx context.Context) Option {
	return func(s *Service) {
		if ctx != nil {
			s.baseCtx = ctx
		}
	}
}

// WithLogger sets the service logger.
// If nil, logging is disabled.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithShutdownHook appends a hook run during graceful shutdown, after
// the scheduler has stopped (close DB pools, flush Sentry, etc.).
func WithShutdownHook(hook func(ctx context.Context) error) Option {
	return func(s *Service) {
		if hook != nil {
			s.shutdownHooks = append(s.shutdownHooks, hook)
		}
	}
}

// WithSMTPStatus lets the periodic status log include the connection
// health cache snapshot of the SMTP transport.
func WithSMTPStatus(status func() smtp.Status) Option {
	return func(s *Service) {
		if status != nil {
			s.smtpStatus = status
		}
	}
}
