// Package smtp implements the SMTP fallback provider with an ordered
// configuration set and a lazily-verified connection health cache.
package smtp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"github.com/urbansetu/notifier/pkg/mailer"
)

// ErrNoConfigs indicates no usable SMTP configuration was supplied.
var ErrNoConfigs = errors.New("smtp: at least one configuration is required")

// Transport implements mailer.FallbackSender over a static, ordered
// list of SMTP configurations. Each Send is a single attempt against
// the currently-verified configuration; the orchestrator owns retry
// and backoff.
type Transport struct {
	pool *pool
	log  *slog.Logger
}

// Option configures a Transport.
type Option func(*Transport)

// WithLogger sets the transport logger. Defaults to a discarding logger.
func WithLogger(log *slog.Logger) Option {
	return func(t *Transport) {
		if log != nil {
			t.log = log
		}
	}
}

// withDialFunc replaces the SMTP dialer. Used by tests.
func withDialFunc(dial dialFunc) Option {
	return func(t *Transport) {
		if dial != nil {
			t.pool.dial = dial
		}
	}
}

// NewTransport creates a Transport from configurations in priority
// order. Disabled (empty-host) entries are skipped; at least one
// enabled configuration is required.
func NewTransport(configs []Config, opts ...Option) (*Transport, error) {
	enabled := make([]Config, 0, len(configs))
	for _, cfg := range configs {
		if cfg.Enabled() {
			enabled = append(enabled, cfg.withDefaults())
		}
	}
	if len(enabled) == 0 {
		return nil, ErrNoConfigs
	}

	t := &Transport{
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	t.pool = newPool(enabled, gomailDial, nil)
	for _, opt := range opts {
		opt(t)
	}
	t.pool.log = t.log
	return t, nil
}

// Name implements mailer.Sender.
func (t *Transport) Name() string {
	return "smtp"
}

// EnsureVerified implements mailer.FallbackSender.
func (t *Transport) EnsureVerified(ctx context.Context) (int, bool) {
	return t.pool.ensureVerified(ctx)
}

// Invalidate implements mailer.FallbackSender.
func (t *Transport) Invalidate() {
	t.pool.invalidate()
}

// Status returns a snapshot of the connection health cache.
func (t *Transport) Status() Status {
	return t.pool.status()
}

// Send implements mailer.Sender: one delivery attempt against the
// currently-verified configuration, bounded by its SendTimeout.
func (t *Transport) Send(ctx context.Context, email *mailer.Email) (string, error) {
	cfg, ordinal, ok := t.pool.verified()
	if !ok {
		return "", mailer.ErrNotVerified
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), cfg.Host)

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", cfg.From, cfg.FromName)
	msg.SetAddressHeader("To", email.To, email.ToName)
	msg.SetHeader("Subject", email.Subject)
	msg.SetHeader("Message-ID", messageID)
	if email.Text != "" {
		msg.SetBody("text/plain", email.Text)
		msg.AddAlternative("text/html", email.HTML)
	} else {
		msg.SetBody("text/html", email.HTML)
	}

	if err := t.send(ctx, cfg, msg); err != nil {
		return "", fmt.Errorf("smtp: send via config %d (%s): %w", ordinal, cfg.Host, err)
	}
	return messageID, nil
}

// send runs dial-and-send with an upper bound, since gomail has no
// context support of its own.
func (t *Transport) send(ctx context.Context, cfg Config, msg *gomail.Message) error {
	done := make(chan error, 1)
	go func() {
		sc, err := t.pool.dial(cfg)
		if err != nil {
			done <- err
			return
		}
		err = gomail.Send(sc, msg)
		if cerr := sc.Close(); err == nil {
			err = cerr
		}
		done <- err
	}()

	timer := time.NewTimer(cfg.SendTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return context.DeadlineExceeded
	}
}
