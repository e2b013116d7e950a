package mailer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Mailer is the delivery orchestrator. It tries the API provider first,
// then falls through to the verified SMTP configuration with bounded
// exponential backoff. Provider order is fixed: the API sender is always
// attempted before SMTP, and SMTP configurations keep their static
// priority order regardless of runtime behavior.
//
// Mailer is safe for concurrent use: transactional sends and batch
// pipelines share one instance.
type Mailer struct {
	api      Sender
	fallback FallbackSender
	cfg      Config
	stats    *Stats
	log      *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
}

// Option configures a Mailer.
type Option func(*Mailer)

// WithLogger sets the mailer logger. Defaults to a discarding logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Mailer) {
		if log != nil {
			m.log = log
		}
	}
}

// WithStats injects an externally-owned stats counter set, letting the
// application read delivery counters without reaching into the Mailer.
func WithStats(s *Stats) Option {
	return func(m *Mailer) {
		if s != nil {
			m.stats = s
		}
	}
}

// WithSleep replaces the inter-attempt wait. Tests substitute a
// zero-delay recorder here instead of waiting wall-clock time.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Mailer) {
		if sleep != nil {
			m.sleep = sleep
		}
	}
}

// WithClock replaces the time source used for stats timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Mailer) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates a Mailer with an API provider and an SMTP fallback.
// Either may be nil to run single-path, but not both.
func New(api Sender, fallback FallbackSender, cfg Config, opts ...Option) *Mailer {
	m := &Mailer{
		api:      api,
		fallback: fallback,
		cfg:      cfg.withDefaults(),
		stats:    NewStats(),
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		sleep:    sleepContext,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Stats returns the rolling delivery counters.
func (m *Mailer) Stats() *Stats {
	return m.stats
}

// Deliver attempts to send the email and reports a structured Result.
// It never panics and never blocks past the providers' own timeouts:
// worst case is one API attempt plus MaxRetries SMTP attempts with
// their backoff waits. Every call moves exactly one of the sent/failed
// counters.
func (m *Mailer) Deliver(ctx context.Context, email *Email) Result {
	if email.ID == "" {
		email.ID = uuid.NewString()
	}

	if err := validate(email); err != nil {
		return m.failure(email, Result{Err: err})
	}
	if m.api == nil && m.fallback == nil {
		return m.failure(email, Result{Err: ErrNoProvider})
	}

	if m.api != nil {
		res, err := m.deliverAPI(ctx, email)
		if err == nil {
			return res
		}
		if m.fallback == nil {
			return m.failure(email, Result{
				Provider: m.api.Name(),
				Attempts: 1,
				Err:      errors.Join(ErrSendFailed, err),
			})
		}
	}

	return m.deliverSMTP(ctx, email)
}

// deliverAPI performs the single API attempt. A failed attempt is
// recoverable: the caller falls through to SMTP without surfacing it.
func (m *Mailer) deliverAPI(ctx context.Context, email *Email) (Result, error) {
	id, err := m.api.Send(ctx, email)
	if err != nil {
		m.log.WarnContext(ctx, "api send failed, falling back to smtp",
			slog.String("email_id", email.ID),
			slog.String("provider", m.api.Name()),
			slog.String("error", err.Error()),
		)
		return Result{}, err
	}

	m.stats.recordSent(m.now())
	sendSuccess.WithLabelValues(m.api.Name()).Inc()
	m.log.InfoContext(ctx, "email delivered",
		slog.String("email_id", email.ID),
		slog.String("to", email.To),
		slog.String("provider", m.api.Name()),
		slog.String("message_id", id),
	)
	return Result{
		Success:   true,
		Provider:  m.api.Name(),
		MessageID: id,
		Attempts:  1,
	}, nil
}

func (m *Mailer) deliverSMTP(ctx context.Context, email *Email) Result {
	provider := m.fallback.Name()

	ordinal, ok := m.fallback.EnsureVerified(ctx)
	if !ok {
		// No reachable configuration right now. Fail fast instead of
		// burning retries against a connection that never verified.
		return m.failure(email, Result{Provider: provider, Attempts: 0, Err: ErrNotVerified})
	}

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= m.cfg.MaxRetries; attempt++ {
		attempts = attempt

		id, err := m.fallback.Send(ctx, email)
		if err == nil {
			m.stats.recordSent(m.now())
			sendSuccess.WithLabelValues(provider).Inc()
			m.log.InfoContext(ctx, "email delivered",
				slog.String("email_id", email.ID),
				slog.String("to", email.To),
				slog.String("provider", provider),
				slog.Int("config", ordinal),
				slog.Int("attempt", attempt),
			)
			return Result{
				Success:       true,
				Provider:      provider,
				ConfigOrdinal: ordinal,
				MessageID:     id,
				Attempts:      attempt,
			}
		}

		lastErr = err
		m.log.WarnContext(ctx, "smtp send attempt failed",
			slog.String("email_id", email.ID),
			slog.Int("config", ordinal),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)

		if IsConnectionError(err) {
			m.fallback.Invalidate()
			if ordinal, ok = m.fallback.EnsureVerified(ctx); !ok {
				lastErr = errors.Join(err, ErrNotVerified)
				break
			}
		}

		if attempt < m.cfg.MaxRetries {
			m.stats.recordRetry()
			sendRetries.Inc()
			delay := m.cfg.BaseDelay << (attempt - 1)
			if err := m.sleep(ctx, delay); err != nil {
				lastErr = errors.Join(lastErr, err)
				break
			}
		}
	}

	return m.failure(email, Result{
		Provider: provider,
		Attempts: attempts,
		Err:      errors.Join(ErrSendFailed, lastErr),
	})
}

// failure records the terminal outcome and completes the Result.
func (m *Mailer) failure(email *Email, res Result) Result {
	res.Success = false
	if res.Err == nil {
		res.Err = ErrSendFailed
	}
	m.stats.recordFailure(email.To, res.Err, m.now())
	sendFailure.WithLabelValues(res.Provider).Inc()
	m.log.Error("email delivery failed",
		slog.String("email_id", email.ID),
		slog.String("to", email.To),
		slog.String("provider", res.Provider),
		slog.Int("attempts", res.Attempts),
		slog.String("error", res.Err.Error()),
	)
	return res
}

func validate(email *Email) error {
	switch {
	case email.To == "":
		return ErrNoRecipient
	case email.Subject == "":
		return ErrNoSubject
	case email.HTML == "":
		return ErrNoContent
	}
	return nil
}

// sleepContext waits for d or until ctx is canceled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
