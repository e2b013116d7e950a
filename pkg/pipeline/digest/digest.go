// Package digest implements the twice-monthly bulk digest pipeline. It
// precomputes global fallback content once, streams active users
// through a forward-only cursor, and sends strictly sequentially with a
// fixed inter-user throttle.
//
// Sequential processing is deliberate: the digest shares the delivery
// engine and its SMTP connection cache with time-sensitive
// transactional mail, so uncontrolled fan-out here would starve those
// sends and trip provider rate limits. The throttle bounds outbound
// rate no matter how fast the cursor yields rows.
package digest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/urbansetu/notifier/pkg/mailer"
	"github.com/urbansetu/notifier/pkg/source"
)

// ErrNoContent indicates both fallback lists came back empty, so the
// run was aborted before touching the user stream.
var ErrNoContent = errors.New("digest: no content available, nothing to send")

// Deliverer is the slice of the delivery engine the pipeline needs.
type Deliverer interface {
	Deliver(ctx context.Context, email *mailer.Email) mailer.Result
}

// Composer builds the already-rendered digest message for a user from
// the selected listings.
type Composer func(user source.User, featured []source.Listing) (subject, html string)

// Config holds digest pipeline settings.
// Embed this in your app config for env parsing with caarlos0/env.
type Config struct {
	// MaxRetries bounds the pipeline-level retry wrapper around each
	// user's delivery. This is distinct from the engine's own SMTP
	// retries: any non-success Result counts as one failed attempt.
	MaxRetries int `env:"DIGEST_MAX_RETRIES" envDefault:"2"`

	// RetryDelay scales the wrapper backoff: attempt * RetryDelay.
	RetryDelay time.Duration `env:"DIGEST_RETRY_DELAY" envDefault:"1s"`

	// Throttle is the fixed pause after every user, success or not.
	Throttle time.Duration `env:"DIGEST_THROTTLE" envDefault:"1s"`

	// TopN sizes each global fallback list.
	TopN int `env:"DIGEST_TOP_N" envDefault:"5"`

	// ProgressEvery controls the progress log cadence.
	ProgressEvery int `env:"DIGEST_PROGRESS_EVERY" envDefault:"10"`
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 2
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.Throttle <= 0 {
		c.Throttle = time.Second
	}
	if c.TopN <= 0 {
		c.TopN = 5
	}
	if c.ProgressEvery <= 0 {
		c.ProgressEvery = 10
	}
	return c
}

// Summary describes one pipeline run.
type Summary struct {
	RunID     string
	Processed int
	Sent      int
	Failed    int
}

// Pipeline streams users and sends digests one at a time.
type Pipeline struct {
	users   source.UserSource
	catalog source.Catalog
	deliver Deliverer
	compose Composer
	cfg     Config
	sleep   func(ctx context.Context, d time.Duration) error
	log     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger. Defaults to a discarding logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

// WithComposer replaces the message composer.
func WithComposer(compose Composer) Option {
	return func(p *Pipeline) {
		if compose != nil {
			p.compose = compose
		}
	}
}

// WithSleep replaces both the throttle and the retry backoff wait.
// Tests substitute a zero-delay recorder here.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Pipeline) {
		if sleep != nil {
			p.sleep = sleep
		}
	}
}

// New creates the digest pipeline.
func New(users source.UserSource, catalog source.Catalog, deliver Deliverer, cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		users:   users,
		catalog: catalog,
		deliver: deliver,
		compose: defaultComposer,
		cfg:     cfg.withDefaults(),
		sleep:   sleepContext,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunOnce executes one digest pass. Run-level faults (empty catalog,
// unreachable user stream) end the run early; per-user failures are
// retried within the wrapper budget, then counted and skipped.
func (p *Pipeline) RunOnce(ctx context.Context) (Summary, error) {
	summary := Summary{RunID: uuid.NewString()}

	// Fallback content is computed exactly once per run. Per-user
	// personalization may degrade to it, never the other way around.
	fallback := p.loadFallback(ctx)
	if len(fallback) == 0 {
		p.log.WarnContext(ctx, "digest run aborted: no content to send",
			slog.String("run_id", summary.RunID),
		)
		return summary, ErrNoContent
	}

	cursor, err := p.users.ActiveUsers(ctx)
	if err != nil {
		p.log.ErrorContext(ctx, "digest run aborted: user stream unavailable",
			slog.String("run_id", summary.RunID),
			slog.String("error", err.Error()),
		)
		return summary, fmt.Errorf("digest: open user cursor: %w", err)
	}
	defer cursor.Close()

	for cursor.Next() {
		if err := ctx.Err(); err != nil {
			p.log.WarnContext(ctx, "digest run canceled",
				slog.String("run_id", summary.RunID),
				slog.Int("processed", summary.Processed),
			)
			return summary, err
		}

		user, err := cursor.User()
		if err != nil {
			summary.Processed++
			summary.Failed++
			p.log.ErrorContext(ctx, "skipping undecodable user row",
				slog.String("run_id", summary.RunID),
				slog.String("error", err.Error()),
			)
			continue
		}

		summary.Processed++
		if p.sendDigest(ctx, summary.RunID, user, fallback) {
			summary.Sent++
		} else {
			summary.Failed++
		}

		if summary.Processed%p.cfg.ProgressEvery == 0 {
			p.log.InfoContext(ctx, "digest run progress",
				slog.String("run_id", summary.RunID),
				slog.Int("processed", summary.Processed),
				slog.Int("sent", summary.Sent),
			)
		}

		// Fixed pause between users, success or failure, to bound the
		// outbound send rate.
		if err := p.sleep(ctx, p.cfg.Throttle); err != nil {
			return summary, err
		}
	}
	if err := cursor.Err(); err != nil {
		p.log.ErrorContext(ctx, "digest cursor terminated early",
			slog.String("run_id", summary.RunID),
			slog.String("error", err.Error()),
		)
		return summary, fmt.Errorf("digest: iterate users: %w", err)
	}

	p.log.InfoContext(ctx, "digest run completed",
		slog.String("run_id", summary.RunID),
		slog.Int("processed", summary.Processed),
		slog.Int("sent", summary.Sent),
		slog.Int("failed", summary.Failed),
	)
	return summary, nil
}

// sendDigest delivers one user's digest with the pipeline-level retry
// wrapper. Reports whether the user ended up counted as sent.
func (p *Pipeline) sendDigest(ctx context.Context, runID string, user source.User, fallback []source.Listing) bool {
	if user.Email == "" {
		p.log.WarnContext(ctx, "skipping user without email",
			slog.String("run_id", runID),
			slog.String("user_id", user.ID),
		)
		return false
	}

	featured := p.personalized(ctx, user, fallback)
	subject, html := p.compose(user, featured)

	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxRetries; attempt++ {
		res := p.deliver.Deliver(ctx, &mailer.Email{
			To:      user.Email,
			ToName:  user.Username,
			Subject: subject,
			HTML:    html,
		})
		if res.Success {
			return true
		}

		lastErr = res.Err
		if attempt < p.cfg.MaxRetries {
			if err := p.sleep(ctx, time.Duration(attempt)*p.cfg.RetryDelay); err != nil {
				return false
			}
		}
	}

	p.log.ErrorContext(ctx, "digest delivery failed, moving on",
		slog.String("run_id", runID),
		slog.String("user_id", user.ID),
		slog.Int("attempts", p.cfg.MaxRetries),
		slog.String("error", errString(lastErr)),
	)
	return false
}

// personalized returns the user's saved listings if the cheap lookup
// yields anything, otherwise the global fallback. Deeper per-user
// queries are deliberately avoided to keep per-user cost flat.
func (p *Pipeline) personalized(ctx context.Context, user source.User, fallback []source.Listing) []source.Listing {
	saved, err := p.catalog.SavedListings(ctx, user.ID, p.cfg.TopN)
	if err != nil {
		p.log.WarnContext(ctx, "personalization lookup failed, using fallback",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return fallback
	}
	if len(saved) == 0 {
		return fallback
	}
	return saved
}

// loadFallback builds the global content: newest listings first, then
// most-viewed, deduplicated, capped at twice TopN.
func (p *Pipeline) loadFallback(ctx context.Context) []source.Listing {
	newest, err := p.catalog.NewestListings(ctx, p.cfg.TopN)
	if err != nil {
		p.log.WarnContext(ctx, "newest listings unavailable", slog.String("error", err.Error()))
	}
	popular, err := p.catalog.MostViewedListings(ctx, p.cfg.TopN)
	if err != nil {
		p.log.WarnContext(ctx, "most viewed listings unavailable", slog.String("error", err.Error()))
	}

	seen := make(map[string]struct{}, len(newest)+len(popular))
	merged := make([]source.Listing, 0, len(newest)+len(popular))
	for _, l := range append(newest, popular...) {
		if _, dup := seen[l.ID]; dup {
			continue
		}
		seen[l.ID] = struct{}{}
		merged = append(merged, l)
	}
	return merged
}

func defaultComposer(user source.User, featured []source.Listing) (string, string) {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Hi %s, here is what's new on the market:</p><ul>", user.Username)
	for _, l := range featured {
		fmt.Fprintf(&b, "<li>%s in %s</li>", l.Name, l.City)
	}
	b.WriteString("</ul>")
	return "Fresh listings picked for you", b.String()
}

func errString(err error) string {
	if err == nil {
		return "delivery reported failure"
	}
	return err.Error()
}

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
