// Package reminder implements the daily verification reminder pipeline:
// one bulk read of unverified private listings, an age-in-days check
// against the configured day marks, and one delivery per matching
// listing with per-item fault isolation.
package reminder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/urbansetu/notifier/pkg/mailer"
	"github.com/urbansetu/notifier/pkg/source"
)

// Deliverer is the slice of the delivery engine the pipeline needs.
type Deliverer interface {
	Deliver(ctx context.Context, email *mailer.Email) mailer.Result
}

// Composer builds the already-rendered reminder message for a listing.
// Rendering lives outside this core; the default composer is a plain
// placeholder.
type Composer func(listing source.Listing, ageDays int) (subject, html string)

// Config holds reminder pipeline settings.
// Embed this in your app config for env parsing with caarlos0/env.
type Config struct {
	// ReminderDays are the age-in-days marks on which a reminder fires.
	// A listing gets exactly one reminder per run, and only on a mark.
	ReminderDays []int `env:"REMINDER_DAYS" envDefault:"1,3,7,14"`

	// MinAge excludes listings created too recently to nag about.
	MinAge time.Duration `env:"REMINDER_MIN_AGE" envDefault:"24h"`
}

// Summary describes one pipeline run. Logged at completion, never
// persisted.
type Summary struct {
	RunID   string
	Matched int // listings returned by the bulk read
	Sent    int
	Failed  int
	Skipped int // matched but not on a reminder day mark
}

// Pipeline evaluates listing age against the day marks every run; there
// is no persisted per-listing reminder history. A listing whose
// delivery fails on its mark day is not retried later.
type Pipeline struct {
	listings source.ListingSource
	deliver  Deliverer
	compose  Composer
	days     map[int]struct{}
	minAge   time.Duration
	now      func() time.Time
	log      *slog.Logger
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

// WithClock replaces the time source used for age computation.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates the reminder pipeline.
func New(listings source.ListingSource, deliver Deliverer, cfg Config, opts ...Option) *Pipeline {
	days := cfg.ReminderDays
	if len(days) == 0 {
		days = []int{1, 3, 7, 14}
	}
	marks := make(map[int]struct{}, len(days))
	for _, d := range days {
		marks[d] = struct{}{}
	}

	minAge := cfg.MinAge
	if minAge <= 0 {
		minAge = 24 * time.Hour
	}

	p := &Pipeline{
		listings: listings,
		deliver:  deliver,
		compose:  defaultComposer,
		days:     marks,
		minAge:   minAge,
		now:      time.Now,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunOnce executes one reminder pass. A data source failure ends the
// run early; any per-listing failure is logged, counted, and the loop
// continues. The returned error is non-nil only for run-level faults.
func (p *Pipeline) RunOnce(ctx context.Context) (Summary, error) {
	summary := Summary{RunID: uuid.NewString()}
	now := p.now()

	listings, err := p.listings.UnverifiedPrivateBefore(ctx, now.Add(-p.minAge))
	if err != nil {
		p.log.ErrorContext(ctx, "reminder run aborted: listing query failed",
			slog.String("run_id", summary.RunID),
			slog.String("error", err.Error()),
		)
		return summary, fmt.Errorf("reminder: load listings: %w", err)
	}
	summary.Matched = len(listings)

	for _, listing := range listings {
		if err := ctx.Err(); err != nil {
			p.log.WarnContext(ctx, "reminder run canceled",
				slog.String("run_id", summary.RunID),
				slog.Int("sent", summary.Sent),
			)
			return summary, err
		}

		ageDays := int(now.Sub(listing.CreatedAt).Hours() / 24)
		if _, onMark := p.days[ageDays]; !onMark {
			summary.Skipped++
			continue
		}

		if err := p.remind(ctx, listing, ageDays); err != nil {
			// Isolated: one bad listing never aborts the batch.
			summary.Failed++
			p.log.ErrorContext(ctx, "reminder failed for listing",
				slog.String("run_id", summary.RunID),
				slog.String("listing_id", listing.ID),
				slog.Int("age_days", ageDays),
				slog.String("error", err.Error()),
			)
			continue
		}
		summary.Sent++
	}

	p.log.InfoContext(ctx, "reminder run completed",
		slog.String("run_id", summary.RunID),
		slog.Int("matched", summary.Matched),
		slog.Int("sent", summary.Sent),
		slog.Int("failed", summary.Failed),
		slog.Int("skipped", summary.Skipped),
	)
	return summary, nil
}

func (p *Pipeline) remind(ctx context.Context, listing source.Listing, ageDays int) error {
	if listing.OwnerEmail == "" {
		return fmt.Errorf("listing %s has no contactable owner", listing.ID)
	}

	subject, html := p.compose(listing, ageDays)
	res := p.deliver.Deliver(ctx, &mailer.Email{
		To:      listing.OwnerEmail,
		ToName:  listing.OwnerName,
		Subject: subject,
		HTML:    html,
	})
	if !res.Success {
		return res.Err
	}
	return nil
}

func defaultComposer(listing source.Listing, ageDays int) (string, string) {
	subject := fmt.Sprintf("Your listing %q is still unverified", listing.Name)
	html := fmt.Sprintf(
		"<p>Hi %s,</p><p>Your listing %q was created %d day(s) ago and has not been verified yet. Verify it to make it visible to buyers.</p>",
		listing.OwnerName, listing.Name, ageDays,
	)
	return subject, html
}
