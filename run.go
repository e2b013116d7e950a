package notifier

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/urbansetu/notifier/pkg/scheduler"
)

// Names the scheduler and log lines use for the two jobs.
const (
	reminderJobName = "verification-reminder"
	digestJobName   = "listing-digest"
)

// Run starts the scheduler and blocks until shutdown. It handles
// SIGINT and SIGTERM: scheduling stops immediately, in-flight batch
// runs get up to ShutdownTimeout to wind down, then shutdown hooks run.
//
// Returns nil on clean shutdown, or an error if job registration or a
// shutdown hook fails.
func (s *Service) Run() error {
	ctx, cancel := signal.NotifyContext(s.baseCtx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(s.log)
	if s.reminder != nil {
		err := sched.Register(reminderJobName, s.cfg.ReminderSchedule, func(ctx context.Context) error {
			_, err := s.reminder.RunOnce(ctx)
			return err
		})
		if err != nil {
			return err
		}
	}
	if s.digest != nil {
		err := sched.Register(digestJobName, s.cfg.DigestSchedule, func(ctx context.Context) error {
			_, err := s.digest.RunOnce(ctx)
			return err
		})
		if err != nil {
			return err
		}
	}

	sched.Start(ctx)
	s.log.Info("notifier started",
		slog.String("reminder_schedule", s.cfg.ReminderSchedule),
		slog.String("digest_schedule", s.cfg.DigestSchedule),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.statusLoop(gctx)
		return nil
	})

	select {
	case <-ctx.Done():
	case <-s.done:
		cancel()
	}

	// Graceful shutdown: stop firing new ticks, wait for running jobs.
	s.log.Info("shutting down notifier")
	stopped := sched.Stop()
	select {
	case <-stopped.Done():
	case <-time.After(s.shutdownTimeout):
		s.log.Warn("shutdown timeout reached, abandoning in-flight batch runs")
	}
	_ = g.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer shutdownCancel()

	var errs []error
	for _, hook := range s.shutdownHooks {
		if err := hook(shutdownCtx); err != nil {
			errs = append(errs, err)
			s.log.Error("shutdown hook failed", slog.Any("error", err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	s.log.Info("shutdown completed")
	return nil
}

// Stop triggers graceful shutdown programmatically.
func (s *Service) Stop() {
	select {
	case <-s.done:
		// Already closed.
	default:
		close(s.done)
	}
}

// statusLoop periodically logs the delivery stats snapshot and the SMTP
// connection status.
func (s *Service) statusLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.logStatus(ctx)
		}
	}
}

func (s *Service) logStatus(ctx context.Context) {
	snap := s.mailer.Stats().Snapshot()
	attrs := []any{
		slog.Int64("sent", snap.Sent),
		slog.Int64("failed", snap.Failed),
		slog.Int64("retries", snap.Retries),
		slog.Float64("success_rate", snap.SuccessRate),
	}
	if !snap.LastSentAt.IsZero() {
		attrs = append(attrs, slog.Time("last_sent_at", snap.LastSentAt))
	}
	if snap.LastError != nil {
		attrs = append(attrs,
			slog.String("last_error", snap.LastError.Message),
			slog.Time("last_error_at", snap.LastError.At),
		)
	}
	if s.smtpStatus != nil {
		st := s.smtpStatus()
		attrs = append(attrs,
			slog.Bool("smtp_verified", st.Verified),
			slog.Int("smtp_config", st.Ordinal),
		)
	}
	s.log.InfoContext(ctx, "delivery status", attrs...)
}
