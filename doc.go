// Package notifier is the notification delivery subsystem behind the
// listing application: a multi-provider email delivery engine plus two
// scheduled bulk-notification pipelines.
//
// The delivery engine (pkg/mailer) tries the Resend API first and falls
// back to an ordered set of SMTP configurations with exponential
// backoff and a lazily-verified connection health cache. The pipelines
// (pkg/pipeline/reminder, pkg/pipeline/digest) run on cron schedules
// owned by the Service, isolate per-item failures, and throttle bulk
// sends so they never starve transactional mail.
//
// Typical wiring:
//
//	m := mailer.New(apiSender, smtpTransport, mailerCfg, mailer.WithLogger(log))
//	rem := reminder.New(src, m, reminderCfg, reminder.WithLogger(log))
//	dig := digest.New(src, src, m, digestCfg, digest.WithLogger(log))
//
//	svc := notifier.New(m, rem, dig, cfg,
//		notifier.WithLogger(log),
//		notifier.WithShutdownHook(postgres.Shutdown(pool)),
//	)
//	if err := svc.Run(); err != nil {
//		log.Error("notifier exited", slog.Any("error", err))
//	}
//
// Transactional callers use svc.Mailer().Deliver directly; they never
// need to know which provider carried the message.
package notifier
