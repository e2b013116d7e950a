// Package mailer delivers rendered notification email through an
// ordered provider chain: an HTTPS API provider first, then an SMTP
// fallback with retry, backoff, and cached connection health.
//
// The orchestrator exposes a single call surface:
//
//	res := m.Deliver(ctx, &mailer.Email{
//		To:      "owner@example.com",
//		Subject: "Your listing is waiting for verification",
//		HTML:    body,
//	})
//	if !res.Success {
//		// res.Err carries the terminal error; the caller decides
//		// whether to alert a human or just log it.
//	}
//
// Deliver never panics and is bounded in time: one API attempt plus at
// most MaxRetries SMTP attempts, each with its own network timeout.
// Failures are reported as structured Results, and every call updates
// the process-wide Stats counters exactly once.
//
// Provider adapters implement the Sender interface; the SMTP transport
// additionally implements FallbackSender so the orchestrator can probe
// and invalidate its connection health cache. See the resend and smtp
// subpackages for the concrete adapters.
package mailer
