package mailer

import "context"

// Sender is the minimal interface a delivery provider must implement.
// Send performs exactly one delivery attempt and returns the provider
// message id on success. Retries and fallback live in the Mailer, not
// in provider adapters.
type Sender interface {
	// Name identifies the provider in results, logs, and metrics.
	Name() string

	// Send delivers the email once. The Email has To, Subject, and HTML
	// already set. Implementations must honor context cancellation and
	// carry their own network timeout.
	Send(ctx context.Context, email *Email) (string, error)
}

// FallbackSender is a Sender whose transport must be verified before
// use. The SMTP transport implements it; the Mailer probes it lazily
// and invalidates it after connection-class failures.
type FallbackSender interface {
	Sender

	// EnsureVerified returns the 1-based ordinal of the currently
	// verified configuration, probing candidates in priority order when
	// nothing is cached. Returns false when no configuration verifies.
	EnsureVerified(ctx context.Context) (int, bool)

	// Invalidate drops the cached verified configuration so the next
	// EnsureVerified call reprobes from the top of the priority list.
	Invalidate()
}
