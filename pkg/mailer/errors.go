package mailer

import "errors"

var (
	// ErrNoRecipient indicates no recipient was specified.
	ErrNoRecipient = errors.New("email must have a recipient")

	// ErrNoSubject indicates no subject was provided.
	ErrNoSubject = errors.New("email must have a subject")

	// ErrNoContent indicates no HTML content was provided.
	ErrNoContent = errors.New("email must have HTML content")

	// ErrNoProvider indicates the mailer was built without any provider.
	ErrNoProvider = errors.New("no delivery provider configured")

	// ErrNotVerified indicates no SMTP configuration could be verified,
	// so the fallback path is unavailable right now.
	ErrNotVerified = errors.New("no verified SMTP configuration available")

	// ErrSendFailed indicates every delivery attempt was exhausted.
	ErrSendFailed = errors.New("failed to send email")
)
