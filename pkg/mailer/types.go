package mailer

import "fmt"

// Email represents a fully-rendered notification ready for delivery.
// Content rendering happens upstream; the mailer only transports it.
type Email struct {
	ID      string // correlation id, generated on first delivery attempt if empty
	To      string // recipient address (exactly one)
	ToName  string // optional display name for the recipient
	Subject string
	HTML    string // rendered HTML body
	Text    string // optional plain text alternative
}

// Recipient formats a name and email into RFC 5322 address format.
// Returns "Name <email>" if name is provided, otherwise just email.
func Recipient(name, email string) string {
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", name, email)
}

// Result describes the outcome of a single Deliver call.
// It is created fresh per email and never persisted.
type Result struct {
	Success       bool
	Provider      string // name of the provider that handled (or last tried) the email
	ConfigOrdinal int    // 1-based SMTP configuration ordinal, 0 for API deliveries
	MessageID     string // provider message id when available
	Attempts      int    // send attempts actually performed
	Err           error  // terminal error when Success is false
}
