// Package resend implements the API delivery provider over the Resend
// HTTPS API.
package resend

import (
	"context"
	"fmt"
	"time"

	"github.com/resend/resend-go/v3"

	"github.com/urbansetu/notifier/pkg/mailer"
)

// Sender implements mailer.Sender using the Resend API.
type Sender struct {
	client *resend.Client
	config Config
}

// New creates a new Resend sender.
func New(cfg Config) *Sender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Sender{
		client: resend.NewClient(cfg.APIKey),
		config: cfg,
	}
}

// Name implements mailer.Sender.
func (s *Sender) Name() string {
	return "resend"
}

// Send implements mailer.Sender. One API call with its own timeout;
// the orchestrator never retries this path.
func (s *Sender) Send(ctx context.Context, email *mailer.Email) (string, error) {
	from := s.config.SenderEmail
	if s.config.SenderName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.SenderName, s.config.SenderEmail)
	}

	req := &resend.SendEmailRequest{
		From:    from,
		To:      []string{mailer.Recipient(email.ToName, email.To)},
		Subject: email.Subject,
		Html:    email.HTML,
		Text:    email.Text,
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	sent, err := s.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		return "", fmt.Errorf("resend: failed to send email: %w", err)
	}

	return sent.Id, nil
}
