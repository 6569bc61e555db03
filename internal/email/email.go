package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/resend/resend-go/v2"
)

// Sender delivers a login code to a mailbox.
type Sender interface {
	SendCode(ctx context.Context, to, code string, ttl time.Duration) error
}

// LogSender logs codes instead of sending them, used in ENV=local.
type LogSender struct {
	logger *slog.Logger
}

func (s *LogSender) SendCode(_ context.Context, to, code string, ttl time.Duration) error {
	s.logger.Info("login code email (local dev)", "to", to, "code", code, "expires_in", ttl)
	return nil
}

// ResendSender sends codes via the Resend API, used in staging/production.
type ResendSender struct {
	client *resend.Client
	from   string
}

func (s *ResendSender) SendCode(ctx context.Context, to, code string, ttl time.Duration) error {
	minutes := int(ttl.Minutes())
	plural := "s"
	if minutes == 1 {
		plural = ""
	}

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: "Your MSU Life login code",
		Html: fmt.Sprintf(
			`<p>Your login code is: <strong>%s</strong></p><p>This code expires in %d minute%s.</p>`,
			code, minutes, plural,
		),
	}
	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// NewSender returns a LogSender for ENV=local, ResendSender otherwise.
func NewSender(env, apiKey, from string, logger *slog.Logger) Sender {
	if env == "local" {
		return &LogSender{logger: logger}
	}
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}
