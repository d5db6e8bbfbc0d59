// Package notify delivers reminder digests.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mailgun/mailgun-go/v4"

	"billcal/internal/core"
)

// Message is a plain-text notification.
type Message struct {
	Subject string
	Text    string
}

// Sender delivers a message to the configured recipients.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

var ErrNoRecipients = errors.New("no recipients configured")

// MailgunSender sends email through the Mailgun API.
type MailgunSender struct {
	mg   mailgun.Mailgun
	from string
	to   []string
}

func NewMailgunSender(domain, apiKey, from string, to []string) *MailgunSender {
	return &MailgunSender{
		mg:   mailgun.NewMailgun(domain, apiKey),
		from: from,
		to:   to,
	}
}

func (s *MailgunSender) Send(ctx context.Context, msg Message) error {
	if len(s.to) == 0 {
		return ErrNoRecipients
	}
	message := s.mg.NewMessage(s.from, msg.Subject, msg.Text, s.to...)

	resp, id, err := s.mg.Send(ctx, message)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to send reminder via Mailgun", "error", err, "to", s.to, "mailgun_resp", resp)
		return core.Remote("mailgun send", fmt.Errorf("%w (response: %s)", err, resp))
	}
	slog.InfoContext(ctx, "Reminder sent via Mailgun", "to", s.to, "id", id)
	return nil
}

// LogSender writes messages to the log. Used when Mailgun is not configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "Reminder", "subject", msg.Subject, "text", msg.Text)
	return nil
}
