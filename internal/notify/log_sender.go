package notify

import (
	"context"
	"log/slog"
)

// LogSender is a Notifier for local runs without an SMTP server: it logs the
// mail instead of delivering it and always reports success.
type LogSender struct{}

func (LogSender) SendEmail(ctx context.Context, to, subject, body string) error {
	slog.InfoContext(ctx, "Mail delivery disabled, logging instead",
		"to", to,
		"subject", subject,
		"body_length", len(body))
	return nil
}

var _ Notifier = LogSender{}
