// Package notify delivers e-mail to users. The engines only depend on the
// Notifier interface; SMTP is one implementation behind it.
package notify

import "context"

type Notifier interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}
