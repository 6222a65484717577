// Package notify delivers sign-in codes to users over SMS or email.
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"

	"otp_auth/internal/identifier"
)

// Notifier delivers message to destination. Delivery is best effort; the
// caller decides whether an error is fatal.
type Notifier interface {
	Send(ctx context.Context, destination, message string) error
}

// EmailLogger is the email channel. It has no provider behind it and only
// records that a message would have been sent.
type EmailLogger struct{}

func (EmailLogger) Send(ctx context.Context, destination, message string) error {
	log.Printf("INFO: email to %s queued (%d bytes, delivery stubbed)", maskEmail(destination), len(message))
	return nil
}

// Router picks a channel by the kind of destination.
type Router struct {
	Email Notifier
	SMS   Notifier
}

// NewRouter returns a Router using the log-only email channel and sms for
// phone numbers.
func NewRouter(sms Notifier) *Router {
	return &Router{Email: EmailLogger{}, SMS: sms}
}

func (r *Router) Send(ctx context.Context, destination, message string) error {
	id, err := identifier.Parse(destination)
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	var ch Notifier
	switch id.Kind {
	case identifier.Email:
		ch = r.Email
	case identifier.Phone:
		ch = r.SMS
	}
	if ch == nil {
		return fmt.Errorf("notify: no %s channel configured", id.Kind)
	}
	return ch.Send(ctx, id.Value, message)
}

func maskEmail(s string) string {
	at := strings.IndexByte(s, '@')
	if at <= 1 {
		return s
	}
	return s[:1] + strings.Repeat("*", at-1) + s[at:]
}
