// Package email implements the outbound mail collaborator. Delivery failures
// are always caught and logged by callers, never propagated to end users.
package email

import (
	"context"

	"loanflow_backend/platform/config"
)

// Sender is the interface for sending transactional emails.
type Sender interface {
	// SendDealStatusEmail informs a client that their deal moved to a new status.
	SendDealStatusEmail(ctx context.Context, toEmail, clientName, loanType, oldStatus, newStatus string) error
	// SendCallbackReminderEmail reminds a participant of an upcoming callback.
	SendCallbackReminderEmail(ctx context.Context, toEmail, recipientName, title, scheduledAt, timeUntil string) error
	// SendNotificationEmail delivers a generic notification as email.
	SendNotificationEmail(ctx context.Context, toEmail, title, message string) error
}

// NewSender returns the configured Sender implementation. When email is
// disabled the returned sender silently drops all messages.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return &noopSender{}, nil
	}

	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	), nil
}

type noopSender struct{}

func (n *noopSender) SendDealStatusEmail(ctx context.Context, toEmail, clientName, loanType, oldStatus, newStatus string) error {
	return nil
}

func (n *noopSender) SendCallbackReminderEmail(ctx context.Context, toEmail, recipientName, title, scheduledAt, timeUntil string) error {
	return nil
}

func (n *noopSender) SendNotificationEmail(ctx context.Context, toEmail, title, message string) error {
	return nil
}
