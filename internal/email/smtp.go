package email

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender implements the Sender interface using a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func (s *SMTPSender) SendDealStatusEmail(ctx context.Context, toEmail, clientName, loanType, oldStatus, newStatus string) error {
	subject := fmt.Sprintf(subjectDealStatusFmt, statusLabel(newStatus))
	content, err := renderEmailTemplate("deal_status.html", dealStatusEmailData{
		baseEmailData: baseEmailData{
			Title:   "Application status updated",
			Heading: "Your application status changed",
		},
		ClientName: clientName,
		LoanType:   loanType,
		OldStatus:  statusLabel(oldStatus),
		NewStatus:  statusLabel(newStatus),
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendCallbackReminderEmail(ctx context.Context, toEmail, recipientName, title, scheduledAt, timeUntil string) error {
	subject := fmt.Sprintf(subjectCallbackReminderFmt, timeUntil)
	content, err := renderEmailTemplate("callback_reminder.html", callbackReminderEmailData{
		baseEmailData: baseEmailData{
			Title:   "Callback reminder",
			Heading: "Upcoming callback",
		},
		RecipientName: recipientName,
		CallbackTitle: title,
		ScheduledAt:   scheduledAt,
		TimeUntil:     timeUntil,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendNotificationEmail(ctx context.Context, toEmail, title, message string) error {
	content, err := renderEmailTemplate("notification.html", notificationEmailData{
		baseEmailData: baseEmailData{
			Title:   title,
			Heading: title,
		},
		Message: message,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, title, content)
}
