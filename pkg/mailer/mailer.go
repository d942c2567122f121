package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/fazamuttaqien/remitquota/internal/domain"
)

// Mailer delivers limit decision notifications.
type Mailer interface {
	SendLimitDecision(ctx context.Context, notice domain.DecisionNotice) error
}

// SMTPConfig holds the outbound mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type smtpMailer struct {
	config SMTPConfig
}

// SendLimitDecision implements Mailer
func (m *smtpMailer) SendLimitDecision(_ context.Context, notice domain.DecisionNotice) error {
	subject := fmt.Sprintf("Your transfer limit request #%d was %s",
		notice.RequestID, strings.ToLower(string(notice.Decision)))

	var body strings.Builder
	fmt.Fprintf(&body, "Hello %s,\r\n\r\n", notice.Name)
	fmt.Fprintf(&body, "Your transfer limit change request #%d has been %s.\r\n",
		notice.RequestID, strings.ToLower(string(notice.Decision)))
	if notice.Decision == domain.RequestApproved {
		fmt.Fprintf(&body, "\r\nYour new limits:\r\n")
		fmt.Fprintf(&body, "  Daily:   %.2f\r\n", notice.Limits.Daily)
		fmt.Fprintf(&body, "  Monthly: %.2f\r\n", notice.Limits.Monthly)
		fmt.Fprintf(&body, "  Single:  %.2f\r\n", notice.Limits.Single)
	}
	if notice.Comment != "" {
		fmt.Fprintf(&body, "\r\nReviewer comment: %s\r\n", notice.Comment)
	}

	message := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.config.From, notice.Recipient, subject, body.String())

	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)
	var auth smtp.Auth
	if m.config.Username != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}

	if err := smtp.SendMail(addr, auth, m.config.From, []string{notice.Recipient}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send decision mail: %w", err)
	}
	return nil
}

func NewSMTPMailer(config SMTPConfig) Mailer {
	return &smtpMailer{config: config}
}
