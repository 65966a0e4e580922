package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/hubatlas/backend/config"
)

// SMTPMailer sends escalation notices over SMTP. When no host is configured
// the mailer logs the notice instead of sending, so local setups work without
// a mail server.
type SMTPMailer struct {
	cfg     config.EmailConfig
	baseURL string
	logger  *zap.Logger
}

// NewSMTPMailer creates a mailer. baseURL is used to build approval links.
func NewSMTPMailer(cfg config.EmailConfig, baseURL string, logger *zap.Logger) *SMTPMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPMailer{cfg: cfg, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

// Send delivers one notification email.
func (m *SMTPMailer) Send(_ context.Context, n Notification) error {
	subject := fmt.Sprintf("Pending update request for %s", n.RecipientOrg.Name)
	body := m.body(n)

	if m.cfg.SMTPHost == "" {
		m.logger.Info("smtp not configured, logging notification instead",
			zap.String("to", n.Recipient.Email),
			zap.String("subject", subject))
		return nil
	}

	msg := strings.Join([]string{
		fmt.Sprintf("From: %s <%s>", m.cfg.FromName, m.cfg.FromAddress),
		"To: " + n.Recipient.Email,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", m.cfg.SMTPHost, m.cfg.SMTPPort)
	var auth smtp.Auth
	if m.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPass, m.cfg.SMTPHost)
	}
	return smtp.SendMail(addr, auth, m.cfg.FromAddress, []string{n.Recipient.Email}, []byte(msg))
}

func (m *SMTPMailer) body(n Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", n.Recipient.FullName)
	fmt.Fprintf(&b, "A %s request was submitted by %s and needs review.\n", n.Request.Kind, n.Request.SubmittedBy)
	fmt.Fprintf(&b, "It is scoped to %s %q.\n\n", n.RecipientOrg.OrgType, n.RecipientOrg.Name)
	if n.NoAdminsNotice {
		b.WriteString("You are receiving this because no admins or editors are assigned closer to the request's region.\n\n")
	}
	fmt.Fprintf(&b, "Approve directly: %s/requests/%s/approve?token=%s\n", m.baseURL, n.Request.ID, n.Request.Token)
	return b.String()
}
