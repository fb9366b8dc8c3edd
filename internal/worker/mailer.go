package worker

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/teachniche/backend/config"
)

// Mailer sends purchase receipt emails over SMTP. When no SMTP host is
// configured, Send reports success without doing anything so local setups
// work without a mail relay.
type Mailer struct {
	cfg config.EmailConfig
}

// NewMailer creates a mailer from email config.
func NewMailer(cfg config.EmailConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

// Configured reports whether an SMTP relay is set up.
func (m *Mailer) Configured() bool { return m.cfg.SMTPHost != "" }

// Send delivers a plain-text email to one recipient.
func (m *Mailer) Send(to, subject, body string) error {
	if !m.Configured() {
		return nil
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.SMTPHost, m.cfg.SMTPPort)
	var auth smtp.Auth
	if m.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPass, m.cfg.SMTPHost)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", m.cfg.FromName, m.cfg.FromAddress)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	if err := smtp.SendMail(addr, auth, m.cfg.FromAddress, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
