// Package mail is the email-dispatch collaborator: send a templated
// message to an address, get success or failure.
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"notedrive.org/internal/obs"
)

// TemplateContext carries the fields rendered into an invitation email.
type TemplateContext struct {
	DocumentTitle string
	InviterEmail  string
	Permission    string
	RedeemURL     string
	ExpiresAt     time.Time
}

// Mailer dispatches one templated email.
type Mailer interface {
	Send(ctx context.Context, to string, tc TemplateContext) error
}

// SMTPMailer sends over a plain SMTP relay.
type SMTPMailer struct {
	Addr string // host:port
	From string
	Auth smtp.Auth
}

// Send renders the invitation template and submits it to the relay.
func (m *SMTPMailer) Send(ctx context.Context, to string, tc TemplateContext) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("mail: recipient is required")
	}
	body := renderInvite(to, m.From, tc)
	if err := smtp.SendMail(m.Addr, m.Auth, m.From, []string{to}, body); err != nil {
		return fmt.Errorf("mail: send to %s: %w", to, err)
	}
	return nil
}

func renderInvite(to, from string, tc TemplateContext) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s shared %q with you\r\n", tc.InviterEmail, tc.DocumentTitle)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&b, "%s invited you to %s %q.\r\n\r\n", tc.InviterEmail, tc.Permission, tc.DocumentTitle)
	fmt.Fprintf(&b, "Open the link to accept: %s\r\n\r\n", tc.RedeemURL)
	fmt.Fprintf(&b, "The link expires %s.\r\n", tc.ExpiresAt.UTC().Format(time.RFC1123))
	return []byte(b.String())
}

// LogMailer writes the dispatch as a log line instead of sending. Used when
// no relay is configured (local runs); its Send never fails.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to string, tc TemplateContext) error {
	obs.LogEntry(map[string]any{
		"level":      "info",
		"msg":        "mail_dispatch",
		"to":         to,
		"document":   tc.DocumentTitle,
		"permission": tc.Permission,
		"redeem_url": tc.RedeemURL,
	})
	return nil
}
