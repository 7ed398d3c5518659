package notification

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether enough is configured to send mail.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailSender mails the booking confirmation to the account holder. Only
// booking events produce mail.
type EmailSender struct {
	cfg       SMTPConfig
	templates *TemplateEngine
	send      sendMailFunc
}

func NewEmailSender(cfg SMTPConfig, templates *TemplateEngine) *EmailSender {
	if templates == nil {
		templates = NewTemplateEngine()
	}
	return &EmailSender{cfg: cfg, templates: templates, send: smtp.SendMail}
}

func (s *EmailSender) Channel() string { return "email" }

func (s *EmailSender) Send(ctx context.Context, ev Event) error {
	if ev.Kind != KindBooked {
		return nil
	}
	if ev.RecipientEmail == "" {
		return errors.New("no recipient address")
	}
	if strings.ContainsAny(ev.RecipientEmail, "\r\n") {
		return errors.New("recipient address contains a line break")
	}
	subject, body, err := s.templates.Render(TemplateConfirmation, confirmationData(ev))
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	msg := buildMessage(s.cfg.From, ev.RecipientEmail, subject, body)

	// net/smtp has no context support; run it aside so ctx bounds the wait.
	errc := make(chan error, 1)
	go func() { errc <- s.send(addr, auth, s.cfg.From, []string{ev.RecipientEmail}, msg) }()
	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("send mail: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var headerBreaks = strings.NewReplacer("\r", "", "\n", "")

// headerValue drops line breaks so a value cannot start a new header, and
// encodes non-ASCII text as an RFC 2047 word.
func headerValue(v string) string {
	return mime.QEncoding.Encode("utf-8", headerBreaks.Replace(v))
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + headerBreaks.Replace(from) + "\r\n")
	b.WriteString("To: " + headerBreaks.Replace(to) + "\r\n")
	b.WriteString("Subject: " + headerValue(subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}
