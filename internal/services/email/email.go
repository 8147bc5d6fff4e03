// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html/template"
	"log/slog"
	"math"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/wneessen/go-mail"

	"codeberg.org/oliverandrich/bizcard-snap/internal/config"
	"codeberg.org/oliverandrich/bizcard-snap/internal/i18n"
)

// sendAttempts is the total number of delivery attempts per message.
const sendAttempts = 3

var htmlBody = template.Must(template.New("reset").Parse(`<html>
<body style="font-family: sans-serif;">
<p>{{.Intro}}</p>
<p>{{.CodeLine}}</p>
<p style="font-size: 24px; font-weight: bold; letter-spacing: 4px;">{{.Code}}</p>
<p>{{.Expiry}}</p>
<p style="color: #666;">{{.Ignore}}</p>
</body>
</html>`))

// Service sends mail via SMTP using go-mail.
type Service struct {
	cfg     *config.SMTPConfig
	backoff func() retry.Backoff
}

// NewService creates a new email service.
func NewService(cfg *config.SMTPConfig) (*Service, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}

	return &Service{
		cfg: cfg,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(sendAttempts-1, retry.NewExponential(500*time.Millisecond))
		},
	}, nil
}

// HashToken computes the SHA256 hash of a token.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// Message is a localized mail with a plain text body and an HTML alternative.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// ResetCodeMessage renders the password reset mail in the locale of ctx.
func ResetCodeMessage(ctx context.Context, code string, ttl time.Duration) (Message, error) {
	minutes := int(math.Ceil(ttl.Minutes()))
	data := map[string]any{
		"Intro":    i18n.T(ctx, "reset_email_intro"),
		"CodeLine": i18n.TData(ctx, "reset_email_code", map[string]any{"Code": code}),
		"Code":     code,
		"Expiry":   i18n.TPlural(ctx, "reset_email_expiry", minutes),
		"Ignore":   i18n.T(ctx, "reset_email_ignore"),
	}

	var html bytes.Buffer
	if err := htmlBody.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("rendering html body: %w", err)
	}

	text := fmt.Sprintf("%s\n\n%s\n\n%s\n\n%s\n",
		data["Intro"], data["CodeLine"], data["Expiry"], data["Ignore"])

	return Message{
		Subject: i18n.T(ctx, "reset_email_subject"),
		Text:    text,
		HTML:    html.String(),
	}, nil
}

// SendResetCode mails a password reset code to the given address.
func (s *Service) SendResetCode(ctx context.Context, to, code string, ttl time.Duration) error {
	msg, err := ResetCodeMessage(ctx, code, ttl)
	if err != nil {
		return err
	}
	return s.send(ctx, to, msg)
}

// send delivers msg, retrying transient failures with exponential backoff.
func (s *Service) send(ctx context.Context, to string, m Message) error {
	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(to); err != nil {
		return fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(m.Subject)
	msg.SetBodyString(mail.TypeTextPlain, m.Text)
	if m.HTML != "" {
		msg.AddAlternativeString(mail.TypeTextHTML, m.HTML)
	}

	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	attempt := 0
	err = retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		attempt++
		if err := client.DialAndSendWithContext(ctx, msg); err != nil {
			slog.Warn("email_send_failed", "to", to, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	slog.Info("email_sent", "to", to, "subject", m.Subject)
	return nil
}

func (s *Service) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
	}

	// Configure TLS based on config and port
	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		// Use implicit TLS (SSL) for port 465, STARTTLS for others
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	// Add authentication if credentials are provided
	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	return opts
}

// LogSender writes reset codes to the log instead of mailing them.
// It stands in when no SMTP server is configured.
type LogSender struct{}

// SendResetCode logs the code at warn level.
func (LogSender) SendResetCode(ctx context.Context, to, code string, ttl time.Duration) error {
	msg, err := ResetCodeMessage(ctx, code, ttl)
	if err != nil {
		return err
	}
	slog.Warn("email_not_configured", "to", to, "subject", msg.Subject, "code", code)
	return nil
}
