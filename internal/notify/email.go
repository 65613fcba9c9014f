// Package notify implements the notification gateway over SMTP email and a
// REST SMS provider. Gateways are best-effort: expected failures are logged
// and reported as false, never raised.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// SMTPConfig holds the email transport settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// SMTPGateway sends email through a plain SMTP relay.
type SMTPGateway struct {
	config SMTPConfig
	logger zerolog.Logger
}

// NewSMTPGateway creates an email gateway.
func NewSMTPGateway(config SMTPConfig, logger zerolog.Logger) *SMTPGateway {
	if config.Port == 0 {
		config.Port = 587
	}
	return &SMTPGateway{config: config, logger: logger}
}

// SendEmail delivers one message. Returns false on any transport error.
func (g *SMTPGateway) SendEmail(ctx context.Context, to, subject, body string) bool {
	if g.config.Host == "" {
		g.logger.Warn().Msg("email gateway not configured")
		return false
	}

	msg := strings.Join([]string{
		"From: " + g.config.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", g.config.Host, g.config.Port)
	var auth smtp.Auth
	if g.config.Username != "" {
		auth = smtp.PlainAuth("", g.config.Username, g.config.Password, g.config.Host)
	}

	// net/smtp has no context support; run the send in a goroutine so a
	// cancelled tick is not pinned behind a stuck relay.
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, g.config.From, []string{to}, []byte(msg))
	}()

	select {
	case err := <-done:
		if err != nil {
			g.logger.Error().Err(err).Str("to", to).Msg("email send failed")
			return false
		}
		return true
	case <-ctx.Done():
		g.logger.Error().Err(ctx.Err()).Str("to", to).Msg("email send cancelled")
		return false
	case <-time.After(30 * time.Second):
		g.logger.Error().Str("to", to).Msg("email send timed out")
		return false
	}
}

// SendSMS is unsupported on the email gateway.
func (g *SMTPGateway) SendSMS(_ context.Context, _, _ string) bool {
	return false
}
