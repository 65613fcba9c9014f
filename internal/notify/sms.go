package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// SMSConfig holds the SMS provider settings (Twilio-compatible REST API).
type SMSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BaseURL    string `yaml:"base_url"`
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	From       string `yaml:"from"`
}

// RESTSMSGateway sends text messages through a provider REST API.
type RESTSMSGateway struct {
	config     SMSConfig
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewRESTSMSGateway creates an SMS gateway.
func NewRESTSMSGateway(config SMSConfig, logger zerolog.Logger) *RESTSMSGateway {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.twilio.com/2010-04-01"
	}
	return &RESTSMSGateway{
		config:     config,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// SendSMS delivers one text message. Returns false on any transport or
// provider error.
func (g *RESTSMSGateway) SendSMS(ctx context.Context, to, message string) bool {
	if !g.config.Enabled || g.config.AccountSID == "" {
		g.logger.Warn().Msg("sms gateway not configured")
		return false
	}
	if to == "" {
		g.logger.Warn().Msg("sms skipped, no phone number")
		return false
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json",
		strings.TrimSuffix(g.config.BaseURL, "/"), url.PathEscape(g.config.AccountSID))

	form := url.Values{}
	form.Set("To", NormalizePhone(to))
	form.Set("From", g.config.From)
	form.Set("Body", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		g.logger.Error().Err(err).Msg("sms request build failed")
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(g.config.AccountSID, g.config.AuthToken)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Error().Err(err).Str("to", to).Msg("sms send failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.logger.Error().Int("status", resp.StatusCode).Str("to", to).Msg("sms provider rejected message")
		return false
	}
	return true
}

// SendEmail is unsupported on the SMS gateway.
func (g *RESTSMSGateway) SendEmail(_ context.Context, _, _, _ string) bool {
	return false
}

// NormalizePhone formats a raw phone number for the provider: strips
// separators and prefixes a country code when missing. Local numbers
// starting 01 with 11 digits are Bangladeshi (+880); anything else
// defaults to +1.
func NormalizePhone(raw string) string {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(raw)
	if strings.HasPrefix(cleaned, "+") {
		return cleaned
	}
	if strings.HasPrefix(cleaned, "01") && len(cleaned) == 11 {
		return "+880" + cleaned[1:]
	}
	return "+1" + cleaned
}
