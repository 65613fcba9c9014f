package notify

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Dispatcher combines an email and an SMS transport behind one gateway and
// paces sends with a shared rate limiter so a large tick cannot flood the
// providers.
type Dispatcher struct {
	email   emailSender
	sms     smsSender
	limiter *rate.Limiter
	logger  zerolog.Logger
}

type emailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) bool
}

type smsSender interface {
	SendSMS(ctx context.Context, to, message string) bool
}

// NewDispatcher creates a dispatcher. perSecond <= 0 disables pacing.
func NewDispatcher(email emailSender, sms smsSender, perSecond float64, burst int, logger zerolog.Logger) *Dispatcher {
	var limiter *rate.Limiter
	if perSecond > 0 {
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
	return &Dispatcher{email: email, sms: sms, limiter: limiter, logger: logger}
}

func (d *Dispatcher) wait(ctx context.Context) bool {
	if d.limiter == nil {
		return true
	}
	if err := d.limiter.Wait(ctx); err != nil {
		d.logger.Warn().Err(err).Msg("send cancelled while rate limited")
		return false
	}
	return true
}

// SendEmail paces and forwards to the email transport.
func (d *Dispatcher) SendEmail(ctx context.Context, to, subject, body string) bool {
	if d.email == nil || !d.wait(ctx) {
		return false
	}
	return d.email.SendEmail(ctx, to, subject, body)
}

// SendSMS paces and forwards to the SMS transport.
func (d *Dispatcher) SendSMS(ctx context.Context, to, message string) bool {
	if d.sms == nil || !d.wait(ctx) {
		return false
	}
	return d.sms.SendSMS(ctx, to, message)
}
