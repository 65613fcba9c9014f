package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"leadpath/internal/db"
	"leadpath/internal/locale"
	"leadpath/internal/model"
)

// SupportEngine emails users who keep missing their current lesson. A lesson
// counts as missed once per active day it stays available without being
// completed; users at or past the threshold get a check-in email. The engine
// runs daily, not hourly.
type SupportEngine struct {
	prefs     PreferenceStore
	stale     SupportStore
	contacts  ContactStore
	gateway   Gateway
	dedupe    DedupeStore // optional; nil disables the double-send guard
	minMisses int
	metrics   *Metrics
	logger    zerolog.Logger
}

// NewSupportEngine creates a support engine. minMisses <= 0 falls back to the
// default threshold of 3 missed active days.
func NewSupportEngine(
	prefs PreferenceStore,
	stale SupportStore,
	contacts ContactStore,
	gateway Gateway,
	dedupe DedupeStore,
	minMisses int,
	metrics *Metrics,
	logger zerolog.Logger,
) *SupportEngine {
	if minMisses <= 0 {
		minMisses = 3
	}
	return &SupportEngine{
		prefs:     prefs,
		stale:     stale,
		contacts:  contacts,
		gateway:   gateway,
		dedupe:    dedupe,
		minMisses: minMisses,
		metrics:   metrics,
		logger:    logger,
	}
}

// RunSupportTick runs one support pass for the given UTC instant and returns
// the number of users emailed. Delivery failures are isolated per user.
func (e *SupportEngine) RunSupportTick(ctx context.Context, nowUTC time.Time) (int, error) {
	start := time.Now()
	nowUTC = nowUTC.UTC()
	tickID := uuid.NewString()
	log := e.logger.With().Str("tick_id", tickID).Str("engine", "support").Logger()

	items, err := e.stale.OldestAvailable(ctx)
	if err != nil {
		return 0, fmt.Errorf("select stale lessons: %w", err)
	}

	sent := 0
	failed := 0
	for _, item := range items {
		select {
		case <-ctx.Done():
			return sent, ctx.Err()
		default:
		}

		ok, err := e.processStale(ctx, nowUTC, item, log)
		if err != nil {
			var cfgErr *locale.ConfigurationError
			if errors.As(err, &cfgErr) {
				e.metrics.incConfigError()
				log.Error().Int64("user_id", item.UserID).Str("timezone_code", cfgErr.Code).
					Msg("skipping user with unsupported timezone code")
			} else {
				e.metrics.incFailure()
				failed++
				log.Error().Err(err).Int64("user_id", item.UserID).Msg("support email failed")
			}
			continue
		}
		if ok {
			sent++
		}
	}

	e.metrics.observeTick("support", time.Since(start).Seconds())
	log.Info().
		Int("candidates", len(items)).
		Int("sent", sent).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("support tick completed")
	return sent, nil
}

// processStale decides whether one user's oldest available lesson is stale
// enough to warrant outreach, and sends at most one email.
func (e *SupportEngine) processStale(ctx context.Context, nowUTC time.Time, item db.StaleAvailable, log zerolog.Logger) (bool, error) {
	p, err := e.prefs.GetPreferences(ctx, item.UserID)
	if err != nil {
		return false, fmt.Errorf("get preferences: %w", err)
	}

	zone, err := locale.Zone(p.TimezoneCode)
	if err != nil {
		return false, err
	}
	localNow := nowUTC.In(zone)

	missed := missedActiveDays(item.UnlockedAt.In(zone), localNow, p)
	if missed < e.minMisses {
		e.metrics.incSkipped("below_miss_threshold")
		return false, nil
	}

	if e.dedupe != nil {
		first, err := e.dedupe.FirstSend(ctx, item.UserID, model.PhaseSupport, localNow.Format("2006-01-02"))
		if err != nil {
			log.Warn().Err(err).Int64("user_id", item.UserID).Msg("support dedupe unavailable")
		} else if !first {
			e.metrics.incSkipped("duplicate")
			return false, nil
		}
	}

	contact, err := e.contacts.GetContact(ctx, item.UserID)
	if err != nil {
		return false, fmt.Errorf("get contact: %w", err)
	}
	if contact == nil || contact.Email == "" {
		return false, fmt.Errorf("no delivery address for user %d", item.UserID)
	}

	subject, body := BuildSupportEmail(contact.Name)
	if !e.gateway.SendEmail(ctx, contact.Email, subject, body) {
		return false, fmt.Errorf("email delivery failed for user %d", item.UserID)
	}
	e.metrics.incSent(string(model.PhaseSupport), "email")

	log.Info().
		Int64("user_id", item.UserID).
		Int("missed_days", missed).
		Msg("support email sent")
	return true, nil
}

// missedActiveDays counts the user's active days from the unlock date up to
// but not including today, both taken in the user's own zone.
func missedActiveDays(localUnlock, localNow time.Time, p *model.Preferences) int {
	day := time.Date(localUnlock.Year(), localUnlock.Month(), localUnlock.Day(), 0, 0, 0, 0, localNow.Location())
	today := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, localNow.Location())

	missed := 0
	for ; day.Before(today); day = day.AddDate(0, 0, 1) {
		if p.IsActiveDay(locale.WeekdayCode(day)) {
			missed++
		}
	}
	return missed
}
