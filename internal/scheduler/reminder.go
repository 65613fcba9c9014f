package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"leadpath/internal/locale"
	"leadpath/internal/model"
)

// ReminderEngine dispatches initial and follow-up reminders to users with
// an unlocked, incomplete lesson.
type ReminderEngine struct {
	prefs    PreferenceStore
	lessons  LessonStore
	journeys JourneyStore
	contacts ContactStore
	gateway  Gateway
	dedupe   DedupeStore // optional; nil disables the double-send guard
	metrics  *Metrics
	logger   zerolog.Logger
}

// NewReminderEngine creates a reminder engine. dedupe may be nil, in which
// case overlapping ticks can double-send (the historical behavior).
func NewReminderEngine(
	prefs PreferenceStore,
	lessons LessonStore,
	journeys JourneyStore,
	contacts ContactStore,
	gateway Gateway,
	dedupe DedupeStore,
	metrics *Metrics,
	logger zerolog.Logger,
) *ReminderEngine {
	return &ReminderEngine{
		prefs:    prefs,
		lessons:  lessons,
		journeys: journeys,
		contacts: contacts,
		gateway:  gateway,
		dedupe:   dedupe,
		metrics:  metrics,
		logger:   logger,
	}
}

// RunReminderTick runs one reminder pass for the given UTC instant and
// returns the number of users notified. Gateway failures are isolated per
// user and never fail the tick.
func (e *ReminderEngine) RunReminderTick(ctx context.Context, nowUTC time.Time) (int, error) {
	start := time.Now()
	nowUTC = nowUTC.UTC()
	tickID := uuid.NewString()
	log := e.logger.With().Str("tick_id", tickID).Str("engine", "reminder").Logger()

	// A reminder can fire at its configured hour (initial) or two hours
	// later (follow-up), so a user's reminder_hour matches this tick when it
	// equals the local hour or local hour minus two.
	hoursByTZ := make(map[string][]int, len(locale.Codes()))
	for _, code := range locale.Codes() {
		hour, err := locale.LocalHour(nowUTC, code)
		if err != nil {
			return 0, err
		}
		hoursByTZ[code] = []int{hour, (hour - model.FollowUpDelayHours + 24) % 24}
	}

	candidates, err := e.prefs.MatchReminderCandidates(ctx, hoursByTZ)
	if err != nil {
		return 0, fmt.Errorf("select reminder candidates: %w", err)
	}

	sent := 0
	failed := 0
	for _, p := range candidates {
		select {
		case <-ctx.Done():
			return sent, ctx.Err()
		default:
		}

		ok, err := e.processCandidate(ctx, nowUTC, p, log)
		if err != nil {
			var cfgErr *locale.ConfigurationError
			if errors.As(err, &cfgErr) {
				e.metrics.incConfigError()
				log.Error().Int64("user_id", p.UserID).Str("timezone_code", cfgErr.Code).
					Msg("skipping user with unsupported timezone code")
			} else {
				e.metrics.incFailure()
				failed++
				log.Error().Err(err).Int64("user_id", p.UserID).Msg("reminder delivery failed")
			}
			continue
		}
		if ok {
			sent++
		}
	}

	e.metrics.observeTick("reminder", time.Since(start).Seconds())
	log.Info().
		Int("candidates", len(candidates)).
		Int("sent", sent).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("reminder tick completed")
	return sent, nil
}

// processCandidate runs the authoritative per-user check and sends at most
// one notification. Returns (false, nil) on a normal skip.
func (e *ReminderEngine) processCandidate(ctx context.Context, nowUTC time.Time, p *model.Preferences, log zerolog.Logger) (bool, error) {
	local, err := locale.LocalTime(nowUTC, p.TimezoneCode)
	if err != nil {
		return false, err
	}

	phase, ok := e.matchPhase(local.Hour(), p)
	if !ok {
		return false, nil
	}
	if !p.IsActiveDay(locale.WeekdayCode(local)) {
		e.metrics.incSkipped("inactive_day")
		return false, nil
	}

	journey, err := e.journeys.GetJourney(ctx, p.UserID)
	if err != nil {
		return false, fmt.Errorf("get journey: %w", err)
	}
	if !journey.Unlockable() {
		e.metrics.incSkipped("no_active_category")
		return false, nil
	}

	// Auto-stop: once every unlocked lesson is completed there is nothing
	// to remind about until a new lesson unlocks.
	available, err := e.lessons.CountAvailable(ctx, p.UserID, journey.CurrentCategory)
	if err != nil {
		return false, fmt.Errorf("count available: %w", err)
	}
	if available == 0 {
		e.metrics.incSkipped("no_available_lesson")
		return false, nil
	}

	if e.dedupe != nil {
		first, err := e.dedupe.FirstSend(ctx, p.UserID, phase, local.Format("2006-01-02"))
		if err != nil {
			// Fail open: a degraded dedupe store falls back to the
			// exact-hour matching guarantee instead of silencing reminders.
			log.Warn().Err(err).Int64("user_id", p.UserID).Msg("reminder dedupe unavailable")
		} else if !first {
			e.metrics.incSkipped("duplicate")
			return false, nil
		}
	}

	contact, err := e.contacts.GetContact(ctx, p.UserID)
	if err != nil {
		return false, fmt.Errorf("get contact: %w", err)
	}
	if contact == nil || contact.Email == "" {
		return false, fmt.Errorf("no delivery address for user %d", p.UserID)
	}

	subject, body := BuildReminderEmail(contact.Name, available, phase)
	if !e.gateway.SendEmail(ctx, contact.Email, subject, body) {
		return false, fmt.Errorf("email delivery failed for user %d", p.UserID)
	}
	e.metrics.incSent(string(phase), "email")

	// SMS rides along best-effort when the user has a phone number.
	if contact.Phone != "" {
		if e.gateway.SendSMS(ctx, contact.Phone, BuildReminderSMS(available, phase)) {
			e.metrics.incSent(string(phase), "sms")
		} else {
			e.metrics.incFailure()
			log.Warn().Int64("user_id", p.UserID).Msg("sms delivery failed")
		}
	}

	log.Info().
		Int64("user_id", p.UserID).
		Str("phase", string(phase)).
		Int("available_lessons", available).
		Msg("reminder sent")
	return true, nil
}

// matchPhase decides which reminder phase, if any, fires for this user at
// the given local hour.
func (e *ReminderEngine) matchPhase(localHour int, p *model.Preferences) (model.ReminderPhase, bool) {
	if !p.ReminderEnabled || p.ReminderType == model.ReminderOff {
		return "", false
	}
	if localHour == p.ReminderHour() {
		return model.PhaseInitial, true
	}
	if p.ReminderType == model.ReminderEscalate && localHour == model.FollowUpHour(p.ReminderHour()) {
		return model.PhaseFollowUp, true
	}
	return "", false
}
