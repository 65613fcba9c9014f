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

// UnlockEngine advances the next eligible lesson for users whose local time
// matches their preferred unlock hour and weekday.
type UnlockEngine struct {
	prefs    PreferenceStore
	lessons  LessonStore
	journeys JourneyStore
	metrics  *Metrics
	logger   zerolog.Logger
}

// NewUnlockEngine creates an unlock engine.
func NewUnlockEngine(
	prefs PreferenceStore,
	lessons LessonStore,
	journeys JourneyStore,
	metrics *Metrics,
	logger zerolog.Logger,
) *UnlockEngine {
	return &UnlockEngine{
		prefs:    prefs,
		lessons:  lessons,
		journeys: journeys,
		metrics:  metrics,
		logger:   logger,
	}
}

// RunUnlockTick runs one unlock pass for the given UTC instant. It returns
// the number of instances actually transitioned to available. The tick is
// idempotent: rerunning it for the same instant is a no-op.
func (e *UnlockEngine) RunUnlockTick(ctx context.Context, nowUTC time.Time) (int, error) {
	start := time.Now()
	nowUTC = nowUTC.UTC()
	tickID := uuid.NewString()
	log := e.logger.With().Str("tick_id", tickID).Str("engine", "unlock").Logger()

	// The supported timezone set is tiny; precompute each code's local hour
	// once and let the preference index do the candidate narrowing.
	hourByTZ := make(map[string]int, len(locale.Codes()))
	for _, code := range locale.Codes() {
		hour, err := locale.LocalHour(nowUTC, code)
		if err != nil {
			return 0, err
		}
		hourByTZ[code] = hour
	}

	candidates, err := e.prefs.MatchLessonCandidates(ctx, hourByTZ)
	if err != nil {
		return 0, fmt.Errorf("select unlock candidates: %w", err)
	}
	e.metrics.setUnlockCandidates(len(candidates))

	var batch []db.Unlock
	skipped := 0
	for _, p := range candidates {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}

		unlock, err := e.eligibleUnlock(ctx, nowUTC, p)
		if err != nil {
			var cfgErr *locale.ConfigurationError
			if errors.As(err, &cfgErr) {
				e.metrics.incConfigError()
				log.Error().Int64("user_id", p.UserID).Str("timezone_code", cfgErr.Code).
					Msg("skipping user with unsupported timezone code")
			} else {
				log.Error().Err(err).Int64("user_id", p.UserID).Msg("unlock eligibility check failed")
			}
			skipped++
			continue
		}
		if unlock == nil {
			skipped++
			continue
		}
		batch = append(batch, *unlock)
	}

	unlocked := 0
	if len(batch) > 0 {
		unlocked, err = e.lessons.UnlockInstances(ctx, batch)
		if err != nil {
			// All-or-nothing: the tick retries next invocation with no
			// duplicated side effects.
			return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
	}

	e.metrics.incUnlocked(unlocked)
	e.metrics.observeTick("unlock", time.Since(start).Seconds())
	log.Info().
		Int("candidates", len(candidates)).
		Int("unlocked", unlocked).
		Int("skipped", skipped).
		Dur("duration", time.Since(start)).
		Msg("unlock tick completed")
	return unlocked, nil
}

// eligibleUnlock decides whether the user's next lesson should unlock this
// tick. A nil result with nil error is a normal skip (wrong hour or day,
// predecessor incomplete, nothing locked, no active category).
func (e *UnlockEngine) eligibleUnlock(ctx context.Context, nowUTC time.Time, p *model.Preferences) (*db.Unlock, error) {
	// Coarse candidate selection can over-select; recompute this user's own
	// local time as the authoritative check.
	local, err := locale.LocalTime(nowUTC, p.TimezoneCode)
	if err != nil {
		return nil, err
	}
	if local.Hour() != p.LessonHour() {
		return nil, nil
	}
	if !p.IsActiveDay(locale.WeekdayCode(local)) {
		return nil, nil
	}

	journey, err := e.journeys.GetJourney(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("get journey: %w", err)
	}
	if !journey.Unlockable() {
		return nil, nil
	}

	instances, err := e.lessons.OrderedInstances(ctx, p.UserID, journey.CurrentCategory)
	if err != nil {
		return nil, fmt.Errorf("get instances: %w", err)
	}

	// First locked instance in template order. Instances for the active
	// category are materialized by the journey collaborator; none existing,
	// or all completed, means nothing to do this tick.
	next := -1
	for i := range instances {
		if instances[i].Status == model.StatusLocked {
			next = i
			break
		}
	}
	if next < 0 {
		return nil, nil
	}

	// Dependency gate: the immediate predecessor by total order must be
	// completed. Not an error, expected steady state.
	if next > 0 && instances[next-1].Status != model.StatusCompleted {
		return nil, nil
	}

	return &db.Unlock{InstanceID: instances[next].ID, UnlockedAt: local}, nil
}
