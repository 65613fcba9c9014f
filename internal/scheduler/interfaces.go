// Package scheduler contains the lesson unlock and reminder engines. Both
// entry points take an explicit UTC instant so an external tick source (cron)
// can drive them and tests can pin the clock.
package scheduler

import (
	"context"
	"errors"

	"leadpath/internal/db"
	"leadpath/internal/model"
)

// PreferenceStore selects and reads user scheduling preferences. Candidate
// selection must be backed by indexed preference fields, never a full user
// scan.
type PreferenceStore interface {
	// MatchLessonCandidates returns users whose preferred lesson hour equals
	// the tick's local hour for their own timezone code.
	MatchLessonCandidates(ctx context.Context, hourByTZ map[string]int) ([]*model.Preferences, error)

	// MatchReminderCandidates returns users whose reminder hour falls in the
	// tick's target hour set for their own timezone code, with reminders on.
	MatchReminderCandidates(ctx context.Context, hoursByTZ map[string][]int) ([]*model.Preferences, error)

	// GetPreferences returns one user's preferences, onboarding defaults
	// when none are stored. Never nil on a nil error.
	GetPreferences(ctx context.Context, userID int64) (*model.Preferences, error)
}

// SupportStore selects each user's oldest available lesson for the daily
// struggling-user pass.
type SupportStore interface {
	OldestAvailable(ctx context.Context) ([]db.StaleAvailable, error)
}

// LessonStore reads and mutates per-user lesson instances. The engines are
// the only writers of status/unlocked_at.
type LessonStore interface {
	OrderedInstances(ctx context.Context, userID int64, category string) ([]model.UserLessonInstance, error)
	CountAvailable(ctx context.Context, userID int64, category string) (int, error)
	UnlockInstances(ctx context.Context, unlocks []db.Unlock) (int, error)
}

// JourneyStore reads the user's current category.
type JourneyStore interface {
	GetJourney(ctx context.Context, userID int64) (*model.Journey, error)
}

// ContactStore resolves delivery addresses for the notification gateway.
type ContactStore interface {
	GetContact(ctx context.Context, userID int64) (*model.Contact, error)
}

// Gateway delivers notifications. Implementations are best-effort: expected
// failures (network, auth) return false, never panic.
type Gateway interface {
	SendEmail(ctx context.Context, to, subject, body string) bool
	SendSMS(ctx context.Context, to, message string) bool
}

// DedupeStore guards against double-sending a reminder phase when ticks
// overlap. FirstSend atomically records (user, phase, local date) and
// reports whether this caller won the slot.
type DedupeStore interface {
	FirstSend(ctx context.Context, userID int64, phase model.ReminderPhase, localDate string) (bool, error)
}

// ErrPersistence wraps a failed batch write; the whole tick is rolled back
// and retried on the next invocation.
var ErrPersistence = errors.New("persistence failure")
