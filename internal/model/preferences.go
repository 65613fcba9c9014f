package model

import (
	"strconv"
	"strings"
	"time"
)

// Reminder types. The value counts how many reminders a user gets per
// available lesson day: none, one, or initial plus follow-up.
const (
	ReminderOff      = 0
	ReminderSingle   = 1
	ReminderEscalate = 2
)

// FollowUpDelayHours is the gap between the initial and follow-up reminder.
const FollowUpDelayHours = 2

// ReminderPhase labels which firing a notification represents.
type ReminderPhase string

const (
	PhaseInitial  ReminderPhase = "initial"
	PhaseFollowUp ReminderPhase = "followup"
	// PhaseSupport is the daily struggling-user outreach, deduped on the
	// same (user, phase, local date) key as the reminder phases.
	PhaseSupport ReminderPhase = "support"
)

// FollowUpHour returns the local hour at which the follow-up reminder fires
// for a given initial reminder hour.
func FollowUpHour(reminderHour int) int {
	return (reminderHour + FollowUpDelayHours) % 24
}

// Preferences holds a user's scheduling preferences. Created with defaults
// at onboarding; mutated only by the user or migration defaults.
type Preferences struct {
	UserID          int64
	TimezoneCode    string
	ActiveDays      []string
	LessonTime      string // HH:MM, hour granularity is what matters
	ReminderEnabled bool
	ReminderTime    string // HH:MM
	ReminderType    int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DefaultPreferences returns onboarding defaults for a user.
func DefaultPreferences(userID int64) *Preferences {
	return &Preferences{
		UserID:          userID,
		TimezoneCode:    "ET",
		ActiveDays:      []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"},
		LessonTime:      "09:00",
		ReminderEnabled: true,
		ReminderTime:    "14:00",
		ReminderType:    ReminderSingle,
	}
}

// LessonHour returns the hour component of the preferred lesson time.
func (p *Preferences) LessonHour() int {
	return parseHour(p.LessonTime)
}

// ReminderHour returns the hour component of the preferred reminder time.
func (p *Preferences) ReminderHour() int {
	return parseHour(p.ReminderTime)
}

// IsActiveDay checks whether the weekday code is in the user's active days.
func (p *Preferences) IsActiveDay(weekday string) bool {
	for _, d := range p.ActiveDays {
		if d == weekday {
			return true
		}
	}
	return false
}

// parseHour extracts the hour from an HH:MM string. Malformed values map to
// hour 0, matching the stored default rather than failing a whole tick.
func parseHour(hhmm string) int {
	h, _, ok := strings.Cut(hhmm, ":")
	if !ok {
		h = hhmm
	}
	hour, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || hour < 0 || hour > 23 {
		return 0
	}
	return hour
}

// Contact is the delivery address book entry the notification gateway needs.
type Contact struct {
	UserID int64
	Name   string
	Email  string
	Phone  string
}
