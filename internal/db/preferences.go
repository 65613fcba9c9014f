package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"leadpath/internal/model"
)

const preferenceColumns = `user_id, timezone_code, active_days, lesson_time, lesson_hour,
	       reminder_enabled, reminder_time, reminder_hour, reminder_type,
	       created_at, updated_at`

// GetPreferences returns preferences for a user. If none exist, returns the
// onboarding defaults (migration default semantics).
func (db *DB) GetPreferences(ctx context.Context, userID int64) (*model.Preferences, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+preferenceColumns+`
		FROM user_preferences
		WHERE user_id = ?`, userID)

	p, err := scanPreferences(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.DefaultPreferences(userID), nil
		}
		return nil, err
	}
	return p, nil
}

// EnsurePreferences inserts onboarding defaults for a user if no row exists.
func (db *DB) EnsurePreferences(ctx context.Context, userID int64) error {
	p := model.DefaultPreferences(userID)
	_, err := db.ExecContext(ctx, `
		INSERT INTO user_preferences (user_id, timezone_code, active_days, lesson_time, lesson_hour,
		                              reminder_enabled, reminder_time, reminder_hour, reminder_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING`,
		userID, p.TimezoneCode, strings.Join(p.ActiveDays, ","), p.LessonTime, p.LessonHour(),
		p.ReminderEnabled, p.ReminderTime, p.ReminderHour(), p.ReminderType)
	return err
}

// UpsertPreferences creates or updates a user's preferences. The derived
// hour columns are recomputed so the candidate indexes stay correct.
func (db *DB) UpsertPreferences(ctx context.Context, p *model.Preferences) error {
	now := time.Now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO user_preferences (user_id, timezone_code, active_days, lesson_time, lesson_hour,
		                              reminder_enabled, reminder_time, reminder_hour, reminder_type,
		                              created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			timezone_code = excluded.timezone_code,
			active_days = excluded.active_days,
			lesson_time = excluded.lesson_time,
			lesson_hour = excluded.lesson_hour,
			reminder_enabled = excluded.reminder_enabled,
			reminder_time = excluded.reminder_time,
			reminder_hour = excluded.reminder_hour,
			reminder_type = excluded.reminder_type,
			updated_at = excluded.updated_at`,
		p.UserID, p.TimezoneCode, strings.Join(p.ActiveDays, ","), p.LessonTime, p.LessonHour(),
		p.ReminderEnabled, p.ReminderTime, p.ReminderHour(), p.ReminderType,
		now, now)
	return err
}

// MatchLessonCandidates returns users whose preferred lesson hour equals the
// current local hour for their own timezone. hourByTZ maps each supported
// timezone code to the local hour a tick instant represents there. Weekday
// filtering happens in the engine; this query only needs the indexed fields.
func (db *DB) MatchLessonCandidates(ctx context.Context, hourByTZ map[string]int) ([]*model.Preferences, error) {
	if len(hourByTZ) == 0 {
		return nil, nil
	}

	var preds []string
	var args []any
	for tz, hour := range hourByTZ {
		preds = append(preds, "(timezone_code = ? AND lesson_hour = ?)")
		args = append(args, tz, hour)
	}

	query := `
		SELECT ` + preferenceColumns + `
		FROM user_preferences
		WHERE ` + strings.Join(preds, " OR ")

	return db.queryPreferences(ctx, query, args)
}

// MatchReminderCandidates returns users whose reminder hour could fire this
// tick: either the current local hour (initial) or two hours earlier
// (follow-up window) for their own timezone, with reminders enabled and a
// non-zero reminder type. Over-selection is fine; the engine recomputes the
// authoritative match per user.
func (db *DB) MatchReminderCandidates(ctx context.Context, hoursByTZ map[string][]int) ([]*model.Preferences, error) {
	if len(hoursByTZ) == 0 {
		return nil, nil
	}

	var preds []string
	var args []any
	for tz, hours := range hoursByTZ {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(hours)), ",")
		preds = append(preds, fmt.Sprintf("(timezone_code = ? AND reminder_hour IN (%s))", placeholders))
		args = append(args, tz)
		for _, h := range hours {
			args = append(args, h)
		}
	}

	query := `
		SELECT ` + preferenceColumns + `
		FROM user_preferences
		WHERE reminder_enabled = 1 AND reminder_type != 0
		  AND (` + strings.Join(preds, " OR ") + `)`

	return db.queryPreferences(ctx, query, args)
}

func (db *DB) queryPreferences(ctx context.Context, query string, args []any) ([]*model.Preferences, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prefs []*model.Preferences
	for rows.Next() {
		p, err := scanPreferences(rows)
		if err != nil {
			return nil, err
		}
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPreferences(row rowScanner) (*model.Preferences, error) {
	var p model.Preferences
	var activeDays string
	var lessonHour, reminderHour int
	err := row.Scan(&p.UserID, &p.TimezoneCode, &activeDays, &p.LessonTime, &lessonHour,
		&p.ReminderEnabled, &p.ReminderTime, &reminderHour, &p.ReminderType,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if activeDays != "" {
		p.ActiveDays = strings.Split(activeDays, ",")
	}
	return &p, nil
}
