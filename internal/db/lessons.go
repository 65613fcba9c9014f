package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"leadpath/internal/model"
)

// ErrInstanceNotFound is returned by ForceUnlock when the lesson instance
// does not exist for the user.
var ErrInstanceNotFound = errors.New("lesson instance not found")

const instanceColumns = `id, user_id, category, week_number, day_number, status, points_earned,
	       unlocked_at, started_at, completed_at, created_at, updated_at`

// Unlock is one pending locked -> available transition for a tick batch.
// UnlockedAt carries the user's local time for display.
type Unlock struct {
	InstanceID int64
	UnlockedAt time.Time
}

// OrderedInstances returns a user's lesson instances for a category in
// template order (week, day ascending).
func (db *DB) OrderedInstances(ctx context.Context, userID int64, category string) ([]model.UserLessonInstance, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+instanceColumns+`
		FROM user_lesson_instances
		WHERE user_id = ? AND category = ?
		ORDER BY week_number ASC, day_number ASC`, userID, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instances []model.UserLessonInstance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, *inst)
	}
	return instances, rows.Err()
}

// CountAvailable returns the number of unlocked-but-incomplete instances a
// user has in a category.
func (db *DB) CountAvailable(ctx context.Context, userID int64, category string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM user_lesson_instances
		WHERE user_id = ? AND category = ? AND status = ?`,
		userID, category, model.StatusAvailable).Scan(&count)
	return count, err
}

// UnlockInstances applies a tick's unlock batch in one transaction. Each
// transition is a conditional update so overlapping ticks racing on the same
// instance cannot double-unlock: the loser sees zero rows affected and the
// instance is simply not counted. Any exec error rolls back the whole batch.
func (db *DB) UnlockInstances(ctx context.Context, unlocks []Unlock) (int, error) {
	if len(unlocks) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin unlock tx: %w", err)
	}
	defer tx.Rollback()

	unlocked := 0
	for _, u := range unlocks {
		res, err := tx.ExecContext(ctx, `
			UPDATE user_lesson_instances
			SET status = ?, unlocked_at = ?, updated_at = ?
			WHERE id = ? AND status = ?`,
			model.StatusAvailable, u.UnlockedAt, time.Now(), u.InstanceID, model.StatusLocked)
		if err != nil {
			return 0, fmt.Errorf("unlock instance %d: %w", u.InstanceID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		unlocked += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit unlock tx: %w", err)
	}
	return unlocked, nil
}

// ForceUnlock transitions a specific instance to available regardless of
// time and day gating. The instance must exist for the user; a non-locked
// instance is left untouched and reported as false.
func (db *DB) ForceUnlock(ctx context.Context, userID, instanceID int64, now time.Time) (bool, error) {
	var exists int
	err := db.QueryRowContext(ctx, `
		SELECT 1 FROM user_lesson_instances WHERE id = ? AND user_id = ?`,
		instanceID, userID).Scan(&exists)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, ErrInstanceNotFound
		}
		return false, err
	}

	res, err := db.ExecContext(ctx, `
		UPDATE user_lesson_instances
		SET status = ?, unlocked_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND status = ?`,
		model.StatusAvailable, now, time.Now(), instanceID, userID, model.StatusLocked)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CompleteInstance transitions an available instance to completed, recording
// points. Used by the lesson-completion flow; conditional for the same
// reason as UnlockInstances.
func (db *DB) CompleteInstance(ctx context.Context, userID, instanceID int64, points int, now time.Time) (bool, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE user_lesson_instances
		SET status = ?, completed_at = ?, points_earned = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND status = ?`,
		model.StatusCompleted, now, points, time.Now(), instanceID, userID, model.StatusAvailable)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CreateInstances bulk-creates locked instances for the given templates,
// one per (user, template). Called when a user enters a category.
func (db *DB) CreateInstances(ctx context.Context, userID int64, templates []model.LessonTemplate) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create tx: %w", err)
	}
	defer tx.Rollback()

	for _, t := range templates {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO user_lesson_instances (user_id, category, week_number, day_number, status)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(user_id, category, week_number, day_number) DO NOTHING`,
			userID, t.Category, t.WeekNumber, t.DayNumber, model.StatusLocked)
		if err != nil {
			return fmt.Errorf("create instance %s: %w", t, err)
		}
	}
	return tx.Commit()
}

// StaleAvailable is a user's earliest-unlocked available instance, the one
// the support engine measures miss counts against.
type StaleAvailable struct {
	UserID     int64
	Category   string
	UnlockedAt time.Time
}

// OldestAvailable returns one row per user: the available instance with the
// earliest unlocked_at. Backed by idx_instances_stale so the daily support
// pass never scans locked or completed history.
func (db *DB) OldestAvailable(ctx context.Context) ([]StaleAvailable, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT i.user_id, i.category, i.unlocked_at
		FROM user_lesson_instances i
		WHERE i.status = ? AND i.unlocked_at IS NOT NULL
		  AND i.unlocked_at = (
			SELECT MIN(unlocked_at) FROM user_lesson_instances
			WHERE user_id = i.user_id AND status = ? AND unlocked_at IS NOT NULL)
		ORDER BY i.user_id`, model.StatusAvailable, model.StatusAvailable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StaleAvailable
	var lastUser int64
	for rows.Next() {
		var s StaleAvailable
		if err := rows.Scan(&s.UserID, &s.Category, &s.UnlockedAt); err != nil {
			return nil, err
		}
		// Ties on unlocked_at produce duplicate rows for a user.
		if s.UserID == lastUser {
			continue
		}
		lastUser = s.UserID
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListInstances returns all lesson instances ordered for reporting.
func (db *DB) ListInstances(ctx context.Context) ([]model.UserLessonInstance, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+instanceColumns+`
		FROM user_lesson_instances
		ORDER BY category ASC, user_id ASC, week_number ASC, day_number ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instances []model.UserLessonInstance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, *inst)
	}
	return instances, rows.Err()
}

func scanInstance(row rowScanner) (*model.UserLessonInstance, error) {
	var inst model.UserLessonInstance
	var unlockedAt, startedAt, completedAt sql.NullTime
	err := row.Scan(&inst.ID, &inst.UserID, &inst.Category, &inst.WeekNumber, &inst.DayNumber,
		&inst.Status, &inst.PointsEarned, &unlockedAt, &startedAt, &completedAt,
		&inst.CreatedAt, &inst.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if unlockedAt.Valid {
		inst.UnlockedAt = &unlockedAt.Time
	}
	if startedAt.Valid {
		inst.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		inst.CompletedAt = &completedAt.Time
	}
	return &inst, nil
}
