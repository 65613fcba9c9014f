package db

import (
	"context"
	"database/sql"
	"time"

	"leadpath/internal/model"
)

// GetJourney returns a user's journey, or nil when the user has none.
func (db *DB) GetJourney(ctx context.Context, userID int64) (*model.Journey, error) {
	row := db.QueryRowContext(ctx, `
		SELECT user_id, current_category, status, started_at, completed_at
		FROM user_journeys
		WHERE user_id = ?`, userID)

	var j model.Journey
	var category sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(&j.UserID, &category, &j.Status, &j.StartedAt, &completedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if category.Valid {
		j.CurrentCategory = category.String
	}
	if completedAt.Valid {
		j.CompletedAt = &completedAt.Time
	}
	return &j, nil
}

// UpsertJourney creates or updates a user's journey row. The journey
// collaborator calls this on category start and completion.
func (db *DB) UpsertJourney(ctx context.Context, j *model.Journey) error {
	now := time.Now()
	var category any
	if j.CurrentCategory != "" {
		category = j.CurrentCategory
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO user_journeys (user_id, current_category, status, completed_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			current_category = excluded.current_category,
			status = excluded.status,
			completed_at = excluded.completed_at,
			updated_at = excluded.updated_at`,
		j.UserID, category, j.Status, j.CompletedAt, now)
	return err
}
