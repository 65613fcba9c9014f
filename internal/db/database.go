// Package db implements the lesson state store and preference store on
// SQLite. The scheduler core owns user_lesson_instances.status/unlocked_at;
// preferences and journeys are read-mostly here.
package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

// DB wraps sql.DB for the scheduler.
type DB struct {
	*sql.DB
}

// NewDB opens the database at path and runs migrations.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			phone TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// lesson_hour and reminder_hour are denormalized from the HH:MM
		// preference strings so candidate selection can hit an index
		// instead of scanning all users.
		`CREATE TABLE IF NOT EXISTS user_preferences (
			user_id INTEGER PRIMARY KEY,
			timezone_code TEXT NOT NULL DEFAULT 'ET',
			active_days TEXT NOT NULL DEFAULT 'mon,tue,wed,thu,fri,sat,sun',
			lesson_time TEXT NOT NULL DEFAULT '09:00',
			lesson_hour INTEGER NOT NULL DEFAULT 9,
			reminder_enabled BOOLEAN NOT NULL DEFAULT 1,
			reminder_time TEXT NOT NULL DEFAULT '14:00',
			reminder_hour INTEGER NOT NULL DEFAULT 14,
			reminder_type INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,

		`CREATE TABLE IF NOT EXISTS user_journeys (
			user_id INTEGER PRIMARY KEY,
			current_category TEXT,
			status TEXT NOT NULL DEFAULT 'active',
			started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			completed_at DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,

		`CREATE TABLE IF NOT EXISTS user_lesson_instances (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			category TEXT NOT NULL,
			week_number INTEGER NOT NULL,
			day_number INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'locked',
			points_earned INTEGER NOT NULL DEFAULT 0,
			unlocked_at DATETIME,
			started_at DATETIME,
			completed_at DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id),
			UNIQUE(user_id, category, week_number, day_number)
		)`,

		// Indexes backing candidate selection and the ordered instance scan.
		`CREATE INDEX IF NOT EXISTS idx_prefs_lesson_match ON user_preferences(timezone_code, lesson_hour)`,
		`CREATE INDEX IF NOT EXISTS idx_prefs_reminder_match ON user_preferences(timezone_code, reminder_hour, reminder_enabled, reminder_type)`,
		`CREATE INDEX IF NOT EXISTS idx_instances_order ON user_lesson_instances(user_id, category, week_number, day_number)`,
		`CREATE INDEX IF NOT EXISTS idx_instances_status ON user_lesson_instances(user_id, category, status)`,
		`CREATE INDEX IF NOT EXISTS idx_instances_stale ON user_lesson_instances(status, unlocked_at)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}
