package db

import (
	"context"
	"database/sql"
	"time"

	"leadpath/internal/model"
)

// GetContact returns the delivery contact for a user, or nil when the user
// does not exist.
func (db *DB) GetContact(ctx context.Context, userID int64) (*model.Contact, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, name, email, phone
		FROM users
		WHERE id = ?`, userID)

	var c model.Contact
	var phone sql.NullString
	err := row.Scan(&c.UserID, &c.Name, &c.Email, &phone)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if phone.Valid {
		c.Phone = phone.String
	}
	return &c, nil
}

// CreateUser inserts a user row and returns the new ID.
func (db *DB) CreateUser(ctx context.Context, name, email, phone string) (int64, error) {
	var phoneArg any
	if phone != "" {
		phoneArg = phone
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO users (name, email, phone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		name, email, phoneArg, time.Now(), time.Now())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
