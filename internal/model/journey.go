package model

import "time"

// JourneyStatus represents the state of a user's curriculum journey.
type JourneyStatus string

const (
	JourneyActive    JourneyStatus = "active"
	JourneyCompleted JourneyStatus = "completed"
	JourneyPaused    JourneyStatus = "paused"
)

// Journey tracks which category a user is currently working through.
// The scheduler only reads journeys; the journey collaborator mutates them
// when a category finishes.
type Journey struct {
	UserID          int64
	CurrentCategory string
	Status          JourneyStatus
	StartedAt       time.Time
	CompletedAt     *time.Time
}

// Unlockable reports whether the journey has a category whose lessons are
// eligible for unlocking.
func (j *Journey) Unlockable() bool {
	return j != nil && j.Status == JourneyActive && j.CurrentCategory != ""
}
