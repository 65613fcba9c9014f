package model

import (
	"errors"
	"fmt"
	"time"
)

// LessonStatus represents the state of a user's lesson instance.
type LessonStatus string

const (
	StatusLocked    LessonStatus = "locked"
	StatusAvailable LessonStatus = "available"
	StatusCompleted LessonStatus = "completed"
)

// ErrInvalidTransition is returned when a status change would regress or
// skip a state. Status is monotonic: locked -> available -> completed.
var ErrInvalidTransition = errors.New("invalid lesson status transition")

// statusTransitions defines the allowed status changes.
var statusTransitions = map[LessonStatus][]LessonStatus{
	StatusLocked:    {StatusAvailable},
	StatusAvailable: {StatusCompleted},
	StatusCompleted: {},
}

// CanTransition checks if a status change is allowed.
func CanTransition(from, to LessonStatus) bool {
	for _, s := range statusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// LessonTemplate identifies a curriculum lesson. Templates are immutable;
// (WeekNumber, DayNumber) ascending is the total order within a category.
type LessonTemplate struct {
	Category   string
	WeekNumber int
	DayNumber  int
}

// Less reports whether t sorts before other in template order.
func (t LessonTemplate) Less(other LessonTemplate) bool {
	if t.WeekNumber != other.WeekNumber {
		return t.WeekNumber < other.WeekNumber
	}
	return t.DayNumber < other.DayNumber
}

func (t LessonTemplate) String() string {
	return fmt.Sprintf("%s/w%dd%d", t.Category, t.WeekNumber, t.DayNumber)
}

// UserLessonInstance is one user's copy of a lesson template. Instances are
// created in bulk when a user enters a category; the scheduler owns
// Status and UnlockedAt.
type UserLessonInstance struct {
	ID           int64
	UserID       int64
	Category     string
	WeekNumber   int
	DayNumber    int
	Status       LessonStatus
	PointsEarned int
	UnlockedAt   *time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Template returns the instance's template identity.
func (i *UserLessonInstance) Template() LessonTemplate {
	return LessonTemplate{Category: i.Category, WeekNumber: i.WeekNumber, DayNumber: i.DayNumber}
}
