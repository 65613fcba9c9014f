package scheduler

import (
	"fmt"

	"leadpath/internal/model"
)

// BuildReminderEmail returns the subject and body for a reminder email.
// Wording distinguishes the initial nudge from the follow-up.
func BuildReminderEmail(name string, availableLessons int, phase model.ReminderPhase) (subject, body string) {
	plural := ""
	if availableLessons > 1 {
		plural = "s"
	}

	if phase == model.PhaseFollowUp {
		subject = "Reminder: Don't Miss Your Leadership Lesson!"
		body = fmt.Sprintf(
			"Hi %s,\n\nThis is a friendly follow-up reminder that you have %d lesson%s waiting for you!\n\nTake a few minutes to complete your leadership development journey today.\n",
			name, availableLessons, plural)
		return subject, body
	}

	subject = "Your Leadership Lesson is Ready!"
	body = fmt.Sprintf(
		"Hello %s,\n\nYou have %d new lesson%s available to complete!\n\nContinue your leadership development journey by completing your lesson today.\n",
		name, availableLessons, plural)
	return subject, body
}

// BuildSupportEmail returns the check-in email for a user who has been
// missing their current lesson.
func BuildSupportEmail(name string) (subject, body string) {
	subject = "We're here to help with your lessons"
	body = fmt.Sprintf(
		"Hi %s,\n\nWe noticed you might be facing some challenges with your lessons.\nAre you experiencing any problems?\nDo you need any help?\n\nWe're here to support you on your leadership journey.\n\nBest regards,\nLeadership Development Team\n",
		name)
	return subject, body
}

// BuildReminderSMS returns the short-form reminder message.
func BuildReminderSMS(availableLessons int, phase model.ReminderPhase) string {
	plural := ""
	if availableLessons > 1 {
		plural = "s"
	}
	if phase == model.PhaseFollowUp {
		return fmt.Sprintf("Follow-up: you still have %d leadership lesson%s waiting. A few minutes is all it takes!", availableLessons, plural)
	}
	return fmt.Sprintf("Your leadership lesson is ready! %d lesson%s available to complete today.", availableLessons, plural)
}
