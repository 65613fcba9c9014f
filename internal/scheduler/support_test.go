package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadpath/internal/model"
)

var etZone = time.FixedZone("ET", -5*3600)

// fridayET13 is 2024-01-05T13:00 ET, four calendar days after New Year's Day.
var fridayET13 = time.Date(2024, 1, 5, 18, 0, 0, 0, time.UTC)

func newSupportEngine(store *fakeStore, gw *fakeGateway, dedupe DedupeStore) *SupportEngine {
	return NewSupportEngine(store, store, store, gw, dedupe, 3, nil, testLogger())
}

func supportPrefs(days ...string) *model.Preferences {
	if len(days) == 0 {
		days = []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}
	}
	return &model.Preferences{
		TimezoneCode:    "ET",
		ActiveDays:      days,
		LessonTime:      "09:00",
		ReminderEnabled: true,
		ReminderTime:    "14:00",
		ReminderType:    model.ReminderSingle,
	}
}

func TestSupportEmailAfterMissedDays(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, supportPrefs(), "foundations")
	store.addInstances(1, "foundations", model.StatusAvailable, model.StatusLocked)
	// Unlocked Monday morning; by Friday the lesson has been missed
	// Mon, Tue, Wed and Thu.
	store.markAvailable(1, 0, time.Date(2024, 1, 1, 9, 0, 0, 0, etZone))

	gw := newFakeGateway()
	eng := newSupportEngine(store, gw, nil)

	sent, err := eng.RunSupportTick(context.Background(), fridayET13)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, gw.emails, 1)
	assert.Equal(t, "user1@example.com", gw.emails[0].To)
	assert.Equal(t, "We're here to help with your lessons", gw.emails[0].Subject)
	assert.Contains(t, gw.emails[0].Body, "facing some challenges")
}

func TestSupportBelowThreshold(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, supportPrefs(), "foundations")
	store.addInstances(1, "foundations", model.StatusAvailable)
	// Unlocked Wednesday: only Wed and Thu have passed by Friday.
	store.markAvailable(1, 0, time.Date(2024, 1, 3, 9, 0, 0, 0, etZone))

	gw := newFakeGateway()
	eng := newSupportEngine(store, gw, nil)

	sent, err := eng.RunSupportTick(context.Background(), fridayET13)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Equal(t, 0, gw.emailCount())
}

func TestSupportCountsOnlyActiveDays(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, supportPrefs("mon"), "foundations")
	store.addInstances(1, "foundations", model.StatusAvailable)
	store.markAvailable(1, 0, time.Date(2024, 1, 1, 9, 0, 0, 0, etZone))

	gw := newFakeGateway()
	eng := newSupportEngine(store, gw, nil)

	// Friday of the same week: only one Monday has passed.
	sent, err := eng.RunSupportTick(context.Background(), fridayET13)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)

	// Three Mondays later (Jan 1, 8, 15 missed) the threshold is reached.
	sent, err = eng.RunSupportTick(context.Background(), time.Date(2024, 1, 16, 18, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

func TestSupportStopsAfterCompletion(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, supportPrefs(), "foundations")
	store.addInstances(1, "foundations", model.StatusAvailable)
	store.markAvailable(1, 0, time.Date(2024, 1, 1, 9, 0, 0, 0, etZone))
	store.complete(1, 0)

	gw := newFakeGateway()
	eng := newSupportEngine(store, gw, nil)

	sent, err := eng.RunSupportTick(context.Background(), fridayET13)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Equal(t, 0, gw.emailCount())
}

func TestSupportDedupePerDay(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, supportPrefs(), "foundations")
	store.addInstances(1, "foundations", model.StatusAvailable)
	store.markAvailable(1, 0, time.Date(2024, 1, 1, 9, 0, 0, 0, etZone))

	gw := newFakeGateway()
	eng := newSupportEngine(store, gw, newFakeDedupe())

	sent, err := eng.RunSupportTick(context.Background(), fridayET13)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	// Overlapping or replayed tick on the same local date sends nothing.
	sent, err = eng.RunSupportTick(context.Background(), fridayET13.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Equal(t, 1, gw.emailCount())

	// Next day the lesson is still stale and outreach repeats.
	sent, err = eng.RunSupportTick(context.Background(), fridayET13.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, 2, gw.emailCount())
}

func TestSupportFailureIsolation(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, supportPrefs(), "foundations")
	store.addInstances(1, "foundations", model.StatusAvailable)
	store.markAvailable(1, 0, time.Date(2024, 1, 1, 9, 0, 0, 0, etZone))
	store.addUser(2, supportPrefs(), "foundations")
	store.addInstances(2, "foundations", model.StatusAvailable)
	store.markAvailable(2, 0, time.Date(2024, 1, 1, 9, 0, 0, 0, etZone))

	gw := newFakeGateway()
	gw.failEmail["user1@example.com"] = true
	eng := newSupportEngine(store, gw, nil)

	sent, err := eng.RunSupportTick(context.Background(), fridayET13)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, gw.emails, 1)
	assert.Equal(t, "user2@example.com", gw.emails[0].To)
}

func TestSupportUnknownTimezoneIsolated(t *testing.T) {
	store := newFakeStore()
	bad := supportPrefs()
	bad.TimezoneCode = "XX"
	store.addUser(1, bad, "foundations")
	store.addInstances(1, "foundations", model.StatusAvailable)
	store.markAvailable(1, 0, time.Date(2024, 1, 1, 9, 0, 0, 0, etZone))
	store.addUser(2, supportPrefs(), "foundations")
	store.addInstances(2, "foundations", model.StatusAvailable)
	store.markAvailable(2, 0, time.Date(2024, 1, 1, 9, 0, 0, 0, etZone))

	gw := newFakeGateway()
	eng := newSupportEngine(store, gw, nil)

	sent, err := eng.RunSupportTick(context.Background(), fridayET13)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, gw.emails, 1)
	assert.Equal(t, "user2@example.com", gw.emails[0].To)
}

func TestMissedActiveDays(t *testing.T) {
	all := supportPrefs()
	unlock := time.Date(2024, 1, 1, 9, 0, 0, 0, etZone)

	tests := []struct {
		name string
		now  time.Time
		p    *model.Preferences
		want int
	}{
		{name: "same day", now: time.Date(2024, 1, 1, 20, 0, 0, 0, etZone), p: all, want: 0},
		{name: "next day", now: time.Date(2024, 1, 2, 9, 0, 0, 0, etZone), p: all, want: 1},
		{name: "four days later", now: time.Date(2024, 1, 5, 13, 0, 0, 0, etZone), p: all, want: 4},
		{name: "weekdays only", now: time.Date(2024, 1, 8, 9, 0, 0, 0, etZone),
			p: supportPrefs("mon", "tue", "wed", "thu", "fri"), want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, missedActiveDays(unlock, tt.now, tt.p))
		})
	}
}
