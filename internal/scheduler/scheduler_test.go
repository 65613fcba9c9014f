package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"leadpath/internal/db"
	"leadpath/internal/model"
)

// fakeStore is an in-memory implementation of the preference, lesson,
// journey and contact stores.
type fakeStore struct {
	mu         sync.Mutex
	prefs      map[int64]*model.Preferences
	journeys   map[int64]*model.Journey
	instances  map[int64][]model.UserLessonInstance
	contacts   map[int64]*model.Contact
	failUnlock bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		prefs:     make(map[int64]*model.Preferences),
		journeys:  make(map[int64]*model.Journey),
		instances: make(map[int64][]model.UserLessonInstance),
		contacts:  make(map[int64]*model.Contact),
	}
}

// addUser seeds preferences, an active journey and a contact.
func (s *fakeStore) addUser(userID int64, p *model.Preferences, category string) {
	p.UserID = userID
	s.prefs[userID] = p
	s.journeys[userID] = &model.Journey{UserID: userID, CurrentCategory: category, Status: model.JourneyActive}
	s.contacts[userID] = &model.Contact{
		UserID: userID,
		Name:   fmt.Sprintf("User %d", userID),
		Email:  fmt.Sprintf("user%d@example.com", userID),
	}
}

// addInstances appends lesson instances in template order.
func (s *fakeStore) addInstances(userID int64, category string, statuses ...model.LessonStatus) {
	for i, st := range statuses {
		s.instances[userID] = append(s.instances[userID], model.UserLessonInstance{
			ID:         int64(len(s.instances[userID]))*100 + userID*1000 + int64(i),
			UserID:     userID,
			Category:   category,
			WeekNumber: i/5 + 1,
			DayNumber:  i%5 + 1,
			Status:     st,
		})
	}
}

func (s *fakeStore) GetPreferences(_ context.Context, userID int64) (*model.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.prefs[userID]; ok {
		return p, nil
	}
	return model.DefaultPreferences(userID), nil
}

func (s *fakeStore) MatchLessonCandidates(_ context.Context, hourByTZ map[string]int) ([]*model.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.Preferences
	for _, p := range s.prefs {
		hour, known := hourByTZ[p.TimezoneCode]
		// Unknown codes are deliberately over-selected so the engine's
		// authoritative check is exercised.
		if !known || p.LessonHour() == hour {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) MatchReminderCandidates(_ context.Context, hoursByTZ map[string][]int) ([]*model.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.Preferences
	for _, p := range s.prefs {
		if !p.ReminderEnabled || p.ReminderType == model.ReminderOff {
			continue
		}
		hours, known := hoursByTZ[p.TimezoneCode]
		if !known {
			out = append(out, p)
			continue
		}
		for _, h := range hours {
			if p.ReminderHour() == h {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

func (s *fakeStore) GetJourney(_ context.Context, userID int64) (*model.Journey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.journeys[userID], nil
}

func (s *fakeStore) GetContact(_ context.Context, userID int64) (*model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contacts[userID], nil
}

func (s *fakeStore) OrderedInstances(_ context.Context, userID int64, category string) ([]model.UserLessonInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.UserLessonInstance
	for _, inst := range s.instances[userID] {
		if inst.Category == category {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (s *fakeStore) CountAvailable(_ context.Context, userID int64, category string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, inst := range s.instances[userID] {
		if inst.Category == category && inst.Status == model.StatusAvailable {
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) UnlockInstances(_ context.Context, unlocks []db.Unlock) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failUnlock {
		return 0, fmt.Errorf("disk full")
	}

	unlocked := 0
	for _, u := range unlocks {
		for userID := range s.instances {
			for i := range s.instances[userID] {
				inst := &s.instances[userID][i]
				if inst.ID == u.InstanceID && inst.Status == model.StatusLocked {
					at := u.UnlockedAt
					inst.Status = model.StatusAvailable
					inst.UnlockedAt = &at
					unlocked++
				}
			}
		}
	}
	return unlocked, nil
}

func (s *fakeStore) OldestAvailable(_ context.Context) ([]db.StaleAvailable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []db.StaleAvailable
	for userID, list := range s.instances {
		var best *db.StaleAvailable
		for _, inst := range list {
			if inst.Status != model.StatusAvailable || inst.UnlockedAt == nil {
				continue
			}
			if best == nil || inst.UnlockedAt.Before(best.UnlockedAt) {
				best = &db.StaleAvailable{UserID: userID, Category: inst.Category, UnlockedAt: *inst.UnlockedAt}
			}
		}
		if best != nil {
			out = append(out, *best)
		}
	}
	return out, nil
}

// markAvailable sets the instance at position idx to available as of the
// given unlock time.
func (s *fakeStore) markAvailable(userID int64, idx int, unlockedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at := unlockedAt
	s.instances[userID][idx].Status = model.StatusAvailable
	s.instances[userID][idx].UnlockedAt = &at
}

// complete marks the instance at position idx for the user as completed.
func (s *fakeStore) complete(userID int64, idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances[userID][idx].Status = model.StatusCompleted
}

// statuses returns the user's instance statuses in template order.
func (s *fakeStore) statuses(userID int64) []model.LessonStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.LessonStatus
	for _, inst := range s.instances[userID] {
		out = append(out, inst.Status)
	}
	return out
}

type sentMessage struct {
	To      string
	Subject string
	Body    string
}

// fakeGateway records sends and can be told to fail specific recipients.
type fakeGateway struct {
	mu        sync.Mutex
	emails    []sentMessage
	sms       []sentMessage
	failEmail map[string]bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{failEmail: make(map[string]bool)}
}

func (g *fakeGateway) SendEmail(_ context.Context, to, subject, body string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failEmail[to] {
		return false
	}
	g.emails = append(g.emails, sentMessage{To: to, Subject: subject, Body: body})
	return true
}

func (g *fakeGateway) SendSMS(_ context.Context, to, message string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sms = append(g.sms, sentMessage{To: to, Body: message})
	return true
}

func (g *fakeGateway) emailCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.emails)
}

// fakeDedupe is a map-backed DedupeStore.
type fakeDedupe struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeDedupe() *fakeDedupe {
	return &fakeDedupe{seen: make(map[string]bool)}
}

func (d *fakeDedupe) FirstSend(_ context.Context, userID int64, phase model.ReminderPhase, localDate string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := fmt.Sprintf("%d:%s:%s", userID, phase, localDate)
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	return true, nil
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
