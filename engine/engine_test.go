package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Srishyl/MediMate/dbtypes"

	"github.com/google/go-cmp/cmp"
)

// fakeStore is an in-memory Store.  CreateHistory stamps entries with the
// fake's clock, standing in for the server-assigned timestamp.
type fakeStore struct {
	schedules map[string]*dbtypes.Schedule
	users     map[string]*dbtypes.User
	history   []*dbtypes.HistoryEntry

	now func() time.Time

	failCreateHistoryFor map[string]bool
	failActiveSchedules  bool
}

func newFakeStore(now func() time.Time) *fakeStore {
	return &fakeStore{
		schedules:            map[string]*dbtypes.Schedule{},
		users:                map[string]*dbtypes.User{},
		failCreateHistoryFor: map[string]bool{},
		now:                  now,
	}
}

func (s *fakeStore) ActiveSchedules(ctx context.Context) ([]*dbtypes.Schedule, error) {
	if s.failActiveSchedules {
		return nil, errors.New("store unavailable")
	}

	var active []*dbtypes.Schedule
	for _, schedule := range s.schedules {
		if schedule.Active {
			copied := *schedule
			active = append(active, &copied)
		}
	}
	return active, nil
}

func (s *fakeStore) GetUser(ctx context.Context, id string) (*dbtypes.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("no user %s", id)
	}
	return user, nil
}

func (s *fakeStore) HistoryExistsSince(ctx context.Context, scheduleID string, since time.Time) (bool, error) {
	for _, entry := range s.history {
		if entry.ScheduleID == scheduleID && !entry.TakenAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) CreateHistory(ctx context.Context, entry *dbtypes.HistoryEntry) error {
	if s.failCreateHistoryFor[entry.ScheduleID] {
		return errors.New("write failed")
	}
	stamped := *entry
	stamped.TakenAt = s.now()
	s.history = append(s.history, &stamped)
	return nil
}

func (s *fakeStore) SetRemainingPills(ctx context.Context, scheduleID string, remaining int64) error {
	s.schedules[scheduleID].RemainingPills = remaining
	return nil
}

func (s *fakeStore) SetRefillReminderSent(ctx context.Context, scheduleID string, sent bool) error {
	s.schedules[scheduleID].RefillReminderSent = sent
	return nil
}

func (s *fakeStore) SetExpiryReminderSent(ctx context.Context, scheduleID string, sent bool) error {
	s.schedules[scheduleID].ExpiryReminderSent = sent
	return nil
}

type fakeNotifier struct {
	doseReminders []string
	refillAlerts  []string
	expiryAlerts  []string
}

func (n *fakeNotifier) SendDoseReminder(ctx context.Context, user *dbtypes.User, schedule *dbtypes.Schedule, daysUntilExpiry int64, lowOnPills, expiringSoon bool) error {
	n.doseReminders = append(n.doseReminders, schedule.ID)
	return nil
}

func (n *fakeNotifier) SendRefillAlert(ctx context.Context, user *dbtypes.User, schedule *dbtypes.Schedule) error {
	n.refillAlerts = append(n.refillAlerts, schedule.ID)
	return nil
}

func (n *fakeNotifier) SendExpiryAlert(ctx context.Context, user *dbtypes.User, schedule *dbtypes.Schedule, daysUntilExpiry int64) error {
	n.expiryAlerts = append(n.expiryAlerts, schedule.ID)
	return nil
}

// mondayMorning is 08:00 on a Monday.
var mondayMorning = time.Date(2025, time.March, 3, 8, 0, 0, 0, time.UTC)

func testSchedule() *dbtypes.Schedule {
	return &dbtypes.Schedule{
		ID:             "sched-1",
		UserID:         "user-1",
		PillName:       "Amoxicillin",
		Dosage:         "500mg",
		TimeOfDay:      "morning",
		TimeHour:       8,
		TimeMinute:     0,
		DaysOfWeek:     []string{"Monday"},
		Active:         true,
		TotalPills:     30,
		RemainingPills: 5,
		ExpiryDate:     mondayMorning.AddDate(0, 0, 20).Format("2006-01-02"),
	}
}

func newTestEngine(store *fakeStore, notifier *fakeNotifier, notify bool, now time.Time) *Engine {
	return New(store, notifier, notify, time.UTC, WithNow(func() time.Time { return now }))
}

func TestDueScheduleRecordsAndEscalates(t *testing.T) {
	store := newFakeStore(func() time.Time { return mondayMorning })
	store.schedules["sched-1"] = testSchedule()
	store.users["user-1"] = &dbtypes.User{ID: "user-1", Name: "Pat", Email: "pat@example.com"}
	notifier := &fakeNotifier{}

	e := newTestEngine(store, notifier, true, mondayMorning)
	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if got, want := len(store.history), 1; got != want {
		t.Fatalf("Got %d history entries, want %d", got, want)
	}

	entry := store.history[0]
	want := &dbtypes.HistoryEntry{
		ScheduleID:  "sched-1",
		UserID:      "user-1",
		TakenAt:     mondayMorning,
		WasReminded: true,
		Status:      dbtypes.StatusPending,
	}
	if diff := cmp.Diff(want, entry); diff != "" {
		t.Errorf("Bad history entry; diff (-want +got):\n%s", diff)
	}

	if got, want := store.schedules["sched-1"].RemainingPills, int64(4); got != want {
		t.Errorf("Got %d remaining pills, want %d", got, want)
	}

	// 5 <= 7, so the low-supply escalation fires and latches.
	if got, want := len(notifier.refillAlerts), 1; got != want {
		t.Errorf("Got %d refill alerts, want %d", got, want)
	}
	if !store.schedules["sched-1"].RefillReminderSent {
		t.Errorf("RefillReminderSent was not set")
	}

	// 20 <= 30, so the expiry escalation fires and latches.
	if got, want := len(notifier.expiryAlerts), 1; got != want {
		t.Errorf("Got %d expiry alerts, want %d", got, want)
	}
	if !store.schedules["sched-1"].ExpiryReminderSent {
		t.Errorf("ExpiryReminderSent was not set")
	}

	if got, want := len(notifier.doseReminders), 1; got != want {
		t.Errorf("Got %d dose reminders, want %d", got, want)
	}
}

func TestSecondRunSameMinuteIsIdempotent(t *testing.T) {
	store := newFakeStore(func() time.Time { return mondayMorning })
	store.schedules["sched-1"] = testSchedule()
	store.users["user-1"] = &dbtypes.User{ID: "user-1", Email: "pat@example.com"}
	notifier := &fakeNotifier{}

	e := newTestEngine(store, notifier, true, mondayMorning)
	for i := 0; i < 2; i++ {
		if err := e.RunOnce(context.Background()); err != nil {
			t.Fatalf("RunOnce %d: %v", i, err)
		}
	}

	if got, want := len(store.history), 1; got != want {
		t.Errorf("Got %d history entries after two runs, want %d", got, want)
	}
	if got, want := len(notifier.doseReminders), 1; got != want {
		t.Errorf("Got %d dose reminders after two runs, want %d", got, want)
	}
	if got, want := store.schedules["sched-1"].RemainingPills, int64(4); got != want {
		t.Errorf("Got %d remaining pills after two runs, want %d", got, want)
	}
}

func TestInactiveScheduleNeverFires(t *testing.T) {
	store := newFakeStore(func() time.Time { return mondayMorning })
	schedule := testSchedule()
	schedule.Active = false
	store.schedules["sched-1"] = schedule
	store.users["user-1"] = &dbtypes.User{ID: "user-1", Email: "pat@example.com"}
	notifier := &fakeNotifier{}

	e := newTestEngine(store, notifier, true, mondayMorning)
	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(store.history) != 0 {
		t.Errorf("Inactive schedule produced %d history entries", len(store.history))
	}
	if len(notifier.doseReminders) != 0 {
		t.Errorf("Inactive schedule produced %d dose reminders", len(notifier.doseReminders))
	}
}

func TestTimeMismatchSkipped(t *testing.T) {
	store := newFakeStore(func() time.Time { return mondayMorning })
	store.schedules["sched-1"] = testSchedule()
	store.users["user-1"] = &dbtypes.User{ID: "user-1", Email: "pat@example.com"}
	notifier := &fakeNotifier{}

	e := newTestEngine(store, notifier, true, mondayMorning.Add(1*time.Minute))
	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(store.history) != 0 {
		t.Errorf("Mismatched schedule produced %d history entries", len(store.history))
	}
}

func TestRecordOnlyVariant(t *testing.T) {
	store := newFakeStore(func() time.Time { return mondayMorning })
	store.schedules["sched-1"] = testSchedule()
	notifier := &fakeNotifier{}

	e := newTestEngine(store, notifier, false, mondayMorning)
	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if got, want := len(store.history), 1; got != want {
		t.Fatalf("Got %d history entries, want %d", got, want)
	}
	if store.history[0].WasReminded {
		t.Errorf("Record-only run marked the entry as reminded")
	}
	if len(notifier.doseReminders)+len(notifier.refillAlerts)+len(notifier.expiryAlerts) != 0 {
		t.Errorf("Record-only run sent notifications")
	}

	// The one-shot flags still latch so a later notifying run doesn't
	// re-escalate.
	if !store.schedules["sched-1"].RefillReminderSent {
		t.Errorf("RefillReminderSent was not set")
	}
}

func TestRemainingPillsClampedAtZero(t *testing.T) {
	store := newFakeStore(func() time.Time { return mondayMorning })
	schedule := testSchedule()
	schedule.RemainingPills = 0
	store.schedules["sched-1"] = schedule
	store.users["user-1"] = &dbtypes.User{ID: "user-1", Email: "pat@example.com"}
	notifier := &fakeNotifier{}

	e := newTestEngine(store, notifier, true, mondayMorning)
	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if got := store.schedules["sched-1"].RemainingPills; got != 0 {
		t.Errorf("Got %d remaining pills, want 0", got)
	}
}

func TestEscalationFlagsAreOneShot(t *testing.T) {
	store := newFakeStore(func() time.Time { return mondayMorning })
	schedule := testSchedule()
	schedule.RefillReminderSent = true
	schedule.ExpiryReminderSent = true
	store.schedules["sched-1"] = schedule
	store.users["user-1"] = &dbtypes.User{ID: "user-1", Email: "pat@example.com"}
	notifier := &fakeNotifier{}

	e := newTestEngine(store, notifier, true, mondayMorning)
	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(notifier.refillAlerts) != 0 {
		t.Errorf("Refill alert fired again despite the latched flag")
	}
	if len(notifier.expiryAlerts) != 0 {
		t.Errorf("Expiry alert fired again despite the latched flag")
	}
	if got, want := len(notifier.doseReminders), 1; got != want {
		t.Errorf("Got %d dose reminders, want %d", got, want)
	}
}

func TestPerScheduleFailureDoesNotAbortRun(t *testing.T) {
	store := newFakeStore(func() time.Time { return mondayMorning })

	bad := testSchedule()
	bad.ID = "sched-bad"
	good := testSchedule()
	good.ID = "sched-good"
	store.schedules["sched-bad"] = bad
	store.schedules["sched-good"] = good
	store.users["user-1"] = &dbtypes.User{ID: "user-1", Email: "pat@example.com"}
	store.failCreateHistoryFor["sched-bad"] = true

	notifier := &fakeNotifier{}
	e := newTestEngine(store, notifier, true, mondayMorning)
	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if got, want := len(store.history), 1; got != want {
		t.Fatalf("Got %d history entries, want %d", got, want)
	}
	if got, want := store.history[0].ScheduleID, "sched-good"; got != want {
		t.Errorf("Got history for %q, want %q", got, want)
	}
}

func TestMissingUserIsPerScheduleFailure(t *testing.T) {
	store := newFakeStore(func() time.Time { return mondayMorning })
	store.schedules["sched-1"] = testSchedule()
	// No user-1 in the store.
	notifier := &fakeNotifier{}

	e := newTestEngine(store, notifier, true, mondayMorning)
	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(store.history) != 0 {
		t.Errorf("Schedule with missing user still recorded history")
	}
	if len(notifier.doseReminders) != 0 {
		t.Errorf("Schedule with missing user still sent a reminder")
	}
}

func TestListFailureIsFatalForRun(t *testing.T) {
	store := newFakeStore(func() time.Time { return mondayMorning })
	store.failActiveSchedules = true
	notifier := &fakeNotifier{}

	e := newTestEngine(store, notifier, true, mondayMorning)
	if err := e.RunOnce(context.Background()); err == nil {
		t.Fatalf("RunOnce succeeded despite list failure")
	}
}

func TestDeletedScheduleNoLongerConsidered(t *testing.T) {
	store := newFakeStore(func() time.Time { return mondayMorning })
	store.schedules["sched-1"] = testSchedule()
	store.users["user-1"] = &dbtypes.User{ID: "user-1", Email: "pat@example.com"}
	notifier := &fakeNotifier{}

	delete(store.schedules, "sched-1")

	e := newTestEngine(store, notifier, true, mondayMorning)
	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(store.history) != 0 {
		t.Errorf("Deleted schedule still recorded history")
	}
}

func TestStartOfDay(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}

	// 01:30 UTC on March 4 is still March 3 in New York.
	instant := time.Date(2025, time.March, 4, 1, 30, 0, 0, time.UTC)
	got := StartOfDay(instant, loc)
	want := time.Date(2025, time.March, 3, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("Got %v, want %v", got, want)
	}
}

func TestDaysUntilExpiry(t *testing.T) {
	now := time.Date(2025, time.March, 3, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		expiryDate string
		wantDays   int64
		wantOK     bool
	}{
		{"2025-03-23", 20, true},
		{"2025-03-04", 1, true},
		{"2025-03-03", 0, true},
		{"", 0, false},
		{"not-a-date", 0, false},
	}

	for _, test := range tests {
		gotDays, gotOK := DaysUntilExpiry(test.expiryDate, now)
		if gotOK != test.wantOK {
			t.Errorf("DaysUntilExpiry(%q): got ok=%v, want %v", test.expiryDate, gotOK, test.wantOK)
			continue
		}
		if gotOK && gotDays != test.wantDays {
			t.Errorf("DaysUntilExpiry(%q): got %d days, want %d", test.expiryDate, gotDays, test.wantDays)
		}
	}
}

func TestDaysUntilExpiryUsesNowsLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}

	// 20:00 Monday in New York; the pack expires at New York midnight, four
	// hours away.  Reading the date as UTC midnight would put the expiry an
	// hour in the past and report zero days instead.
	now := time.Date(2025, time.March, 3, 20, 0, 0, 0, loc)

	gotDays, gotOK := DaysUntilExpiry("2025-03-04", now)
	if !gotOK {
		t.Fatalf("DaysUntilExpiry: got ok=false, want true")
	}
	if gotDays != 1 {
		t.Errorf("Got %d days, want 1", gotDays)
	}
}
