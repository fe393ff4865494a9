package livefeed

import (
	"testing"
	"time"

	"github.com/Srishyl/MediMate/dbtypes"

	"github.com/google/go-cmp/cmp"
)

// monday is 09:00 UTC on a Monday.
var monday = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

func schedule(id string, hour int, days ...string) *dbtypes.Schedule {
	return &dbtypes.Schedule{
		ID:         id,
		UserID:     "user-1",
		PillName:   "Pill " + id,
		TimeHour:   hour,
		DaysOfWeek: days,
		Active:     true,
	}
}

func agendaIDs(agenda []*dbtypes.Schedule) []string {
	var ids []string
	for _, s := range agenda {
		ids = append(ids, s.ID)
	}
	return ids
}

func TestTodaysAgendaFiltersWeekday(t *testing.T) {
	schedules := []*dbtypes.Schedule{
		schedule("a", 8, "Monday"),
		schedule("b", 8, "Tuesday"),
		schedule("c", 8, "Monday", "Friday"),
	}

	got := agendaIDs(TodaysAgenda(schedules, nil, monday, time.UTC))
	want := []string{"a", "c"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Bad agenda; diff (-want +got):\n%s", diff)
	}
}

func TestTodaysAgendaExcludesInactive(t *testing.T) {
	inactive := schedule("a", 8, "Monday")
	inactive.Active = false
	schedules := []*dbtypes.Schedule{inactive, schedule("b", 8, "Monday")}

	got := agendaIDs(TodaysAgenda(schedules, nil, monday, time.UTC))
	want := []string{"b"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Bad agenda; diff (-want +got):\n%s", diff)
	}
}

func TestTodaysAgendaExcludesTakenToday(t *testing.T) {
	schedules := []*dbtypes.Schedule{
		schedule("a", 8, "Monday"),
		schedule("b", 8, "Monday"),
	}
	history := []*dbtypes.HistoryEntry{
		// Taken this morning: excludes a.
		{ScheduleID: "a", Status: dbtypes.StatusTaken, TakenAt: monday.Add(-1 * time.Hour)},
		// Taken yesterday: does not exclude b.
		{ScheduleID: "b", Status: dbtypes.StatusTaken, TakenAt: monday.Add(-24 * time.Hour)},
	}

	got := agendaIDs(TodaysAgenda(schedules, history, monday, time.UTC))
	want := []string{"b"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Bad agenda; diff (-want +got):\n%s", diff)
	}
}

func TestTodaysAgendaIgnoresPendingEntries(t *testing.T) {
	// A pending entry means the engine fired a reminder; the pill still
	// shows on the agenda until the user records it as taken.
	schedules := []*dbtypes.Schedule{schedule("a", 8, "Monday")}
	history := []*dbtypes.HistoryEntry{
		{ScheduleID: "a", Status: dbtypes.StatusPending, TakenAt: monday.Add(-30 * time.Minute)},
	}

	got := agendaIDs(TodaysAgenda(schedules, history, monday, time.UTC))
	want := []string{"a"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Bad agenda; diff (-want +got):\n%s", diff)
	}
}

func TestTodaysAgendaUsesConfiguredLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}

	// 01:30 UTC Tuesday is still Monday evening in New York.
	lateMonday := time.Date(2025, time.March, 4, 1, 30, 0, 0, time.UTC)
	schedules := []*dbtypes.Schedule{schedule("a", 20, "Monday")}

	if got := TodaysAgenda(schedules, nil, lateMonday, loc); len(got) != 1 {
		t.Errorf("Got %d schedules in New York, want 1", len(got))
	}
	if got := TodaysAgenda(schedules, nil, lateMonday, time.UTC); len(got) != 0 {
		t.Errorf("Got %d schedules in UTC, want 0", len(got))
	}
}

func TestUpcomingRemindersDropPastHours(t *testing.T) {
	schedules := []*dbtypes.Schedule{
		schedule("early", 7, "Monday"),
		schedule("now", 9, "Monday"),
		schedule("later", 20, "Monday"),
	}

	got := agendaIDs(UpcomingReminders(schedules, nil, monday, time.UTC))
	want := []string{"now", "later"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Bad upcoming reminders; diff (-want +got):\n%s", diff)
	}
}

func TestFeedReplacementNotifiesAndReflectsDeletes(t *testing.T) {
	feed := &Feed{}

	changes := 0
	feed.OnChange(func() { changes++ })

	feed.replaceSchedules([]*dbtypes.Schedule{schedule("a", 8, "Monday"), schedule("b", 8, "Monday")})
	if got := len(feed.Schedules()); got != 2 {
		t.Fatalf("Got %d schedules, want 2", got)
	}

	// A delete arrives as a snapshot without the removed document.
	feed.replaceSchedules([]*dbtypes.Schedule{schedule("b", 8, "Monday")})
	if got := agendaIDs(TodaysAgenda(feed.Schedules(), feed.History(), monday, time.UTC)); len(got) != 1 || got[0] != "b" {
		t.Errorf("Deleted schedule still in agenda: %v", got)
	}

	feed.replaceHistory([]*dbtypes.HistoryEntry{
		{ScheduleID: "b", Status: dbtypes.StatusTaken, TakenAt: monday.Add(-time.Hour)},
	})
	if got := agendaIDs(TodaysAgenda(feed.Schedules(), feed.History(), monday, time.UTC)); len(got) != 0 {
		t.Errorf("Taken schedule still in agenda: %v", got)
	}

	if changes != 3 {
		t.Errorf("Got %d change callbacks, want 3", changes)
	}
}
