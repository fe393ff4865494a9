// Package livefeed maintains a live, in-memory projection of one user's
// schedules and history, fed by Firestore snapshot listeners.  The web UI
// reads the projection to render the dashboard; all writes go through
// dblayer and are reflected back through the listeners.
package livefeed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Srishyl/MediMate/dbtypes"
	"github.com/Srishyl/MediMate/engine"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// Feed is the projection for a single user.  Each snapshot push replaces the
// corresponding slice wholesale; there is no incremental patching.
type Feed struct {
	firestoreClient *firestore.Client
	userID          string

	// onChange, when set, is invoked after every projection replacement.
	onChange func()

	mu        sync.Mutex
	schedules []*dbtypes.Schedule
	history   []*dbtypes.HistoryEntry

	cancel context.CancelFunc
	done   sync.WaitGroup
}

func New(firestoreClient *firestore.Client, userID string) *Feed {
	return &Feed{
		firestoreClient: firestoreClient,
		userID:          userID,
	}
}

// OnChange registers a callback fired after each projection update.  Must be
// called before Watch.
func (f *Feed) OnChange(fn func()) {
	f.onChange = fn
}

// Watch starts the schedule and history listeners.  It returns immediately;
// the listeners run until Stop is called or ctx is done.
func (f *Feed) Watch(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)

	schedulesQuery := f.firestoreClient.Collection("schedules").Where("userId", "==", f.userID)
	historyQuery := f.firestoreClient.Collection("history").Where("userId", "==", f.userID)

	f.done.Add(2)
	go f.watchSchedules(ctx, schedulesQuery)
	go f.watchHistory(ctx, historyQuery)
}

// Stop unsubscribes both listeners and waits for them to wind down.
func (f *Feed) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
	f.done.Wait()
}

func (f *Feed) watchSchedules(ctx context.Context, query firestore.Query) {
	defer f.done.Done()

	snapIter := query.Snapshots(ctx)
	defer snapIter.Stop()
	for {
		snap, err := snapIter.Next()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.ErrorContext(ctx, "Schedule listener error", slog.Any("err", err))
			return
		}

		schedules, err := schedulesFromSnapshot(snap)
		if err != nil {
			slog.ErrorContext(ctx, "Error decoding schedule snapshot", slog.Any("err", err))
			continue
		}

		f.replaceSchedules(schedules)
	}
}

func (f *Feed) watchHistory(ctx context.Context, query firestore.Query) {
	defer f.done.Done()

	snapIter := query.Snapshots(ctx)
	defer snapIter.Stop()
	for {
		snap, err := snapIter.Next()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.ErrorContext(ctx, "History listener error", slog.Any("err", err))
			return
		}

		history, err := historyFromSnapshot(snap)
		if err != nil {
			slog.ErrorContext(ctx, "Error decoding history snapshot", slog.Any("err", err))
			continue
		}

		f.replaceHistory(history)
	}
}

func schedulesFromSnapshot(snap *firestore.QuerySnapshot) ([]*dbtypes.Schedule, error) {
	var schedules []*dbtypes.Schedule
	for {
		docSnap, err := snap.Documents.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("while iterating snapshot documents: %w", err)
		}

		schedule := &dbtypes.Schedule{}
		if err := docSnap.DataTo(schedule); err != nil {
			return nil, fmt.Errorf("while unmarshaling schedule %s: %w", docSnap.Ref.ID, err)
		}
		schedule.ID = docSnap.Ref.ID
		schedules = append(schedules, schedule)
	}
	return schedules, nil
}

func historyFromSnapshot(snap *firestore.QuerySnapshot) ([]*dbtypes.HistoryEntry, error) {
	var history []*dbtypes.HistoryEntry
	for {
		docSnap, err := snap.Documents.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("while iterating snapshot documents: %w", err)
		}

		entry := &dbtypes.HistoryEntry{}
		if err := docSnap.DataTo(entry); err != nil {
			return nil, fmt.Errorf("while unmarshaling history entry %s: %w", docSnap.Ref.ID, err)
		}
		entry.ID = docSnap.Ref.ID
		history = append(history, entry)
	}
	return history, nil
}

func (f *Feed) replaceSchedules(schedules []*dbtypes.Schedule) {
	f.mu.Lock()
	f.schedules = schedules
	f.mu.Unlock()

	if f.onChange != nil {
		f.onChange()
	}
}

func (f *Feed) replaceHistory(history []*dbtypes.HistoryEntry) {
	f.mu.Lock()
	f.history = history
	f.mu.Unlock()

	if f.onChange != nil {
		f.onChange()
	}
}

// Schedules returns the current schedule projection.
func (f *Feed) Schedules() []*dbtypes.Schedule {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.schedules
}

// History returns the current history projection.
func (f *Feed) History() []*dbtypes.HistoryEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history
}

// TodaysAgenda returns the schedules still due today: active, scheduled for
// today's weekday, and without a "taken" history entry since the start of
// the day.  The same location that drives the reminder engine drives the
// weekday and day boundary here.
func TodaysAgenda(schedules []*dbtypes.Schedule, history []*dbtypes.HistoryEntry, now time.Time, loc *time.Location) []*dbtypes.Schedule {
	now = now.In(loc)
	weekday := now.Weekday().String()
	dayStart := engine.StartOfDay(now, loc)

	takenToday := map[string]bool{}
	for _, entry := range history {
		if entry.Status != dbtypes.StatusTaken {
			continue
		}
		if entry.TakenAt.Before(dayStart) {
			continue
		}
		takenToday[entry.ScheduleID] = true
	}

	var agenda []*dbtypes.Schedule
	for _, schedule := range schedules {
		if !schedule.Active {
			continue
		}
		if !containsDay(schedule.DaysOfWeek, weekday) {
			continue
		}
		if takenToday[schedule.ID] {
			continue
		}
		agenda = append(agenda, schedule)
	}

	return agenda
}

// UpcomingReminders filters today's agenda down to schedules whose hour has
// not yet passed.
func UpcomingReminders(schedules []*dbtypes.Schedule, history []*dbtypes.HistoryEntry, now time.Time, loc *time.Location) []*dbtypes.Schedule {
	var upcoming []*dbtypes.Schedule
	for _, schedule := range TodaysAgenda(schedules, history, now, loc) {
		if schedule.TimeHour >= now.In(loc).Hour() {
			upcoming = append(upcoming, schedule)
		}
	}
	return upcoming
}

func containsDay(days []string, day string) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}
