// Package engine implements the scheduled reminder job: it matches active
// schedules against the current wall-clock minute, records one pending
// history entry per schedule per day, and fires the low-supply and expiry
// escalation notices.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Srishyl/MediMate/dbtypes"

	"github.com/robfig/cron/v3"
)

// Alert thresholds.
const (
	// LowSupplyThreshold is the remaining-pill count at or below which a
	// refill notice is due.
	LowSupplyThreshold = 7

	// ExpiryWarningDays is the days-until-expiry at or below which an
	// expiry notice is due.
	ExpiryWarningDays = 30
)

// Store is the slice of the database layer the engine needs.  *dblayer.DB
// satisfies it.
type Store interface {
	ActiveSchedules(ctx context.Context) ([]*dbtypes.Schedule, error)
	GetUser(ctx context.Context, id string) (*dbtypes.User, error)
	HistoryExistsSince(ctx context.Context, scheduleID string, since time.Time) (bool, error)
	CreateHistory(ctx context.Context, entry *dbtypes.HistoryEntry) error
	SetRemainingPills(ctx context.Context, scheduleID string, remaining int64) error
	SetRefillReminderSent(ctx context.Context, scheduleID string, sent bool) error
	SetExpiryReminderSent(ctx context.Context, scheduleID string, sent bool) error
}

// Notifier delivers reminder and escalation messages to a user.
type Notifier interface {
	SendDoseReminder(ctx context.Context, user *dbtypes.User, schedule *dbtypes.Schedule, daysUntilExpiry int64, lowOnPills, expiringSoon bool) error
	SendRefillAlert(ctx context.Context, user *dbtypes.User, schedule *dbtypes.Schedule) error
	SendExpiryAlert(ctx context.Context, user *dbtypes.User, schedule *dbtypes.Schedule, daysUntilExpiry int64) error
}

// Engine runs the reminder job.
type Engine struct {
	store    Store
	notifier Notifier

	// notify selects between the record-only and record+notify variants of
	// the job.  Both deduplicate through the same per-day history check.
	notify bool

	// location drives the minute match and the day boundary.  Every
	// time-of-day computation in the system uses this one location.
	location *time.Location

	now func() time.Time
}

type Option func(*Engine)

// WithNow overrides the engine's clock.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(store Store, notifier Notifier, notify bool, location *time.Location, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		notifier: notifier,
		notify:   notify,
		location: location,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run triggers RunOnce every minute until ctx is done.  Runs never overlap;
// if a pass outlasts its minute the next trigger is skipped and the engine
// relies on the following one.
func (e *Engine) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(e.location),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	_, err := c.AddFunc("* * * * *", func() {
		if err := e.RunOnce(ctx); err != nil {
			slog.ErrorContext(ctx, "Error during reminder pass", slog.Any("err", err))
		}
	})
	if err != nil {
		return fmt.Errorf("while registering reminder job: %w", err)
	}

	c.Start()
	<-ctx.Done()

	stopCtx := c.Stop()
	<-stopCtx.Done()

	return ctx.Err()
}

// RunOnce executes a single reminder pass.  A failure to list schedules is
// fatal for the pass; a failure processing one schedule is logged and the
// loop continues with its siblings.
func (e *Engine) RunOnce(ctx context.Context) error {
	now := e.now().In(e.location)

	slog.InfoContext(ctx, "Starting reminder pass", slog.Time("now", now))
	defer func() {
		slog.InfoContext(ctx, "Finished reminder pass")
	}()

	schedules, err := e.store.ActiveSchedules(ctx)
	if err != nil {
		return fmt.Errorf("while listing active schedules: %w", err)
	}

	slog.InfoContext(ctx, "Fetched active schedules", slog.Int("count", len(schedules)))

	for _, schedule := range schedules {
		if schedule.TimeHour != now.Hour() || schedule.TimeMinute != now.Minute() {
			continue
		}

		slog.InfoContext(ctx, "Schedule is due",
			slog.String("schedule", schedule.ID),
			slog.String("pill", schedule.PillName))

		if err := e.processSchedule(ctx, now, schedule); err != nil {
			slog.ErrorContext(ctx, "Error processing schedule",
				slog.String("schedule", schedule.ID),
				slog.Any("err", err))
			continue
		}
	}

	return nil
}

func (e *Engine) processSchedule(ctx context.Context, now time.Time, schedule *dbtypes.Schedule) error {
	dayStart := StartOfDay(now, e.location)

	exists, err := e.store.HistoryExistsSince(ctx, schedule.ID, dayStart)
	if err != nil {
		return fmt.Errorf("while checking today's history: %w", err)
	}
	if exists {
		slog.InfoContext(ctx, "Pill already handled today, skipping",
			slog.String("schedule", schedule.ID),
			slog.String("pill", schedule.PillName))
		return nil
	}

	lowOnPills := schedule.RemainingPills <= LowSupplyThreshold
	daysUntilExpiry, haveExpiry := DaysUntilExpiry(schedule.ExpiryDate, now)
	expiringSoon := haveExpiry && daysUntilExpiry <= ExpiryWarningDays

	if e.notify {
		user, err := e.store.GetUser(ctx, schedule.UserID)
		if err != nil {
			return fmt.Errorf("while resolving user %s: %w", schedule.UserID, err)
		}
		if user.Email == "" {
			return fmt.Errorf("user %s has no email address", schedule.UserID)
		}

		if err := e.notifier.SendDoseReminder(ctx, user, schedule, daysUntilExpiry, lowOnPills, expiringSoon); err != nil {
			return fmt.Errorf("while sending dose reminder: %w", err)
		}

		if lowOnPills && !schedule.RefillReminderSent {
			if err := e.notifier.SendRefillAlert(ctx, user, schedule); err != nil {
				return fmt.Errorf("while sending refill alert: %w", err)
			}
		}
		if expiringSoon && !schedule.ExpiryReminderSent {
			if err := e.notifier.SendExpiryAlert(ctx, user, schedule, daysUntilExpiry); err != nil {
				return fmt.Errorf("while sending expiry alert: %w", err)
			}
		}
	}

	if err := e.store.CreateHistory(ctx, &dbtypes.HistoryEntry{
		ScheduleID:  schedule.ID,
		UserID:      schedule.UserID,
		WasReminded: e.notify,
		Status:      dbtypes.StatusPending,
	}); err != nil {
		return fmt.Errorf("while recording history entry: %w", err)
	}

	if schedule.RemainingPills > 0 {
		if err := e.store.SetRemainingPills(ctx, schedule.ID, schedule.RemainingPills-1); err != nil {
			return fmt.Errorf("while decrementing remaining pills: %w", err)
		}
	}

	if lowOnPills && !schedule.RefillReminderSent {
		if err := e.store.SetRefillReminderSent(ctx, schedule.ID, true); err != nil {
			return fmt.Errorf("while setting refill reminder flag: %w", err)
		}
	}
	if expiringSoon && !schedule.ExpiryReminderSent {
		if err := e.store.SetExpiryReminderSent(ctx, schedule.ID, true); err != nil {
			return fmt.Errorf("while setting expiry reminder flag: %w", err)
		}
	}

	return nil
}

// StartOfDay returns local midnight for the day containing t.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DaysUntilExpiry parses a "2006-01-02" expiry date and returns the number of
// days from now until it, rounded up.  The date is read as midnight in now's
// location, the same boundary every other day computation uses.  The second
// return is false when the date is missing or malformed.
func DaysUntilExpiry(expiryDate string, now time.Time) (int64, bool) {
	if expiryDate == "" {
		return 0, false
	}

	expiry, err := time.ParseInLocation("2006-01-02", expiryDate, now.Location())
	if err != nil {
		return 0, false
	}

	days := math.Ceil(expiry.Sub(now).Hours() / 24)
	return int64(days), true
}
