package dbtypes

import (
	"time"

	"cloud.google.com/go/firestore"
)

// User represents a person registered and interacting with the application.
type User struct {
	// ID is the Firestore document ID.  It is filled in when the user is
	// loaded, and never written back.
	ID string `firestore:"-"`

	Name         string `firestore:"name"`
	Email        string `firestore:"email"`
	PasswordHash string `firestore:"passwordHash"`
}

// Session represents a log-in session for a User.
type Session struct {
	Cookie  string                 `firestore:"cookie"`
	User    *firestore.DocumentRef `firestore:"user"`
	Expires time.Time              `firestore:"expires"`
}

// Schedule is a recurring medication reminder definition.
//
// Schedules are created and edited by the web UI.  The reminder engine
// mutates RemainingPills and the two one-shot reminder flags, but never
// deletes a schedule.
type Schedule struct {
	ID string `firestore:"-"`

	UserID   string `firestore:"userId"`
	PillName string `firestore:"pillName"`
	Dosage   string `firestore:"dosage"`

	// TimeOfDay is a coarse display label: "morning", "afternoon" or
	// "night".  The exact firing time is TimeHour:TimeMinute.
	TimeOfDay  string `firestore:"time"`
	TimeHour   int    `firestore:"timeHour"`
	TimeMinute int    `firestore:"timeMinute"`

	// DaysOfWeek holds English weekday names ("Monday", ...).
	DaysOfWeek []string `firestore:"daysOfWeek"`

	Active bool   `firestore:"active"`
	Color  string `firestore:"color"`

	TotalPills     int64 `firestore:"totalPills"`
	RemainingPills int64 `firestore:"remainingPills"`

	// ExpiryDate and LastRefillDate are stored as "2006-01-02" strings.
	ExpiryDate     string `firestore:"expiryDate"`
	LastRefillDate string `firestore:"lastRefillDate"`

	// One-shot flags gating the low-supply and expiry escalation notices.
	// Cleared when a refill is recorded.
	RefillReminderSent bool `firestore:"refillReminderSent"`
	ExpiryReminderSent bool `firestore:"expiryReminderSent"`

	CreatedAt time.Time `firestore:"createdAt,serverTimestamp"`
	UpdatedAt time.Time `firestore:"updatedAt,serverTimestamp"`
}

// History entry statuses.
const (
	StatusTaken   = "taken"
	StatusMissed  = "missed"
	StatusPending = "pending"
)

// HistoryEntry records one intake or reminder event for a schedule on a
// given day.  Entries are immutable once created.
type HistoryEntry struct {
	ID string `firestore:"-"`

	ScheduleID string `firestore:"scheduleId"`
	UserID     string `firestore:"userId"`

	TakenAt time.Time `firestore:"takenAt,serverTimestamp"`

	// WasReminded is true when the entry was created in response to an
	// automated reminder rather than a spontaneous intake.
	WasReminded bool   `firestore:"wasReminded"`
	Status      string `firestore:"status"`
}
