// Package dblayer packages up most actual firestore accesses.
package dblayer

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Srishyl/MediMate/dbtypes"

	"cloud.google.com/go/firestore"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type DB struct {
	firestoreClient *firestore.Client
}

func New(firestoreClient *firestore.Client) *DB {
	return &DB{
		firestoreClient: firestoreClient,
	}
}

var (
	ErrNameMustNotBeEmpty         = errors.New("name must not be empty")
	ErrEmailMustNotBeEmpty        = errors.New("email must not be empty")
	ErrPasswordMustNotBeEmpty     = errors.New("password must not be empty")
	ErrEmailAlreadyRegistered     = errors.New("a user with that email already exists")
	ErrUnknownUserOrWrongPassword = errors.New("unknown user or wrong password")
	ErrUserNotFound               = errors.New("no user with that ID")
	ErrPillNameMustNotBeEmpty     = errors.New("pill name must not be empty")
	ErrDosageMustNotBeEmpty       = errors.New("dosage must not be empty")
	ErrNoWeekdaySelected          = errors.New("at least one day of the week must be selected")
	ErrUnknownWeekday             = errors.New("unrecognized day of the week")
	ErrTotalPillsMustBePositive   = errors.New("total pack size must be greater than zero")
	ErrExpiryDateRequired         = errors.New("expiry date is required")
	ErrCouldNotParseDate          = errors.New("could not parse date")
	ErrScheduleNotFound           = errors.New("no schedule with that ID")
	ErrPermissionDenied           = errors.New("permission denied")
)

// notFoundAs maps a gRPC NotFound error onto a package sentinel, leaving any
// other error untouched.
func notFoundAs(err error, sentinel error) error {
	if status.Code(err) == codes.NotFound {
		return sentinel
	}
	return err
}

// RegisterUser creates a new user document with a bcrypt password hash.
func (db *DB) RegisterUser(ctx context.Context, name, email, password string) (*dbtypes.User, error) {
	if name == "" {
		return nil, ErrNameMustNotBeEmpty
	}
	if email == "" {
		return nil, ErrEmailMustNotBeEmpty
	}
	if password == "" {
		return nil, ErrPasswordMustNotBeEmpty
	}

	existing, err := db.userByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("while checking for existing user: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("while hashing password: %w", err)
	}

	user := &dbtypes.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
	}

	newUserRef := db.firestoreClient.Collection("users").NewDoc()
	if _, err := newUserRef.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("while creating user: %w", err)
	}

	user.ID = newUserRef.ID
	return user, nil
}

func (db *DB) userByEmail(ctx context.Context, email string) (*dbtypes.User, error) {
	var userSnapshot *firestore.DocumentSnapshot
	userIter := db.firestoreClient.Collection("users").Where("email", "==", email).Documents(ctx)
	defer userIter.Stop()
	for {
		var err error
		userSnapshot, err = userIter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("while looking up user with email %q: %w", email, err)
		}

		// We only consider a single user.
		break
	}

	if userSnapshot == nil {
		return nil, nil
	}

	user := &dbtypes.User{}
	if err := userSnapshot.DataTo(user); err != nil {
		return nil, fmt.Errorf("while unmarshaling user %q: %w", email, err)
	}
	user.ID = userSnapshot.Ref.ID

	return user, nil
}

// SessionFromPassword runs the password-based login process for a given user,
// returning a session or an error.
func (db *DB) SessionFromPassword(ctx context.Context, email, password string) (*dbtypes.Session, error) {
	if email == "" {
		return nil, ErrEmailMustNotBeEmpty
	}

	if password == "" {
		return nil, ErrPasswordMustNotBeEmpty
	}

	user, err := db.userByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUnknownUserOrWrongPassword
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrUnknownUserOrWrongPassword
	}

	sessionCookieBytes := make([]byte, 32)
	if _, err := rand.Read(sessionCookieBytes); err != nil {
		return nil, fmt.Errorf("while generating session cookie: %w", err)
	}

	sessionCookie := base64.StdEncoding.EncodeToString(sessionCookieBytes)

	expires := time.Now().Add(18 * time.Hour)

	session := &dbtypes.Session{
		Cookie:  sessionCookie,
		User:    db.firestoreClient.Collection("users").Doc(user.ID),
		Expires: expires,
	}
	if _, _, err := db.firestoreClient.Collection("sessions").Add(ctx, session); err != nil {
		return nil, fmt.Errorf("while storing session cookie: %w", err)
	}

	return session, nil
}

// DeleteSession deletes a session by its cookie.
func (db *DB) DeleteSession(ctx context.Context, cookie string) error {
	sessionIter := db.firestoreClient.Collection("sessions").Where("cookie", "==", cookie).Documents(ctx)
	defer sessionIter.Stop()
	for {
		sessionSnapshot, err := sessionIter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("while looking up session: %w", err)
		}

		_, err = sessionSnapshot.Ref.Delete(ctx, firestore.LastUpdateTime(sessionSnapshot.UpdateTime))
		if err != nil {
			return fmt.Errorf("while deleting session: %w", err)
		}
	}

	return nil
}

// UserFromSessionCookie looks up a session from its cookie, and then returns
// the corresponding user.  A nil user with a nil error means the user is not
// logged in.
func (db *DB) UserFromSessionCookie(ctx context.Context, cookie string) (*dbtypes.User, error) {
	var sessionSnapshot *firestore.DocumentSnapshot
	sessionIter := db.firestoreClient.Collection("sessions").Where("cookie", "==", cookie).Documents(ctx)
	defer sessionIter.Stop()
	for {
		var err error
		sessionSnapshot, err = sessionIter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("while looking up session: %w", err)
		}

		// We only consider a single session.
		break
	}
	if sessionSnapshot == nil {
		// Session object must have been cleaned up due to expiration; user is not logged in.
		slog.InfoContext(ctx, "No logged-in user because there was no session object corresponding to the cookie in the database.")
		return nil, nil
	}

	session := &dbtypes.Session{}
	if err := sessionSnapshot.DataTo(session); err != nil {
		return nil, fmt.Errorf("while unmarshaling session: %w", err)
	}

	if session.Expires.Before(time.Now()) {
		// Session object is expired; user is not logged in.
		slog.InfoContext(ctx, "No logged-in user because the session object in the database was expired.")
		return nil, nil
	}

	userSnapshot, err := session.User.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("while getting user linked from session: %w", err)
	}

	user := &dbtypes.User{}
	if err := userSnapshot.DataTo(user); err != nil {
		return nil, fmt.Errorf("while unmarshaling user: %w", err)
	}
	user.ID = userSnapshot.Ref.ID

	return user, nil
}

// GetUser loads a user document by ID.
func (db *DB) GetUser(ctx context.Context, id string) (*dbtypes.User, error) {
	docSnap, err := db.firestoreClient.Collection("users").Doc(id).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("while retrieving user %s: %w", id, notFoundAs(err, ErrUserNotFound))
	}

	user := &dbtypes.User{}
	if err := docSnap.DataTo(user); err != nil {
		return nil, fmt.Errorf("while unmarshaling user %s: %w", id, err)
	}
	user.ID = docSnap.Ref.ID

	return user, nil
}

var weekdayNames = map[string]bool{
	"Sunday":    true,
	"Monday":    true,
	"Tuesday":   true,
	"Wednesday": true,
	"Thursday":  true,
	"Friday":    true,
	"Saturday":  true,
}

// validateSchedule rejects schedules that are missing required fields.  Runs
// before any write.
func validateSchedule(schedule *dbtypes.Schedule) error {
	if schedule.PillName == "" {
		return ErrPillNameMustNotBeEmpty
	}
	if schedule.Dosage == "" {
		return ErrDosageMustNotBeEmpty
	}
	if len(schedule.DaysOfWeek) == 0 {
		return ErrNoWeekdaySelected
	}
	for _, day := range schedule.DaysOfWeek {
		if !weekdayNames[day] {
			return ErrUnknownWeekday
		}
	}
	if schedule.TotalPills <= 0 {
		return ErrTotalPillsMustBePositive
	}
	if schedule.ExpiryDate == "" {
		return ErrExpiryDateRequired
	}
	if _, err := time.Parse("2006-01-02", schedule.ExpiryDate); err != nil {
		return ErrCouldNotParseDate
	}
	return nil
}

// CreateSchedule validates and stores a new schedule for a user.  The
// schedule is created active with a full pack.
func (db *DB) CreateSchedule(ctx context.Context, userID string, schedule *dbtypes.Schedule) (string, error) {
	if err := validateSchedule(schedule); err != nil {
		return "", err
	}

	schedule.UserID = userID
	schedule.Active = true
	if schedule.RemainingPills == 0 {
		schedule.RemainingPills = schedule.TotalPills
	}

	newScheduleRef := db.firestoreClient.Collection("schedules").NewDoc()
	if _, err := newScheduleRef.Create(ctx, schedule); err != nil {
		return "", fmt.Errorf("while creating schedule: %w", err)
	}

	schedule.ID = newScheduleRef.ID
	return newScheduleRef.ID, nil
}

// UpdateSchedule validates and overwrites an existing schedule.  Fields the
// engine owns (remaining count, one-shot flags) are carried over from the
// stored document rather than taken from the caller.
func (db *DB) UpdateSchedule(ctx context.Context, user *dbtypes.User, id string, schedule *dbtypes.Schedule) error {
	if err := validateSchedule(schedule); err != nil {
		return err
	}

	stored, snap, err := db.getSchedule(ctx, id)
	if err != nil {
		return err
	}
	if stored.UserID != user.ID {
		return ErrPermissionDenied
	}

	carryEngineFields(schedule, stored)

	if _, err := snap.Ref.Set(ctx, schedule); err != nil {
		return fmt.Errorf("while updating schedule %s: %w", id, err)
	}

	return nil
}

// carryEngineFields copies the fields the engine owns from the stored
// document onto an update.  The remaining count is clamped to the (possibly
// reduced) pack size so remainingPills never exceeds totalPills.
func carryEngineFields(schedule, stored *dbtypes.Schedule) {
	schedule.UserID = stored.UserID
	schedule.RemainingPills = stored.RemainingPills
	if schedule.RemainingPills > schedule.TotalPills {
		schedule.RemainingPills = schedule.TotalPills
	}
	schedule.RefillReminderSent = stored.RefillReminderSent
	schedule.ExpiryReminderSent = stored.ExpiryReminderSent
	schedule.CreatedAt = stored.CreatedAt
}

// DeleteSchedule removes a schedule document.  The live query feeding the
// client projection observes the delete; no engine-side cleanup is needed.
func (db *DB) DeleteSchedule(ctx context.Context, user *dbtypes.User, id string) error {
	stored, snap, err := db.getSchedule(ctx, id)
	if err != nil {
		return err
	}
	if stored.UserID != user.ID {
		return ErrPermissionDenied
	}

	if _, err := snap.Ref.Delete(ctx, firestore.LastUpdateTime(snap.UpdateTime)); err != nil {
		return fmt.Errorf("while deleting schedule %s: %w", id, err)
	}

	return nil
}

func (db *DB) getSchedule(ctx context.Context, id string) (*dbtypes.Schedule, *firestore.DocumentSnapshot, error) {
	docSnap, err := db.firestoreClient.Collection("schedules").Doc(id).Get(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("while retrieving schedule %s: %w", id, notFoundAs(err, ErrScheduleNotFound))
	}

	schedule := &dbtypes.Schedule{}
	if err := docSnap.DataTo(schedule); err != nil {
		return nil, nil, fmt.Errorf("while unmarshaling schedule %s: %w", id, err)
	}
	schedule.ID = docSnap.Ref.ID

	return schedule, docSnap, nil
}

// GetSchedule loads a schedule by ID.
func (db *DB) GetSchedule(ctx context.Context, id string) (*dbtypes.Schedule, error) {
	schedule, _, err := db.getSchedule(ctx, id)
	return schedule, err
}

// SchedulesForUser lists all schedules owned by a user.
func (db *DB) SchedulesForUser(ctx context.Context, userID string) ([]*dbtypes.Schedule, error) {
	return db.schedulesQuery(ctx, db.firestoreClient.Collection("schedules").Where("userId", "==", userID))
}

// ActiveSchedules lists all active schedules across all users.  This is the
// reminder engine's fetch; an error here is fatal for the engine run.
func (db *DB) ActiveSchedules(ctx context.Context) ([]*dbtypes.Schedule, error) {
	return db.schedulesQuery(ctx, db.firestoreClient.Collection("schedules").Where("active", "==", true))
}

func (db *DB) schedulesQuery(ctx context.Context, q firestore.Query) ([]*dbtypes.Schedule, error) {
	var schedules []*dbtypes.Schedule

	scheduleIter := q.Documents(ctx)
	defer scheduleIter.Stop()
	for {
		scheduleSnapshot, err := scheduleIter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("while iterating schedules: %w", err)
		}

		schedule := &dbtypes.Schedule{}
		if err := scheduleSnapshot.DataTo(schedule); err != nil {
			return nil, fmt.Errorf("while unmarshaling schedule %s: %w", scheduleSnapshot.Ref.ID, err)
		}
		schedule.ID = scheduleSnapshot.Ref.ID
		schedules = append(schedules, schedule)
	}

	return schedules, nil
}

// CreateHistory stores a new history entry.  TakenAt is assigned by the
// server.
func (db *DB) CreateHistory(ctx context.Context, entry *dbtypes.HistoryEntry) error {
	if _, _, err := db.firestoreClient.Collection("history").Add(ctx, entry); err != nil {
		return fmt.Errorf("while creating history entry: %w", err)
	}
	return nil
}

// HistoryExistsSince reports whether any history entry for the schedule has a
// timestamp at or after the given instant.  The engine uses this with the
// start of the current day to deduplicate reminders.
func (db *DB) HistoryExistsSince(ctx context.Context, scheduleID string, since time.Time) (bool, error) {
	historyIter := db.firestoreClient.Collection("history").
		Where("scheduleId", "==", scheduleID).
		Where("takenAt", ">=", since).
		Limit(1).
		Documents(ctx)
	defer historyIter.Stop()

	_, err := historyIter.Next()
	if err == iterator.Done {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("while querying history for schedule %s: %w", scheduleID, err)
	}

	return true, nil
}

// HistoryForUser lists all history entries owned by a user.
func (db *DB) HistoryForUser(ctx context.Context, userID string) ([]*dbtypes.HistoryEntry, error) {
	var entries []*dbtypes.HistoryEntry

	historyIter := db.firestoreClient.Collection("history").Where("userId", "==", userID).Documents(ctx)
	defer historyIter.Stop()
	for {
		historySnapshot, err := historyIter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("while iterating history: %w", err)
		}

		entry := &dbtypes.HistoryEntry{}
		if err := historySnapshot.DataTo(entry); err != nil {
			return nil, fmt.Errorf("while unmarshaling history entry %s: %w", historySnapshot.Ref.ID, err)
		}
		entry.ID = historySnapshot.Ref.ID
		entries = append(entries, entry)
	}

	return entries, nil
}

// SetRemainingPills writes a schedule's remaining pill count.
func (db *DB) SetRemainingPills(ctx context.Context, scheduleID string, remaining int64) error {
	_, err := db.firestoreClient.Collection("schedules").Doc(scheduleID).Update(ctx, []firestore.Update{
		{Path: "remainingPills", Value: remaining},
	})
	if err != nil {
		return fmt.Errorf("while updating remaining pills for schedule %s: %w", scheduleID, err)
	}
	return nil
}

// SetRefillReminderSent writes a schedule's low-supply one-shot flag.
func (db *DB) SetRefillReminderSent(ctx context.Context, scheduleID string, sent bool) error {
	_, err := db.firestoreClient.Collection("schedules").Doc(scheduleID).Update(ctx, []firestore.Update{
		{Path: "refillReminderSent", Value: sent},
	})
	if err != nil {
		return fmt.Errorf("while updating refill reminder flag for schedule %s: %w", scheduleID, err)
	}
	return nil
}

// SetExpiryReminderSent writes a schedule's expiry one-shot flag.
func (db *DB) SetExpiryReminderSent(ctx context.Context, scheduleID string, sent bool) error {
	_, err := db.firestoreClient.Collection("schedules").Doc(scheduleID).Update(ctx, []firestore.Update{
		{Path: "expiryReminderSent", Value: sent},
	})
	if err != nil {
		return fmt.Errorf("while updating expiry reminder flag for schedule %s: %w", scheduleID, err)
	}
	return nil
}

// RecordPillTaken decrements the schedule's remaining pill count (clamped at
// zero) and creates a "taken" history entry.  Both writes happen inside one
// transaction so the user never observes a half-applied intake.
func (db *DB) RecordPillTaken(ctx context.Context, scheduleID string, wasReminded bool) error {
	scheduleRef := db.firestoreClient.Collection("schedules").Doc(scheduleID)
	historyRef := db.firestoreClient.Collection("history").NewDoc()

	err := db.firestoreClient.RunTransaction(ctx, func(ctx context.Context, txn *firestore.Transaction) error {
		scheduleSnap, err := txn.Get(scheduleRef)
		if err != nil {
			return fmt.Errorf("while reading schedule: %w", err)
		}

		schedule := &dbtypes.Schedule{}
		if err := scheduleSnap.DataTo(schedule); err != nil {
			return fmt.Errorf("while unmarshaling schedule: %w", err)
		}

		remaining := schedule.RemainingPills - 1
		if remaining < 0 {
			remaining = 0
		}

		if err := txn.Update(scheduleRef, []firestore.Update{
			{Path: "remainingPills", Value: remaining},
		}); err != nil {
			return fmt.Errorf("while updating remaining pills: %w", err)
		}

		if err := txn.Create(historyRef, &dbtypes.HistoryEntry{
			ScheduleID:  scheduleID,
			UserID:      schedule.UserID,
			WasReminded: wasReminded,
			Status:      dbtypes.StatusTaken,
		}); err != nil {
			return fmt.Errorf("while creating history entry: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("while recording pill taken for schedule %s: %w", scheduleID, err)
	}

	return nil
}

// RecordRefill resets a schedule's pill count to the full pack size, stamps
// the refill date, and clears both one-shot reminder flags so the next
// low-supply or expiry condition can notify again.
func (db *DB) RecordRefill(ctx context.Context, user *dbtypes.User, scheduleID, refillDate string) error {
	refillTime, err := time.Parse("2006-01-02", refillDate)
	if err != nil {
		return ErrCouldNotParseDate
	}

	stored, snap, err := db.getSchedule(ctx, scheduleID)
	if err != nil {
		return err
	}
	if stored.UserID != user.ID {
		return ErrPermissionDenied
	}

	_, err = snap.Ref.Update(ctx, []firestore.Update{
		{Path: "remainingPills", Value: stored.TotalPills},
		{Path: "lastRefillDate", Value: refillTime.Format("2006-01-02")},
		{Path: "refillReminderSent", Value: false},
		{Path: "expiryReminderSent", Value: false},
	}, firestore.LastUpdateTime(snap.UpdateTime))
	if err != nil {
		return fmt.Errorf("while recording refill for schedule %s: %w", scheduleID, err)
	}

	return nil
}
