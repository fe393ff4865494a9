package dblayer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Srishyl/MediMate/dbtypes"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func validTestSchedule() *dbtypes.Schedule {
	return &dbtypes.Schedule{
		PillName:   "Amoxicillin",
		Dosage:     "500mg",
		TimeOfDay:  "morning",
		TimeHour:   8,
		TimeMinute: 0,
		DaysOfWeek: []string{"Monday", "Friday"},
		TotalPills: 30,
		ExpiryDate: "2026-01-01",
	}
}

func TestValidateScheduleAcceptsAllWeekdays(t *testing.T) {
	schedule := validTestSchedule()
	schedule.DaysOfWeek = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

	if err := validateSchedule(schedule); err != nil {
		t.Errorf("validateSchedule: %v", err)
	}
}

func TestValidateScheduleRejectsUnknownWeekday(t *testing.T) {
	tests := []struct {
		name string
		days []string
	}{
		{"short garbage", []string{"x"}},
		{"lowercase", []string{"monday"}},
		{"abbreviation", []string{"Mon"}},
		{"mixed with valid", []string{"Monday", "x"}},
		{"empty string", []string{""}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			schedule := validTestSchedule()
			schedule.DaysOfWeek = test.days

			if err := validateSchedule(schedule); !errors.Is(err, ErrUnknownWeekday) {
				t.Errorf("Got error %v, want ErrUnknownWeekday", err)
			}
		})
	}
}

func TestValidateScheduleRequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*dbtypes.Schedule)
		want   error
	}{
		{"no pill name", func(s *dbtypes.Schedule) { s.PillName = "" }, ErrPillNameMustNotBeEmpty},
		{"no dosage", func(s *dbtypes.Schedule) { s.Dosage = "" }, ErrDosageMustNotBeEmpty},
		{"no weekdays", func(s *dbtypes.Schedule) { s.DaysOfWeek = nil }, ErrNoWeekdaySelected},
		{"zero pills", func(s *dbtypes.Schedule) { s.TotalPills = 0 }, ErrTotalPillsMustBePositive},
		{"no expiry", func(s *dbtypes.Schedule) { s.ExpiryDate = "" }, ErrExpiryDateRequired},
		{"bad expiry", func(s *dbtypes.Schedule) { s.ExpiryDate = "01/01/2026" }, ErrCouldNotParseDate},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			schedule := validTestSchedule()
			test.mutate(schedule)

			if err := validateSchedule(schedule); !errors.Is(err, test.want) {
				t.Errorf("Got error %v, want %v", err, test.want)
			}
		})
	}
}

func TestCarryEngineFieldsClampsToReducedPack(t *testing.T) {
	stored := validTestSchedule()
	stored.UserID = "user-1"
	stored.RemainingPills = 25
	stored.RefillReminderSent = true
	stored.ExpiryReminderSent = true
	stored.CreatedAt = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	// The edit shrinks the pack below the stored remaining count.
	update := validTestSchedule()
	update.TotalPills = 10

	carryEngineFields(update, stored)

	if update.RemainingPills != 10 {
		t.Errorf("RemainingPills = %d, want 10", update.RemainingPills)
	}
	if update.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", update.UserID)
	}
	if !update.RefillReminderSent || !update.ExpiryReminderSent {
		t.Errorf("One-shot flags not carried over")
	}
	if !update.CreatedAt.Equal(stored.CreatedAt) {
		t.Errorf("CreatedAt not carried over")
	}
}

func TestCarryEngineFieldsKeepsCountWithinPack(t *testing.T) {
	stored := validTestSchedule()
	stored.RemainingPills = 5

	update := validTestSchedule()
	update.TotalPills = 60

	carryEngineFields(update, stored)

	if update.RemainingPills != 5 {
		t.Errorf("RemainingPills = %d, want 5", update.RemainingPills)
	}
}

func TestNotFoundAsMapsOnlyNotFound(t *testing.T) {
	mapped := notFoundAs(status.Error(codes.NotFound, "document missing"), ErrScheduleNotFound)
	if !errors.Is(mapped, ErrScheduleNotFound) {
		t.Errorf("NotFound mapped to %v, want ErrScheduleNotFound", mapped)
	}

	// The sentinel must survive the call sites' wrapping.
	wrapped := fmt.Errorf("while retrieving schedule abc: %w", mapped)
	if !errors.Is(wrapped, ErrScheduleNotFound) {
		t.Errorf("Wrapped error %v does not match ErrScheduleNotFound", wrapped)
	}

	other := status.Error(codes.Unavailable, "backend down")
	if got := notFoundAs(other, ErrScheduleNotFound); errors.Is(got, ErrScheduleNotFound) {
		t.Errorf("Unavailable mapped to the not-found sentinel")
	}
}

func TestRegisterUserValidation(t *testing.T) {
	// Validation runs before any store access, so an empty DB suffices.
	db := &DB{}
	ctx := context.Background()

	if _, err := db.RegisterUser(ctx, "", "a@b.c", "pw"); !errors.Is(err, ErrNameMustNotBeEmpty) {
		t.Errorf("Got error %v, want ErrNameMustNotBeEmpty", err)
	}
	if _, err := db.RegisterUser(ctx, "Pat", "", "pw"); !errors.Is(err, ErrEmailMustNotBeEmpty) {
		t.Errorf("Got error %v, want ErrEmailMustNotBeEmpty", err)
	}
	if _, err := db.RegisterUser(ctx, "Pat", "a@b.c", ""); !errors.Is(err, ErrPasswordMustNotBeEmpty) {
		t.Errorf("Got error %v, want ErrPasswordMustNotBeEmpty", err)
	}
}
