package models

import (
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	dbq "github.com/codr1/Excursions/internal/db/queries"
)

func validExperience() Experience {
	return Experience{
		HostID:          7,
		Title:           "Sunset Kayak Tour",
		City:            "Lisbon",
		Category:        "water",
		DurationMinutes: 120,
		Pricing: Pricing{
			BasePrice: 80,
			Currency:  "EUR",
			GroupSize: GroupSize{Min: 1, Max: 8},
		},
		Availability: Availability{
			StartDate:     "2026-11-01",
			EndDate:       "2026-12-31",
			TimeSlots:     []string{"09:00", "17:30"},
			BlackoutDates: []string{"2026-12-25"},
		},
		Status: ExperienceStatusDraft,
	}
}

func TestAvailabilityCheckDate(t *testing.T) {
	availability := validExperience().Availability
	const today = "2026-11-10"

	tests := []struct {
		name    string
		day     string
		wantErr error
	}{
		{name: "inside_window", day: "2026-11-20"},
		{name: "today", day: today},
		{name: "last_day", day: "2026-12-31"},
		{name: "past", day: "2026-11-09", wantErr: ErrDateInPast},
		{name: "after_window", day: "2027-01-01", wantErr: ErrDateOutsideWindow},
		{name: "blackout", day: "2026-12-25", wantErr: ErrDateBlackout},
		{name: "malformed", day: "11/20/2026", wantErr: ErrInvalidDate},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := availability.CheckDate(test.day, today)
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("CheckDate(%q) = %v, want %v", test.day, err, test.wantErr)
			}
		})
	}
}

func TestAvailabilityCheckDateBeforeWindow(t *testing.T) {
	availability := validExperience().Availability
	if err := availability.CheckDate("2026-10-30", "2026-10-01"); !errors.Is(err, ErrDateOutsideWindow) {
		t.Fatalf("expected outside window, got %v", err)
	}
}

func TestHasTimeSlot(t *testing.T) {
	availability := validExperience().Availability
	if !availability.HasTimeSlot("09:00") {
		t.Fatal("expected 09:00 to be a slot")
	}
	if availability.HasTimeSlot("10:00") || availability.HasTimeSlot("") {
		t.Fatal("unexpected slot match")
	}
}

func TestExperienceValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Experience)
		wantErr string
	}{
		{name: "valid", mutate: func(*Experience) {}},
		{name: "missing_title", mutate: func(e *Experience) { e.Title = "  " }, wantErr: "title is required"},
		{name: "missing_city", mutate: func(e *Experience) { e.City = "" }, wantErr: "city is required"},
		{name: "negative_price", mutate: func(e *Experience) { e.Pricing.BasePrice = -1 }, wantErr: "basePrice"},
		{name: "bad_group", mutate: func(e *Experience) { e.Pricing.GroupSize = GroupSize{Min: 4, Max: 2} }, wantErr: "groupSize.max"},
		{name: "reversed_window", mutate: func(e *Experience) { e.Availability.EndDate = "2026-10-01" }, wantErr: "endDate must not be before"},
		{name: "no_slots", mutate: func(e *Experience) { e.Availability.TimeSlots = nil }, wantErr: "time slot"},
		{name: "bad_slot", mutate: func(e *Experience) { e.Availability.TimeSlots = []string{"9am"} }, wantErr: "HH:MM"},
		{name: "bad_blackout", mutate: func(e *Experience) { e.Availability.BlackoutDates = []string{"xmas"} }, wantErr: "blackout date"},
		{name: "bad_slug", mutate: func(e *Experience) { e.Slug = "Bad Slug" }, wantErr: "slug"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			experience := validExperience()
			test.mutate(&experience)
			err := experience.Validate()
			if test.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), test.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, test.wantErr)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	experience := Experience{
		Title:    "  Tapas & Wine Walk ",
		Category: " Food ",
		Availability: Availability{
			TimeSlots:     []string{"18:00", "12:00", "18:00", " "},
			BlackoutDates: []string{"2026-12-31", "2026-12-24"},
		},
	}
	experience.Normalize()

	if experience.Slug != "tapas-wine-walk" {
		t.Fatalf("slug = %q", experience.Slug)
	}
	if experience.Category != "food" {
		t.Fatalf("category = %q", experience.Category)
	}
	if experience.Pricing.Currency != "USD" || experience.Pricing.GroupSize.Min != 1 {
		t.Fatalf("defaults not applied: %+v", experience.Pricing)
	}
	if diff := cmp.Diff([]string{"12:00", "18:00"}, experience.Availability.TimeSlots); diff != "" {
		t.Fatalf("time slots mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"2026-12-24", "2026-12-31"}, experience.Availability.BlackoutDates); diff != "" {
		t.Fatalf("blackouts mismatch (-want +got):\n%s", diff)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{ExperienceStatusDraft, ExperienceStatusPending, true},
		{ExperienceStatusRejected, ExperienceStatusPending, true},
		{ExperienceStatusPending, ExperienceStatusApproved, true},
		{ExperienceStatusPending, ExperienceStatusRejected, true},
		{ExperienceStatusDraft, ExperienceStatusApproved, false},
		{ExperienceStatusApproved, ExperienceStatusPending, false},
		{ExperienceStatusApproved, ExperienceStatusDraft, false},
	}
	for _, test := range tests {
		if got := CanTransition(test.from, test.to); got != test.want {
			t.Fatalf("CanTransition(%s, %s) = %t, want %t", test.from, test.to, got, test.want)
		}
	}

	if diff := cmp.Diff([]string{ExperienceStatusDraft, ExperienceStatusRejected}, StatusesBefore(ExperienceStatusPending)); diff != "" {
		t.Fatalf("StatusesBefore mismatch (-want +got):\n%s", diff)
	}
}

func TestExperienceFromDB(t *testing.T) {
	approvedAt := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	row := dbq.Experience{
		ID:            3,
		HostID:        2,
		Slug:          "kayak",
		Title:         "Kayak",
		City:          "Lisbon",
		BasePrice:     50,
		Currency:      "EUR",
		GroupMin:      1,
		GroupMax:      6,
		StartDate:     "2026-11-01",
		EndDate:       "2026-11-30",
		TimeSlots:     `["09:00","14:00"]`,
		BlackoutDates: "",
		Status:        ExperienceStatusApproved,
		ApprovedAt:    sql.NullTime{Time: approvedAt, Valid: true},
	}

	experience, err := ExperienceFromDB(row)
	if err != nil {
		t.Fatalf("ExperienceFromDB: %v", err)
	}
	if !experience.Bookable() {
		t.Fatal("approved listing should be bookable")
	}
	if experience.Pricing.GroupSize.Max != 6 {
		t.Fatalf("group max = %d", experience.Pricing.GroupSize.Max)
	}
	if diff := cmp.Diff([]string{"09:00", "14:00"}, experience.Availability.TimeSlots); diff != "" {
		t.Fatalf("slots mismatch (-want +got):\n%s", diff)
	}
	if len(experience.Availability.BlackoutDates) != 0 || experience.Availability.BlackoutDates == nil {
		t.Fatalf("blackouts = %#v", experience.Availability.BlackoutDates)
	}
	if experience.ApprovedAt == nil || !experience.ApprovedAt.Equal(approvedAt) {
		t.Fatalf("approvedAt = %v", experience.ApprovedAt)
	}

	row.TimeSlots = "{"
	if _, err := ExperienceFromDB(row); err == nil {
		t.Fatal("expected error for malformed time slots")
	}
}

func TestCreateParamsRoundTrip(t *testing.T) {
	experience := validExperience()
	experience.Normalize()
	params := experience.CreateParams()
	if params.TimeSlots != `["09:00","17:30"]` {
		t.Fatalf("time slots = %s", params.TimeSlots)
	}
	if params.BlackoutDates != `["2026-12-25"]` {
		t.Fatalf("blackouts = %s", params.BlackoutDates)
	}
	if EncodeStringList(nil) != "[]" {
		t.Fatal("empty list should encode as []")
	}
}

func TestBookingStartsAt(t *testing.T) {
	booking := Booking{SelectedDate: "2026-11-20", SelectedTime: "17:30"}
	loc := time.FixedZone("WET", 0)
	got, err := booking.StartsAt(loc)
	if err != nil {
		t.Fatalf("StartsAt: %v", err)
	}
	want := time.Date(2026, 11, 20, 17, 30, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("StartsAt = %v, want %v", got, want)
	}
}

func TestBookingFromDB(t *testing.T) {
	booking := BookingFromDB(dbq.Booking{
		ID:               1,
		ConfirmationCode: "EXP-ABC123",
		GuestUserID:      sql.NullInt64{Int64: 4, Valid: true},
		Adults:           2,
		Children:         1,
		Infants:          1,
		Status:           BookingStatusConfirmed,
	})
	if booking.GuestUserID == nil || *booking.GuestUserID != 4 {
		t.Fatalf("guest user = %v", booking.GuestUserID)
	}
	if booking.Participants.Total() != 4 {
		t.Fatalf("participants total = %d", booking.Participants.Total())
	}
	if booking.CancelledAt != nil || booking.ReminderSentAt != nil {
		t.Fatal("unexpected timestamps")
	}
}
