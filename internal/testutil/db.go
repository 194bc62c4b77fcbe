package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/codr1/Excursions/internal/db"
	dbq "github.com/codr1/Excursions/internal/db/queries"
	"github.com/codr1/Excursions/internal/models"
)

var fixtureSeq atomic.Int64

// NewTestDB creates a temporary SQLite database with migrations applied.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(dbPath)
	if err != nil {
		t.Fatalf("create test db: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

// CreateUser inserts a user with a unique email and the given role.
func CreateUser(t *testing.T, database *db.DB, role string) dbq.User {
	t.Helper()

	n := fixtureSeq.Add(1)
	user, err := database.Queries.CreateUser(context.Background(), dbq.CreateUserParams{
		Name:  fmt.Sprintf("%s %d", role, n),
		Email: fmt.Sprintf("%s%d@example.com", role, n),
		Role:  role,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// CreateExperience inserts a listing owned by hostID. The defaults describe a
// bookable tour in November and December 2026; mutate may adjust them first.
func CreateExperience(t *testing.T, database *db.DB, hostID int64, status string, mutate func(*models.Experience)) models.Experience {
	t.Helper()

	n := fixtureSeq.Add(1)
	exp := models.Experience{
		HostID:          hostID,
		Title:           fmt.Sprintf("Harbour Walk %d", n),
		City:            "Lisbon",
		Category:        "Walking tour",
		Description:     "A slow walk along the river with stops for pastries.",
		DurationMinutes: 120,
		Pricing: models.Pricing{
			BasePrice: 100,
			Currency:  "USD",
			GroupSize: models.GroupSize{Min: 1, Max: 6},
		},
		Availability: models.Availability{
			StartDate:     "2026-11-01",
			EndDate:       "2026-12-31",
			TimeSlots:     []string{"09:00", "14:00"},
			BlackoutDates: []string{"2026-11-20"},
		},
		Status: status,
	}
	if mutate != nil {
		mutate(&exp)
	}
	exp.Normalize()

	row, err := database.Queries.CreateExperience(context.Background(), exp.CreateParams())
	if err != nil {
		t.Fatalf("create experience: %v", err)
	}
	created, err := models.ExperienceFromDB(row)
	if err != nil {
		t.Fatalf("decode experience: %v", err)
	}
	return created
}

// CreateBooking inserts a confirmed booking for a party of two adults.
func CreateBooking(t *testing.T, database *db.DB, experienceID int64, guestID *int64, date, slot string) dbq.Booking {
	t.Helper()

	n := fixtureSeq.Add(1)
	guest := sql.NullInt64{}
	if guestID != nil {
		guest = sql.NullInt64{Int64: *guestID, Valid: true}
	}
	row, err := database.Queries.CreateBooking(context.Background(), dbq.CreateBookingParams{
		ConfirmationCode: fmt.Sprintf("EXP-TEST%04d", n),
		ExperienceID:     experienceID,
		GuestUserID:      guest,
		SelectedDate:     date,
		SelectedTime:     slot,
		Adults:           2,
		ContactName:      "Ada Lovelace",
		ContactEmail:     "ada@example.com",
		ContactPhone:     "+16502530000",
		CardLast4:        "4242",
		CardholderName:   "Ada Lovelace",
		Subtotal:         200,
		ServiceFee:       20,
		TotalAmount:      220,
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return row
}
