package models

import (
	"time"

	dbq "github.com/codr1/Excursions/internal/db/queries"
)

const (
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
	BookingStatusCompleted = "completed"
)

// StartLayout matches the concatenated selected_date and selected_time columns.
const StartLayout = "2006-01-02 15:04"

type BookingParticipants struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Infants  int `json:"infants"`
}

func (p BookingParticipants) Total() int {
	return p.Adults + p.Children + p.Infants
}

type Booking struct {
	ID               int64               `json:"id"`
	ConfirmationCode string              `json:"confirmationCode"`
	ExperienceID     int64               `json:"experienceId"`
	GuestUserID      *int64              `json:"guestUserId,omitempty"`
	SelectedDate     string              `json:"selectedDate"`
	SelectedTime     string              `json:"selectedTime"`
	Participants     BookingParticipants `json:"participants"`
	ContactName      string              `json:"contactName"`
	ContactEmail     string              `json:"contactEmail"`
	ContactPhone     string              `json:"contactPhone"`
	SpecialRequests  string              `json:"specialRequests,omitempty"`
	CardLast4        string              `json:"cardLast4"`
	CardholderName   string              `json:"cardholderName"`
	Subtotal         float64             `json:"subtotal"`
	ServiceFee       float64             `json:"serviceFee"`
	TotalAmount      float64             `json:"totalAmount"`
	Status           string              `json:"status"`
	ReminderSentAt   *time.Time          `json:"reminderSentAt,omitempty"`
	CancelledAt      *time.Time          `json:"cancelledAt,omitempty"`
	CreatedAt        time.Time           `json:"createdAt"`
}

// StartsAt resolves the booked slot to an instant in loc.
func (b Booking) StartsAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(StartLayout, b.SelectedDate+" "+b.SelectedTime, loc)
}

func BookingFromDB(row dbq.Booking) Booking {
	booking := Booking{
		ID:               row.ID,
		ConfirmationCode: row.ConfirmationCode,
		ExperienceID:     row.ExperienceID,
		SelectedDate:     row.SelectedDate,
		SelectedTime:     row.SelectedTime,
		Participants: BookingParticipants{
			Adults:   int(row.Adults),
			Children: int(row.Children),
			Infants:  int(row.Infants),
		},
		ContactName:     row.ContactName,
		ContactEmail:    row.ContactEmail,
		ContactPhone:    row.ContactPhone,
		SpecialRequests: row.SpecialRequests,
		CardLast4:       row.CardLast4,
		CardholderName:  row.CardholderName,
		Subtotal:        row.Subtotal,
		ServiceFee:      row.ServiceFee,
		TotalAmount:     row.TotalAmount,
		Status:          row.Status,
		CreatedAt:       row.CreatedAt,
	}
	if row.GuestUserID.Valid {
		id := row.GuestUserID.Int64
		booking.GuestUserID = &id
	}
	if row.ReminderSentAt.Valid {
		sentAt := row.ReminderSentAt.Time
		booking.ReminderSentAt = &sentAt
	}
	if row.CancelledAt.Valid {
		cancelledAt := row.CancelledAt.Time
		booking.CancelledAt = &cancelledAt
	}
	return booking
}

func BookingsFromDB(rows []dbq.Booking) []Booking {
	out := make([]Booking, 0, len(rows))
	for _, row := range rows {
		out = append(out, BookingFromDB(row))
	}
	return out
}
