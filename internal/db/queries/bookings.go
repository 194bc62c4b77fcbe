package queries

import (
	"context"
	"database/sql"
	"time"
)

type Booking struct {
	ID               int64
	ConfirmationCode string
	ExperienceID     int64
	GuestUserID      sql.NullInt64
	SelectedDate     string
	SelectedTime     string
	Adults           int64
	Children         int64
	Infants          int64
	ContactName      string
	ContactEmail     string
	ContactPhone     string
	SpecialRequests  string
	CardLast4        string
	CardholderName   string
	Subtotal         float64
	ServiceFee       float64
	TotalAmount      float64
	Status           string
	ReminderSentAt   sql.NullTime
	CancelledAt      sql.NullTime
	CreatedAt        time.Time
}

const bookingColumns = `id, confirmation_code, experience_id, guest_user_id, selected_date, selected_time,
adults, children, infants, contact_name, contact_email, contact_phone, special_requests,
card_last4, cardholder_name, subtotal, service_fee, total_amount, status, reminder_sent_at,
cancelled_at, created_at`

func scanBooking(row rowScanner) (Booking, error) {
	var b Booking
	err := row.Scan(
		&b.ID, &b.ConfirmationCode, &b.ExperienceID, &b.GuestUserID, &b.SelectedDate, &b.SelectedTime,
		&b.Adults, &b.Children, &b.Infants, &b.ContactName, &b.ContactEmail, &b.ContactPhone, &b.SpecialRequests,
		&b.CardLast4, &b.CardholderName, &b.Subtotal, &b.ServiceFee, &b.TotalAmount, &b.Status, &b.ReminderSentAt,
		&b.CancelledAt, &b.CreatedAt,
	)
	return b, err
}

func (q *Queries) queryBookings(ctx context.Context, query string, args ...any) ([]Booking, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Booking
	for rows.Next() {
		item, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type CreateBookingParams struct {
	ConfirmationCode string
	ExperienceID     int64
	GuestUserID      sql.NullInt64
	SelectedDate     string
	SelectedTime     string
	Adults           int64
	Children         int64
	Infants          int64
	ContactName      string
	ContactEmail     string
	ContactPhone     string
	SpecialRequests  string
	CardLast4        string
	CardholderName   string
	Subtotal         float64
	ServiceFee       float64
	TotalAmount      float64
	DraftKey         sql.NullString
}

const createBooking = `INSERT INTO bookings (
    confirmation_code, experience_id, guest_user_id, selected_date, selected_time, adults, children, infants,
    contact_name, contact_email, contact_phone, special_requests, card_last4, cardholder_name,
    subtotal, service_fee, total_amount, draft_key
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + bookingColumns

func (q *Queries) CreateBooking(ctx context.Context, arg CreateBookingParams) (Booking, error) {
	return scanBooking(q.db.QueryRowContext(ctx, createBooking,
		arg.ConfirmationCode, arg.ExperienceID, arg.GuestUserID, arg.SelectedDate, arg.SelectedTime,
		arg.Adults, arg.Children, arg.Infants, arg.ContactName, arg.ContactEmail, arg.ContactPhone,
		arg.SpecialRequests, arg.CardLast4, arg.CardholderName, arg.Subtotal, arg.ServiceFee, arg.TotalAmount,
		arg.DraftKey,
	))
}

const getBookingByDraftKey = `SELECT ` + bookingColumns + ` FROM bookings WHERE draft_key = ?`

func (q *Queries) GetBookingByDraftKey(ctx context.Context, draftKey string) (Booking, error) {
	return scanBooking(q.db.QueryRowContext(ctx, getBookingByDraftKey, draftKey))
}

const getBookingByCode = `SELECT ` + bookingColumns + ` FROM bookings WHERE confirmation_code = ?`

func (q *Queries) GetBookingByCode(ctx context.Context, code string) (Booking, error) {
	return scanBooking(q.db.QueryRowContext(ctx, getBookingByCode, code))
}

const listBookingsByGuest = `SELECT ` + bookingColumns + ` FROM bookings
WHERE guest_user_id = ?
ORDER BY selected_date DESC, selected_time DESC, id DESC`

func (q *Queries) ListBookingsByGuest(ctx context.Context, guestUserID int64) ([]Booking, error) {
	return q.queryBookings(ctx, listBookingsByGuest, guestUserID)
}

const listBookingsByHost = `SELECT ` + prefixedBookingColumns + ` FROM bookings b
JOIN experiences e ON e.id = b.experience_id
WHERE e.host_id = ?
ORDER BY b.selected_date ASC, b.selected_time ASC, b.id ASC`

const prefixedBookingColumns = `b.id, b.confirmation_code, b.experience_id, b.guest_user_id, b.selected_date, b.selected_time,
b.adults, b.children, b.infants, b.contact_name, b.contact_email, b.contact_phone, b.special_requests,
b.card_last4, b.cardholder_name, b.subtotal, b.service_fee, b.total_amount, b.status, b.reminder_sent_at,
b.cancelled_at, b.created_at`

func (q *Queries) ListBookingsByHost(ctx context.Context, hostID int64) ([]Booking, error) {
	return q.queryBookings(ctx, listBookingsByHost, hostID)
}

type CancelBookingParams struct {
	ConfirmationCode string
	CancelledAt      time.Time
}

const cancelBooking = `UPDATE bookings
SET status = 'cancelled', cancelled_at = ?
WHERE confirmation_code = ? AND status = 'confirmed'
RETURNING ` + bookingColumns

func (q *Queries) CancelBooking(ctx context.Context, arg CancelBookingParams) (Booking, error) {
	return scanBooking(q.db.QueryRowContext(ctx, cancelBooking, arg.CancelledAt, arg.ConfirmationCode))
}

type ListBookingsStartingBetweenParams struct {
	// From and To use the "2006-01-02 15:04" layout.
	From string
	To   string
}

const listBookingsStartingBetween = `SELECT ` + bookingColumns + ` FROM bookings
WHERE status = 'confirmed'
  AND reminder_sent_at IS NULL
  AND (selected_date || ' ' || selected_time) >= ?
  AND (selected_date || ' ' || selected_time) < ?
ORDER BY selected_date ASC, selected_time ASC`

func (q *Queries) ListBookingsStartingBetween(ctx context.Context, arg ListBookingsStartingBetweenParams) ([]Booking, error) {
	return q.queryBookings(ctx, listBookingsStartingBetween, arg.From, arg.To)
}

type MarkReminderSentParams struct {
	ID     int64
	SentAt time.Time
}

const markReminderSent = `UPDATE bookings SET reminder_sent_at = ? WHERE id = ? AND reminder_sent_at IS NULL`

func (q *Queries) MarkReminderSent(ctx context.Context, arg MarkReminderSentParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, markReminderSent, arg.SentAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const completePastBookings = `UPDATE bookings SET status = 'completed'
WHERE status = 'confirmed' AND selected_date < ?`

// CompletePastBookings marks confirmed bookings dated before beforeDate (YYYY-MM-DD) as completed.
func (q *Queries) CompletePastBookings(ctx context.Context, beforeDate string) (int64, error) {
	result, err := q.db.ExecContext(ctx, completePastBookings, beforeDate)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type HostExperienceStat struct {
	ExperienceID     int64
	Title            string
	Status           string
	BookingCount     int64
	GuestCount       int64
	UpcomingBookings int64
	Revenue          float64
}

type ListHostExperienceStatsParams struct {
	HostID int64
	Today  string
}

const listHostExperienceStats = `SELECT
    e.id,
    e.title,
    e.status,
    COUNT(b.id) FILTER (WHERE b.status != 'cancelled'),
    COALESCE(SUM(b.adults + b.children + b.infants) FILTER (WHERE b.status != 'cancelled'), 0),
    COUNT(b.id) FILTER (WHERE b.status = 'confirmed' AND b.selected_date >= ?),
    COALESCE(SUM(b.total_amount) FILTER (WHERE b.status IN ('confirmed', 'completed')), 0)
FROM experiences e
LEFT JOIN bookings b ON b.experience_id = e.id
WHERE e.host_id = ?
GROUP BY e.id, e.title, e.status
ORDER BY e.id ASC`

func (q *Queries) ListHostExperienceStats(ctx context.Context, arg ListHostExperienceStatsParams) ([]HostExperienceStat, error) {
	rows, err := q.db.QueryContext(ctx, listHostExperienceStats, arg.Today, arg.HostID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []HostExperienceStat
	for rows.Next() {
		var s HostExperienceStat
		if err := rows.Scan(&s.ExperienceID, &s.Title, &s.Status, &s.BookingCount, &s.GuestCount, &s.UpcomingBookings, &s.Revenue); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
