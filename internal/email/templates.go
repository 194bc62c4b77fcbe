package email

import (
	"fmt"
	"strings"
	"time"
)

// Message kinds, used as SES tags and in logs.
const (
	KindConfirmation = "booking_confirmation"
	KindReminder     = "booking_reminder"
	KindCancellation = "booking_cancellation"
	KindContact      = "contact_notification"
)

type Message struct {
	Kind    string
	Subject string
	Body    string
}

type BookingDetails struct {
	ExperienceTitle  string
	City             string
	Date             string
	Time             string
	ConfirmationCode string
	ContactName      string
	Adults           int
	Children         int
	Infants          int
	Total            string
	SpecialRequests  string
}

type ContactDetails struct {
	Name    string
	Email   string
	Subject string
	Message string
}

// FormatBookingDate renders a YYYY-MM-DD day and HH:MM slot for humans. Values
// that do not parse are returned unchanged.
func FormatBookingDate(day, slot string) (string, string) {
	date := day
	if parsed, err := time.Parse("2006-01-02", day); err == nil {
		date = parsed.Format("Monday, Jan 2, 2006")
	}
	clock := slot
	if parsed, err := time.Parse("15:04", slot); err == nil {
		clock = parsed.Format("3:04 PM")
	}
	return date, clock
}

// PartyLabel summarises a party as "2 adults, 1 child".
func PartyLabel(adults, children, infants int) string {
	parts := []string{plural(adults, "adult", "adults")}
	if children > 0 {
		parts = append(parts, plural(children, "child", "children"))
	}
	if infants > 0 {
		parts = append(parts, plural(infants, "infant", "infants"))
	}
	return strings.Join(parts, ", ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", one)
	}
	return fmt.Sprintf("%d %s", n, many)
}

func BuildBookingConfirmation(details BookingDetails) Message {
	d := withDefaults(details)
	lines := []string{
		fmt.Sprintf("Hi %s,", d.ContactName),
		"",
		fmt.Sprintf("Your booking for %s is confirmed.", d.ExperienceTitle),
		"",
	}
	lines = append(lines, bookingLines(d)...)
	lines = append(lines, fmt.Sprintf("Total paid: %s", d.Total))
	if d.SpecialRequests != "" {
		lines = append(lines, fmt.Sprintf("Special requests: %s", d.SpecialRequests))
	}
	lines = append(lines, "", "Keep your confirmation code handy; you will need it to manage or cancel the booking.")

	return Message{
		Kind:    KindConfirmation,
		Subject: fmt.Sprintf("Booking Confirmed - %s (%s)", d.ExperienceTitle, d.ConfirmationCode),
		Body:    strings.Join(lines, "\n"),
	}
}

func BuildBookingReminder(details BookingDetails) Message {
	d := withDefaults(details)
	lines := []string{
		fmt.Sprintf("Hi %s,", d.ContactName),
		"",
		fmt.Sprintf("This is a reminder that %s is coming up soon.", d.ExperienceTitle),
		"",
	}
	lines = append(lines, bookingLines(d)...)

	return Message{
		Kind:    KindReminder,
		Subject: fmt.Sprintf("Reminder - %s on %s", d.ExperienceTitle, d.Date),
		Body:    strings.Join(lines, "\n"),
	}
}

func BuildBookingCancellation(details BookingDetails) Message {
	d := withDefaults(details)
	lines := []string{
		fmt.Sprintf("Hi %s,", d.ContactName),
		"",
		fmt.Sprintf("Your booking for %s has been cancelled.", d.ExperienceTitle),
		"",
	}
	lines = append(lines, bookingLines(d)...)

	return Message{
		Kind:    KindCancellation,
		Subject: fmt.Sprintf("Booking Cancelled - %s (%s)", d.ExperienceTitle, d.ConfirmationCode),
		Body:    strings.Join(lines, "\n"),
	}
}

func BuildContactNotification(details ContactDetails) Message {
	subject := strings.TrimSpace(details.Subject)
	if subject == "" {
		subject = "(no subject)"
	}
	lines := []string{
		fmt.Sprintf("From: %s <%s>", strings.TrimSpace(details.Name), strings.TrimSpace(details.Email)),
		fmt.Sprintf("Subject: %s", subject),
		"",
		strings.TrimSpace(details.Message),
	}
	return Message{
		Kind:    KindContact,
		Subject: fmt.Sprintf("Contact form: %s", subject),
		Body:    strings.Join(lines, "\n"),
	}
}

func bookingLines(d BookingDetails) []string {
	lines := []string{
		fmt.Sprintf("Confirmation code: %s", d.ConfirmationCode),
		fmt.Sprintf("Experience: %s", d.ExperienceTitle),
	}
	if d.City != "" {
		lines = append(lines, fmt.Sprintf("Location: %s", d.City))
	}
	lines = append(lines,
		fmt.Sprintf("Date: %s", d.Date),
		fmt.Sprintf("Time: %s", d.Time),
		fmt.Sprintf("Guests: %s", PartyLabel(d.Adults, d.Children, d.Infants)),
	)
	return lines
}

func withDefaults(details BookingDetails) BookingDetails {
	details.ExperienceTitle = orDefault(details.ExperienceTitle, "your experience")
	details.ContactName = orDefault(details.ContactName, "there")
	details.Date = orDefault(details.Date, "TBD")
	details.Time = orDefault(details.Time, "TBD")
	details.ConfirmationCode = orDefault(details.ConfirmationCode, "N/A")
	details.Total = orDefault(details.Total, "N/A")
	details.City = strings.TrimSpace(details.City)
	details.SpecialRequests = strings.TrimSpace(details.SpecialRequests)
	if details.Adults < 1 {
		details.Adults = 1
	}
	return details
}

func orDefault(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}
