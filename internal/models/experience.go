// internal/models/experience.go
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	dbq "github.com/codr1/Excursions/internal/db/queries"
)

const (
	ExperienceStatusDraft    = "draft"
	ExperienceStatusPending  = "pending"
	ExperienceStatusApproved = "approved"
	ExperienceStatusRejected = "rejected"
)

// DateLayout is the calendar-day format used for availability and bookings.
const DateLayout = "2006-01-02"

// TimeSlotLayout is the wall-clock format of an experience time slot.
const TimeSlotLayout = "15:04"

const maxTitleLength = 120

var (
	ErrInvalidDate       = errors.New("date must use YYYY-MM-DD")
	ErrDateInPast        = errors.New("date is in the past")
	ErrDateOutsideWindow = errors.New("date is outside the availability window")
	ErrDateBlackout      = errors.New("date is unavailable")
)

var slugRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
var slugStripRegex = regexp.MustCompile(`[^a-z0-9]+`)

type GroupSize struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

type Pricing struct {
	BasePrice float64   `json:"basePrice"`
	Currency  string    `json:"currency"`
	GroupSize GroupSize `json:"groupSize"`
}

type Availability struct {
	StartDate     string   `json:"startDate"`
	EndDate       string   `json:"endDate"`
	TimeSlots     []string `json:"timeSlots"`
	BlackoutDates []string `json:"blackoutDates"`
}

type Experience struct {
	ID              int64        `json:"id"`
	HostID          int64        `json:"hostId"`
	Slug            string       `json:"slug"`
	Title           string       `json:"title"`
	City            string       `json:"city"`
	Category        string       `json:"category"`
	Description     string       `json:"description"`
	DurationMinutes int          `json:"durationMinutes"`
	Pricing         Pricing      `json:"pricing"`
	Availability    Availability `json:"availability"`
	Status          string       `json:"status"`
	ReviewNotes     string       `json:"reviewNotes,omitempty"`
	Rating          float64      `json:"rating"`
	ReviewCount     int          `json:"reviewCount"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
	ApprovedAt      *time.Time   `json:"approvedAt,omitempty"`
}

// ParseDate parses a YYYY-MM-DD calendar day in UTC.
func ParseDate(value string) (time.Time, error) {
	parsed, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return parsed, nil
}

// DateKey formats t's calendar day in its own location.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

func IsTimeSlot(value string) bool {
	_, err := time.Parse(TimeSlotLayout, value)
	return err == nil && len(value) == len(TimeSlotLayout)
}

// CheckDate reports why day cannot be booked, or nil when it can. today is the
// current calendar day as a DateKey.
func (a Availability) CheckDate(day, today string) error {
	if _, err := ParseDate(day); err != nil {
		return err
	}
	if day < today {
		return ErrDateInPast
	}
	if day < a.StartDate || day > a.EndDate {
		return ErrDateOutsideWindow
	}
	if slices.Contains(a.BlackoutDates, day) {
		return ErrDateBlackout
	}
	return nil
}

func (a Availability) HasTimeSlot(slot string) bool {
	return slot != "" && slices.Contains(a.TimeSlots, slot)
}

// Bookable reports whether guests may start a booking for the listing.
func (e Experience) Bookable() bool {
	return e.Status == ExperienceStatusApproved
}

// CanTransition reports whether a listing may move between the two statuses.
func CanTransition(from, to string) bool {
	switch to {
	case ExperienceStatusPending:
		return from == ExperienceStatusDraft || from == ExperienceStatusRejected
	case ExperienceStatusApproved, ExperienceStatusRejected:
		return from == ExperienceStatusPending
	default:
		return false
	}
}

// StatusesBefore lists the statuses a listing may move to `to` from.
func StatusesBefore(to string) []string {
	var out []string
	for _, from := range []string{ExperienceStatusDraft, ExperienceStatusPending, ExperienceStatusApproved, ExperienceStatusRejected} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// Validate checks host-supplied listing fields.
func (e Experience) Validate() error {
	title := strings.TrimSpace(e.Title)
	if title == "" {
		return fmt.Errorf("title is required")
	}
	if len(title) > maxTitleLength {
		return fmt.Errorf("title must be %d characters or fewer", maxTitleLength)
	}
	if strings.TrimSpace(e.City) == "" {
		return fmt.Errorf("city is required")
	}
	if e.Slug != "" && !slugRegex.MatchString(e.Slug) {
		return fmt.Errorf("slug may only contain lowercase letters, numbers, and single hyphens")
	}
	if e.DurationMinutes < 0 {
		return fmt.Errorf("durationMinutes must be 0 or greater")
	}
	if e.Pricing.BasePrice < 0 {
		return fmt.Errorf("basePrice must be 0 or greater")
	}
	if len(e.Pricing.Currency) != 3 {
		return fmt.Errorf("currency must be a 3-letter code")
	}
	if e.Pricing.GroupSize.Min < 1 {
		return fmt.Errorf("groupSize.min must be at least 1")
	}
	if e.Pricing.GroupSize.Max < e.Pricing.GroupSize.Min {
		return fmt.Errorf("groupSize.max must be greater than or equal to groupSize.min")
	}

	start, err := ParseDate(e.Availability.StartDate)
	if err != nil {
		return fmt.Errorf("startDate must use YYYY-MM-DD")
	}
	end, err := ParseDate(e.Availability.EndDate)
	if err != nil {
		return fmt.Errorf("endDate must use YYYY-MM-DD")
	}
	if end.Before(start) {
		return fmt.Errorf("endDate must not be before startDate")
	}
	if len(e.Availability.TimeSlots) == 0 {
		return fmt.Errorf("timeSlots must include at least one slot")
	}
	for _, slot := range e.Availability.TimeSlots {
		if !IsTimeSlot(slot) {
			return fmt.Errorf("timeSlots entry %q must use HH:MM", slot)
		}
	}
	for _, day := range e.Availability.BlackoutDates {
		if _, err := ParseDate(day); err != nil {
			return fmt.Errorf("blackoutDates entry %q must use YYYY-MM-DD", day)
		}
	}
	return nil
}

// Normalize trims text fields, upper-cases the currency, sorts slots and
// blackout dates and derives a slug from the title when none is set.
func (e *Experience) Normalize() {
	e.Title = strings.TrimSpace(e.Title)
	e.City = strings.TrimSpace(e.City)
	e.Category = strings.ToLower(strings.TrimSpace(e.Category))
	e.Description = strings.TrimSpace(e.Description)
	e.Pricing.Currency = strings.ToUpper(strings.TrimSpace(e.Pricing.Currency))
	if e.Pricing.Currency == "" {
		e.Pricing.Currency = "USD"
	}
	if e.Pricing.GroupSize.Min == 0 {
		e.Pricing.GroupSize.Min = 1
	}
	e.Availability.TimeSlots = sortedUnique(e.Availability.TimeSlots)
	e.Availability.BlackoutDates = sortedUnique(e.Availability.BlackoutDates)
	if e.Slug == "" {
		e.Slug = Slugify(e.Title)
	}
}

func Slugify(value string) string {
	slug := slugStripRegex.ReplaceAllString(strings.ToLower(value), "-")
	return strings.Trim(slug, "-")
}

func sortedUnique(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value != "" {
			out = append(out, value)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func ExperienceFromDB(row dbq.Experience) (Experience, error) {
	var slots, blackouts []string
	if err := decodeStringList(row.TimeSlots, &slots); err != nil {
		return Experience{}, fmt.Errorf("decode time slots for experience %d: %w", row.ID, err)
	}
	if err := decodeStringList(row.BlackoutDates, &blackouts); err != nil {
		return Experience{}, fmt.Errorf("decode blackout dates for experience %d: %w", row.ID, err)
	}

	experience := Experience{
		ID:              row.ID,
		HostID:          row.HostID,
		Slug:            row.Slug,
		Title:           row.Title,
		City:            row.City,
		Category:        row.Category,
		Description:     row.Description,
		DurationMinutes: int(row.DurationMinutes),
		Pricing: Pricing{
			BasePrice: row.BasePrice,
			Currency:  row.Currency,
			GroupSize: GroupSize{Min: int(row.GroupMin), Max: int(row.GroupMax)},
		},
		Availability: Availability{
			StartDate:     row.StartDate,
			EndDate:       row.EndDate,
			TimeSlots:     slots,
			BlackoutDates: blackouts,
		},
		Status:      row.Status,
		ReviewNotes: row.ReviewNotes,
		Rating:      row.Rating,
		ReviewCount: int(row.ReviewCount),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if row.ApprovedAt.Valid {
		approvedAt := row.ApprovedAt.Time
		experience.ApprovedAt = &approvedAt
	}
	return experience, nil
}

func ExperiencesFromDB(rows []dbq.Experience) ([]Experience, error) {
	out := make([]Experience, 0, len(rows))
	for _, row := range rows {
		experience, err := ExperienceFromDB(row)
		if err != nil {
			return nil, err
		}
		out = append(out, experience)
	}
	return out, nil
}

// CreateParams maps a validated listing onto insert parameters.
func (e Experience) CreateParams() dbq.CreateExperienceParams {
	return dbq.CreateExperienceParams{
		HostID:          e.HostID,
		Slug:            e.Slug,
		Title:           e.Title,
		City:            e.City,
		Category:        e.Category,
		Description:     e.Description,
		DurationMinutes: int64(e.DurationMinutes),
		BasePrice:       e.Pricing.BasePrice,
		Currency:        e.Pricing.Currency,
		GroupMin:        int64(e.Pricing.GroupSize.Min),
		GroupMax:        int64(e.Pricing.GroupSize.Max),
		StartDate:       e.Availability.StartDate,
		EndDate:         e.Availability.EndDate,
		TimeSlots:       EncodeStringList(e.Availability.TimeSlots),
		BlackoutDates:   EncodeStringList(e.Availability.BlackoutDates),
		Status:          e.Status,
		Rating:          e.Rating,
		ReviewCount:     int64(e.ReviewCount),
	}
}

func (e Experience) UpdateParams() dbq.UpdateHostExperienceParams {
	return dbq.UpdateHostExperienceParams{
		ID:              e.ID,
		HostID:          e.HostID,
		Title:           e.Title,
		City:            e.City,
		Category:        e.Category,
		Description:     e.Description,
		DurationMinutes: int64(e.DurationMinutes),
		BasePrice:       e.Pricing.BasePrice,
		Currency:        e.Pricing.Currency,
		GroupMin:        int64(e.Pricing.GroupSize.Min),
		GroupMax:        int64(e.Pricing.GroupSize.Max),
		StartDate:       e.Availability.StartDate,
		EndDate:         e.Availability.EndDate,
		TimeSlots:       EncodeStringList(e.Availability.TimeSlots),
		BlackoutDates:   EncodeStringList(e.Availability.BlackoutDates),
	}
}

func EncodeStringList(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeStringList(raw string, dst *[]string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*dst = []string{}
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return err
	}
	if *dst == nil {
		*dst = []string{}
	}
	return nil
}
