package queries

import (
	"context"
	"database/sql"
	"time"
)

type Experience struct {
	ID              int64
	HostID          int64
	Slug            string
	Title           string
	City            string
	Category        string
	Description     string
	DurationMinutes int64
	BasePrice       float64
	Currency        string
	GroupMin        int64
	GroupMax        int64
	StartDate       string
	EndDate         string
	TimeSlots       string
	BlackoutDates   string
	Status          string
	ReviewNotes     string
	Rating          float64
	ReviewCount     int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ApprovedAt      sql.NullTime
}

const experienceColumns = `id, host_id, slug, title, city, category, description, duration_minutes,
base_price, currency, group_min, group_max, start_date, end_date, time_slots, blackout_dates,
status, review_notes, rating, review_count, created_at, updated_at, approved_at`

func scanExperience(row rowScanner) (Experience, error) {
	var e Experience
	err := row.Scan(
		&e.ID, &e.HostID, &e.Slug, &e.Title, &e.City, &e.Category, &e.Description, &e.DurationMinutes,
		&e.BasePrice, &e.Currency, &e.GroupMin, &e.GroupMax, &e.StartDate, &e.EndDate, &e.TimeSlots, &e.BlackoutDates,
		&e.Status, &e.ReviewNotes, &e.Rating, &e.ReviewCount, &e.CreatedAt, &e.UpdatedAt, &e.ApprovedAt,
	)
	return e, err
}

func (q *Queries) queryExperiences(ctx context.Context, query string, args ...any) ([]Experience, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Experience
	for rows.Next() {
		item, err := scanExperience(rows)
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

type CreateExperienceParams struct {
	HostID          int64
	Slug            string
	Title           string
	City            string
	Category        string
	Description     string
	DurationMinutes int64
	BasePrice       float64
	Currency        string
	GroupMin        int64
	GroupMax        int64
	StartDate       string
	EndDate         string
	TimeSlots       string
	BlackoutDates   string
	Status          string
	Rating          float64
	ReviewCount     int64
}

const createExperience = `INSERT INTO experiences (
    host_id, slug, title, city, category, description, duration_minutes, base_price, currency,
    group_min, group_max, start_date, end_date, time_slots, blackout_dates, status, rating, review_count
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + experienceColumns

func (q *Queries) CreateExperience(ctx context.Context, arg CreateExperienceParams) (Experience, error) {
	return scanExperience(q.db.QueryRowContext(ctx, createExperience,
		arg.HostID, arg.Slug, arg.Title, arg.City, arg.Category, arg.Description, arg.DurationMinutes,
		arg.BasePrice, arg.Currency, arg.GroupMin, arg.GroupMax, arg.StartDate, arg.EndDate,
		arg.TimeSlots, arg.BlackoutDates, arg.Status, arg.Rating, arg.ReviewCount,
	))
}

type UpdateHostExperienceParams struct {
	ID              int64
	HostID          int64
	Title           string
	City            string
	Category        string
	Description     string
	DurationMinutes int64
	BasePrice       float64
	Currency        string
	GroupMin        int64
	GroupMax        int64
	StartDate       string
	EndDate         string
	TimeSlots       string
	BlackoutDates   string
}

// Approved and pending listings are frozen; hosts may only edit draft or rejected ones.
const updateHostExperience = `UPDATE experiences
SET title = ?, city = ?, category = ?, description = ?, duration_minutes = ?, base_price = ?,
    currency = ?, group_min = ?, group_max = ?, start_date = ?, end_date = ?, time_slots = ?,
    blackout_dates = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND host_id = ? AND status IN ('draft', 'rejected')
RETURNING ` + experienceColumns

func (q *Queries) UpdateHostExperience(ctx context.Context, arg UpdateHostExperienceParams) (Experience, error) {
	return scanExperience(q.db.QueryRowContext(ctx, updateHostExperience,
		arg.Title, arg.City, arg.Category, arg.Description, arg.DurationMinutes, arg.BasePrice,
		arg.Currency, arg.GroupMin, arg.GroupMax, arg.StartDate, arg.EndDate, arg.TimeSlots,
		arg.BlackoutDates, arg.ID, arg.HostID,
	))
}

const getExperienceByID = `SELECT ` + experienceColumns + ` FROM experiences WHERE id = ?`

func (q *Queries) GetExperienceByID(ctx context.Context, id int64) (Experience, error) {
	return scanExperience(q.db.QueryRowContext(ctx, getExperienceByID, id))
}

const getExperienceBySlug = `SELECT ` + experienceColumns + ` FROM experiences WHERE slug = ?`

func (q *Queries) GetExperienceBySlug(ctx context.Context, slug string) (Experience, error) {
	return scanExperience(q.db.QueryRowContext(ctx, getExperienceBySlug, slug))
}

type ListApprovedExperiencesParams struct {
	City     string
	Category string
}

const listApprovedExperiences = `SELECT ` + experienceColumns + ` FROM experiences
WHERE status = 'approved'
  AND (? = '' OR city = ? COLLATE NOCASE)
  AND (? = '' OR category = ? COLLATE NOCASE)
ORDER BY rating DESC, id ASC`

func (q *Queries) ListApprovedExperiences(ctx context.Context, arg ListApprovedExperiencesParams) ([]Experience, error) {
	return q.queryExperiences(ctx, listApprovedExperiences, arg.City, arg.City, arg.Category, arg.Category)
}

const listExperiencesByHost = `SELECT ` + experienceColumns + ` FROM experiences
WHERE host_id = ?
ORDER BY created_at DESC, id DESC`

func (q *Queries) ListExperiencesByHost(ctx context.Context, hostID int64) ([]Experience, error) {
	return q.queryExperiences(ctx, listExperiencesByHost, hostID)
}

const listExperiencesByStatus = `SELECT ` + experienceColumns + ` FROM experiences
WHERE status = ?
ORDER BY updated_at ASC, id ASC`

func (q *Queries) ListExperiencesByStatus(ctx context.Context, status string) ([]Experience, error) {
	return q.queryExperiences(ctx, listExperiencesByStatus, status)
}

type UpdateExperienceStatusParams struct {
	ID           int64
	FromStatuses []string
	Status       string
	ReviewNotes  string
	ApprovedAt   sql.NullTime
}

// UpdateExperienceStatus moves a listing to Status only when its current status
// is one of FromStatuses; sql.ErrNoRows signals a rejected transition.
func (q *Queries) UpdateExperienceStatus(ctx context.Context, arg UpdateExperienceStatusParams) (Experience, error) {
	query := `UPDATE experiences
SET status = ?, review_notes = ?, approved_at = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND status IN (` + placeholders(len(arg.FromStatuses)) + `)
RETURNING ` + experienceColumns

	args := []any{arg.Status, arg.ReviewNotes, arg.ApprovedAt, arg.ID}
	for _, status := range arg.FromStatuses {
		args = append(args, status)
	}
	return scanExperience(q.db.QueryRowContext(ctx, query, args...))
}

const countExperiences = `SELECT COUNT(*) FROM experiences`

func (q *Queries) CountExperiences(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countExperiences).Scan(&count)
	return count, err
}

func placeholders(n int) string {
	if n <= 0 {
		return "NULL"
	}
	out := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '?')
	}
	return string(out)
}
