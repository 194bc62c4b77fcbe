// Package drafts keeps booking wizards between requests. Drafts never reach
// the SQL database; they expire after a period without changes.
package drafts

import (
	"context"
	"errors"

	"github.com/codr1/Excursions/internal/booking"
)

// maxUpdateAttempts bounds optimistic retries when concurrent writers race.
const maxUpdateAttempts = 5

var ErrConflict = errors.New("booking draft was modified concurrently")

// Store persists wizards by ID. Missing or expired drafts report
// booking.ErrDraftNotFound.
type Store interface {
	Create(ctx context.Context, w booking.Wizard) error
	Get(ctx context.Context, id string) (booking.Wizard, error)
	// Update loads the draft, applies fn and saves the result. When fn returns
	// an error nothing is written and that error is returned.
	Update(ctx context.Context, id string, fn func(*booking.Wizard) error) (booking.Wizard, error)
	Delete(ctx context.Context, id string) error
	// PurgeExpired drops expired drafts and reports how many were removed.
	PurgeExpired(ctx context.Context) (int, error)
}
