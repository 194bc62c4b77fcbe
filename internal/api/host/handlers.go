// internal/api/host/handlers.go
package host

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Excursions/internal/api/apiutil"
	"github.com/codr1/Excursions/internal/api/authz"
	appdb "github.com/codr1/Excursions/internal/db"
	dbq "github.com/codr1/Excursions/internal/db/queries"
	"github.com/codr1/Excursions/internal/models"
)

const (
	hostQueryTimeout = 5 * time.Second
	maxSlugAttempts  = 20
)

var (
	store    *appdb.DB
	now      = time.Now
	initOnce sync.Once
)

// InitHandlers must be called during server startup before handling requests.
// clock supplies the current time in the booking time zone.
func InitHandlers(database *appdb.DB, clock func() time.Time) {
	if database == nil {
		return
	}
	initOnce.Do(func() {
		store = database
		if clock != nil {
			now = clock
		}
	})
}

type experienceRequest struct {
	Title           string              `json:"title" validate:"required,max=120"`
	City            string              `json:"city" validate:"required,max=80"`
	Category        string              `json:"category" validate:"max=60"`
	Description     string              `json:"description" validate:"max=4000"`
	DurationMinutes int                 `json:"durationMinutes" validate:"gte=0"`
	Pricing         models.Pricing      `json:"pricing"`
	Availability    models.Availability `json:"availability"`
}

func (req experienceRequest) toExperience(hostID int64) models.Experience {
	exp := models.Experience{
		HostID:          hostID,
		Title:           req.Title,
		City:            req.City,
		Category:        req.Category,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		Pricing:         req.Pricing,
		Availability:    req.Availability,
		Status:          models.ExperienceStatusDraft,
	}
	exp.Normalize()
	return exp
}

// GET /api/v1/host/experiences
func HandleExperienceList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	user := requireHost(w, r)
	if user == nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), hostQueryTimeout)
	defer cancel()

	rows, err := store.Queries.ListExperiencesByHost(ctx, user.ID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list host experiences")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load experiences")
		return
	}
	items, err := models.ExperiencesFromDB(rows)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to decode host experiences")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load experiences")
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, map[string]any{"experiences": items})
}

// POST /api/v1/host/experiences
func HandleExperienceCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	user := requireHost(w, r)
	if user == nil {
		return
	}

	exp, ok := decodeExperience(w, r, user.ID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), hostQueryTimeout)
	defer cancel()

	var created dbq.Experience
	err := store.RunInTx(ctx, func(txdb *appdb.DB) error {
		slug, err := uniqueSlug(ctx, txdb.Queries, exp.Slug)
		if err != nil {
			return apiutil.HandlerError{Status: http.StatusInternalServerError, Message: "Failed to create experience", Err: err}
		}
		exp.Slug = slug
		created, err = txdb.Queries.CreateExperience(ctx, exp.CreateParams())
		if err != nil {
			return apiutil.HandlerError{Status: http.StatusInternalServerError, Message: "Failed to create experience", Err: err}
		}
		return nil
	})
	if err != nil {
		apiutil.WriteHandlerError(w, r, err, "Failed to create experience")
		return
	}

	writeExperience(w, r, http.StatusCreated, created)
	logger.Info().Int64("experience_id", created.ID).Str("slug", created.Slug).Msg("Experience drafted")
}

// PUT /api/v1/host/experiences/{id}
func HandleExperienceUpdate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	user := requireHost(w, r)
	if user == nil {
		return
	}

	id, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	exp, ok := decodeExperience(w, r, user.ID)
	if !ok {
		return
	}
	exp.ID = id

	ctx, cancel := context.WithTimeout(r.Context(), hostQueryTimeout)
	defer cancel()

	current, ok := loadOwnedExperience(ctx, w, r, id, user)
	if !ok {
		return
	}
	exp.HostID = current.HostID

	updated, err := store.Queries.UpdateHostExperience(ctx, exp.UpdateParams())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusConflict, fmt.Sprintf("Experiences that are %s cannot be edited", current.Status))
			return
		}
		logger.Error().Err(err).Int64("experience_id", id).Msg("Failed to update experience")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to update experience")
		return
	}

	writeExperience(w, r, http.StatusOK, updated)
}

// POST /api/v1/host/experiences/{id}/submit
func HandleExperienceSubmit(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	user := requireHost(w, r)
	if user == nil {
		return
	}

	id, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), hostQueryTimeout)
	defer cancel()

	current, ok := loadOwnedExperience(ctx, w, r, id, user)
	if !ok {
		return
	}
	if !models.CanTransition(current.Status, models.ExperienceStatusPending) {
		apiutil.WriteError(w, http.StatusConflict, fmt.Sprintf("Experiences that are %s cannot be submitted", current.Status))
		return
	}

	submitted, err := store.Queries.UpdateExperienceStatus(ctx, dbq.UpdateExperienceStatusParams{
		ID:           id,
		FromStatuses: models.StatusesBefore(models.ExperienceStatusPending),
		Status:       models.ExperienceStatusPending,
		ReviewNotes:  current.ReviewNotes,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusConflict, "Experience changed status while submitting")
			return
		}
		logger.Error().Err(err).Int64("experience_id", id).Msg("Failed to submit experience")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to submit experience")
		return
	}

	logger.Info().Int64("experience_id", id).Msg("Experience submitted for review")
	writeExperience(w, r, http.StatusOK, submitted)
}

func requireHost(w http.ResponseWriter, r *http.Request) *authz.AuthUser {
	if store == nil {
		log.Ctx(r.Context()).Error().Msg("Host handlers not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return nil
	}
	return apiutil.RequireRole(w, r, authz.RoleHost)
}

func decodeExperience(w http.ResponseWriter, r *http.Request, hostID int64) (models.Experience, bool) {
	var req experienceRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return models.Experience{}, false
	}
	if fields := apiutil.ValidateStruct(req); len(fields) > 0 {
		apiutil.WriteFieldErrors(w, "Invalid experience", fields)
		return models.Experience{}, false
	}
	exp := req.toExperience(hostID)
	if err := exp.Validate(); err != nil {
		apiutil.WriteFieldErrors(w, "Invalid experience", []apiutil.FieldError{modelFieldError(err)})
		return models.Experience{}, false
	}
	return exp, true
}

// modelFieldError splits "title is required" into a field and a reason.
func modelFieldError(err error) apiutil.FieldError {
	msg := err.Error()
	field, reason, ok := strings.Cut(msg, " ")
	if !ok {
		return apiutil.FieldError{Field: "experience", Reason: msg}
	}
	return apiutil.FieldError{Field: field, Reason: reason}
}

// loadOwnedExperience answers 404 for listings owned by other hosts. Admins
// may act on any listing.
func loadOwnedExperience(ctx context.Context, w http.ResponseWriter, r *http.Request, id int64, user *authz.AuthUser) (dbq.Experience, bool) {
	row, err := store.Queries.GetExperienceByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusNotFound, "Experience not found")
			return dbq.Experience{}, false
		}
		log.Ctx(r.Context()).Error().Err(err).Int64("experience_id", id).Msg("Failed to load experience")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load experience")
		return dbq.Experience{}, false
	}
	if !authz.OwnsListing(user, row.HostID) {
		apiutil.WriteError(w, http.StatusNotFound, "Experience not found")
		return dbq.Experience{}, false
	}
	return row, true
}

func uniqueSlug(ctx context.Context, q *dbq.Queries, base string) (string, error) {
	if base == "" {
		base = "experience"
	}
	candidate := base
	for i := 2; i <= maxSlugAttempts+1; i++ {
		_, err := q.GetExperienceBySlug(ctx, candidate)
		if errors.Is(err, sql.ErrNoRows) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", fmt.Errorf("no free slug for %q", base)
}

func writeExperience(w http.ResponseWriter, r *http.Request, status int, row dbq.Experience) {
	exp, err := models.ExperienceFromDB(row)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Int64("experience_id", row.ID).Msg("Failed to decode experience")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load experience")
		return
	}
	if err := apiutil.WriteJSON(w, status, exp); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write experience response")
	}
}
