// internal/api/experiences/handlers.go
package experiences

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Excursions/internal/api/apiutil"
	"github.com/codr1/Excursions/internal/api/authz"
	dbq "github.com/codr1/Excursions/internal/db/queries"
	"github.com/codr1/Excursions/internal/models"
)

const experienceQueryTimeout = 5 * time.Second

var (
	queries     *dbq.Queries
	queriesOnce sync.Once
)

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(q *dbq.Queries) {
	if q == nil {
		return
	}
	queriesOnce.Do(func() {
		queries = q
	})
}

// GET /api/v1/experiences?city=&category=
func HandleExperienceList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), experienceQueryTimeout)
	defer cancel()

	rows, err := queries.ListApprovedExperiences(ctx, dbq.ListApprovedExperiencesParams{
		City:     apiutil.QueryString(r, "city"),
		Category: apiutil.QueryString(r, "category"),
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list experiences")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load experiences")
		return
	}
	items, err := models.ExperiencesFromDB(rows)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to decode experiences")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load experiences")
		return
	}

	_ = apiutil.WriteJSON(w, http.StatusOK, map[string]any{"experiences": items})
}

// GET /api/v1/experiences/{slug}
// Listings that are not approved are visible only to their host and admins.
func HandleExperienceDetail(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), experienceQueryTimeout)
	defer cancel()

	slug := r.PathValue("slug")
	row, err := queries.GetExperienceBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusNotFound, "Experience not found")
			return
		}
		logger.Error().Err(err).Str("slug", slug).Msg("Failed to load experience")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load experience")
		return
	}

	if row.Status != models.ExperienceStatusApproved && !authz.OwnsListing(authz.UserFromContext(r.Context()), row.HostID) {
		apiutil.WriteError(w, http.StatusNotFound, "Experience not found")
		return
	}

	exp, err := models.ExperienceFromDB(row)
	if err != nil {
		logger.Error().Err(err).Int64("experience_id", row.ID).Msg("Failed to decode experience")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load experience")
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, exp)
}
