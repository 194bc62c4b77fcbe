// internal/api/admin/handlers.go
package admin

import (
	"context"
	"database/sql"
	"errors"
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
	adminQueryTimeout       = 5 * time.Second
	defaultContactPageSize  = 50
	maxContactPageSize      = 200
	moderationActionApprove = "approve"
	moderationActionReject  = "reject"
)

var (
	store    *appdb.DB
	now      = time.Now
	initOnce sync.Once
)

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(database *appdb.DB) {
	if database == nil {
		return
	}
	initOnce.Do(func() {
		store = database
	})
}

type decisionRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

type moderationItem struct {
	models.Experience
	History []dbq.ModerationAction `json:"history"`
}

type decisionResponse struct {
	Experience models.Experience    `json:"experience"`
	Action     dbq.ModerationAction `json:"action"`
}

// GET /api/v1/admin/moderation
func HandleModerationQueue(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if requireAdmin(w, r) == nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), adminQueryTimeout)
	defer cancel()

	rows, err := store.Queries.ListExperiencesByStatus(ctx, models.ExperienceStatusPending)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list pending experiences")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load moderation queue")
		return
	}

	items := make([]moderationItem, 0, len(rows))
	for _, row := range rows {
		exp, err := models.ExperienceFromDB(row)
		if err != nil {
			logger.Error().Err(err).Int64("experience_id", row.ID).Msg("Failed to decode experience")
			apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load moderation queue")
			return
		}
		history, err := store.Queries.ListModerationActions(ctx, row.ID)
		if err != nil {
			logger.Error().Err(err).Int64("experience_id", row.ID).Msg("Failed to load moderation history")
			apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load moderation queue")
			return
		}
		if history == nil {
			history = []dbq.ModerationAction{}
		}
		items = append(items, moderationItem{Experience: exp, History: history})
	}

	_ = apiutil.WriteJSON(w, http.StatusOK, map[string]any{"pending": items})
}

// POST /api/v1/admin/experiences/{id}/approve
func HandleApprove(w http.ResponseWriter, r *http.Request) {
	decide(w, r, models.ExperienceStatusApproved)
}

// POST /api/v1/admin/experiences/{id}/reject
func HandleReject(w http.ResponseWriter, r *http.Request) {
	decide(w, r, models.ExperienceStatusRejected)
}

// decide moves a pending listing to status and records the audit row in the
// same transaction.
func decide(w http.ResponseWriter, r *http.Request, status string) {
	logger := log.Ctx(r.Context())
	admin := requireAdmin(w, r)
	if admin == nil {
		return
	}

	id, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req decisionRequest
	if r.ContentLength != 0 {
		if err := apiutil.DecodeJSON(r, &req); err != nil {
			apiutil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	req.Notes = strings.TrimSpace(req.Notes)
	if fields := apiutil.ValidateStruct(req); len(fields) > 0 {
		apiutil.WriteFieldErrors(w, "Invalid moderation decision", fields)
		return
	}
	if status == models.ExperienceStatusRejected && req.Notes == "" {
		apiutil.WriteFieldErrors(w, "Invalid moderation decision", []apiutil.FieldError{{Field: "notes", Reason: "is required when rejecting"}})
		return
	}

	action := moderationActionApprove
	var approvedAt sql.NullTime
	if status == models.ExperienceStatusRejected {
		action = moderationActionReject
	} else {
		approvedAt = sql.NullTime{Time: now().UTC(), Valid: true}
	}

	ctx, cancel := context.WithTimeout(r.Context(), adminQueryTimeout)
	defer cancel()

	var resp decisionResponse
	err = store.RunInTx(ctx, func(txdb *appdb.DB) error {
		row, err := txdb.Queries.UpdateExperienceStatus(ctx, dbq.UpdateExperienceStatusParams{
			ID:           id,
			FromStatuses: models.StatusesBefore(status),
			Status:       status,
			ReviewNotes:  req.Notes,
			ApprovedAt:   approvedAt,
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return transitionError(ctx, txdb, id)
			}
			return apiutil.HandlerError{Status: http.StatusInternalServerError, Message: "Failed to update experience", Err: err}
		}

		audit, err := txdb.Queries.CreateModerationAction(ctx, dbq.CreateModerationActionParams{
			ExperienceID: id,
			AdminUserID:  admin.ID,
			Action:       action,
			Notes:        req.Notes,
		})
		if err != nil {
			return apiutil.HandlerError{Status: http.StatusInternalServerError, Message: "Failed to record moderation action", Err: err}
		}

		exp, err := models.ExperienceFromDB(row)
		if err != nil {
			return apiutil.HandlerError{Status: http.StatusInternalServerError, Message: "Failed to load experience", Err: err}
		}
		resp = decisionResponse{Experience: exp, Action: audit}
		return nil
	})
	if err != nil {
		apiutil.WriteHandlerError(w, r, err, "Failed to moderate experience")
		return
	}

	logger.Info().
		Int64("experience_id", id).
		Str("action", action).
		Msg("Experience moderated")
	_ = apiutil.WriteJSON(w, http.StatusOK, resp)
}

// transitionError distinguishes a missing listing from one that is not pending.
func transitionError(ctx context.Context, txdb *appdb.DB, id int64) error {
	row, err := txdb.Queries.GetExperienceByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apiutil.HandlerError{Status: http.StatusNotFound, Message: "Experience not found", Err: err}
		}
		return apiutil.HandlerError{Status: http.StatusInternalServerError, Message: "Failed to load experience", Err: err}
	}
	return apiutil.HandlerError{
		Status:  http.StatusConflict,
		Message: "Only pending experiences can be moderated (current status: " + row.Status + ")",
	}
}

// GET /api/v1/admin/contact-messages?limit=
func HandleContactMessages(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if requireAdmin(w, r) == nil {
		return
	}

	limit, err := apiutil.QueryLimit(r, "limit", defaultContactPageSize, maxContactPageSize)
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), adminQueryTimeout)
	defer cancel()

	messages, err := store.Queries.ListContactMessages(ctx, limit)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list contact messages")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load contact messages")
		return
	}
	if messages == nil {
		messages = []dbq.ContactMessage{}
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func requireAdmin(w http.ResponseWriter, r *http.Request) *authz.AuthUser {
	if store == nil {
		log.Ctx(r.Context()).Error().Msg("Admin handlers not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return nil
	}
	return apiutil.RequireRole(w, r, authz.RoleAdmin)
}
