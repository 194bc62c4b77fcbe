package bookings

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Excursions/internal/api/apiutil"
	"github.com/codr1/Excursions/internal/api/authz"
	dbq "github.com/codr1/Excursions/internal/db/queries"
	"github.com/codr1/Excursions/internal/email"
	"github.com/codr1/Excursions/internal/models"
)

type bookingResponse struct {
	models.Booking
	ExperienceTitle string `json:"experienceTitle"`
	ExperienceSlug  string `json:"experienceSlug"`
	City            string `json:"city"`
	Currency        string `json:"currency"`
}

// GET /api/v1/bookings/{code}
func HandleBookingGet(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if !ready(w, r) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	row, ok := loadAccessibleBooking(ctx, w, r)
	if !ok {
		return
	}
	exp, err := store.Queries.GetExperienceByID(ctx, row.ExperienceID)
	if err != nil {
		logger.Error().Err(err).Int64("experience_id", row.ExperienceID).Msg("Failed to load booked experience")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load booking")
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, toBookingResponse(row, exp))
}

// POST /api/v1/bookings/{code}/cancel
func HandleBookingCancel(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if !ready(w, r) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	existing, ok := loadAccessibleBooking(ctx, w, r)
	if !ok {
		return
	}

	cancelled, err := store.Queries.CancelBooking(ctx, dbq.CancelBookingParams{
		ConfirmationCode: existing.ConfirmationCode,
		CancelledAt:      time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusConflict, "Only confirmed bookings can be cancelled")
			return
		}
		logger.Error().Err(err).Str("confirmation_code", existing.ConfirmationCode).Msg("Failed to cancel booking")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to cancel booking")
		return
	}

	exp, err := store.Queries.GetExperienceByID(ctx, cancelled.ExperienceID)
	if err != nil {
		logger.Error().Err(err).Int64("experience_id", cancelled.ExperienceID).Msg("Failed to load booked experience")
		apiutil.WriteError(w, http.StatusInternalServerError, "Booking cancelled but could not be loaded")
		return
	}

	logger.Info().Str("confirmation_code", cancelled.ConfirmationCode).Msg("Booking cancelled")
	message := email.BuildBookingCancellation(bookingDetails(exp.Title, exp.City, exp.Currency, cancelled))
	email.Dispatch(r.Context(), emailClient, email.Envelope{To: cancelled.ContactEmail, From: emailSender, Message: message})

	_ = apiutil.WriteJSON(w, http.StatusOK, toBookingResponse(cancelled, exp))
}

// GET /api/v1/me/bookings
func HandleMyBookings(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if !ready(w, r) {
		return
	}
	user := apiutil.RequireRole(w, r)
	if user == nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	rows, err := store.Queries.ListBookingsByGuest(ctx, user.ID)
	if err != nil {
		logger.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to list bookings")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load bookings")
		return
	}

	experiences := make(map[int64]dbq.Experience)
	out := make([]bookingResponse, 0, len(rows))
	for _, row := range rows {
		exp, ok := experiences[row.ExperienceID]
		if !ok {
			exp, err = store.Queries.GetExperienceByID(ctx, row.ExperienceID)
			if err != nil {
				logger.Error().Err(err).Int64("experience_id", row.ExperienceID).Msg("Failed to load booked experience")
				apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load bookings")
				return
			}
			experiences[row.ExperienceID] = exp
		}
		out = append(out, toBookingResponse(row, exp))
	}

	_ = apiutil.WriteJSON(w, http.StatusOK, map[string]any{"bookings": out})
}

// loadAccessibleBooking answers 404 for unknown codes and for bookings the
// caller may not see, so codes cannot be probed.
func loadAccessibleBooking(ctx context.Context, w http.ResponseWriter, r *http.Request) (dbq.Booking, bool) {
	code := strings.ToUpper(strings.TrimSpace(r.PathValue("code")))
	if code == "" {
		apiutil.WriteError(w, http.StatusBadRequest, "confirmation code is required")
		return dbq.Booking{}, false
	}

	row, err := store.Queries.GetBookingByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusNotFound, "Booking not found")
			return dbq.Booking{}, false
		}
		log.Ctx(r.Context()).Error().Err(err).Str("confirmation_code", code).Msg("Failed to load booking")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load booking")
		return dbq.Booking{}, false
	}

	var guestID *int64
	if row.GuestUserID.Valid {
		guestID = &row.GuestUserID.Int64
	}
	if !authz.CanAccessBooking(authz.UserFromContext(r.Context()), guestID) {
		apiutil.WriteError(w, http.StatusNotFound, "Booking not found")
		return dbq.Booking{}, false
	}
	return row, true
}

func toBookingResponse(row dbq.Booking, exp dbq.Experience) bookingResponse {
	return bookingResponse{
		Booking:         models.BookingFromDB(row),
		ExperienceTitle: exp.Title,
		ExperienceSlug:  exp.Slug,
		City:            exp.City,
		Currency:        exp.Currency,
	}
}
