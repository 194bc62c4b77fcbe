// internal/api/bookings/handlers.go
package bookings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Excursions/internal/api/apiutil"
	"github.com/codr1/Excursions/internal/api/authz"
	"github.com/codr1/Excursions/internal/booking"
	"github.com/codr1/Excursions/internal/booking/drafts"
	"github.com/codr1/Excursions/internal/config"
	appdb "github.com/codr1/Excursions/internal/db"
	dbq "github.com/codr1/Excursions/internal/db/queries"
	"github.com/codr1/Excursions/internal/email"
	"github.com/codr1/Excursions/internal/models"
	"github.com/codr1/Excursions/internal/pricing"
	"github.com/codr1/Excursions/internal/ratelimit"
)

const bookingQueryTimeout = 5 * time.Second

var (
	store       *appdb.DB
	draftStore  drafts.Store
	engine      *booking.Engine
	emailClient email.EmailSender
	emailSender string
	drafting    *ratelimit.Limiter
	trustProxy  bool
	initOnce    sync.Once
)

// InitHandlers must be called during server startup before handling requests.
// A nil limiter leaves draft creation unthrottled.
func InitHandlers(database *appdb.DB, draftsStore drafts.Store, wizardEngine *booking.Engine, client email.EmailSender, limiter *ratelimit.Limiter, cfg *config.Config) {
	if database == nil || draftsStore == nil {
		return
	}
	initOnce.Do(func() {
		store = database
		draftStore = draftsStore
		engine = wizardEngine
		emailClient = client
		drafting = limiter
		if cfg != nil {
			emailSender = cfg.Email.Sender
			trustProxy = cfg.App.TrustProxy
			if engine == nil {
				engine = booking.NewEngine(cfg.Booking.PhoneRegion)
			}
		}
	})
}

type createDraftRequest struct {
	ExperienceID int64 `json:"experienceId" validate:"required,gt=0"`
}

type dateRequest struct {
	Date string `json:"date"`
}

type timeRequest struct {
	Time string `json:"time"`
}

// draftResponse is the wizard as clients see it: payment details redacted
// plus the derived quote and step progress.
type draftResponse struct {
	booking.Wizard
	Quote      pricing.Quote        `json:"quote"`
	Progress   []booking.StepView   `json:"progress"`
	CanProceed bool                 `json:"canProceed"`
	Problems   []booking.FieldError `json:"problems,omitempty"`
	Booking    *models.Booking      `json:"booking,omitempty"`
}

func newDraftResponse(w booking.Wizard, created *dbq.Booking) draftResponse {
	resp := draftResponse{
		Wizard:     w.Redacted(),
		Quote:      w.Quote(),
		Progress:   booking.Progress(w.Step),
		CanProceed: engine.CanProceed(&w),
	}
	if !w.Completed {
		resp.Problems = engine.Validate(&w)
	}
	if created != nil {
		b := models.BookingFromDB(*created)
		resp.Booking = &b
	}
	return resp
}

// POST /api/v1/bookings/drafts
func HandleDraftCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if !ready(w, r) {
		return
	}

	var req createDraftRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fields := apiutil.ValidateStruct(req); len(fields) > 0 {
		apiutil.WriteFieldErrors(w, "Invalid booking draft", fields)
		return
	}

	ip := ratelimit.GetClientIP(r, trustProxy)
	if drafting != nil {
		if result := drafting.ReserveDraft(ip); !result.Allowed {
			ratelimit.LogRateLimitExceeded(r.Context(), "draft", "", ip, result)
			w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfterSeconds()))
			apiutil.WriteError(w, http.StatusTooManyRequests, "Too many bookings started. Please try again later.")
			return
		}
	}
	created := false
	defer func() {
		if drafting != nil && !created {
			drafting.ReleaseDraft(ip)
		}
	}()

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	row, err := store.Queries.GetExperienceByID(ctx, req.ExperienceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusNotFound, "Experience not found")
			return
		}
		logger.Error().Err(err).Int64("experience_id", req.ExperienceID).Msg("Failed to load experience")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to start booking")
		return
	}
	exp, err := models.ExperienceFromDB(row)
	if err != nil {
		logger.Error().Err(err).Int64("experience_id", req.ExperienceID).Msg("Failed to decode experience")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to start booking")
		return
	}

	wizard, err := engine.NewWizard("", exp, identityFor(authz.UserFromContext(r.Context())))
	if err != nil {
		writeDraftError(w, r, err)
		return
	}
	if err := draftStore.Create(ctx, wizard); err != nil {
		logger.Error().Err(err).Msg("Failed to store booking draft")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to start booking")
		return
	}
	created = true

	logger.Info().Str("draft_id", wizard.ID).Int64("experience_id", exp.ID).Msg("Booking draft started")
	if err := apiutil.WriteJSON(w, http.StatusCreated, newDraftResponse(wizard, nil)); err != nil {
		logger.Error().Err(err).Msg("Failed to write draft response")
	}
}

// GET /api/v1/bookings/drafts/{id}
func HandleDraftGet(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	wizard, err := draftStore.Get(ctx, r.PathValue("id"))
	if err == nil {
		err = checkOwner(r, wizard)
	}
	if err != nil {
		writeDraftError(w, r, err)
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, newDraftResponse(wizard, nil))
}

// DELETE /api/v1/bookings/drafts/{id}
func HandleDraftDelete(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	id := r.PathValue("id")
	wizard, err := draftStore.Get(ctx, id)
	if err == nil {
		err = checkOwner(r, wizard)
	}
	if err == nil {
		err = draftStore.Delete(ctx, id)
	}
	if err != nil {
		writeDraftError(w, r, err)
		return
	}
	log.Ctx(r.Context()).Info().Str("draft_id", id).Msg("Booking draft discarded")
	w.WriteHeader(http.StatusNoContent)
}

// PUT /api/v1/bookings/drafts/{id}/date
func HandleDraftSetDate(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if !decode(w, r, &req) {
		return
	}
	mutateDraft(w, r, func(wz *booking.Wizard) error {
		return engine.SetDate(wz, req.Date)
	})
}

// PUT /api/v1/bookings/drafts/{id}/time
func HandleDraftSetTime(w http.ResponseWriter, r *http.Request) {
	var req timeRequest
	if !decode(w, r, &req) {
		return
	}
	mutateDraft(w, r, func(wz *booking.Wizard) error {
		return engine.SetTime(wz, req.Time)
	})
}

// PUT /api/v1/bookings/drafts/{id}/participants
func HandleDraftParticipants(w http.ResponseWriter, r *http.Request) {
	var patch booking.ParticipantsPatch
	if !decode(w, r, &patch) {
		return
	}
	mutateDraft(w, r, func(wz *booking.Wizard) error {
		return engine.UpdateParticipants(wz, patch)
	})
}

// PUT /api/v1/bookings/drafts/{id}/contact
func HandleDraftContact(w http.ResponseWriter, r *http.Request) {
	var patch booking.ContactPatch
	if !decode(w, r, &patch) {
		return
	}
	mutateDraft(w, r, func(wz *booking.Wizard) error {
		return engine.UpdateContact(wz, patch)
	})
}

// PUT /api/v1/bookings/drafts/{id}/payment
func HandleDraftPayment(w http.ResponseWriter, r *http.Request) {
	var patch booking.PaymentPatch
	if !decode(w, r, &patch) {
		return
	}
	mutateDraft(w, r, func(wz *booking.Wizard) error {
		return engine.UpdatePayment(wz, patch)
	})
}

// POST /api/v1/bookings/drafts/{id}/next
func HandleDraftNext(w http.ResponseWriter, r *http.Request) {
	mutateDraft(w, r, func(wz *booking.Wizard) error {
		return engine.Next(wz)
	})
}

// POST /api/v1/bookings/drafts/{id}/back
func HandleDraftBack(w http.ResponseWriter, r *http.Request) {
	mutateDraft(w, r, func(wz *booking.Wizard) error {
		return engine.Back(wz)
	})
}

// POST /api/v1/bookings/drafts/{id}/complete
func HandleDraftComplete(w http.ResponseWriter, r *http.Request) {
	mutateDraft(w, r, func(wz *booking.Wizard) error {
		return engine.Complete(wz)
	})
}

// POST /api/v1/bookings/drafts/{id}/close
func HandleDraftClose(w http.ResponseWriter, r *http.Request) {
	mutateDraft(w, r, func(wz *booking.Wizard) error {
		engine.Close(wz)
		return nil
	})
}

// mutateDraft applies op to the stored draft. When op completes the wizard the
// booking row is written before the draft is saved, so a failed insert leaves
// the draft at the payment step. A booking inserted before a failed draft
// save is still confirmed by email, and the next completion of the same
// attempt returns it instead of booking twice.
func mutateDraft(w http.ResponseWriter, r *http.Request, op func(*booking.Wizard) error) {
	logger := log.Ctx(r.Context())
	if !ready(w, r) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	var (
		created  *dbq.Booking
		inserted bool
		booked   booking.Wizard
	)
	wizard, err := draftStore.Update(ctx, r.PathValue("id"), func(wz *booking.Wizard) error {
		if err := checkOwner(r, *wz); err != nil {
			return err
		}
		wasCompleted := wz.Completed
		if err := op(wz); err != nil {
			return err
		}
		if wasCompleted || !wz.Completed {
			return nil
		}
		// Update may rerun this closure after a write conflict.
		if created != nil {
			wz.ConfirmationCode = created.ConfirmationCode
			return nil
		}
		row, isNew, err := persistBooking(ctx, *wz)
		if err != nil {
			return err
		}
		wz.ConfirmationCode = row.ConfirmationCode
		created, inserted, booked = &row, isNew, *wz
		return nil
	})
	if inserted {
		logger.Info().
			Str("draft_id", r.PathValue("id")).
			Str("confirmation_code", created.ConfirmationCode).
			Int64("experience_id", created.ExperienceID).
			Msg("Booking confirmed")
		sendConfirmation(r, booked, *created)
	}
	if err != nil {
		if inserted {
			logger.Warn().Err(err).Str("confirmation_code", created.ConfirmationCode).Msg("Booking saved but draft update failed")
		}
		writeDraftError(w, r, err)
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, newDraftResponse(wizard, created)); err != nil {
		logger.Error().Err(err).Msg("Failed to write draft response")
	}
}

// persistBooking writes the confirmed booking for a just-completed wizard and
// reports whether it inserted a row. A booking already written for the same
// completion key is returned as is. The listing is re-read so a booking cannot
// land on a listing withdrawn while the guest was filling in the form.
func persistBooking(ctx context.Context, wz booking.Wizard) (dbq.Booking, bool, error) {
	var (
		created  dbq.Booking
		inserted bool
	)
	key := wz.CompletionKey()
	err := store.RunInTx(ctx, func(txdb *appdb.DB) error {
		existing, err := txdb.Queries.GetBookingByDraftKey(ctx, key)
		switch {
		case err == nil:
			created = existing
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("load booking for draft: %w", err)
		}

		row, err := txdb.Queries.GetExperienceByID(ctx, wz.Experience.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return booking.ErrExperienceUnavailable
			}
			return fmt.Errorf("load experience: %w", err)
		}
		if row.Status != models.ExperienceStatusApproved {
			return booking.ErrExperienceUnavailable
		}

		phone, err := engine.NormalizePhone(wz.Data.ContactInfo.Phone)
		if err != nil {
			phone = strings.TrimSpace(wz.Data.ContactInfo.Phone)
		}
		quote := wz.Quote()
		params := dbq.CreateBookingParams{
			ConfirmationCode: wz.ConfirmationCode,
			ExperienceID:     wz.Experience.ID,
			GuestUserID:      apiutil.NullInt64(wz.Identity.UserID),
			SelectedDate:     derefString(wz.Data.SelectedDate),
			SelectedTime:     wz.Data.SelectedTime,
			Adults:           int64(wz.Data.Participants.Adults),
			Children:         int64(wz.Data.Participants.Children),
			Infants:          int64(wz.Data.Participants.Infants),
			ContactName:      strings.TrimSpace(wz.Data.ContactInfo.Name),
			ContactEmail:     strings.ToLower(strings.TrimSpace(wz.Data.ContactInfo.Email)),
			ContactPhone:     phone,
			SpecialRequests:  strings.TrimSpace(wz.Data.ContactInfo.SpecialRequests),
			CardLast4:        booking.CardLast4(wz.Data.PaymentInfo.CardNumber),
			CardholderName:   strings.TrimSpace(wz.Data.PaymentInfo.CardholderName),
			Subtotal:         quote.Subtotal,
			ServiceFee:       quote.ServiceFee,
			TotalAmount:      quote.Total,
			DraftKey:         sql.NullString{String: key, Valid: true},
		}
		created, err = txdb.Queries.CreateBooking(ctx, params)
		if err != nil {
			return fmt.Errorf("create booking: %w", err)
		}
		inserted = true
		return nil
	})
	if err != nil {
		return dbq.Booking{}, false, err
	}
	return created, inserted, nil
}

func sendConfirmation(r *http.Request, wz booking.Wizard, row dbq.Booking) {
	message := email.BuildBookingConfirmation(bookingDetails(wz.Experience.Title, wz.Experience.City, wz.Experience.Pricing.Currency, row))
	email.Dispatch(r.Context(), emailClient, email.Envelope{To: row.ContactEmail, From: emailSender, Message: message})
}

func bookingDetails(title, city, currency string, row dbq.Booking) email.BookingDetails {
	date, slot := email.FormatBookingDate(row.SelectedDate, row.SelectedTime)
	return email.BookingDetails{
		ExperienceTitle:  title,
		City:             city,
		Date:             date,
		Time:             slot,
		ConfirmationCode: row.ConfirmationCode,
		ContactName:      row.ContactName,
		Adults:           int(row.Adults),
		Children:         int(row.Children),
		Infants:          int(row.Infants),
		Total:            pricing.FormatAmount(row.TotalAmount, currency),
		SpecialRequests:  row.SpecialRequests,
	}
}

// checkOwner hides drafts started by a signed-in user from everyone else.
func checkOwner(r *http.Request, wz booking.Wizard) error {
	if wz.Identity.UserID == nil {
		return nil
	}
	user := authz.UserFromContext(r.Context())
	if user == nil || user.ID != *wz.Identity.UserID {
		return booking.ErrDraftNotFound
	}
	return nil
}

func identityFor(user *authz.AuthUser) booking.Identity {
	if user == nil {
		return booking.Identity{}
	}
	id := user.ID
	return booking.Identity{UserID: &id, Name: user.Name, Email: user.Email, Phone: user.Phone}
}

func writeDraftError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *booking.ValidationError
	switch {
	case errors.As(err, &verr):
		fields := make([]apiutil.FieldError, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			fields = append(fields, apiutil.FieldError{Field: f.Field, Reason: f.Reason})
		}
		apiutil.WriteFieldErrors(w, verr.Step.Title()+" is incomplete", fields)
	case errors.Is(err, booking.ErrDraftNotFound):
		apiutil.WriteError(w, http.StatusNotFound, "Booking draft not found")
	case errors.Is(err, booking.ErrFirstStep),
		errors.Is(err, booking.ErrTerminalStep),
		errors.Is(err, booking.ErrPaymentStepRequired),
		errors.Is(err, booking.ErrBookingCompleted),
		errors.Is(err, booking.ErrExperienceUnavailable),
		errors.Is(err, drafts.ErrConflict):
		apiutil.WriteError(w, http.StatusConflict, capitalize(err.Error()))
	default:
		log.Ctx(r.Context()).Error().Err(err).Str("draft_id", r.PathValue("id")).Msg("Booking draft operation failed")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to update booking")
	}
}

func ready(w http.ResponseWriter, r *http.Request) bool {
	if store == nil || draftStore == nil || engine == nil {
		log.Ctx(r.Context()).Error().Msg("Booking handlers not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return false
	}
	return true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := apiutil.DecodeJSON(r, dst); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
