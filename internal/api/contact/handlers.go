// internal/api/contact/handlers.go
package contact

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Excursions/internal/api/apiutil"
	"github.com/codr1/Excursions/internal/config"
	dbq "github.com/codr1/Excursions/internal/db/queries"
	"github.com/codr1/Excursions/internal/email"
	"github.com/codr1/Excursions/internal/ratelimit"
)

const contactQueryTimeout = 5 * time.Second

type contactQueries interface {
	CreateContactMessage(ctx context.Context, arg dbq.CreateContactMessageParams) (dbq.ContactMessage, error)
}

var (
	queries        contactQueries
	limiter        *ratelimit.Limiter
	emailClient    email.EmailSender
	supportAddress string
	trustProxy     bool
	initOnce       sync.Once
)

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(q *dbq.Queries, contactLimiter *ratelimit.Limiter, client email.EmailSender, cfg *config.Config) {
	if q == nil {
		return
	}
	initOnce.Do(func() {
		queries = q
		limiter = contactLimiter
		emailClient = client
		if cfg != nil {
			supportAddress = cfg.Email.SupportAddress
			trustProxy = cfg.App.TrustProxy
		}
	})
}

type contactRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Subject string `json:"subject" validate:"required,max=200"`
	Message string `json:"message" validate:"required,min=10,max=5000"`
}

type contactResponse struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

// POST /api/v1/contact
func HandleContactSubmit(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	var req contactRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Subject = strings.TrimSpace(req.Subject)
	req.Message = strings.TrimSpace(req.Message)
	if fields := apiutil.ValidateStruct(req); len(fields) > 0 {
		apiutil.WriteFieldErrors(w, "Invalid contact message", fields)
		return
	}

	ip := ratelimit.GetClientIP(r, trustProxy)
	if limiter != nil {
		if result := limiter.CheckContact(req.Email, ip); !result.Allowed {
			ratelimit.LogRateLimitExceeded(r.Context(), "contact", req.Email, ip, result)
			w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfterSeconds()))
			apiutil.WriteError(w, http.StatusTooManyRequests, "You have sent too many messages. Please try again later.")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), contactQueryTimeout)
	defer cancel()

	saved, err := queries.CreateContactMessage(ctx, dbq.CreateContactMessageParams{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to store contact message")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to send message")
		return
	}
	if limiter != nil {
		limiter.RecordContact(req.Email, ip)
	}

	message := email.BuildContactNotification(email.ContactDetails{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
	})
	// Support replies go straight to the submitter.
	email.Dispatch(r.Context(), emailClient, email.Envelope{To: supportAddress, ReplyTo: req.Email, Message: message})

	logger.Info().Int64("contact_message_id", saved.ID).Msg("Contact message received")
	_ = apiutil.WriteJSON(w, http.StatusCreated, contactResponse{
		ID:      saved.ID,
		Message: "Thanks for reaching out. We will get back to you soon.",
	})
}
