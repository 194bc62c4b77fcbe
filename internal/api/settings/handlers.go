// internal/api/settings/handlers.go
package settings

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
	dbq "github.com/codr1/Excursions/internal/db/queries"
)

const settingsQueryTimeout = 5 * time.Second

type settingsQueries interface {
	GetUserSettings(ctx context.Context, userID int64) (dbq.UserSetting, error)
	UpsertUserSettings(ctx context.Context, arg dbq.UpsertUserSettingsParams) (dbq.UserSetting, error)
}

var (
	queries     settingsQueries
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

type Settings struct {
	EmailNotifications bool   `json:"emailNotifications"`
	SmsNotifications   bool   `json:"smsNotifications"`
	MarketingEmails    bool   `json:"marketingEmails"`
	Language           string `json:"language"`
	Currency           string `json:"currency"`
	Timezone           string `json:"timezone"`
}

// Defaults is what a user sees before saving anything.
func Defaults() Settings {
	return Settings{
		EmailNotifications: true,
		Language:           "en",
		Currency:           "USD",
		Timezone:           "UTC",
	}
}

type updateRequest struct {
	EmailNotifications *bool   `json:"emailNotifications"`
	SmsNotifications   *bool   `json:"smsNotifications"`
	MarketingEmails    *bool   `json:"marketingEmails"`
	Language           *string `json:"language" validate:"omitnil,oneof=en es fr de"`
	Currency           *string `json:"currency" validate:"omitnil,oneof=USD EUR GBP"`
	Timezone           *string `json:"timezone" validate:"omitnil,iana_tz"`
}

func (req updateRequest) apply(s Settings) Settings {
	if req.EmailNotifications != nil {
		s.EmailNotifications = *req.EmailNotifications
	}
	if req.SmsNotifications != nil {
		s.SmsNotifications = *req.SmsNotifications
	}
	if req.MarketingEmails != nil {
		s.MarketingEmails = *req.MarketingEmails
	}
	if req.Language != nil {
		s.Language = *req.Language
	}
	if req.Currency != nil {
		s.Currency = *req.Currency
	}
	if req.Timezone != nil {
		s.Timezone = *req.Timezone
	}
	return s
}

func fromDB(row dbq.UserSetting) Settings {
	return Settings{
		EmailNotifications: row.EmailNotifications,
		SmsNotifications:   row.SmsNotifications,
		MarketingEmails:    row.MarketingEmails,
		Language:           row.Language,
		Currency:           row.Currency,
		Timezone:           row.Timezone,
	}
}

// GET /api/v1/settings
func HandleSettingsGet(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	user := apiutil.RequireRole(w, r)
	if user == nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), settingsQueryTimeout)
	defer cancel()

	current, err := load(ctx, user.ID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load settings")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, current)
}

// PUT /api/v1/settings
// Omitted fields keep their current value.
func HandleSettingsUpdate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	user := apiutil.RequireRole(w, r)
	if user == nil {
		return
	}

	var req updateRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Currency != nil {
		upper := strings.ToUpper(strings.TrimSpace(*req.Currency))
		req.Currency = &upper
	}
	if req.Language != nil {
		lower := strings.ToLower(strings.TrimSpace(*req.Language))
		req.Language = &lower
	}
	if fields := apiutil.ValidateStruct(req); len(fields) > 0 {
		apiutil.WriteFieldErrors(w, "Invalid settings", fields)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), settingsQueryTimeout)
	defer cancel()

	current, err := load(ctx, user.ID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load settings")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}
	next := req.apply(current)

	saved, err := queries.UpsertUserSettings(ctx, dbq.UpsertUserSettingsParams{
		UserID:             user.ID,
		EmailNotifications: next.EmailNotifications,
		SmsNotifications:   next.SmsNotifications,
		MarketingEmails:    next.MarketingEmails,
		Language:           next.Language,
		Currency:           next.Currency,
		Timezone:           next.Timezone,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to save settings")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}

	logger.Info().Str("language", saved.Language).Str("currency", saved.Currency).Msg("Settings saved")
	_ = apiutil.WriteJSON(w, http.StatusOK, fromDB(saved))
}

func load(ctx context.Context, userID int64) (Settings, error) {
	row, err := queries.GetUserSettings(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return Defaults(), nil
	}
	if err != nil {
		return Settings{}, err
	}
	return fromDB(row), nil
}
