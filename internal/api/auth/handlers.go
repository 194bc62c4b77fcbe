package auth

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nyaruka/phonenumbers"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/codr1/Excursions/internal/api/apiutil"
	"github.com/codr1/Excursions/internal/api/authz"
	"github.com/codr1/Excursions/internal/config"
	dbq "github.com/codr1/Excursions/internal/db/queries"
	"github.com/codr1/Excursions/internal/ratelimit"
)

const authQueryTimeout = 5 * time.Second

type authQueries interface {
	CreateUser(ctx context.Context, arg dbq.CreateUserParams) (dbq.User, error)
	GetUserByEmail(ctx context.Context, email string) (dbq.User, error)
	GetUserByID(ctx context.Context, id int64) (dbq.User, error)
}

var (
	queries   authQueries
	appConfig *config.Config
	limiter   *rate.Limiter
	attempts  *ratelimit.Limiter
	initOnce  sync.Once
)

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Phone    string `json:"phone" validate:"max=32"`
	Role     string `json:"role" validate:"omitempty,oneof=guest host"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Role  string `json:"role"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(q *dbq.Queries, cfg *config.Config, loginLimiter *ratelimit.Limiter) {
	if q == nil {
		return
	}
	initOnce.Do(func() {
		queries = q
		appConfig = cfg
		attempts = loginLimiter
		limiter = rate.NewLimiter(rate.Limit(100), 10) // More restrictive for auth
	})
}

// POST /api/v1/auth/register
func HandleRegister(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if !allowAuthRequest(w) {
		return
	}

	var req registerRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	if fields := apiutil.ValidateStruct(req); len(fields) > 0 {
		apiutil.WriteFieldErrors(w, "Invalid registration", fields)
		return
	}

	phone, err := normalizePhone(req.Phone)
	if err != nil {
		apiutil.WriteFieldErrors(w, "Invalid registration", []apiutil.FieldError{{Field: "phone", Reason: "must be a valid phone number"}})
		return
	}

	role := req.Role
	if role == "" {
		role = authz.RoleGuest
	}

	hash, err := HashPassword(req.Password)
	if errors.Is(err, ErrPasswordTooLong) {
		apiutil.WriteFieldErrors(w, "Invalid registration", []apiutil.FieldError{{Field: "password", Reason: "must be 72 bytes or fewer"}})
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("Failed to hash password")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), authQueryTimeout)
	defer cancel()

	if _, err := queries.GetUserByEmail(ctx, req.Email); err == nil {
		apiutil.WriteError(w, http.StatusConflict, "An account with that email already exists")
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		logger.Error().Err(err).Msg("Failed to check existing account")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	user, err := queries.CreateUser(ctx, dbq.CreateUserParams{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        phone,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create user")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	if err := CreateSession(w, user.ID); err != nil {
		logger.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to create session")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}

	logger.Info().Int64("user_id", user.ID).Str("role", user.Role).Msg("Account registered")
	if err := apiutil.WriteJSON(w, http.StatusCreated, toUserResponse(user)); err != nil {
		logger.Error().Err(err).Msg("Failed to write register response")
	}
}

// POST /api/v1/auth/login
func HandleLogin(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if !allowAuthRequest(w) {
		return
	}

	var req loginRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if fields := apiutil.ValidateStruct(req); len(fields) > 0 {
		apiutil.WriteFieldErrors(w, "Invalid login", fields)
		return
	}

	ip := ratelimit.GetClientIP(r, appConfig != nil && appConfig.App.TrustProxy)
	if attempts != nil {
		if result := attempts.CheckLogin(req.Email, ip); !result.Allowed {
			ratelimit.LogRateLimitExceeded(r.Context(), "login", req.Email, ip, result)
			w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfterSeconds()))
			apiutil.WriteError(w, http.StatusTooManyRequests, "Too many login attempts. Try again later.")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), authQueryTimeout)
	defer cancel()

	user, err := queries.GetUserByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		logger.Error().Err(err).Msg("Failed to load user for login")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}
	if errors.Is(err, sql.ErrNoRows) {
		user = dbq.User{}
	}
	if !VerifyPassword(user.PasswordHash, req.Password) {
		if attempts != nil && attempts.RecordFailedLogin(req.Email, ip) {
			logger.Warn().Str("email", ratelimit.SanitizeIdentifier(req.Email)).Msg("Login locked after repeated failures")
		}
		apiutil.WriteError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if attempts != nil {
		attempts.ResetLogin(req.Email)
	}

	if err := CreateSession(w, user.ID); err != nil {
		logger.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to create session")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}

	logger.Info().Int64("user_id", user.ID).Msg("User signed in")
	if err := apiutil.WriteJSON(w, http.StatusOK, toUserResponse(user)); err != nil {
		logger.Error().Err(err).Msg("Failed to write login response")
	}
}

// POST /api/v1/auth/logout
func HandleLogout(w http.ResponseWriter, r *http.Request) {
	ClearSession(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/auth/me
func HandleMe(w http.ResponseWriter, r *http.Request) {
	user := apiutil.RequireRole(w, r)
	if user == nil {
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, userResponse{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Phone: user.Phone,
		Role:  user.Role,
	})
}

func allowAuthRequest(w http.ResponseWriter) bool {
	if limiter != nil && !limiter.Allow() {
		apiutil.WriteError(w, http.StatusTooManyRequests, "Too many requests")
		return false
	}
	return true
}

// normalizePhone returns E.164 for a valid number, or "" for an empty one.
func normalizePhone(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	region := "US"
	if appConfig != nil && appConfig.Booking.PhoneRegion != "" {
		region = appConfig.Booking.PhoneRegion
	}
	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", err
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", errors.New("invalid phone number")
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func toUserResponse(u dbq.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone, Role: u.Role}
}
