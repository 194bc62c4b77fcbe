package apiutil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/templ"
	"github.com/rs/zerolog/log"

	"github.com/codr1/Excursions/internal/api/authz"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// HandlerError carries an HTTP status out of a transaction closure.
type HandlerError struct {
	Status  int
	Message string
	Err     error
	Fields  []FieldError
}

func (e HandlerError) Error() string {
	return e.Message
}

func (e HandlerError) Unwrap() error {
	return e.Err
}

type errorResponse struct {
	Error       string       `json:"error"`
	FieldErrors []FieldError `json:"fieldErrors,omitempty"`
}

func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("missing request body")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("missing request body")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	if err := encoder.Encode(payload); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteError sends a JSON error envelope.
func WriteError(w http.ResponseWriter, status int, message string) {
	_ = WriteJSON(w, status, errorResponse{Error: message})
}

// WriteFieldErrors answers 422 with the offending fields.
func WriteFieldErrors(w http.ResponseWriter, message string, fields []FieldError) {
	_ = WriteJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: message, FieldErrors: fields})
}

// WriteHandlerError unwraps a HandlerError when present and logs the cause.
// Any other error is reported as a 500 with fallback.
func WriteHandlerError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	logger := log.Ctx(r.Context())
	var herr HandlerError
	if errors.As(err, &herr) {
		if herr.Status >= http.StatusInternalServerError {
			logger.Error().Err(herr.Err).Msg(herr.Message)
		}
		if len(herr.Fields) > 0 {
			_ = WriteJSON(w, herr.Status, errorResponse{Error: herr.Message, FieldErrors: herr.Fields})
			return
		}
		WriteError(w, herr.Status, herr.Message)
		return
	}
	logger.Error().Err(err).Msg(fallback)
	WriteError(w, http.StatusInternalServerError, fallback)
}

// RequireRole writes 401 or 403 and returns nil when the request's user lacks
// every listed role.
func RequireRole(w http.ResponseWriter, r *http.Request, roles ...string) *authz.AuthUser {
	logger := log.Ctx(r.Context())
	user := authz.UserFromContext(r.Context())
	if err := authz.RequireRole(r.Context(), roles...); err != nil {
		switch {
		case errors.Is(err, authz.ErrUnauthenticated):
			logger.Debug().Str("path", r.URL.Path).Msg("Access denied: unauthenticated")
			WriteError(w, http.StatusUnauthorized, "Unauthorized")
		case errors.Is(err, authz.ErrForbidden):
			logEvent := logger.Warn().Str("path", r.URL.Path).Strs("required_roles", roles)
			if user != nil {
				logEvent = logEvent.Int64("user_id", user.ID)
			}
			logEvent.Msg("Access denied: forbidden")
			WriteError(w, http.StatusForbidden, "Forbidden")
		default:
			logger.Error().Err(err).Msg("Access denied: error")
			WriteError(w, http.StatusInternalServerError, "Failed to authorize request")
		}
		return nil
	}
	return user
}

// RenderHTMLComponent renders component as a full HTML response.
func RenderHTMLComponent(ctx context.Context, w http.ResponseWriter, component templ.Component, logMsg, errorMsg string) bool {
	var buf bytes.Buffer
	if err := component.Render(ctx, &buf); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg(logMsg)
		http.Error(w, errorMsg, http.StatusInternalServerError)
		return false
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
	return true
}
