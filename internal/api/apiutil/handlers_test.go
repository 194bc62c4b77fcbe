package apiutil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/codr1/Excursions/internal/api/authz"
)

type sampleRequest struct {
	Name     string `json:"name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Currency string `json:"currency" validate:"omitempty,oneof=USD EUR"`
	Timezone string `json:"timezone" validate:"omitempty,iana_tz"`
	Guests   int    `json:"guests" validate:"gte=1"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"name":"Ana"}`, ""},
		{"empty body", ``, "missing request body"},
		{"unknown field", `{"nickname":"A"}`, "invalid JSON body"},
		{"trailing document", `{"name":"Ana"}{"name":"Bo"}`, "invalid JSON body"},
		{"malformed", `{"name":`, "invalid JSON body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst sampleRequest
			err := DecodeJSON(req, &dst)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateStructUsesJSONNames(t *testing.T) {
	got := ValidateStruct(sampleRequest{
		Name:     "A",
		Email:    "not-an-email",
		Currency: "JPY",
		Timezone: "Mars/Olympus",
	})
	want := []FieldError{
		{Field: "name", Reason: "must be at least 2 characters"},
		{Field: "email", Reason: "must be a valid email address"},
		{Field: "currency", Reason: "must be one of USD, EUR"},
		{Field: "timezone", Reason: "must be an IANA time zone"},
		{Field: "guests", Reason: "must be 1 or greater"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("field errors mismatch (-want +got):\n%s", diff)
	}

	valid := sampleRequest{Name: "Ana", Email: "ana@example.com", Timezone: "Europe/Lisbon", Guests: 2}
	if fields := ValidateStruct(valid); fields != nil {
		t.Fatalf("expected no errors, got %v", fields)
	}
}

func TestWriteHandlerError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   errorResponse
	}{
		{
			name:       "handler error",
			err:        HandlerError{Status: http.StatusConflict, Message: "Listing is not pending"},
			wantStatus: http.StatusConflict,
			wantBody:   errorResponse{Error: "Listing is not pending"},
		},
		{
			name: "handler error with fields",
			err: HandlerError{
				Status:  http.StatusUnprocessableEntity,
				Message: "Invalid listing",
				Fields:  []FieldError{{Field: "title", Reason: "is required"}},
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody: errorResponse{
				Error:       "Invalid listing",
				FieldErrors: []FieldError{{Field: "title", Reason: "is required"}},
			},
		},
		{
			name:       "wrapped handler error",
			err:        errors.Join(errors.New("tx"), HandlerError{Status: http.StatusNotFound, Message: "Not found"}),
			wantStatus: http.StatusNotFound,
			wantBody:   errorResponse{Error: "Not found"},
		},
		{
			name:       "plain error",
			err:        errors.New("disk full"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   errorResponse{Error: "Failed to save"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteHandlerError(rec, httptest.NewRequest(http.MethodPost, "/", nil), tt.err, "Failed to save")
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			var got errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if diff := cmp.Diff(tt.wantBody, got); diff != "" {
				t.Fatalf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	host := &authz.AuthUser{ID: 1, Role: authz.RoleHost}
	admin := &authz.AuthUser{ID: 2, Role: authz.RoleAdmin}

	tests := []struct {
		name       string
		user       *authz.AuthUser
		roles      []string
		wantStatus int
	}{
		{"anonymous", nil, []string{authz.RoleHost}, http.StatusUnauthorized},
		{"any signed-in user", host, nil, http.StatusOK},
		{"matching role", host, []string{authz.RoleHost}, http.StatusOK},
		{"wrong role", host, []string{authz.RoleAdmin}, http.StatusForbidden},
		{"admin holds every role", admin, []string{authz.RoleHost}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.user != nil {
				req = req.WithContext(authz.ContextWithUser(req.Context(), tt.user))
			}
			rec := httptest.NewRecorder()
			got := RequireRole(rec, req, tt.roles...)
			if tt.wantStatus == http.StatusOK {
				if got == nil {
					t.Fatalf("expected user, got nil with status %d", rec.Code)
				}
				return
			}
			if got != nil {
				t.Fatalf("expected nil user")
			}
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestPathID(t *testing.T) {
	mux := http.NewServeMux()
	var got int64
	var gotErr error
	mux.HandleFunc("GET /items/{id}", func(w http.ResponseWriter, r *http.Request) {
		got, gotErr = PathID(r, "id")
	})

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/42", nil))
	if gotErr != nil || got != 42 {
		t.Fatalf("expected 42, got %d (%v)", got, gotErr)
	}

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/-3", nil))
	if gotErr == nil {
		t.Fatalf("expected error for negative id")
	}
}

func TestQueryLimit(t *testing.T) {
	tests := []struct {
		query   string
		want    int64
		wantErr bool
	}{
		{"", 50, false},
		{"?limit=20", 20, false},
		{"?limit=500", 200, false},
		{"?limit=0", 0, true},
		{"?limit=ten", 0, true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/messages"+tt.query, nil)
		got, err := QueryLimit(r, "limit", 50, 200)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("QueryLimit(%q) = %d, %v", tt.query, got, err)
		}
	}
}

func TestNullInt64(t *testing.T) {
	if NullInt64(nil).Valid {
		t.Fatal("nil id should be NULL")
	}
	id := int64(7)
	if got := NullInt64(&id); !got.Valid || got.Int64 != 7 {
		t.Fatalf("NullInt64(&7) = %+v", got)
	}
}
