package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/codr1/Excursions/internal/api/authz"
	"github.com/codr1/Excursions/internal/config"
	"github.com/codr1/Excursions/internal/db"
	dbq "github.com/codr1/Excursions/internal/db/queries"
	"github.com/codr1/Excursions/internal/ratelimit"
	"github.com/codr1/Excursions/internal/testutil"
)

func setupAuthTest(t *testing.T) *db.DB {
	t.Helper()

	database := testutil.NewTestDB(t)

	prevConfig := appConfig
	prevQueries := queries
	prevLimiter := limiter
	prevAttempts := attempts
	prevCost := passwordCost
	t.Cleanup(func() {
		passwordCost = prevCost
		appConfig = prevConfig
		queries = prevQueries
		limiter = prevLimiter
		attempts = prevAttempts
	})

	appConfig = &config.Config{}
	appConfig.App.Environment = "development"
	appConfig.App.SecretKey = "test-secret-key"
	appConfig.Booking.PhoneRegion = "US"
	queries = database.Queries
	limiter = rate.NewLimiter(rate.Inf, 1)
	passwordCost = bcrypt.MinCost

	cfg := ratelimit.DefaultConfig()
	cfg.LoginMaxAttempts = 3
	attempts = ratelimit.New(cfg)

	return database
}

func createUserWithPassword(t *testing.T, database *db.DB, email, password string) dbq.User {
	t.Helper()

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user, err := database.Queries.CreateUser(context.Background(), dbq.CreateUserParams{
		Name:         "Grace Hopper",
		Email:        email,
		PasswordHash: hash,
		Role:         authz.RoleGuest,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func postJSON(handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.7:4000"
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHandleRegisterCreatesAccount(t *testing.T) {
	database := setupAuthTest(t)

	rec := postJSON(HandleRegister, "/api/v1/auth/register",
		`{"name":"Ada Lovelace","email":"Ada@Example.com","password":"analytical","phone":"(415) 555-0132","role":"host"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp userResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Email != "ada@example.com" {
		t.Fatalf("expected normalized email, got %q", resp.Email)
	}
	if resp.Phone != "+14155550132" {
		t.Fatalf("expected E.164 phone, got %q", resp.Phone)
	}
	if resp.Role != authz.RoleHost {
		t.Fatalf("expected host role, got %q", resp.Role)
	}
	sessionCookie(t, rec)

	stored, err := database.Queries.GetUserByEmail(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	if !VerifyPassword(stored.PasswordHash, "analytical") {
		t.Fatal("expected stored password hash to verify")
	}
}

func TestHandleRegisterValidation(t *testing.T) {
	setupAuthTest(t)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing email", `{"name":"A","password":"longenough"}`, "email"},
		{"short password", `{"name":"A","email":"a@example.com","password":"short"}`, "password"},
		{"admin role", `{"name":"A","email":"a@example.com","password":"longenough","role":"admin"}`, "role"},
		{"bad phone", `{"name":"A","email":"a@example.com","password":"longenough","phone":"12"}`, "phone"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(HandleRegister, "/api/v1/auth/register", tc.body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), `"field":"`+tc.field+`"`) {
				t.Fatalf("expected field error for %s, got %s", tc.field, rec.Body.String())
			}
		})
	}
}

func TestHandleRegisterDuplicateEmail(t *testing.T) {
	database := setupAuthTest(t)
	createUserWithPassword(t, database, "grace@example.com", "compilers")

	rec := postJSON(HandleRegister, "/api/v1/auth/register",
		`{"name":"Grace","email":"GRACE@example.com","password":"compilers"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestHandleLogin(t *testing.T) {
	database := setupAuthTest(t)
	createUserWithPassword(t, database, "grace@example.com", "compilers")

	rec := postJSON(HandleLogin, "/api/v1/auth/login", `{"email":"grace@example.com","password":"compilers"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	sessionCookie(t, rec)
}

func TestHandleLoginWrongPassword(t *testing.T) {
	database := setupAuthTest(t)
	createUserWithPassword(t, database, "grace@example.com", "compilers")

	rec := postJSON(HandleLogin, "/api/v1/auth/login", `{"email":"grace@example.com","password":"wrong-one"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = postJSON(HandleLogin, "/api/v1/auth/login", `{"email":"nobody@example.com","password":"whatever"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown email, got %d", rec.Code)
	}
}

func TestHandleLoginLockout(t *testing.T) {
	database := setupAuthTest(t)
	createUserWithPassword(t, database, "grace@example.com", "compilers")

	for i := 0; i < 3; i++ {
		rec := postJSON(HandleLogin, "/api/v1/auth/login", `{"email":"grace@example.com","password":"wrong-one"}`)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rec.Code)
		}
	}

	rec := postJSON(HandleLogin, "/api/v1/auth/login", `{"email":"grace@example.com","password":"compilers"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 while locked out, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestHandleLogoutAndMe(t *testing.T) {
	database := setupAuthTest(t)
	user := createUserWithPassword(t, database, "grace@example.com", "compilers")

	rec := httptest.NewRecorder()
	if err := CreateSession(rec, user.ID); err != nil {
		t.Fatalf("create session: %v", err)
	}
	cookie := sessionCookie(t, rec)

	meReq := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	meReq = meReq.WithContext(authz.ContextWithUser(meReq.Context(), &authz.AuthUser{
		ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role,
	}))
	meRec := httptest.NewRecorder()
	HandleMe(meRec, meReq)
	if meRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", meRec.Code)
	}

	anon := httptest.NewRecorder()
	HandleMe(anon, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
	if anon.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous, got %d", anon.Code)
	}

	logoutReq := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	logoutReq.AddCookie(cookie)
	logoutRec := httptest.NewRecorder()
	HandleLogout(logoutRec, logoutReq)
	if logoutRec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", logoutRec.Code)
	}
	if _, _, ok := sessions.lookup(strings.SplitN(cookie.Value, ".", 2)[0], time.Now()); ok {
		t.Fatal("expected session to be revoked")
	}
}

func TestNormalizePhone(t *testing.T) {
	setupAuthTest(t)

	got, err := normalizePhone("")
	if err != nil || got != "" {
		t.Fatalf("expected empty phone to pass through, got %q, %v", got, err)
	}
	got, err = normalizePhone("+44 20 7946 0958")
	if err != nil {
		t.Fatalf("normalize phone: %v", err)
	}
	if got != "+442079460958" {
		t.Fatalf("expected +442079460958, got %q", got)
	}
}
