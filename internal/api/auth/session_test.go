package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/codr1/Excursions/internal/config"
	"github.com/codr1/Excursions/internal/db"
	"github.com/codr1/Excursions/internal/testutil"
)

func setupSessionTest(t *testing.T) *db.DB {
	t.Helper()

	database := testutil.NewTestDB(t)

	prevConfig := appConfig
	prevQueries := queries
	t.Cleanup(func() {
		appConfig = prevConfig
		queries = prevQueries
	})

	appConfig = &config.Config{}
	appConfig.App.Environment = "development"
	appConfig.App.SecretKey = "test-secret-key"
	queries = database.Queries
	return database
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	t.Fatal("expected session cookie")
	return nil
}

func TestCreateSessionRoundTrip(t *testing.T) {
	database := setupSessionTest(t)
	user := testutil.CreateUser(t, database, "guest")

	rec := httptest.NewRecorder()
	if err := CreateSession(rec, user.ID); err != nil {
		t.Fatalf("create session: %v", err)
	}
	cookie := sessionCookie(t, rec)
	if !cookie.HttpOnly {
		t.Fatal("expected HttpOnly session cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	got, err := UserFromRequest(httptest.NewRecorder(), req)
	if err != nil {
		t.Fatalf("user from request: %v", err)
	}
	if got == nil || got.ID != user.ID {
		t.Fatalf("expected user %d, got %+v", user.ID, got)
	}
	if got.Role != "guest" {
		t.Fatalf("expected guest role, got %q", got.Role)
	}
}

func TestUserFromRequestRejectsTamperedCookie(t *testing.T) {
	database := setupSessionTest(t)
	user := testutil.CreateUser(t, database, "guest")

	rec := httptest.NewRecorder()
	if err := CreateSession(rec, user.ID); err != nil {
		t.Fatalf("create session: %v", err)
	}
	cookie := sessionCookie(t, rec)
	cookie.Value = cookie.Value + "x"

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	out := httptest.NewRecorder()
	got, err := UserFromRequest(out, req)
	if err != nil {
		t.Fatalf("user from request: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no user for tampered cookie, got %+v", got)
	}
	if c := sessionCookie(t, out); c.MaxAge >= 0 {
		t.Fatalf("expected cookie to be cleared, got MaxAge %d", c.MaxAge)
	}
}

func TestUserFromRequestWithoutCookie(t *testing.T) {
	setupSessionTest(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	got, err := UserFromRequest(httptest.NewRecorder(), req)
	if err != nil || got != nil {
		t.Fatalf("expected anonymous request, got %+v, %v", got, err)
	}
}

func TestClearSessionRevokesToken(t *testing.T) {
	database := setupSessionTest(t)
	user := testutil.CreateUser(t, database, "host")

	rec := httptest.NewRecorder()
	if err := CreateSession(rec, user.ID); err != nil {
		t.Fatalf("create session: %v", err)
	}
	cookie := sessionCookie(t, rec)

	logoutReq := httptest.NewRequest(http.MethodPost, "/", nil)
	logoutReq.AddCookie(cookie)
	ClearSession(httptest.NewRecorder(), logoutReq)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	got, err := UserFromRequest(httptest.NewRecorder(), req)
	if err != nil {
		t.Fatalf("user from request: %v", err)
	}
	if got != nil {
		t.Fatal("expected revoked session to resolve to no user")
	}
}

func TestNewSessionRevokesPrevious(t *testing.T) {
	database := setupSessionTest(t)
	user := testutil.CreateUser(t, database, "guest")

	first := httptest.NewRecorder()
	if err := CreateSession(first, user.ID); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := CreateSession(httptest.NewRecorder(), user.ID); err != nil {
		t.Fatalf("create session: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(sessionCookie(t, first))
	got, _ := UserFromRequest(httptest.NewRecorder(), req)
	if got != nil {
		t.Fatal("expected first session to be revoked")
	}
}

func TestSessionTablePrune(t *testing.T) {
	table := newSessionTable()
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	table.byToken["stale"] = sessionRecord{UserID: 1, ExpiresAt: now.Add(-time.Minute)}
	table.byToken["fresh"] = sessionRecord{UserID: 2, ExpiresAt: now.Add(time.Hour)}

	if removed := table.prune(now); removed != 1 {
		t.Fatalf("expected 1 session pruned, got %d", removed)
	}
	if _, _, ok := table.lookup("stale", now); ok {
		t.Fatal("expected stale session to be pruned")
	}
	if _, _, ok := table.lookup("fresh", now); !ok {
		t.Fatal("expected fresh session to remain")
	}
}

func TestSessionTableSlidesExpiry(t *testing.T) {
	table := newSessionTable()
	start := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	table.issue("tok", 7, start)

	if _, renewed, ok := table.lookup("tok", start.Add(time.Hour)); !ok || renewed {
		t.Fatalf("expected live session without renewal, got ok=%v renewed=%v", ok, renewed)
	}

	later := start.Add(authSessionTTL - time.Hour)
	rec, renewed, ok := table.lookup("tok", later)
	if !ok || !renewed {
		t.Fatalf("expected renewal near expiry, got ok=%v renewed=%v", ok, renewed)
	}
	if want := later.Add(authSessionTTL); !rec.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, rec.ExpiresAt)
	}

	if _, _, ok := table.lookup("tok", rec.ExpiresAt); ok {
		t.Fatal("expected session to expire at its deadline")
	}
}

func TestRenewedSessionRefreshesCookie(t *testing.T) {
	database := setupSessionTest(t)
	user := testutil.CreateUser(t, database, "guest")

	start := time.Now()
	prevNow := sessionNow
	t.Cleanup(func() { sessionNow = prevNow })
	sessionNow = func() time.Time { return start }

	rec := httptest.NewRecorder()
	if err := CreateSession(rec, user.ID); err != nil {
		t.Fatalf("create session: %v", err)
	}
	cookie := sessionCookie(t, rec)

	sessionNow = func() time.Time { return start.Add(authSessionTTL - time.Hour) }
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	out := httptest.NewRecorder()
	got, err := UserFromRequest(out, req)
	if err != nil || got == nil {
		t.Fatalf("expected user, got %+v, %v", got, err)
	}
	if refreshed := sessionCookie(t, out); refreshed.Value != cookie.Value {
		t.Fatal("expected the same token to be re-issued")
	}
}
