package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/codr1/Excursions/internal/api/authz"
)

const (
	sessionCookieName = "excursions_session"
	authSessionTTL    = 7 * 24 * time.Hour
	sessionTokenBytes = 32
	// Expired sessions are swept at most this often, piggybacking on sign-ins.
	sessionPruneInterval = 15 * time.Minute
)

var errInvalidSessionCookie = errors.New("invalid session cookie")

type sessionRecord struct {
	UserID    int64
	ExpiresAt time.Time
}

// sessionTable holds live sessions keyed by token. A user has at most one.
type sessionTable struct {
	mu        sync.Mutex
	byToken   map[string]sessionRecord
	lastPrune time.Time
}

func newSessionTable() *sessionTable {
	return &sessionTable{byToken: make(map[string]sessionRecord)}
}

var (
	sessions   = newSessionTable()
	sessionNow = time.Now

	devKeyOnce sync.Once
	devKey     []byte
)

// issue stores a new session for userID and revokes any earlier one.
func (t *sessionTable) issue(token string, userID int64, now time.Time) sessionRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	if now.Sub(t.lastPrune) >= sessionPruneInterval {
		t.pruneLocked(now)
	}
	for existing, rec := range t.byToken {
		if rec.UserID == userID {
			delete(t.byToken, existing)
		}
	}
	rec := sessionRecord{UserID: userID, ExpiresAt: now.Add(authSessionTTL)}
	t.byToken[token] = rec
	return rec
}

// lookup returns the live session for token. Once less than half the TTL is
// left the expiry slides forward and renewed is true.
func (t *sessionTable) lookup(token string, now time.Time) (rec sessionRecord, renewed bool, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok = t.byToken[token]
	if !ok {
		return sessionRecord{}, false, false
	}
	if !now.Before(rec.ExpiresAt) {
		delete(t.byToken, token)
		return sessionRecord{}, false, false
	}
	if rec.ExpiresAt.Sub(now) < authSessionTTL/2 {
		rec.ExpiresAt = now.Add(authSessionTTL)
		t.byToken[token] = rec
		renewed = true
	}
	return rec, renewed, true
}

func (t *sessionTable) revoke(token string) {
	t.mu.Lock()
	delete(t.byToken, token)
	t.mu.Unlock()
}

func (t *sessionTable) prune(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pruneLocked(now)
}

func (t *sessionTable) pruneLocked(now time.Time) int {
	removed := 0
	for token, rec := range t.byToken {
		if !now.Before(rec.ExpiresAt) {
			delete(t.byToken, token)
			removed++
		}
	}
	t.lastPrune = now
	return removed
}

func isSecureCookie() bool {
	return appConfig == nil || !appConfig.IsDevelopment()
}

// signingKey is APP_SECRET_KEY, or a per-process random key in development.
func signingKey() []byte {
	if appConfig != nil && appConfig.App.SecretKey != "" {
		return []byte(appConfig.App.SecretKey)
	}
	devKeyOnce.Do(func() {
		devKey = make([]byte, 32)
		_, _ = rand.Read(devKey)
	})
	return devKey
}

// CreateSession issues a signed session cookie for userID. Earlier sessions
// for the same user are revoked.
func CreateSession(w http.ResponseWriter, userID int64) error {
	if w == nil {
		return errors.New("session requires response writer")
	}

	token, err := newSessionToken()
	if err != nil {
		return err
	}
	rec := sessions.issue(token, userID, sessionNow())
	setSessionCookie(w, token, rec.ExpiresAt)
	return nil
}

// ClearSession revokes the request's session, if any, and expires the cookie.
func ClearSession(w http.ResponseWriter, r *http.Request) {
	if r != nil {
		if token, err := tokenFromRequest(r); err == nil && token != "" {
			sessions.revoke(token)
		}
	}
	ClearSessionCookie(w)
}

func ClearSessionCookie(w http.ResponseWriter) {
	if w == nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecureCookie(),
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

func setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	if w == nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token + "." + signPayload(token),
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecureCookie(),
		SameSite: http.SameSiteLaxMode,
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
	})
}

// UserFromRequest resolves the session cookie to a user. A missing, forged or
// expired cookie yields a nil user and no error.
func UserFromRequest(w http.ResponseWriter, r *http.Request) (*authz.AuthUser, error) {
	if r == nil {
		return nil, nil
	}

	token, err := tokenFromRequest(r)
	if err != nil {
		ClearSessionCookie(w)
		return nil, nil
	}
	if token == "" {
		return nil, nil
	}

	session, renewed, ok := sessions.lookup(token, sessionNow())
	if !ok {
		ClearSessionCookie(w)
		return nil, nil
	}

	if queries == nil {
		return nil, errors.New("auth queries not initialized")
	}

	user, err := queries.GetUserByID(r.Context(), session.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sessions.revoke(token)
			ClearSessionCookie(w)
			return nil, nil
		}
		return nil, err
	}
	if renewed {
		setSessionCookie(w, token, session.ExpiresAt)
	}

	return &authz.AuthUser{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Phone: user.Phone,
		Role:  user.Role,
	}, nil
}

// tokenFromRequest returns "" when no cookie is present.
func tokenFromRequest(r *http.Request) (string, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", nil
		}
		return "", err
	}

	token, signature, ok := strings.Cut(cookie.Value, ".")
	if !ok || token == "" {
		return "", errInvalidSessionCookie
	}
	if !hmac.Equal([]byte(signature), []byte(signPayload(token))) {
		return "", errInvalidSessionCookie
	}
	return token, nil
}

func signPayload(payload string) string {
	mac := hmac.New(sha256.New, signingKey())
	_, _ = mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func newSessionToken() (string, error) {
	token := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(token); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(token), nil
}
