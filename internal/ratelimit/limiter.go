// Package ratelimit throttles contact-form submissions, failed logins and
// booking draft creation. State is in memory; Sweep drops stale entries.
package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"
	"sync"
	"time"
)

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

const window = time.Hour

type Config struct {
	// Contact form: per-email cooldown and hourly cap, plus a per-IP hourly cap.
	ContactCooldown     time.Duration
	ContactMaxPerHour   int
	ContactMaxIPPerHour int

	// Login: failures per email before a lockout, plus a per-IP hourly cap.
	LoginMaxAttempts  int
	LoginLockout      time.Duration
	LoginMaxIPPerHour int

	// Booking drafts started per IP per hour.
	DraftMaxIPPerHour int

	// Clock for testing (nil uses real time)
	Clock Clock
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() *Config {
	return &Config{
		ContactCooldown:     time.Minute,
		ContactMaxPerHour:   5,
		ContactMaxIPPerHour: 20,
		LoginMaxAttempts:    5,
		LoginLockout:        5 * time.Minute,
		LoginMaxIPPerHour:   30,
		DraftMaxIPPerHour:   60,
	}
}

// LimitResult contains the result of a rate limit check.
type LimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
	Reason     string // For logging
}

// RetryAfterSeconds rounds up for a Retry-After header.
func (r LimitResult) RetryAfterSeconds() int {
	secs := int(math.Ceil(r.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

type scope uint8

const (
	scopeContactEmail scope = iota
	scopeContactIP
	scopeLoginEmail
	scopeLoginIP
	scopeDraftIP
)

type bucket struct {
	scope scope
	key   string
}

type entry struct {
	count    int
	firstAt  time.Time // opens the hourly window
	lastAt   time.Time // drives the contact cooldown
	lockedAt time.Time // zero unless a login lockout is active
}

func (e *entry) open(now time.Time) bool {
	return now.Sub(e.firstAt) < window
}

// overCap reports whether an open window already holds max hits.
func (e *entry) overCap(now time.Time, max int) (LimitResult, bool) {
	if e == nil || !e.open(now) || e.count < max {
		return LimitResult{}, false
	}
	return LimitResult{RetryAfter: window - now.Sub(e.firstAt)}, true
}

type Limiter struct {
	config  *Config
	clock   Clock
	mu      sync.Mutex
	buckets map[bucket]*entry
}

// New creates a new rate limiter with the given config.
func New(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	return &Limiter{
		config:  cfg,
		clock:   clock,
		buckets: make(map[bucket]*entry),
	}
}

// CheckContact reports whether a contact submission from email and ip may
// proceed. It does not record anything; call RecordContact once stored.
func (l *Limiter) CheckContact(email, ip string) LimitResult {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if e := l.buckets[l.key(scopeContactEmail, normalizeIdentifier(email))]; e != nil {
		if elapsed := now.Sub(e.lastAt); elapsed < l.config.ContactCooldown {
			return LimitResult{RetryAfter: l.config.ContactCooldown - elapsed, Reason: "cooldown"}
		}
		if res, over := e.overCap(now, l.config.ContactMaxPerHour); over {
			res.Reason = "hourly_limit"
			return res
		}
	}
	if res, over := l.buckets[l.key(scopeContactIP, ip)].overCap(now, l.config.ContactMaxIPPerHour); over {
		res.Reason = "ip_hourly_limit"
		return res
	}
	return LimitResult{Allowed: true}
}

// RecordContact records an accepted contact submission.
func (l *Limiter) RecordContact(email, ip string) {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.hit(l.key(scopeContactEmail, normalizeIdentifier(email)), now)
	l.hit(l.key(scopeContactIP, ip), now)
}

// CheckLogin reports whether a login attempt for email from ip may proceed.
func (l *Limiter) CheckLogin(email, ip string) LimitResult {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if e := l.buckets[l.key(scopeLoginEmail, normalizeIdentifier(email))]; e != nil {
		if !e.lockedAt.IsZero() {
			if elapsed := now.Sub(e.lockedAt); elapsed < l.config.LoginLockout {
				return LimitResult{RetryAfter: l.config.LoginLockout - elapsed, Reason: "lockout"}
			}
		} else if e.count >= l.config.LoginMaxAttempts {
			return LimitResult{RetryAfter: l.config.LoginLockout, Reason: "max_attempts"}
		}
	}
	if res, over := l.buckets[l.key(scopeLoginIP, ip)].overCap(now, l.config.LoginMaxIPPerHour); over {
		res.Reason = "ip_hourly_limit"
		return res
	}
	return LimitResult{Allowed: true}
}

// RecordFailedLogin counts a failed login. It returns true when this failure
// triggered a lockout.
func (l *Limiter) RecordFailedLogin(email, ip string) (lockedOut bool) {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	k := l.key(scopeLoginEmail, normalizeIdentifier(email))
	e := l.buckets[k]
	if e == nil || (!e.lockedAt.IsZero() && now.Sub(e.lockedAt) >= l.config.LoginLockout) {
		// First failure, or the previous lockout has run out.
		e = &entry{firstAt: now}
		l.buckets[k] = e
	}
	e.count++
	e.lastAt = now
	if e.count >= l.config.LoginMaxAttempts && e.lockedAt.IsZero() {
		e.lockedAt = now
		lockedOut = true
	}

	l.hit(l.key(scopeLoginIP, ip), now)
	return lockedOut
}

// ResetLogin clears the failure count after a successful login.
func (l *Limiter) ResetLogin(email string) {
	l.mu.Lock()
	delete(l.buckets, l.key(scopeLoginEmail, normalizeIdentifier(email)))
	l.mu.Unlock()
}

// ReserveDraft counts a booking draft for ip if the hourly cap allows it.
// Checking and counting happen under one lock so a burst cannot overshoot
// the cap. Call ReleaseDraft when the draft could not be created.
func (l *Limiter) ReserveDraft(ip string) LimitResult {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.key(scopeDraftIP, ip)
	if res, over := l.buckets[b].overCap(now, l.config.DraftMaxIPPerHour); over {
		res.Reason = "draft_hourly_limit"
		return res
	}
	l.hit(b, now)
	return LimitResult{Allowed: true}
}

// ReleaseDraft returns a reservation taken by ReserveDraft in the current
// window.
func (l *Limiter) ReleaseDraft(ip string) {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if e := l.buckets[l.key(scopeDraftIP, ip)]; e != nil && e.open(now) && e.count > 0 {
		e.count--
	}
}

// Sweep drops entries that can no longer affect a decision and returns how
// many were removed.
func (l *Limiter) Sweep() int {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for b, e := range l.buckets {
		maxAge := window
		if b.scope == scopeLoginEmail {
			maxAge += l.config.LoginLockout
		}
		if now.Sub(e.lastAt) > maxAge {
			delete(l.buckets, b)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked entries.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// hit must be called with mu held.
func (l *Limiter) hit(b bucket, now time.Time) {
	e := l.buckets[b]
	if e == nil || !e.open(now) {
		l.buckets[b] = &entry{count: 1, firstAt: now, lastAt: now}
		return
	}
	e.count++
	e.lastAt = now
}

// key hashes value so raw emails and IPs are not held in memory.
func (l *Limiter) key(s scope, value string) bucket {
	sum := sha256.Sum256([]byte(value))
	return bucket{scope: s, key: hex.EncodeToString(sum[:8])}
}

func normalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
