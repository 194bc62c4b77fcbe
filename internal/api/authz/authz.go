// Package authz holds the signed-in user and the access rules shared by the
// API handlers: role gates, listing ownership and booking access.
package authz

import (
	"context"
	"errors"
	"slices"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

const (
	RoleGuest = "guest"
	RoleHost  = "host"
	RoleAdmin = "admin"
)

// SelfServiceRoles may be chosen at registration. Admins are provisioned.
var SelfServiceRoles = []string{RoleGuest, RoleHost}

type AuthUser struct {
	ID    int64
	Name  string
	Email string
	Phone string
	Role  string
}

// IsAdmin is nil-safe.
func (u *AuthUser) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

type userContextKey struct{}

func ContextWithUser(ctx context.Context, user *AuthUser) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext returns the signed-in user, or nil for anonymous requests.
func UserFromContext(ctx context.Context) *AuthUser {
	if ctx == nil {
		return nil
	}
	user, _ := ctx.Value(userContextKey{}).(*AuthUser)
	return user
}

func ValidRole(role string) bool {
	return role == RoleAdmin || slices.Contains(SelfServiceRoles, role)
}

// HasRole reports whether user holds one of roles. Admins hold every role.
// With no roles listed any signed-in user qualifies.
func HasRole(user *AuthUser, roles ...string) bool {
	switch {
	case user == nil:
		return false
	case len(roles) == 0, user.IsAdmin():
		return true
	}
	return slices.Contains(roles, user.Role)
}

func RequireRole(ctx context.Context, roles ...string) error {
	user := UserFromContext(ctx)
	if user == nil {
		return ErrUnauthenticated
	}
	if !HasRole(user, roles...) {
		return ErrForbidden
	}
	return nil
}

// OwnsListing reports whether user may see or edit an experience hosted by
// hostID regardless of its moderation status.
func OwnsListing(user *AuthUser, hostID int64) bool {
	return ownerOrAdmin(user, hostID)
}

// CanAccessBooking reports whether user may view or cancel a booking owned by
// guestUserID. Anonymous bookings are reachable by confirmation code alone.
func CanAccessBooking(user *AuthUser, guestUserID *int64) bool {
	if guestUserID == nil {
		return true
	}
	return ownerOrAdmin(user, *guestUserID)
}

func ownerOrAdmin(user *AuthUser, ownerID int64) bool {
	if user == nil {
		return false
	}
	return user.IsAdmin() || user.ID == ownerID
}
