package authz

import (
	"context"
	"errors"
	"testing"
)

func TestRequireRoleUnauthenticated(t *testing.T) {
	err := RequireRole(context.Background(), RoleHost)
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name    string
		role    string
		require []string
		wantErr error
	}{
		{name: "guest on host route", role: RoleGuest, require: []string{RoleHost}, wantErr: ErrForbidden},
		{name: "host on host route", role: RoleHost, require: []string{RoleHost}},
		{name: "admin on host route", role: RoleAdmin, require: []string{RoleHost}},
		{name: "host on admin route", role: RoleHost, require: []string{RoleAdmin}, wantErr: ErrForbidden},
		{name: "any signed-in user", role: RoleGuest},
		{name: "one of several", role: RoleGuest, require: []string{RoleHost, RoleGuest}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ContextWithUser(context.Background(), &AuthUser{ID: 7, Role: tt.role})
			err := RequireRole(ctx, tt.require...)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("RequireRole() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUserFromContextIgnoresForeignValues(t *testing.T) {
	ctx := context.WithValue(context.Background(), userContextKey{}, "not a user")
	if UserFromContext(ctx) != nil {
		t.Fatal("expected nil user for wrong value type")
	}
}

func TestCanAccessBooking(t *testing.T) {
	owner := int64(5)
	if !CanAccessBooking(nil, nil) {
		t.Error("anonymous booking should be reachable by code")
	}
	if CanAccessBooking(nil, &owner) {
		t.Error("owned booking should need a signed-in user")
	}
	if CanAccessBooking(&AuthUser{ID: 6, Role: RoleGuest}, &owner) {
		t.Error("other guests must not reach an owned booking")
	}
	if !CanAccessBooking(&AuthUser{ID: 5, Role: RoleGuest}, &owner) {
		t.Error("owner should reach their booking")
	}
	if !CanAccessBooking(&AuthUser{ID: 1, Role: RoleAdmin}, &owner) {
		t.Error("admin should reach any booking")
	}
}

func TestValidRole(t *testing.T) {
	for _, role := range []string{RoleGuest, RoleHost, RoleAdmin} {
		if !ValidRole(role) {
			t.Errorf("ValidRole(%q) = false", role)
		}
	}
	if ValidRole("staff") {
		t.Error("staff is not a role")
	}
}

func TestOwnsListing(t *testing.T) {
	tests := []struct {
		name string
		user *AuthUser
		want bool
	}{
		{"anonymous", nil, false},
		{"hosting host", &AuthUser{ID: 3, Role: RoleHost}, true},
		{"other host", &AuthUser{ID: 4, Role: RoleHost}, false},
		{"admin", &AuthUser{ID: 1, Role: RoleAdmin}, true},
	}
	for _, tt := range tests {
		if got := OwnsListing(tt.user, 3); got != tt.want {
			t.Errorf("%s: OwnsListing = %v, want %v", tt.name, got, tt.want)
		}
	}
	var nobody *AuthUser
	if nobody.IsAdmin() {
		t.Error("nil user is not an admin")
	}
}
