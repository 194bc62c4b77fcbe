package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPasswordAndVerify(t *testing.T) {
	password := "lisbon-by-tram"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if hash == password {
		t.Fatal("expected hash to differ from password")
	}
	if cost, err := bcrypt.Cost([]byte(hash)); err != nil || cost != passwordCost {
		t.Fatalf("expected cost %d, got %d (%v)", passwordCost, cost, err)
	}

	if !VerifyPassword(hash, password) {
		t.Fatal("expected password to verify")
	}
	if VerifyPassword(hash, "lisbon-by-bus") {
		t.Fatal("expected password mismatch to fail")
	}
}

func TestHashPasswordRejectsTruncatableInput(t *testing.T) {
	_, err := HashPassword(strings.Repeat("a", maxPasswordBytes+1))
	if !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestVerifyPasswordWithoutUsableHash(t *testing.T) {
	for _, hash := range []string{"", "not-a-valid-hash"} {
		if VerifyPassword(hash, "password") {
			t.Fatalf("expected %q to fail verification", hash)
		}
	}
}
