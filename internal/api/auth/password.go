package auth

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt only reads the first 72 bytes of input.
const maxPasswordBytes = 72

var ErrPasswordTooLong = errors.New("password is longer than 72 bytes")

var (
	passwordCost = bcrypt.DefaultCost

	decoyOnce sync.Once
	decoyHash []byte
)

// HashPassword hashes an account password for storage.
func HashPassword(password string) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches a stored hash.
// An empty hash never matches.
func VerifyPassword(hash, password string) bool {
	if hash == "" {
		spendDecoyCompare(password)
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// spendDecoyCompare runs one bcrypt comparison so that a login for an unknown
// email costs as much as one with a wrong password.
func spendDecoyCompare(password string) {
	decoyOnce.Do(func() {
		decoyHash, _ = bcrypt.GenerateFromPassword([]byte("excursions-decoy"), passwordCost)
	})
	_ = bcrypt.CompareHashAndPassword(decoyHash, []byte(password))
}
