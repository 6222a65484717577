package utils

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashCode returns the bcrypt hash of a one-time code. Each call salts
// differently, so two issuances of the same code get different hashes.
func HashCode(code string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash code: %w", err)
	}
	return string(hash), nil
}

// CheckCodeHash compares a submitted code with its stored hash.
func CheckCodeHash(code, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}
