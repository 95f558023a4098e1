package users

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted for signup and change.
const MinPasswordLength = 8

// bcrypt only looks at the first 72 bytes.
const maxPasswordBytes = 72

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// CheckPassword reports whether password matches hash. An empty hash never
// matches.
func CheckPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func validatePassword(verr *ValidationError, field, password string) {
	switch {
	case password == "":
		verr.Add(field, msgRequired)
	case len(password) < MinPasswordLength:
		verr.Add(field, fmt.Sprintf("This password is too short. It must contain at least %d characters.", MinPasswordLength))
	case len(password) > maxPasswordBytes:
		verr.Add(field, fmt.Sprintf("Ensure this field has no more than %d characters.", maxPasswordBytes))
	}
}
