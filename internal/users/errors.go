package users

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when no user matches a lookup.
	ErrNotFound = errors.New("user not found")
	// ErrConflict is returned when a write collides with a unique constraint,
	// typically two requests creating the same account concurrently.
	ErrConflict = errors.New("user already exists")
	// ErrInvalidCredentials covers unknown users, wrong passwords, accounts
	// without a usable password and inactive accounts alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Field error messages.
const (
	msgRequired      = "This field is required."
	msgUsernameTaken = "A user with that username already exists."
	msgEmailTaken    = "user with this email already exists."
	msgInvalidEmail  = "Enter a valid email address."
	msgUsernameChars = "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	msgWrongPassword = "Wrong password."
)

// ValidationError carries per-field messages for a rejected input.
type ValidationError struct {
	Fields map[string][]string
}

// Add records msg against field.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// Has reports whether field already has an error.
func (e *ValidationError) Has(field string) bool {
	return len(e.Fields[field]) > 0
}

// Err returns e when at least one field failed, nil otherwise.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+strings.Join(e.Fields[name], " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
