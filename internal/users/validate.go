package users

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

const (
	maxUsernameLength = 150
	maxNameLength     = 150
	maxEmailLength    = 254
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// NormalizeEmail trims and lower-cases an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateUsername(verr *ValidationError, username string) {
	switch {
	case username == "":
		verr.Add("username", msgRequired)
	case len([]rune(username)) > maxUsernameLength:
		verr.Add("username", fmt.Sprintf("Ensure this field has no more than %d characters.", maxUsernameLength))
	case !usernamePattern.MatchString(username):
		verr.Add("username", msgUsernameChars)
	}
}

func validateEmail(verr *ValidationError, email string) {
	if email == "" {
		return
	}
	if len(email) > maxEmailLength {
		verr.Add("email", fmt.Sprintf("Ensure this field has no more than %d characters.", maxEmailLength))
		return
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		verr.Add("email", msgInvalidEmail)
	}
}

func validateName(verr *ValidationError, field, value string) {
	if len([]rune(value)) > maxNameLength {
		verr.Add(field, fmt.Sprintf("Ensure this field has no more than %d characters.", maxNameLength))
	}
}
