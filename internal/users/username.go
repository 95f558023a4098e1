package users

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var usernameStrip = regexp.MustCompile(`[^\w.+-]`)

// maxUsernameAttempts bounds the numeric-suffix search.
const maxUsernameAttempts = 1000

// usernameBase derives a username stem from the local part of an e-mail
// address. The result never contains '@', so it can't equal the address.
func usernameBase(email string) string {
	local, _, _ := strings.Cut(email, "@")
	base := usernameStrip.ReplaceAllString(local, "")
	if base == "" {
		base = "user"
	}
	// leave room for a numeric suffix
	if r := []rune(base); len(r) > maxUsernameLength-4 {
		base = string(r[:maxUsernameLength-4])
	}
	return base
}

// generateUsername returns the first free candidate among base, base2,
// base3, ...
func (s *Service) generateUsername(ctx context.Context, email string) (string, error) {
	base := usernameBase(email)
	username := base
	for counter := 1; counter <= maxUsernameAttempts; counter++ {
		if counter > 1 {
			username = fmt.Sprintf("%s%d", base, counter)
		}
		taken, err := s.store.UsernameTaken(ctx, username, 0)
		if err != nil {
			return "", err
		}
		if !taken {
			return username, nil
		}
	}
	return "", fmt.Errorf("generate username for %q: %w", base, ErrConflict)
}
