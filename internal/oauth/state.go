package oauth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// Session keys holding the pending authorization state.
const (
	StateKey          = "oauth_state"
	StateExpiresAtKey = "oauth_state_expires_at"
	CodeVerifierKey   = "oauth_code_verifier"
)

// StateStore is the part of a session the state helpers need.
type StateStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// GenerateState generates a random state parameter for CSRF protection
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// IssueState stores a fresh state and PKCE code verifier in sess, valid
// for ttl, and returns both. Any pending state is replaced.
func IssueState(sess StateStore, ttl time.Duration, now time.Time) (state, verifier string, err error) {
	state, err = GenerateState()
	if err != nil {
		return "", "", err
	}
	verifier = oauth2.GenerateVerifier()
	sess.Set(StateKey, state)
	sess.Set(StateExpiresAtKey, strconv.FormatInt(now.Add(ttl).Unix(), 10))
	sess.Set(CodeVerifierKey, verifier)
	return state, verifier, nil
}

// VerifyState reports whether received matches the unexpired state held in
// sess. A session without a state never verifies.
func VerifyState(sess StateStore, received string, now time.Time) bool {
	stored, ok := sess.Get(StateKey)
	if !ok || stored == "" || received == "" {
		return false
	}

	raw, ok := sess.Get(StateExpiresAtKey)
	if !ok {
		return false
	}
	expiresAt, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || !now.Before(time.Unix(expiresAt, 0)) {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(stored), []byte(received)) == 1
}

// ConsumeState verifies received and removes the pending state from sess
// whatever the outcome, so a state is usable at most once. On success it
// returns the code verifier issued with the state.
func ConsumeState(sess StateStore, received string, now time.Time) (string, bool) {
	ok := VerifyState(sess, received, now)
	verifier, _ := sess.Get(CodeVerifierKey)
	sess.Delete(StateKey)
	sess.Delete(StateExpiresAtKey)
	sess.Delete(CodeVerifierKey)
	if !ok {
		return "", false
	}
	return verifier, true
}
