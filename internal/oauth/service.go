// Package oauth implements "sign in with Google": the consent redirect,
// state verification and the code-for-identity exchange on callback.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fuomag9/kabomba-auth/internal/models"
	"github.com/fuomag9/kabomba-auth/internal/users"
)

var (
	// ErrInvalidState is returned when the callback state doesn't match the
	// one stored in the caller's session.
	ErrInvalidState = errors.New("state mismatch")
	// ErrAuthorizationDenied is returned when the provider redirects back
	// with an error instead of a code.
	ErrAuthorizationDenied = errors.New("authorization denied by provider")
	// ErrMissingCode is returned when the callback carries no code.
	ErrMissingCode = errors.New("missing authorization code")
)

// IdentityProvider is the provider side of the handshake.
type IdentityProvider interface {
	AuthCodeURL(state, verifier string) string
	ExchangeCode(ctx context.Context, code, verifier string) (string, error)
	FetchIdentity(ctx context.Context, idToken string) (*Identity, error)
}

// UserDirectory maps identities onto local accounts.
type UserDirectory interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	RegisterFromIdentity(ctx context.Context, email, firstName, lastName string) (*models.User, error)
	TouchLastLogin(ctx context.Context, user *models.User) error
}

// TokenIssuer signs access tokens for local accounts.
type TokenIssuer interface {
	Issue(userID int) (string, error)
}

// CallbackParams are the query parameters of the provider redirect.
type CallbackParams struct {
	Code  string
	State string
	Error string
}

// Result is the outcome of a successful callback.
type Result struct {
	User        *models.User
	Created     bool
	AccessToken string
}

// Service runs the authorization-code flow.
type Service struct {
	provider IdentityProvider
	users    UserDirectory
	tokens   TokenIssuer
	stateTTL time.Duration
	now      func() time.Time
}

// NewService creates a Service.
func NewService(provider IdentityProvider, users UserDirectory, tokens TokenIssuer, stateTTL time.Duration) *Service {
	return &Service{
		provider: provider,
		users:    users,
		tokens:   tokens,
		stateTTL: stateTTL,
		now:      time.Now,
	}
}

// Begin stores a new state in sess and returns the consent URL to redirect
// to. The caller must persist sess before redirecting.
func (s *Service) Begin(sess StateStore) (string, error) {
	state, verifier, err := IssueState(sess, s.stateTTL, s.now())
	if err != nil {
		return "", err
	}
	return s.provider.AuthCodeURL(state, verifier), nil
}

// Callback verifies the state, resolves the provider identity and signs the
// matching local user in, creating the account on first use. The pending
// state is consumed from sess even on failure.
func (s *Service) Callback(ctx context.Context, sess StateStore, params CallbackParams) (*Result, error) {
	verifier, ok := ConsumeState(sess, params.State, s.now())
	if !ok {
		slog.Warn("oauth: state verification failed")
		return nil, ErrInvalidState
	}
	if params.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrAuthorizationDenied, params.Error)
	}
	if params.Code == "" {
		return nil, ErrMissingCode
	}

	idToken, err := s.provider.ExchangeCode(ctx, params.Code, verifier)
	if err != nil {
		slog.Error("oauth: token exchange failed", "error", err)
		return nil, err
	}
	identity, err := s.provider.FetchIdentity(ctx, idToken)
	if err != nil {
		slog.Error("oauth: identity fetch failed", "error", err)
		return nil, err
	}

	result := &Result{}
	user, err := s.users.FindByEmail(ctx, identity.Email)
	if errors.Is(err, users.ErrNotFound) {
		user, err = s.users.RegisterFromIdentity(ctx, identity.Email, identity.GivenName, identity.FamilyName)
		if err == nil {
			result.Created = true
			slog.Info("oauth: user created", "user_id", user.ID)
		} else if errors.Is(err, users.ErrConflict) {
			// a concurrent callback won the insert; sign into its account
			slog.Warn("oauth: concurrent signup, retrying lookup", "error", err)
			if user, err = s.users.FindByEmail(ctx, identity.Email); errors.Is(err, users.ErrNotFound) {
				err = users.ErrConflict
			}
		}
	}
	if err != nil {
		return nil, err
	}

	if !result.Created {
		if !user.IsActive {
			return nil, users.ErrInvalidCredentials
		}
		if err := s.users.TouchLastLogin(ctx, user); err != nil {
			return nil, err
		}
		slog.Info("oauth: existing user signed in", "user_id", user.ID)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	result.User = user
	result.AccessToken = token
	return result, nil
}
