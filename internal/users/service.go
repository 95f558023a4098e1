// Package users owns local accounts: signup, credential checks, profile
// edits and password changes.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fuomag9/kabomba-auth/internal/models"
)

// NewUser is the input for Register. A nil Password creates an account
// that cannot sign in with a password.
type NewUser struct {
	Username  string
	Email     string
	Password  *string
	FirstName string
	LastName  string
}

// ProfileUpdate is a partial update; nil fields are left untouched.
type ProfileUpdate struct {
	Username  *string
	Email     *string
	FirstName *string
	LastName  *string
}

// Service implements account operations on top of a Store.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a Service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Register validates and persists a new account.
func (s *Service) Register(ctx context.Context, in NewUser) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = NormalizeEmail(in.Email)

	verr := &ValidationError{}
	validateUsername(verr, in.Username)
	validateEmail(verr, in.Email)
	validateName(verr, "first_name", in.FirstName)
	validateName(verr, "last_name", in.LastName)
	if in.Password != nil {
		validatePassword(verr, "password", *in.Password)
	}
	if err := s.checkUnique(ctx, verr, in.Username, in.Email, 0); err != nil {
		return nil, err
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	user := &models.User{
		Username:   in.Username,
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		IsActive:   true,
		DateJoined: s.now().UTC(),
	}
	if in.Email != "" {
		email := in.Email
		user.Email = &email
	}
	if in.Password != nil {
		hashed, err := HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		user.Password = hashed
	}

	if err := s.store.Create(ctx, user); err != nil {
		return nil, err
	}
	slog.Info("users: account created", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// RegisterFromIdentity creates an account for a provider-verified e-mail.
// The username is derived from the e-mail local part and the password is
// left unusable.
func (s *Service) RegisterFromIdentity(ctx context.Context, email, firstName, lastName string) (*models.User, error) {
	email = NormalizeEmail(email)
	username, err := s.generateUsername(ctx, email)
	if err != nil {
		return nil, err
	}
	user, err := s.Register(ctx, NewUser{
		Username:  username,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
	})
	// another request created the account or took the generated name
	// between our lookups and the insert
	var verr *ValidationError
	if errors.As(err, &verr) && (hasMessage(verr.Fields["email"], msgEmailTaken) || hasMessage(verr.Fields["username"], msgUsernameTaken)) {
		return nil, fmt.Errorf("register %s: %w", email, ErrConflict)
	}
	return user, err
}

// Authenticate checks a username (or e-mail) and password pair. The
// account whose username matches is tried first, then the account holding
// that e-mail, so a username that looks like someone else's address can't
// shadow their login.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	candidates, err := s.loginCandidates(ctx, login)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		// keep timing close to the wrong-password path
		_ = CheckPassword(dummyHash, password)
		return nil, ErrInvalidCredentials
	}

	for _, user := range candidates {
		if user.HasPassword() && CheckPassword(user.Password, password) && user.IsActive {
			return user, nil
		}
	}
	return nil, ErrInvalidCredentials
}

func (s *Service) loginCandidates(ctx context.Context, login string) ([]*models.User, error) {
	var out []*models.User

	byName, err := s.store.GetByUsername(ctx, login)
	switch {
	case err == nil:
		out = append(out, byName)
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	if !strings.Contains(login, "@") {
		return out, nil
	}
	byEmail, err := s.store.GetByEmail(ctx, login)
	switch {
	case err == nil:
		if byName == nil || byEmail.ID != byName.ID {
			out = append(out, byEmail)
		}
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}
	return out, nil
}

// ChangePassword replaces the password of user after verifying current.
func (s *Service) ChangePassword(ctx context.Context, user *models.User, current, next string) error {
	verr := &ValidationError{}
	if current == "" {
		verr.Add("password", msgRequired)
	} else if !CheckPassword(user.Password, current) {
		verr.Add("password", msgWrongPassword)
	}
	validatePassword(verr, "new_password", next)
	if err := verr.Err(); err != nil {
		return err
	}

	hashed, err := HashPassword(next)
	if err != nil {
		return err
	}
	user.Password = hashed
	if err := s.store.Update(ctx, user); err != nil {
		return err
	}
	slog.Info("users: password changed", "user_id", user.ID)
	return nil
}

// UpdateProfile applies a partial update to user.
func (s *Service) UpdateProfile(ctx context.Context, user *models.User, in ProfileUpdate) (*models.User, error) {
	verr := &ValidationError{}

	username := user.Username
	if in.Username != nil {
		username = strings.TrimSpace(*in.Username)
		validateUsername(verr, username)
	}
	email := user.EmailAddress()
	if in.Email != nil {
		email = NormalizeEmail(*in.Email)
		validateEmail(verr, email)
	}
	if in.FirstName != nil {
		validateName(verr, "first_name", *in.FirstName)
	}
	if in.LastName != nil {
		validateName(verr, "last_name", *in.LastName)
	}

	uname, mail := "", ""
	if in.Username != nil && username != user.Username {
		uname = username
	}
	if in.Email != nil && email != user.EmailAddress() {
		mail = email
	}
	if err := s.checkUnique(ctx, verr, uname, mail, user.ID); err != nil {
		return nil, err
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	updated := *user
	updated.Username = username
	if email == "" {
		updated.Email = nil
	} else {
		updated.Email = &email
	}
	if in.FirstName != nil {
		updated.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		updated.LastName = *in.LastName
	}

	if err := s.store.Update(ctx, &updated); err != nil {
		return nil, err
	}
	*user = updated
	return user, nil
}

// FindByEmail looks up an account by e-mail address.
func (s *Service) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.store.GetByEmail(ctx, email)
}

// Get looks up an account by id.
func (s *Service) Get(ctx context.Context, id int) (*models.User, error) {
	return s.store.GetByID(ctx, id)
}

// TouchLastLogin records a successful sign-in.
func (s *Service) TouchLastLogin(ctx context.Context, user *models.User) error {
	now := s.now().UTC()
	user.LastLogin = &now
	if err := s.store.Update(ctx, user); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// checkUnique adds field errors for a username or e-mail held by another
// account. Empty values are skipped.
func (s *Service) checkUnique(ctx context.Context, verr *ValidationError, username, email string, exceptID int) error {
	if username != "" && !verr.Has("username") {
		taken, err := s.store.UsernameTaken(ctx, username, exceptID)
		if err != nil {
			return err
		}
		if taken {
			verr.Add("username", msgUsernameTaken)
		}
	}
	if email != "" && !verr.Has("email") {
		taken, err := s.store.EmailTaken(ctx, email, exceptID)
		if err != nil {
			return err
		}
		if taken {
			verr.Add("email", msgEmailTaken)
		}
	}
	return nil
}

func hasMessage(msgs []string, want string) bool {
	for _, m := range msgs {
		if m == want {
			return true
		}
	}
	return false
}

// bcrypt hash of a random string, compared against when the user is unknown.
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z4RbMmI8QbEo5K3bXhrQ8p6u"
