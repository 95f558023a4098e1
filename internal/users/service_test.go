package users

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fuomag9/kabomba-auth/internal/models"
	"github.com/fuomag9/kabomba-auth/internal/testutil"
)

func strPtr(s string) *string { return &s }

func newTestService(t *testing.T) (*Service, *GormStore) {
	t.Helper()
	store := NewGormStore(testutil.NewDB(t))
	return NewService(store), store
}

func mustRegister(t *testing.T, svc *Service, in NewUser) *models.User {
	t.Helper()
	u, err := svc.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("register %q: %v", in.Username, err)
	}
	return u
}

func fieldErrors(t *testing.T, err error) map[string][]string {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	return verr.Fields
}

func TestRegisterHashesPassword(t *testing.T) {
	svc, _ := newTestService(t)

	u := mustRegister(t, svc, NewUser{Username: "test", Email: "Test@Test.com", Password: strPtr("testing1234")})
	if u.ID == 0 {
		t.Fatal("expected id to be assigned")
	}
	if u.Password == "testing1234" || !CheckPassword(u.Password, "testing1234") {
		t.Fatal("expected bcrypt hash of the password")
	}
	if u.EmailAddress() != "test@test.com" {
		t.Fatalf("expected lower-cased email, got %q", u.EmailAddress())
	}
	if !u.IsActive || u.IsSuperuser {
		t.Fatalf("unexpected flags: %+v", u)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	mustRegister(t, svc, NewUser{Username: "taken", Email: "taken@test.com", Password: strPtr("testing1234")})

	cases := []struct {
		name  string
		in    NewUser
		field string
	}{
		{"missing username", NewUser{Password: strPtr("testing1234")}, "username"},
		{"bad username", NewUser{Username: "bad name!", Password: strPtr("testing1234")}, "username"},
		{"long username", NewUser{Username: strings.Repeat("a", 151), Password: strPtr("testing1234")}, "username"},
		{"taken username", NewUser{Username: "taken", Password: strPtr("testing1234")}, "username"},
		{"bad email", NewUser{Username: "a", Email: "not-an-email", Password: strPtr("testing1234")}, "email"},
		{"taken email", NewUser{Username: "b", Email: "TAKEN@test.com", Password: strPtr("testing1234")}, "email"},
		{"missing password", NewUser{Username: "c", Password: strPtr("")}, "password"},
		{"short password", NewUser{Username: "d", Password: strPtr("short")}, "password"},
		{"long first name", NewUser{Username: "e", FirstName: strings.Repeat("x", 151), Password: strPtr("testing1234")}, "first_name"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.in)
			fields := fieldErrors(t, err)
			if len(fields[tc.field]) == 0 {
				t.Fatalf("expected error on %q, got %v", tc.field, fields)
			}
		})
	}
}

func TestRegisterConflictFromStore(t *testing.T) {
	svc, store := newTestService(t)
	mustRegister(t, svc, NewUser{Username: "race", Password: strPtr("testing1234")})

	// simulate a concurrent insert that passed the uniqueness pre-check
	err := store.Create(context.Background(), &models.User{Username: "race", IsActive: true})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestRegisterFromIdentity(t *testing.T) {
	svc, _ := newTestService(t)
	mustRegister(t, svc, NewUser{Username: "test", Password: strPtr("testing1234")})

	u, err := svc.RegisterFromIdentity(context.Background(), "Test@gmail.com", "Test", "User")
	if err != nil {
		t.Fatalf("RegisterFromIdentity: %v", err)
	}
	if u.Username != "test2" {
		t.Fatalf("expected suffixed username test2, got %q", u.Username)
	}
	if u.Username == u.EmailAddress() {
		t.Fatal("username must differ from email")
	}
	if u.HasPassword() {
		t.Fatal("expected unusable password")
	}
	if u.FirstName != "Test" || u.LastName != "User" {
		t.Fatalf("unexpected names: %q %q", u.FirstName, u.LastName)
	}
	if _, err := svc.Authenticate(context.Background(), "test2", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected unusable password to reject login, got %v", err)
	}
}

func TestUsernameBase(t *testing.T) {
	cases := map[string]string{
		"john.doe@example.com": "john.doe",
		"@example.com":         "user",
		"we!rd#@example.com":   "werd",
		"plain":                "plain",
	}
	for in, want := range cases {
		if got := usernameBase(in); got != want {
			t.Fatalf("usernameBase(%q)=%q want=%q", in, got, want)
		}
	}
	if got := usernameBase(strings.Repeat("a", 200) + "@x.com"); len(got) > maxUsernameLength-4 {
		t.Fatalf("expected truncated base, got %d chars", len(got))
	}
}

func TestAuthenticate(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	u := mustRegister(t, svc, NewUser{Username: "test", Email: "test@test.com", Password: strPtr("testing1234")})

	if got, err := svc.Authenticate(ctx, "test", "testing1234"); err != nil || got.ID != u.ID {
		t.Fatalf("expected login by username, got %v %v", got, err)
	}
	if got, err := svc.Authenticate(ctx, "TEST@test.com", "testing1234"); err != nil || got.ID != u.ID {
		t.Fatalf("expected login by email, got %v %v", got, err)
	}
	for _, tc := range [][2]string{{"test", "wrong-pass"}, {"nobody", "testing1234"}, {"", ""}} {
		if _, err := svc.Authenticate(ctx, tc[0], tc[1]); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("Authenticate(%q,%q): expected ErrInvalidCredentials, got %v", tc[0], tc[1], err)
		}
	}

	u.IsActive = false
	if err := store.Update(ctx, u); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Authenticate(ctx, "test", "testing1234"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected inactive user to be rejected, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	u := mustRegister(t, svc, NewUser{Username: "test", Password: strPtr("testing1234")})

	fields := fieldErrors(t, svc.ChangePassword(ctx, u, "testing123", "testing12345"))
	if len(fields["password"]) == 0 {
		t.Fatalf("expected wrong password error, got %v", fields)
	}
	fields = fieldErrors(t, svc.ChangePassword(ctx, u, "", ""))
	if len(fields["password"]) == 0 || len(fields["new_password"]) == 0 {
		t.Fatalf("expected required errors, got %v", fields)
	}
	fields = fieldErrors(t, svc.ChangePassword(ctx, u, "testing1234", "short"))
	if len(fields["new_password"]) == 0 {
		t.Fatalf("expected min length error, got %v", fields)
	}

	if err := svc.ChangePassword(ctx, u, "testing1234", "testing12345"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	stored, err := store.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !CheckPassword(stored.Password, "testing12345") || CheckPassword(stored.Password, "testing1234") {
		t.Fatal("expected stored hash to verify only the new password")
	}
}

func TestUpdateProfile(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	mustRegister(t, svc, NewUser{Username: "other", Email: "other@test.com", Password: strPtr("testing1234")})
	u := mustRegister(t, svc, NewUser{Username: "test", Email: "test@test.com", Password: strPtr("testing1234")})

	_, err := svc.UpdateProfile(ctx, u, ProfileUpdate{Username: strPtr("other"), Email: strPtr("OTHER@test.com")})
	fields := fieldErrors(t, err)
	if len(fields["username"]) == 0 || len(fields["email"]) == 0 {
		t.Fatalf("expected uniqueness errors, got %v", fields)
	}
	if u.Username != "test" {
		t.Fatal("failed update must not modify the user")
	}

	// unchanged values don't collide with themselves
	if _, err := svc.UpdateProfile(ctx, u, ProfileUpdate{Username: strPtr("test"), FirstName: strPtr("Ann")}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}

	if _, err := svc.UpdateProfile(ctx, u, ProfileUpdate{Email: strPtr(""), LastName: strPtr("Lee")}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	stored, err := store.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.FirstName != "Ann" || stored.LastName != "Lee" || stored.Email != nil {
		t.Fatalf("unexpected stored profile: %+v", stored)
	}
	if !CheckPassword(stored.Password, "testing1234") {
		t.Fatal("profile update must keep the password")
	}
}

func TestTouchLastLogin(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	u := mustRegister(t, svc, NewUser{Username: "test", Password: strPtr("testing1234")})
	if u.LastLogin != nil {
		t.Fatal("new account should have no last login")
	}
	if err := svc.TouchLastLogin(ctx, u); err != nil {
		t.Fatal(err)
	}
	stored, err := store.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.LastLogin == nil {
		t.Fatal("expected last login to be stored")
	}
}

func TestGetUnknown(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Get(context.Background(), 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.FindByEmail(context.Background(), "none@test.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAuthenticateByEmailNotShadowedByUsername(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustRegister(t, svc, NewUser{Username: "alice@x.com", Password: strPtr("squatter1234")})
	victim := mustRegister(t, svc, NewUser{Username: "alice", Email: "alice@x.com", Password: strPtr("victim1234")})

	got, err := svc.Authenticate(ctx, "alice@x.com", "victim1234")
	if err != nil {
		t.Fatalf("login by email: %v", err)
	}
	if got.ID != victim.ID {
		t.Fatalf("expected account %d, got %d", victim.ID, got.ID)
	}

	squatter, err := svc.Authenticate(ctx, "alice@x.com", "squatter1234")
	if err != nil {
		t.Fatalf("login by username: %v", err)
	}
	if squatter.ID == victim.ID {
		t.Fatal("username match must still sign into its own account")
	}
}

func TestRegisterFromIdentityTakenEmailIsConflict(t *testing.T) {
	svc, _ := newTestService(t)
	mustRegister(t, svc, NewUser{Username: "first", Email: "test@gmail.com", Password: strPtr("testing1234")})

	_, err := svc.RegisterFromIdentity(context.Background(), "test@gmail.com", "", "")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		t.Fatal("expected no field errors for a lost race")
	}
}
