package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fuomag9/kabomba-auth/internal/models"
	"github.com/fuomag9/kabomba-auth/internal/token"
	"github.com/fuomag9/kabomba-auth/internal/users"
)

type contextKey string

const userContextKey contextKey = "user"

// LoginRequest represents login credentials. Username may also be the
// account's e-mail address.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SignupRequest is the body of POST /auth/signup.
type SignupRequest struct {
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	Password  *string `json:"password"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
}

// ProfileUpdateRequest is a partial update of the editable profile fields.
type ProfileUpdateRequest struct {
	Username  *string `json:"username"`
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

// ChangePasswordRequest is the body of PATCH /auth/changepassword.
type ChangePasswordRequest struct {
	Password    string `json:"password"`
	NewPassword string `json:"new_password"`
}

// HandleLogin handles username/password login
func HandleLogin(svc *users.Service, tokens *token.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		user, err := svc.Authenticate(r.Context(), req.Username, req.Password)
		if err != nil {
			if errors.Is(err, users.ErrInvalidCredentials) {
				slog.Info("login: authentication failed", "remote_addr", r.RemoteAddr)
			}
			writeError(w, r, err)
			return
		}

		if err := svc.TouchLastLogin(r.Context(), user); err != nil {
			writeError(w, r, err)
			return
		}

		accessToken, err := tokens.Issue(user.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		slog.Info("login: successful authentication", "user_id", user.ID)
		writeJSON(w, http.StatusOK, detailWithToken{
			userDetail:  newUserDetail(user),
			AccessToken: accessToken,
		})
	}
}

// HandleSignup creates an account with a password.
func HandleSignup(svc *users.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SignupRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		// signup always requires a password; nil would mean an unusable one
		if req.Password == nil {
			empty := ""
			req.Password = &empty
		}

		user, err := svc.Register(r.Context(), users.NewUser{
			Username:  req.Username,
			Email:     req.Email,
			Password:  req.Password,
			FirstName: req.FirstName,
			LastName:  req.LastName,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, newUserPublic(user))
	}
}

// HandleProfile serves GET and PATCH on the current user's profile.
func HandleProfile(svc *users.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shape := profileShapeFor(r.Method)
		if shape == shapeNone {
			w.Header().Set("Allow", "GET, HEAD, PATCH")
			writeDetail(w, http.StatusMethodNotAllowed, "Method \""+r.Method+"\" not allowed.")
			return
		}

		user := currentUser(r)
		if r.Method == http.MethodPatch {
			var req ProfileUpdateRequest
			if err := decodeJSON(w, r, &req); err != nil {
				writeError(w, r, err)
				return
			}
			updated, err := svc.UpdateProfile(r.Context(), user, users.ProfileUpdate{
				Username:  req.Username,
				Email:     req.Email,
				FirstName: req.FirstName,
				LastName:  req.LastName,
			})
			if err != nil {
				writeError(w, r, err)
				return
			}
			user = updated
		}

		writeJSON(w, http.StatusOK, renderProfile(shape, user))
	}
}

// HandleChangePassword replaces the current user's password.
func HandleChangePassword(svc *users.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ChangePasswordRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		if err := svc.ChangePassword(r.Context(), currentUser(r), req.Password, req.NewPassword); err != nil {
			writeError(w, r, err)
			return
		}

		writeDetail(w, http.StatusOK, "Password updated successfully")
	}
}

// AuthMiddleware validates bearer access tokens and loads the user.
func AuthMiddleware(tokens *token.Issuer, svc *users.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, r, errMissingToken)
				return
			}

			tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || tokenString == "" {
				writeError(w, r, token.ErrInvalidToken)
				return
			}

			claims, err := tokens.Parse(tokenString)
			if err != nil {
				writeError(w, r, token.ErrInvalidToken)
				return
			}

			user, err := svc.Get(r.Context(), claims.UserID)
			if err != nil {
				if !errors.Is(err, users.ErrNotFound) {
					writeError(w, r, err)
					return
				}
				slog.Warn("auth: token for unknown user", "user_id", claims.UserID)
				writeError(w, r, token.ErrInvalidToken)
				return
			}
			if !user.IsActive {
				writeError(w, r, token.ErrInvalidToken)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func currentUser(r *http.Request) *models.User {
	return r.Context().Value(userContextKey).(*models.User)
}
