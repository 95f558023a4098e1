package api

import (
	"log/slog"
	"net/http"

	"github.com/fuomag9/kabomba-auth/internal/oauth"
	"github.com/fuomag9/kabomba-auth/internal/session"
)

// HandleGoogleAuthorize starts the Google sign-in flow
func HandleGoogleAuthorize(svc *oauth.Service, sessions *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := sessions.Load(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		authURL, err := svc.Begin(sess)
		if err != nil {
			writeError(w, r, err)
			return
		}

		// the state must be stored before the browser leaves for the provider
		if err := sessions.Save(w, r, sess); err != nil {
			writeError(w, r, err)
			return
		}

		slog.Debug("oauth: redirecting to consent screen")
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// HandleGoogleCallback processes the provider redirect
func HandleGoogleCallback(svc *oauth.Service, sessions *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := sessions.Load(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		q := r.URL.Query()
		result, cbErr := svc.Callback(r.Context(), sess, oauth.CallbackParams{
			Code:  q.Get("code"),
			State: q.Get("state"),
			Error: q.Get("error"),
		})

		// persist the consumed state whatever the outcome
		if err := sessions.Save(w, r, sess); err != nil {
			slog.Error("oauth: failed to save session", "error", err)
			if cbErr == nil {
				writeError(w, r, err)
				return
			}
		}
		if cbErr != nil {
			writeError(w, r, cbErr)
			return
		}

		if result.Created {
			writeJSON(w, http.StatusOK, publicWithToken{
				userPublic:  newUserPublic(result.User),
				AccessToken: result.AccessToken,
			})
			return
		}
		writeJSON(w, http.StatusOK, detailWithToken{
			userDetail:  newUserDetail(result.User),
			AccessToken: result.AccessToken,
		})
	}
}
