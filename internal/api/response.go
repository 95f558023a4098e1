package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/fuomag9/kabomba-auth/internal/oauth"
	"github.com/fuomag9/kabomba-auth/internal/token"
	"github.com/fuomag9/kabomba-auth/internal/users"
)

var (
	errInvalidBody  = errors.New("invalid request body")
	errMissingToken = errors.New("authentication credentials were not provided")
)

// maxBodyBytes caps request bodies on JSON endpoints.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("api: failed to encode response", "error", err)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// writeError maps domain errors onto HTTP responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *users.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, verr.Fields)
	case errors.Is(err, oauth.ErrInvalidState):
		writeDetail(w, http.StatusBadRequest, "state mismatch")
	case errors.Is(err, oauth.ErrAuthorizationDenied), errors.Is(err, oauth.ErrMissingCode), errors.Is(err, errInvalidBody):
		writeDetail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, users.ErrInvalidCredentials):
		writeDetail(w, http.StatusUnauthorized, "No active account found with the given credentials")
	case errors.Is(err, errMissingToken):
		writeDetail(w, http.StatusUnauthorized, errMissingToken.Error())
	case errors.Is(err, token.ErrInvalidToken):
		writeDetail(w, http.StatusUnauthorized, "Given token not valid")
	case errors.Is(err, users.ErrConflict):
		writeDetail(w, http.StatusConflict, "account was modified concurrently, please retry")
	case errors.Is(err, oauth.ErrProviderTimeout):
		writeDetail(w, http.StatusGatewayTimeout, "identity provider timed out")
	case errors.Is(err, oauth.ErrUpstreamProvider):
		writeDetail(w, http.StatusBadGateway, "identity provider returned an invalid response")
	default:
		slog.Error("api: unhandled error", "method", r.Method, "path", r.URL.Path, "error", err)
		writeDetail(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON reads a single JSON object from the request body into dst. An
// empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return errInvalidBody
	}
	return nil
}
