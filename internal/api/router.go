package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/fuomag9/kabomba-auth/internal/config"
	"github.com/fuomag9/kabomba-auth/internal/oauth"
	"github.com/fuomag9/kabomba-auth/internal/session"
	"github.com/fuomag9/kabomba-auth/internal/token"
	"github.com/fuomag9/kabomba-auth/internal/users"
)

// Deps are the services the HTTP layer dispatches to.
type Deps struct {
	Users    *users.Service
	OAuth    *oauth.Service
	Tokens   *token.Issuer
	Sessions *session.Manager
	Limiter  *RateLimiter
}

// NewRouter creates a new HTTP router
func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(SecurityHeadersMiddleware(cfg))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/auth", func(r chi.Router) {
		// Google sign-in
		r.Get("/google", HandleGoogleAuthorize(deps.OAuth, deps.Sessions))
		r.Get("/google/callback", HandleGoogleCallback(deps.OAuth, deps.Sessions))

		// Credential endpoints
		r.Group(func(r chi.Router) {
			r.Use(StrictRateLimitMiddleware(deps.Limiter))
			r.Post("/login", HandleLogin(deps.Users, deps.Tokens))
			r.Post("/signup", HandleSignup(deps.Users))
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(deps.Tokens, deps.Users))
			r.HandleFunc("/user", HandleProfile(deps.Users))
			r.Patch("/changepassword", HandleChangePassword(deps.Users))
		})
	})

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
