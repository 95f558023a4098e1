package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fuomag9/kabomba-auth/internal/api"
	"github.com/fuomag9/kabomba-auth/internal/config"
	"github.com/fuomag9/kabomba-auth/internal/database"
	"github.com/fuomag9/kabomba-auth/internal/jobs"
	"github.com/fuomag9/kabomba-auth/internal/oauth"
	"github.com/fuomag9/kabomba-auth/internal/session"
	"github.com/fuomag9/kabomba-auth/internal/token"
	"github.com/fuomag9/kabomba-auth/internal/users"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server: fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	// Initialize database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get database connection: %w", err)
	}
	defer sqlDB.Close()

	// Run migrations
	if err := database.RunMigrations(db, cfg.Database.MigrationsPath); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Session backend
	var store session.Store
	switch cfg.Session.Backend {
	case config.SessionBackendRedis:
		rdb, err := database.ConnectRedis(cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer rdb.Close()
		store = session.NewRedisStore(rdb)
	case config.SessionBackendDatabase:
		dbStore := session.NewDBStore(db)
		scheduler := jobs.NewScheduler(dbStore)
		if err := scheduler.Start(cfg.Session.PurgeSchedule); err != nil {
			return err
		}
		defer scheduler.Stop()
		store = dbStore
	}
	sessions := session.NewManager(store, cfg.Session.TTL, session.CookieOptions{
		Secure: cfg.Session.CookieSecure,
	})

	// Services
	tokens := token.NewIssuer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)
	userSvc := users.NewService(users.NewGormStore(db))
	oauthSvc := oauth.NewService(oauth.NewClient(cfg.Google), userSvc, tokens, cfg.Google.StateTTL)

	limiter := api.NewLoginRateLimiter(cfg.LoginRatePerMinute)
	limiter.StartCleanup(ctx, 10*time.Minute, 30*time.Minute)

	// Setup API router
	router := api.NewRouter(cfg, api.Deps{
		Users:    userSvc,
		OAuth:    oauthSvc,
		Tokens:   tokens,
		Sessions: sessions,
		Limiter:  limiter,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2*cfg.Google.HTTPTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server: starting", "port", cfg.Port, "session_backend", cfg.Session.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Graceful shutdown
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("server: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server: exited")
	return nil
}
