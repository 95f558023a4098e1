package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Session storage backends.
const (
	SessionBackendRedis    = "redis"
	SessionBackendDatabase = "database"
)

// Config holds application configuration
type Config struct {
	Port        int      `env:"PORT" envDefault:"8080"`
	Environment string   `env:"ENVIRONMENT" envDefault:"production"`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	Database DatabaseConfig
	JWT      JWTConfig
	Google   GoogleConfig
	Session  SessionConfig
	Redis    RedisConfig

	LoginRatePerMinute int `env:"LOGIN_RATE_PER_MIN" envDefault:"10"`

	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	DSN            string `env:"DATABASE_DSN"`
	MaxOpenConns   int    `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns   int    `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"file://./migrations"`
}

// JWTConfig holds the access token signing settings.
type JWTConfig struct {
	Secret string        `env:"JWT_SECRET"`
	Issuer string        `env:"JWT_ISSUER" envDefault:"kabomba-auth"`
	TTL    time.Duration `env:"JWT_TTL" envDefault:"2h"`
}

// GoogleConfig holds the OAuth2 client registration for Google sign-in.
type GoogleConfig struct {
	ClientID     string        `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string        `env:"GOOGLE_CLIENT_SECRET"`
	RedirectURL  string        `env:"GOOGLE_REDIRECT_URL"`
	AuthURL      string        `env:"GOOGLE_AUTH_URL" envDefault:"https://accounts.google.com/o/oauth2/v2/auth"`
	TokenURL     string        `env:"GOOGLE_TOKEN_URL" envDefault:"https://oauth2.googleapis.com/token"`
	UserInfoURL  string        `env:"GOOGLE_USERINFO_URL" envDefault:"https://oauth2.googleapis.com/tokeninfo"`
	Scopes       []string      `env:"GOOGLE_SCOPES" envSeparator:"," envDefault:"openid,email,profile"`
	HTTPTimeout  time.Duration `env:"OAUTH_HTTP_TIMEOUT" envDefault:"10s"`
	StateTTL     time.Duration `env:"OAUTH_STATE_TTL" envDefault:"10m"`
}

// SessionConfig controls the server-side session used to hold OAuth state.
type SessionConfig struct {
	Backend      string        `env:"SESSION_BACKEND" envDefault:"redis"`
	TTL          time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	CookieSecure bool          `env:"SESSION_COOKIE_SECURE" envDefault:"true"`

	// PurgeSchedule is the cron schedule for deleting expired rows; database backend only.
	PurgeSchedule string `env:"SESSION_PURGE_SCHEDULE" envDefault:"*/15 * * * *"`
}

// RedisConfig holds the Redis connection used by the redis session backend.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
}

var insecureSecrets = []string{
	"change-this-secret-in-production",
	"change-me-in-production",
	"secret",
	"password",
	"changeme",
}

// Load parses configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.CORSOrigins = trimList(cfg.CORSOrigins)
	cfg.Google.Scopes = trimList(cfg.Google.Scopes)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Database.DSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN is required"))
	}

	if len(c.JWT.Secret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters"))
	}
	for _, insecure := range insecureSecrets {
		if c.JWT.Secret == insecure {
			errs = append(errs, errors.New("JWT_SECRET is set to an insecure default value"))
		}
	}
	if c.JWT.TTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}

	if c.Google.ClientID == "" || c.Google.ClientSecret == "" {
		errs = append(errs, errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required"))
	}
	if c.Google.RedirectURL == "" {
		errs = append(errs, errors.New("GOOGLE_REDIRECT_URL is required"))
	}
	for name, raw := range map[string]string{
		"GOOGLE_AUTH_URL":     c.Google.AuthURL,
		"GOOGLE_TOKEN_URL":    c.Google.TokenURL,
		"GOOGLE_USERINFO_URL": c.Google.UserInfoURL,
	} {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL", name))
		}
	}
	if !hasScope(c.Google.Scopes, "email") || !hasScope(c.Google.Scopes, "profile") {
		errs = append(errs, errors.New("GOOGLE_SCOPES must include email and profile"))
	}
	if c.Google.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("OAUTH_HTTP_TIMEOUT must be positive"))
	}
	if c.Google.StateTTL <= 0 {
		errs = append(errs, errors.New("OAUTH_STATE_TTL must be positive"))
	}

	switch c.Session.Backend {
	case SessionBackendRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis session backend"))
		}
	case SessionBackendDatabase:
		if c.Session.PurgeSchedule == "" {
			errs = append(errs, errors.New("SESSION_PURGE_SCHEDULE is required for the database session backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported SESSION_BACKEND: %q", c.Session.Backend))
	}
	if c.Session.TTL < c.Google.StateTTL {
		errs = append(errs, errors.New("SESSION_TTL must not be shorter than OAUTH_STATE_TTL"))
	}

	if len(c.CORSOrigins) == 0 {
		errs = append(errs, errors.New("at least one CORS origin must be configured"))
	}
	if c.LoginRatePerMinute <= 0 {
		errs = append(errs, errors.New("LOGIN_RATE_PER_MIN must be > 0"))
	}

	return errors.Join(errs...)
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction reports whether the service runs with production hardening.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func hasScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}

func trimList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
