package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// FallbackJWTSecret is only accepted when APP_ENV=development.
const FallbackJWTSecret = "dev-secret"

// Transport modes.
const (
	TransportBearer = "bearer"
	TransportCookie = "cookie"
)

// Role sources for the authentication middleware.
const (
	RoleSourceClaims = "claims"
	RoleSourceStore  = "store"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	CORS     CORSConfig
	Seed     SeedConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values. An empty DSN selects the in-memory store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables the identity cache.
type RedisConfig struct {
	Addr               string
	Password           string
	DB                 int
	IdentityTTLSeconds int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	FallbackSecret        bool
	Issuer                string
	AccessTokenTTLMinutes int
	BcryptCost            int
	TransportMode         string
	RoleSource            string
	CookieName            string
	CookieDomain          string
	CookieSecure          bool
	CookieSameSite        string
}

// CORSConfig lists origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string
}

// SeedConfig describes the bootstrap administrator. Empty email skips seeding the account.
type SeedConfig struct {
	AdminEmail    string
	AdminPassword string
	AdminName     string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "auth-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:               os.Getenv("REDIS_ADDR"),
			Password:           os.Getenv("REDIS_PASSWORD"),
			DB:                 redisDB,
			IdentityTTLSeconds: getEnvAsInt("REDIS_IDENTITY_TTL_SECONDS", 30),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             os.Getenv("AUTH_JWT_SECRET"),
			Issuer:                getEnv("AUTH_JWT_ISSUER", "auth-service"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			TransportMode:         strings.ToLower(getEnv("AUTH_TRANSPORT_MODE", TransportBearer)),
			RoleSource:            strings.ToLower(getEnv("AUTH_ROLE_SOURCE", RoleSourceClaims)),
			CookieName:            getEnv("AUTH_COOKIE_NAME", "token"),
			CookieDomain:          os.Getenv("AUTH_COOKIE_DOMAIN"),
			CookieSecure:          getEnvAsBool("AUTH_COOKIE_SECURE", false),
			CookieSameSite:        getEnv("AUTH_COOKIE_SAMESITE", "Strict"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Seed: SeedConfig{
			AdminEmail:    os.Getenv("SEED_ADMIN_EMAIL"),
			AdminPassword: os.Getenv("SEED_ADMIN_PASSWORD"),
			AdminName:     getEnv("SEED_ADMIN_NAME", "Administrator"),
		},
	}

	if cfg.Auth.JWTSecret == "" && cfg.App.IsDevelopment() {
		cfg.Auth.JWTSecret = FallbackJWTSecret
		cfg.Auth.FallbackSecret = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations that would break authentication or CORS at runtime.
func (c *Config) Validate() error {
	var errs []error

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET is required outside development"))
	}
	if c.Auth.AccessTokenTTLMinutes <= 0 {
		errs = append(errs, errors.New("AUTH_ACCESS_TOKEN_TTL_MINUTES must be positive"))
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("AUTH_BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}

	switch c.Auth.TransportMode {
	case TransportBearer, TransportCookie:
	default:
		errs = append(errs, fmt.Errorf("AUTH_TRANSPORT_MODE %q must be %q or %q", c.Auth.TransportMode, TransportBearer, TransportCookie))
	}

	switch c.Auth.RoleSource {
	case RoleSourceClaims, RoleSourceStore:
	default:
		errs = append(errs, fmt.Errorf("AUTH_ROLE_SOURCE %q must be %q or %q", c.Auth.RoleSource, RoleSourceClaims, RoleSourceStore))
	}

	switch strings.ToLower(c.Auth.CookieSameSite) {
	case "strict", "lax":
	case "none":
		if !c.Auth.CookieSecure {
			errs = append(errs, errors.New("AUTH_COOKIE_SAMESITE=None requires AUTH_COOKIE_SECURE=true"))
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_COOKIE_SAMESITE %q must be Strict, Lax or None", c.Auth.CookieSameSite))
	}

	if c.Auth.TransportMode == TransportCookie {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				errs = append(errs, errors.New("cookie transport cannot be combined with a wildcard CORS origin"))
				break
			}
		}
	}

	if c.Seed.AdminEmail != "" && c.Seed.AdminPassword == "" {
		errs = append(errs, errors.New("SEED_ADMIN_PASSWORD is required when SEED_ADMIN_EMAIL is set"))
	}

	return errors.Join(errs...)
}

// IsDevelopment reports whether the service runs in the development environment.
func (a AppConfig) IsDevelopment() bool {
	return strings.EqualFold(a.Env, "development")
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the token lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// IdentityTTL returns how long resolved identities stay cached.
func (r RedisConfig) IdentityTTL() time.Duration {
	if r.IdentityTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(r.IdentityTTLSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
