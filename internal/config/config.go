package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	CORS         CORSConfig
	Notification NotificationConfig
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

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. URL, when set, wins over the
// individual fields.
type RedisConfig struct {
	URL      string
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level       string
	Development bool
}

// AuthConfig defines token and hashing parameters.
type AuthConfig struct {
	AccessTokenSecret         string
	RefreshTokenSecret        string
	EmailVerificationSecret   string
	AccessTokenTTLMinutes     int
	RefreshTokenTTLHours      int
	EmailVerificationTTLHours int
	Argon2MemoryKiB           uint32
	Argon2Iterations          uint32
	Argon2Parallelism         uint8
	Argon2SaltLength          uint32
	Argon2KeyLength           uint32
}

// CORSConfig lists browser origins allowed to call the service.
type CORSConfig struct {
	AllowOrigins string
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom      string
	WebhookURL     string
	VerifyEmailURL string
}

// Default token lifetimes.
const (
	DefaultAccessTokenTTL       = 15 * time.Minute
	DefaultRefreshTokenTTL      = 7 * 24 * time.Hour
	DefaultEmailVerificationTTL = 24 * time.Hour
)

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

	appEnv := getEnv("APP_ENV", "development")

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "auth-service"),
			Env:                   appEnv,
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "3001"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			URL:      os.Getenv("REDIS_URL"),
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: appEnv == "development",
		},
		Auth: AuthConfig{
			AccessTokenSecret:         os.Getenv("AUTH_ACCESS_TOKEN_SECRET"),
			RefreshTokenSecret:        os.Getenv("AUTH_REFRESH_TOKEN_SECRET"),
			EmailVerificationSecret:   os.Getenv("AUTH_EMAIL_VERIFICATION_SECRET"),
			AccessTokenTTLMinutes:     getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 15),
			RefreshTokenTTLHours:      getEnvAsInt("AUTH_REFRESH_TOKEN_TTL_HOURS", 7*24),
			EmailVerificationTTLHours: getEnvAsInt("AUTH_EMAIL_VERIFICATION_TTL_HOURS", 24),
			Argon2MemoryKiB:           uint32(getEnvAsInt("AUTH_ARGON2_MEMORY_KIB", 64*1024)),
			Argon2Iterations:          uint32(getEnvAsInt("AUTH_ARGON2_ITERATIONS", 3)),
			Argon2Parallelism:         uint8(getEnvAsInt("AUTH_ARGON2_PARALLELISM", 2)),
			Argon2SaltLength:          uint32(getEnvAsInt("AUTH_ARGON2_SALT_LEN", 16)),
			Argon2KeyLength:           uint32(getEnvAsInt("AUTH_ARGON2_KEY_LEN", 32)),
		},
		CORS: CORSConfig{
			AllowOrigins: getEnv("CORS_ALLOW_ORIGINS", "http://localhost,http://localhost:3000"),
		},
		Notification: NotificationConfig{
			EmailFrom:      getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL:     getEnv("NOTIFY_WEBHOOK_URL", ""),
			VerifyEmailURL: getEnv("NOTIFY_VERIFY_EMAIL_URL", "http://localhost:3001/auth/verify-email"),
		},
	}

	if err := cfg.Auth.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that every signing secret is present and that no two
// token kinds share a secret.
func (a AuthConfig) Validate() error {
	secrets := map[string]string{
		"AUTH_ACCESS_TOKEN_SECRET":       a.AccessTokenSecret,
		"AUTH_REFRESH_TOKEN_SECRET":      a.RefreshTokenSecret,
		"AUTH_EMAIL_VERIFICATION_SECRET": a.EmailVerificationSecret,
	}
	var errs []error
	for name, val := range secrets {
		if strings.TrimSpace(val) == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if a.AccessTokenSecret == a.RefreshTokenSecret {
		return errors.New("access and refresh token secrets must differ")
	}
	if a.EmailVerificationSecret == a.AccessTokenSecret || a.EmailVerificationSecret == a.RefreshTokenSecret {
		return errors.New("email verification secret must differ from token secrets")
	}
	return nil
}

// AccessTokenTTL returns the access token lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	if a.AccessTokenTTLMinutes <= 0 {
		return DefaultAccessTokenTTL
	}
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// RefreshTokenTTL returns the refresh token and session record lifetime.
func (a AuthConfig) RefreshTokenTTL() time.Duration {
	if a.RefreshTokenTTLHours <= 0 {
		return DefaultRefreshTokenTTL
	}
	return time.Duration(a.RefreshTokenTTLHours) * time.Hour
}

// EmailVerificationTTL returns the verification link lifetime.
func (a AuthConfig) EmailVerificationTTL() time.Duration {
	if a.EmailVerificationTTLHours <= 0 {
		return DefaultEmailVerificationTTL
	}
	return time.Duration(a.EmailVerificationTTLHours) * time.Hour
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
