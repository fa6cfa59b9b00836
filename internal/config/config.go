package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Data backends
const (
	BackendPostgres  = "postgres"
	BackendPostgREST = "postgrest"
)

// Email providers
const (
	EmailProviderSES = "ses"
	EmailProviderLog = "log"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	DataStore DataStoreConfig
	Auth      AuthConfig
	Email     EmailConfig
	Redis     RedisConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	MigrateOnStart    bool
}

// DataStoreConfig selects how credential records are reached
type DataStoreConfig struct {
	Backend        string
	PostgRESTURL   string
	PostgRESTToken string
	Timeout        time.Duration
}

type AuthConfig struct {
	JWTSecret                 string
	TokenExpiry               time.Duration
	LockoutThreshold          int
	OTPTTL                    time.Duration
	PasswordBcryptCost        int
	OTPBcryptCost             int
	HashWorkers               int
	ForgotPasswordMinDuration time.Duration
	ResetThrottleWindow       time.Duration
	OTPCleanupInterval        time.Duration
	OTPRetention              time.Duration
	LoginRatePerMinute        int
}

type EmailConfig struct {
	Provider  string
	AWSRegion string
	From      string
}

type RedisConfig struct {
	URL string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout: getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "goat_farm"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			MigrateOnStart:    getEnvAsBool("MIGRATE_ON_START", false),
		},
		DataStore: DataStoreConfig{
			Backend:        strings.ToLower(getEnv("DATA_BACKEND", BackendPostgres)),
			PostgRESTURL:   getEnv("POSTGREST_URL", ""),
			PostgRESTToken: getEnv("POSTGREST_TOKEN", ""),
			Timeout:        getEnvAsDuration("POSTGREST_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:                 jwtSecret,
			TokenExpiry:               getEnvAsDuration("JWT_EXPIRES_IN", 24*time.Hour),
			LockoutThreshold:          getEnvAsInt("LOCKOUT_THRESHOLD", 5),
			OTPTTL:                    getEnvAsDuration("OTP_TTL", 10*time.Minute),
			PasswordBcryptCost:        getEnvAsInt("PASSWORD_BCRYPT_COST", 12),
			OTPBcryptCost:             getEnvAsInt("OTP_BCRYPT_COST", 10),
			HashWorkers:               getEnvAsInt("HASH_WORKERS", 0),
			ForgotPasswordMinDuration: getEnvAsDuration("FORGOT_PASSWORD_MIN_DURATION", 500*time.Millisecond),
			ResetThrottleWindow:       getEnvAsDuration("RESET_THROTTLE_WINDOW", time.Minute),
			OTPCleanupInterval:        getEnvAsDuration("OTP_CLEANUP_INTERVAL", time.Hour),
			OTPRetention:              getEnvAsDuration("OTP_RETENTION", 24*time.Hour),
			LoginRatePerMinute:        getEnvAsInt("LOGIN_RATE_PER_MINUTE", 20),
		},
		Email: EmailConfig{
			Provider:  strings.ToLower(getEnv("EMAIL_PROVIDER", EmailProviderLog)),
			AWSRegion: getEnv("AWS_REGION", "us-east-1"),
			From:      getEnv("EMAIL_FROM", "no-reply@goatfarm.local"),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DataStore.Backend {
	case BackendPostgres:
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
	case BackendPostgREST:
		if c.DataStore.PostgRESTURL == "" {
			return fmt.Errorf("POSTGREST_URL is required when DATA_BACKEND=%s", BackendPostgREST)
		}
		if _, err := url.ParseRequestURI(c.DataStore.PostgRESTURL); err != nil {
			return fmt.Errorf("POSTGREST_URL is invalid: %w", err)
		}
		if c.Database.MigrateOnStart {
			return fmt.Errorf("MIGRATE_ON_START requires DATA_BACKEND=%s", BackendPostgres)
		}
	default:
		return fmt.Errorf("DATA_BACKEND must be %q or %q (got %q)", BackendPostgres, BackendPostgREST, c.DataStore.Backend)
	}

	switch c.Email.Provider {
	case EmailProviderSES, EmailProviderLog:
	default:
		return fmt.Errorf("EMAIL_PROVIDER must be %q or %q (got %q)", EmailProviderSES, EmailProviderLog, c.Email.Provider)
	}

	if c.Auth.TokenExpiry <= 0 {
		return fmt.Errorf("JWT_EXPIRES_IN must be positive")
	}
	if c.Auth.OTPTTL <= 0 {
		return fmt.Errorf("OTP_TTL must be positive")
	}
	if c.Auth.LockoutThreshold < 1 {
		return fmt.Errorf("LOCKOUT_THRESHOLD must be at least 1")
	}

	return nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return []string{}
	}
	items := make([]string, 0)
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return getEnvAsList("ALLOWED_ORIGINS")
	}

	return []string{
		"http://localhost:3000",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
}
