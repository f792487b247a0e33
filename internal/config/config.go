package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Identity IdentityConfig
	Scoring  ScoringConfig
	Events   EventsConfig
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

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines how principals are read from requests.
type AuthConfig struct {
	JWTSecret           string
	TrustGatewayHeaders bool
}

// IdentityConfig tunes the user directory client and its circuit breaker.
type IdentityConfig struct {
	BaseURL      string
	CallTimeout  time.Duration
	FailureRatio float64
	MinRequests  uint32
	Window       time.Duration
	CoolDown     time.Duration
	CacheTTL     time.Duration
}

// ScoringConfig holds leaderboard defaults.
type ScoringConfig struct {
	LeaderboardDefault int
}

// EventsConfig configures lifecycle event publishing.
type EventsConfig struct {
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	failureRatio, err := strconv.ParseFloat(getEnv("IDENTITY_FAILURE_RATIO", "0.5"), 64)
	if err != nil || failureRatio <= 0 || failureRatio > 1 {
		return nil, fmt.Errorf("invalid IDENTITY_FAILURE_RATIO: must be in (0,1]")
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk-tickets"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:           getEnv("AUTH_JWT_SECRET", "dev-secret"),
			TrustGatewayHeaders: getEnvAsBool("AUTH_TRUST_GATEWAY_HEADERS", false),
		},
		Identity: IdentityConfig{
			BaseURL:      getEnv("USER_SERVICE_URL", "http://user-service:3002"),
			CallTimeout:  getEnvAsDuration("IDENTITY_CALL_TIMEOUT", 3*time.Second),
			FailureRatio: failureRatio,
			MinRequests:  uint32(getEnvAsInt("IDENTITY_MIN_REQUESTS", 5)),
			Window:       getEnvAsDuration("IDENTITY_WINDOW", time.Minute),
			CoolDown:     getEnvAsDuration("IDENTITY_COOL_DOWN", 30*time.Second),
			CacheTTL:     getEnvAsDuration("IDENTITY_CACHE_TTL", 5*time.Minute),
		},
		Scoring: ScoringConfig{
			LeaderboardDefault: getEnvAsInt("LEADERBOARD_DEFAULT_LIMIT", 10),
		},
		Events: EventsConfig{
			KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
			KafkaTopic:   getEnv("KAFKA_TICKET_TOPIC", "ticket-events"),
		},
	}

	return cfg, nil
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
