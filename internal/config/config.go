package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "github.com/spec-kit/maintenance-ticketing/pkg/util"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App        AppConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Auth       AuthConfig
	Ticketing  TicketingConfig
	Identity   IdentityConfig
	Generation GenerationConfig
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
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	AuditKeyspace string
	AuditMaxRuns  int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines operator bearer token validation.
type AuthConfig struct {
	JWTSecret string
}

// TicketingConfig points at the external ticketing API.
type TicketingConfig struct {
	BaseURL            string
	CreatePath         string
	ListPath           string
	KPIPath            string
	StatusOptionsPath  string
	TimeoutSeconds     int
	RateLimitPerSecond float64
	TenantID           string
	OrgID              string
	Channel            string
	DedupPageSize      int
	DedupMaxPages      int
}

// IdentityConfig holds client-credentials settings for the ticketing API.
type IdentityConfig struct {
	TokenURL       string
	ClientID       string
	ClientSecret   string
	Scope          string
	MaxAttempts    int
	TimeoutSeconds int
}

// GenerationConfig tunes the ticket generation engine.
type GenerationConfig struct {
	Timezone         string
	HorizonDays      int
	WindowDays       int
	Concurrency      int
	SchedulerEnabled bool
	SchedulerSpec    string
	SystemUserID     string
	SystemUserName   string
	SystemUserEmail  string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	rateLimit, err := strconv.ParseFloat(getEnv("TICKETING_RATE_LIMIT_PER_SECOND", "0"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TICKETING_RATE_LIMIT_PER_SECOND: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "maintenance-ticketing"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 0),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", false),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:          getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:      os.Getenv("REDIS_PASSWORD"),
			DB:            redisDB,
			AuditKeyspace: getEnv("REDIS_AUDIT_KEYSPACE", "ticketgen:runs"),
			AuditMaxRuns:  getEnvAsInt("REDIS_AUDIT_MAX_RUNS", 50),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", "dev-secret"),
		},
		Ticketing: TicketingConfig{
			BaseURL:            strings.TrimRight(os.Getenv("TICKETING_BASE_URL"), "/"),
			CreatePath:         getEnv("TICKETING_CREATE_PATH", "/api/tickets/create"),
			ListPath:           getEnv("TICKETING_LIST_PATH", "/api/tickets/list"),
			KPIPath:            getEnv("TICKETING_KPI_PATH", "/api/tickets/kpi"),
			StatusOptionsPath:  getEnv("TICKETING_STATUS_OPTIONS_PATH", "/api/tickets/status-options"),
			TimeoutSeconds:     getEnvAsInt("TICKETING_TIMEOUT_SECONDS", 30),
			RateLimitPerSecond: rateLimit,
			TenantID:           getEnv("TICKETING_TENANT_ID", "facility"),
			OrgID:              getEnv("TICKETING_ORG_ID", "facility-ops"),
			Channel:            getEnv("TICKETING_CHANNEL", "ASSET_MANAGEMENT"),
			DedupPageSize:      getEnvAsInt("TICKETING_DEDUP_PAGE_SIZE", 100),
			DedupMaxPages:      getEnvAsInt("TICKETING_DEDUP_MAX_PAGES", 20),
		},
		Identity: IdentityConfig{
			TokenURL:       os.Getenv("IDENTITY_TOKEN_URL"),
			ClientID:       os.Getenv("IDENTITY_CLIENT_ID"),
			ClientSecret:   os.Getenv("IDENTITY_CLIENT_SECRET"),
			Scope:          os.Getenv("IDENTITY_SCOPE"),
			MaxAttempts:    getEnvAsInt("IDENTITY_MAX_ATTEMPTS", 3),
			TimeoutSeconds: getEnvAsInt("IDENTITY_TIMEOUT_SECONDS", 15),
		},
		Generation: GenerationConfig{
			Timezone:         getEnv("GENERATION_TIMEZONE", "UTC"),
			HorizonDays:      getEnvAsInt("GENERATION_HORIZON_DAYS", 15),
			WindowDays:       getEnvAsInt("GENERATION_WINDOW_DAYS", 14),
			Concurrency:      getEnvAsInt("GENERATION_CONCURRENCY", 1),
			SchedulerEnabled: getEnvAsBool("GENERATION_SCHEDULER_ENABLED", true),
			SchedulerSpec:    getEnv("GENERATION_SCHEDULER_SPEC", "30 1 * * *"),
			SystemUserID:     getEnv("GENERATION_SYSTEM_USER_ID", "system"),
			SystemUserName:   getEnv("GENERATION_SYSTEM_USER_NAME", "Asset Management System"),
			SystemUserEmail:  getEnv("GENERATION_SYSTEM_USER_EMAIL", "noreply@example.com"),
		},
	}

	return cfg, nil
}

// Validate reports missing settings that make ticket generation impossible.
func (c *Config) Validate() error {
	missing := []string{}
	if c.Ticketing.BaseURL == "" {
		missing = append(missing, "TICKETING_BASE_URL")
	}
	if c.Identity.TokenURL == "" {
		missing = append(missing, "IDENTITY_TOKEN_URL")
	}
	if c.Identity.ClientID == "" {
		missing = append(missing, "IDENTITY_CLIENT_ID")
	}
	if c.Identity.ClientSecret == "" {
		missing = append(missing, "IDENTITY_CLIENT_SECRET")
	}
	if len(missing) > 0 {
		return apperrors.NewConfigurationError("missing required settings", map[string]any{"missing": missing})
	}
	if _, err := c.Generation.Location(); err != nil {
		return apperrors.NewConfigurationError("invalid GENERATION_TIMEZONE", map[string]any{"timezone": c.Generation.Timezone})
	}
	return nil
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

// Timeout returns the per-call ticketing timeout.
func (t TicketingConfig) Timeout() time.Duration {
	if t.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// Timeout returns the token endpoint timeout.
func (i IdentityConfig) Timeout() time.Duration {
	if i.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(i.TimeoutSeconds) * time.Second
}

// Location resolves the generation timezone.
func (g GenerationConfig) Location() (*time.Location, error) {
	if g.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(g.Timezone)
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
