package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/crewhub/crewhub/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Database configuration
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration (grant cache)
	Redis RedisConfig `yaml:"redis"`

	// Auth configuration
	Auth AuthConfig `yaml:"auth"`

	// Permission engine configuration
	Permissions PermissionsConfig `yaml:"permissions"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	URL         string        `yaml:"url"`
	MaxConns    int           `yaml:"max_conns"`
	MinConns    int           `yaml:"min_conns"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxLifetime time.Duration `yaml:"max_lifetime"`
}

// RedisConfig holds Redis connection and grant cache configuration
type RedisConfig struct {
	Addr          string        `yaml:"addr"`
	Password      string        `yaml:"password"`
	DB            int           `yaml:"db"`
	CacheEnabled  bool          `yaml:"cache_enabled"`
	GrantCacheTTL time.Duration `yaml:"grant_cache_ttl"`
}

// AuthConfig holds JWT configuration
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// PermissionsConfig holds permission engine settings
type PermissionsConfig struct {
	// RestrictOrgCreate gates organization creation on the
	// DOMAIN/CREATE_ORGANIZATION grant. When false any authenticated
	// user may create organizations.
	RestrictOrgCreate bool `yaml:"restrict_org_create"`

	// JoinCodeCleanupSchedule is a cron expression for the expired
	// join-code cleanup job.
	JoinCodeCleanupSchedule string `yaml:"join_code_cleanup_schedule"`

	// OrgFactsCacheSize bounds the in-process LRU used by the evaluator
	// for organization visibility lookups.
	OrgFactsCacheSize int           `yaml:"org_facts_cache_size"`
	OrgFactsCacheTTL  time.Duration `yaml:"org_facts_cache_ttl"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel `yaml:"-"`
	LogLevelName   string                 `yaml:"log_level"`
	MetricsEnabled bool                   `yaml:"metrics_enabled"`
}

// LoadConfig loads configuration from an optional YAML file (CREWHUB_CONFIG_FILE)
// with environment variable overrides, then validates it.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CREWHUB_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.Observability.LogLevel = ParseLogLevel(cfg.Observability.LogLevelName)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		Database: DatabaseConfig{
			MaxConns:    25,
			MinConns:    5,
			Timeout:     10 * time.Second,
			MaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			DB:            0,
			CacheEnabled:  false,
			GrantCacheTTL: 5 * time.Minute,
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Permissions: PermissionsConfig{
			RestrictOrgCreate:       false,
			JoinCodeCleanupSchedule: "@hourly",
			OrgFactsCacheSize:       1024,
			OrgFactsCacheTTL:        30 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevelName:   "info",
			MetricsEnabled: true,
		},
	}
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// applyEnv overrides config fields from CREWHUB_* environment variables
func (c *Config) applyEnv() {
	c.Server.Host = getEnv("CREWHUB_HOST", c.Server.Host)
	c.Server.Port = getEnv("CREWHUB_PORT", c.Server.Port)
	c.Server.HealthPort = getEnv("CREWHUB_HEALTH_PORT", c.Server.HealthPort)
	c.Server.ReadTimeout = getEnvDuration("CREWHUB_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("CREWHUB_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvDuration("CREWHUB_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("CREWHUB_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Database.URL = getEnv("CREWHUB_POSTGRES_URL", c.Database.URL)
	c.Database.MaxConns = getEnvInt("CREWHUB_POSTGRES_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvInt("CREWHUB_POSTGRES_MIN_CONNS", c.Database.MinConns)
	c.Database.Timeout = getEnvDuration("CREWHUB_POSTGRES_TIMEOUT", c.Database.Timeout)
	c.Database.MaxLifetime = getEnvDuration("CREWHUB_POSTGRES_MAX_LIFETIME", c.Database.MaxLifetime)

	c.Redis.Addr = getEnv("CREWHUB_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("CREWHUB_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("CREWHUB_REDIS_DB", c.Redis.DB)
	c.Redis.CacheEnabled = getEnvBool("CREWHUB_CACHE_ENABLED", c.Redis.CacheEnabled)
	c.Redis.GrantCacheTTL = getEnvDuration("CREWHUB_GRANT_CACHE_TTL", c.Redis.GrantCacheTTL)

	c.Auth.JWTSecret = getEnv("CREWHUB_JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.TokenTTL = getEnvDuration("CREWHUB_TOKEN_TTL", c.Auth.TokenTTL)

	c.Permissions.RestrictOrgCreate = getEnvBool("CREWHUB_RESTRICT_ORG_CREATE", c.Permissions.RestrictOrgCreate)
	c.Permissions.JoinCodeCleanupSchedule = getEnv("CREWHUB_JOIN_CODE_CLEANUP_SCHEDULE", c.Permissions.JoinCodeCleanupSchedule)
	c.Permissions.OrgFactsCacheSize = getEnvInt("CREWHUB_ORG_FACTS_CACHE_SIZE", c.Permissions.OrgFactsCacheSize)
	c.Permissions.OrgFactsCacheTTL = getEnvDuration("CREWHUB_ORG_FACTS_CACHE_TTL", c.Permissions.OrgFactsCacheTTL)

	c.Observability.LogLevelName = getEnv("CREWHUB_LOG_LEVEL", c.Observability.LogLevelName)
	c.Observability.MetricsEnabled = getEnvBool("CREWHUB_METRICS_ENABLED", c.Observability.MetricsEnabled)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if c.Redis.CacheEnabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required when the grant cache is enabled")
	}
	if c.Permissions.OrgFactsCacheSize <= 0 {
		return fmt.Errorf("org facts cache size must be positive")
	}
	return nil
}

// ParseLogLevel parses a log level string
func ParseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
