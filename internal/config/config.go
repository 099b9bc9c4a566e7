package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Database driver constants
const (
	DatabaseDriverSQLite   = "sqlite"
	DatabaseDriverPostgres = "postgres"
)

// User cache type constants
const (
	UserCacheTypeMemory = "memory"
	UserCacheTypeRedis  = "redis"
)

// Config holds process-wide settings. Directory policy lives in Policy and
// is loaded from POLICY_FILE.
type Config struct {
	// Directory policy
	PolicyFile  string
	PolicyWatch bool // Reload the policy file on change

	// Database
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseDSN    string // Database connection string (DSN or path)
	DBInitTimeout  time.Duration

	// Directory (Exchange) client
	DirectoryTimeout        time.Duration // Bound on one directory round trip
	EWSInsecureSkipVerify   bool
	EWSAutodiscoverScheme   string // "https" in production; tests use "http"
	EWSRequestServerVersion string

	// User cache
	UserCacheType    string // "memory" or "redis"
	UserCacheTTL     time.Duration
	UserCountTTL     time.Duration // TTL of cached user counts
	CacheInitTimeout time.Duration

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Observability
	MetricsEnabled     bool
	EnableAuditLogging bool
	AuditLogBufferSize int
	LogLevel           string

	// Provisioning hook
	OrganizationAutoAssociate bool
	ProvisionHookTimeout      time.Duration

	AuditShutdownTimeout time.Duration
}

// Load reads configuration from the environment, after loading an optional
// .env file.
func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	driver := getEnv("DATABASE_DRIVER", DatabaseDriverSQLite)
	var dsn string
	if driver == DatabaseDriverSQLite {
		dsn = getEnv("DATABASE_DSN", getEnv("DATABASE_PATH", "exchauth.db"))
	} else {
		dsn = getEnv("DATABASE_DSN", "")
	}

	return &Config{
		PolicyFile:  getEnv("POLICY_FILE", "exchauth.yaml"),
		PolicyWatch: getEnvBool("POLICY_WATCH", false),

		DatabaseDriver: driver,
		DatabaseDSN:    dsn,
		DBInitTimeout:  getEnvDuration("DB_INIT_TIMEOUT", 30*time.Second),

		DirectoryTimeout:        getEnvDuration("DIRECTORY_TIMEOUT", 15*time.Second),
		EWSInsecureSkipVerify:   getEnvBool("EWS_INSECURE_SKIP_VERIFY", false),
		EWSAutodiscoverScheme:   getEnv("EWS_AUTODISCOVER_SCHEME", "https"),
		EWSRequestServerVersion: getEnv("EWS_SERVER_VERSION", "Exchange2013_SP1"),

		UserCacheType:    getEnv("USER_CACHE_TYPE", UserCacheTypeMemory),
		UserCacheTTL:     getEnvDuration("USER_CACHE_TTL", 5*time.Minute),
		UserCountTTL:     getEnvDuration("USER_COUNT_CACHE_TTL", time.Minute),
		CacheInitTimeout: getEnvDuration("CACHE_INIT_TIMEOUT", 5*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MetricsEnabled:     getEnvBool("METRICS_ENABLED", false),
		EnableAuditLogging: getEnvBool("ENABLE_AUDIT_LOGGING", true),
		AuditLogBufferSize: getEnvInt("AUDIT_LOG_BUFFER_SIZE", 1000),
		LogLevel:           getEnv("LOG_LEVEL", "info"),

		OrganizationAutoAssociate: getEnvBool("ORGANIZATION_AUTO_ASSOCIATE", false),
		ProvisionHookTimeout:      getEnvDuration("PROVISION_HOOK_TIMEOUT", 5*time.Second),

		AuditShutdownTimeout: getEnvDuration("AUDIT_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// Validate checks the process settings for values that would only fail later.
func (c *Config) Validate() error {
	var errs []error

	switch c.DatabaseDriver {
	case DatabaseDriverSQLite, DatabaseDriverPostgres:
	default:
		errs = append(errs, fmt.Errorf(
			"invalid DATABASE_DRIVER value: %q (must be %q or %q)",
			c.DatabaseDriver, DatabaseDriverSQLite, DatabaseDriverPostgres,
		))
	}
	if c.DatabaseDriver == DatabaseDriverPostgres && c.DatabaseDSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN is required for postgres"))
	}

	if c.DirectoryTimeout <= 0 {
		errs = append(errs, fmt.Errorf(
			"DIRECTORY_TIMEOUT must be positive, got %s", c.DirectoryTimeout,
		))
	}

	switch c.EWSAutodiscoverScheme {
	case "http", "https":
	default:
		errs = append(errs, fmt.Errorf(
			"invalid EWS_AUTODISCOVER_SCHEME value: %q", c.EWSAutodiscoverScheme,
		))
	}

	switch c.UserCacheType {
	case UserCacheTypeMemory:
	case UserCacheTypeRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when USER_CACHE_TYPE=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf(
			"invalid USER_CACHE_TYPE value: %q (must be %q or %q)",
			c.UserCacheType, UserCacheTypeMemory, UserCacheTypeRedis,
		))
	}
	if c.UserCacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("USER_CACHE_TTL must be positive, got %s", c.UserCacheTTL))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		if parts := splitAndTrim(value, ","); len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}

func splitAndTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
