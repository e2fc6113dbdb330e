package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Telegram   TelegramConfig
	JWT        JWTConfig
	API        APIConfig
	Log        LogConfig
	Moderation ModerationConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Driver     string
	Host       string
	Port       string
	User       string
	Password   string
	DBName     string
	SSLMode    string
	SQLitePath string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type TelegramConfig struct {
	Token   string
	Workers int
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

type APIConfig struct {
	RateLimitRequestsPerSec int
	AllowedOrigins          []string
}

type LogConfig struct {
	Level   string
	Format  string
	Dir     string
	File    string
	MaxSize int64
}

type ModerationConfig struct {
	DefaultTemplate string
	DefaultLocale   string
	SuperAdminIDs   []int64
	StoreTimeout    time.Duration
}

// DefaultTemplate is the warning used when a chat has no templates of its own.
const DefaultTemplate = "Hey, {name}, this word `{word}` is banned!"

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	jwtExpiry, err := strconv.Atoi(getEnv("JWT_EXPIRY_HOURS", "168"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRY_HOURS: %w", err)
	}

	rateLimit, err := strconv.Atoi(getEnv("RATE_LIMIT_REQUESTS_PER_SEC", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REQUESTS_PER_SEC: %w", err)
	}

	workers, err := strconv.Atoi(getEnv("WORKERS", "8"))
	if err != nil || workers < 1 {
		return nil, fmt.Errorf("invalid WORKERS: %q", os.Getenv("WORKERS"))
	}

	logMaxSize, err := strconv.ParseInt(getEnv("LOG_MAX_SIZE", "10485760"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_MAX_SIZE: %w", err)
	}

	storeTimeout, err := time.ParseDuration(getEnv("STORE_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid STORE_TIMEOUT: %w", err)
	}

	superAdmins, err := ParseIDList(getEnv("SUPER_ADMIN_IDS", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid SUPER_ADMIN_IDS: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", DriverPostgres),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnv("DB_PORT", "5432"),
			User:       getEnv("DB_USER", "wordguard"),
			Password:   getEnv("DB_PASSWORD", "wordguard_password"),
			DBName:     getEnv("DB_NAME", "wordguard"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			SQLitePath: getEnv("SQLITE_PATH", "wordguard.db"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Telegram: TelegramConfig{
			Token:   getEnv("TELEGRAM_BOT_API", ""),
			Workers: workers,
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-this-secret-key"),
			ExpiryHours: jwtExpiry,
		},
		API: APIConfig{
			RateLimitRequestsPerSec: rateLimit,
			AllowedOrigins:          splitNonEmpty(getEnv("CORS_ALLOWED_ORIGINS", "")),
		},
		Log: LogConfig{
			Level:   getEnv("LOG_LEVEL", "info"),
			Format:  getEnv("LOG_FORMAT", "console"),
			Dir:     getEnv("LOG_DIR", "logs"),
			File:    getEnv("LOG_FILE", "message_log.jsonl"),
			MaxSize: logMaxSize,
		},
		Moderation: ModerationConfig{
			DefaultTemplate: getEnv("DEFAULT_TEMPLATE", DefaultTemplate),
			DefaultLocale:   getEnv("DEFAULT_LOCALE", "en"),
			SuperAdminIDs:   superAdmins,
			StoreTimeout:    storeTimeout,
		},
	}

	if cfg.Database.Driver != DriverPostgres && cfg.Database.Driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}

	// Validate required fields
	if cfg.JWT.Secret == "change-this-secret-key" && cfg.Server.Env == "production" {
		return nil, fmt.Errorf("JWT_SECRET must be set in production")
	}

	return cfg, nil
}

// GetDSN returns the database connection string for the configured driver
func (c *Config) GetDSN() string {
	if c.Database.Driver == DriverSQLite {
		return c.Database.SQLitePath
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// ParseIDList parses a comma separated list of platform ids.
func ParseIDList(s string) ([]int64, error) {
	parts := splitNonEmpty(s)
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
