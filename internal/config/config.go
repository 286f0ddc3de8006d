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

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName     string
	Environment string
	Storage     string
	HTTP        HTTPConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Telegram    TelegramConfig
	Auth        AuthConfig
	GenAI       GenAIConfig
	JobSearch   JobSearchConfig
	RateLimit   RateLimitConfig
	Reminder    ReminderConfig
	Outbox      OutboxConfig
	Motivation  MotivationConfig
	AdminUserID int64
	Context     ContextConfig
	Logger      LoggerConfig
	Migrations  MigrationsConfig
}

type HTTPConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxConn      int
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SSLMode         string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

type TelegramConfig struct {
	BotToken      string
	APIURL        string
	WebhookURL    string
	WebhookSecret string
	MiniAppURL    string
	Timeout       time.Duration
	RatePerSecond float64
}

type AuthConfig struct {
	TokenSecret         string
	LaunchTokenTTL      time.Duration
	SessionTTL          time.Duration
	AllowUserIDFallback bool
}

type GenAIConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

type JobSearchConfig struct {
	APIKey  string
	Host    string
	Timeout time.Duration
}

type RateLimitConfig struct {
	Daily      int
	FailClosed bool
}

type ReminderConfig struct {
	PollInterval time.Duration
	BatchSize    int
	Lease        time.Duration
	RetryDelay   time.Duration
	MaxAttempts  int
}

type OutboxConfig struct {
	Path        string
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	Retention   time.Duration
}

type MotivationConfig struct {
	Schedule    string
	BatchSize   int
	Concurrency int
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level      string
	Encoding   string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from environment variables (optionally .env)
// and applies defaults. Secrets may also be read from the file named by
// the matching *_FILE variable.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	botToken, err := getSecret("TELEGRAM_BOT_TOKEN")
	if err != nil {
		return nil, err
	}
	webhookSecret, err := getSecret("WEBHOOK_SECRET")
	if err != nil {
		return nil, err
	}
	tokenSecret, err := getSecret("LAUNCH_TOKEN_SECRET")
	if err != nil {
		return nil, err
	}
	geminiKey, err := getSecret("GEMINI_API_KEY")
	if err != nil {
		return nil, err
	}
	rapidKey, err := getSecret("RAPIDAPI_KEY")
	if err != nil {
		return nil, err
	}
	dbPassword, err := getSecret("DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AppName:     getString("APP_NAME", "taskbot"),
		Environment: getString("APP_ENV", "development"),
		Storage:     strings.ToLower(getString("STORAGE_DRIVER", StoragePostgres)),
		HTTP: HTTPConfig{
			Host:         getString("SERVER_HOST", "0.0.0.0"),
			Port:         getString("SERVER_PORT", "8080"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxConn:      getInt("SERVER_MAX_CONN", 0),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "taskbot"),
			User:            getString("DB_USER", "taskbot"),
			Password:        dbPassword,
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 5),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getString("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		Telegram: TelegramConfig{
			BotToken:      botToken,
			APIURL:        getString("TELEGRAM_API_URL", "https://api.telegram.org"),
			WebhookURL:    os.Getenv("WEBHOOK_URL"),
			WebhookSecret: webhookSecret,
			MiniAppURL:    os.Getenv("MINIAPP_URL"),
			Timeout:       getDuration("TELEGRAM_TIMEOUT", 10*time.Second),
			RatePerSecond: getFloat("TELEGRAM_RATE_PER_SECOND", 30),
		},
		Auth: AuthConfig{
			TokenSecret:         tokenSecret,
			LaunchTokenTTL:      getDuration("LAUNCH_TOKEN_TTL", 5*time.Minute),
			SessionTTL:          getDuration("SESSION_TOKEN_TTL", 12*time.Hour),
			AllowUserIDFallback: getBool("AUTH_ALLOW_USER_ID_FALLBACK", false),
		},
		GenAI: GenAIConfig{
			APIKey:  geminiKey,
			Model:   getString("GENAI_MODEL", "gemini-2.0-flash"),
			Timeout: getDuration("GENAI_TIMEOUT", 30*time.Second),
		},
		JobSearch: JobSearchConfig{
			APIKey:  rapidKey,
			Host:    getString("RAPIDAPI_HOST", "linkedin-job-search-api.p.rapidapi.com"),
			Timeout: getDuration("JOBSEARCH_TIMEOUT", 15*time.Second),
		},
		RateLimit: RateLimitConfig{
			Daily:      getInt("RATE_LIMIT_DAILY", 10),
			FailClosed: getBool("RATE_LIMIT_FAIL_CLOSED", false),
		},
		Reminder: ReminderConfig{
			PollInterval: getDuration("REMINDER_POLL_INTERVAL", 5*time.Second),
			BatchSize:    getInt("REMINDER_BATCH_SIZE", 100),
			Lease:        getDuration("REMINDER_LEASE", time.Minute),
			RetryDelay:   getDuration("REMINDER_RETRY_DELAY", time.Minute),
			MaxAttempts:  getInt("REMINDER_MAX_ATTEMPTS", 10),
		},
		Outbox: OutboxConfig{
			Path:        getString("OUTBOX_PATH", "./data/outbox.db"),
			Interval:    getDuration("OUTBOX_INTERVAL", 30*time.Second),
			BatchSize:   getInt("OUTBOX_BATCH_SIZE", 50),
			MaxAttempts: getInt("OUTBOX_MAX_ATTEMPTS", 5),
			Retention:   getDuration("OUTBOX_RETENTION", 24*time.Hour),
		},
		Motivation: MotivationConfig{
			Schedule:    getString("MOTIVATION_SCHEDULE", "0 0 9 * * *"),
			BatchSize:   getInt("MOTIVATION_BATCH_SIZE", 500),
			Concurrency: getInt("MOTIVATION_CONCURRENCY", 8),
		},
		AdminUserID: getInt64("ADMIN_USER_ID", 0),
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:      getString("LOG_LEVEL", "info"),
			Encoding:   getString("LOG_ENCODING", "json"),
			File:       os.Getenv("LOG_FILE"),
			MaxSizeMB:  getInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getInt("LOG_MAX_AGE_DAYS", 14),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
			Path:    getString("MIGRATIONS_PATH", "./assets/migrations"),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg)
	}

	return cfg, nil
}

// IsTest reports whether the process runs in test mode.
func (c *Config) IsTest() bool {
	return c.Environment == "test"
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Telegram.BotToken == "" {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN is required"))
	}
	if c.Auth.AllowUserIDFallback && !c.IsTest() {
		errs = append(errs, errors.New("AUTH_ALLOW_USER_ID_FALLBACK is only allowed with APP_ENV=test"))
	}
	if !c.IsTest() {
		if c.Telegram.WebhookSecret == "" {
			errs = append(errs, errors.New("WEBHOOK_SECRET is required outside APP_ENV=test"))
		}
		switch c.Auth.TokenSecret {
		case "":
			errs = append(errs, errors.New("LAUNCH_TOKEN_SECRET is required outside APP_ENV=test"))
		case c.Telegram.BotToken:
			errs = append(errs, errors.New("LAUNCH_TOKEN_SECRET must differ from TELEGRAM_BOT_TOKEN"))
		}
	}
	if c.Storage != StoragePostgres && c.Storage != StorageMemory {
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage))
	}
	if c.RateLimit.Daily <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_DAILY must be positive"))
	}
	return errors.Join(errs...)
}

func buildPostgresURL(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
}

// getSecret prefers KEY, then the contents of the file named by KEY_FILE.
func getSecret(key string) (string, error) {
	if val := os.Getenv(key); val != "" {
		return val, nil
	}
	path := os.Getenv(key + "_FILE")
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s_FILE: %w", key, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
