// Package config handles application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Rate      RateLimitConfig
	Forms     FormsConfig
	Simulator SimulatorConfig
	Notify    NotifyConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Env      string
	LogLevel string
}

// IsDevelopment returns true if the app is running in development mode.
func (a AppConfig) IsDevelopment() bool {
	return a.Env == "development" || a.Env == "dev"
}

// IsProduction returns true if the app is running in production mode.
func (a AppConfig) IsProduction() bool {
	return a.Env == "production" || a.Env == "prod"
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigin   string
}

// Address returns the server address in host:port format.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

// RateLimitConfig holds the coarse per-IP guard applied to the whole API.
type RateLimitConfig struct {
	Enabled    bool
	RPS        float64
	Burst      int
	TrustProxy bool
	IdleTTL    time.Duration
}

// FormLimit is the sliding-window budget of one form action.
type FormLimit struct {
	Key         string
	MaxAttempts int
	Window      time.Duration
}

// FormsConfig holds per-form throttling.
type FormsConfig struct {
	Newsletter     FormLimit
	Contact        FormLimit
	JobApplication FormLimit
	FeatureRequest FormLimit
	// RecordTTL bounds how long an idle attempt record stays in the store.
	RecordTTL time.Duration
}

// SimulatorConfig holds build simulator configuration.
type SimulatorConfig struct {
	BaseDomain    string
	TotalDuration time.Duration
	TickInterval  time.Duration
	Retention     time.Duration
	MaxRuns       int
}

// NotifyConfig holds notification relay configuration.
type NotifyConfig struct {
	TelegramToken  string
	TelegramChatID string
	WebhookURL     string
	Timeout        time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	// App config
	cfg.App.Env = getEnvOrDefault("APP_ENV", "development")
	cfg.App.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Server config
	cfg.Server.Host = getEnvOrDefault("SERVER_HOST", "0.0.0.0")

	port, err := getEnvAsInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}
	cfg.Server.Port = port

	readTimeout, err := getEnvAsDuration("SERVER_READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_READ_TIMEOUT: %w", err)
	}
	cfg.Server.ReadTimeout = readTimeout

	// Build event streams stay open for the whole simulated build.
	writeTimeout, err := getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT: %w", err)
	}
	cfg.Server.WriteTimeout = writeTimeout

	shutdownTimeout, err := getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT: %w", err)
	}
	cfg.Server.ShutdownTimeout = shutdownTimeout
	cfg.Server.AllowedOrigin = getEnvOrDefault("SERVER_ALLOWED_ORIGIN", "*")

	// Database config
	cfg.Database.Host = getEnvOrDefault("DB_HOST", "localhost")
	dbPort, err := getEnvAsInt("DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	cfg.Database.Port = dbPort
	cfg.Database.User = getEnvOrDefault("DB_USER", "site")
	cfg.Database.Password = getEnvOrDefault("DB_PASSWORD", "")
	cfg.Database.DBName = getEnvOrDefault("DB_NAME", "site")
	cfg.Database.SSLMode = getEnvOrDefault("DB_SSLMODE", "disable")

	maxOpenConns, err := getEnvAsInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}
	cfg.Database.MaxOpenConns = maxOpenConns

	maxIdleConns, err := getEnvAsInt("DB_MAX_IDLE_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_IDLE_CONNS: %w", err)
	}
	cfg.Database.MaxIdleConns = maxIdleConns

	connMaxLifetime, err := getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %w", err)
	}
	cfg.Database.ConnMaxLifetime = connMaxLifetime

	// Redis config
	cfg.Redis.Host = getEnvOrDefault("REDIS_HOST", "")
	redisPort, err := getEnvAsInt("REDIS_PORT", 6379)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}
	cfg.Redis.Port = redisPort
	cfg.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", "")
	redisDB, err := getEnvAsInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.Redis.DB = redisDB
	redisPoolSize, err := getEnvAsInt("REDIS_POOL_SIZE", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_POOL_SIZE: %w", err)
	}
	cfg.Redis.PoolSize = redisPoolSize

	// Per-IP guard
	if cfg.Rate.Enabled, err = getEnvAsBool("RATE_LIMIT_ENABLED", true); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_ENABLED: %w", err)
	}
	if cfg.Rate.RPS, err = getEnvAsFloat("RATE_LIMIT_RPS", 5); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}
	if cfg.Rate.Burst, err = getEnvAsInt("RATE_LIMIT_BURST", 20); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}
	if cfg.Rate.TrustProxy, err = getEnvAsBool("RATE_LIMIT_TRUST_PROXY", false); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_TRUST_PROXY: %w", err)
	}
	if cfg.Rate.IdleTTL, err = getEnvAsDuration("RATE_LIMIT_IDLE_TTL", 15*time.Minute); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_IDLE_TTL: %w", err)
	}

	// Form limits
	if cfg.Forms.Newsletter, err = loadFormLimit("NEWSLETTER", "newsletter", 3, time.Minute); err != nil {
		return nil, err
	}
	if cfg.Forms.Contact, err = loadFormLimit("CONTACT", "contact_form", 3, time.Minute); err != nil {
		return nil, err
	}
	if cfg.Forms.JobApplication, err = loadFormLimit("JOB_APPLICATION", "job_application", 2, 2*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Forms.FeatureRequest, err = loadFormLimit("FEATURE_REQUEST", "feature_request", 5, time.Minute); err != nil {
		return nil, err
	}
	if cfg.Forms.RecordTTL, err = getEnvAsDuration("FORMS_RECORD_TTL", 24*time.Hour); err != nil {
		return nil, fmt.Errorf("invalid FORMS_RECORD_TTL: %w", err)
	}

	// Simulator config
	cfg.Simulator.BaseDomain = getEnvOrDefault("SIMULATOR_BASE_DOMAIN", "withaibuild.com")
	if cfg.Simulator.TotalDuration, err = getEnvAsDuration("SIMULATOR_TOTAL_DURATION", 18*time.Second); err != nil {
		return nil, fmt.Errorf("invalid SIMULATOR_TOTAL_DURATION: %w", err)
	}
	if cfg.Simulator.TickInterval, err = getEnvAsDuration("SIMULATOR_TICK_INTERVAL", 100*time.Millisecond); err != nil {
		return nil, fmt.Errorf("invalid SIMULATOR_TICK_INTERVAL: %w", err)
	}
	if cfg.Simulator.Retention, err = getEnvAsDuration("SIMULATOR_RETENTION", 10*time.Minute); err != nil {
		return nil, fmt.Errorf("invalid SIMULATOR_RETENTION: %w", err)
	}
	if cfg.Simulator.MaxRuns, err = getEnvAsInt("SIMULATOR_MAX_RUNS", 1000); err != nil {
		return nil, fmt.Errorf("invalid SIMULATOR_MAX_RUNS: %w", err)
	}

	// Notify config
	cfg.Notify.TelegramToken = getEnvOrDefault("NOTIFY_TELEGRAM_TOKEN", "")
	cfg.Notify.TelegramChatID = getEnvOrDefault("NOTIFY_TELEGRAM_CHAT_ID", "")
	cfg.Notify.WebhookURL = getEnvOrDefault("NOTIFY_WEBHOOK_URL", "")
	if cfg.Notify.Timeout, err = getEnvAsDuration("NOTIFY_TIMEOUT", 5*time.Second); err != nil {
		return nil, fmt.Errorf("invalid NOTIFY_TIMEOUT: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var longest FormLimit
	for _, fl := range []FormLimit{c.Forms.Newsletter, c.Forms.Contact, c.Forms.JobApplication, c.Forms.FeatureRequest} {
		if fl.MaxAttempts <= 0 {
			return fmt.Errorf("form limit %s: max attempts must be positive", fl.Key)
		}
		if fl.Window <= 0 {
			return fmt.Errorf("form limit %s: window must be positive", fl.Key)
		}
		if fl.Window > longest.Window {
			longest = fl
		}
	}
	// A record must outlive every window it is counted in. Zero keeps records forever.
	if c.Forms.RecordTTL < 0 || (c.Forms.RecordTTL > 0 && c.Forms.RecordTTL < longest.Window) {
		return fmt.Errorf("forms: record ttl %s is shorter than the %s window %s",
			c.Forms.RecordTTL, longest.Key, longest.Window)
	}
	if c.Simulator.TickInterval <= 0 || c.Simulator.TotalDuration < c.Simulator.TickInterval {
		return fmt.Errorf("simulator: tick interval must be positive and not exceed total duration")
	}
	if c.Rate.Enabled && (c.Rate.RPS <= 0 || c.Rate.Burst <= 0) {
		return fmt.Errorf("rate limit: rps and burst must be positive")
	}
	return nil
}

// DatabaseEnabled returns true if database configuration is provided.
func (c *Config) DatabaseEnabled() bool {
	return c.Database.Host != "" && c.Database.Password != ""
}

// RedisEnabled returns true if Redis configuration is provided.
func (c *Config) RedisEnabled() bool {
	return c.Redis.Host != ""
}

// TelegramEnabled returns true if the Telegram relay is configured.
func (c *Config) TelegramEnabled() bool {
	return c.Notify.TelegramToken != "" && c.Notify.TelegramChatID != ""
}

// loadFormLimit reads <PREFIX>_MAX_ATTEMPTS and <PREFIX>_WINDOW.
func loadFormLimit(prefix, key string, attempts int, window time.Duration) (FormLimit, error) {
	fl := FormLimit{Key: key}

	n, err := getEnvAsInt(prefix+"_MAX_ATTEMPTS", attempts)
	if err != nil {
		return fl, fmt.Errorf("invalid %s_MAX_ATTEMPTS: %w", prefix, err)
	}
	fl.MaxAttempts = n

	w, err := getEnvAsDuration(prefix+"_WINDOW", window)
	if err != nil {
		return fl, fmt.Errorf("invalid %s_WINDOW: %w", prefix, err)
	}
	fl.Window = w

	return fl, nil
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt returns the environment variable as an integer.
func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, err
	}
	return value, nil
}

// getEnvAsFloat returns the environment variable as a float.
func getEnvAsFloat(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	return strconv.ParseFloat(valueStr, 64)
}

// getEnvAsBool returns the environment variable as a boolean.
func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue, nil
	}
	return strconv.ParseBool(valueStr)
}

// getEnvAsDuration returns the environment variable as a duration.
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, err
	}
	return value, nil
}
