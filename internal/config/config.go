package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	JWT       JWTConfig       `yaml:"jwt"`
	Log       LogConfig       `yaml:"log"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Realtime  RealtimeConfig  `yaml:"realtime"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host                string  `yaml:"host"`
	Port                int     `yaml:"port"`
	ReadTimeoutSeconds  int     `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int     `yaml:"write_timeout_seconds"`
	RateLimitRPS        float64 `yaml:"rate_limit_rps"` // 0 disables limiting
	RateLimitBurst      int     `yaml:"rate_limit_burst"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "memory", "postgres" or "pgx"
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// RedisConfig enables the cross-instance realtime relay when URL is set
type RedisConfig struct {
	URL     string `yaml:"url"`
	Channel string `yaml:"channel"`
}

// SMTPConfig contains email service settings
type SMTPConfig struct {
	Provider       string `yaml:"provider"` // "none", "smtp" or "sendgrid"
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	From           string `yaml:"from"`
	SendGridAPIKey string `yaml:"sendgrid_api_key"`
}

// JWTConfig contains settings for validating externally issued tokens
type JWTConfig struct {
	Secret            string `yaml:"secret"`
	Issuer            string `yaml:"issuer"`
	AccessTokenExpiry int    `yaml:"access_token_expiry_minutes"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// SchedulerConfig contains reminder and cron schedule settings
type SchedulerConfig struct {
	ReminderLeadMinutes           int    `yaml:"reminder_lead_minutes"`
	PurgeSettledJobs              string `yaml:"purge_settled_jobs"`
	AuditAssets                   string `yaml:"audit_assets"`
	SweepReminders                string `yaml:"sweep_reminders"`
	PurgeReadNotifications        string `yaml:"purge_read_notifications"`
	SettledJobRetentionDays       int    `yaml:"settled_job_retention_days"`
	ReadNotificationRetentionDays int    `yaml:"read_notification_retention_days"`
}

// RealtimeConfig contains websocket channel settings
type RealtimeConfig struct {
	SendBuffer          int `yaml:"send_buffer"`
	WriteTimeoutSeconds int `yaml:"write_timeout_seconds"`
	PingIntervalSeconds int `yaml:"ping_interval_seconds"`
}

// Load reads configuration from a YAML file. A .env file next to the
// working directory is applied to the environment first when present.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a configuration from YAML bytes, applying environment
// overrides and defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_DRIVER"); val != "" {
		c.Database.Driver = val
	}
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// Redis
	if val := os.Getenv("REDIS_URL"); val != "" {
		c.Redis.URL = val
	}

	// SMTP
	if val := os.Getenv("SMTP_PROVIDER"); val != "" {
		c.SMTP.Provider = val
	}
	if val := os.Getenv("SMTP_HOST"); val != "" {
		c.SMTP.Host = val
	}
	if val := os.Getenv("SMTP_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.SMTP.Port)
	}
	if val := os.Getenv("SMTP_USER"); val != "" {
		c.SMTP.User = val
	}
	if val := os.Getenv("SMTP_PASSWORD"); val != "" {
		c.SMTP.Password = val
	}
	if val := os.Getenv("SMTP_FROM"); val != "" {
		c.SMTP.From = val
	}
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.SMTP.SendGridAPIKey = val
	}

	// JWT
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.JWT.Secret = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid and fills defaults
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeoutSeconds == 0 {
		c.Server.ReadTimeoutSeconds = 15
	}
	if c.Server.WriteTimeoutSeconds == 0 {
		c.Server.WriteTimeoutSeconds = 15
	}
	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("invalid rate limit: %v", c.Server.RateLimitRPS)
	}
	if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst <= 0 {
		c.Server.RateLimitBurst = int(c.Server.RateLimitRPS) * 2
	}

	// Database validation
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	switch c.Database.Driver {
	case "memory":
	case "postgres", "pgx":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Redis.Channel == "" {
		c.Redis.Channel = "zephyrm:notifications"
	}

	// SMTP validation
	if c.SMTP.Provider == "" {
		c.SMTP.Provider = "none"
	}
	switch c.SMTP.Provider {
	case "none":
	case "smtp":
		if c.SMTP.Host == "" {
			return fmt.Errorf("SMTP host is required")
		}
		if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
			return fmt.Errorf("invalid SMTP port: %d", c.SMTP.Port)
		}
	case "sendgrid":
		if c.SMTP.SendGridAPIKey == "" {
			return fmt.Errorf("sendgrid api key is required")
		}
	default:
		return fmt.Errorf("unsupported mail provider: %s", c.SMTP.Provider)
	}

	// JWT validation
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}
	if c.JWT.AccessTokenExpiry == 0 {
		c.JWT.AccessTokenExpiry = 60
	}

	// Scheduler defaults
	if c.Scheduler.ReminderLeadMinutes == 0 {
		c.Scheduler.ReminderLeadMinutes = 30
	}
	if c.Scheduler.ReminderLeadMinutes < 0 {
		return fmt.Errorf("invalid reminder lead: %d", c.Scheduler.ReminderLeadMinutes)
	}
	if c.Scheduler.PurgeSettledJobs == "" {
		c.Scheduler.PurgeSettledJobs = "0 0 2 * * *" // 2 AM UTC
	}
	if c.Scheduler.AuditAssets == "" {
		c.Scheduler.AuditAssets = "0 0 3 * * *" // 3 AM UTC
	}
	if c.Scheduler.SweepReminders == "" {
		c.Scheduler.SweepReminders = "0 */5 * * * *"
	}
	if c.Scheduler.PurgeReadNotifications == "" {
		c.Scheduler.PurgeReadNotifications = "0 0 4 * * 0" // Sunday 4 AM UTC
	}
	if c.Scheduler.SettledJobRetentionDays == 0 {
		c.Scheduler.SettledJobRetentionDays = 30
	}
	if c.Scheduler.ReadNotificationRetentionDays == 0 {
		c.Scheduler.ReadNotificationRetentionDays = 90
	}

	// Realtime defaults
	if c.Realtime.SendBuffer == 0 {
		c.Realtime.SendBuffer = 64
	}
	if c.Realtime.WriteTimeoutSeconds == 0 {
		c.Realtime.WriteTimeoutSeconds = 10
	}
	if c.Realtime.PingIntervalSeconds == 0 {
		c.Realtime.PingIntervalSeconds = 30
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP listen address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) ReminderLead() time.Duration {
	return time.Duration(c.Scheduler.ReminderLeadMinutes) * time.Minute
}

func (c *Config) SettledJobRetention() time.Duration {
	return time.Duration(c.Scheduler.SettledJobRetentionDays) * 24 * time.Hour
}

func (c *Config) ReadNotificationRetention() time.Duration {
	return time.Duration(c.Scheduler.ReadNotificationRetentionDays) * 24 * time.Hour
}
