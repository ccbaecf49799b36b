package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Queue     QueueConfig     `yaml:"queue"`
	SES       SESConfig       `yaml:"ses"`
	Provider  ProviderConfig  `yaml:"provider"`
	Sentiment SentimentConfig `yaml:"sentiment"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_minutes"`
}

// RedisConfig holds the optional Redis settings. An empty address disables
// the VIP cache, the notification channel, and the scheduler lock.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SchedulerConfig tunes the execution worker
type SchedulerConfig struct {
	TickIntervalSeconds int `yaml:"tick_interval_seconds"`
	BatchSize           int `yaml:"batch_size"`
	ExecTimeoutSeconds  int `yaml:"exec_timeout_seconds"`
	StaleLeaseMinutes   int `yaml:"stale_lease_minutes"`
	MaxPendingAgeHours  int `yaml:"max_pending_age_hours"`
}

// QueueConfig tunes enqueue-side behavior
type QueueConfig struct {
	// MatchAll fires every qualifying policy per event. Off, only the
	// highest-priority match fires. Bulk-digest deployments opt in.
	MatchAll bool `yaml:"match_all"`
}

// SESConfig holds Amazon SES credentials for outbound mail
type SESConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Region      string `yaml:"region"`
	AccessKey   string `yaml:"access_key"`
	SecretKey   string `yaml:"secret_key"`
	FromAddress string `yaml:"from_address"`
}

// ProviderConfig holds the mailbox/calendar provider API settings
type ProviderConfig struct {
	Enabled        bool     `yaml:"enabled"`
	BaseURL        string   `yaml:"base_url"`
	TokenURL       string   `yaml:"token_url"`
	ClientID       string   `yaml:"client_id"`
	ClientSecret   string   `yaml:"client_secret"`
	Scopes         []string `yaml:"scopes"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// SentimentConfig holds the optional emotional-charge scoring service
type SentimentConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// Load reads the YAML config file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 5
	}
	if cfg.Scheduler.TickIntervalSeconds == 0 {
		cfg.Scheduler.TickIntervalSeconds = 5
	}
	if cfg.Scheduler.BatchSize == 0 {
		cfg.Scheduler.BatchSize = 25
	}
	if cfg.Scheduler.ExecTimeoutSeconds == 0 {
		cfg.Scheduler.ExecTimeoutSeconds = 15
	}
	if cfg.Scheduler.StaleLeaseMinutes == 0 {
		cfg.Scheduler.StaleLeaseMinutes = 5
	}
	if cfg.Scheduler.MaxPendingAgeHours == 0 {
		cfg.Scheduler.MaxPendingAgeHours = 24
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-west-2"
	}
	if cfg.Provider.TimeoutSeconds == 0 {
		cfg.Provider.TimeoutSeconds = 10
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.SES.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.SES.Region = v
	}
	if v := os.Getenv("SES_FROM_ADDRESS"); v != "" {
		cfg.SES.FromAddress = v
	}
	if v := os.Getenv("PROVIDER_CLIENT_ID"); v != "" {
		cfg.Provider.ClientID = v
	}
	if v := os.Getenv("PROVIDER_CLIENT_SECRET"); v != "" {
		cfg.Provider.ClientSecret = v
	}
	if v := os.Getenv("SENTIMENT_ENDPOINT"); v != "" {
		cfg.Sentiment.Endpoint = v
		cfg.Sentiment.Enabled = true
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database url required (set database.url or DATABASE_URL)")
	}
	return cfg, nil
}
