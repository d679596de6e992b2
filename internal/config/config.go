// Copyright 2025 James Ross
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
	EnvTest        Environment = "test"
)

type Database struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type ObjectStore struct {
	Endpoint  string `mapstructure:"endpoint"`
	KeyID     string `mapstructure:"key_id"`
	Secret    string `mapstructure:"secret"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
	PathStyle bool   `mapstructure:"path_style"`
}

type Worker struct {
	Concurrency      int           `mapstructure:"concurrency"`
	RequestDelayMS   time.Duration `mapstructure:"request_delay_ms"`
	RetryAttempts    int           `mapstructure:"retry_attempts"`
	LockTTL          time.Duration `mapstructure:"lock_ttl_ms"`
	PollInterval     time.Duration `mapstructure:"poll_interval_ms"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout_ms"`
	ImageConcurrency int           `mapstructure:"image_concurrency"`
}

type Cleanup struct {
	Interval time.Duration `mapstructure:"cleanup_interval_ms"`
	TTL      time.Duration `mapstructure:"cleanup_ttl_ms"`
}

type Site struct {
	BaseURL       string        `mapstructure:"base_site_url"`
	RateLimitMS   time.Duration `mapstructure:"site_rate_limit_ms"`
	UserAgent     string        `mapstructure:"user_agent"`
	CrawlDelay    time.Duration `mapstructure:"crawl_delay"`
	BotCrawlDelay time.Duration `mapstructure:"bot_crawl_delay"`
}

type CircuitBreaker struct {
	FailureThreshold float64       `mapstructure:"failure_threshold"`
	Window           time.Duration `mapstructure:"window"`
	CooldownPeriod   time.Duration `mapstructure:"cooldown_period"`
	MinSamples       int           `mapstructure:"min_samples"`
}

type Observability struct {
	Port       int    `mapstructure:"port"`
	LogLevel   string `mapstructure:"log_level"`
	LogFile    string `mapstructure:"log_file"`
	LogMaxSize int    `mapstructure:"log_max_size_mb"`
}

type Alerting struct {
	WebhookURL       string        `mapstructure:"alert_webhook_url"`
	Secret           string        `mapstructure:"alert_webhook_secret"`
	RateLimitPerMin  int           `mapstructure:"alert_rate_limit_per_min"`
	Timeout          time.Duration `mapstructure:"alert_timeout"`
	MemThresholdMB   int           `mapstructure:"alert_memory_threshold_mb"`
	MemCheckInterval time.Duration `mapstructure:"alert_memory_check_interval"`
}

type Config struct {
	Port           int            `mapstructure:"port"`
	Environment    Environment    `mapstructure:"environment"`
	Database       Database       `mapstructure:"database"`
	ObjectStore    ObjectStore    `mapstructure:"object_store"`
	Worker         Worker         `mapstructure:"worker"`
	Cleanup        Cleanup        `mapstructure:"cleanup"`
	Site           Site           `mapstructure:"site"`
	CircuitBreaker CircuitBreaker `mapstructure:"circuit_breaker"`
	Observability  Observability  `mapstructure:"observability"`
	Alerting       Alerting       `mapstructure:"alerting"`
}

func defaultConfig() *Config {
	return &Config{
		Port:        8080,
		Environment: EnvDevelopment,
		Database: Database{
			URL:             "postgres://localhost:5432/catalog?sslmode=disable",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		ObjectStore: ObjectStore{
			Endpoint:  "",
			Bucket:    "catalog-images",
			Region:    "us-east-1",
			PublicURL: "https://catalog-images.s3.amazonaws.com",
			PathStyle: false,
		},
		Worker: Worker{
			Concurrency:      4,
			RequestDelayMS:   250 * time.Millisecond,
			RetryAttempts:    3,
			LockTTL:          10 * time.Minute,
			PollInterval:     1 * time.Second,
			ShutdownTimeout:  30 * time.Second,
			ImageConcurrency: 3,
		},
		Cleanup: Cleanup{
			Interval: 1 * time.Hour,
			TTL:      7 * 24 * time.Hour,
		},
		Site: Site{
			RateLimitMS:   2 * time.Second,
			UserAgent:     "catalog-scrape-core/1.0 (+https://example.invalid/bot)",
			CrawlDelay:    2 * time.Second,
			BotCrawlDelay: 10 * time.Second,
		},
		CircuitBreaker: CircuitBreaker{
			FailureThreshold: 0.5,
			Window:           1 * time.Minute,
			CooldownPeriod:   30 * time.Second,
			MinSamples:       10,
		},
		Observability: Observability{
			Port:       9090,
			LogLevel:   "info",
			LogFile:    "",
			LogMaxSize: 100,
		},
		Alerting: Alerting{
			RateLimitPerMin:  10,
			Timeout:          5 * time.Second,
			MemThresholdMB:   1536,
			MemCheckInterval: 30 * time.Second,
		},
	}
}

// Load reads configuration from a YAML file plus environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := defaultConfig()
	v.SetDefault("port", def.Port)
	v.SetDefault("environment", def.Environment)

	v.SetDefault("database.url", def.Database.URL)
	v.SetDefault("database.max_open_conns", def.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", def.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", def.Database.ConnMaxLifetime)

	v.SetDefault("object_store.endpoint", def.ObjectStore.Endpoint)
	v.SetDefault("object_store.key_id", def.ObjectStore.KeyID)
	v.SetDefault("object_store.secret", def.ObjectStore.Secret)
	v.SetDefault("object_store.bucket", def.ObjectStore.Bucket)
	v.SetDefault("object_store.region", def.ObjectStore.Region)
	v.SetDefault("object_store.public_url", def.ObjectStore.PublicURL)
	v.SetDefault("object_store.path_style", def.ObjectStore.PathStyle)

	v.SetDefault("worker.concurrency", def.Worker.Concurrency)
	v.SetDefault("worker.request_delay_ms", def.Worker.RequestDelayMS)
	v.SetDefault("worker.retry_attempts", def.Worker.RetryAttempts)
	v.SetDefault("worker.lock_ttl_ms", def.Worker.LockTTL)
	v.SetDefault("worker.poll_interval_ms", def.Worker.PollInterval)
	v.SetDefault("worker.shutdown_timeout_ms", def.Worker.ShutdownTimeout)
	v.SetDefault("worker.image_concurrency", def.Worker.ImageConcurrency)

	v.SetDefault("cleanup.cleanup_interval_ms", def.Cleanup.Interval)
	v.SetDefault("cleanup.cleanup_ttl_ms", def.Cleanup.TTL)

	v.SetDefault("site.base_site_url", def.Site.BaseURL)
	v.SetDefault("site.site_rate_limit_ms", def.Site.RateLimitMS)
	v.SetDefault("site.user_agent", def.Site.UserAgent)
	v.SetDefault("site.crawl_delay", def.Site.CrawlDelay)
	v.SetDefault("site.bot_crawl_delay", def.Site.BotCrawlDelay)

	v.SetDefault("circuit_breaker.failure_threshold", def.CircuitBreaker.FailureThreshold)
	v.SetDefault("circuit_breaker.window", def.CircuitBreaker.Window)
	v.SetDefault("circuit_breaker.cooldown_period", def.CircuitBreaker.CooldownPeriod)
	v.SetDefault("circuit_breaker.min_samples", def.CircuitBreaker.MinSamples)

	v.SetDefault("observability.port", def.Observability.Port)
	v.SetDefault("observability.log_level", def.Observability.LogLevel)
	v.SetDefault("observability.log_file", def.Observability.LogFile)
	v.SetDefault("observability.log_max_size_mb", def.Observability.LogMaxSize)

	v.SetDefault("alerting.alert_webhook_url", def.Alerting.WebhookURL)
	v.SetDefault("alerting.alert_webhook_secret", def.Alerting.Secret)
	v.SetDefault("alerting.alert_rate_limit_per_min", def.Alerting.RateLimitPerMin)
	v.SetDefault("alerting.alert_timeout", def.Alerting.Timeout)
	v.SetDefault("alerting.alert_memory_threshold_mb", def.Alerting.MemThresholdMB)
	v.SetDefault("alerting.alert_memory_check_interval", def.Alerting.MemCheckInterval)

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks config constraints and returns an error on invalid settings.
// A failure here is a configuration error: the process must abort startup.
func Validate(cfg *Config) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be 1..65535")
	}
	switch cfg.Environment {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return fmt.Errorf("environment must be one of development|production|test, got %q", cfg.Environment)
	}
	if strings.TrimSpace(cfg.Database.URL) == "" {
		return fmt.Errorf("database.url is required")
	}
	if strings.TrimSpace(cfg.ObjectStore.Bucket) == "" {
		return fmt.Errorf("object_store.bucket is required")
	}
	if strings.TrimSpace(cfg.ObjectStore.PublicURL) == "" {
		return fmt.Errorf("object_store.public_url is required")
	}
	if cfg.Worker.Concurrency < 1 {
		return fmt.Errorf("worker.concurrency must be >= 1")
	}
	if cfg.Worker.LockTTL < 5*time.Second {
		return fmt.Errorf("worker.lock_ttl_ms must be >= 5s")
	}
	if cfg.Worker.RetryAttempts < 1 {
		return fmt.Errorf("worker.retry_attempts must be >= 1")
	}
	if cfg.Worker.ImageConcurrency < 1 {
		return fmt.Errorf("worker.image_concurrency must be >= 1")
	}
	if cfg.Cleanup.TTL <= 0 {
		return fmt.Errorf("cleanup.cleanup_ttl_ms must be > 0")
	}
	if cfg.Observability.Port <= 0 || cfg.Observability.Port > 65535 {
		return fmt.Errorf("observability.port must be 1..65535")
	}
	if cfg.Alerting.MemThresholdMB < 1 {
		return fmt.Errorf("alerting.alert_memory_threshold_mb must be >= 1")
	}
	return nil
}
