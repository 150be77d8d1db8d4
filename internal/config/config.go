package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Alerts     AlertsConfig     `mapstructure:"alerts"`
	Reputation ReputationConfig `mapstructure:"reputation"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Summary    SummaryConfig    `mapstructure:"summary"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	APIKey       string        `mapstructure:"api_key"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type AlertsConfig struct {
	RetentionTTL    time.Duration `mapstructure:"retention_ttl"`
	NotifyThreshold int           `mapstructure:"notify_threshold"`
}

type ReputationConfig struct {
	AbuseURL            string        `mapstructure:"abuse_url"`
	AbuseAPIKey         string        `mapstructure:"abuse_api_key"`
	IOCURL              string        `mapstructure:"ioc_url"`
	IOCAPIKey           string        `mapstructure:"ioc_api_key"`
	ConfidenceThreshold int           `mapstructure:"confidence_threshold"`
	PreferIOC           bool          `mapstructure:"prefer_ioc"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRetries          int           `mapstructure:"max_retries"`
}

type NotifyConfig struct {
	WebhookURL   string        `mapstructure:"webhook_url"`
	SlackWebhook string        `mapstructure:"slack_webhook"`
	NATSURL      string        `mapstructure:"nats_url"`
	NATSSubject  string        `mapstructure:"nats_subject"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type SummaryConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Window   time.Duration `mapstructure:"window"`
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8070)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("alerts.retention_ttl", "3600s")
	v.SetDefault("alerts.notify_threshold", 5)
	v.SetDefault("reputation.abuse_url", "https://api.abuseipdb.com/api/v2")
	v.SetDefault("reputation.ioc_url", "https://threatfox-api.abuse.ch/api/v1")
	v.SetDefault("reputation.confidence_threshold", 50)
	v.SetDefault("reputation.prefer_ioc", true)
	v.SetDefault("reputation.timeout", "5s")
	v.SetDefault("reputation.max_retries", 3)
	v.SetDefault("notify.nats_subject", "watchdesk.alerts")
	v.SetDefault("notify.timeout", "10s")
	v.SetDefault("summary.interval", "1h")
	v.SetDefault("summary.window", "1h")
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 600)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/watchdesk")
	}

	// Environment variables override
	v.SetEnvPrefix("WATCHDESK")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
