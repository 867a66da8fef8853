// Package config loads application configuration from config.yaml and
// environment variables, with environment taking precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Broker      BrokerConfig   `mapstructure:"broker"`
	LLM         LLMConfig      `mapstructure:"llm"`
	Pipeline    PipelineConfig `mapstructure:"pipeline"`
	Sentry      SentryConfig   `mapstructure:"sentry"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	DatabaseURL     string `mapstructure:"database_url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime string `mapstructure:"conn_max_idle_time"`
	ApplicationName string `mapstructure:"application_name"`
	ConnectTimeout  int    `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// BrokerConfig points at the trading venue service.
type BrokerConfig struct {
	ServiceURL string        `mapstructure:"service_url"`
	APIKey     string        `mapstructure:"api_key"`
	APISecret  string        `mapstructure:"api_secret"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type LLMConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	ResearchModel string        `mapstructure:"research_model"`
	DecisionModel string        `mapstructure:"decision_model"`
	MaxTokens     int           `mapstructure:"max_tokens"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// PipelineConfig tunes the review pipeline itself.
type PipelineConfig struct {
	ResearchBatchSize      int           `mapstructure:"research_batch_size"`
	MinResearchSuccessRate float64       `mapstructure:"min_research_success_rate"`
	RunTimeout             time.Duration `mapstructure:"run_timeout"`
	UserLockTTL            time.Duration `mapstructure:"user_lock_ttl"`
	Schedule               string        `mapstructure:"schedule"`
	DevSymbols             []string      `mapstructure:"dev_symbols"`
	SystemAccountID        string        `mapstructure:"system_account_id"`
}

type SentryConfig struct {
	DSN              string  `mapstructure:"dsn"`
	TracesSampleRate float64 `mapstructure:"traces_sample_rate"`
}

// Load reads config.yaml from the working directory (if present) and merges
// environment variables prefixed with FOLIO_ (e.g. FOLIO_DATABASE_HOST).
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("FOLIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers every config key with viper. Keys without a real
// default get an empty value: AutomaticEnv only resolves keys viper already
// knows about, so an unregistered key could never be set from the environment
// alone.
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "folio")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.database_url", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "300s")
	v.SetDefault("database.conn_max_idle_time", "60s")
	v.SetDefault("database.application_name", "folio-pipeline")
	v.SetDefault("database.connect_timeout", 10)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("broker.service_url", "http://localhost:3001")
	v.SetDefault("broker.api_key", "")
	v.SetDefault("broker.api_secret", "")
	v.SetDefault("broker.timeout", 30*time.Second)

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.anthropic.com/v1")
	v.SetDefault("llm.research_model", "claude-sonnet-4-20250514")
	v.SetDefault("llm.decision_model", "claude-sonnet-4-20250514")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.timeout", 120*time.Second)

	v.SetDefault("pipeline.research_batch_size", 5)
	v.SetDefault("pipeline.min_research_success_rate", 0.5)
	v.SetDefault("pipeline.run_timeout", 30*time.Minute)
	v.SetDefault("pipeline.user_lock_ttl", 45*time.Minute)
	v.SetDefault("pipeline.schedule", "")
	v.SetDefault("pipeline.dev_symbols", []string{})
	v.SetDefault("pipeline.system_account_id", "portfolio-system")

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.traces_sample_rate", 0.1)
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Pipeline.ResearchBatchSize < 1 {
		return fmt.Errorf("pipeline.research_batch_size must be >= 1, got %d", c.Pipeline.ResearchBatchSize)
	}
	if c.Pipeline.MinResearchSuccessRate < 0 || c.Pipeline.MinResearchSuccessRate > 1 {
		return fmt.Errorf("pipeline.min_research_success_rate must be in [0,1], got %v", c.Pipeline.MinResearchSuccessRate)
	}
	if c.Broker.ServiceURL == "" {
		return fmt.Errorf("broker.service_url is required")
	}
	return nil
}
