package main

import (
	"errors"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Environment string `mapstructure:"ENVIRONMENT"`
	Version     string `mapstructure:"VERSION"`
	TLSCertFile string `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile  string `mapstructure:"TLS_KEY_FILE"`

	BlogAPIURL     string        `mapstructure:"BLOG_API_URL"`
	BlogAPITimeout time.Duration `mapstructure:"BLOG_API_TIMEOUT"`

	QueryStaleTime  time.Duration `mapstructure:"QUERY_STALE_TIME"`
	QueryGCTime     time.Duration `mapstructure:"QUERY_GC_TIME"`
	QueryRetry      int           `mapstructure:"QUERY_RETRY"`
	QueryRetryDelay time.Duration `mapstructure:"QUERY_RETRY_DELAY"`

	GeminiAPIKey        string `mapstructure:"GEMINI_API_KEY"`
	GeminiModel         string `mapstructure:"GEMINI_MODEL"`
	GeminiBaseURL       string `mapstructure:"GEMINI_BASE_URL"`
	AIRequestsPerMinute int    `mapstructure:"AI_REQUESTS_PER_MINUTE"`

	MQHost     string `mapstructure:"RABBITMQ_HOST"`
	MQPort     string `mapstructure:"RABBITMQ_PORT"`
	MQUser     string `mapstructure:"RABBITMQ_USER"`
	MQPassword string `mapstructure:"RABBITMQ_PASSWORD"`
}

// BrokerEnabled reports whether events should be published.
func (c *Config) BrokerEnabled() bool {
	return c.MQHost != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "4000")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("VERSION", "1.0.0")
	v.SetDefault("TLS_CERT_FILE", "")
	v.SetDefault("TLS_KEY_FILE", "")

	v.SetDefault("BLOG_API_URL", "http://localhost:3001")
	v.SetDefault("BLOG_API_TIMEOUT", "10s")

	v.SetDefault("QUERY_STALE_TIME", "0s")
	v.SetDefault("QUERY_GC_TIME", "5m")
	v.SetDefault("QUERY_RETRY", 1)
	v.SetDefault("QUERY_RETRY_DELAY", "1s")

	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("GEMINI_MODEL", "gemini-pro")
	v.SetDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com")
	v.SetDefault("AI_REQUESTS_PER_MINUTE", 10)

	v.SetDefault("RABBITMQ_HOST", "")
	v.SetDefault("RABBITMQ_PORT", "5672")
	v.SetDefault("RABBITMQ_USER", "guest")
	v.SetDefault("RABBITMQ_PASSWORD", "guest")
}

// loadConfig reads the .env file at path. Environment variables override the
// file, and a missing file leaves the defaults in place.
func loadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
