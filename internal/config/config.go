// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	RedisURL       string `mapstructure:"REDIS_URL"`

	AdminToken               string `mapstructure:"GUESTBOOK_ADMIN_TOKEN"`
	RateLimitWindowSeconds   int    `mapstructure:"GUESTBOOK_RATE_LIMIT_WINDOW_SECONDS"`
	SubmitBurstLimit         int    `mapstructure:"SUBMIT_BURST_LIMIT"`
	DBQueryTimeoutSeconds    int    `mapstructure:"DB_QUERY_TIMEOUT_SECONDS"`
	DBMaxOpenConns           int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`

	TracingEnabled  bool   `mapstructure:"TRACING_ENABLED"`
	TracingExporter string `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// Derived from the raw flags below.
	AutoApprove      bool `mapstructure:"-"`
	DisableRateLimit bool `mapstructure:"-"`

	// DatabaseURL is the resolved connection string; empty means the
	// in-memory store is used. DatabaseURLKey names the key it came from.
	DatabaseURL    string `mapstructure:"-"`
	DatabaseURLKey string `mapstructure:"-"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env != "" && env != "development" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config.%s.yml: %w", env, err)
			}
		} else {
			log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
		}
	}

	viper.SetDefault("PORT", "8375")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("GUESTBOOK_ADMIN_TOKEN", "")
	viper.SetDefault("GUESTBOOK_AUTO_APPROVE", "true")
	viper.SetDefault("GUESTBOOK_DISABLE_RATE_LIMIT", "false")
	viper.SetDefault("GUESTBOOK_RATE_LIMIT_WINDOW_SECONDS", 30)
	viper.SetDefault("SUBMIT_BURST_LIMIT", 10)
	viper.SetDefault("DB_QUERY_TIMEOUT_SECONDS", 5)
	viper.SetDefault("DB_MAX_OPEN_CONNS", 10)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if strings.TrimSpace(config.AdminToken) == "" {
		config.AdminToken = viper.GetString("ADMIN_TOKEN")
	}
	config.AdminToken = strings.TrimSpace(config.AdminToken)
	config.AutoApprove = ParseFlag(viper.GetString("GUESTBOOK_AUTO_APPROVE"))
	config.DisableRateLimit = ParseFlag(viper.GetString("GUESTBOOK_DISABLE_RATE_LIMIT"))

	res := ResolveDatabaseURL(chainSource{viperSource{}, EnvSource{}})
	if res.Configured() {
		config.DatabaseURL = res.URL
		config.DatabaseURLKey = res.Key
		viper.Set(CanonicalDatabaseURLKey, res.URL)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate ensures that required configuration values are present and sane.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.RateLimitWindowSeconds <= 0 {
		return errors.New("GUESTBOOK_RATE_LIMIT_WINDOW_SECONDS must be positive")
	}
	if c.DBQueryTimeoutSeconds <= 0 {
		return errors.New("DB_QUERY_TIMEOUT_SECONDS must be positive")
	}

	if c.IsProduction() {
		if len(c.AdminToken) < 16 {
			return errors.New("GUESTBOOK_ADMIN_TOKEN must be at least 16 characters in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if c.AdminToken == "" {
		log.Println("WARNING: GUESTBOOK_ADMIN_TOKEN is empty; admin endpoints will reject every request.")
	}

	return nil
}

// IsProduction reports whether the app runs in a production-like environment.
func (c *Config) IsProduction() bool {
	e := strings.ToLower(strings.TrimSpace(c.Env))
	return e == "production" || e == "prod"
}

// RateLimitWindow is the per-fingerprint submission window.
func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

// DBQueryTimeout bounds every persistent-store operation.
func (c *Config) DBQueryTimeout() time.Duration {
	return time.Duration(c.DBQueryTimeoutSeconds) * time.Second
}

// ParseFlag accepts 1, true and yes (any case) as enabled.
func ParseFlag(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

// viperSource exposes viper's merged file and environment view as a Source.
type viperSource struct{}

func (viperSource) Lookup(key string) (string, bool) {
	if !viper.IsSet(key) {
		return "", false
	}
	return viper.GetString(key), true
}

func (viperSource) Keys() []string {
	all := viper.AllKeys()
	keys := make([]string, 0, len(all))
	for _, k := range all {
		keys = append(keys, strings.ToUpper(k))
	}
	return keys
}
