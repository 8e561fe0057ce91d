// Package config loads the notify service configuration from an optional
// config file plus NOTIFY_* environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the notify service.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// AuthConfig holds the identity provider settings for token validation.
type AuthConfig struct {
	URL      string        `mapstructure:"url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// NATSConfig holds the producer-event subscription settings.
type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
	Name    string `mapstructure:"name"`
}

// RedisConfig holds Redis settings for auth-attempt rate limiting.
type RedisConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

// RateLimitConfig bounds authentication attempts per client address.
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Attempts int           `mapstructure:"attempts"`
	Window   time.Duration `mapstructure:"window"`
}

// RelayConfig holds WebSocket relay tunables.
type RelayConfig struct {
	LivenessInterval time.Duration `mapstructure:"liveness_interval"`
	SendBuffer       int           `mapstructure:"send_buffer"`
	MaxMessageBytes  int64         `mapstructure:"max_message_bytes"`
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`
	ServiceToken     string        `mapstructure:"service_token"`
}

// LoggingConfig holds log level and format.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8091)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")

	v.SetDefault("auth.url", "http://authenticate:8080")
	v.SetDefault("auth.timeout", "5s")
	v.SetDefault("auth.cache_ttl", "30s")

	v.SetDefault("nats.url", "nats://nats:4222")
	v.SetDefault("nats.enabled", true)
	v.SetDefault("nats.name", "capycode-notify")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.enabled", false)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.attempts", 10)
	v.SetDefault("ratelimit.window", "1m")

	v.SetDefault("relay.liveness_interval", "30s")
	v.SetDefault("relay.send_buffer", 64)
	v.SetDefault("relay.max_message_bytes", 65536)
	v.SetDefault("relay.allowed_origins", []string{})
	v.SetDefault("relay.service_token", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override file config
	// (e.g. NOTIFY_SERVER_PORT -> server.port)
	v.SetEnvPrefix("NOTIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
