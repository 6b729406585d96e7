package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the intelliparse console.
type Config struct {
	Server       ServerConfig
	Intelliparse IntelliparseConfig
	Session      SessionConfig
	Redis        RedisConfig
	Poll         PollConfig
}

type ServerConfig struct {
	Port            int
	Env             string
	AllowedOrigins  []string
	MaxUploadBytes  int64
	RateLimitPerMin int
}

type IntelliparseConfig struct {
	BaseURL string
	Timeout time.Duration
	// WebhookSecret signs job callbacks. Empty disables the webhook route.
	WebhookSecret string
}

type SessionConfig struct {
	Backend string
	// File is empty when the platform default should be used.
	File string
}

type RedisConfig struct {
	URL string
}

type PollConfig struct {
	Interval    time.Duration
	Multiplier  float64
	MaxInterval time.Duration
	Jitter      float64
	MaxAttempts int
	MaxElapsed  time.Duration
	CacheTTL    time.Duration
}

const (
	SessionBackendFile  = "file"
	SessionBackendRedis = "redis"
)

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            envInt("CONSOLE_PORT", 8080),
			Env:             envString("CONSOLE_ENV", "development"),
			AllowedOrigins:  envList("CONSOLE_ALLOWED_ORIGINS"),
			MaxUploadBytes:  int64(envInt("CONSOLE_MAX_UPLOAD_BYTES", 100<<20)),
			RateLimitPerMin: envInt("CONSOLE_RATE_LIMIT_PER_MIN", 30),
		},
		Intelliparse: IntelliparseConfig{
			BaseURL: os.Getenv("INTELLIPARSE_BASE_URL"),
			Timeout: envDuration("INTELLIPARSE_TIMEOUT", 30*time.Second),

			WebhookSecret: os.Getenv("INTELLIPARSE_WEBHOOK_SECRET"),
		},
		Session: SessionConfig{
			Backend: envString("SESSION_BACKEND", SessionBackendFile),
			File:    os.Getenv("SESSION_FILE"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Poll: PollConfig{
			Interval:    envDuration("POLL_INTERVAL", time.Second),
			Multiplier:  envFloat("POLL_MULTIPLIER", 1.5),
			MaxInterval: envDuration("POLL_MAX_INTERVAL", 10*time.Second),
			Jitter:      envFloat("POLL_JITTER", 0),
			MaxAttempts: envInt("POLL_MAX_ATTEMPTS", 30),
			MaxElapsed:  envDuration("POLL_MAX_ELAPSED", 2*time.Minute),
			CacheTTL:    envDuration("JOB_CACHE_TTL", 30*time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Intelliparse.BaseURL == "" {
		return fmt.Errorf("INTELLIPARSE_BASE_URL is required")
	}
	if !strings.HasPrefix(c.Intelliparse.BaseURL, "http://") && !strings.HasPrefix(c.Intelliparse.BaseURL, "https://") {
		return fmt.Errorf("INTELLIPARSE_BASE_URL must start with http:// or https://, got %q", c.Intelliparse.BaseURL)
	}
	if c.Intelliparse.Timeout <= 0 {
		return fmt.Errorf("INTELLIPARSE_TIMEOUT must be positive")
	}

	switch c.Session.Backend {
	case SessionBackendFile:
	case SessionBackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required when SESSION_BACKEND is redis")
		}
	default:
		return fmt.Errorf("SESSION_BACKEND must be one of file, redis; got %q", c.Session.Backend)
	}

	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("CONSOLE_MAX_UPLOAD_BYTES must be positive")
	}

	if c.Poll.Interval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.Poll.Multiplier < 1 {
		return fmt.Errorf("POLL_MULTIPLIER must be at least 1, got %v", c.Poll.Multiplier)
	}
	if c.Poll.Jitter < 0 || c.Poll.Jitter >= 1 {
		return fmt.Errorf("POLL_JITTER must be in [0, 1), got %v", c.Poll.Jitter)
	}
	// Polling must stop eventually.
	if c.Poll.MaxAttempts <= 0 && c.Poll.MaxElapsed <= 0 {
		return fmt.Errorf("one of POLL_MAX_ATTEMPTS or POLL_MAX_ELAPSED must be positive")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
