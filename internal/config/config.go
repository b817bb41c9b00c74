package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/technirvor/storefront/internal/adapter/mail"
	"github.com/technirvor/storefront/internal/logging"
)

// Config holds all storefront server settings.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	GRPC      GRPCConfig      `yaml:"grpc"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Notifier  NotifierConfig  `yaml:"notifier"`
	Chat      ChatConfig      `yaml:"chat"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Mail      mail.Config     `yaml:"mail"`
	Logger    logging.Config  `yaml:"logger"`
}

type HTTPConfig struct {
	Addr         string `yaml:"addr"`
	ReadTimeout  string `yaml:"read_timeout"`
	WriteTimeout string `yaml:"write_timeout"`
	BodyLimit    string `yaml:"body_limit"`
}

type GRPCConfig struct {
	Addr string `yaml:"addr"`
}

type MySQLConfig struct {
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// AuthConfig covers API keys for order endpoints and admin JWTs.
type AuthConfig struct {
	APIKeys       []string `yaml:"api_keys"`
	JWTSecret     string   `yaml:"jwt_secret"`
	TokenTTL      string   `yaml:"token_ttl"`
	MaxFailures   int      `yaml:"max_failures"`
	LockoutWindow string   `yaml:"lockout_window"`
}

type RateLimitConfig struct {
	Requests int    `yaml:"requests"`
	Window   string `yaml:"window"`
}

type NotifierConfig struct {
	Workers     int      `yaml:"workers"`
	QueueSize   int      `yaml:"queue_size"`
	AdminEmails []string `yaml:"admin_emails"`
}

type ChatConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	Retries     int     `yaml:"retries"`
	Backoff     string  `yaml:"backoff"`
}

type JobsConfig struct {
	ExpireFlashSales string `yaml:"expire_flash_sales"`
}

// DefaultConfig returns settings suitable for local development.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  "10s",
			WriteTimeout: "30s",
			BodyLimit:    "1M",
		},
		GRPC: GRPCConfig{Addr: ":50051"},
		MySQL: MySQLConfig{
			DSN:             "root:root@tcp(localhost:3306)/technirvor?parseTime=true&loc=UTC&clientFoundRows=true",
			MaxOpenConns:    50,
			MaxIdleConns:    25,
			ConnMaxLifetime: "5m",
		},
		Redis: RedisConfig{Addr: "localhost:6379", PoolSize: 100},
		Auth: AuthConfig{
			TokenTTL:      "24h",
			MaxFailures:   5,
			LockoutWindow: "15m",
		},
		RateLimit: RateLimitConfig{Requests: 10, Window: "1m"},
		Notifier:  NotifierConfig{Workers: 2, QueueSize: 1000},
		Chat: ChatConfig{
			Model:       "gemini-2.0-flash",
			Temperature: 0.4,
			Retries:     2,
			Backoff:     "1s",
		},
		Jobs:   JobsConfig{ExpireFlashSales: "@every 1m"},
		Mail:   mail.Config{Port: 587},
		Logger: logging.Config{Mode: "development", Level: "info", Filename: "logs/storefront.log"},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TN_MYSQL_DSN"); v != "" {
		c.MySQL.DSN = v
	}
	if v := os.Getenv("TN_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Chat.APIKey = v
	}
	if v := os.Getenv("TN_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("TN_API_KEYS"); v != "" {
		c.Auth.APIKeys = splitList(v)
	}
	if v := os.Getenv("TN_HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("TN_GRPC_ADDR"); v != "" {
		c.GRPC.Addr = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports the first setting the server cannot start with.
func (c *Config) Validate() error {
	if c.MySQL.DSN == "" {
		return fmt.Errorf("mysql dsn not configured (set TN_MYSQL_DSN)")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis addr not configured (set TN_REDIS_ADDR)")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("jwt secret must be at least 16 characters (set TN_JWT_SECRET)")
	}
	if len(c.Auth.APIKeys) == 0 {
		return fmt.Errorf("no api keys configured (set TN_API_KEYS)")
	}
	if c.RateLimit.Requests <= 0 {
		return fmt.Errorf("rate_limit.requests must be positive")
	}
	for name, v := range map[string]string{
		"http.read_timeout":       c.HTTP.ReadTimeout,
		"http.write_timeout":      c.HTTP.WriteTimeout,
		"mysql.conn_max_lifetime": c.MySQL.ConnMaxLifetime,
		"auth.token_ttl":          c.Auth.TokenTTL,
		"auth.lockout_window":     c.Auth.LockoutWindow,
		"rate_limit.window":       c.RateLimit.Window,
		"chat.backoff":            c.Chat.Backoff,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid duration for %s: %q", name, v)
		}
	}
	if c.Logger.Mode != "" && c.Logger.Mode != "production" && c.Logger.Mode != "development" {
		return fmt.Errorf("invalid logger mode: %s (valid: production, development)", c.Logger.Mode)
	}
	return nil
}

// ChatEnabled reports whether a Gemini key is present.
func (c *Config) ChatEnabled() bool {
	return c.Chat.APIKey != ""
}

func duration(v string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func (c *Config) ReadTimeout() time.Duration     { return duration(c.HTTP.ReadTimeout, 10*time.Second) }
func (c *Config) WriteTimeout() time.Duration    { return duration(c.HTTP.WriteTimeout, 30*time.Second) }
func (c *Config) ConnMaxLifetime() time.Duration { return duration(c.MySQL.ConnMaxLifetime, 5*time.Minute) }
func (c *Config) TokenTTL() time.Duration        { return duration(c.Auth.TokenTTL, 24*time.Hour) }
func (c *Config) LockoutWindow() time.Duration   { return duration(c.Auth.LockoutWindow, 15*time.Minute) }
func (c *Config) RateWindow() time.Duration      { return duration(c.RateLimit.Window, time.Minute) }
func (c *Config) ChatBackoff() time.Duration     { return duration(c.Chat.Backoff, time.Second) }
