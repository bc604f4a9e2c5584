package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Config holds all configuration for the marketplace API server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Redis    RedisConfig
	Sweeper  SweeperConfig
	S3       S3Config
}

type ServerConfig struct {
	Port           int
	Env            string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// RedisConfig is optional; rate limiting is disabled when URL is empty.
type RedisConfig struct {
	URL               string
	RequestsPerMinute int
}

type SweeperConfig struct {
	Schedule    string
	BatchSize   int
	Concurrency int
}

// S3Config is optional; image upload URLs are disabled when Bucket is empty.
type S3Config struct {
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
	Bucket       string
	PresignTTL   time.Duration
}

// Enabled reports whether enough S3 settings are present to presign URLs.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

const devJWTSecret = "supersecretmvp"

// Load reads configuration from environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           envInt("PORT", 8080),
			Env:            envString("APP_ENV", "development"),
			AllowedOrigins: envList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxConns:        envInt("DATABASE_MAX_CONNS", 25),
			MinConns:        envInt("DATABASE_MIN_CONNS", 2),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Auth: AuthConfig{
			JWTSecret: envString("JWT_SECRET", devJWTSecret),
			TokenTTL:  envDuration("JWT_TTL", 24*time.Hour),
		},
		Redis: RedisConfig{
			URL:               os.Getenv("REDIS_URL"),
			RequestsPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 120),
		},
		Sweeper: SweeperConfig{
			Schedule:    envString("SWEEP_SCHEDULE", "@hourly"),
			BatchSize:   envInt("SWEEP_BATCH_SIZE", 100),
			Concurrency: envInt("SWEEP_CONCURRENCY", 4),
		},
		S3: S3Config{
			Region:       envString("S3_REGION", "us-east-1"),
			BaseEndpoint: os.Getenv("S3_BASE_ENDPOINT"),
			AccessKey:    os.Getenv("S3_ACCESS_KEY"),
			SecretKey:    os.Getenv("S3_SECRET_KEY"),
			Bucket:       os.Getenv("S3_BUCKET"),
			PresignTTL:   envDuration("S3_PRESIGN_TTL", 15*time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("DATABASE_MIN_CONNS (%d) must not exceed DATABASE_MAX_CONNS (%d)", c.Database.MinConns, c.Database.MaxConns)
	}

	if c.Server.Env == "production" && c.Auth.JWTSecret == devJWTSecret {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.Auth.TokenTTL)
	}

	if c.Redis.URL != "" && !strings.HasPrefix(c.Redis.URL, "redis://") && !strings.HasPrefix(c.Redis.URL, "rediss://") {
		return fmt.Errorf("REDIS_URL must start with redis:// or rediss://, got %q", c.Redis.URL)
	}

	if _, err := c.Sweeper.ParseSchedule(); err != nil {
		return fmt.Errorf("SWEEP_SCHEDULE %q is invalid: %w", c.Sweeper.Schedule, err)
	}
	if c.Sweeper.BatchSize <= 0 {
		return fmt.Errorf("SWEEP_BATCH_SIZE must be positive, got %d", c.Sweeper.BatchSize)
	}
	if c.Sweeper.Concurrency <= 0 {
		return fmt.Errorf("SWEEP_CONCURRENCY must be positive, got %d", c.Sweeper.Concurrency)
	}

	if c.S3.Enabled() && (c.S3.AccessKey == "" || c.S3.SecretKey == "") {
		return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY are required when S3_BUCKET is set")
	}

	return nil
}

// ParseSchedule parses the sweep cron expression (standard five fields or a
// descriptor such as @hourly or @every 30m).
func (c SweeperConfig) ParseSchedule() (cron.Schedule, error) {
	return cron.ParseStandard(c.Schedule)
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

func envList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
