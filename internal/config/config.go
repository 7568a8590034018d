package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/env"
)

const envPrefix = "GATEWAY_"

type Config struct {
	Primary  Primary        `koanf:"primary"`
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Paymill  PaymillConfig  `koanf:"paymill"`
	Retry    RetryConfig    `koanf:"retry"`
	Breaker  BreakerConfig  `koanf:"breaker"`
	Logger   LoggerConfig   `koanf:"logger"`
	Redis    RedisConfig    `koanf:"redis"`
	Audit    AuditConfig    `koanf:"audit"`
	Checkout CheckoutConfig `koanf:"checkout"`
	Worker   WorkerConfig   `koanf:"worker"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

type ServerConfig struct {
	Port         string        `koanf:"port" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" validate:"required"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"required"`
	User            string        `koanf:"user" validate:"required"`
	Password        string        `koanf:"password" validate:"required"`
	Name            string        `koanf:"name" validate:"required"`
	SSLMode         string        `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time" validate:"required"`
}

type PaymillConfig struct {
	BaseURL     string        `koanf:"base_url" validate:"required"`
	PrivateKey  string        `koanf:"private_key" validate:"required"`
	ConnTimeout time.Duration `koanf:"conn_timeout" validate:"required"`
	// Source is sent with every transaction to identify the integration.
	Source string `koanf:"source"`
}

// RetryConfig applies to gateway fetches only. Creates are never retried.
type RetryConfig struct {
	BaseDelay  time.Duration `koanf:"base_delay"`
	MaxRetries int32         `koanf:"max_retries"`
}

type BreakerConfig struct {
	MaxRequests         uint32        `koanf:"max_requests"`
	Interval            time.Duration `koanf:"interval"`
	Timeout             time.Duration `koanf:"timeout"`
	ConsecutiveFailures uint32        `koanf:"consecutive_failures"`
}

type LoggerConfig struct {
	Level string `koanf:"level"`
	// Format is "text" or "json".
	Format string `koanf:"format"`
	// Zap adds a zap JSON sink for the payment diagnostic log.
	Zap bool `koanf:"zap"`
}

// RedisConfig enables the checkout attempt guard when Addr is set.
type RedisConfig struct {
	Addr          string        `koanf:"addr"`
	Password      string        `koanf:"password"`
	DB            int           `koanf:"db"`
	InProgressTTL time.Duration `koanf:"in_progress_ttl"`
	CompletedTTL  time.Duration `koanf:"completed_ttl"`
}

// AuditConfig enables the DynamoDB audit sink when Table is set.
type AuditConfig struct {
	Table    string `koanf:"table"`
	Region   string `koanf:"region"`
	Endpoint string `koanf:"endpoint"`
}

type CheckoutConfig struct {
	PreauthorizeOnMismatch bool `koanf:"preauthorize_on_mismatch"`
}

// WorkerConfig drives the sweep that cancels orders whose preauthorization
// has expired at the gateway.
type WorkerConfig struct {
	Enabled   bool          `koanf:"enabled"`
	Interval  time.Duration `koanf:"interval"`
	MaxAge    time.Duration `koanf:"max_age"`
	BatchSize int           `koanf:"batch_size"`
}

func (c *Config) applyDefaults() {
	if c.Retry.MaxRetries == 0 {
		c.Retry.MaxRetries = 3
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = 200 * time.Millisecond
	}
	if c.Breaker.MaxRequests == 0 {
		c.Breaker.MaxRequests = 1
	}
	if c.Breaker.Interval == 0 {
		c.Breaker.Interval = time.Minute
	}
	if c.Breaker.Timeout == 0 {
		c.Breaker.Timeout = 30 * time.Second
	}
	if c.Breaker.ConsecutiveFailures == 0 {
		c.Breaker.ConsecutiveFailures = 5
	}
	if c.Redis.InProgressTTL == 0 {
		c.Redis.InProgressTTL = time.Minute
	}
	if c.Redis.CompletedTTL == 0 {
		c.Redis.CompletedTTL = 24 * time.Hour
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "text"
	}
	if c.Worker.Interval == 0 {
		c.Worker.Interval = time.Hour
	}
	if c.Worker.MaxAge == 0 {
		c.Worker.MaxAge = 7 * 24 * time.Hour
	}
	if c.Worker.BatchSize == 0 {
		c.Worker.BatchSize = 100
	}
	if c.Audit.Region == "" {
		c.Audit.Region = "us-east-1"
	}
}

func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, envPrefix)),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	err = k.Unmarshal("", mainConfig)
	if err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	mainConfig.applyDefaults()

	validate := validator.New()

	err = validate.Struct(mainConfig)
	if err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	return mainConfig, nil
}
