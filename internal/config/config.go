package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the runtime settings of the service.
type Config struct {
	Env         string `yaml:"env"`
	ServiceName string `yaml:"service_name"`
	HTTPAddr    string `yaml:"http_addr"`
	GRPCAddr    string `yaml:"grpc_addr"`
	LogLevel    string `yaml:"log_level"`

	// DatabaseDSN selects the Postgres store; empty means the in-memory store.
	DatabaseDSN string `yaml:"database_dsn"`

	JWTSecret string `yaml:"jwt_secret"`
	JWTIssuer string `yaml:"jwt_issuer"`

	AMQPURL      string `yaml:"amqp_url"`
	AMQPExchange string `yaml:"amqp_exchange"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisChannel  string `yaml:"redis_channel"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`

	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	MaxThreadDepth int    `yaml:"max_thread_depth"`
	DebugRoutes    bool   `yaml:"debug_routes"`
}

// RateLimitConfig bounds message writes per user.
type RateLimitConfig struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Env:            "dev",
		ServiceName:    "messaging-service",
		HTTPAddr:       ":8083",
		GRPCAddr:       ":9083",
		LogLevel:       "info",
		AMQPExchange:   "messaging.events",
		RedisChannel:   "messaging:events",
		RateLimit:      RateLimitConfig{Limit: 30, Window: 10 * time.Second},
		MaxThreadDepth: 64,
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order of precedence. A .env file in the working
// directory is loaded first when present.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required settings.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("jwt secret is required")
	}
	if c.MaxThreadDepth <= 0 {
		return errors.New("max thread depth must be positive")
	}
	if c.RateLimit.Limit < 0 || c.RateLimit.Window < 0 {
		return errors.New("rate limit must not be negative")
	}
	if c.RateLimit.Limit > 0 && c.RateLimit.Window < time.Millisecond {
		return errors.New("rate limit window must be at least 1ms")
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Env = getEnv("APP_ENV", cfg.Env)
	cfg.ServiceName = getEnv("SERVICE_NAME", cfg.ServiceName)
	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	if port, ok := os.LookupEnv("PORT"); ok && port != "" {
		cfg.HTTPAddr = ":" + port
	}
	cfg.GRPCAddr = getEnv("GRPC_ADDR", cfg.GRPCAddr)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.DatabaseDSN = getEnv("DB_DSN", cfg.DatabaseDSN)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTIssuer = getEnv("JWT_ISSUER", cfg.JWTIssuer)
	cfg.AMQPURL = getEnv("AMQP_URL", cfg.AMQPURL)
	cfg.AMQPExchange = getEnv("AMQP_EXCHANGE", cfg.AMQPExchange)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisChannel = getEnv("REDIS_CHANNEL", cfg.RedisChannel)
	cfg.OTLPEndpoint = getEnv("OTLP_ENDPOINT", cfg.OTLPEndpoint)
	cfg.RateLimit.Limit = getEnvInt("RATE_LIMIT", cfg.RateLimit.Limit)
	cfg.RateLimit.Window = getEnvDuration("RATE_LIMIT_WINDOW", cfg.RateLimit.Window)
	cfg.MaxThreadDepth = getEnvInt("MAX_THREAD_DEPTH", cfg.MaxThreadDepth)
	cfg.DebugRoutes = getEnvBool("DEBUG_ROUTES", cfg.DebugRoutes)
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
