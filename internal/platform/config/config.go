package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full process configuration, built once in main.
type Config struct {
	Server    Server
	Postgres  PostgresConfig
	Redis     RedisConfig
	Gateway   GatewayConfig
	Kafka     KafkaConfig
	Identity  IdentityConfig
	RateLimit RateLimitConfig

	// TrialDays is the length of the trial window granted at signup.
	TrialDays int
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr string
}

// PostgresConfig captures the database connection settings.
type PostgresConfig struct {
	URL string
}

// RedisConfig captures Redis connection and pool settings.
// An empty URL means Redis is not configured and in-memory stores are used.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// GatewayConfig captures the payment gateway client settings.
type GatewayConfig struct {
	URL     string
	Secret  string
	Timeout time.Duration
}

// KafkaConfig captures the audit publishing settings.
// Empty Brokers means audit events are logged but not published.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// IdentityConfig captures identity-provider token verification settings.
type IdentityConfig struct {
	SigningKey string
	Issuer     string
}

// RateLimitConfig throttles unauthenticated signup traffic per client IP.
type RateLimitConfig struct {
	SignupLimit  int
	SignupWindow time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr: envOr("BROKERHUB_ADDR", ":8080"),
		},
		Postgres: PostgresConfig{
			URL: os.Getenv("POSTGRES_URL"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Gateway: GatewayConfig{
			URL:     os.Getenv("GATEWAY_URL"),
			Secret:  os.Getenv("GATEWAY_SECRET"),
			Timeout: envDuration("GATEWAY_TIMEOUT", 10*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: envList("KAFKA_BROKERS"),
			Topic:   envOr("KAFKA_AUDIT_TOPIC", "brokerhub.audit"),
		},
		Identity: IdentityConfig{
			SigningKey: os.Getenv("IDENTITY_SIGNING_KEY"),
			Issuer:     envOr("IDENTITY_ISSUER", "brokerhub-identity"),
		},
		RateLimit: RateLimitConfig{
			SignupLimit:  envInt("SIGNUP_RATE_LIMIT", 10),
			SignupWindow: envDuration("SIGNUP_RATE_WINDOW", time.Minute),
		},
		TrialDays: envInt("TRIAL_DAYS", 7),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
