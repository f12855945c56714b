package config

import (
	"fmt"
	"net/url"

	pkgconfig "github.com/MiSArch/shoppingcart/pkg/config"
)

// Config holds all configuration for the shopping cart service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort            int `env:"HTTP_PORT" envDefault:"8080"`
	ShutdownTimeoutSecs int `env:"SHUTDOWN_TIMEOUT_SECONDS" envDefault:"10"`

	// Cart storage backend: "redis" or "postgres".
	RepositoryDriver string `env:"REPOSITORY_DRIVER" envDefault:"redis"`

	// Redis. Required regardless of the cart backend: the variant read
	// model and the consumer idempotency store always live here.
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Cart TTL in hours for the Redis backend; 0 keeps carts forever.
	CartTTLHours int `env:"CART_TTL_HOURS" envDefault:"0"`

	// PostgreSQL (used when REPOSITORY_DRIVER=postgres)
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"shoppingcart"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"shoppingcart_secret"`
	PostgresDB   string `env:"SHOPPINGCART_DB_NAME" envDefault:"shoppingcart_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Queries slower than this are logged as warnings; 0 disables.
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`

	// Kafka
	KafkaBrokers       []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaConsumerGroup string   `env:"KAFKA_CONSUMER_GROUP" envDefault:"shoppingcart-service"`

	// Product catalog collaborator
	CatalogServiceURL  string `env:"CATALOG_SERVICE_URL" envDefault:"http://localhost:8001"`
	CatalogTimeoutSecs int    `env:"CATALOG_TIMEOUT_SECONDS" envDefault:"5"`

	// Conditional-save retry budget per cart mutation.
	SaveRetryAttempts int `env:"SAVE_RETRY_ATTEMPTS" envDefault:"3"`

	// Circuit breaker settings for catalog calls
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Rate limiting
	RateLimitRPS   int `env:"RATE_LIMIT_RPS" envDefault:"100"`
	RateLimitBurst int `env:"RATE_LIMIT_BURST" envDefault:"200"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load shoppingcart config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.RepositoryDriver != "redis" && c.RepositoryDriver != "postgres" {
		return fmt.Errorf("REPOSITORY_DRIVER must be redis or postgres, got %q", c.RepositoryDriver)
	}
	if c.RedisHost == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	if c.CartTTLHours < 0 {
		return fmt.Errorf("CART_TTL_HOURS must not be negative, got %d", c.CartTTLHours)
	}
	if c.RepositoryDriver == "postgres" {
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required")
		}
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.SaveRetryAttempts < 1 {
		return fmt.Errorf("SAVE_RETRY_ATTEMPTS must be at least 1, got %d", c.SaveRetryAttempts)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	if c.CatalogServiceURL == "" {
		return fmt.Errorf("CATALOG_SERVICE_URL is required")
	}
	if _, err := url.ParseRequestURI(c.CatalogServiceURL); err != nil {
		return fmt.Errorf("invalid CATALOG_SERVICE_URL %q: %w", c.CatalogServiceURL, err)
	}
	return nil
}
