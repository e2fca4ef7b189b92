package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Server captures process level configuration.
type Server struct {
	Addr            string        `env:"CASEVERIFY_ADDR" envDefault:":8080"`
	RequestTimeout  time.Duration `env:"CASEVERIFY_REQUEST_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"CASEVERIFY_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	LogFormat       string        `env:"CASEVERIFY_LOG_FORMAT" envDefault:"json"`
	LogLevel        string        `env:"CASEVERIFY_LOG_LEVEL" envDefault:"info"`

	Store     StoreConfig
	Issuance  IssuanceConfig
	Audit     AuditConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
}

type StoreConfig struct {
	Driver      string `env:"CASEVERIFY_STORE" envDefault:"sqlite"`
	SQLitePath  string `env:"CASEVERIFY_SQLITE_PATH" envDefault:"refugees.db"`
	PostgresDSN string `env:"CASEVERIFY_POSTGRES_DSN"`
}

type IssuanceConfig struct {
	// NumberFormat is "random" (NSSF + six digits) or "timestamp".
	NumberFormat string `env:"CASEVERIFY_NUMBER_FORMAT" envDefault:"random"`
}

type AuditConfig struct {
	LogPath      string   `env:"CASEVERIFY_AUDIT_LOG" envDefault:"data/nssf_issuance_log.csv"`
	KafkaBrokers []string `env:"CASEVERIFY_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"CASEVERIFY_KAFKA_TOPIC" envDefault:"caseverify.issuance"`
	QueueSize    int      `env:"CASEVERIFY_AUDIT_QUEUE_SIZE" envDefault:"256"`
}

// RedisConfig is optional; an empty URL keeps rate limit counters in memory.
type RedisConfig struct {
	URL          string        `env:"CASEVERIFY_REDIS_URL"`
	PoolSize     int           `env:"CASEVERIFY_REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"CASEVERIFY_REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"CASEVERIFY_REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"CASEVERIFY_REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"CASEVERIFY_REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

type RateLimitConfig struct {
	Disabled bool          `env:"CASEVERIFY_RATELIMIT_DISABLED" envDefault:"false"`
	Requests int           `env:"CASEVERIFY_RATELIMIT_REQUESTS" envDefault:"120"`
	Window   time.Duration `env:"CASEVERIFY_RATELIMIT_WINDOW" envDefault:"1m"`
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg, err := Parse()
	if err != nil {
		return Server{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Parse reads the environment without validating, for callers that layer
// flag overrides on top before calling Validate.
func Parse() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c *Server) Validate() error {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("CASEVERIFY_SQLITE_PATH is required for the sqlite store")
		}
	case StorePostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("CASEVERIFY_POSTGRES_DSN is required for the postgres store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if !c.RateLimit.Disabled && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("rate limit requests and window must be positive")
	}
	if c.Audit.QueueSize <= 0 {
		return fmt.Errorf("audit queue size must be positive")
	}
	return nil
}
