package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Billing  BillingConfig  `mapstructure:"billing"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Notifier NotifierConfig `mapstructure:"notifier"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"` // 0 = go-redis default
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// WorkerConfig controls the queue consumers.
type WorkerConfig struct {
	Concurrency   int           `mapstructure:"concurrency"`
	Stream        string        `mapstructure:"stream"`
	Group         string        `mapstructure:"group"`
	Consumer      string        `mapstructure:"consumer"`
	Lease         time.Duration `mapstructure:"lease"`          // idle time before a delivery is reclaimed
	Block         time.Duration `mapstructure:"block"`          // XREADGROUP block window
	MaxDeliveries int64         `mapstructure:"max_deliveries"` // then dead-lettered
	EventTimeout  time.Duration `mapstructure:"event_timeout"`
}

// LedgerConfig bounds the optimistic debit retry loop.
type LedgerConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseBackoff time.Duration `mapstructure:"base_backoff"`
}

type BillingConfig struct {
	InvoiceDueDays       int  `mapstructure:"invoice_due_days"`
	InvoiceUnknownPlates bool `mapstructure:"invoice_unknown_plates"`
}

// IngestConfig configures signed toll-station requests.
type IngestConfig struct {
	StationSecrets map[string]string `mapstructure:"station_secrets"` // station id -> shared secret
	RatePerMinute  int64             `mapstructure:"rate_per_minute"`
}

type NotifierConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"` // empty = log only
	Timeout    time.Duration `mapstructure:"timeout"`
	Retries    int           `mapstructure:"retries"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: TWY_.
// Nested keys use underscore: TWY_DATABASE_HOST, TWY_WORKER_CONCURRENCY, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "tollway")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 0)
	v.SetDefault("redis.min_idle_conns", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "12h")
	v.SetDefault("jwt.issuer", "tollway")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.stream", "toll-events")
	v.SetDefault("worker.group", "billing")
	v.SetDefault("worker.consumer", "")
	v.SetDefault("worker.lease", "30s")
	v.SetDefault("worker.block", "2s")
	v.SetDefault("worker.max_deliveries", 10)
	v.SetDefault("worker.event_timeout", "20s")
	v.SetDefault("ledger.max_attempts", 3)
	v.SetDefault("ledger.base_backoff", "25ms")
	v.SetDefault("billing.invoice_due_days", 15)
	v.SetDefault("billing.invoice_unknown_plates", true)
	v.SetDefault("ingest.rate_per_minute", 600)
	v.SetDefault("notifier.webhook_url", "")
	v.SetDefault("notifier.timeout", "5s")
	v.SetDefault("notifier.retries", 2)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: TWY_DATABASE_HOST -> database.host
	v.SetEnvPrefix("TWY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
