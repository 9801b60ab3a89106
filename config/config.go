package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Click recording modes.
const (
	ClickModeAsync     = "async"
	ClickModeSync      = "sync"
	ClickModeJetStream = "jetstream"
)

// Storage drivers.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	// Application runtime
	App AppConfig `mapstructure:"app"`

	// Short link issuance
	Links LinksConfig `mapstructure:"links"`

	// Click telemetry
	Clicks ClicksConfig `mapstructure:"clicks"`

	// Storage backend selection
	Storage StorageConfig `mapstructure:"storage"`

	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Redis
	Redis RedisConfig `mapstructure:"redis"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

type AppConfig struct {
	Env             string        `mapstructure:"env"`
	LogLevel        string        `mapstructure:"log_level"`
	LogEncoding     string        `mapstructure:"log_encoding"`
	ListenAddr      string        `mapstructure:"listen_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// IsProduction reports whether the service runs with production settings.
func (c AppConfig) IsProduction() bool {
	return c.Env == "production"
}

type LinksConfig struct {
	PublicScheme string        `mapstructure:"public_scheme"`
	PublicDomain string        `mapstructure:"public_domain"`
	Stage        string        `mapstructure:"stage"`
	IDLength     int           `mapstructure:"id_length"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	TTL          time.Duration `mapstructure:"ttl"`
}

type ClicksConfig struct {
	Mode          string        `mapstructure:"mode"`
	TTL           time.Duration `mapstructure:"ttl"`
	QueryLimit    int           `mapstructure:"query_limit"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type PostgresConfig struct {
	Host              string `mapstructure:"host"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	Database          string `mapstructure:"database"`
	Port              int    `mapstructure:"port"`
	SSLMode           string `mapstructure:"sslmode"`
	MaxConns          int32  `mapstructure:"max_conns"`
	MinConns          int32  `mapstructure:"min_conns"`
	MaxConnLifetime   string `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   string `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod string `mapstructure:"health_check_period"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type NATSConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Stream   string `mapstructure:"stream"`
	Subject  string `mapstructure:"subject"`
	Consumer string `mapstructure:"consumer"`
}

type PrometheusConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Allow environment variables to override YAML entries.
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Preserve legacy env variable names.
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Links.IDLength <= 0 {
		errs = append(errs, fmt.Errorf("links.id_length must be positive, got %d", c.Links.IDLength))
	}
	if c.Links.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("links.max_attempts must be positive, got %d", c.Links.MaxAttempts))
	}
	if c.Links.TTL < 0 {
		errs = append(errs, fmt.Errorf("links.ttl must not be negative"))
	}

	switch c.Clicks.Mode {
	case ClickModeAsync, ClickModeSync, ClickModeJetStream:
	default:
		errs = append(errs, fmt.Errorf("clicks.mode must be one of: async, sync, jetstream, got %q", c.Clicks.Mode))
	}
	if c.Clicks.TTL <= 0 {
		errs = append(errs, fmt.Errorf("clicks.ttl must be positive"))
	}
	if c.Clicks.QueryLimit <= 0 {
		errs = append(errs, fmt.Errorf("clicks.query_limit must be positive, got %d", c.Clicks.QueryLimit))
	}

	switch c.Storage.Driver {
	case StorageMemory, StoragePostgres:
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be one of: memory, postgres, got %q", c.Storage.Driver))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_encoding", "")
	v.SetDefault("app.listen_addr", ":8080")
	v.SetDefault("app.shutdown_timeout", 10*time.Second)

	v.SetDefault("links.public_scheme", "https")
	v.SetDefault("links.public_domain", "")
	v.SetDefault("links.stage", "")
	v.SetDefault("links.id_length", 7)
	v.SetDefault("links.max_attempts", 5)
	v.SetDefault("links.ttl", time.Duration(0))

	v.SetDefault("clicks.mode", ClickModeAsync)
	v.SetDefault("clicks.ttl", 30*24*time.Hour)
	v.SetDefault("clicks.query_limit", 50)
	v.SetDefault("clicks.write_timeout", 2*time.Second)
	v.SetDefault("clicks.sweep_interval", time.Hour)

	v.SetDefault("storage.driver", StorageMemory)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.database", "snaplink")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_conns", 0)
	v.SetDefault("postgres.min_conns", 0)
	v.SetDefault("postgres.max_conn_lifetime", "")
	v.SetDefault("postgres.max_conn_idle_time", "")
	v.SetDefault("postgres.health_check_period", "")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl", 10*time.Minute)

	v.SetDefault("nats.host", "localhost")
	v.SetDefault("nats.port", 4222)
	v.SetDefault("nats.user", "")
	v.SetDefault("nats.password", "")
	v.SetDefault("nats.stream", "CLICKS")
	v.SetDefault("nats.subject", "clicks.events")
	v.SetDefault("nats.consumer", "click-recorder")

	v.SetDefault("prometheus.enabled", false)
	v.SetDefault("prometheus.port", 9090)
}

func bindEnvVars(v *viper.Viper) {
	// Application
	v.BindEnv("app.env", "APP_ENV")
	v.BindEnv("app.log_level", "LOG_LEVEL")
	v.BindEnv("app.listen_addr", "LISTEN_ADDR")

	// Links
	v.BindEnv("links.public_domain", "PUBLIC_DOMAIN")
	v.BindEnv("links.stage", "STAGE")

	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// NATS
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")

	// Prometheus
	v.BindEnv("prometheus.port", "PROM_PORT")
}
