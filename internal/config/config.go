// Package config loads the server and ingest tool settings from the
// environment.
package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/fittingroom/storefront/internal/catalog"
	"github.com/fittingroom/storefront/internal/catalog/elasticsearch"
	pkgconfig "github.com/fittingroom/storefront/pkg/config"
	"github.com/fittingroom/storefront/pkg/database"
	"github.com/fittingroom/storefront/pkg/logger"
	"github.com/fittingroom/storefront/pkg/tracing"
)

// Backends lists the catalog backends the server can serve from.
var Backends = []string{
	catalog.BackendRemote,
	catalog.BackendSQLite,
	catalog.BackendPostgres,
	catalog.BackendElasticsearch,
	catalog.BackendMemory,
}

// IngestTargets lists the stores the ingest tool can write to.
var IngestTargets = []string{
	catalog.BackendSQLite,
	catalog.BackendPostgres,
	catalog.BackendElasticsearch,
}

// Stores groups the per-backend connection settings shared by the server
// and the ingest tool.
type Stores struct {
	SQLite        database.SQLiteConfig
	Postgres      database.PostgresConfig `envPrefix:"POSTGRES_"`
	Elasticsearch elasticsearch.Config    `envPrefix:"ELASTICSEARCH_"`

	SlowQueryMS int `env:"LOG_SLOW_QUERY_MS" envDefault:"200"`
}

// SlowQueryThreshold is the statement duration above which a warning is
// logged. Zero disables the warning.
func (s Stores) SlowQueryThreshold() time.Duration {
	return time.Duration(s.SlowQueryMS) * time.Millisecond
}

// Config holds all configuration for the storefront API server.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`

	// HTTP server
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080"`
	RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Catalog backend selection
	Backend        string        `env:"CATALOG_BACKEND" envDefault:"remote"`
	CatalogAPIURL  string        `env:"CATALOG_API_URL" envDefault:"http://127.0.0.1:5001"`
	CatalogTimeout time.Duration `env:"CATALOG_TIMEOUT" envDefault:"10s"`
	SeedFile       string        `env:"CATALOG_SEED_FILE"`

	Stores

	// Edge
	CORSAllowedOrigins []string             `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000"`
	RateLimitRPS       float64              `env:"RATE_LIMIT_RPS" envDefault:"50"`
	RateLimitBurst     int                  `env:"RATE_LIMIT_BURST" envDefault:"100"`
	RateLimitWindow    time.Duration        `env:"RATE_LIMIT_WINDOW" envDefault:"1s"`
	RateLimitRedis     database.RedisConfig `envPrefix:"RATE_LIMIT_REDIS_"`
	PprofAllowedCIDRs  []string             `env:"PPROF_ALLOWED_CIDRS" envSeparator:"," envDefault:"127.0.0.1/32,::1/128"`

	Tracing tracing.Config `envPrefix:"OTEL_"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	cfg.Tracing.Environment = cfg.Environment
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
	if _, ok := logger.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("invalid LOG_LEVEL %q", c.LogLevel)
	}
	if !slices.Contains(Backends, c.Backend) {
		return fmt.Errorf("invalid CATALOG_BACKEND %q: must be one of %s", c.Backend, strings.Join(Backends, ", "))
	}
	if c.Backend == catalog.BackendRemote {
		u, err := url.Parse(c.CatalogAPIURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid CATALOG_API_URL %q", c.CatalogAPIURL)
		}
	}
	if c.CatalogTimeout <= 0 {
		return fmt.Errorf("CATALOG_TIMEOUT must be positive, got %s", c.CatalogTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %s", c.ShutdownTimeout)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if c.RateLimitRedis.Enabled() && c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", c.RateLimitWindow)
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be within [0, 1], got %v", c.Tracing.SampleRate)
	}
	return c.Stores.validate(c.Backend)
}

func (s *Stores) validate(backend string) error {
	switch backend {
	case catalog.BackendSQLite:
		if strings.TrimSpace(s.SQLite.Path) == "" {
			return fmt.Errorf("DATABASE_PATH is required for the sqlite backend")
		}
	case catalog.BackendElasticsearch:
		if len(s.Elasticsearch.URLs) == 0 {
			return fmt.Errorf("ELASTICSEARCH_URL is required for the elasticsearch backend")
		}
	}
	if s.SlowQueryMS < 0 {
		return fmt.Errorf("LOG_SLOW_QUERY_MS must not be negative")
	}
	return nil
}

// IngestConfig holds configuration for the CSV ingest tool.
type IngestConfig struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	Target    string `env:"INGEST_TARGET" envDefault:"sqlite"`
	Source    string `env:"INGEST_SOURCE" envDefault:"csv"`
	BatchSize int    `env:"INGEST_BATCH_SIZE" envDefault:"500"`

	Stores
}

// LoadIngest reads the ingest tool configuration.
func LoadIngest() (*IngestConfig, error) {
	cfg := &IngestConfig{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load ingest config: %w", err)
	}
	cfg.Target = strings.ToLower(strings.TrimSpace(cfg.Target))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the ingest settings, including any flag overrides.
func (c *IngestConfig) Validate() error {
	if !slices.Contains(IngestTargets, c.Target) {
		return fmt.Errorf("invalid INGEST_TARGET %q: must be one of %s", c.Target, strings.Join(IngestTargets, ", "))
	}
	if strings.TrimSpace(c.Source) == "" {
		return fmt.Errorf("INGEST_SOURCE must not be empty")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("INGEST_BATCH_SIZE must be at least 1, got %d", c.BatchSize)
	}
	if _, ok := logger.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("invalid LOG_LEVEL %q", c.LogLevel)
	}
	return c.Stores.validate(c.Target)
}
