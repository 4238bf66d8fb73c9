// Package config handles application configuration loading from environment
// variables. It provides a centralized Config struct used across the application.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// DefaultAdminToken is the development token. Production refuses to start
// with it.
const DefaultAdminToken = "dev-admin-token"

// Table backends selectable with TABLE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendBadger   = "badger"
	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"
)

// Config holds all application configuration values loaded from the environment.
type Config struct {
	// Server settings
	Host     string `env:"APP_HOST" env-default:"0.0.0.0"`
	Port     string `env:"APP_PORT" env-default:"8080"`
	Env      string `env:"APP_ENV" env-default:"development"` // "development", "production", "testing"
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`

	// Admin credential. A bcrypt hash, when set, takes precedence.
	AdminToken     string `env:"ADMIN_TOKEN" env-default:"dev-admin-token"`
	AdminTokenHash string `env:"ADMIN_TOKEN_HASH"`

	// Admin requests allowed per client per minute; 0 disables the limit.
	AdminRateLimit int `env:"ADMIN_RATE_LIMIT" env-default:"120"`

	CORSOrigins []string `env:"CORS_ORIGINS" env-separator:"," env-default:"*"`

	Table    TableConfig
	Postgres PostgresConfig
	Valkey   ValkeyConfig
	S3       S3Config
}

// TableConfig selects and configures the single-table store.
type TableConfig struct {
	Backend        string `env:"TABLE_BACKEND" env-default:"memory"`
	BadgerDir      string `env:"BADGER_DIR" env-default:"./data/badger"`
	DynamoTable    string `env:"DYNAMODB_TABLE" env-default:"blog"`
	DynamoRegion   string `env:"DYNAMODB_REGION" env-default:"us-east-1"`
	DynamoEndpoint string `env:"DYNAMODB_ENDPOINT"`
}

// PostgresConfig is the connection for the postgres table backend.
type PostgresConfig struct {
	Host     string `env:"POSTGRES_HOST" env-default:"localhost"`
	Port     string `env:"POSTGRES_PORT" env-default:"5432"`
	User     string `env:"POSTGRES_USER" env-default:"inkpress"`
	Password string `env:"POSTGRES_PASSWORD" env-default:"changeme"`
	Name     string `env:"POSTGRES_DB" env-default:"inkpress"`
}

// ValkeyConfig is the public response cache. Without a reachable host,
// responses are cached in process when Local is set.
type ValkeyConfig struct {
	Host     string        `env:"VALKEY_HOST"`
	Port     string        `env:"VALKEY_PORT" env-default:"6379"`
	Password string        `env:"VALKEY_PASSWORD"`
	DB       int           `env:"VALKEY_DB" env-default:"0"`
	TTL      time.Duration `env:"CACHE_TTL" env-default:"60s"`
	Local    bool          `env:"CACHE_LOCAL" env-default:"true"`
}

// S3Config is the media bucket. An empty bucket disables uploads.
type S3Config struct {
	Endpoint   string `env:"S3_ENDPOINT"`
	Region     string `env:"S3_REGION" env-default:"us-east-1"`
	AccessKey  string `env:"S3_ACCESS_KEY"`
	SecretKey  string `env:"S3_SECRET_KEY"`
	Bucket     string `env:"S3_BUCKET"`
	PublicURL  string `env:"S3_PUBLIC_URL"`
	PublicRead bool   `env:"S3_PUBLIC_READ" env-default:"false"`
}

// Load reads configuration from environment variables, applying defaults
// for development where appropriate. A .env file in the working directory
// is loaded first if present; real environment variables win over it.
// Returns an error if critical values are missing in production mode.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Table.Backend {
	case BackendMemory, BackendBadger, BackendDynamoDB, BackendPostgres:
	default:
		return fmt.Errorf("TABLE_BACKEND %q is not one of memory, badger, dynamodb, postgres", c.Table.Backend)
	}
	if c.Valkey.TTL <= 0 {
		return errors.New("CACHE_TTL must be positive")
	}
	if c.AdminRateLimit < 0 {
		return errors.New("ADMIN_RATE_LIMIT must not be negative")
	}

	if c.Env == "production" {
		if c.AdminTokenHash == "" && (c.AdminToken == "" || c.AdminToken == DefaultAdminToken) {
			return errors.New("ADMIN_TOKEN or ADMIN_TOKEN_HASH must be set in production")
		}
		if c.Table.Backend == BackendPostgres && c.Postgres.Password == "changeme" {
			return errors.New("POSTGRES_PASSWORD must be set in production")
		}
		if c.Table.Backend == BackendMemory {
			return errors.New("TABLE_BACKEND=memory loses all data on restart and is not allowed in production")
		}
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Postgres.User, c.Postgres.Password),
		Host:     net.JoinHostPort(c.Postgres.Host, c.Postgres.Port),
		Path:     c.Postgres.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// ValkeyAddr returns the cache address, or "" when caching is disabled.
func (c *Config) ValkeyAddr() string {
	if c.Valkey.Host == "" {
		return ""
	}
	return net.JoinHostPort(c.Valkey.Host, c.Valkey.Port)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}
