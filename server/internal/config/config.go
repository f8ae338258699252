package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable override.
const EnvPrefix = "EIGHTYSIX_"

// Default values for the server configuration.
const (
	DefaultGRPCPort       = 50051
	DefaultHTTPPort       = 8080
	DefaultLogLevel       = "info"
	DefaultScope          = "global"
	DefaultPersistTimeout = 5 * time.Second
	DefaultStorageDriver  = "sqlite"
	DefaultStoragePath    = "eightysix.db"
	DefaultCacheTTL       = 5 * time.Minute
	DefaultServiceName    = "eightysix"
)

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
	DriverRedis  = "redis"
)

// Config holds the server-side configuration parsed from the `server:` section
// of config.yaml. The `agent:` key in the same file is ignored.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// GRPCPort is the port the gRPC gateway listens on (default 50051).
	GRPCPort int `yaml:"grpc_port" env:"GRPC_PORT"`

	// HTTPPort is the port the REST API and WebSocket gateway listen on (default 8080).
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`

	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`

	// DefaultScope is the scope served by the legacy /api/86-list routes.
	DefaultScope string `yaml:"default_scope" env:"DEFAULT_SCOPE"`

	Availability AvailabilityConfig `yaml:"availability" envPrefix:"AVAILABILITY_"`
	Storage      StorageConfig      `yaml:"storage" envPrefix:"STORAGE_"`
	Cache        CacheConfig        `yaml:"cache" envPrefix:"CACHE_"`
	Search       SearchConfig       `yaml:"search" envPrefix:"SEARCH_"`
	Notify       NotifyConfig       `yaml:"notify"`
	Telemetry    TelemetryConfig    `yaml:"telemetry" envPrefix:"TELEMETRY_"`
}

// AvailabilityConfig tunes the per-scope actors.
type AvailabilityConfig struct {
	// PersistTimeout bounds each durable write (default 5s).
	PersistTimeout time.Duration `yaml:"persist_timeout" env:"PERSIST_TIMEOUT"`
}

// StorageConfig selects and configures the durable key-value backend.
type StorageConfig struct {
	// Driver is one of: memory | sqlite | mysql | redis (default sqlite).
	Driver string `yaml:"driver" env:"DRIVER"`

	// Path is the SQLite database file.
	Path string `yaml:"path" env:"PATH"`

	// DSN is the MySQL data source name, e.g. "user:pass@tcp(db:3306)/eightysix".
	DSN string `yaml:"dsn" env:"DSN"`

	Redis RedisConfig `yaml:"redis" envPrefix:"REDIS_"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr string `yaml:"addr" env:"ADDR"`

	// PasswordEnv names the environment variable holding the Redis password.
	PasswordEnv string `yaml:"password_env" env:"PASSWORD_ENV"`

	DB int `yaml:"db" env:"DB"`
}

// Password returns the Redis password resolved from the environment.
func (r RedisConfig) Password() string {
	if r.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(r.PasswordEnv)
}

// CacheConfig controls the search read-cache.
type CacheConfig struct {
	// TTL is how long a computed search response is served (default 5m).
	TTL time.Duration `yaml:"ttl" env:"TTL"`
}

// SearchConfig points at the menu catalog.
type SearchConfig struct {
	// Catalog is the YAML catalog path. Empty disables search results.
	Catalog string `yaml:"catalog" env:"CATALOG"`
}

// NotifyConfig holds webhook delivery targets for availability events.
type NotifyConfig struct {
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// TelemetryConfig enables OTLP trace export.
type TelemetryConfig struct {
	// Endpoint is the OTLP/HTTP collector URL. Empty disables tracing.
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`

	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
}

// Load reads and parses the config file at path, returning the server configuration.
// An empty path skips the file. Defaults are applied before unmarshalling,
// EIGHTYSIX_* environment variables override the file, then the result is validated.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("server config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("server config: parse yaml: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg.Server, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("server config: parse env: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			GRPCPort:     DefaultGRPCPort,
			HTTPPort:     DefaultHTTPPort,
			LogLevel:     DefaultLogLevel,
			DefaultScope: DefaultScope,
			Availability: AvailabilityConfig{
				PersistTimeout: DefaultPersistTimeout,
			},
			Storage: StorageConfig{
				Driver: DefaultStorageDriver,
				Path:   DefaultStoragePath,
			},
			Cache: CacheConfig{
				TTL: DefaultCacheTTL,
			},
			Telemetry: TelemetryConfig{
				ServiceName: DefaultServiceName,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.GRPCPort <= 0 || s.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d is out of range [1, 65535]", s.GRPCPort)
	}
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	switch s.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("server.log_level %q unknown: want debug|info|warn|error", s.LogLevel)
	}
	if s.DefaultScope == "" {
		return fmt.Errorf("server.default_scope must not be empty")
	}
	if s.Availability.PersistTimeout <= 0 {
		return fmt.Errorf("server.availability.persist_timeout must be positive")
	}
	switch s.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if s.Storage.Path == "" {
			return fmt.Errorf("server.storage.path is required for the sqlite driver")
		}
	case DriverMySQL:
		if s.Storage.DSN == "" {
			return fmt.Errorf("server.storage.dsn is required for the mysql driver")
		}
	case DriverRedis:
		if s.Storage.Redis.Addr == "" {
			return fmt.Errorf("server.storage.redis.addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("server.storage.driver %q unknown: want memory|sqlite|mysql|redis", s.Storage.Driver)
	}
	if s.Cache.TTL <= 0 {
		return fmt.Errorf("server.cache.ttl must be positive")
	}
	for i, wh := range s.Notify.Webhooks {
		switch wh.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("server.notify.webhooks[%d].type %q unknown: want slack|teams|http", i, wh.Type)
		}
	}
	return nil
}
