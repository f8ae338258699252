package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultServerEndpoint = "localhost:50051"
	DefaultStreamURL      = "ws://localhost:8080"
	DefaultScope          = "global"
	DefaultBufferSize     = 256
	DefaultSendTimeout    = 10 * time.Second
	DefaultReconnectMax   = 30 * time.Second
)

var scopePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Config is the top-level configuration for the station agent.
// Fields map 1:1 to config.example.yaml.
type Config struct {
	Agent AgentConfig `yaml:"agent" envPrefix:"AGENT_"`
}

// AgentConfig holds all agent-side settings.
type AgentConfig struct {
	// ServerEndpoint is the gRPC address of the availability service (host:port).
	ServerEndpoint string `yaml:"server_endpoint" env:"SERVER_ENDPOINT"`

	// StreamURL is the base ws:// or wss:// URL of the realtime gateway.
	StreamURL string `yaml:"stream_url" env:"STREAM_URL"`

	// Scope is the menu scope this station mirrors and updates.
	Scope string `yaml:"scope" env:"SCOPE"`

	// StationID identifies this station as the actor on updates it ships.
	StationID string `yaml:"station_id" env:"STATION_ID"`

	// BufferSize is the maximum number of updates held in memory while the
	// server is unreachable.
	BufferSize int `yaml:"buffer_size" env:"BUFFER_SIZE"`

	// SendTimeout bounds each gRPC update call.
	SendTimeout time.Duration `yaml:"send_timeout" env:"SEND_TIMEOUT"`

	// ReconnectMax caps the backoff between reconnect attempts.
	ReconnectMax time.Duration `yaml:"reconnect_max" env:"RECONNECT_MAX"`

	// TLS configures the gRPC transport. Empty CertFile means plaintext.
	TLS TLSConfig `yaml:"tls" envPrefix:"TLS_"`
}

// TLSConfig holds client certificate paths for the gRPC connection.
type TLSConfig struct {
	CertFile string `yaml:"cert_file" env:"CERT_FILE"`
	KeyFile  string `yaml:"key_file" env:"KEY_FILE"`
	CAFile   string `yaml:"ca_file" env:"CA_FILE"`
}

// Enabled reports whether a client certificate is configured.
func (t TLSConfig) Enabled() bool { return t.CertFile != "" }

// Load reads and parses the YAML config file at path, then applies
// EIGHTYSIX_AGENT_* environment overrides. An empty path skips the file.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "EIGHTYSIX_"}); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			ServerEndpoint: DefaultServerEndpoint,
			StreamURL:      DefaultStreamURL,
			Scope:          DefaultScope,
			BufferSize:     DefaultBufferSize,
			SendTimeout:    DefaultSendTimeout,
			ReconnectMax:   DefaultReconnectMax,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	a := cfg.Agent
	if a.ServerEndpoint == "" {
		return fmt.Errorf("agent.server_endpoint is required")
	}
	if a.StreamURL == "" {
		return fmt.Errorf("agent.stream_url is required")
	}
	if !scopePattern.MatchString(a.Scope) {
		return fmt.Errorf("agent.scope %q is invalid", a.Scope)
	}
	if a.BufferSize <= 0 {
		return fmt.Errorf("agent.buffer_size must be positive")
	}
	if a.SendTimeout <= 0 {
		return fmt.Errorf("agent.send_timeout must be positive")
	}
	if a.ReconnectMax <= 0 {
		return fmt.Errorf("agent.reconnect_max must be positive")
	}
	if a.TLS.Enabled() && a.TLS.KeyFile == "" {
		return fmt.Errorf("agent.tls.key_file is required with cert_file")
	}
	return nil
}
