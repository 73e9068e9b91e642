package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/goliatone/go-config/cfgx"
)

// Config captures module-level configuration knobs for the store client,
// the reference server and the CLI.
type Config struct {
	Client  ClientConfig  `mapstructure:"client" json:"client"`
	Server  ServerConfig  `mapstructure:"server" json:"server"`
	Storage StorageConfig `mapstructure:"storage" json:"storage"`
	Retry   RetryConfig   `mapstructure:"retry" json:"retry"`
	Logging LoggingConfig `mapstructure:"logging" json:"logging"`
}

// ClientConfig is the ambient context of one workflow execution.
type ClientConfig struct {
	APIURL      string        `mapstructure:"api_url" json:"api_url" env:"FLOWSTORE_API_URL"`
	Prefix      string        `mapstructure:"prefix" json:"prefix" env:"FLOWSTORE_PREFIX"`
	FlowID      string        `mapstructure:"flow_id" json:"flow_id" env:"FLOWSTORE_FLOW_ID"`
	EngineToken string        `mapstructure:"engine_token" json:"engine_token" env:"FLOWSTORE_ENGINE_TOKEN"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout" env:"FLOWSTORE_TIMEOUT"`
}

// ServerConfig controls the reference store-entries server.
type ServerConfig struct {
	Addr       string   `mapstructure:"addr" json:"addr" env:"FLOWSTORE_SERVER_ADDR"`
	PathPrefix string   `mapstructure:"path_prefix" json:"path_prefix" env:"FLOWSTORE_SERVER_PATH_PREFIX"`
	Tokens     []string `mapstructure:"tokens" json:"tokens" env:"FLOWSTORE_SERVER_TOKENS" envSeparator:","`
}

// StorageConfig selects the server persistence backend.
type StorageConfig struct {
	Backend  string `mapstructure:"backend" json:"backend" env:"FLOWSTORE_STORAGE_BACKEND"`
	Location string `mapstructure:"location" json:"location" env:"FLOWSTORE_STORAGE_LOCATION"`
}

// RetryConfig is used by callers that retry failed store calls.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" json:"max_attempts" env:"FLOWSTORE_RETRY_MAX_ATTEMPTS"`
	BaseDelay   time.Duration `mapstructure:"base_delay" json:"base_delay" env:"FLOWSTORE_RETRY_BASE_DELAY"`
	MaxDelay    time.Duration `mapstructure:"max_delay" json:"max_delay" env:"FLOWSTORE_RETRY_MAX_DELAY"`
}

// LoggingConfig sets the minimum log level.
type LoggingConfig struct {
	Level string `mapstructure:"level" json:"level" env:"FLOWSTORE_LOG_LEVEL"`
}

var validBackends = map[string]bool{"memory": true, "sqlite": true, "bolt": true}

// Defaults returns the baseline configuration.
func Defaults() Config {
	return Config{
		Client: ClientConfig{
			Timeout: 30 * time.Second,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Storage: StorageConfig{
			Backend: "memory",
		},
		Retry: RetryConfig{
			MaxAttempts: 1,
			BaseDelay:   100 * time.Millisecond,
			MaxDelay:    5 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate ensures required fields are present and sane.
func (c *Config) Validate() error {
	if c.Client.Timeout < 0 {
		return errors.New("client.timeout must be >= 0")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be >= 1")
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		return fmt.Errorf("retry delays must be >= 0")
	}
	if !validBackends[strings.ToLower(c.Storage.Backend)] {
		return fmt.Errorf("storage.backend %q is not one of memory, sqlite, bolt", c.Storage.Backend)
	}
	if c.Storage.Backend != "memory" && strings.TrimSpace(c.Storage.Location) == "" {
		return fmt.Errorf("storage.location is required for backend %q", c.Storage.Backend)
	}
	return nil
}

// Load decodes arbitrary input (struct, map, cfg struct) using cfgx helpers,
// falling back to a lightweight decoder when cfgx yields a zero value.
func Load(input any, opts ...LoadOption) (Config, error) {
	settings := loadOptions{}
	for _, opt := range opts {
		opt(&settings)
	}

	cfg, err := cfgx.Build(input, settings.buildOpts...)
	if err != nil {
		return Config{}, err
	}

	if isZero(cfg) {
		if err := decodeFallback(input, &cfg); err != nil {
			return Config{}, err
		}
	}

	if settings.env {
		if err := env.Parse(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse env: %w", err)
		}
	}

	cfg = cfg.withDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadOption lets callers amend cfgx build options.
type LoadOption func(*loadOptions)

type loadOptions struct {
	buildOpts []cfgx.Option[Config]
	env       bool
}

// WithBuildOptions forwards cfgx options (duration hooks, preprocessors, etc.).
func WithBuildOptions(opts ...cfgx.Option[Config]) LoadOption {
	return func(lo *loadOptions) {
		lo.buildOpts = append(lo.buildOpts, opts...)
	}
}

// WithEnv overlays FLOWSTORE_* environment variables on the decoded input.
func WithEnv() LoadOption {
	return func(lo *loadOptions) {
		lo.env = true
	}
}

func (c Config) withDefaults() Config {
	defaults := Defaults()

	if c.Client.Timeout == 0 {
		c.Client.Timeout = defaults.Client.Timeout
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaults.Storage.Backend
	}
	c.Storage.Backend = strings.ToLower(c.Storage.Backend)
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = defaults.Retry.MaxAttempts
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = defaults.Retry.BaseDelay
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = defaults.Retry.MaxDelay
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	return c
}

func isZero(cfg Config) bool {
	return reflect.DeepEqual(cfg, Config{})
}

func decodeFallback(input any, cfg *Config) error {
	switch v := input.(type) {
	case nil:
		return nil
	case Config:
		*cfg = v
		return nil
	case *Config:
		if v != nil {
			*cfg = *v
		}
		return nil
	case map[string]any:
		return decodeMap(v, cfg)
	default:
		return fmt.Errorf("unsupported config input type: %T", input)
	}
}

func decodeMap(input map[string]any, cfg *Config) error {
	if input == nil {
		return nil
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, cfg)
}
