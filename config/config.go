// Package config loads the service configuration from a YAML or JSON file
// with optional environment overrides (GD_SECTION__KEY).
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/soundbridge/gigdispatch/core/availability"
	"github.com/soundbridge/gigdispatch/core/dispatch"
	"github.com/soundbridge/gigdispatch/core/ledger"
	"github.com/soundbridge/gigdispatch/core/metrics"
	"github.com/soundbridge/gigdispatch/infra/mqtt"
	"github.com/soundbridge/gigdispatch/jobs/sweeper"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr       string `json:"addr"`
	Production bool   `json:"production"`
}

// SetDefaults fills the listen address.
func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// AuthConfig holds the JWT settings.
type AuthConfig struct {
	Secret   string `json:"secret"`
	TokenTTL string `json:"token_ttl"`
}

// Validate checks that a signing secret is present.
func (c AuthConfig) Validate() error {
	if c.Secret == "" {
		return fmt.Errorf("auth.secret is required")
	}
	return nil
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend string `json:"backend"` // "memory" or "sqlite"
	Path    string `json:"path"`
}

// SetDefaults fills the backend choice.
func (c *StorageConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Backend == "sqlite" && c.Path == "" {
		c.Path = "gigdispatch.db"
	}
}

// Validate rejects unknown backends.
func (c StorageConfig) Validate() error {
	switch c.Backend {
	case "memory", "sqlite":
		return nil
	default:
		return fmt.Errorf("unsupported storage backend: %s", c.Backend)
	}
}

// NotifierConfig selects the push transport.
type NotifierConfig struct {
	Backend string `json:"backend"` // "mqtt" or "mock"
}

// SetDefaults fills the transport choice.
func (c *NotifierConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "mqtt"
	}
}

// Validate rejects unknown transports.
func (c NotifierConfig) Validate() error {
	switch c.Backend {
	case "mqtt", "mock":
		return nil
	default:
		return fmt.Errorf("unsupported notifier backend: %s", c.Backend)
	}
}

type Config struct {
	Server       ServerConfig        `json:"server"`
	Auth         AuthConfig          `json:"auth"`
	Storage      StorageConfig       `json:"storage"`
	Notifier     NotifierConfig      `json:"notifier"`
	MQTT         mqtt.Config         `json:"mqtt"`
	Dispatch     dispatch.Config     `json:"dispatch"`
	Availability availability.Config `json:"availability"`
	Fees         ledger.FeeSchedule  `json:"fees"`
	Metrics      metrics.Config      `json:"metrics"`
	Sweeper      sweeper.Config      `json:"sweeper"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("GD_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "gd_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Server.SetDefaults()
	cfg.Storage.SetDefaults()
	cfg.Notifier.SetDefaults()
	cfg.Dispatch.SetDefaults()
	cfg.Availability.SetDefaults()
	cfg.Fees.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.Sweeper.SetDefaults()
	if err := cfg.Auth.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Notifier.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
