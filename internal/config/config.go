// Package config loads the router's YAML settings file and applies
// MAVLINK_SHOUTER_* environment overrides on top of it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/jwidauer/mavlink-shouter/internal/endpoint"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "MAVLINK_SHOUTER_"

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Router configures the routing plane.
type Router struct {
	// ChannelSize bounds each endpoint's broadcast subscription; a sender
	// that falls further behind loses its oldest frames.
	ChannelSize int `yaml:"channel_size,omitempty"`
}

// API configures the optional status HTTP server. An empty address disables
// it.
type API struct {
	Address string `yaml:"address,omitempty"`
}

// Settings is the full configuration of one router process.
type Settings struct {
	// Definitions is the path to the root MAVLink XML dialect file.
	Definitions string              `yaml:"definitions"`
	Log         Log                 `yaml:"log,omitempty"`
	Router      Router              `yaml:"router,omitempty"`
	API         API                 `yaml:"api,omitempty"`
	Endpoints   []endpoint.Settings `yaml:"endpoints"`
}

const defaultChannelSize = 10000

// Load reads the settings file, applies defaults and environment overrides,
// and validates the result.
func Load(path string) (Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("reading config %q: %w", path, err)
	}

	var settings Settings
	if err := yaml.Unmarshal(raw, &settings); err != nil {
		return Settings{}, fmt.Errorf("parsing config %q: %w", path, err)
	}

	settings.applyDefaults()
	if err := settings.applyEnv(); err != nil {
		return Settings{}, err
	}
	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

func (s *Settings) applyDefaults() {
	if s.Log.Level == "" {
		s.Log.Level = "info"
	}
	if s.Log.Format == "" {
		s.Log.Format = "text"
	}
	if s.Router.ChannelSize == 0 {
		s.Router.ChannelSize = defaultChannelSize
	}
}

// applyEnv overrides scalar settings from the environment. The endpoint list
// stays file-only.
func (s *Settings) applyEnv() error {
	if v, ok := os.LookupEnv(EnvPrefix + "DEFINITIONS"); ok {
		s.Definitions = v
	}
	if v, ok := os.LookupEnv(EnvPrefix + "LOG_LEVEL"); ok {
		s.Log.Level = v
	}
	if v, ok := os.LookupEnv(EnvPrefix + "LOG_FORMAT"); ok {
		s.Log.Format = v
	}
	if v, ok := os.LookupEnv(EnvPrefix + "API_ADDRESS"); ok {
		s.API.Address = v
	}
	if v, ok := os.LookupEnv(EnvPrefix + "ROUTER_CHANNEL_SIZE"); ok {
		size, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %sROUTER_CHANNEL_SIZE: %w", EnvPrefix, err)
		}
		s.Router.ChannelSize = size
	}
	return nil
}

// Validate checks the settings for startup-fatal mistakes.
func (s *Settings) Validate() error {
	if s.Definitions == "" {
		return errors.New("config: definitions path is required")
	}
	if len(s.Endpoints) == 0 {
		return errors.New("config: at least one endpoint is required")
	}
	seen := make(map[string]struct{}, len(s.Endpoints))
	for i, ep := range s.Endpoints {
		if ep.Name == "" {
			return fmt.Errorf("config: endpoint %d has no name", i)
		}
		if _, ok := seen[ep.Name]; ok {
			return fmt.Errorf("config: duplicate endpoint name %q", ep.Name)
		}
		seen[ep.Name] = struct{}{}
		if err := ep.Kind.Validate(); err != nil {
			return fmt.Errorf("config: endpoint %q: %w", ep.Name, err)
		}
	}
	return nil
}
