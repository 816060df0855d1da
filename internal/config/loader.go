package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load builds the configuration from defaults, the optional YAML file at
// path, and RACK_* environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// defaults only
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), cfg); err != nil {
				return nil, fmt.Errorf("failed to parse YAML %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Log.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error (got %q)", cfg.Log.Level)
	}

	if cfg.Engine.SampleRate < 8000 || cfg.Engine.SampleRate > 768000 {
		return fmt.Errorf("engine.sample_rate out of range: %d", cfg.Engine.SampleRate)
	}
	if cfg.Engine.BlockSize <= 0 || cfg.Engine.BlockSize&(cfg.Engine.BlockSize-1) != 0 {
		return fmt.Errorf("engine.block_size must be a positive power of two (got %d)", cfg.Engine.BlockSize)
	}
	if cfg.Engine.InboxSize <= 0 {
		return fmt.Errorf("engine.inbox_size must be positive")
	}

	if cfg.UI.KnobSpeed <= 0 {
		return fmt.Errorf("ui.knob_speed must be positive")
	}
	if cfg.UI.RowsPerRange <= 0 {
		return fmt.Errorf("ui.rows_per_range must be positive")
	}

	if cfg.Bridge.Enabled {
		if cfg.Bridge.Listen == "" {
			return fmt.Errorf("bridge.listen is required when the bridge is enabled")
		}
		if envVarPattern.MatchString(cfg.Bridge.Listen) {
			return fmt.Errorf("bridge.listen: unresolved environment variable")
		}
	}

	for i, m := range cfg.MIDI.Mappings {
		if m.Channel > 15 {
			return fmt.Errorf("midi.mappings[%d].channel must be 0-15 (got %d)", i, m.Channel)
		}
		if m.Controller > 127 {
			return fmt.Errorf("midi.mappings[%d].controller must be 0-127 (got %d)", i, m.Controller)
		}
		if m.Param == "" {
			return fmt.Errorf("midi.mappings[%d].param is required", i)
		}
	}
	return nil
}
