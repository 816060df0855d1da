package config

// Config is the host configuration: defaults, then config.yaml in the user
// directory, then RACK_* environment variables, then command-line flags.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Engine  EngineConfig  `yaml:"engine"`
	UI      UIConfig      `yaml:"ui"`
	Bridge  BridgeConfig  `yaml:"bridge"`
	MIDI    MIDIConfig    `yaml:"midi"`
	Plugins PluginsConfig `yaml:"plugins"`
	Input   InputConfig   `yaml:"input"`
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level string `yaml:"level" env:"RACK_LOG_LEVEL"`
}

// EngineConfig defines the processing cadence.
type EngineConfig struct {
	SampleRate int `yaml:"sample_rate" env:"RACK_SAMPLE_RATE"`
	BlockSize  int `yaml:"block_size" env:"RACK_BLOCK_SIZE"`
	// InboxSize bounds queued external-control writes between blocks.
	InboxSize int `yaml:"inbox_size" env:"RACK_ENGINE_INBOX"`
}

// UIConfig defines terminal UI behaviour.
type UIConfig struct {
	KnobSpeed float64 `yaml:"knob_speed" env:"RACK_KNOB_SPEED"`
	// RowsPerRange is how many terminal rows of vertical drag sweep a knob's full range.
	RowsPerRange float64 `yaml:"rows_per_range" env:"RACK_ROWS_PER_RANGE"`
}

// BridgeConfig defines the HTTP bridge transport.
type BridgeConfig struct {
	Enabled bool   `yaml:"enabled" env:"RACK_BRIDGE_ENABLED"`
	Listen  string `yaml:"listen" env:"RACK_BRIDGE_LISTEN"`
	// Token, when set, is required as a bearer token on every route but /healthz.
	Token string `yaml:"token" env:"RACK_BRIDGE_TOKEN"`
}

// MIDIConfig maps control-change messages to parameters.
type MIDIConfig struct {
	Mappings []CCMapping `yaml:"mappings"`
}

// CCMapping binds one MIDI CC to a parameter.
type CCMapping struct {
	Channel    uint8  `yaml:"channel"`
	Controller uint8  `yaml:"controller"`
	Param      string `yaml:"param"`
}

// InputConfig overrides UI key bindings, keyed by action name
// (quit, save, next, prev, increase, decrease, help).
type InputConfig struct {
	Keys map[string][]string `yaml:"keys"`
}

// PluginsConfig lists extra plugin roots scanned after the system and user ones.
type PluginsConfig struct {
	Dirs []string `yaml:"dirs"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Engine: EngineConfig{
			SampleRate: 48000,
			BlockSize:  256,
			InboxSize:  256,
		},
		UI: UIConfig{
			KnobSpeed:    1.0,
			RowsPerRange: 20,
		},
		Bridge: BridgeConfig{
			Enabled: false,
			Listen:  "127.0.0.1:2600",
		},
	}
}
