package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"optimouse/internal/buttons"
	"optimouse/internal/store"
)

// Config is the top-level YAML configuration for the optimouse simulator.
//
// Keep defaults and validation centralized so the rest of the code can assume
// a well-formed config.
type Config struct {
	// Where button and tracking levels come from
	Input InputConfig `yaml:"input"`

	// Host poll cadence and tick advance
	Tick TickConfig `yaml:"tick"`

	// Raw contact mode and debounce policy
	Debounce DebounceConfig `yaml:"debounce"`

	// Persisted parameters
	Store StoreConfig `yaml:"store"`

	// Simulated sensor
	Sensor SensorConfig `yaml:"sensor"`

	// IPC control socket
	IPC IPCConfig `yaml:"ipc"`

	// State websocket
	StateWS StateWSConfig `yaml:"state_ws"`

	// Lua scenario (input.source = script)
	Script ScriptConfig `yaml:"script"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type InputConfig struct {
	Source  string   `yaml:"source"`            // evdev, tty, script or none
	Devices []string `yaml:"devices,omitempty"` // keyboards read by the evdev source
}

type TickConfig struct {
	IntervalUS int `yaml:"interval_us"`
	Increment  int `yaml:"increment"`
}

type DebounceConfig struct {
	Raw        bool   `yaml:"raw"`         // feed contact levels through the debouncer
	Policy     string `yaml:"policy"`      // schmitt or timed
	DelayTicks int    `yaml:"delay_ticks"` // timed policy only
}

type StoreConfig struct {
	Path string `yaml:"path"` // .yaml, .yml or .toml; empty keeps params in memory
}

type SensorConfig struct {
	SyntheticMotion bool `yaml:"synthetic_motion"` // report motion while tracking
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"` // empty disables the socket
}

type StateWSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Port       int    `yaml:"port"`
	Path       string `yaml:"path"`
	SendBuf    int    `yaml:"send_buf,omitempty"`
	CoalesceMS int    `yaml:"coalesce_ms"`
}

type ScriptConfig struct {
	Path  string `yaml:"path"`
	Trace bool   `yaml:"trace"` // print every frame as a JSON line
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"` // required to see logs with the tty source
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	return Config{
		Input: InputConfig{
			Source:  inputTTY,
			Devices: []string{"/dev/input/event0"},
		},
		Tick: TickConfig{
			IntervalUS: defaultTickIntervalUS,
			Increment:  8,
		},
		Debounce: DebounceConfig{
			Raw:    false,
			Policy: buttons.PolicySchmitt.String(),
		},
		Sensor: SensorConfig{
			SyntheticMotion: true,
		},
		IPC: IPCConfig{
			SocketPath: defaultSocketPath,
		},
		StateWS: StateWSConfig{
			Enabled:    true,
			Port:       defaultStateWSPort,
			Path:       defaultStateWSPath,
			CoalesceMS: defaultCoalesceMS,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of the defaults.
// Unknown fields are rejected via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides holds flag values to apply on top of a loaded config.
// Each override is only applied if its pointer is non-nil.
type FlagOverrides struct {
	InputSource *string
	InputDevice *string

	TickIntervalUS *int
	TickIncrement  *int

	Raw            *bool
	DebouncePolicy *string

	StorePath *string

	IPCSocketPath *string
	StateWSPort   *int

	ScriptPath  *string
	ScriptTrace *bool

	LogLevel *string
	LogFile  *string
}

// Apply merges the overrides into cfg. If the pointer is non-nil, the value is
// applied (even if it is a zero value).
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.InputSource != nil {
		cfg.Input.Source = *o.InputSource
	}
	if o.InputDevice != nil {
		cfg.Input.Devices = []string{*o.InputDevice}
	}

	if o.TickIntervalUS != nil {
		cfg.Tick.IntervalUS = *o.TickIntervalUS
	}
	if o.TickIncrement != nil {
		cfg.Tick.Increment = *o.TickIncrement
	}

	if o.Raw != nil {
		cfg.Debounce.Raw = *o.Raw
	}
	if o.DebouncePolicy != nil {
		cfg.Debounce.Policy = *o.DebouncePolicy
	}

	if o.StorePath != nil {
		cfg.Store.Path = *o.StorePath
	}

	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.StateWSPort != nil {
		cfg.StateWS.Port = *o.StateWSPort
		cfg.StateWS.Enabled = *o.StateWSPort > 0
	}

	if o.ScriptPath != nil {
		cfg.Script.Path = *o.ScriptPath
		if *o.ScriptPath != "" && o.InputSource == nil {
			cfg.Input.Source = inputScript
		}
	}
	if o.ScriptTrace != nil {
		cfg.Script.Trace = *o.ScriptTrace
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.LogFile != nil {
		cfg.Logging.File = *o.LogFile
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Call it after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	// Input
	switch c.Input.Source {
	case inputEvdev:
		if len(c.Input.Devices) == 0 {
			return errors.New("input.devices must not be empty for the evdev source")
		}
		for i, dev := range c.Input.Devices {
			if dev == "" {
				return fmt.Errorf("input.devices[%d] is empty", i)
			}
		}
	case inputScript:
		if c.Script.Path == "" {
			return errors.New("input.source is script but script.path is empty")
		}
	case inputTTY, inputNone:
	default:
		return fmt.Errorf("input.source must be one of %s, %s, %s, %s", inputEvdev, inputTTY, inputScript, inputNone)
	}

	// Tick
	if c.Tick.IntervalUS <= 0 || c.Tick.IntervalUS > 1_000_000 {
		return errors.New("tick.interval_us must be between 1 and 1000000")
	}
	if c.Tick.Increment <= 0 || c.Tick.Increment > 255 {
		return errors.New("tick.increment must be between 1 and 255")
	}

	// Debounce
	if _, err := buttons.ParsePolicy(c.Debounce.Policy); err != nil {
		return fmt.Errorf("debounce.policy: %w", err)
	}
	if c.Debounce.DelayTicks < 0 || c.Debounce.DelayTicks > 0x7fff {
		return errors.New("debounce.delay_ticks must be between 0 and 32767")
	}

	// Store
	if c.Store.Path != "" {
		if _, err := store.FormatFromPath(c.Store.Path); err != nil {
			return fmt.Errorf("store.path: %w", err)
		}
	}

	// State websocket
	if c.StateWS.Enabled {
		if c.StateWS.Port <= 0 || c.StateWS.Port > 65535 {
			return errors.New("state_ws.port must be between 1 and 65535")
		}
		if c.StateWS.Path == "" || c.StateWS.Path[0] != '/' {
			return errors.New("state_ws.path must start with /")
		}
		if c.StateWS.CoalesceMS < 0 {
			return errors.New("state_ws.coalesce_ms must be >= 0")
		}
	}

	// Logging
	if c.Logging.Level == "" {
		return errors.New("logging.level must not be empty")
	}
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// TickInterval returns the wall-clock period of one host poll.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Tick.IntervalUS) * time.Microsecond
}

// CoalesceWindow returns the frame coalescing window of the state websocket.
func (c *Config) CoalesceWindow() time.Duration {
	return time.Duration(c.StateWS.CoalesceMS) * time.Millisecond
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
