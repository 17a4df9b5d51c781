// Package model defines shared configuration structures used to initialize the ground station.
// It includes the link settings, the telemetry schema, command shortcuts, logging and relay options.
package model

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport names accepted in link.transport.
const (
	TransportSerial = "serial"
	TransportFile   = "file"
)

// Serial driver names accepted in link.serial.driver.
const (
	DriverBugst = "bugst"
	DriverTarm  = "tarm"
)

// Default retry budgets: a physical port gives up quickly, a replay file
// keeps going so it survives being rewritten.
const (
	DefaultSerialRetries = 10
	DefaultFileRetries   = 99999
)

// DefaultReadTimeout bounds one serial read when read_timeout_ms is unset.
const DefaultReadTimeout = 100 * time.Millisecond

// Config represents the root structure loaded from configs/groundstation.yml.
type Config struct {
	Link     LinkConfig      `yaml:"link"`
	Schema   []Field         `yaml:"schema"`
	Commands []CommandConfig `yaml:"commands"`
	Log      LogConfig       `yaml:"log"`
	Relay    RelayConfig     `yaml:"relay"`
}

// LinkConfig selects and tunes the telemetry transport.
type LinkConfig struct {
	Transport   string       `yaml:"transport"` // serial or file
	Serial      SerialConfig `yaml:"serial"`
	File        FileConfig   `yaml:"file"`
	Retry       RetryConfig  `yaml:"retry"`
	EventBuffer int          `yaml:"event_buffer"`
}

// SerialConfig defines the physical port.
type SerialConfig struct {
	Device        string `yaml:"device"`
	Baud          int    `yaml:"baud"`
	Driver        string `yaml:"driver"`          // bugst (go.bug.st/serial) or tarm (tarm/serial)
	ReadTimeoutMs int    `yaml:"read_timeout_ms"` // how long one read waits for data
}

// FileConfig defines a replay log.
type FileConfig struct {
	Path           string `yaml:"path"`
	LineIntervalMs int    `yaml:"line_interval_ms"` // pacing between replayed lines
}

// RetryConfig bounds reconnect attempts. Zero MaxRetries picks the transport default.
type RetryConfig struct {
	MaxRetries int `yaml:"max_retries"`
	DelayMs    int `yaml:"delay_ms"`
}

// CommandConfig is a labelled uplink shortcut.
type CommandConfig struct {
	Label   string `yaml:"label"`
	Command string `yaml:"command"`
}

// LogConfig configures the communications log and the application log.
type LogConfig struct {
	Enabled    bool   `yaml:"enabled"`
	RawFile    string `yaml:"raw_file"`
	CSVFile    string `yaml:"csv_file"`
	AppFile    string `yaml:"app_file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	Debug      bool   `yaml:"debug"`
}

// RelayConfig configures the HTTP/websocket relay. An empty Addr disables it.
type RelayConfig struct {
	Addr   string `yaml:"addr"`
	DBPath string `yaml:"db_path"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Link: LinkConfig{
			Transport: TransportSerial,
			Serial: SerialConfig{
				Device:        "/dev/ttyUSB0",
				Baud:          115200,
				Driver:        DriverBugst,
				ReadTimeoutMs: int(DefaultReadTimeout / time.Millisecond),
			},
			File:        FileConfig{LineIntervalMs: 250},
			Retry:       RetryConfig{DelayMs: 500},
			EventBuffer: 256,
		},
		Schema:   DefaultFields(),
		Commands: DefaultCommands(),
		Log: LogConfig{
			RawFile:    "defaultRaw.txt",
			CSVFile:    "defaultCSV.csv",
			MaxSizeMB:  50,
			MaxBackups: 5,
		},
		Relay: RelayConfig{DBPath: "tmp/telemetry.db"},
	}
}

// DefaultCommands are the uplink shortcuts of the flight command panels.
func DefaultCommands() []CommandConfig {
	return []CommandConfig{
		{"Arm for launch", "ARM"},
		{"Un-Arm", "STATE/0"},
		{"Soft Reset", "RESET"},
		{"Hard Reset", "HARD_RESET"},
		{"Calibrate IMU", "CAL_IMU"},
		{"Calibrate Barometer", "CAL_ALT"},
		{"Close Release", "CLOSE"},
		{"Open Release", "ABORT"},
		{"Start Camera", "CAMON"},
		{"Stop Camera", "CAMOFF"},
		{"Start PID", "PIDSTART"},
		{"Stop PID", "PIDSTOP"},
		{"Fast TX Rate", "RATE/100"},
		{"Slow TX Rate", "RATE/1000"},
		{"EMERGENCY RELEASE", "STATE/4"},
	}
}

// LoadConfig reads the YAML file at path over the defaults, applies
// environment overrides and validates the result. An empty path uses
// defaults only.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	ApplyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides lets deployments pick the port or replay file without editing YAML.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CANSATGS_PORT"); v != "" {
		cfg.Link.Transport = TransportSerial
		cfg.Link.Serial.Device = v
	}
	if v := os.Getenv("CANSATGS_BAUD"); v != "" {
		if baud, err := strconv.Atoi(v); err == nil {
			cfg.Link.Serial.Baud = baud
		}
	}
	if v := os.Getenv("CANSATGS_REPLAY_FILE"); v != "" {
		cfg.Link.Transport = TransportFile
		cfg.Link.File.Path = v
	}
}

// Validate checks the fields the link and classifier depend on.
func (c *Config) Validate() error {
	var errs []error
	switch c.Link.Transport {
	case TransportSerial:
		if c.Link.Serial.Device == "" {
			errs = append(errs, errors.New("link.serial.device is required"))
		}
		if c.Link.Serial.Baud <= 0 {
			errs = append(errs, fmt.Errorf("link.serial.baud must be positive, got %d", c.Link.Serial.Baud))
		}
		switch c.Link.Serial.Driver {
		case "", DriverBugst, DriverTarm:
		default:
			errs = append(errs, fmt.Errorf("unknown link.serial.driver %q", c.Link.Serial.Driver))
		}
	case TransportFile:
		if c.Link.File.Path == "" {
			errs = append(errs, errors.New("link.file.path is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown link.transport %q", c.Link.Transport))
	}
	if c.Link.Retry.MaxRetries < 0 {
		errs = append(errs, errors.New("link.retry.max_retries must not be negative"))
	}
	if len(c.Schema) == 0 {
		errs = append(errs, errors.New("schema must declare at least one field"))
	}
	for i, f := range c.Schema {
		if f.Name == "" {
			errs = append(errs, fmt.Errorf("schema[%d] has no name", i))
		}
	}
	return errors.Join(errs...)
}

// MaxRetries returns the configured budget or the transport default.
func (l LinkConfig) MaxRetries() int {
	if l.Retry.MaxRetries > 0 {
		return l.Retry.MaxRetries
	}
	if l.Transport == TransportFile {
		return DefaultFileRetries
	}
	return DefaultSerialRetries
}

// RetryDelay is the pause between reconnect attempts.
func (l LinkConfig) RetryDelay() time.Duration {
	return time.Duration(l.Retry.DelayMs) * time.Millisecond
}

// ReadTimeout is the serial read window; unset means DefaultReadTimeout.
func (s SerialConfig) ReadTimeout() time.Duration {
	if s.ReadTimeoutMs <= 0 {
		return DefaultReadTimeout
	}
	return time.Duration(s.ReadTimeoutMs) * time.Millisecond
}

// LineInterval is the replay pacing delay; zero for serial links.
func (l LinkConfig) LineInterval() time.Duration {
	if l.Transport != TransportFile {
		return 0
	}
	return time.Duration(l.File.LineIntervalMs) * time.Millisecond
}

// SchemaDef builds the runtime schema from the configured fields.
func (c *Config) SchemaDef() Schema { return NewSchema(c.Schema...) }

// CommandFor resolves a shortcut label to its command text.
func (c *Config) CommandFor(label string) (string, bool) {
	for _, cmd := range c.Commands {
		if cmd.Label == label {
			return cmd.Command, true
		}
	}
	return "", false
}
