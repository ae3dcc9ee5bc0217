// Package config handles configuration file loading and parsing.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/jmylchreest/sysnotify/internal/model"
	"github.com/jmylchreest/sysnotify/internal/procscan"
	"github.com/jmylchreest/sysnotify/internal/session"
)

// Default configuration values.
const (
	DefaultConfigPath = "/etc/sysnotify/config.toml"
	DefaultAppName    = "sysnotify"
	DefaultUrgency    = "normal"
)

// ConfigEnv overrides the default config path.
const ConfigEnv = "SYSNOTIFY_CONFIG"

// Duration is a time.Duration that can be unmarshaled from human-readable strings.
// Supports formats like "5s", "1m", "1h30m", or integer milliseconds.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '5s', '1m', '1h30m' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Config represents the sysnotify configuration.
type Config struct {
	Scan         ScanConfig         `toml:"scan"`
	Dispatch     DispatchConfig     `toml:"dispatch"`
	Notification NotificationConfig `toml:"notification"`
}

// ScanConfig controls how session bus daemons are found.
type ScanConfig struct {
	ProcPath    string `toml:"proc_path"`    // procfs mount point
	BusBinary   string `toml:"bus_binary"`   // basename of the bus daemon
	SessionFlag string `toml:"session_flag"` // argument marking a per-user instance
}

// DispatchConfig controls delivery into each session.
type DispatchConfig struct {
	Confine bool     `toml:"confine"` // chroot into sessions with their own root
	Timeout Duration `toml:"timeout"` // per-session delivery timeout, 0 = none
}

// NotificationConfig holds defaults for the send command.
type NotificationConfig struct {
	AppName       string `toml:"app_name"`
	Icon          string `toml:"icon"`
	Urgency       string `toml:"urgency"`        // low, normal, critical
	ExpireTimeout int    `toml:"expire_timeout"` // milliseconds, -1 = server default
	Category      string `toml:"category"`
}

// Validation errors.
var (
	ErrEmptyProcPath    = errors.New("scan.proc_path cannot be empty")
	ErrEmptyBusBinary   = errors.New("scan.bus_binary cannot be empty")
	ErrEmptySessionFlag = errors.New("scan.session_flag cannot be empty")
	ErrNegativeTimeout  = errors.New("dispatch.timeout cannot be negative")
)

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Scan: ScanConfig{
			ProcPath:    procscan.DefaultProcPath,
			BusBinary:   session.DefaultBusBinary,
			SessionFlag: session.DefaultSessionFlag,
		},
		Dispatch: DispatchConfig{
			Confine: true,
			Timeout: 0,
		},
		Notification: NotificationConfig{
			AppName:       DefaultAppName,
			Urgency:       DefaultUrgency,
			ExpireTimeout: model.ExpireDefault,
		},
	}
}

// ConfigPath returns the path to the config file.
// Uses SYSNOTIFY_CONFIG if set, otherwise /etc/sysnotify/config.toml.
func ConfigPath() string {
	if path := os.Getenv(ConfigEnv); path != "" {
		return path
	}
	return DefaultConfigPath
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Scan.ProcPath == "" {
		return ErrEmptyProcPath
	}
	if c.Scan.BusBinary == "" {
		return ErrEmptyBusBinary
	}
	if c.Scan.SessionFlag == "" {
		return ErrEmptySessionFlag
	}
	if c.Dispatch.Timeout < 0 {
		return ErrNegativeTimeout
	}
	if _, err := model.ParseUrgency(c.Notification.Urgency); err != nil {
		return err
	}
	if c.Notification.ExpireTimeout < model.ExpireDefault {
		return model.ErrInvalidExpire
	}
	return nil
}

// Encode writes the configuration to w as TOML.
func (c *Config) Encode(w io.Writer) error {
	enc := toml.NewEncoder(w)
	enc.SetIndentTables(true)
	return enc.Encode(c)
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := c.Encode(&buf); err != nil {
		return err
	}

	return os.WriteFile(path, buf.Bytes(), 0644)
}
