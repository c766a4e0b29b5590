// Package config loads the nstest driver process configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ardnew/softchar/driver"
	"github.com/ardnew/softchar/feed"
	"github.com/ardnew/softchar/pkg"
)

// Config is the complete driver process configuration.
type Config struct {
	Socket     string         `yaml:"socket"`      // unix socket clients connect to
	Log        LogConfig      `yaml:"log"`
	BufferSize int            `yaml:"buffer_size"` // default per-device buffer
	Category   string         `yaml:"category"`    // default category
	Devices    []DeviceConfig `yaml:"devices"`
}

// LogConfig selects log verbosity and encoding.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// DeviceConfig describes one device and its producers.
type DeviceConfig struct {
	Name       string         `yaml:"name"`
	BufferSize int            `yaml:"buffer_size,omitempty"`
	Category   string         `yaml:"category,omitempty"`
	FIFO       string         `yaml:"fifo,omitempty"` // named pipe feeding the device
	Drop       bool           `yaml:"drop,omitempty"` // drop bytes on overrun instead of retrying
	Pattern    *PatternConfig `yaml:"pattern,omitempty"`
}

// PatternConfig configures a synthetic input generator.
type PatternConfig struct {
	Text     string        `yaml:"text"`
	Interval time.Duration `yaml:"interval"`
	Limit    int           `yaml:"limit"` // 0 means unlimited
}

// DefaultSocket returns the socket path used when none is configured.
func DefaultSocket() string {
	return filepath.Join(os.TempDir(), driver.Name+".sock")
}

// Default returns the configuration used when no file is given: one
// device, "uart0", with no producers.
func Default() *Config {
	return &Config{
		Socket:     DefaultSocket(),
		Log:        LogConfig{Level: "warn", Format: "text"},
		BufferSize: driver.DefaultBufferSize,
		Category:   driver.DefaultCategory,
		Devices:    []DeviceConfig{{Name: "uart0"}},
	}
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration over the defaults and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate reports every problem found in cfg.
func Validate(cfg *Config) error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format+": %w", append(args, pkg.ErrInvalidParameter)...))
	}

	if cfg.Socket == "" {
		bad("socket is empty")
	}
	if _, err := pkg.ParseLogLevel(cfg.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "", "text", "json":
	default:
		bad("log format %q", cfg.Log.Format)
	}
	if cfg.BufferSize <= 0 {
		bad("buffer_size %d", cfg.BufferSize)
	}
	if len(cfg.Devices) == 0 {
		bad("no devices")
	}

	seen := make(map[string]bool, len(cfg.Devices))
	for i, dev := range cfg.Devices {
		switch {
		case dev.Name == "":
			bad("devices[%d]: name is empty", i)
		case strings.Contains(dev.Name, "/"):
			bad("devices[%d]: name %q contains '/'", i, dev.Name)
		case seen[dev.Name]:
			bad("devices[%d]: duplicate name %q", i, dev.Name)
		}
		seen[dev.Name] = true

		if dev.BufferSize < 0 {
			bad("device %s: buffer_size %d", dev.Name, dev.BufferSize)
		}
		if p := dev.Pattern; p != nil {
			if p.Text == "" {
				bad("device %s: pattern text is empty", dev.Name)
			}
			if p.Interval <= 0 {
				bad("device %s: pattern interval %v", dev.Name, p.Interval)
			}
			if p.Limit < 0 {
				bad("device %s: pattern limit %d", dev.Name, p.Limit)
			}
		}
	}
	return errors.Join(errs...)
}

// Driver returns the driver settings described by cfg.
func (cfg *Config) Driver() driver.Config {
	dc := driver.Config{
		BufferSize: cfg.BufferSize,
		Category:   cfg.Category,
		Devices:    make(map[string]driver.DeviceConfig, len(cfg.Devices)),
	}
	for _, dev := range cfg.Devices {
		dc.Devices[dev.Name] = driver.DeviceConfig{
			BufferSize: dev.BufferSize,
			Category:   dev.Category,
		}
	}
	return dc
}

// LogLevel returns the parsed log level. Call Validate first.
func (cfg *Config) LogLevel() slog.Level {
	level, _ := pkg.ParseLogLevel(cfg.Log.Level)
	return level
}

// LogFormat returns the configured log encoding.
func (cfg *Config) LogFormat() pkg.LogFormat {
	return pkg.ParseLogFormat(strings.ToLower(cfg.Log.Format))
}

// PumpOptions returns the FIFO pump settings for the device.
func (d DeviceConfig) PumpOptions() feed.PumpOptions {
	return feed.PumpOptions{Drop: d.Drop}
}

// Generator returns the device's pattern generator, if one is configured.
func (d DeviceConfig) Generator() (feed.Pattern, bool) {
	if d.Pattern == nil {
		return feed.Pattern{}, false
	}
	return feed.Pattern{
		Data:     []byte(d.Pattern.Text),
		Interval: d.Pattern.Interval,
		Limit:    d.Pattern.Limit,
	}, true
}
