// Package config loads the YAML configuration of the visca tool: where the
// camera is, how to reconnect, how verbose to log and which custom messages
// the user declared.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mklimuk/visca"
	"github.com/mklimuk/visca/port"
	"github.com/mklimuk/visca/transport"
)

var ErrInvalid = errors.New("invalid configuration")

type SerialConfig struct {
	Device   string `yaml:"device"`   // "/dev/ttyUSB0", "COM3"
	BaudRate int    `yaml:"baudrate"` // 9600 on most cameras
}

type CameraConfig struct {
	Host    string        `yaml:"host"`
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
	// Serial takes precedence over Host when Device is set.
	Serial SerialConfig `yaml:"serial"`
}

type ReconnectConfig struct {
	Enabled  bool          `yaml:"enabled"`
	MinDelay time.Duration `yaml:"min_delay"`
	MaxDelay time.Duration `yaml:"max_delay"`
}

type LogConfig struct {
	Level   string `yaml:"level"` // debug, info, warn, error
	Verbose bool   `yaml:"verbose"`
}

type Config struct {
	Camera    CameraConfig    `yaml:"camera"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Log       LogConfig       `yaml:"log"`
	Commands  []CommandConfig `yaml:"commands"`
	Inquiries []InquiryConfig `yaml:"inquiries"`
}

// Load reads the file at path over the defaults. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse yaml %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Camera.Serial.Device == "" && c.Camera.Host == "" {
		return fmt.Errorf("%w: camera host or serial device is required", ErrInvalid)
	}
	if c.Camera.Port <= 0 || c.Camera.Port > 65535 {
		return fmt.Errorf("%w: camera port %d out of range", ErrInvalid, c.Camera.Port)
	}
	if c.Reconnect.MinDelay <= 0 || c.Reconnect.MaxDelay < c.Reconnect.MinDelay {
		return fmt.Errorf("%w: reconnect delays must satisfy 0 < min_delay <= max_delay", ErrInvalid)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses the configured log level.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(c.Log.Level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: log level %q", ErrInvalid, c.Log.Level)
	}
	return l, nil
}

// Dialer returns the transport the camera is reachable through.
func (c *Config) Dialer() visca.Dialer {
	if c.Camera.Serial.Device != "" {
		return transport.Serial{Device: c.Camera.Serial.Device, BaudRate: c.Camera.Serial.BaudRate}
	}
	return transport.TCP{Host: c.Camera.Host, Port: c.Camera.Port, Timeout: c.Camera.Timeout}
}

// PortOpts translates the reconnect policy into port options.
func (c *Config) PortOpts() []port.Opt {
	return []port.Opt{
		port.WithAutoReconnect(c.Reconnect.Enabled),
		port.WithReconnectDelay(c.Reconnect.MinDelay, c.Reconnect.MaxDelay),
	}
}
