package config

import (
	"time"

	"github.com/mklimuk/visca/transport"
)

func Defaults() *Config {
	return &Config{
		Camera: CameraConfig{
			Host:    "192.168.0.100",
			Port:    transport.DefaultTCPPort,
			Timeout: 5 * time.Second,
			Serial: SerialConfig{
				BaudRate: transport.DefaultBaudRate,
			},
		},
		Reconnect: ReconnectConfig{
			Enabled:  true,
			MinDelay: time.Second,
			MaxDelay: 10 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
