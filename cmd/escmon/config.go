package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the bench setup.
type Config struct {
	// Port is the control link serial device. Empty probes the
	// usual device nodes.
	Port string `yaml:"port"`
	// Pins are the motor GPIO pins on the target, in motor order.
	Pins []int `yaml:"pins"`
	// PowerPin names the host GPIO switching the thruster power
	// rail, e.g. GPIO17. Empty disables power control.
	PowerPin string `yaml:"power_pin"`
	// Listen is the WebSocket dashboard address. Empty disables
	// the server.
	Listen string `yaml:"listen"`
	// Capture is the CBOR telemetry capture path. Empty disables
	// capture.
	Capture string `yaml:"capture"`

	Ramp RampConfig `yaml:"ramp"`
}

// RampConfig describes the bench ramp profile.
type RampConfig struct {
	Enabled bool `yaml:"enabled"`
	// Peak is the fractional throttle the ramp reaches.
	Peak      float64 `yaml:"peak"`
	DurationS int     `yaml:"duration_s"`
	PauseMs   int     `yaml:"pause_ms"`
}

func defaultConfig() Config {
	return Config{
		Pins: []int{6, 7, 8, 9, 18, 19, 20, 21},
		Ramp: RampConfig{
			Peak:      0.5,
			DurationS: 6,
			PauseMs:   500,
		},
	}
}

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Ramp.Peak < 0 || cfg.Ramp.Peak > 1 {
		return cfg, fmt.Errorf("%s: ramp peak %g outside [0, 1]", path, cfg.Ramp.Peak)
	}
	return cfg, nil
}
