// Package config provides configuration management for the controller.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Load reads, unmarshals, applies environment overrides to, and
// validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	if err := cfg.validateRelational(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Capture.FPS == 0 {
		c.Capture.FPS = 60
	}
	if c.Processors.Smoothing.RollingHistory == 0 {
		c.Processors.Smoothing.RollingHistory = 2
	}
	if c.Processors.Smoothing.FFTBins == 0 {
		c.Processors.Smoothing.FFTBins = 24
	}
	if c.Processors.Smoothing.MaxFrequency == 0 {
		c.Processors.Smoothing.MaxFrequency = 12000
	}
	if c.Processors.Smoothing.MinVolumeThreshold == 0 {
		c.Processors.Smoothing.MinVolumeThreshold = 1e-7
	}
	if c.Processors.Idle.Threshold == 0 {
		c.Processors.Idle.Threshold = 0.1
	}
	if c.Network.Broker.ServiceName == "" {
		c.Network.Broker.ServiceName = "partylights"
	}
}

// applyEnvOverrides lets a small set of per-deployment fields be
// overridden without editing the YAML file.
func (c *Config) applyEnvOverrides() {
	if v := getEnv("PARTYLIGHTS_CAPTURE_DEVICE", ""); v != "" {
		c.Capture.Device = v
	}
	if v := getEnvInt("PARTYLIGHTS_BROKER_PORT", 0); v != 0 {
		c.Network.Broker.Port = v
	}
	if v := getEnvInt("PARTYLIGHTS_OPS_PORT", 0); v != 0 {
		c.Network.Ops.Port = v
	}
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default value.
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// validateRelational checks the cross-field invariants struct tags
// can't express: duplicate names, lights referencing undefined types
// or devices, and mapping entries referencing undefined lights.
func (c *Config) validateRelational() error {
	devices := make(map[string]bool, len(c.DMXDevices))
	for _, d := range c.DMXDevices {
		if devices[d.Name] {
			return fmt.Errorf("duplicate dmx device name %q", d.Name)
		}
		devices[d.Name] = true
		if d.Kind == "udp" && d.Address == "" {
			return fmt.Errorf("dmx device %q: kind udp requires address", d.Name)
		}
	}

	names := make(map[string]bool, len(c.Lights))
	for _, l := range c.Lights {
		if names[l.Name] {
			return fmt.Errorf("duplicate light name %q", l.Name)
		}
		names[l.Name] = true
		if _, ok := c.LightTypes[l.Type]; !ok {
			return fmt.Errorf("light %q: unknown type %q", l.Name, l.Type)
		}
		if !devices[l.Device] {
			return fmt.Errorf("light %q: unknown device %q", l.Name, l.Device)
		}
	}

	for lightName, m := range c.Mapping {
		if !names[lightName] {
			return fmt.Errorf("mapping %q: no such light", lightName)
		}
		for linked := range m.Links {
			if !names[linked] {
				return fmt.Errorf("mapping %q: link to unknown light %q", lightName, linked)
			}
		}
	}

	return nil
}
