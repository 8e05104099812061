package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config controls how niftiorient rewrites a volume, loaded from an
// optional YAML file.
type Config struct {
	Orientation struct {
		// Canonical reorients the grid axes to line up with the world
		// axes, all running positive ("closest RAS").
		Canonical bool `yaml:"canonical"`
	} `yaml:"orientation"`

	Output struct {
		// Datatype is the on-disk sample type of the output, e.g.
		// "float32" or "int16". Empty keeps the input's type.
		Datatype string `yaml:"datatype"`

		// Descrip replaces the header description when non-empty.
		Descrip string `yaml:"descrip"`
	} `yaml:"output"`
}

// DefaultConfig returns the configuration used when no file is given:
// canonical reorientation, input datatype kept.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Orientation.Canonical = true
	return cfg
}

// LoadConfig reads a YAML configuration file over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
