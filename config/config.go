// Package config loads and saves the demo driver's settings from
// ~/.config/synesthetica/config.json.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// MIDIConfig controls which input ports auto-connect.
type MIDIConfig struct {
	PreferredPatterns []string `json:"preferredPatterns,omitempty"`
	ExcludedPatterns  []string `json:"excludedPatterns,omitempty"`
}

// MeterConfig is the prescribed time signature, if any.
type MeterConfig struct {
	Beats int `json:"beats"`
	Unit  int `json:"unit"`
}

// Config is the main configuration structure. Tempo/meter here are the
// externally prescribed values the pipeline measures against; zero/nil
// means none.
type Config struct {
	CanvasWidth  float64      `json:"canvasWidth,omitempty"`
	CanvasHeight float64      `json:"canvasHeight,omitempty"`
	Seed         int64        `json:"seed,omitempty"`
	Horizon      float64      `json:"horizon,omitempty"`
	Tempo        float64      `json:"tempo,omitempty"`
	Meter        *MeterConfig `json:"meter,omitempty"`
	PalettePath  string       `json:"palettePath,omitempty"`
	MIDI         MIDIConfig   `json:"midi,omitempty"`
	Debug        bool         `json:"debug,omitempty"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		CanvasWidth:  320,
		CanvasHeight: 200,
		Seed:         1,
		Horizon:      0.5,
		MIDI: MIDIConfig{
			ExcludedPatterns: []string{"Midi Through", "Through Port", "Dummy"},
		},
	}
}

// ConfigDir returns the config directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "synesthetica"), nil
}

// ConfigPath returns the full path to config.json.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to disk.
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
