package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

var (
	ErrNoConfig       = errors.New("config file not found")
	ErrNoAPIKey       = errors.New("api_key not set in config")
	ErrInvalidJSON    = errors.New("invalid config JSON")
	ErrInvalidTimeout = errors.New("inactivity_timeout_seconds must be positive")
)

// Config holds the global weft configuration.
type Config struct {
	APIKey       string `json:"api_key"`
	BaseURL      string `json:"base_url"`
	DefaultModel string `json:"default_model"`
	OutputDir    string `json:"output_dir"` // Where finalized files are written (default: ./weft-out)

	// InactivityTimeoutSeconds bounds the gap between stream frames before the
	// session is treated as failed (default: 60).
	InactivityTimeoutSeconds *int `json:"inactivity_timeout_seconds"`

	SaveFiles *bool `json:"save_files"` // Write finalized files to OutputDir (default: true)
}

// Load reads the config from ~/.config/weft/config.json.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(homeDir, ".config", "weft", "config.json")
	return LoadFrom(configPath)
}

// LoadFrom reads the config from a specific path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoConfig
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, ErrInvalidJSON
	}

	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	// Set defaults
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.example.com/v1"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "anthropic/claude-sonnet-4"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "weft-out"
	}
	if cfg.InactivityTimeoutSeconds == nil {
		n := 60
		cfg.InactivityTimeoutSeconds = &n
	}
	if cfg.SaveFiles == nil {
		t := true
		cfg.SaveFiles = &t
	}
	if *cfg.InactivityTimeoutSeconds <= 0 {
		return nil, ErrInvalidTimeout
	}

	return &cfg, nil
}
