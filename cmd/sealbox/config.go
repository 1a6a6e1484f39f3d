package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type config struct {
	// BackendURL is the backend project's root URL.
	BackendURL string `toml:"backend_url"`

	// APIKey is the project's public API key.
	APIKey string `toml:"api_key"`

	// AccessToken is the authenticated user's bearer token.
	AccessToken string `toml:"access_token"`

	// UserID is the local user's identity.
	UserID string `toml:"user_id"`

	// Bucket is the attachment storage bucket. Defaults to chat-media.
	Bucket string `toml:"bucket"`

	// DataDir holds the device-local key store. Defaults to a data directory
	// next to the config file.
	DataDir string `toml:"data_dir"`
}

func loadConfig(path string) (*config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	if cfg.BackendURL == "" || cfg.APIKey == "" || cfg.UserID == "" {
		return nil, fmt.Errorf("config %s: backend_url, api_key, and user_id are required", path)
	}

	if cfg.Bucket == "" {
		cfg.Bucket = "chat-media"
	}

	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(filepath.Dir(path), "data")
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, err
	}

	return &cfg, nil
}
