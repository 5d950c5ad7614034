package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all promptmemo configuration.
type Config struct {
	DBPath string       `yaml:"db_path"`
	Cache  CacheConfig  `yaml:"cache"`
	Remote RemoteConfig `yaml:"remote"`
}

// CacheConfig selects the cache a run should use. Mode is "default" (the
// persistent store at db_path), "memory" (a non-persistent cache, never
// flushed to disk), or "off" (no caching).
type CacheConfig struct {
	Mode           string `yaml:"mode"`
	DeferredWrites bool   `yaml:"deferred_writes"`
	Service        string `yaml:"service"`
}

// RemoteConfig controls the optional remote cache service.
type RemoteConfig struct {
	Enabled bool          `yaml:"enabled"`
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		DBPath: "promptmemo.db",
		Cache: CacheConfig{
			Mode: "default",
		},
		Remote: RemoteConfig{
			Timeout: 30 * time.Second,
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}
