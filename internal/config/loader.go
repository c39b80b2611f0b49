package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/tailscale/hujson"
)

var envTemplateRe = regexp.MustCompile(`\$\{(\w+)\}`)

// Load reads a JSONC config file, expands ${VAR} environment references,
// unmarshals it into Config, and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand env references before stripping comments, since they live in strings.
	expanded := expandEnv(string(data))

	std, err := hujson.Standardize([]byte(expanded))
	if err != nil {
		return nil, fmt.Errorf("standardize config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(std, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a config with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// expandEnv replaces ${VAR} with the environment value.
func expandEnv(s string) string {
	return envTemplateRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envTemplateRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Gateway.Host == "" {
		cfg.Gateway.Host = "127.0.0.1"
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 18530
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = filepath.Join(BasePath(), "filltrack.db")
	}
	if cfg.Events.BufferSize == 0 {
		cfg.Events.BufferSize = 1024
	}
	if cfg.Notify.Debounce.Duration() == 0 {
		cfg.Notify.Debounce = Duration(100 * time.Millisecond)
	}
	if cfg.Auth.ProfileTimeout.Duration() == 0 {
		cfg.Auth.ProfileTimeout = Duration(10 * time.Second)
	}
	if cfg.Briefing.Driver == "" {
		cfg.Briefing.Driver = "ollama"
	}
	if cfg.Briefing.Model == "" {
		cfg.Briefing.Model = "qwen3"
	}
	if cfg.Briefing.Timeout.Duration() == 0 {
		cfg.Briefing.Timeout = Duration(60 * time.Second)
	}
}
