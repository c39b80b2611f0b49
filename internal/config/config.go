// Package config loads the filltrack configuration.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration for filltrack.
type Config struct {
	Gateway  GatewayConfig  `json:"gateway"`
	Storage  StorageConfig  `json:"storage"`
	Events   EventsConfig   `json:"events"`
	Notify   NotifyConfig   `json:"notify"`
	Auth     AuthConfig     `json:"auth"`
	Briefing BriefingConfig `json:"briefing"`
	Workflow WorkflowConfig `json:"workflow"`
}

// GatewayConfig holds the gateway server settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// StorageConfig holds the sqlite database settings.
type StorageConfig struct {
	Path string `json:"path"`
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	BufferSize int `json:"buffer_size"`
}

// NotifyConfig holds change-notifier settings.
type NotifyConfig struct {
	// Debounce coalesces bursts of row events into one refetch.
	Debounce Duration `json:"debounce,omitempty"`
}

// AuthConfig holds session settings.
type AuthConfig struct {
	// ProfileTimeout bounds the member-profile lookup during login; on
	// expiry the login proceeds with a degraded session user.
	ProfileTimeout Duration `json:"profile_timeout,omitempty"`
}

// BriefingConfig configures the AI text provider.
type BriefingConfig struct {
	Driver    string         `json:"driver"` // "ollama" or "openai"
	Model     string         `json:"model"`
	BaseURL   string         `json:"base_url,omitempty"`
	APIKey    string         `json:"api_key,omitempty"` // direct value or ${VAR}
	MaxTokens int            `json:"max_tokens,omitempty"`
	Timeout   Duration       `json:"timeout,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
	// Cron enables the scheduled morning briefing when set (5-field spec).
	Cron string `json:"cron,omitempty"`
}

// WorkflowConfig points at the checklist template.
type WorkflowConfig struct {
	TemplatePath string `json:"template_path,omitempty"`
}

// Duration wraps time.Duration for JSON unmarshaling.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// BasePath returns the filltrack data directory ($FILLTRACK_PATH or
// ~/.filltrack).
func BasePath() string {
	if p := os.Getenv("FILLTRACK_PATH"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".filltrack"
	}
	return filepath.Join(home, ".filltrack")
}

// ConfigPath returns the default config file location.
func ConfigPath() string {
	return filepath.Join(BasePath(), "config.jsonc")
}

// DotenvPath returns the default .env location.
func DotenvPath() string {
	return filepath.Join(BasePath(), ".env")
}
