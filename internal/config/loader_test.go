package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadJSONC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.jsonc")
	content := `{
		// gateway settings
		"gateway": { "host": "0.0.0.0", "port": 9000 },
		"briefing": {
			"driver": "openai",
			"model": "gpt-4o-mini",
			"api_key": "${FILLTRACK_TEST_KEY}",
			"timeout": "30s",
		},
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FILLTRACK_TEST_KEY", "sk-test")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Gateway.Host != "0.0.0.0" || cfg.Gateway.Port != 9000 {
		t.Errorf("gateway: %+v", cfg.Gateway)
	}
	if cfg.Briefing.APIKey != "sk-test" {
		t.Errorf("api key not expanded: %q", cfg.Briefing.APIKey)
	}
	if cfg.Briefing.Timeout.Duration() != 30*time.Second {
		t.Errorf("timeout: %v", cfg.Briefing.Timeout.Duration())
	}

	// Defaults applied for unset sections.
	if cfg.Events.BufferSize != 1024 {
		t.Errorf("events buffer default: %d", cfg.Events.BufferSize)
	}
	if cfg.Notify.Debounce.Duration() == 0 {
		t.Error("notify debounce default missing")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.jsonc")); err == nil {
		t.Fatal("expected error for missing config")
	}
}

func TestLoadDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nFILLTRACK_DOTENV_A=one\nFILLTRACK_DOTENV_B=\"two\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("FILLTRACK_DOTENV_A", "preset")

	if err := LoadDotenv(path); err != nil {
		t.Fatalf("LoadDotenv: %v", err)
	}
	if got := os.Getenv("FILLTRACK_DOTENV_A"); got != "preset" {
		t.Errorf("existing var overridden: %q", got)
	}
	if got := os.Getenv("FILLTRACK_DOTENV_B"); got != "two" {
		t.Errorf("quoted value: %q", got)
	}
	os.Unsetenv("FILLTRACK_DOTENV_B")

	// Missing file is not an error.
	if err := LoadDotenv(filepath.Join(t.TempDir(), "none")); err != nil {
		t.Fatalf("missing dotenv: %v", err)
	}
}
