package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_EmptyPathIsDefaults(t *testing.T) {
	// WHAT: no config file means full production defaults, including the
	// standard schedule table.
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8090" {
		t.Fatalf("addr = %s", cfg.Addr)
	}
	if cfg.FetchDelay() != 2*time.Second {
		t.Fatalf("fetch delay = %v", cfg.FetchDelay())
	}
	if len(cfg.Schedules) != 8 {
		t.Fatalf("schedules = %d, want 8", len(cfg.Schedules))
	}
}

func TestLoad_FileOverridesAndDefaultsFillGaps(t *testing.T) {
	// WHAT: a partial YAML file overrides what it names; everything else
	// falls back to defaults.
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
addr: ":9000"
base_url: "https://market.example.com"
fetch:
  delay_ms: 500
tracking:
  apps: [popups, banners]
  keywords: ["exit intent"]
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9000" {
		t.Fatalf("addr = %s", cfg.Addr)
	}
	if cfg.BaseURL != "https://market.example.com" {
		t.Fatalf("base url = %s", cfg.BaseURL)
	}
	if cfg.FetchDelay() != 500*time.Millisecond {
		t.Fatalf("fetch delay = %v", cfg.FetchDelay())
	}
	// Unset knobs fall back.
	if cfg.Fetch.MaxRetries != 3 {
		t.Fatalf("max retries = %d", cfg.Fetch.MaxRetries)
	}
	if cfg.Queue.MaxAttempts != 3 {
		t.Fatalf("max attempts = %d", cfg.Queue.MaxAttempts)
	}
	if len(cfg.Schedules) != 8 {
		t.Fatalf("schedules = %d", len(cfg.Schedules))
	}
	if len(cfg.Tracking.Apps) != 2 || cfg.Tracking.Keywords[0] != "exit intent" {
		t.Fatalf("tracking = %+v", cfg.Tracking)
	}
}

func TestLoad_BadYAMLFails(t *testing.T) {
	// WHAT: malformed YAML is a load error, not silently defaulted.
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("addr: [unclosed"), 0o644)
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
