package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func TestLoadConfigDefaults(t *testing.T) {
	chdirTemp(t)
	for _, key := range []string{"API_BASE_URL", "PAGE_SIZE", "HTTP_TIMEOUT", "REFRESH_SCHEDULE", "CONFIG_FILE", "PORT"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.APIBaseURL != DefaultAPIBaseURL {
		t.Errorf("APIBaseURL = %q, want %q", cfg.APIBaseURL, DefaultAPIBaseURL)
	}
	if cfg.PageSize != DefaultPageSize {
		t.Errorf("PageSize = %d, want %d", cfg.PageSize, DefaultPageSize)
	}
	if cfg.HTTPTimeout != DefaultHTTPTimeout {
		t.Errorf("HTTPTimeout = %v, want %v", cfg.HTTPTimeout, DefaultHTTPTimeout)
	}
	if cfg.RefreshSchedule != "" {
		t.Errorf("RefreshSchedule = %q, want empty", cfg.RefreshSchedule)
	}
	if cfg.Port != "8000" {
		t.Errorf("Port = %q, want 8000", cfg.Port)
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("API_BASE_URL", "http://api.example.test/")
	t.Setenv("PAGE_SIZE", "10")
	t.Setenv("HTTP_TIMEOUT", "2s")
	t.Setenv("REFRESH_SCHEDULE", "@every 1m")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.APIBaseURL != "http://api.example.test" {
		t.Errorf("APIBaseURL = %q, trailing slash should be trimmed", cfg.APIBaseURL)
	}
	if cfg.PageSize != 10 {
		t.Errorf("PageSize = %d, want 10", cfg.PageSize)
	}
	if cfg.HTTPTimeout != 2*time.Second {
		t.Errorf("HTTPTimeout = %v, want 2s", cfg.HTTPTimeout)
	}
	if cfg.RefreshSchedule != "@every 1m" {
		t.Errorf("RefreshSchedule = %q", cfg.RefreshSchedule)
	}
}

func TestLoadConfigInvalidPageSize(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PAGE_SIZE", "0")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for PAGE_SIZE=0")
	}
}

func TestLoadConfigReadsYAMLFile(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("REFRESH_SCHEDULE", "")

	doc := `refresh_schedule: "@every 15s"
seed_requests:
  - title: Leaking faucet
    description: Room 301
    category: Plumbing
    priority: High
  - title: Broken chair
    description: Lobby
`
	path := filepath.Join(dir, "tracker.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.RefreshSchedule != "@every 15s" {
		t.Errorf("RefreshSchedule = %q, want @every 15s", cfg.RefreshSchedule)
	}
	if len(cfg.SeedRequests) != 2 {
		t.Fatalf("len(SeedRequests) = %d, want 2", len(cfg.SeedRequests))
	}
	first := cfg.SeedRequests[0]
	if first.Category == nil || *first.Category != "Plumbing" {
		t.Errorf("first seed category = %v, want Plumbing", first.Category)
	}
	if cfg.SeedRequests[1].Category != nil {
		t.Errorf("second seed category = %v, want nil", *cfg.SeedRequests[1].Category)
	}
}

func TestLoadConfigFileEnvironmentWins(t *testing.T) {
	t.Setenv("REFRESH_SCHEDULE", "@every 5s")
	cfg := &Config{RefreshSchedule: "@every 5s"}

	if err := LoadConfigFile(strings.NewReader(`refresh_schedule: "@hourly"`), cfg); err != nil {
		t.Fatalf("LoadConfigFile() error = %v", err)
	}
	if cfg.RefreshSchedule != "@every 5s" {
		t.Errorf("RefreshSchedule = %q, environment should win", cfg.RefreshSchedule)
	}
}

func TestAllowedOrigins(t *testing.T) {
	cfg := &Config{CORSAllowedOrigins: "http://a.test, http://b.test,,"}
	got := cfg.AllowedOrigins()
	if len(got) != 2 || got[0] != "http://a.test" || got[1] != "http://b.test" {
		t.Errorf("AllowedOrigins() = %v", got)
	}
}
