package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tonearm/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatalf("expected exists=false for %s", resolved)
	}
	if cfg.Cache.MaxAgeDays != 30 {
		t.Fatalf("expected default max_age_days 30, got %d", cfg.Cache.MaxAgeDays)
	}
	if cfg.Verification.MaxRetries != 3 {
		t.Fatalf("expected default max_retries 3, got %d", cfg.Verification.MaxRetries)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[logging]
format = "JSON"
level = "Debug"

[cache]
max_age_days = 7
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected normalized format json, got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected normalized level debug, got %q", cfg.Logging.Level)
	}
	if cfg.Cache.MaxAgeDays != 7 {
		t.Fatalf("expected max_age_days 7, got %d", cfg.Cache.MaxAgeDays)
	}
	if cfg.Cache.RetainAccessCount != 3 {
		t.Fatalf("expected defaulted retain_access_count 3, got %d", cfg.Cache.RetainAccessCount)
	}
	if !filepath.IsAbs(cfg.Paths.DataDir) {
		t.Fatalf("expected absolute data dir, got %q", cfg.Paths.DataDir)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"bad format", "[logging]\nformat = \"xml\"\n", "logging.format"},
		{"bad level", "[logging]\nlevel = \"verbose\"\n", "logging.level"},
		{"negative retries", "[verification]\nmax_retries = -1\n", "max_retries"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tc.name, " ", "_")+".toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	if err := config.CreateSample(path); err == nil {
		t.Fatal("expected error when sample already exists")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[verification]") {
		t.Fatal("sample config missing [verification] section")
	}
}

func TestDatabasePath(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = "/tmp/tonearm-test"
	if got := cfg.DatabasePath(); got != filepath.Join("/tmp/tonearm-test", "cache.db") {
		t.Fatalf("unexpected database path %q", got)
	}
}
