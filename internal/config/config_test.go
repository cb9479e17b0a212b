package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultMatchesDocumentedValues(t *testing.T) {
	d := Default()
	if d.Transport.ConfigNum != 1 || d.Transport.InterfaceNum != 0 {
		t.Errorf("Transport defaults = %+v", d.Transport)
	}
	if d.Retry.MaxAttempts != 3 || d.Retry.Delay != time.Second || d.Retry.MaxErrorThreshold != 5 {
		t.Errorf("Retry defaults = %+v", d.Retry)
	}
	if d.Timeouts.StreamQuiet != 3*time.Second {
		t.Errorf("Timeouts.StreamQuiet = %v, want 3s", d.Timeouts.StreamQuiet)
	}
	if d.CachePath != "jensen-cache.json" {
		t.Errorf("CachePath = %q", d.CachePath)
	}
}

func TestLoadWithMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Retry.MaxAttempts != Default().Retry.MaxAttempts {
		t.Errorf("expected defaults when the file is missing, got %+v", cfg.Retry)
	}
}

func TestLoadAppliesYAMLFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jensen.yaml")
	yaml := "cache_path: /var/lib/jensen/cache.json\nretry:\n  max_attempts: 7\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CachePath != "/var/lib/jensen/cache.json" {
		t.Errorf("CachePath = %q, want the YAML override", cfg.CachePath)
	}
	if cfg.Retry.MaxAttempts != 7 {
		t.Errorf("Retry.MaxAttempts = %d, want 7", cfg.Retry.MaxAttempts)
	}
	// Values not overridden by the file retain their defaults.
	if cfg.Timeouts.StreamQuiet != Default().Timeouts.StreamQuiet {
		t.Errorf("Timeouts.StreamQuiet = %v, want default preserved", cfg.Timeouts.StreamQuiet)
	}
}

func TestLoadAppliesEnvVarOverridesWithDoubleUnderscoreNesting(t *testing.T) {
	t.Setenv("JENSEN_RETRY__MAX_ATTEMPTS", "9")
	t.Setenv("JENSEN_CACHE_PATH", "/tmp/from-env.json")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Retry.MaxAttempts != 9 {
		t.Errorf("Retry.MaxAttempts = %d, want 9 from JENSEN_RETRY__MAX_ATTEMPTS", cfg.Retry.MaxAttempts)
	}
	if cfg.CachePath != "/tmp/from-env.json" {
		t.Errorf("CachePath = %q, want env override", cfg.CachePath)
	}
}

func TestLoadEnvOverridesTakePrecedenceOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jensen.yaml")
	if err := os.WriteFile(path, []byte("retry:\n  max_attempts: 4\n"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	t.Setenv("JENSEN_RETRY__MAX_ATTEMPTS", "11")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Retry.MaxAttempts != 11 {
		t.Errorf("Retry.MaxAttempts = %d, want 11 (env must win over file)", cfg.Retry.MaxAttempts)
	}
}
