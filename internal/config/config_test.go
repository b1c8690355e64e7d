package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("EXTRACTION_TIMEOUT_SECONDS", "")
	t.Setenv("NATS_SUBJECT", "")
	t.Setenv("COMMIT_WORKERS", "")

	cfg := Load()
	if cfg.ExtractionTimeoutSeconds != 120 {
		t.Fatalf("expected default extraction timeout 120, got %d", cfg.ExtractionTimeoutSeconds)
	}
	if cfg.NATSSubject != "imports.completed" {
		t.Fatalf("expected default subject, got %q", cfg.NATSSubject)
	}
	if cfg.CommitWorkers != 3 {
		t.Fatalf("expected default commit workers 3, got %d", cfg.CommitWorkers)
	}
	if cfg.EmailAuthWaitSeconds != 600 {
		t.Fatalf("expected default auth wait 600, got %d", cfg.EmailAuthWaitSeconds)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("EXTRACTION_TIMEOUT_SECONDS", "45")
	t.Setenv("PROVISIONING_RPS", "2.5")
	t.Setenv("WORKSPACE_ID", "ws-42")

	cfg := Load()
	if cfg.ExtractionTimeoutSeconds != 45 {
		t.Fatalf("expected timeout override, got %d", cfg.ExtractionTimeoutSeconds)
	}
	if cfg.ProvisioningRPS != 2.5 {
		t.Fatalf("expected rps override, got %v", cfg.ProvisioningRPS)
	}
	if cfg.WorkspaceID != "ws-42" {
		t.Fatalf("expected workspace override, got %q", cfg.WorkspaceID)
	}
}

func TestLoadYAMLFileBelowEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "EXTRACTION_URL: http://file-host:9000\nLOG_LEVEL: debug\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("EXTRACTION_URL", "")
	t.Setenv("LOG_LEVEL", "warn")

	cfg := Load()
	if cfg.ExtractionURL != "http://file-host:9000" {
		t.Fatalf("expected file value when env unset, got %q", cfg.ExtractionURL)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("env must win over file, got %q", cfg.LogLevel)
	}
}

func TestLoadIgnoresMalformedInt(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("COMMIT_WORKERS", "lots")

	cfg := Load()
	if cfg.CommitWorkers != 3 {
		t.Fatalf("malformed int must fall back to default, got %d", cfg.CommitWorkers)
	}
}
