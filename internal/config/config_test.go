package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Alerts.Enabled {
		t.Error("alerts enabled by default")
	}
	if cfg.Alerts.SMTPSecurity != "starttls" {
		t.Errorf("smtp security = %q, want starttls", cfg.Alerts.SMTPSecurity)
	}
	if cfg.Alerts.RequestTimeout != 5*time.Second {
		t.Errorf("request timeout = %v, want 5s", cfg.Alerts.RequestTimeout)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
addr = ":9090"

[alerts]
enabled = true
recipients = ["a@example.com", "b@example.com"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("addr = %q, want :9090", cfg.Server.Addr)
	}
	if !cfg.Alerts.Enabled {
		t.Error("alerts.enabled not loaded")
	}
	if len(cfg.Alerts.Recipients) != 2 {
		t.Errorf("recipients = %v, want 2 entries", cfg.Alerts.Recipients)
	}
	// Untouched keys keep their defaults.
	if cfg.SQLite.Path != "pulsegrid.db" {
		t.Errorf("sqlite path = %q, want default", cfg.SQLite.Path)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PULSEGRID_SERVER_ADDR", ":7070")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("addr = %q, want :7070 from env", cfg.Server.Addr)
	}
}
