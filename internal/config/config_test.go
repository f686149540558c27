package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "remail.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.SMTP.Listen != ":2525" {
		t.Errorf("SMTP.Listen = %q, want :2525", cfg.SMTP.Listen)
	}
	if cfg.SMTP.Hostname == "" {
		t.Error("SMTP.Hostname is empty")
	}
	if cfg.HTTP.Listen != ":3000" {
		t.Errorf("HTTP.Listen = %q, want :3000", cfg.HTTP.Listen)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("Store.Driver = %q, want memory", cfg.Store.Driver)
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("SlogLevel() = %v, want info", cfg.SlogLevel())
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
smtp:
  listen: ":25"
  hostname: mail.example.com
  max_line_length: 8192
  reverse_dns: true
http:
  listen: ":8080"
store:
  driver: sqlite
  path: /tmp/emails.db
logging:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.SMTP.Listen != ":25" {
		t.Errorf("SMTP.Listen = %q, want :25", cfg.SMTP.Listen)
	}
	if cfg.SMTP.Hostname != "mail.example.com" {
		t.Errorf("SMTP.Hostname = %q, want mail.example.com", cfg.SMTP.Hostname)
	}
	if cfg.SMTP.MaxLineLength != 8192 {
		t.Errorf("SMTP.MaxLineLength = %d, want 8192", cfg.SMTP.MaxLineLength)
	}
	if !cfg.SMTP.ReverseDNS {
		t.Error("SMTP.ReverseDNS = false, want true")
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.Path != "/tmp/emails.db" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v, want debug", cfg.SlogLevel())
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
smtp:
  listen: ":25"
`)

	t.Setenv("SMTP_LISTEN", ":2626")
	t.Setenv("SMTP_HOSTNAME", "env.example.com")
	t.Setenv("SMTP_MAX_LINE_LENGTH", "1000")
	t.Setenv("STORE_DRIVER", "spool")
	t.Setenv("STORE_PATH", "/tmp/emails.spool")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.SMTP.Listen != ":2626" {
		t.Errorf("SMTP.Listen = %q, want :2626", cfg.SMTP.Listen)
	}
	if cfg.SMTP.Hostname != "env.example.com" {
		t.Errorf("SMTP.Hostname = %q, want env.example.com", cfg.SMTP.Hostname)
	}
	if cfg.SMTP.MaxLineLength != 1000 {
		t.Errorf("SMTP.MaxLineLength = %d, want 1000", cfg.SMTP.MaxLineLength)
	}
	if cfg.Store.Driver != "spool" || cfg.Store.Path != "/tmp/emails.spool" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.SlogLevel() != slog.LevelWarn {
		t.Errorf("SlogLevel() = %v, want warn", cfg.SlogLevel())
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown driver", content: "store:\n  driver: postgres\n"},
		{name: "sqlite without path", content: "store:\n  driver: sqlite\n"},
		{name: "unknown log level", content: "logging:\n  level: loud\n"},
		{name: "bad yaml", content: "store: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := Load(path); err == nil {
				t.Fatal("Load succeeded, want error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load succeeded, want error")
	}
}
