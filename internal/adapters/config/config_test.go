package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Broker != "" || cfg.Aliases == nil {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	path := filepath.Join(dir, "kp", "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	data := `broker = "mqtt://nas:1883"
identity = "laptop"

[aliases]
den = "kp:card:den"

[defaults]
card = "den"

[tls]
ca = "/etc/kp/ca.pem"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Broker != "mqtt://nas:1883" || cfg.Identity != "laptop" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Aliases["den"] != "kp:card:den" || cfg.Defaults.Card != "den" {
		t.Fatalf("unexpected aliases/defaults %+v", cfg)
	}
	if cfg.TLS.CA != "/etc/kp/ca.pem" {
		t.Fatalf("unexpected tls %+v", cfg.TLS)
	}
}

func TestLoadRejectsDirectory(t *testing.T) {
	if _, err := LoadFile(t.TempDir()); err == nil {
		t.Fatalf("expected error for directory")
	}
}
