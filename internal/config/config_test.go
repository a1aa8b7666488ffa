package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/EditMySave/HyOS-sub001/internal/provider"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("HYTALE_STATE_DIR", "/data/.state")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ModsDir != "/data/mods" {
		t.Errorf("ModsDir = %q, want /data/mods", cfg.ModsDir)
	}
	if cfg.Providers.Timeout != 10*time.Second {
		t.Errorf("Providers.Timeout = %s, want 10s", cfg.Providers.Timeout)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("HYTALE_SERVER_HOST", "game")
	t.Setenv("HYTALE_SERVER_PORT", "9090")
	t.Setenv("REST_API_CLIENT_SECRET", "shh")
	t.Setenv("CURSEFORGE_API_KEY", "cf-key")
	t.Setenv("NEXUSMODS_API_KEY", "nx-key")
	t.Setenv("MODTALE_API_KEY", "")
	t.Setenv("HYOS_MODS_DIR", "/srv/mods")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Host != "game" || cfg.Server.Port != 9090 || cfg.Server.ClientSecret != "shh" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.ModsDir != "/srv/mods" {
		t.Errorf("ModsDir = %q, want /srv/mods", cfg.ModsDir)
	}

	keys := cfg.EnvKeys()
	if keys[provider.CurseForge] != "cf-key" || keys[provider.NexusMods] != "nx-key" || keys[provider.Modtale] != "" {
		t.Errorf("EnvKeys = %v", keys)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "hyos.yaml")
	data := []byte(`state_dir: /opt/hytale/.state
log_level: debug
providers:
  timeout: 3s
  modtale:
    base_url: http://localhost:9999/api/v1
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ModsDir != "/opt/hytale/mods" {
		t.Errorf("ModsDir = %q", cfg.ModsDir)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Providers.Timeout != 3*time.Second {
		t.Errorf("Providers.Timeout = %s, want 3s", cfg.Providers.Timeout)
	}
	if got := cfg.BaseURLs()[provider.Modtale]; got != "http://localhost:9999/api/v1" {
		t.Errorf("modtale base URL = %q", got)
	}
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("HYOS_PROVIDERS_TIMEOUT", "0s")

	if _, err := Load(""); err == nil {
		t.Error("expected error for zero timeout")
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}
