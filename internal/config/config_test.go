package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBBackend != DatabaseSQLite {
		t.Fatalf("expected sqlite default backend, got %q", cfg.DBBackend)
	}
	if cfg.PlayerBackend != PlayerMPV {
		t.Fatalf("expected mpv default player, got %q", cfg.PlayerBackend)
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Fatalf("unexpected default poll interval: %s", cfg.PollInterval)
	}
	if cfg.QueueBufferSize != 5 {
		t.Fatalf("unexpected default buffer size: %d", cfg.QueueBufferSize)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HEARTH_PLAYER_BACKEND", "vlc")
	t.Setenv("HEARTH_VLC_ADDR", "10.0.0.5:4212")
	t.Setenv("HEARTH_POLL_INTERVAL", "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.PlayerBackend != PlayerVLC {
		t.Fatalf("expected vlc player backend, got %q", cfg.PlayerBackend)
	}
	if cfg.VLCAddr != "10.0.0.5:4212" {
		t.Fatalf("unexpected vlc addr: %q", cfg.VLCAddr)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Fatalf("unexpected poll interval: %s", cfg.PollInterval)
	}
}

func TestLoadRejectsUnknownPlayerBackend(t *testing.T) {
	t.Setenv("HEARTH_PLAYER_BACKEND", "winamp")
	if _, err := Load(); err == nil {
		t.Fatal("expected unknown player backend to be rejected")
	}
}

func TestLoadConfigFileWithEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hearthtv.yml")
	body := []byte("media_root: /srv/media\nhttp_port: 9090\nlogo_enabled: true\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("HEARTH_CONFIG_FILE", path)
	t.Setenv("HEARTH_HTTP_PORT", "8088")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.MediaRoot != "/srv/media" {
		t.Fatalf("expected media root from file, got %q", cfg.MediaRoot)
	}
	if !cfg.LogoEnabled {
		t.Fatal("expected logo enabled from file")
	}
	if cfg.HTTPPort != 8088 {
		t.Fatalf("env should override file, got port %d", cfg.HTTPPort)
	}
}
