package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nvs.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Storage.Backend != "memory" {
		t.Errorf("storage.backend = %q, want memory", c.Storage.Backend)
	}
	if c.Storage.Path != "./data/nvs" {
		t.Errorf("storage.path = %q", c.Storage.Path)
	}
	if c.Server.Addr != ":8080" {
		t.Errorf("server.addr = %q", c.Server.Addr)
	}
	if c.Log.Level != "info" || c.Log.Format != "text" {
		t.Errorf("log = %+v", c.Log)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
[storage]
backend = "bolt"
path = "/var/lib/nvs"

[log]
level = "debug"
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Storage.Backend != "bolt" || c.Storage.Path != "/var/lib/nvs" {
		t.Fatalf("storage = %+v", c.Storage)
	}
	if c.Server.Addr != ":8080" {
		t.Fatalf("server.addr = %q, want default", c.Server.Addr)
	}
	level, err := c.Log.SlogLevel()
	if err != nil || level != slog.LevelDebug {
		t.Fatalf("SlogLevel() = %v, %v", level, err)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeFile(t, `
[storage]
backend = "bolt"
`)
	t.Setenv("NVS_STORAGE_BACKEND", "sqlite")
	t.Setenv("NVS_SERVER_ADDR", "127.0.0.1:9090")
	t.Setenv("NVS_LOG_FORMAT", "json")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Storage.Backend != "sqlite" {
		t.Errorf("storage.backend = %q, want sqlite", c.Storage.Backend)
	}
	if c.Server.Addr != "127.0.0.1:9090" {
		t.Errorf("server.addr = %q", c.Server.Addr)
	}
	if c.Log.Format != "json" {
		t.Errorf("log.format = %q", c.Log.Format)
	}

	opts := c.StorageOptions()
	if opts.Backend != "sqlite" || opts.Path != "./data/nvs" {
		t.Errorf("StorageOptions() = %+v", opts)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"backend", "NVS_STORAGE_BACKEND", "flash"},
		{"level", "NVS_LOG_LEVEL", "loud"},
		{"format", "NVS_LOG_FORMAT", "xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := Load(""); !errors.Is(err, ErrInvalid) {
				t.Fatalf("Load() error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("Load() with a missing file succeeded")
	}
}
