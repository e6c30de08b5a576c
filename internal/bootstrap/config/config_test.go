package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), writeConfig(t, "app:\n  env: test\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.App.Name != "caseflow" || cfg.App.Env != "test" {
		t.Fatalf("app = %#v", cfg.App)
	}
	if cfg.Monitor.Schedule != "@every 60s" || !cfg.Monitor.Enabled || cfg.Monitor.LockTTL != 50*time.Second {
		t.Fatalf("monitor = %#v", cfg.Monitor)
	}
	if cfg.HTTP.ReadTimeout != 15*time.Second || cfg.HTTP.Addr != ":8080" {
		t.Fatalf("http = %#v", cfg.HTTP)
	}
	if cfg.Cache.Driver != "sql" || cfg.Blob.Provider != "none" || cfg.Events.Driver != "memory" {
		t.Fatalf("drivers = %#v %#v %#v", cfg.Cache, cfg.Blob, cfg.Events)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CF_DATABASE_DSN", "/tmp/override.sqlite")
	t.Setenv("CF_MONITOR_BATCH_SIZE", "25")

	cfg, err := Load(context.Background(), writeConfig(t, "database:\n  dsn: from-file.sqlite\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.DSN != "/tmp/override.sqlite" {
		t.Fatalf("dsn = %q", cfg.Database.DSN)
	}
	if cfg.Monitor.BatchSize != 25 {
		t.Fatalf("batch size = %d", cfg.Monitor.BatchSize)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]string{
		"driver":     "database:\n  driver: oracle\n",
		"redis lock": "monitor:\n  lock: redis\n",
		"minio":      "blob:\n  provider: minio\n",
		"nats":       "events:\n  driver: nats\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(context.Background(), writeConfig(t, raw)); err == nil {
				t.Fatalf("Load() expected error")
			}
		})
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
