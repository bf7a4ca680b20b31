package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("failed to load defaults: %v", err)
	}

	if cfg.DB.Driver != "sqlite" || cfg.DB.DSN != "kanban.db" {
		t.Errorf("unexpected default database config: %+v", cfg.DB)
	}
	if cfg.Session.CookieName != "sessionid" {
		t.Errorf("unexpected default cookie name %q", cfg.Session.CookieName)
	}
	if cfg.Session.Lifetime != 24*time.Hour {
		t.Errorf("unexpected default lifetime %v", cfg.Session.Lifetime)
	}
	if cfg.Session.GCProbability != 0.01 {
		t.Errorf("unexpected default gc probability %v", cfg.Session.GCProbability)
	}
	want := []string{"Backlog", "Doing", "Review", "Done"}
	if len(cfg.DefaultBuckets) != len(want) {
		t.Fatalf("unexpected default buckets: %v", cfg.DefaultBuckets)
	}
	for i, name := range want {
		if cfg.DefaultBuckets[i] != name {
			t.Errorf("bucket %d: expected %s, got %s", i, name, cfg.DefaultBuckets[i])
		}
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "no-such-file.yaml")); err != nil {
		t.Fatalf("missing config file should fall back to defaults, got %v", err)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kanband.yaml")
	content := `
listen_addr: ":8080"
db:
  driver: postgres
  dsn: "host=localhost dbname=kanban"
session:
  store: memcached
  memcached_addrs: ["127.0.0.1:11211"]
  lifetime: 1h
auth:
  revalidate_admin: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("unexpected listen addr %q", cfg.ListenAddr)
	}
	if cfg.DB.Driver != "postgres" {
		t.Errorf("unexpected driver %q", cfg.DB.Driver)
	}
	if cfg.Session.Store != "memcached" || len(cfg.Session.MemcachedAddrs) != 1 {
		t.Errorf("unexpected session config: %+v", cfg.Session)
	}
	if cfg.Session.Lifetime != time.Hour {
		t.Errorf("unexpected lifetime %v", cfg.Session.Lifetime)
	}
	if !cfg.Auth.RevalidateAdmin {
		t.Error("revalidate_admin not loaded")
	}
	// Fields the file omits keep their defaults.
	if cfg.Session.CookieName != "sessionid" {
		t.Errorf("omitted field lost its default: %q", cfg.Session.CookieName)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("KANBAN_DB_PATH", "/var/lib/kanban/kanban.db")
	t.Setenv("DB_TYPE", "postgres")
	t.Setenv("SVC_PORT", "9000")
	t.Setenv("ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("BUCKETS", "Todo,Done")
	t.Setenv("SESSION_LEN", "3600")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.DB.DSN != "/var/lib/kanban/kanban.db" {
		t.Errorf("KANBAN_DB_PATH not applied: %q", cfg.DB.DSN)
	}
	if cfg.DB.Driver != "postgres" {
		t.Errorf("DB_TYPE not applied: %q", cfg.DB.Driver)
	}
	if cfg.ListenAddr != ":9000" {
		t.Errorf("SVC_PORT not applied: %q", cfg.ListenAddr)
	}
	if len(cfg.Origins) != 2 || cfg.Origins[1] != "https://b.example.com" {
		t.Errorf("ORIGINS not applied or not trimmed: %v", cfg.Origins)
	}
	if len(cfg.DefaultBuckets) != 2 || cfg.DefaultBuckets[0] != "Todo" {
		t.Errorf("BUCKETS not applied: %v", cfg.DefaultBuckets)
	}
	if cfg.Session.Lifetime != time.Hour {
		t.Errorf("SESSION_LEN not applied: %v", cfg.Session.Lifetime)
	}
}

func TestSessionLenIgnoresGarbage(t *testing.T) {
	t.Setenv("SESSION_LEN", "not-a-number")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Session.Lifetime != 24*time.Hour {
		t.Errorf("garbage SESSION_LEN should keep the default, got %v", cfg.Session.Lifetime)
	}
}
