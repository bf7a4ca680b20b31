// Package config loads server configuration from an optional YAML file
// with environment-variable overrides. Defaults match the development
// setup: SQLite database next to the binary, 24 hour sessions.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// ListenAddr is the address the HTTP server binds. A ":0" port picks
	// an ephemeral port, logged at startup.
	ListenAddr string `yaml:"listen_addr"`

	DB      DBConfig      `yaml:"db"`
	Session SessionConfig `yaml:"session"`
	Auth    AuthConfig    `yaml:"auth"`

	// Origins allowed to make credentialed cross-origin requests.
	Origins []string `yaml:"origins"`

	// DefaultBuckets are created, in order, for every new project.
	DefaultBuckets []string `yaml:"default_buckets"`
}

type DBConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn"`    // file path for sqlite, conninfo for postgres
}

type SessionConfig struct {
	// Store selects the session backend: "db" shares the relational
	// database, "memcached" keeps sessions in a cache cluster.
	Store          string        `yaml:"store"`
	CookieName     string        `yaml:"cookie_name"`
	Lifetime       time.Duration `yaml:"lifetime"`
	GCProbability  float64       `yaml:"gc_probability"`
	MemcachedAddrs []string      `yaml:"memcached_addrs"`
}

type AuthConfig struct {
	// RevalidateAdmin re-checks the admin flag against the users table on
	// every request instead of trusting the session's cached copy.
	RevalidateAdmin bool `yaml:"revalidate_admin"`
}

func defaults() Config {
	return Config{
		ListenAddr: ":0",
		DB: DBConfig{
			Driver: "sqlite",
			DSN:    "kanban.db",
		},
		Session: SessionConfig{
			Store:         "db",
			CookieName:    "sessionid",
			Lifetime:      24 * time.Hour,
			GCProbability: 0.01,
		},
		Origins:        []string{"http://localho.st:5173"},
		DefaultBuckets: []string{"Backlog", "Doing", "Review", "Done"},
	}
}

// Load reads the config file at path (skipped when path is "" or the file
// is absent) and applies environment overrides on top of the defaults.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv honors the environment variables the original deployment used.
func applyEnv(cfg *Config) {
	if v := os.Getenv("KANBAN_DB_PATH"); v != "" {
		cfg.DB.DSN = v
	}
	if v := os.Getenv("DB_TYPE"); v != "" {
		cfg.DB.Driver = v
	}
	if v := os.Getenv("SVC_PORT"); v != "" {
		cfg.ListenAddr = ":" + v
	}
	if v := os.Getenv("ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.Origins = origins
	}
	if v := os.Getenv("BUCKETS"); v != "" {
		cfg.DefaultBuckets = strings.Split(v, ",")
	}
	if v := os.Getenv("SESSION_LEN"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.Session.Lifetime = time.Duration(secs) * time.Second
		}
	}
}
