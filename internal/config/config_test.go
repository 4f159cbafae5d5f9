package config

import (
	"os"
	"testing"
	"time"
)

const testYAML = `
data_dir: /var/lib/memodash

store:
  driver: postgres
  dsn: "${MEMODASH_DSN}"

proxy:
  base_url: "https://proxy.memodash.internal"
  timeout: "15s"

model:
  enabled: true
  api_key: "${MEMODASH_MODEL_KEY}"
  model: claude-sonnet-4

redis:
  addr: "localhost:6379"
  cache_ttl: "5m"

retention:
  session_ttl: "12h"
  schedule: "@every 30m"
`

func TestParseConfig(t *testing.T) {
	cfg, err := Parse([]byte(testYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataDir != "/var/lib/memodash" {
		t.Errorf("data_dir = %q", cfg.DataDir)
	}
	if cfg.Store.Driver != "postgres" {
		t.Errorf("store driver = %q", cfg.Store.Driver)
	}
	if cfg.Proxy.Timeout != "15s" {
		t.Errorf("proxy timeout = %q", cfg.Proxy.Timeout)
	}
	if !cfg.Model.Enabled {
		t.Error("model not enabled")
	}
	if cfg.Retention.Schedule != "@every 30m" {
		t.Errorf("retention schedule = %q", cfg.Retention.Schedule)
	}
}

func TestEnvExpansion(t *testing.T) {
	os.Setenv("MEMODASH_DSN", "postgres://memo:secret@db/memodash")
	defer os.Unsetenv("MEMODASH_DSN")

	cfg, err := Parse([]byte(testYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.DSN != "postgres://memo:secret@db/memodash" {
		t.Errorf("dsn = %q", cfg.Store.DSN)
	}
	// Unset variables stay as written rather than collapsing to "".
	if cfg.Model.APIKey != "${MEMODASH_MODEL_KEY}" {
		t.Errorf("api_key = %q", cfg.Model.APIKey)
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("default driver = %q", cfg.Store.Driver)
	}
	if cfg.DataDir != "./data" {
		t.Errorf("default data_dir = %q", cfg.DataDir)
	}
	if cfg.Retention.Schedule != "@hourly" {
		t.Errorf("default schedule = %q", cfg.Retention.Schedule)
	}
}

func TestDuration(t *testing.T) {
	if got := Duration("90s", time.Minute); got != 90*time.Second {
		t.Errorf("Duration(90s) = %v", got)
	}
	if got := Duration("", time.Minute); got != time.Minute {
		t.Errorf("Duration(empty) = %v", got)
	}
	if got := Duration("bogus", time.Minute); got != time.Minute {
		t.Errorf("Duration(bogus) = %v", got)
	}
}
