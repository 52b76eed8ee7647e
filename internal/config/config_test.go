package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"ADVISOR_OPENAI_KEY", "ADVISOR_GEMINI_KEY", "ADVISOR_METIS_KEY", "DATABASE_URL", "REDIS_URL", "NATS_URL", "ADVISOR_JWT_SECRET"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
database:
  url: postgres://u:p@localhost:5432/advisor
ai:
  openai_key: sk-test
`)

	cfg, err := LoadConfig(path, false)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Storage.Driver != "postgres" || cfg.Dispatch.Driver != "pool" {
		t.Fatalf("unexpected drivers: %s %s", cfg.Storage.Driver, cfg.Dispatch.Driver)
	}
	if cfg.AI.MaxToolLoops != 5 || cfg.AI.MaxTokens != 2000 {
		t.Fatalf("unexpected ai limits: loops=%d tokens=%d", cfg.AI.MaxToolLoops, cfg.AI.MaxTokens)
	}
	if cfg.Jobs.TTL != 24*time.Hour {
		t.Fatalf("unexpected ttl: %s", cfg.Jobs.TTL)
	}
	if cfg.Dispatch.QueueSize != cfg.Dispatch.Workers*4 {
		t.Fatalf("queue size should default to workers*4, got %d", cfg.Dispatch.QueueSize)
	}
	if cfg.NATS.Subject != "advisory.jobs" {
		t.Fatalf("unexpected nats subject: %s", cfg.NATS.Subject)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ADVISOR_GEMINI_KEY", "g-key")
	t.Setenv("REDIS_URL", "localhost:6379")
	path := writeConfig(t, `
storage:
  driver: Redis
`)

	cfg, err := LoadConfig(path, false)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.AI.GeminiKey != "g-key" {
		t.Fatalf("env override not applied: %q", cfg.AI.GeminiKey)
	}
	if cfg.Storage.Driver != "redis" || cfg.Redis.URL != "localhost:6379" {
		t.Fatalf("unexpected storage config: %+v %+v", cfg.Storage, cfg.Redis)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	clearEnv(t)
	cases := map[string]string{
		"missing database url": "ai:\n  openai_key: k\n",
		"missing ai key":       "database:\n  url: postgres://x\n",
		"nats without url":     "database:\n  url: postgres://x\nai:\n  openai_key: k\ndispatch:\n  driver: nats\n",
		"memory outside dev":   "storage:\n  driver: memory\nai:\n  openai_key: k\n",
		"unknown driver":       "storage:\n  driver: mongo\nai:\n  openai_key: k\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, body), false); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadConfigDevWithoutFile(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), true)
	if err != nil {
		t.Fatalf("dev mode should start on defaults: %v", err)
	}
	if cfg.Storage.Driver != "memory" {
		t.Fatalf("dev storage should default to memory, got %s", cfg.Storage.Driver)
	}
	if !cfg.Runtime.Dev {
		t.Fatal("runtime dev flag not set")
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), false); err == nil {
		t.Fatal("missing file outside dev mode should fail")
	}
}

func TestLoadConfigNATSNeedsSharedStore(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "storage:\n  driver: memory\nnats:\n  url: nats://x\ndispatch:\n  driver: nats\n")

	_, err := LoadConfig(path, true)
	if err == nil || !strings.Contains(err.Error(), "shared storage") {
		t.Fatalf("expected shared storage error, got %v", err)
	}
}

func TestLoadConfigStaleAfterCoversRun(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), true)
	if err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if cfg.Jobs.StaleAfter < cfg.MaxRunDuration() {
		t.Fatalf("default stale_after %s below max run %s", cfg.Jobs.StaleAfter, cfg.MaxRunDuration())
	}

	path := writeConfig(t, "jobs:\n  stale_after: 2m\nai:\n  timeout: 60s\n")
	_, err = LoadConfig(path, true)
	if err == nil || !strings.Contains(err.Error(), "stale_after") {
		t.Fatalf("expected stale_after error, got %v", err)
	}
}
