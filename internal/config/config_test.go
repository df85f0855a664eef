package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Policy.TriggerThreshold != 0.8 {
		t.Fatalf("expected default threshold 0.8, got %v", cfg.Policy.TriggerThreshold)
	}
	if cfg.Policy.HistoryCapacity != 1000 {
		t.Fatalf("expected history capacity 1000, got %d", cfg.Policy.HistoryCapacity)
	}
	if cfg.Storage.MemoryCapacity != 10000 {
		t.Fatalf("expected memory capacity 10000, got %d", cfg.Storage.MemoryCapacity)
	}
	if cfg.Storage.MemoryCapacity <= cfg.Policy.HistoryCapacity {
		t.Fatalf("memory store must outlast the decision history")
	}
	if cfg.Monitor.Interval != 30*time.Second || cfg.Monitor.Window != 5*time.Minute {
		t.Fatalf("unexpected monitor defaults: %+v", cfg.Monitor)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "aegis.yaml")
	if err := os.WriteFile(path, []byte(`policy:
  triggerThreshold: 0.9
  mode: suggest
monitor:
  interval: 10s
`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("AEGIS_TRIGGER_THRESHOLD", "0.75")
	t.Setenv("AEGIS_KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("AEGIS_MEMORY_CAPACITY", "50000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Policy.TriggerThreshold != 0.75 {
		t.Fatalf("expected env override 0.75, got %v", cfg.Policy.TriggerThreshold)
	}
	if cfg.Policy.Mode != ModeSuggest {
		t.Fatalf("expected suggest mode, got %q", cfg.Policy.Mode)
	}
	if cfg.Monitor.Interval != 10*time.Second {
		t.Fatalf("expected 10s interval, got %v", cfg.Monitor.Interval)
	}
	if cfg.Storage.MemoryCapacity != 50000 {
		t.Fatalf("expected memory capacity override 50000, got %d", cfg.Storage.MemoryCapacity)
	}
	if !cfg.Kafka.Enabled || len(cfg.Kafka.Brokers) != 2 {
		t.Fatalf("expected two kafka brokers, got %v", cfg.Kafka.Brokers)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := Load("does-not-exist.yaml"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"threshold":    func(c *Config) { c.Policy.TriggerThreshold = 1.5 },
		"mode":         func(c *Config) { c.Policy.Mode = "yolo" },
		"timezone":     func(c *Config) { c.Policy.Timezone = "Nowhere/Special" },
		"history":      func(c *Config) { c.Policy.HistoryCapacity = 0 },
		"storage":      func(c *Config) { c.Storage.MemoryCapacity = 0 },
		"peak":         func(c *Config) { c.Policy.PeakEndHour = 24 },
		"cache":        func(c *Config) { c.Cache.Enabled = true },
		"postgres":     func(c *Config) { c.Postgres.Enabled = true },
		"actionTimout": func(c *Config) { c.Healer.ActionTimeout = 0 },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}
