package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestValidateRejectsContractViolations(t *testing.T) {
	cases := []func(*Config){
		func(c *Config) { c.Analysis.Concurrency = 0 },
		func(c *Config) { c.Analysis.Concurrency = -4 },
		func(c *Config) { c.Analysis.AnomalyCutoff = 0 },
		func(c *Config) { c.Analysis.AnomalyCutoff = 1.5 },
		func(c *Config) { c.Cooldown.Duration = 0 },
		func(c *Config) { c.Classifier.Backend = "unknown" },
		func(c *Config) { c.Notify.Kafka.Enabled = true },
		func(c *Config) { c.API.Enabled = true; c.API.Addr = "" },
	}
	for i, mutate := range cases {
		cfg := DefaultConfig()
		mutate(cfg)
		if err := Validate(cfg); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
log_level: debug
analysis:
  concurrency: 8
  anomaly_cutoff: 0.7
cooldown:
  duration: 2m
classifier:
  backend: none
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.Analysis.Concurrency != 8 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Analysis.AnomalyCutoff != 0.7 {
		t.Fatalf("cutoff not applied: %v", cfg.Analysis.AnomalyCutoff)
	}
	if cfg.Cooldown.Duration != 2*time.Minute {
		t.Fatalf("duration not parsed: %v", cfg.Cooldown.Duration)
	}
	// Untouched sections keep defaults.
	if cfg.Frames.FPS != 1 || cfg.Alerts.StoreLimit != 1000 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadYAMLDurationStrings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
cooldown:
  duration: 10m
  sweep_interval: 1s
classifier:
  backend: none
  timeout: 45s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Cooldown.Duration != 10*time.Minute {
		t.Fatalf("duration not parsed: %v", cfg.Cooldown.Duration)
	}
	if cfg.Cooldown.SweepInterval != time.Second {
		t.Fatalf("sweep interval not parsed: %v", cfg.Cooldown.SweepInterval)
	}
	if cfg.Classifier.Timeout != 45*time.Second {
		t.Fatalf("timeout not parsed: %v", cfg.Classifier.Timeout)
	}
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"log_level": "warn", "classifier": {"backend": "none"}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "warn" || cfg.Classifier.Backend != "none" {
		t.Fatalf("json overrides not applied: %+v", cfg)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "analysis:\n  concurrency: -1\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error at load")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.LogLevel = "error"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.LogLevel != "error" {
		t.Fatalf("round trip lost log level: %+v", loaded)
	}
}
