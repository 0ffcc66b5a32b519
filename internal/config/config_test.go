package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Scorer.HighRiskThreshold != 0.70 {
		t.Fatalf("unexpected risk threshold %v", cfg.Scorer.HighRiskThreshold)
	}
	if cfg.Lockout.FailureThreshold != 3 || cfg.Lockout.BlockDuration != 24*time.Hour {
		t.Fatalf("unexpected lockout defaults %+v", cfg.Lockout)
	}
	if cfg.Rules.HistoryWindow != 5*time.Minute {
		t.Fatalf("unexpected history window %v", cfg.Rules.HistoryWindow)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, "cfg.yaml", `
log_level: debug
storage:
  driver: memory
scorer:
  url: http://scorer:5000/predict-fraud
  high_risk_threshold: 0.5
rules:
  high_amount_threshold: 50000
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("unexpected log level %q", cfg.LogLevel)
	}
	if cfg.Storage.Driver != "memory" {
		t.Fatalf("unexpected driver %q", cfg.Storage.Driver)
	}
	if cfg.Scorer.HighRiskThreshold != 0.5 {
		t.Fatalf("unexpected threshold %v", cfg.Scorer.HighRiskThreshold)
	}
	if cfg.Rules.HighAmountThreshold != 50000 {
		t.Fatalf("unexpected amount threshold %v", cfg.Rules.HighAmountThreshold)
	}
	// Untouched sections keep their defaults.
	if cfg.Lockout.FailureThreshold != 3 {
		t.Fatalf("expected default lockout threshold, got %d", cfg.Lockout.FailureThreshold)
	}
	if cfg.Rules.SuspiciousIPPrefix != "172." {
		t.Fatalf("expected default ip prefix, got %q", cfg.Rules.SuspiciousIPPrefix)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "cfg.json", `{"log_level":"warn","storage":{"driver":"memory"}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "warn" || cfg.Storage.Driver != "memory" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadRejectsEmptyFile(t *testing.T) {
	path := writeConfig(t, "cfg.yaml", "   \n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for empty config")
	}
}

func TestValidateRejectsBadDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Driver = "oracle"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestValidateRejectsBadThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scorer.HighRiskThreshold = 1.5
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for threshold above 1")
	}
}

func TestValidateKafkaRequiresBrokers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ingest.Kafka.Enabled = true
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for kafka without brokers")
	}
}

func TestManagerReload(t *testing.T) {
	path := writeConfig(t, "cfg.yaml", `log_level: info`)
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	if m.Get().LogLevel != "info" {
		t.Fatalf("unexpected level %q", m.Get().LogLevel)
	}
	if err := os.WriteFile(path, []byte(`log_level: debug`), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if _, err := m.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if m.Get().LogLevel != "debug" {
		t.Fatalf("reload did not take effect, got %q", m.Get().LogLevel)
	}
}

func TestStaticManagerHasNoReload(t *testing.T) {
	m := NewStaticManager(nil)
	if m.Get() == nil {
		t.Fatalf("expected default config")
	}
	if _, err := m.Reload(); err == nil {
		t.Fatalf("expected reload error without a file")
	}
}
