package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.FlowThreshold != 40.0 || cfg.AnomalyCutoff != 0.8 {
		t.Fatalf("got thresholds %v/%v", cfg.FlowThreshold, cfg.AnomalyCutoff)
	}
	if cfg.WindowSize != 12 || cfg.Horizon != 24 || cfg.StepInterval != time.Hour {
		t.Fatalf("got forecast tunables %+v", cfg)
	}
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	data := []byte("flow_threshold: 55.5\nanomaly_cutoff: 0.9\nwindow_size: 6\nforecast_horizon: 8\nstep_interval: 30m\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	t.Setenv("PIPELINE_CONFIG", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.FlowThreshold != 55.5 || cfg.AnomalyCutoff != 0.9 {
		t.Fatalf("got thresholds %v/%v", cfg.FlowThreshold, cfg.AnomalyCutoff)
	}
	if cfg.WindowSize != 6 || cfg.Horizon != 8 || cfg.StepInterval != 30*time.Minute {
		t.Fatalf("got forecast tunables %+v", cfg)
	}
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	if err := os.WriteFile(path, []byte("flow_threshold: 55.5\n"), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	t.Setenv("PIPELINE_CONFIG", path)
	t.Setenv("FLOW_THRESHOLD", "70")
	t.Setenv("FORECAST_STEP_INTERVAL", "15m")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.FlowThreshold != 70 {
		t.Fatalf("flow threshold %v, want env override 70", cfg.FlowThreshold)
	}
	if cfg.StepInterval != 15*time.Minute {
		t.Fatalf("step interval %v, want 15m", cfg.StepInterval)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	t.Setenv("ANOMALY_CUTOFF", "1.5")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for cutoff above 1")
	}
}
